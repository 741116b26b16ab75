package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/muyusufspa/spgpt/internal/domain/entity"
	"go.uber.org/zap"
)

// ErrStoreInit is returned when the schema cannot be created or inspected.
var ErrStoreInit = errors.New("store initialization failed")

// ErrDuplicateUsername is returned when creating a user whose name is taken.
var ErrDuplicateUsername = errors.New("username already exists")

// ErrCannotDeleteLastAdmin protects the final administrator account.
var ErrCannotDeleteLastAdmin = errors.New("cannot delete the last administrator")

// ErrUserNotFound is returned when an operation targets a missing user id.
var ErrUserNotFound = errors.New("user not found")

// activityLimit caps how many audit entries a listing returns.
const activityLimit = 1000

// Config holds the store settings. SeedPath optionally names a bundled
// database file used when Path does not exist yet.
type Config struct {
	Path     string
	SeedPath string
}

// Store persists user accounts and the activity log in a local sqlite
// database.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open initializes the store. The database file is reused when present,
// copied from the seed file when one is configured, or created empty.
// Initialization is idempotent; tables and columns are only added when
// missing, and default accounts are seeded only into an empty users table.
func Open(cfg Config, logger *zap.Logger) (*Store, error) {
	if _, err := os.Stat(cfg.Path); os.IsNotExist(err) && cfg.SeedPath != "" {
		if err := copySeed(cfg.SeedPath, cfg.Path); err != nil {
			logger.Warn("could not copy seed database, starting empty",
				zap.String("seed", cfg.SeedPath),
				zap.Error(err))
		} else {
			logger.Info("database initialized from seed file",
				zap.String("seed", cfg.SeedPath))
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreInit, err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.seedUsers(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func copySeed(seedPath, dest string) error {
	src, err := os.Open(seedPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

func (s *Store) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at TEXT NOT NULL,
			last_login_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS activity_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user TEXT NOT NULL,
			action TEXT NOT NULL,
			timestamp INTEGER NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreInit, err)
		}
	}

	// Older database files predate these columns.
	userMigrations := map[string]string{
		"is_active": "ALTER TABLE users ADD COLUMN is_active INTEGER NOT NULL CHECK(is_active IN (0, 1)) DEFAULT 1",
		"is_admin":  "ALTER TABLE users ADD COLUMN is_admin INTEGER NOT NULL CHECK(is_admin IN (0, 1)) DEFAULT 0",
	}
	if err := s.addMissingColumns("users", userMigrations); err != nil {
		return err
	}

	activityMigrations := map[string]string{
		"module":  "ALTER TABLE activity_log ADD COLUMN module TEXT NOT NULL DEFAULT ''",
		"subject": "ALTER TABLE activity_log ADD COLUMN subject TEXT NOT NULL DEFAULT ''",
	}
	return s.addMissingColumns("activity_log", activityMigrations)
}

func (s *Store) addMissingColumns(table string, migrations map[string]string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("%w: could not inspect %s schema: %v", ErrStoreInit, table, err)
	}
	defer rows.Close()

	existing := map[string]bool{}
	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return fmt.Errorf("%w: could not inspect %s schema: %v", ErrStoreInit, table, err)
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: could not inspect %s schema: %v", ErrStoreInit, table, err)
	}
	if len(existing) == 0 {
		return fmt.Errorf("%w: could not inspect %s schema", ErrStoreInit, table)
	}

	for column, stmt := range migrations {
		if existing[column] {
			continue
		}
		s.logger.Info("migrating schema",
			zap.String("table", table),
			zap.String("column", column))
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreInit, err)
		}
	}
	return nil
}

func (s *Store) seedUsers() error {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreInit, err)
	}
	if count > 0 {
		return nil
	}

	s.logger.Info("users table is empty, seeding default accounts")
	defaults := []struct {
		username string
		isAdmin  bool
	}{
		{"admin", true},
		{"user", false},
	}
	for _, u := range defaults {
		if _, err := s.CreateUser(context.Background(), u.username, "password", u.isAdmin); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreInit, err)
		}
	}
	return nil
}

const userColumns = "id, username, password_hash, created_at, last_login_at, is_active, is_admin"

func scanUser(row interface{ Scan(...any) error }) (*entity.User, error) {
	var (
		user      entity.User
		lastLogin sql.NullString
		isActive  int
		isAdmin   int
	)
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt, &lastLogin, &isActive, &isAdmin)
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		user.LastLoginAt = &lastLogin.String
	}
	user.IsActive = isActive == 1
	user.IsAdmin = isAdmin == 1
	return &user, nil
}

// ListUsers returns every account ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]entity.User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []entity.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to list users: %w", err)
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// FindUserByUsername matches the name case-insensitively. A missing user
// returns nil with no error.
func (s *Store) FindUserByUsername(ctx context.Context, username string) (*entity.User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE LOWER(username) = LOWER(?)", username)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// RecordLogin stamps the account's last login time.
func (s *Store) RecordLogin(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET last_login_at = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), userID)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

// CreateUser inserts an account and returns the stored row.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string, isAdmin bool) (*entity.User, error) {
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, created_at, is_active, is_admin) VALUES (?, ?, ?, 1, ?)",
		username, passwordHash, time.Now().UTC().Format(time.RFC3339), boolToInt(isAdmin))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return s.getUser(ctx, id)
}

func (s *Store) getUser(ctx context.Context, id int64) (*entity.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ToggleActive flips the account's active flag and returns the updated row.
func (s *Store) ToggleActive(ctx context.Context, userID int64) (*entity.User, error) {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET is_active = CASE WHEN is_active = 1 THEN 0 ELSE 1 END WHERE id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle user status: %w", err)
	}
	return s.getUser(ctx, userID)
}

// ToggleAdmin flips the account's admin flag and returns the updated row.
func (s *Store) ToggleAdmin(ctx context.Context, userID int64) (*entity.User, error) {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET is_admin = CASE WHEN is_admin = 1 THEN 0 ELSE 1 END WHERE id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle admin status: %w", err)
	}
	return s.getUser(ctx, userID)
}

// DeleteUser removes an account. Deleting the last remaining administrator
// is refused.
func (s *Store) DeleteUser(ctx context.Context, userID int64) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}

	if user.IsAdmin {
		var admins int
		if err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM users WHERE is_admin = 1").Scan(&admins); err != nil {
			return fmt.Errorf("failed to count administrators: %w", err)
		}
		if admins <= 1 {
			return ErrCannotDeleteLastAdmin
		}
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// AppendActivity records one audit entry.
func (s *Store) AppendActivity(user, module, action, subject string) error {
	_, err := s.db.Exec(
		"INSERT INTO activity_log (user, module, action, subject, timestamp) VALUES (?, ?, ?, ?, ?)",
		user, module, action, subject, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}

// ListActivity returns the newest entries first, capped at the listing
// limit.
func (s *Store) ListActivity(ctx context.Context) ([]entity.ActivityEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user, module, action, subject, timestamp FROM activity_log ORDER BY timestamp DESC LIMIT ?",
		activityLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	var entries []entity.ActivityEntry
	for rows.Next() {
		var entry entity.ActivityEntry
		if err := rows.Scan(&entry.ID, &entry.User, &entry.Module, &entry.Action, &entry.Subject, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to list activity: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
