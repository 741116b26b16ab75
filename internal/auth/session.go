package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/muyusufspa/spgpt/internal/domain/entity"
	"github.com/muyusufspa/spgpt/pkg/utils"
	"go.uber.org/zap"
)

var (
	// ErrInvalidCredentials covers both an unknown username and a wrong
	// password, so callers cannot probe which accounts exist.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrAccountDisabled is returned for deactivated accounts.
	ErrAccountDisabled = errors.New("this account has been deactivated")

	// ErrInvalidSession is returned for unknown or expired tokens.
	ErrInvalidSession = errors.New("invalid or expired session")

	// ErrPasswordTooShort rejects passwords under the minimum length.
	ErrPasswordTooShort = errors.New("password must be at least 8 characters long")

	// ErrInvalidUsername rejects account names outside the allowed format.
	ErrInvalidUsername = errors.New("username must be 3 to 32 letters, digits, dots, underscores or hyphens")
)

// minPasswordLength is enforced before any account write.
const minPasswordLength = 8

// sessionTTL bounds how long a login stays valid.
const sessionTTL = 24 * time.Hour

// UserStore is the account persistence the manager needs.
type UserStore interface {
	FindUserByUsername(ctx context.Context, username string) (*entity.User, error)
	RecordLogin(ctx context.Context, userID int64) error
	CreateUser(ctx context.Context, username, passwordHash string, isAdmin bool) (*entity.User, error)
}

// ActivityLogger appends one audit entry per auth event.
type ActivityLogger interface {
	AppendActivity(user, module, action, subject string) error
}

// Session is one authenticated login.
type Session struct {
	Token     string      `json:"token"`
	User      entity.User `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Manager authenticates users and tracks their sessions in memory.
// Sessions do not survive a restart.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]Session

	users    UserStore
	activity ActivityLogger
	logger   *zap.Logger
}

// NewManager creates a session manager.
func NewManager(users UserStore, activity ActivityLogger, logger *zap.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]Session),
		users:    users,
		activity: activity,
		logger:   logger,
	}
}

// Login checks the credentials and opens a session. The username matches
// case-insensitively; disabled accounts are refused after the password
// check so the error does not leak account state to guessers.
func (m *Manager) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := m.users.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash != password {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	if err := m.users.RecordLogin(ctx, user.ID); err != nil {
		m.logger.Warn("failed to record login time",
			zap.String("username", user.Username),
			zap.Error(err))
	}

	session := Session{
		Token:     uuid.NewString(),
		User:      *user,
		ExpiresAt: time.Now().Add(sessionTTL),
	}

	m.mu.Lock()
	m.sessions[session.Token] = session
	m.mu.Unlock()

	m.logActivity(user.Username, "login", user.Username)
	m.logger.Info("user logged in", zap.String("username", user.Username))
	return &session, nil
}

// Verify resolves a token to its session. Expired sessions are dropped on
// sight.
func (m *Manager) Verify(token string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[token]
	if !ok {
		return nil, ErrInvalidSession
	}
	if time.Now().After(session.ExpiresAt) {
		delete(m.sessions, token)
		return nil, ErrInvalidSession
	}
	return &session, nil
}

// Logout closes the session. Unknown tokens are a no-op.
func (m *Manager) Logout(token string) {
	m.mu.Lock()
	session, ok := m.sessions[token]
	delete(m.sessions, token)
	m.mu.Unlock()

	if ok {
		m.logActivity(session.User.Username, "logout", session.User.Username)
	}
}

// CreateUser applies the password and username policies before touching
// the store.
func (m *Manager) CreateUser(ctx context.Context, actor, username, password string, isAdmin bool) (*entity.User, error) {
	if len(password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	if err := utils.ValidateUsername(username); err != nil {
		return nil, ErrInvalidUsername
	}

	user, err := m.users.CreateUser(ctx, username, password, isAdmin)
	if err != nil {
		return nil, err
	}

	m.logActivity(actor, "user_created", username)
	return user, nil
}

func (m *Manager) logActivity(user, action, subject string) {
	if m.activity == nil {
		return
	}
	if err := m.activity.AppendActivity(user, entity.ModuleSystem, action, subject); err != nil {
		m.logger.Warn("failed to append activity entry",
			zap.String("action", action),
			zap.Error(err))
	}
}
