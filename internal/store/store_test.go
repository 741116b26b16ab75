package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "test.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_SeedsDefaultAccounts(t *testing.T) {
	s := openTestStore(t)

	users, err := s.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)

	assert.Equal(t, "admin", users[0].Username)
	assert.True(t, users[0].IsAdmin)
	assert.True(t, users[0].IsActive)

	assert.Equal(t, "user", users[1].Username)
	assert.False(t, users[1].IsAdmin)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(Config{Path: path}, zap.NewNop())
	require.NoError(t, err)
	_, err = s1.CreateUser(context.Background(), "carol", "password1", false)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	// Reopening must not re-seed or lose accounts.
	s2, err := Open(Config{Path: path}, zap.NewNop())
	require.NoError(t, err)
	defer s2.Close()

	users, err := s2.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 3)
}

func TestStore_FindUserByUsernameCaseInsensitive(t *testing.T) {
	s := openTestStore(t)

	user, err := s.FindUserByUsername(context.Background(), "ADMIN")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "admin", user.Username)

	missing, err := s.FindUserByUsername(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_CreateUserDuplicate(t *testing.T) {
	s := openTestStore(t)

	_, err := s.CreateUser(context.Background(), "admin", "whatever1", false)
	assert.ErrorIs(t, err, ErrDuplicateUsername)
}

func TestStore_RecordLogin(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	user, err := s.FindUserByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Nil(t, user.LastLoginAt)

	require.NoError(t, s.RecordLogin(ctx, user.ID))

	user, err = s.FindUserByUsername(ctx, "admin")
	require.NoError(t, err)
	require.NotNil(t, user.LastLoginAt)
	assert.NotEmpty(t, *user.LastLoginAt)
}

func TestStore_Toggles(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	user, err := s.FindUserByUsername(ctx, "user")
	require.NoError(t, err)

	toggled, err := s.ToggleActive(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)

	toggled, err = s.ToggleActive(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, toggled.IsActive)

	toggled, err = s.ToggleAdmin(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, toggled.IsAdmin)
}

func TestStore_DeleteLastAdminRefused(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	admin, err := s.FindUserByUsername(ctx, "admin")
	require.NoError(t, err)

	err = s.DeleteUser(ctx, admin.ID)
	assert.ErrorIs(t, err, ErrCannotDeleteLastAdmin)

	// With a second admin in place the deletion goes through.
	_, err = s.CreateUser(ctx, "backup-admin", "password2", true)
	require.NoError(t, err)
	require.NoError(t, s.DeleteUser(ctx, admin.ID))

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestStore_DeleteMissingUser(t *testing.T) {
	s := openTestStore(t)
	err := s.DeleteUser(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStore_ActivityLog(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.AppendActivity("admin", "invoice", "upload", "a.pdf"))
	require.NoError(t, s.AppendActivity("admin", "invoice", "extracted", "INV-1"))
	require.NoError(t, s.AppendActivity("user", "qa", "question", "what is vat"))

	entries, err := s.ListActivity(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Newest first.
	for i := 1; i < len(entries); i++ {
		assert.GreaterOrEqual(t, entries[i-1].Timestamp, entries[i].Timestamp)
	}

	var actions []string
	modules := map[string]int{}
	for _, e := range entries {
		actions = append(actions, e.Action)
		modules[e.Module]++
	}
	assert.ElementsMatch(t, []string{"upload", "extracted", "question"}, actions)
	assert.Equal(t, 2, modules["invoice"])
	assert.Equal(t, 1, modules["qa"])
}
