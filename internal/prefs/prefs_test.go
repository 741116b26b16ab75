package prefs

import (
	"testing"

	"github.com/muyusufspa/spgpt/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestStore_HistoryStartsEmpty(t *testing.T) {
	s := newTestStore(t)

	entries, err := s.LoadHistory()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_HistoryAppendAndClear(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AppendHistory(entity.InvoiceHistoryEntry{
		Reference:   "INV-1",
		VendorName:  "ACME",
		TotalAmount: 180,
		Currency:    "Saudi Riyal",
		IsPosted:    true,
	}))
	require.NoError(t, s.AppendHistory(entity.InvoiceHistoryEntry{Reference: "INV-2", IsPosted: true}))

	entries, err := s.LoadHistory()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "INV-1", entries[0].Reference)
	assert.InDelta(t, 180.0, entries[0].TotalAmount, 0.0001)

	require.NoError(t, s.ClearHistory())
	entries, err = s.LoadHistory()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_SettingsDefaults(t *testing.T) {
	s := newTestStore(t)

	settings, err := s.LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "sky", settings.Theme)
	assert.Equal(t, "Asia/Riyadh", settings.Timezone)
	assert.True(t, settings.Notifications.Email)
	assert.False(t, settings.Accessibility.HighContrast)
}

func TestStore_SettingsRoundTrip(t *testing.T) {
	s := newTestStore(t)

	saved := entity.DefaultSettings()
	saved.Theme = "midnight"
	saved.Accessibility.ReducedMotion = true
	require.NoError(t, s.SaveSettings(saved))

	loaded, err := s.LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "midnight", loaded.Theme)
	assert.True(t, loaded.Accessibility.ReducedMotion)
}
