package prefs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/muyusufspa/spgpt/internal/domain/entity"
	"go.uber.org/zap"
)

const (
	historyFile  = "invoice_history.json"
	settingsFile = "user_settings.json"
)

// Store keeps the invoice history and user settings as JSON files in the
// data directory. Each change rewrites the whole file; the blobs are small
// and last write wins.
type Store struct {
	mu     sync.Mutex
	dir    string
	logger *zap.Logger
}

// NewStore creates a preferences store rooted at dir.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// LoadHistory returns all recorded postings. A missing or unreadable file
// yields an empty list.
func (s *Store) LoadHistory() ([]entity.InvoiceHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []entity.InvoiceHistoryEntry
	if err := s.load(historyFile, &entries); err != nil {
		s.logger.Warn("could not load invoice history, starting empty", zap.Error(err))
		return []entity.InvoiceHistoryEntry{}, nil
	}
	if entries == nil {
		entries = []entity.InvoiceHistoryEntry{}
	}
	return entries, nil
}

// AppendHistory records one posted invoice.
func (s *Store) AppendHistory(entry entity.InvoiceHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []entity.InvoiceHistoryEntry
	if err := s.load(historyFile, &entries); err != nil {
		s.logger.Warn("could not load invoice history, starting empty", zap.Error(err))
		entries = nil
	}
	entries = append(entries, entry)
	return s.save(historyFile, entries)
}

// ClearHistory removes every recorded posting.
func (s *Store) ClearHistory() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(historyFile, []entity.InvoiceHistoryEntry{})
}

// LoadSettings returns the saved settings, falling back to defaults when
// nothing was saved yet.
func (s *Store) LoadSettings() (entity.UserSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var settings entity.UserSettings
	if err := s.load(settingsFile, &settings); err != nil {
		return entity.DefaultSettings(), nil
	}
	return settings, nil
}

// SaveSettings replaces the stored settings.
func (s *Store) SaveSettings(settings entity.UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(settingsFile, settings)
}

func (s *Store) load(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *Store) save(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
