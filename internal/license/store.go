package license

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Store persists the license record as a single JSON file under the
// per-user application directory. Saves overwrite the whole file; there
// is no merging and no concurrent-writer protection beyond that (the
// application is single-instance per user session).
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore creates a store bound to the given file path.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:   path,
		logger: logger.With(slog.String("component", "license.store")),
	}
}

// Path returns the backing file location.
func (s *Store) Path() string { return s.path }

// Load reads the cached record. A missing file is not an error and
// returns (nil, nil); an unreadable or unparseable file reports
// ErrCacheCorrupt.
func (s *Store) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read license cache: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("license cache unparseable",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}

	return &rec, nil
}

// Save overwrites the cache with the given record.
func (s *Store) Save(rec *Record) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create license directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode license record: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write license cache: %w", err)
	}

	s.logger.Debug("license cache written",
		slog.String("path", s.path),
		slog.Bool("offline_mode", rec.OfflineMode),
	)

	return nil
}

// Delete removes the cache file. Deleting an absent file is not an
// error.
func (s *Store) Delete() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete license cache: %w", err)
	}
	return nil
}
