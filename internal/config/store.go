package config

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Store handles configuration persistence with atomic writes.
type Store struct {
	path   string
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewStore creates a new configuration store.
// The path should be the full path to the config.json file.
func NewStore(path string) *Store {
	return &Store{
		path:   path,
		logger: slog.Default().With("component", "config_store"),
	}
}

// Load reads the configuration from disk.
// Returns a default configuration if the file doesn't exist.
func (s *Store) Load() (*Configuration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Info("no config file found, using defaults", "path", s.path)
			return Default(), nil
		}
		return nil, err
	}

	if len(data) == 0 {
		s.logger.Warn("config file is empty, using defaults", "path", s.path)
		return Default(), nil
	}

	var cfg Configuration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to disk using atomic write.
// It writes to a temporary file first, then renames to prevent corruption.
func (s *Store) Save(cfg *Configuration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return err
	}
	s.logger.Debug("config saved", "path", s.path, "servers", len(cfg.Servers))
	return nil
}

// Path returns the configuration file path.
func (s *Store) Path() string {
	return s.path
}
