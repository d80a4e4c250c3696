package config

import (
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MaxLogEntries is the maximum number of log entries to keep in the database.
const MaxLogEntries = 1000

// LogEntry represents a stored log entry for API responses.
type LogEntry struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// DBStore handles configuration persistence using PostgreSQL via GORM.
// Schema: settings (global status/TOS flag), servers (one row per
// connected guild/channel pair), logs (bounded ring buffer for the admin UI).
type DBStore struct {
	db *gorm.DB
	mu sync.RWMutex
}

// NewDBStore opens a GORM connection to databaseURL and auto-migrates the
// schema. Session persistence across restarts is not part of this store; a
// fresh IDENTIFY is cheaper than carrying resume state across a redeploy and
// gateway.Connection already owns resume/reconnect within a process's
// lifetime.
func NewDBStore(databaseURL string) (*DBStore, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	store := &DBStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *DBStore) migrate() error {
	if err := s.db.AutoMigrate(&Setting{}, &Server{}, &Log{}); err != nil {
		return err
	}

	s.db.Exec(`
		DO $$
		BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM pg_constraint WHERE conname = 'single_settings_row'
			) THEN
				ALTER TABLE settings ADD CONSTRAINT single_settings_row CHECK (id = 1);
			END IF;
		END $$;
	`)

	var count int64
	s.db.Model(&Setting{}).Count(&count)
	if count == 0 {
		s.db.Create(&Setting{ID: 1, Status: "online", TOSAcknowledged: false})
	}

	return nil
}

// Load reads the configuration from the database.
// Returns a default configuration if no record exists.
func (s *DBStore) Load() (*Configuration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg := &Configuration{
		Servers: []ServerEntry{},
		Status:  StatusOnline,
	}

	var setting Setting
	if err := s.db.First(&setting).Error; err != nil && err != gorm.ErrRecordNotFound {
		return nil, err
	}
	if setting.Status != "" {
		cfg.Status = Status(setting.Status)
	}
	cfg.TOSAcknowledged = setting.TOSAcknowledged

	var servers []Server
	if err := s.db.Order("priority ASC, created_at ASC").Find(&servers).Error; err != nil {
		return nil, err
	}
	for _, srv := range servers {
		cfg.Servers = append(cfg.Servers, ServerEntry{
			ID:             srv.ID,
			GuildID:        srv.GuildID,
			GuildName:      ptrToString(srv.GuildName),
			GuildIcon:      ptrToString(srv.GuildIcon),
			ChannelID:      srv.ChannelID,
			ChannelName:    ptrToString(srv.ChannelName),
			ConnectOnStart: srv.ConnectOnStart,
			Priority:       srv.Priority,
		})
	}

	return cfg, nil
}

func ptrToString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func stringToPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Save writes the configuration to the database inside a transaction.
func (s *DBStore) Save(cfg *Configuration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := cfg.Validate(); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		status := string(cfg.Status)
		if status == "" {
			status = "online"
		}
		if err := tx.Save(&Setting{
			ID:              1,
			Status:          status,
			TOSAcknowledged: cfg.TOSAcknowledged,
		}).Error; err != nil {
			return err
		}
		return s.syncServers(tx, cfg.Servers)
	})
}

func (s *DBStore) syncServers(tx *gorm.DB, servers []ServerEntry) error {
	var existingIDs []string
	if err := tx.Model(&Server{}).Pluck("id", &existingIDs).Error; err != nil {
		return err
	}

	newIDs := make(map[string]bool, len(servers))
	for _, srv := range servers {
		newIDs[srv.ID] = true
	}

	for _, id := range existingIDs {
		if !newIDs[id] {
			if err := tx.Delete(&Server{}, "id = ?", id).Error; err != nil {
				return err
			}
		}
	}

	for _, srv := range servers {
		server := Server{
			ID:             srv.ID,
			GuildID:        srv.GuildID,
			GuildName:      stringToPtr(srv.GuildName),
			GuildIcon:      stringToPtr(srv.GuildIcon),
			ChannelID:      srv.ChannelID,
			ChannelName:    stringToPtr(srv.ChannelName),
			ConnectOnStart: srv.ConnectOnStart,
			Priority:       srv.Priority,
		}
		if err := tx.Save(&server).Error; err != nil {
			return err
		}
	}

	return nil
}

// Close closes the underlying database connection.
func (s *DBStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AddLog inserts a new log entry and trims old entries beyond MaxLogEntries.
func (s *DBStore) AddLog(level, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Create(&Log{Level: level, Message: message}).Error; err != nil {
		return err
	}

	s.db.Exec(`
		DELETE FROM logs WHERE id NOT IN (
			SELECT id FROM logs ORDER BY created_at DESC LIMIT ?
		)
	`, MaxLogEntries)

	return nil
}

// GetLogs retrieves log entries, optionally filtered by level, oldest first.
func (s *DBStore) GetLogs(level string) ([]LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var logs []Log
	query := s.db.Order("created_at ASC").Limit(MaxLogEntries)
	if level != "" {
		query = query.Where("level = ?", level)
	}
	if err := query.Find(&logs).Error; err != nil {
		return nil, err
	}

	result := make([]LogEntry, len(logs))
	for i, log := range logs {
		result[i] = LogEntry{
			Level:     log.Level,
			Message:   log.Message,
			Timestamp: log.CreatedAt,
		}
	}
	return result, nil
}

// ClearLogs removes all log entries from the database.
func (s *DBStore) ClearLogs() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Where("1 = 1").Delete(&Log{}).Error
}
