package config

import "testing"

func validEntry() ServerEntry {
	return ServerEntry{
		ID:        "entry-1",
		GuildID:   "111111111111111111",
		ChannelID: "222222222222222222",
		Status:    StatusOnline,
		Priority:  1,
	}
}

func TestServerEntryValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(e *ServerEntry)
		wantErr error
	}{
		{"valid", func(e *ServerEntry) {}, nil},
		{"empty id", func(e *ServerEntry) { e.ID = "" }, ErrEmptyID},
		{"empty guild", func(e *ServerEntry) { e.GuildID = "" }, ErrEmptyGuildID},
		{"empty channel", func(e *ServerEntry) { e.ChannelID = "" }, ErrEmptyChannelID},
		{"bad status", func(e *ServerEntry) { e.Status = "away" }, ErrInvalidStatus},
		{"zero priority", func(e *ServerEntry) { e.Priority = 0 }, ErrInvalidPriority},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entry := validEntry()
			tc.mutate(&entry)
			err := entry.Validate()
			if err != tc.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestConfigurationValidateRejectsTooManyServers(t *testing.T) {
	cfg := &Configuration{}
	for i := 0; i <= MaxServerEntries; i++ {
		entry := validEntry()
		entry.ID = "entry-" + string(rune('a'+i))
		cfg.Servers = append(cfg.Servers, entry)
	}

	if err := cfg.Validate(); err != ErrTooManyServers {
		t.Errorf("Validate() = %v, want ErrTooManyServers", err)
	}
}

func TestConfigurationValidatePropagatesEntryError(t *testing.T) {
	cfg := &Configuration{Servers: []ServerEntry{{}}}
	if err := cfg.Validate(); err != ErrEmptyID {
		t.Errorf("Validate() = %v, want ErrEmptyID", err)
	}
}

func TestDefaultIsEmptyAndUnacknowledged(t *testing.T) {
	cfg := Default()
	if len(cfg.Servers) != 0 {
		t.Errorf("expected no servers in default config, got %d", len(cfg.Servers))
	}
	if cfg.TOSAcknowledged {
		t.Error("expected TOSAcknowledged to default to false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate cleanly: %v", err)
	}
}
