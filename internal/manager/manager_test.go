package manager

import (
	"testing"

	"github.com/arcwing/gatecore/internal/config"
)

type fakeStore struct {
	cfg *config.Configuration
}

func (f *fakeStore) Load() (*config.Configuration, error) { return f.cfg, nil }
func (f *fakeStore) Save(cfg *config.Configuration) error  { f.cfg = cfg; return nil }

func newTestManager(cfg *config.Configuration) *SessionManager {
	return NewSessionManager("test-token", &fakeStore{cfg: cfg}, nil)
}

func TestJoinRejectsWhenTOSNotAcknowledged(t *testing.T) {
	m := newTestManager(&config.Configuration{TOSAcknowledged: false})

	err := m.Join("server-1")
	if err != ErrTOSNotAcknowledged {
		t.Errorf("Join() = %v, want ErrTOSNotAcknowledged", err)
	}
}

func TestJoinRejectsUnknownServer(t *testing.T) {
	m := newTestManager(&config.Configuration{TOSAcknowledged: true})

	err := m.Join("missing")
	if err != ErrServerNotFound {
		t.Errorf("Join() = %v, want ErrServerNotFound", err)
	}
}

func TestJoinRejectsTooManyConnections(t *testing.T) {
	cfg := &config.Configuration{TOSAcknowledged: true}
	for i := 0; i < config.MaxServerEntries+1; i++ {
		cfg.Servers = append(cfg.Servers, config.ServerEntry{
			ID:        string(rune('a' + i)),
			GuildID:   "g",
			ChannelID: "c",
			Priority:  1,
		})
	}
	m := newTestManager(cfg)

	for i := 0; i < config.MaxServerEntries; i++ {
		m.mu.Lock()
		m.sessions[cfg.Servers[i].ID] = &Session{
			serverEntry: cfg.Servers[i],
			state:       &SessionState{ConnectionStatus: StatusConnected},
		}
		m.mu.Unlock()
	}

	err := m.Join(cfg.Servers[config.MaxServerEntries].ID)
	if err != ErrTooManyConnections {
		t.Errorf("Join() = %v, want ErrTooManyConnections", err)
	}
}

func TestExitOnUnknownServerReturnsErrNotConnected(t *testing.T) {
	m := newTestManager(&config.Configuration{TOSAcknowledged: true})

	if err := m.Exit("missing"); err != ErrNotConnected {
		t.Errorf("Exit() = %v, want ErrNotConnected", err)
	}
}

func TestGetStatusDefaultsToDisconnected(t *testing.T) {
	m := newTestManager(&config.Configuration{TOSAcknowledged: true})

	status, err := m.GetStatus("never-joined")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != StatusDisconnected {
		t.Errorf("GetStatus() = %v, want StatusDisconnected", status)
	}
}

func TestGetAllStatusesReflectsSessions(t *testing.T) {
	m := newTestManager(&config.Configuration{TOSAcknowledged: true})

	m.mu.Lock()
	m.sessions["server-1"] = &Session{
		serverEntry: config.ServerEntry{ID: "server-1"},
		state:       &SessionState{ConnectionStatus: StatusConnecting},
	}
	m.mu.Unlock()

	statuses := m.GetAllStatuses()
	if statuses["server-1"] != StatusConnecting {
		t.Errorf("GetAllStatuses()[server-1] = %v, want StatusConnecting", statuses["server-1"])
	}
}
