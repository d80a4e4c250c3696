package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"

	"github.com/arcwing/gatecore/internal/manager"
	"github.com/arcwing/gatecore/internal/ws"
)

var startTime = time.Now()

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string          `json:"status"`
	Uptime      string          `json:"uptime"`
	UptimeSecs  int64           `json:"uptime_secs"`
	Timestamp   string          `json:"timestamp"`
	Connections ConnectionsInfo `json:"connections"`
	Runtime     RuntimeInfo     `json:"runtime"`
	Memory      MemoryInfo      `json:"memory"`
}

// ConnectionsInfo contains connection statistics.
type ConnectionsInfo struct {
	ActiveSessions   int               `json:"active_sessions"`
	WebSocketClients int               `json:"websocket_clients"`
	SessionStatuses  map[string]string `json:"session_statuses,omitempty"`
}

// RuntimeInfo contains Go runtime information.
type RuntimeInfo struct {
	GoVersion    string `json:"go_version"`
	NumCPU       int    `json:"num_cpu"`
	NumGoroutine int    `json:"num_goroutine"`
	GOOS         string `json:"goos"`
	GOARCH       string `json:"goarch"`
}

// MemoryInfo contains memory statistics.
type MemoryInfo struct {
	Alloc      string `json:"alloc"`
	TotalAlloc string `json:"total_alloc"`
	Sys        string `json:"sys"`
	NumGC      uint32 `json:"num_gc"`
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	manager *manager.SessionManager
	hub     *ws.Hub
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(mgr *manager.SessionManager, hub *ws.Hub) *HealthHandler {
	return &HealthHandler{
		manager: mgr,
		hub:     hub,
	}
}

// Health handles GET/HEAD /health requests.
// Returns detailed health information as JSON.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	// For HEAD requests, just return 200
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	uptime := time.Since(startTime)

	// Get memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	// Build connection info
	connInfo := ConnectionsInfo{
		ActiveSessions:   0,
		WebSocketClients: 0,
	}

	if h.manager != nil {
		statuses := h.manager.GetAllStatuses()
		connInfo.ActiveSessions = len(statuses)
		connInfo.SessionStatuses = make(map[string]string)
		for id, status := range statuses {
			connInfo.SessionStatuses[id] = string(status)
		}
	}

	if h.hub != nil {
		connInfo.WebSocketClients = h.hub.ClientCount()
	}

	response := HealthResponse{
		Status:      "healthy",
		Uptime:      durafmt.Parse(uptime.Round(time.Second)).String(),
		UptimeSecs:  int64(uptime.Seconds()),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Connections: connInfo,
		Runtime: RuntimeInfo{
			GoVersion:    runtime.Version(),
			NumCPU:       runtime.NumCPU(),
			NumGoroutine: runtime.NumGoroutine(),
			GOOS:         runtime.GOOS,
			GOARCH:       runtime.GOARCH,
		},
		Memory: MemoryInfo{
			Alloc:      humanize.Bytes(memStats.Alloc),
			TotalAlloc: humanize.Bytes(memStats.TotalAlloc),
			Sys:        humanize.Bytes(memStats.Sys),
			NumGC:      memStats.NumGC,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
