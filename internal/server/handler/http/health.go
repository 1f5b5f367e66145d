package http

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports database reachability. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

const healthPingTimeout = 2 * time.Second

// HealthHandler serves GET /api/health.
type HealthHandler struct {
	DB Pinger
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Health always answers 200; the database field tells whether the store is
// reachable.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	res := HealthResponse{Status: "Backend is running", Database: "connected"}

	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()
	if h.DB == nil || h.DB.PingContext(ctx) != nil {
		res.Database = "disconnected"
	}
	writeJSON(w, http.StatusOK, res)
}
