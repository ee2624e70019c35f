package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/storymine-hq/storymine-engine/pkg/config"
)

// connectionState reports whether the database pool is live. Satisfied by
// *database.Manager.
type connectionState interface {
	Connected() bool
}

// upstreamLocator reports the remembered StoryMap base URL. Satisfied by
// *storymap.Client.
type upstreamLocator interface {
	ActiveURL() string
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
	Database    string `json:"database"`
	StoryMapAPI string `json:"storymap_api"`
}

// HealthHandler handles the health check endpoint.
type HealthHandler struct {
	cfg      *config.Config
	db       connectionState
	upstream upstreamLocator
	logger   *zap.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(cfg *config.Config, db connectionState, upstream upstreamLocator, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, db: db, upstream: upstream, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.Health)
}

// Health handles GET /api/health requests. The endpoint always answers 200;
// database and upstream state are reported as sub-statuses so the process
// stays routable while degraded.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	database := "connected"
	if !h.db.Connected() {
		database = "degraded"
	}

	response := HealthResponse{
		Status:      "OK",
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Version:     h.cfg.Version,
		Environment: h.cfg.Env,
		Database:    database,
		StoryMapAPI: h.upstream.ActiveURL(),
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}
