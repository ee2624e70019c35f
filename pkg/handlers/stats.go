package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/storymine-hq/storymine-engine/pkg/services"
)

// upstreamDiscoverer re-runs StoryMap discovery on demand. Satisfied by
// *storymap.Client.
type upstreamDiscoverer interface {
	Discover(ctx context.Context) string
	ActiveURL() string
}

// StoryMapStatsResponse extends the archive snapshot with the upstream
// location resolved by a fresh discovery pass.
type StoryMapStatsResponse struct {
	services.StatsSnapshot
	StoryMapAPI string `json:"storymap_api"`
}

// StatsHandler handles the archive statistics endpoints.
type StatsHandler struct {
	stats    services.StatsService
	upstream upstreamDiscoverer
	logger   *zap.Logger
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(stats services.StatsService, upstream upstreamDiscoverer, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{stats: stats, upstream: upstream, logger: logger}
}

// RegisterRoutes registers the stats handler's routes on the given mux.
func (h *StatsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/database/stats", h.DatabaseStats)
	mux.HandleFunc("GET /api/storymap-stats", h.StoryMapStats)
}

// DatabaseStats handles GET /api/database/stats requests. The tiered
// accessor never errors, so this endpoint is always a 200.
func (h *StatsHandler) DatabaseStats(w http.ResponseWriter, r *http.Request) {
	snapshot := h.stats.ArchiveStats(r.Context())
	if err := WriteJSON(w, http.StatusOK, snapshot); err != nil {
		h.logger.Error("Failed to encode stats response", zap.Error(err))
	}
}

// StoryMapStats handles GET /api/storymap-stats requests. This is the one
// endpoint that forces upstream re-discovery, so its answer reflects the
// current deployment topology rather than the memoized URL.
func (h *StatsHandler) StoryMapStats(w http.ResponseWriter, r *http.Request) {
	discovered := h.upstream.Discover(r.Context())

	response := StoryMapStatsResponse{
		StatsSnapshot: h.stats.ArchiveStats(r.Context()),
		StoryMapAPI:   discovered,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode storymap stats response", zap.Error(err))
	}
}
