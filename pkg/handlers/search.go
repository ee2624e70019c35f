package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/storymine-hq/storymine-engine/pkg/models"
	"github.com/storymine-hq/storymine-engine/pkg/storymap"
)

const defaultSearchLimit = 10

// searchTypes are the accepted search variants. All of them resolve to the
// same upstream search; the distinction is StoryMap's to make and is echoed
// back for the frontend.
var searchTypes = map[string]bool{
	"semantic": true,
	"keyword":  true,
	"hybrid":   true,
}

// SearchResponse is the search endpoint payload.
type SearchResponse struct {
	Status     string           `json:"status"`
	Query      string           `json:"query"`
	SearchType string           `json:"search_type"`
	Count      int              `json:"count"`
	Results    []models.Article `json:"results"`
}

// SearchHandler handles archive search requests by proxying the StoryMap
// search.
type SearchHandler struct {
	upstream storymap.API
	logger   *zap.Logger
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(upstream storymap.API, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{upstream: upstream, logger: logger}
}

// RegisterRoutes registers the search handler's routes on the given mux.
func (h *SearchHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/search", h.Search)
	mux.HandleFunc("GET /api/search/{searchType}", h.Search)
}

// Search handles GET /api/search and GET /api/search/{searchType} requests.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	searchType := r.PathValue("searchType")
	if searchType == "" {
		searchType = "semantic"
	}
	if !searchTypes[searchType] {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_search_type",
			"search type must be one of semantic, keyword, hybrid")
		return
	}

	query := r.URL.Query().Get("query")
	if query == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_query", "query parameter is required")
		return
	}
	limit := clampLimit(queryInt(r, "limit", defaultSearchLimit))

	res := h.upstream.SearchArticles(r.Context(), query, limit)
	if res.Err {
		h.logger.Warn("Upstream search failed",
			zap.Int("status", res.Status), zap.String("message", res.Message))
		_ = ErrorResponse(w, http.StatusServiceUnavailable, "upstream_unavailable", res.Message)
		return
	}

	results := res.Data.Results
	if results == nil {
		results = []models.Article{}
	}
	response := SearchResponse{
		Status:     "success",
		Query:      query,
		SearchType: searchType,
		Count:      len(results),
		Results:    results,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode search response", zap.Error(err))
	}
}
