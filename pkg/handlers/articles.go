package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/storymine-hq/storymine-engine/pkg/apperrors"
	"github.com/storymine-hq/storymine-engine/pkg/models"
	"github.com/storymine-hq/storymine-engine/pkg/repositories"
	"github.com/storymine-hq/storymine-engine/pkg/storymap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ArticlesHandler handles article listing and lookup requests.
type ArticlesHandler struct {
	articles repositories.ArticleRepository
	upstream storymap.API
	logger   *zap.Logger
}

// NewArticlesHandler creates a new ArticlesHandler.
func NewArticlesHandler(articles repositories.ArticleRepository, upstream storymap.API, logger *zap.Logger) *ArticlesHandler {
	return &ArticlesHandler{articles: articles, upstream: upstream, logger: logger}
}

// RegisterRoutes registers the article handler's routes on the given mux.
func (h *ArticlesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/articles", h.List)
	mux.HandleFunc("GET /api/articles/{id}", h.GetByID)
	mux.HandleFunc("POST /api/filter", h.Filter)
}

// List handles GET /api/articles requests. Without a database connection it
// answers an empty page with 200 rather than erroring; the frontend renders
// the degraded state itself.
func (h *ArticlesHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := models.ArticleFilter{
		Publication: r.URL.Query().Get("publication"),
		Section:     r.URL.Query().Get("section"),
		From:        r.URL.Query().Get("from"),
		To:          r.URL.Query().Get("to"),
		Page:        queryInt(r, "page", 1),
		Limit:       clampLimit(queryInt(r, "limit", defaultPageSize)),
	}
	if filter.Page < 1 {
		filter.Page = 1
	}

	page, err := h.articles.List(r.Context(), filter)
	if err != nil {
		if errors.Is(err, apperrors.ErrDatabaseUnavailable) {
			h.writePage(w, &models.ArticlePage{
				Articles: []models.Article{},
				Page:     filter.Page,
				Limit:    filter.Limit,
			})
			return
		}
		h.logger.Error("Article listing failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to list articles")
		return
	}
	h.writePage(w, page)
}

// GetByID handles GET /api/articles/{id} requests. When the database is
// degraded the lookup is proxied to the StoryMap service.
func (h *ArticlesHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	article, err := h.articles.GetByID(r.Context(), id)
	if err == nil {
		if werr := WriteJSON(w, http.StatusOK, article); werr != nil {
			h.logger.Error("Failed to encode article response", zap.Error(werr))
		}
		return
	}

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "article not found")
	case errors.Is(err, apperrors.ErrDatabaseUnavailable):
		h.proxyGetByID(w, r, id)
	default:
		h.logger.Error("Article lookup failed", zap.String("id", id), zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to load article")
	}
}

func (h *ArticlesHandler) proxyGetByID(w http.ResponseWriter, r *http.Request, id string) {
	res := h.upstream.GetArticleByID(r.Context(), id)
	if res.Err {
		if res.Status == http.StatusNotFound {
			_ = ErrorResponse(w, http.StatusNotFound, "not_found", "article not found")
			return
		}
		_ = ErrorResponse(w, http.StatusServiceUnavailable, "upstream_unavailable", res.Message)
		return
	}
	if err := WriteJSON(w, http.StatusOK, res.Data); err != nil {
		h.logger.Error("Failed to encode article response", zap.Error(err))
	}
}

// Filter handles POST /api/filter requests, proxying category and date-range
// filtering to StoryMap, which owns the category taxonomy.
func (h *ArticlesHandler) Filter(w http.ResponseWriter, r *http.Request) {
	var criteria storymap.FilterCriteria
	if err := json.NewDecoder(r.Body).Decode(&criteria); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "malformed filter criteria")
		return
	}

	res := h.upstream.FilterArticles(r.Context(), criteria)
	if res.Err {
		_ = ErrorResponse(w, http.StatusServiceUnavailable, "upstream_unavailable", res.Message)
		return
	}
	if res.Data.Articles == nil {
		res.Data.Articles = []models.Article{}
	}
	if err := WriteJSON(w, http.StatusOK, res.Data); err != nil {
		h.logger.Error("Failed to encode filter response", zap.Error(err))
	}
}

func (h *ArticlesHandler) writePage(w http.ResponseWriter, page *models.ArticlePage) {
	if err := WriteJSON(w, http.StatusOK, page); err != nil {
		h.logger.Error("Failed to encode article page", zap.Error(err))
	}
}

// queryInt parses an integer query parameter, falling back to def on absence
// or garbage.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func clampLimit(limit int) int {
	if limit < 1 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}
