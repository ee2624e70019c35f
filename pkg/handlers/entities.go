package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/storymine-hq/storymine-engine/pkg/apperrors"
	"github.com/storymine-hq/storymine-engine/pkg/models"
	"github.com/storymine-hq/storymine-engine/pkg/repositories"
	"github.com/storymine-hq/storymine-engine/pkg/storymap"
)

// EntityRelationshipsResponse is the co-occurrence listing payload.
type EntityRelationshipsResponse struct {
	Entity        string                      `json:"entity"`
	Relationships []models.EntityRelationship `json:"relationships"`
}

// EntitiesHandler handles entity listing and relationship requests.
type EntitiesHandler struct {
	entities repositories.EntityRepository
	upstream storymap.API
	logger   *zap.Logger
}

// NewEntitiesHandler creates a new EntitiesHandler.
func NewEntitiesHandler(entities repositories.EntityRepository, upstream storymap.API, logger *zap.Logger) *EntitiesHandler {
	return &EntitiesHandler{entities: entities, upstream: upstream, logger: logger}
}

// RegisterRoutes registers the entity handler's routes on the given mux.
func (h *EntitiesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/entities", h.List)
	mux.HandleFunc("GET /api/entities/{name}/relationships", h.Relationships)
}

// List handles GET /api/entities requests. The database answers when
// connected; otherwise the listing is proxied to StoryMap, and if that is
// also down an empty page goes back with 200.
func (h *EntitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	entityType := r.URL.Query().Get("type")
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := clampLimit(queryInt(r, "limit", defaultPageSize))

	result, err := h.entities.List(r.Context(), entityType, page, limit)
	if err == nil {
		h.writePage(w, result)
		return
	}
	if !errors.Is(err, apperrors.ErrDatabaseUnavailable) {
		h.logger.Error("Entity listing failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to list entities")
		return
	}

	h.proxyList(w, r, entityType, page, limit)
}

func (h *EntitiesHandler) proxyList(w http.ResponseWriter, r *http.Request, entityType string, page, limit int) {
	offset := (page - 1) * limit

	var res storymap.Result[storymap.EntityList]
	if entityType != "" {
		res = h.upstream.GetEntitiesByType(r.Context(), entityType, limit, offset)
	} else {
		res = h.upstream.GetEntities(r.Context(), limit, offset)
	}

	entityPage := &models.EntityPage{Entities: []models.Entity{}, Page: page, Limit: limit}
	if !res.Err {
		entityPage.Entities = res.Data.Entities
		entityPage.Total = len(res.Data.Entities)
	}
	h.writePage(w, entityPage)
}

// Relationships handles GET /api/entities/{name}/relationships requests.
// Strengths are in [0,1]; degraded mode answers an empty list with 200.
func (h *EntitiesHandler) Relationships(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	limit := clampLimit(queryInt(r, "limit", defaultPageSize))

	relationships, err := h.entities.Relationships(r.Context(), name, limit)
	if err != nil {
		if !errors.Is(err, apperrors.ErrDatabaseUnavailable) {
			h.logger.Error("Entity relationships lookup failed",
				zap.String("entity", name), zap.Error(err))
			_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to load relationships")
			return
		}
		relationships = []models.EntityRelationship{}
	}
	if relationships == nil {
		relationships = []models.EntityRelationship{}
	}

	response := EntityRelationshipsResponse{Entity: name, Relationships: relationships}
	if werr := WriteJSON(w, http.StatusOK, response); werr != nil {
		h.logger.Error("Failed to encode relationships response", zap.Error(werr))
	}
}

func (h *EntitiesHandler) writePage(w http.ResponseWriter, page *models.EntityPage) {
	if page.Entities == nil {
		page.Entities = []models.Entity{}
	}
	if err := WriteJSON(w, http.StatusOK, page); err != nil {
		h.logger.Error("Failed to encode entity page", zap.Error(err))
	}
}
