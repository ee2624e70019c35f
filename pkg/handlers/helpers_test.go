package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/storymine-hq/storymine-engine/pkg/models"
	"github.com/storymine-hq/storymine-engine/pkg/services"
	"github.com/storymine-hq/storymine-engine/pkg/storymap"
)

// mockUpstream implements storymap.API with overridable call functions. The
// zero value reports every call as a 503.
type mockUpstream struct {
	discoverFn      func(ctx context.Context) string
	activeURL       string
	articlesFn      func(ctx context.Context, limit, offset int) storymap.Result[storymap.ArticleList]
	articleByIDFn   func(ctx context.Context, id string) storymap.Result[models.Article]
	searchFn        func(ctx context.Context, query string, limit int) storymap.Result[storymap.SearchResult]
	entitiesFn      func(ctx context.Context, limit, offset int) storymap.Result[storymap.EntityList]
	entityByTypeFn  func(ctx context.Context, entityType string, limit, offset int) storymap.Result[storymap.EntityList]
	filterFn        func(ctx context.Context, criteria storymap.FilterCriteria) storymap.Result[storymap.ArticleList]
	discoveryPasses int
}

func offline[T any]() storymap.Result[T] {
	var r storymap.Result[T]
	r.Err = true
	r.Status = http.StatusServiceUnavailable
	r.Message = "no response from StoryMap API"
	return r
}

func (m *mockUpstream) Discover(ctx context.Context) string {
	m.discoveryPasses++
	if m.discoverFn != nil {
		return m.discoverFn(ctx)
	}
	return storymap.Unavailable
}

func (m *mockUpstream) ActiveURL() string {
	if m.activeURL != "" {
		return m.activeURL
	}
	return "http://storymap-api:5001"
}

func (m *mockUpstream) GetArticles(ctx context.Context, limit, offset int) storymap.Result[storymap.ArticleList] {
	if m.articlesFn != nil {
		return m.articlesFn(ctx, limit, offset)
	}
	return offline[storymap.ArticleList]()
}

func (m *mockUpstream) GetArticleByID(ctx context.Context, id string) storymap.Result[models.Article] {
	if m.articleByIDFn != nil {
		return m.articleByIDFn(ctx, id)
	}
	return offline[models.Article]()
}

func (m *mockUpstream) SearchArticles(ctx context.Context, query string, limit int) storymap.Result[storymap.SearchResult] {
	if m.searchFn != nil {
		return m.searchFn(ctx, query, limit)
	}
	return offline[storymap.SearchResult]()
}

func (m *mockUpstream) GetEntities(ctx context.Context, limit, offset int) storymap.Result[storymap.EntityList] {
	if m.entitiesFn != nil {
		return m.entitiesFn(ctx, limit, offset)
	}
	return offline[storymap.EntityList]()
}

func (m *mockUpstream) GetEntitiesByType(ctx context.Context, entityType string, limit, offset int) storymap.Result[storymap.EntityList] {
	if m.entityByTypeFn != nil {
		return m.entityByTypeFn(ctx, entityType, limit, offset)
	}
	return offline[storymap.EntityList]()
}

func (m *mockUpstream) FilterArticles(ctx context.Context, criteria storymap.FilterCriteria) storymap.Result[storymap.ArticleList] {
	if m.filterFn != nil {
		return m.filterFn(ctx, criteria)
	}
	return offline[storymap.ArticleList]()
}

var _ storymap.API = (*mockUpstream)(nil)

// mockArticles implements repositories.ArticleRepository.
type mockArticles struct {
	listFn    func(ctx context.Context, filter models.ArticleFilter) (*models.ArticlePage, error)
	getByIDFn func(ctx context.Context, id string) (*models.Article, error)
}

func (m *mockArticles) List(ctx context.Context, filter models.ArticleFilter) (*models.ArticlePage, error) {
	return m.listFn(ctx, filter)
}

func (m *mockArticles) GetByID(ctx context.Context, id string) (*models.Article, error) {
	return m.getByIDFn(ctx, id)
}

// mockEntities implements repositories.EntityRepository.
type mockEntities struct {
	listFn          func(ctx context.Context, entityType string, page, limit int) (*models.EntityPage, error)
	relationshipsFn func(ctx context.Context, name string, limit int) ([]models.EntityRelationship, error)
}

func (m *mockEntities) List(ctx context.Context, entityType string, page, limit int) (*models.EntityPage, error) {
	return m.listFn(ctx, entityType, page, limit)
}

func (m *mockEntities) Relationships(ctx context.Context, name string, limit int) ([]models.EntityRelationship, error) {
	return m.relationshipsFn(ctx, name, limit)
}

// mockChat implements services.ChatService.
type mockChat struct {
	respondFn func(ctx context.Context, message string) services.ChatResponse
}

func (m *mockChat) Respond(ctx context.Context, message string) services.ChatResponse {
	return m.respondFn(ctx, message)
}

// mockStats implements services.StatsService.
type mockStats struct {
	snapshot services.StatsSnapshot
}

func (m *mockStats) ArchiveStats(ctx context.Context) services.StatsSnapshot {
	return m.snapshot
}

// doRequest runs one request through the mux and returns the recorder.
func doRequest(t *testing.T, mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

// decodeBody unmarshals the recorded response body into v.
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response body %q: %v", rec.Body.String(), err)
	}
}
