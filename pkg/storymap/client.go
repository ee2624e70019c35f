// Package storymap is the client for the external StoryMap data service.
//
// The service's deployment location varies across environments (container
// network alias, localhost on a few conventional ports), so the client
// probes an ordered candidate list and memoizes the first base URL that
// answers. Accessors never return Go errors; every call produces a uniform
// Result envelope so handlers can map failures without exception plumbing.
package storymap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/storymine-hq/storymine-engine/pkg/models"
)

// Unavailable is the sentinel returned by Discover when no candidate
// responds. Callers degrade gracefully instead of handling an error.
const Unavailable = "unavailable"

// probePath is a cheap known-good request used to test candidates.
const probePath = "/api/articles?limit=1"

// Config holds client construction parameters.
type Config struct {
	// Candidates is the ordered base URL list; the first entry is used for
	// typed calls until discovery memoizes a responsive one.
	Candidates []string
	// APIKey is sent as X-API-Key when set.
	APIKey         string
	ProbeTimeout   time.Duration
	RequestTimeout time.Duration
}

// Client locates and queries the StoryMap API. The remembered active URL is
// instance state guarded by a mutex; concurrent discoveries are
// last-write-wins.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger

	mu        sync.RWMutex
	activeURL string
}

// NewClient creates a StoryMap client. Timeouts default to the conventional
// 3s probe / 5s request bounds when unset.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 3 * time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     logger.Named("storymap"),
	}
}

// Result is the uniform envelope every accessor returns. Err distinguishes
// failure; Status and Message carry the classified failure detail.
type Result[T any] struct {
	Err     bool   `json:"error"`
	Status  int    `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data,omitempty"`
}

// ArticleList is the upstream article listing payload.
type ArticleList struct {
	Articles []models.Article `json:"articles"`
	Total    int              `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// EntityList is the upstream entity listing payload.
type EntityList struct {
	Entities []models.Entity `json:"entities"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
}

// SearchResult is the upstream search payload; results carry similarity
// scores assigned by StoryMap.
type SearchResult struct {
	Query   string           `json:"query"`
	Results []models.Article `json:"results"`
}

// FilterCriteria narrows a filtered article listing.
type FilterCriteria struct {
	Categories []string         `json:"categories,omitempty"`
	DateRange  *FilterDateRange `json:"date_range,omitempty"`
	Page       int              `json:"page,omitempty"`
	Limit      int              `json:"limit,omitempty"`
}

// FilterDateRange bounds a filter by publication date, YYYY-MM-DD inclusive.
type FilterDateRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// API is the upstream surface consumed by handlers and services.
type API interface {
	Discover(ctx context.Context) string
	ActiveURL() string
	GetArticles(ctx context.Context, limit, offset int) Result[ArticleList]
	GetArticleByID(ctx context.Context, id string) Result[models.Article]
	SearchArticles(ctx context.Context, query string, limit int) Result[SearchResult]
	GetEntities(ctx context.Context, limit, offset int) Result[EntityList]
	GetEntitiesByType(ctx context.Context, entityType string, limit, offset int) Result[EntityList]
	FilterArticles(ctx context.Context, criteria FilterCriteria) Result[ArticleList]
}

var _ API = (*Client)(nil)

// Discover probes the candidate list in order with a bounded-timeout GET on
// a cheap known-good path. The first candidate answering 200 becomes the
// active URL for subsequent typed calls and is returned. When no candidate
// responds, Discover returns the Unavailable sentinel and leaves the
// previously remembered URL untouched.
//
// Discovery is on-demand only: it runs when a caller wants freshness (the
// stats endpoint, startup), never on a schedule.
func (c *Client) Discover(ctx context.Context) string {
	for _, candidate := range c.cfg.Candidates {
		probeCtx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
		ok := c.probe(probeCtx, candidate)
		cancel()
		if ok {
			c.mu.Lock()
			c.activeURL = candidate
			c.mu.Unlock()
			c.logger.Info("StoryMap API discovered", zap.String("base_url", candidate))
			return candidate
		}
	}
	c.logger.Warn("No StoryMap API candidate responded",
		zap.Int("candidates", len(c.cfg.Candidates)))
	return Unavailable
}

func (c *Client) probe(ctx context.Context, baseURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+probePath, nil)
	if err != nil {
		return false
	}
	c.setHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// ActiveURL returns the memoized base URL, or the first candidate when
// discovery has never succeeded.
func (c *Client) ActiveURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.activeURL != "" {
		return c.activeURL
	}
	if len(c.cfg.Candidates) > 0 {
		return c.cfg.Candidates[0]
	}
	return ""
}

// GetArticles fetches a page of articles.
func (c *Client) GetArticles(ctx context.Context, limit, offset int) Result[ArticleList] {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	return do[ArticleList](c, ctx, http.MethodGet, "/api/articles", q, nil)
}

// GetArticleByID fetches a single article with its entities attached.
func (c *Client) GetArticleByID(ctx context.Context, id string) Result[models.Article] {
	return do[models.Article](c, ctx, http.MethodGet, "/api/articles/"+url.PathEscape(id), nil, nil)
}

// SearchArticles runs a relevance search. The upstream accepts POST with a
// JSON body even though the public surface of this service exposes GET.
func (c *Client) SearchArticles(ctx context.Context, query string, limit int) Result[SearchResult] {
	body := map[string]any{"query": query, "limit": limit}
	return do[SearchResult](c, ctx, http.MethodPost, "/api/search", nil, body)
}

// GetEntities fetches a page of entities.
func (c *Client) GetEntities(ctx context.Context, limit, offset int) Result[EntityList] {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	return do[EntityList](c, ctx, http.MethodGet, "/api/entities", q, nil)
}

// GetEntitiesByType fetches a page of entities of one type tag.
func (c *Client) GetEntitiesByType(ctx context.Context, entityType string, limit, offset int) Result[EntityList] {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	return do[EntityList](c, ctx, http.MethodGet, "/api/entities/"+url.PathEscape(entityType), q, nil)
}

// FilterArticles fetches articles matching the given criteria.
func (c *Client) FilterArticles(ctx context.Context, criteria FilterCriteria) Result[ArticleList] {
	return do[ArticleList](c, ctx, http.MethodPost, "/api/filter", nil, criteria)
}

// do is the shared request helper behind every typed accessor. It issues the
// request against the active URL with the request timeout, classifies
// failures uniformly, and decodes successful bodies into T.
func do[T any](c *Client, ctx context.Context, method, path string, q url.Values, body any) Result[T] {
	var result Result[T]

	target := c.ActiveURL()
	if target == "" {
		return localError[T]("no StoryMap API candidates configured")
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return localError[T](fmt.Sprintf("failed to encode request: %v", err))
		}
		reqBody = bytes.NewReader(data)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, target+path, reqBody)
	if err != nil {
		return localError[T](fmt.Sprintf("failed to build request: %v", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Request sent but nothing came back: timeout, refused connection,
		// DNS failure. The caller sees a plain 503.
		c.logger.Debug("StoryMap request got no response",
			zap.String("path", path), zap.Error(err))
		result.Err = true
		result.Status = http.StatusServiceUnavailable
		result.Message = "no response from StoryMap API"
		return result
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return localError[T](fmt.Sprintf("failed to read response: %v", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result.Err = true
		result.Status = resp.StatusCode
		result.Message = upstreamMessage(data, resp.StatusCode)
		return result
	}

	if err := json.Unmarshal(data, &result.Data); err != nil {
		return localError[T](fmt.Sprintf("failed to decode response: %v", err))
	}
	result.Status = resp.StatusCode
	return result
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}
}

// localError classifies failures where the request could not even be
// constructed or its response consumed.
func localError[T any](message string) Result[T] {
	var result Result[T]
	result.Err = true
	result.Status = http.StatusInternalServerError
	result.Message = message
	return result
}

// upstreamMessage extracts a safe error message from a non-2xx body.
func upstreamMessage(body []byte, status int) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return http.StatusText(status)
}
