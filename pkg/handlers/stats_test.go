package handlers

import (
	"context"
	"net/http"
	"testing"

	"go.uber.org/zap"

	"github.com/storymine-hq/storymine-engine/pkg/models"
	"github.com/storymine-hq/storymine-engine/pkg/services"
	"github.com/storymine-hq/storymine-engine/pkg/storymap"
)

func onlineSnapshot() services.StatsSnapshot {
	earliest, latest := "1920", "1961"
	return services.StatsSnapshot{
		Status: services.StatusOnline,
		Source: "intelligence",
		ArchiveStats: models.ArchiveStats{
			Articles:      282388,
			Entities:      1061535,
			Relationships: 1219127,
			DateRange:     models.DateRange{Earliest: &earliest, Latest: &latest, Years: 42},
		},
	}
}

func TestDatabaseStats(t *testing.T) {
	mux := http.NewServeMux()
	NewStatsHandler(&mockStats{snapshot: onlineSnapshot()}, &mockUpstream{}, zap.NewNop()).RegisterRoutes(mux)

	rec := doRequest(t, mux, http.MethodGet, "/api/database/stats", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body services.StatsSnapshot
	decodeBody(t, rec, &body)
	if body.Status != services.StatusOnline || body.Articles != 282388 {
		t.Errorf("unexpected snapshot %+v", body)
	}
	if body.DateRange.Years != 42 {
		t.Errorf("expected 42 years, got %d", body.DateRange.Years)
	}
}

func TestDatabaseStats_OfflineStillAnswers200(t *testing.T) {
	mux := http.NewServeMux()
	offline := services.StatsSnapshot{Status: services.StatusOffline}
	NewStatsHandler(&mockStats{snapshot: offline}, &mockUpstream{}, zap.NewNop()).RegisterRoutes(mux)

	rec := doRequest(t, mux, http.MethodGet, "/api/database/stats", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("stats must never error, got %d", rec.Code)
	}
	var body services.StatsSnapshot
	decodeBody(t, rec, &body)
	if body.Status != services.StatusOffline || body.Articles != 0 {
		t.Errorf("expected a zeroed offline snapshot, got %+v", body)
	}
}

func TestStoryMapStats_ForcesDiscovery(t *testing.T) {
	upstream := &mockUpstream{
		discoverFn: func(ctx context.Context) string { return "http://localhost:5001" },
	}
	mux := http.NewServeMux()
	NewStatsHandler(&mockStats{snapshot: onlineSnapshot()}, upstream, zap.NewNop()).RegisterRoutes(mux)

	rec := doRequest(t, mux, http.MethodGet, "/api/storymap-stats", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if upstream.discoveryPasses != 1 {
		t.Errorf("expected exactly one discovery pass, got %d", upstream.discoveryPasses)
	}
	var body StoryMapStatsResponse
	decodeBody(t, rec, &body)
	if body.StoryMapAPI != "http://localhost:5001" {
		t.Errorf("expected the discovered URL, got %q", body.StoryMapAPI)
	}
}

func TestStoryMapStats_UnavailableUpstream(t *testing.T) {
	mux := http.NewServeMux()
	NewStatsHandler(&mockStats{snapshot: onlineSnapshot()}, &mockUpstream{}, zap.NewNop()).RegisterRoutes(mux)

	rec := doRequest(t, mux, http.MethodGet, "/api/storymap-stats", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 even with no upstream, got %d", rec.Code)
	}
	var body StoryMapStatsResponse
	decodeBody(t, rec, &body)
	if body.StoryMapAPI != storymap.Unavailable {
		t.Errorf("expected the unavailable sentinel, got %q", body.StoryMapAPI)
	}
}
