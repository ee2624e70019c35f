package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/storymine-hq/storymine-engine/pkg/models"
)

// connectionState is the slice of the database manager the stats service
// needs. Satisfied by *database.Manager.
type connectionState interface {
	Connected() bool
}

// Archive availability states reported by the stats endpoints.
const (
	StatusOnline   = "online"   // primary tier answered with data
	StatusDegraded = "degraded" // fallback tier answered, or no tier had data
	StatusOffline  = "offline"  // no database connection
)

const statsCacheKey = "storymine:archive-stats"

// StatsSnapshot is the external stats contract.
type StatsSnapshot struct {
	Status string `json:"status"`
	Source string `json:"source,omitempty"` // which tier answered
	models.ArchiveStats
}

// TierProbe asks one table set for its counts. A probe error means "this
// tier is absent", never a fatal failure.
type TierProbe struct {
	Name   string
	Counts func(ctx context.Context) (*models.ArchiveStats, error)
}

// StatsService produces the tiered archive statistics.
type StatsService interface {
	ArchiveStats(ctx context.Context) StatsSnapshot
}

type statsService struct {
	db       connectionState
	probes   []TierProbe
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewStatsService creates the tiered stats accessor. Probes are tried in
// order; the first tier reporting any article or entity wins outright, even
// if a later tier would report more. cache may be nil (caching disabled).
func NewStatsService(db connectionState, probes []TierProbe, cache *redis.Client, cacheTTL time.Duration, logger *zap.Logger) StatsService {
	return &statsService{
		db:       db,
		probes:   probes,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.Named("stats"),
	}
}

var _ StatsService = (*statsService)(nil)

// ArchiveStats walks the tier probes under the precedence rule and
// normalizes whichever tier answered into one snapshot. Every failure mode
// degrades to a zeroed snapshot; this endpoint never errors.
func (s *statsService) ArchiveStats(ctx context.Context) StatsSnapshot {
	if !s.db.Connected() {
		return StatsSnapshot{Status: StatusOffline}
	}

	if cached, ok := s.fromCache(ctx); ok {
		return cached
	}

	snapshot := StatsSnapshot{Status: StatusDegraded}
	for i, probe := range s.probes {
		counts, err := probe.Counts(ctx)
		if err != nil {
			// Covers query errors and timeouts alike: the tier is absent.
			s.logger.Debug("Stats tier absent",
				zap.String("tier", probe.Name), zap.Error(err))
			continue
		}
		if counts.HasData() {
			snapshot.ArchiveStats = *counts
			snapshot.Source = probe.Name
			if i == 0 {
				snapshot.Status = StatusOnline
			}
			break
		}
	}

	s.toCache(ctx, snapshot)
	return snapshot
}

func (s *statsService) fromCache(ctx context.Context) (StatsSnapshot, bool) {
	if s.cache == nil {
		return StatsSnapshot{}, false
	}
	data, err := s.cache.Get(ctx, statsCacheKey).Bytes()
	if err != nil {
		return StatsSnapshot{}, false
	}
	var snapshot StatsSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return StatsSnapshot{}, false
	}
	return snapshot, true
}

func (s *statsService) toCache(ctx context.Context, snapshot StatsSnapshot) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, statsCacheKey, data, s.cacheTTL).Err(); err != nil {
		s.logger.Debug("Stats cache write failed", zap.Error(err))
	}
}
