package repositories

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/storymine-hq/storymine-engine/pkg/apperrors"
	"github.com/storymine-hq/storymine-engine/pkg/database"
	"github.com/storymine-hq/storymine-engine/pkg/models"
)

// StatsRepository answers per-tier aggregate counts. The intelligence tables
// are the primary tier; the legacy archive tables are the fallback. Tier
// precedence itself lives in the stats service.
type StatsRepository interface {
	IntelligenceCounts(ctx context.Context) (*models.ArchiveStats, error)
	LegacyCounts(ctx context.Context) (*models.ArchiveStats, error)
}

type statsRepository struct {
	db           *database.Manager
	queryTimeout time.Duration
}

// NewStatsRepository creates a StatsRepository over the managed pool.
func NewStatsRepository(db *database.Manager, queryTimeout time.Duration) StatsRepository {
	return &statsRepository{db: db, queryTimeout: queryTimeout}
}

var _ StatsRepository = (*statsRepository)(nil)

func (r *statsRepository) IntelligenceCounts(ctx context.Context) (*models.ArchiveStats, error) {
	return r.tierCounts(ctx, tierTables{
		articles:      "intelligence_articles",
		entities:      "intelligence_entities",
		relationships: "intelligence_relationships",
		dateColumn:    "publication_date",
	})
}

func (r *statsRepository) LegacyCounts(ctx context.Context) (*models.ArchiveStats, error) {
	return r.tierCounts(ctx, tierTables{
		articles:      "articles",
		entities:      "entities",
		relationships: "relationships",
		dateColumn:    "publish_date",
	})
}

type tierTables struct {
	articles      string
	entities      string
	relationships string
	dateColumn    string
}

// tierCounts runs the four aggregate queries for one table set. Every query
// carries its own timeout; any failure marks the whole tier absent, which the
// caller treats as "try the next tier", not as a fatal error.
func (r *statsRepository) tierCounts(ctx context.Context, tables tierTables) (*models.ArchiveStats, error) {
	db := r.db.Get()
	if db == nil {
		return nil, apperrors.ErrDatabaseUnavailable
	}

	stats := &models.ArchiveStats{}

	var err error
	if stats.Articles, err = r.countRows(ctx, db, tables.articles); err != nil {
		return nil, err
	}
	if stats.Entities, err = r.countRows(ctx, db, tables.entities); err != nil {
		return nil, err
	}
	if stats.Relationships, err = r.countRows(ctx, db, tables.relationships); err != nil {
		return nil, err
	}

	earliest, latest, err := r.yearBounds(ctx, db, tables.articles, tables.dateColumn)
	if err != nil {
		return nil, err
	}
	stats.DateRange = yearRange(earliest, latest)

	return stats, nil
}

func (r *statsRepository) countRows(ctx context.Context, db *database.DB, table string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	var count int
	// Table names come from the fixed tier definitions above, never from
	// request input.
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
	if err := db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count, nil
}

func (r *statsRepository) yearBounds(ctx context.Context, db *database.DB, table, dateColumn string) (*int, *int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := fmt.Sprintf(
		"SELECT MIN(EXTRACT(YEAR FROM %[1]s))::int, MAX(EXTRACT(YEAR FROM %[1]s))::int FROM %[2]s",
		dateColumn, table)

	var earliest, latest *int
	if err := db.QueryRow(ctx, query).Scan(&earliest, &latest); err != nil {
		return nil, nil, fmt.Errorf("failed to query year bounds for %s: %w", table, err)
	}
	return earliest, latest, nil
}

// yearRange normalizes year bounds into the external DateRange shape:
// years = latest - earliest + 1 only when both bounds exist, otherwise both
// bounds are null and years is 0.
func yearRange(earliest, latest *int) models.DateRange {
	if earliest == nil || latest == nil {
		return models.DateRange{}
	}
	e := strconv.Itoa(*earliest)
	l := strconv.Itoa(*latest)
	return models.DateRange{
		Earliest: &e,
		Latest:   &l,
		Years:    *latest - *earliest + 1,
	}
}
