package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/storymine-hq/storymine-engine/pkg/apperrors"
	"github.com/storymine-hq/storymine-engine/pkg/database"
	"github.com/storymine-hq/storymine-engine/pkg/models"
)

// EntityRepository provides read access to the archive's entity tables.
type EntityRepository interface {
	List(ctx context.Context, entityType string, page, limit int) (*models.EntityPage, error)
	Relationships(ctx context.Context, name string, limit int) ([]models.EntityRelationship, error)
}

type entityRepository struct {
	db           *database.Manager
	queryTimeout time.Duration
}

// NewEntityRepository creates an EntityRepository over the managed pool.
func NewEntityRepository(db *database.Manager, queryTimeout time.Duration) EntityRepository {
	return &entityRepository{db: db, queryTimeout: queryTimeout}
}

var _ EntityRepository = (*entityRepository)(nil)

func (r *entityRepository) List(ctx context.Context, entityType string, page, limit int) (*models.EntityPage, error) {
	db := r.db.Get()
	if db == nil {
		return nil, apperrors.ErrDatabaseUnavailable
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = defaultPageSize
	}

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	list := psql.
		Select("e.id", "e.name", "e.entity_type", "COUNT(r.article_id) AS article_count").
		From("entities e").
		LeftJoin("relationships r ON r.entity_id = e.id").
		GroupBy("e.id", "e.name", "e.entity_type").
		OrderBy("article_count DESC", "e.name").
		Limit(uint64(limit)).
		Offset(uint64((page - 1) * limit))
	count := psql.Select("COUNT(*)").From("entities e")

	if entityType != "" {
		list = list.Where("e.entity_type = ?", entityType)
		count = count.Where("e.entity_type = ?", entityType)
	}

	sqlStr, args, err := count.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build entity count query: %w", err)
	}
	var total int
	if err := db.QueryRow(ctx, sqlStr, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count entities: %w", err)
	}

	sqlStr, args, err = list.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build entity list query: %w", err)
	}
	rows, err := db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	entities := make([]models.Entity, 0, limit)
	for rows.Next() {
		var e models.Entity
		if err := rows.Scan(&e.ID, &e.Name, &e.Type, &e.ArticleCount); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entities: %w", err)
	}

	return &models.EntityPage{
		Entities: entities,
		Total:    total,
		Page:     page,
		Limit:    limit,
	}, nil
}

// Relationships lists the entities co-occurring with the named entity,
// strongest first. Strength is the share of the named entity's articles the
// co-occurring entity also appears in, so it always lands in [0,1]. The
// legacy relationships table may hold one row per mention rather than per
// article, so both sides count distinct articles.
func (r *entityRepository) Relationships(ctx context.Context, name string, limit int) ([]models.EntityRelationship, error) {
	db := r.db.Get()
	if db == nil {
		return nil, apperrors.ErrDatabaseUnavailable
	}

	if limit < 1 || limit > 100 {
		limit = defaultPageSize
	}

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `
		WITH target AS (
			SELECT id FROM entities WHERE LOWER(name) = LOWER($1)
		),
		target_articles AS (
			SELECT DISTINCT r.article_id
			FROM relationships r
			JOIN target t ON t.id = r.entity_id
		)
		SELECT e.id, e.name, e.entity_type,
		       COUNT(DISTINCT r.article_id) AS co_occurrences,
		       COUNT(DISTINCT r.article_id)::float / GREATEST((SELECT COUNT(*) FROM target_articles), 1) AS strength
		FROM relationships r
		JOIN target_articles ta ON ta.article_id = r.article_id
		JOIN entities e ON e.id = r.entity_id
		WHERE e.id NOT IN (SELECT id FROM target)
		GROUP BY e.id, e.name, e.entity_type
		ORDER BY co_occurrences DESC, e.name
		LIMIT $2`

	rows, err := db.Query(ctx, query, name, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query entity relationships: %w", err)
	}
	defer rows.Close()

	var relationships []models.EntityRelationship
	for rows.Next() {
		var rel models.EntityRelationship
		if err := rows.Scan(&rel.Entity.ID, &rel.Entity.Name, &rel.Entity.Type,
			&rel.CoOccurrence, &rel.Strength); err != nil {
			return nil, fmt.Errorf("failed to scan relationship: %w", err)
		}
		relationships = append(relationships, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relationships: %w", err)
	}

	return relationships, nil
}
