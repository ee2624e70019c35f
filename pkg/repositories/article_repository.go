package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/storymine-hq/storymine-engine/pkg/apperrors"
	"github.com/storymine-hq/storymine-engine/pkg/database"
	"github.com/storymine-hq/storymine-engine/pkg/models"
)

const defaultPageSize = 20

// psql builds queries with PostgreSQL $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// ArticleRepository provides read access to the archive's article tables.
type ArticleRepository interface {
	List(ctx context.Context, filter models.ArticleFilter) (*models.ArticlePage, error)
	GetByID(ctx context.Context, id string) (*models.Article, error)
}

type articleRepository struct {
	db           *database.Manager
	queryTimeout time.Duration
}

// NewArticleRepository creates an ArticleRepository over the managed pool.
func NewArticleRepository(db *database.Manager, queryTimeout time.Duration) ArticleRepository {
	return &articleRepository{db: db, queryTimeout: queryTimeout}
}

var _ ArticleRepository = (*articleRepository)(nil)

func (r *articleRepository) List(ctx context.Context, filter models.ArticleFilter) (*models.ArticlePage, error) {
	db := r.db.Get()
	if db == nil {
		return nil, apperrors.ErrDatabaseUnavailable
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = defaultPageSize
	}

	listQuery, countQuery := buildArticleListQueries(filter)

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	sqlStr, args, err := countQuery.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build article count query: %w", err)
	}
	var total int
	if err := db.QueryRow(ctx, sqlStr, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count articles: %w", err)
	}

	sqlStr, args, err = listQuery.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build article list query: %w", err)
	}
	rows, err := db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	articles := make([]models.Article, 0, filter.Limit)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating articles: %w", err)
	}

	return &models.ArticlePage{
		Articles: articles,
		Total:    total,
		Page:     filter.Page,
		Limit:    filter.Limit,
	}, nil
}

// buildArticleListQueries assembles the filtered list and count queries.
// Filters are optional and combined with AND.
func buildArticleListQueries(filter models.ArticleFilter) (sq.SelectBuilder, sq.SelectBuilder) {
	base := psql.Select().From("articles")

	if filter.Publication != "" {
		base = base.Where(sq.Eq{"publication": filter.Publication})
	}
	if filter.Section != "" {
		base = base.Where(sq.Eq{"section": filter.Section})
	}
	if filter.From != "" {
		base = base.Where(sq.GtOrEq{"publish_date": filter.From})
	}
	if filter.To != "" {
		base = base.Where(sq.LtOrEq{"publish_date": filter.To})
	}

	offset := uint64((filter.Page - 1) * filter.Limit)
	list := base.
		Columns("id", "title", "content", "section", "publication", "publish_date", "word_count").
		OrderBy("publish_date DESC NULLS LAST", "id").
		Limit(uint64(filter.Limit)).
		Offset(offset)
	count := base.Columns("COUNT(*)")

	return list, count
}

func (r *articleRepository) GetByID(ctx context.Context, id string) (*models.Article, error) {
	db := r.db.Get()
	if db == nil {
		return nil, apperrors.ErrDatabaseUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `
		SELECT id, title, content, section, publication, publish_date, word_count
		FROM articles
		WHERE id = $1`

	row := db.QueryRow(ctx, query, id)
	a, err := scanArticle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	entities, err := r.articleEntities(ctx, db, id)
	if err != nil {
		return nil, err
	}
	a.Entities = entities
	return a, nil
}

func (r *articleRepository) articleEntities(ctx context.Context, db *database.DB, articleID string) ([]models.Entity, error) {
	query := `
		SELECT e.id, e.name, e.entity_type
		FROM entities e
		JOIN relationships r ON r.entity_id = e.id
		WHERE r.article_id = $1
		ORDER BY e.name`

	rows, err := db.Query(ctx, query, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query article entities: %w", err)
	}
	defer rows.Close()

	var entities []models.Entity
	for rows.Next() {
		var e models.Entity
		if err := rows.Scan(&e.ID, &e.Name, &e.Type); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article entities: %w", err)
	}
	return entities, nil
}

func scanArticle(row pgx.Row) (*models.Article, error) {
	var a models.Article
	var content, section, publication *string
	var publishDate *time.Time
	var wordCount *int

	if err := row.Scan(&a.ID, &a.Title, &content, &section, &publication, &publishDate, &wordCount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan article: %w", err)
	}

	if content != nil {
		a.Content = *content
	}
	if section != nil {
		a.Category = *section
	}
	if publication != nil {
		a.Source = *publication
	}
	a.PublicationDate = publishDate
	if wordCount != nil {
		a.WordCount = *wordCount
	}
	return &a, nil
}
