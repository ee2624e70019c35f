package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityRelationships_CountsDistinctArticles(t *testing.T) {
	db, mgr := legacyArchive(t)
	repo := NewEntityRepository(mgr, 5*time.Second)

	db.Exec(t, `INSERT INTO entities (id, name, entity_type) VALUES
		('e1', 'Franklin D. Roosevelt', 'person'),
		('e2', 'Winston Churchill', 'person'),
		('e3', 'New Deal', 'topic')`)
	// One relationship row per mention: article a1 mentions Roosevelt and
	// Churchill twice each. Strength must stay a share of articles, not of
	// mentions.
	db.Exec(t, `INSERT INTO relationships (article_id, entity_id) VALUES
		('a1', 'e1'), ('a1', 'e1'), ('a2', 'e1'),
		('a1', 'e2'), ('a1', 'e2'), ('a2', 'e2'),
		('a1', 'e3')`)

	rels, err := repo.Relationships(context.Background(), "franklin d. roosevelt", 10)
	require.NoError(t, err)
	require.Len(t, rels, 2)

	// Churchill shares both of Roosevelt's articles.
	assert.Equal(t, "Winston Churchill", rels[0].Entity.Name)
	assert.Equal(t, 2, rels[0].CoOccurrence)
	assert.InDelta(t, 1.0, rels[0].Strength, 1e-9)

	// New Deal shares one of two.
	assert.Equal(t, "New Deal", rels[1].Entity.Name)
	assert.Equal(t, 1, rels[1].CoOccurrence)
	assert.InDelta(t, 0.5, rels[1].Strength, 1e-9)

	for _, rel := range rels {
		assert.GreaterOrEqual(t, rel.Strength, 0.0)
		assert.LessOrEqual(t, rel.Strength, 1.0)
	}
}

func TestEntityRelationships_UnknownEntityIsEmpty(t *testing.T) {
	db, mgr := legacyArchive(t)
	repo := NewEntityRepository(mgr, 5*time.Second)

	db.Exec(t, `INSERT INTO entities (id, name, entity_type) VALUES
		('e1', 'Franklin D. Roosevelt', 'person')`)
	db.Exec(t, `INSERT INTO relationships (article_id, entity_id) VALUES ('a1', 'e1')`)

	rels, err := repo.Relationships(context.Background(), "amelia earhart", 10)
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestEntityList_FiltersByType(t *testing.T) {
	db, mgr := legacyArchive(t)
	repo := NewEntityRepository(mgr, 5*time.Second)

	db.Exec(t, `INSERT INTO entities (id, name, entity_type) VALUES
		('e1', 'Franklin D. Roosevelt', 'person'),
		('e2', 'Chicago', 'location')`)
	db.Exec(t, `INSERT INTO relationships (article_id, entity_id) VALUES
		('a1', 'e1'), ('a2', 'e1'), ('a1', 'e2')`)

	page, err := repo.List(context.Background(), "person", 1, 10)
	require.NoError(t, err)

	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Entities, 1)
	assert.Equal(t, "Franklin D. Roosevelt", page.Entities[0].Name)
	assert.Equal(t, 2, page.Entities[0].ArticleCount)
}
