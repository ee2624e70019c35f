package repositories

import (
	"testing"

	"github.com/storymine-hq/storymine-engine/pkg/database"
	"github.com/storymine-hq/storymine-engine/pkg/testhelpers"
)

// legacyArchive returns the shared test database with the legacy archive
// tables created and emptied, plus a connected manager. The legacy tables
// are owned by the StoryMap pipeline in production and carry no uniqueness
// guarantee on relationships: one row per mention is the observed shape, so
// the test schema allows duplicates on purpose.
func legacyArchive(t *testing.T) (*testhelpers.TestDB, *database.Manager) {
	t.Helper()

	db := testhelpers.GetTestDB(t)

	db.Exec(t, `CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT,
		section TEXT,
		publication TEXT,
		publish_date DATE,
		word_count INTEGER
	)`)
	db.Exec(t, `CREATE TABLE IF NOT EXISTS entities (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		entity_type TEXT NOT NULL
	)`)
	db.Exec(t, `CREATE TABLE IF NOT EXISTS relationships (
		article_id TEXT NOT NULL,
		entity_id TEXT NOT NULL
	)`)
	db.Exec(t, `TRUNCATE articles, entities, relationships`)

	return db, db.Manager(t)
}
