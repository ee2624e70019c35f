package models

// Entity is a person, organization, location or event referenced by archive
// articles. Read-only, externally owned.
type Entity struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"entity_type"`
	Description  string `json:"description,omitempty"`
	ArticleCount int    `json:"article_count,omitempty"`
}

// EntityPage is a paginated entity listing.
type EntityPage struct {
	Entities []Entity `json:"entities"`
	Total    int      `json:"total"`
	Page     int      `json:"page"`
	Limit    int      `json:"limit"`
}

// EntityRelationship pairs an entity with a co-occurring entity and a
// relevance strength in [0,1].
type EntityRelationship struct {
	Entity       Entity  `json:"entity"`
	CoOccurrence int     `json:"co_occurrences"`
	Strength     float64 `json:"strength"`
}
