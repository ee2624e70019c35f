package models

import "time"

// Article is a read-only record of a digitized newspaper article. Articles
// are owned by the StoryMap service or the archive database; this service
// never creates or mutates them.
type Article struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Content         string     `json:"content,omitempty"`
	Category        string     `json:"category,omitempty"`
	Source          string     `json:"source,omitempty"`
	PublicationDate *time.Time `json:"publication_date,omitempty"`
	WordCount       int        `json:"word_count,omitempty"`
	QualityScore    float64    `json:"quality_score,omitempty"`
	IsAdvertisement bool       `json:"is_advertisement,omitempty"`

	// Similarity is populated on search results only, in [0,1].
	Similarity float64 `json:"similarity,omitempty"`

	// Entities are attached on single-article lookups.
	Entities []Entity `json:"entities,omitempty"`
}

// ArticlePage is a paginated article listing.
type ArticlePage struct {
	Articles []Article `json:"articles"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
}

// ArticleFilter narrows an article listing. Zero values mean "no filter".
type ArticleFilter struct {
	Publication string
	Section     string
	From        string // inclusive publication date lower bound, YYYY-MM-DD
	To          string // inclusive publication date upper bound, YYYY-MM-DD
	Page        int
	Limit       int
}
