package models

// DateRange bounds the archive's publication years. Both bounds are nil when
// no dated articles exist, and Years is 0 in that case.
type DateRange struct {
	Earliest *string `json:"earliest"`
	Latest   *string `json:"latest"`
	Years    int     `json:"years"`
}

// ArchiveStats is the normalized aggregate view over whichever table tier
// answered (intelligence tables or the legacy archive tables).
type ArchiveStats struct {
	Articles      int       `json:"articles"`
	Entities      int       `json:"entities"`
	Relationships int       `json:"relationships"`
	DateRange     DateRange `json:"dateRange"`
}

// HasData reports whether this tier produced any articles or entities.
// A tier with data takes precedence over later tiers regardless of their
// contents.
func (s *ArchiveStats) HasData() bool {
	return s.Articles > 0 || s.Entities > 0
}
