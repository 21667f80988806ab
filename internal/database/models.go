package database

import "github.com/TobiSchelling/facthistory/internal/history"

// Snapshot is a persisted statistics summary. Summary is only populated by
// LatestSnapshot.
type Snapshot struct {
	ID            int64
	GeneratedAt   string
	TotalArticles int
	AvgFactuality float64
	PersonalScore string
	Streak        int
	Summary       *history.Summary
}

// Preview is cached page metadata for an article link.
type Preview struct {
	URL       string
	Title     string
	Excerpt   string
	SiteName  string
	FetchedAt *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	Snapshots      int
	Previews       int
	LatestSnapshot *string
}
