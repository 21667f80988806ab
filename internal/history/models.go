package history

import "time"

// Article is a previously analyzed article as returned by the backend.
type Article struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Summary      string   `json:"summary"`
	Score        *float64 `json:"factuality_score"`
	Level        string   `json:"factuality_level"`
	AnalysisDate string   `json:"analysis_date"`
	InputType    string   `json:"input_type"`
	Link         *string  `json:"link"`
	Breakdown    []string `json:"factuality_breakdown,omitempty"`

	// Only present on the details endpoint.
	Content     string `json:"content,omitempty"`
	Description string `json:"factuality_description,omitempty"`
}

// ArticleView is the display projection of an Article kept in a Summary.
type ArticleView struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Summary      string   `json:"summary"`
	Score        *float64 `json:"factuality_score"`
	Level        string   `json:"factuality_level"`
	AnalysisDate string   `json:"analysis_date"`
	InputType    string   `json:"input_type"`
	Link         *string  `json:"link"`
	Breakdown    []string `json:"factuality_breakdown"`
}

// Distribution counts valid scores in the four factuality bands.
type Distribution struct {
	VeryHigh int `json:"very_high"`
	High     int `json:"high"`
	Mixed    int `json:"mixed"`
	Low      int `json:"low"`
}

// Total returns the number of scores across all bands.
func (d Distribution) Total() int {
	return d.VeryHigh + d.High + d.Mixed + d.Low
}

// ScoreRange is one 10-point histogram bucket.
type ScoreRange struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

// SourceStat aggregates the articles seen for one hostname.
type SourceStat struct {
	Domain        string  `json:"domain"`
	Count         int     `json:"count"`
	AvgFactuality float64 `json:"avg_factuality"`
}

// Summary is the derived statistics for one load cycle. It is rebuilt from
// scratch on every refresh and must be treated as read-only once published.
type Summary struct {
	TotalArticles     int `json:"total_articles"`
	ArticlesThisWeek  int `json:"articles_this_week"`
	ArticlesThisMonth int `json:"articles_this_month"`

	AvgFactuality     float64 `json:"avg_factuality"`
	HighestFactuality float64 `json:"highest_factuality"`
	LowestFactuality  float64 `json:"lowest_factuality"`
	FactualityTrend   string  `json:"factuality_trend"`

	Streak       int    `json:"streak"`
	StreakStatus string `json:"streak_status"`

	UniqueSources  int    `json:"unique_sources"`
	DiversityScore string `json:"diversity_score"`

	FactualityDistribution Distribution  `json:"factuality_distribution"`
	WeeklyActivity         [7]int        `json:"weekly_activity"`
	TopSources             []SourceStat  `json:"top_sources"`
	MostActiveDay          string        `json:"most_active_day"`
	PersonalScore          string        `json:"personal_score"`
	ScoreRanges            []ScoreRange  `json:"score_ranges"`
	RecentArticles         []ArticleView `json:"recent_articles"`
	AllArticles            []ArticleView `json:"all_articles"`

	GeneratedAt time.Time `json:"generated_at"`
}
