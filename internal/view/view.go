// Package view turns a statistics summary into render-ready structures. It
// holds no I/O and no HTML; templates and exporters consume its output.
package view

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/TobiSchelling/facthistory/internal/history"
)

// Tone buckets a score for colouring: "green", "yellow", "orange" or "red".
func Tone(score float64) string {
	switch {
	case score >= 80:
		return "green"
	case score >= 60:
		return "yellow"
	case score >= 40:
		return "orange"
	default:
		return "red"
	}
}

// Overview is the four headline cards.
type Overview struct {
	TotalArticles  int
	WeekChange     string
	AvgFactuality  string
	Trend          string
	Streak         int
	StreakStatus   string
	UniqueSources  int
	DiversityScore string
}

// NewOverview builds the headline cards.
func NewOverview(s *history.Summary) Overview {
	return Overview{
		TotalArticles:  s.TotalArticles,
		WeekChange:     fmt.Sprintf("+%d this week", s.ArticlesThisWeek),
		AvgFactuality:  fmt.Sprintf("%d%%", int(math.Round(s.AvgFactuality))),
		Trend:          s.FactualityTrend,
		Streak:         s.Streak,
		StreakStatus:   s.StreakStatus,
		UniqueSources:  s.UniqueSources,
		DiversityScore: s.DiversityScore,
	}
}

// Bar is one labelled horizontal bar.
type Bar struct {
	Label   string
	Caption string
	Count   int
	Percent float64
	Tone    string
}

// DistributionBars shows each factuality band as a share of all articles.
func DistributionBars(s *history.Summary) []Bar {
	if s.TotalArticles == 0 {
		return nil
	}
	d := s.FactualityDistribution
	bands := []struct {
		label, caption, tone string
		count                int
	}{
		{"Very High", "80-100%", "green", d.VeryHigh},
		{"High", "60-79%", "yellow", d.High},
		{"Mixed", "40-59%", "orange", d.Mixed},
		{"Low", "0-39%", "red", d.Low},
	}
	bars := make([]Bar, len(bands))
	for i, b := range bands {
		bars[i] = Bar{
			Label:   b.label,
			Caption: b.caption,
			Count:   b.count,
			Percent: percent(b.count, s.TotalArticles),
			Tone:    b.tone,
		}
	}
	return bars
}

// WeeklyBars scales each weekday against the busiest one.
func WeeklyBars(s *history.Summary) []Bar {
	if s.TotalArticles == 0 {
		return nil
	}
	peak := 1
	for _, n := range s.WeeklyActivity {
		peak = max(peak, n)
	}
	bars := make([]Bar, len(s.WeeklyActivity))
	for i, n := range s.WeeklyActivity {
		bars[i] = Bar{
			Label:   history.DayNames[i][:3],
			Count:   n,
			Percent: percent(n, peak),
			Tone:    "cyan",
		}
	}
	return bars
}

// SourceRow is one entry in the top sources list.
type SourceRow struct {
	Rank          int
	Domain        string
	Count         int
	AvgFactuality string
	Tone          string
}

// TopSources returns at most five source rows.
func TopSources(s *history.Summary) []SourceRow {
	n := min(5, len(s.TopSources))
	rows := make([]SourceRow, n)
	for i, src := range s.TopSources[:n] {
		rows[i] = SourceRow{
			Rank:          i + 1,
			Domain:        src.Domain,
			Count:         src.Count,
			AvgFactuality: fmt.Sprintf("%d%%", int(math.Round(src.AvgFactuality))),
			Tone:          Tone(src.AvgFactuality),
		}
	}
	return rows
}

// Insights is the quick-insights panel.
type Insights struct {
	MostActiveDay     string
	HighestFactuality string
	ThisMonth         int
	PersonalScore     string
}

// NewInsights fills the quick-insights panel, with placeholders when there is
// no history.
func NewInsights(s *history.Summary) Insights {
	if s.TotalArticles == 0 {
		return Insights{MostActiveDay: "None yet", HighestFactuality: "N/A", PersonalScore: "N/A"}
	}
	highest := "-"
	if s.HighestFactuality != 0 {
		highest = fmt.Sprintf("%s%%", formatScore(s.HighestFactuality))
	}
	return Insights{
		MostActiveDay:     s.MostActiveDay,
		HighestFactuality: highest,
		ThisMonth:         s.ArticlesThisMonth,
		PersonalScore:     s.PersonalScore,
	}
}

// ScoreRangeBars renders the decile histogram. It returns nil when no
// article has a score.
func ScoreRangeBars(s *history.Summary) []Bar {
	peak, total := 1, 0
	for _, r := range s.ScoreRanges {
		peak = max(peak, r.Count)
		total += r.Count
	}
	if total == 0 {
		return nil
	}
	bars := make([]Bar, len(s.ScoreRanges))
	for i, r := range s.ScoreRanges {
		tone, level := rangeBand(r.Range)
		bars[i] = Bar{
			Label:   r.Range,
			Caption: level,
			Count:   r.Count,
			Percent: percent(r.Count, peak),
			Tone:    tone,
		}
	}
	return bars
}

func rangeBand(label string) (tone, level string) {
	switch {
	case strings.HasPrefix(label, "9"), strings.HasPrefix(label, "8"):
		return "green", "Very High"
	case strings.HasPrefix(label, "7"), strings.HasPrefix(label, "6"):
		return "yellow", "High"
	case strings.HasPrefix(label, "5"), strings.HasPrefix(label, "4"):
		return "orange", "Mixed"
	default:
		return "red", "Low"
	}
}

func percent(n, of int) float64 {
	if of <= 0 {
		return 0
	}
	return float64(n) / float64(of) * 100
}

func formatScore(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%d", int(v))
	}
	return fmt.Sprintf("%.1f", v)
}

// DateLabel formats an analysis date for cards, e.g. "Feb 10, 2026".
func DateLabel(analysisDate string, loc *time.Location) string {
	t, ok := history.ParseAnalysisDate(analysisDate, loc)
	if !ok {
		return "Unknown date"
	}
	return t.Format("Jan 02, 2006")
}

// RelativeLabel formats an analysis date relative to now, e.g. "3 days ago".
func RelativeLabel(analysisDate string, now time.Time) string {
	t, ok := history.ParseAnalysisDate(analysisDate, now.Location())
	if !ok {
		return ""
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
