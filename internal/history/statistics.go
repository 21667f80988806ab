// Package history derives dashboard statistics from a user's analyzed articles.
package history

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	day         = 24 * time.Hour
	recentCount = 5
	placeholder = "None"
	noGrade     = "N/A"
	firstStreak = "Start your first analysis!"
	noActivity  = "No activity yet"
	activeTrend = "Active"
	quietTrend  = "No recent activity"
	startStreak = "Start your streak!"
)

// DayNames are the weekday labels for WeeklyActivity slots, Monday first.
var DayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

var rangeLabels = [10]string{
	"90-100%", "80-89%", "70-79%", "60-69%", "50-59%",
	"40-49%", "30-39%", "20-29%", "10-19%", "0-9%",
}

// gradeLadder is checked top to bottom; the lower bound of each band is inclusive.
var gradeLadder = []struct {
	min   float64
	grade string
}{
	{90, "A+"}, {85, "A"}, {80, "A-"},
	{75, "B+"}, {70, "B"}, {65, "B-"},
	{60, "C+"}, {55, "C"}, {50, "C-"},
	{40, "D"},
}

// Empty returns the summary used when there is nothing to aggregate.
func Empty(now time.Time) *Summary {
	return &Summary{
		FactualityTrend: noActivity,
		StreakStatus:    firstStreak,
		DiversityScore:  placeholder,
		TopSources:      []SourceStat{},
		MostActiveDay:   placeholder,
		PersonalScore:   noGrade,
		ScoreRanges:     emptyRanges(),
		RecentArticles:  []ArticleView{},
		AllArticles:     []ArticleView{},
		GeneratedAt:     now,
	}
}

// Calculate builds a Summary from articles as of now. The input slice is
// never reordered.
func Calculate(articles []Article, now time.Time) *Summary {
	if len(articles) == 0 {
		return Empty(now)
	}

	loc := now.Location()
	dates := make([]time.Time, len(articles))
	valid := make([]bool, len(articles))
	for i, a := range articles {
		dates[i], valid[i] = ParseAnalysisDate(a.AnalysisDate, loc)
	}

	weekAgo := now.Add(-7 * day)
	monthAgo := now.Add(-30 * day)

	s := &Summary{
		TotalArticles: len(articles),
		GeneratedAt:   now,
	}
	for i := range articles {
		if !valid[i] {
			continue
		}
		if dates[i].After(weekAgo) {
			s.ArticlesThisWeek++
		}
		if dates[i].After(monthAgo) {
			s.ArticlesThisMonth++
		}
	}

	scores := validScores(articles)
	if len(scores) > 0 {
		sum, hi, lo := 0.0, scores[0], scores[0]
		for _, v := range scores {
			sum += v
			hi = math.Max(hi, v)
			lo = math.Min(lo, v)
		}
		s.AvgFactuality = sum / float64(len(scores))
		s.HighestFactuality = hi
		s.LowestFactuality = lo
	}

	s.FactualityTrend = quietTrend
	if s.ArticlesThisWeek > 0 {
		s.FactualityTrend = activeTrend
	}

	s.Streak = streak(dates, valid, now)
	s.StreakStatus = StreakStatus(s.Streak)

	s.TopSources = topSources(articles)
	s.UniqueSources = len(s.TopSources)
	s.DiversityScore = diversity(s.UniqueSources)

	s.FactualityDistribution = distribution(scores)
	s.ScoreRanges = scoreRanges(scores)
	s.WeeklyActivity = weeklyActivity(dates, valid, now)
	s.MostActiveDay = MostActiveDay(s.WeeklyActivity)
	s.PersonalScore = PersonalScore(s.AvgFactuality)

	s.AllArticles = sortedViews(articles, dates, valid)
	s.RecentArticles = s.AllArticles[:min(recentCount, len(s.AllArticles))]
	return s
}

// ValidScore reports whether an article's score takes part in aggregates.
func ValidScore(score *float64) bool {
	return score != nil && !math.IsNaN(*score)
}

func validScores(articles []Article) []float64 {
	var scores []float64
	for _, a := range articles {
		if ValidScore(a.Score) {
			scores = append(scores, *a.Score)
		}
	}
	return scores
}

func distribution(scores []float64) Distribution {
	var d Distribution
	for _, v := range scores {
		switch {
		case v >= 80:
			d.VeryHigh++
		case v >= 60:
			d.High++
		case v >= 40:
			d.Mixed++
		default:
			d.Low++
		}
	}
	return d
}

func emptyRanges() []ScoreRange {
	ranges := make([]ScoreRange, len(rangeLabels))
	for i, label := range rangeLabels {
		ranges[i] = ScoreRange{Range: label}
	}
	return ranges
}

// scoreRanges buckets scores by decile. Scores of 90 and above share the top
// bucket and anything under 10 (including negatives) lands in the last one.
func scoreRanges(scores []float64) []ScoreRange {
	ranges := emptyRanges()
	for _, v := range scores {
		idx := 9 - int(math.Floor(v/10))
		ranges[max(0, min(9, idx))].Count++
	}
	return ranges
}

func weeklyActivity(dates []time.Time, valid []bool, now time.Time) [7]int {
	var week [7]int
	for i, d := range dates {
		if !valid[i] {
			continue
		}
		elapsed := now.Sub(d)
		if elapsed < 0 || elapsed >= 7*day {
			continue
		}
		week[mondayIndex(d.Weekday())]++
	}
	return week
}

func mondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

// MostActiveDay names the busiest weekday. Ties go to the earlier day.
func MostActiveDay(week [7]int) string {
	best := 0
	for i := 1; i < len(week); i++ {
		if week[i] > week[best] {
			best = i
		}
	}
	if week[best] == 0 {
		return placeholder
	}
	return DayNames[best]
}

// streak counts consecutive local calendar days with activity, ending today.
func streak(dates []time.Time, valid []bool, now time.Time) int {
	days := make(map[string]struct{}, len(dates))
	for i, d := range dates {
		if valid[i] {
			days[d.Format(time.DateOnly)] = struct{}{}
		}
	}

	count := 0
	for cur := now; ; cur = cur.AddDate(0, 0, -1) {
		if _, ok := days[cur.Format(time.DateOnly)]; !ok {
			return count
		}
		count++
	}
}

// StreakStatus is the caption shown under the streak counter.
func StreakStatus(streak int) string {
	switch {
	case streak == 1:
		return "1 day strong!"
	case streak > 1:
		return fmt.Sprintf("%d days strong!", streak)
	default:
		return startStreak
	}
}

// Hostname returns the lower-cased host of link, or false when link is not an
// absolute URL with a host.
func Hostname(link string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Scheme == "" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", false
	}
	return host, true
}

func topSources(articles []Article) []SourceStat {
	type agg struct {
		count int
		sum   float64
		n     int
	}
	var order []string
	byHost := make(map[string]*agg)

	for _, a := range articles {
		if a.Link == nil {
			continue
		}
		host, ok := Hostname(*a.Link)
		if !ok {
			continue
		}
		g, seen := byHost[host]
		if !seen {
			g = &agg{}
			byHost[host] = g
			order = append(order, host)
		}
		g.count++
		if ValidScore(a.Score) {
			g.sum += *a.Score
			g.n++
		}
	}

	sources := make([]SourceStat, 0, len(order))
	for _, host := range order {
		g := byHost[host]
		st := SourceStat{Domain: host, Count: g.count}
		if g.n > 0 {
			st.AvgFactuality = g.sum / float64(g.n)
		}
		sources = append(sources, st)
	}
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].Count > sources[j].Count
	})
	return sources
}

func diversity(sources int) string {
	switch {
	case sources > 10:
		return "Excellent"
	case sources > 5:
		return "Good"
	case sources > 2:
		return "Fair"
	default:
		return "Limited"
	}
}

// PersonalScore maps an average factuality to a letter grade.
func PersonalScore(avg float64) string {
	for _, step := range gradeLadder {
		if avg >= step.min {
			return step.grade
		}
	}
	return "F"
}

// LevelForScore mirrors the backend's factuality level bands.
func LevelForScore(score float64) string {
	switch {
	case score <= 20:
		return "Very Low"
	case score <= 40:
		return "Low"
	case score <= 60:
		return "Mixed"
	case score <= 80:
		return "High"
	default:
		return "Very High"
	}
}

func sortedViews(articles []Article, dates []time.Time, valid []bool) []ArticleView {
	idx := make([]int, len(articles))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		i, j := idx[a], idx[b]
		if valid[i] != valid[j] {
			return valid[i]
		}
		return valid[i] && dates[i].After(dates[j])
	})

	views := make([]ArticleView, len(idx))
	for k, i := range idx {
		views[k] = View(articles[i])
	}
	return views
}

// View projects an article onto the fields the dashboard displays.
func View(a Article) ArticleView {
	breakdown := a.Breakdown
	if breakdown == nil {
		breakdown = []string{}
	}
	return ArticleView{
		ID:           a.ID,
		Title:        a.Title,
		Summary:      a.Summary,
		Score:        a.Score,
		Level:        a.Level,
		AnalysisDate: a.AnalysisDate,
		InputType:    a.InputType,
		Link:         a.Link,
		Breakdown:    breakdown,
	}
}
