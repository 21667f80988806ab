package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/TobiSchelling/facthistory/internal/history"
)

// Card is one article in the paginated list.
type Card struct {
	Index    int // position in Summary.AllArticles
	ID       int64
	Title    string
	Summary  string
	Score    string
	Tone     string
	Level    string
	Date     string
	Relative string
	Hostname string
}

// ArticleList is the visible page of the article list.
type ArticleList struct {
	Cards    []Card
	Pager    Pager
	Pages    []PageItem
	Showing  string
	Empty    bool
	Mobile   bool
	PrevPage int
	NextPage int
}

// NewArticleList builds the given page of the summary's articles. Out of
// range pages fall back to the first page.
func NewArticleList(s *history.Summary, page int, mobile bool, now time.Time) ArticleList {
	all := s.AllArticles
	list := ArticleList{Mobile: mobile}
	if len(all) == 0 {
		list.Empty = true
		return list
	}

	pager := NewPager(len(all), PageSize)
	pager.ChangePage(page)
	list.Pager = *pager

	start := (pager.Current - 1) * PageSize
	end := min(start+PageSize, len(all))
	for i := start; i < end; i++ {
		list.Cards = append(list.Cards, NewCard(i, all[i], now))
	}

	maxVisible := MaxPagesDesktop
	if mobile {
		maxVisible = MaxPagesMobile
	}
	if pager.Total > 1 {
		list.Pages = PageWindow(pager.Current, pager.Total, maxVisible)
		list.Showing = fmt.Sprintf("Showing %d-%d of %d articles", start+1, end, len(all))
	}
	list.PrevPage = pager.Current - 1
	list.NextPage = pager.Current + 1
	return list
}

// NewCard builds the card for the article at index.
func NewCard(index int, a history.ArticleView, now time.Time) Card {
	score := 0.0
	if history.ValidScore(a.Score) {
		score = *a.Score
	}
	c := Card{
		Index:    index,
		ID:       a.ID,
		Title:    orDefault(a.Title, "Untitled Article"),
		Summary:  orDefault(a.Summary, "No summary available"),
		Score:    formatScore(score) + "%",
		Tone:     Tone(score),
		Level:    orDefault(a.Level, "Unknown"),
		Date:     DateLabel(a.AnalysisDate, now.Location()),
		Relative: RelativeLabel(a.AnalysisDate, now),
	}
	if a.Link != nil && *a.Link != "" {
		if host, ok := history.Hostname(*a.Link); ok {
			c.Hostname = host
		} else {
			c.Hostname = "Invalid URL"
		}
	}
	return c
}

// Breakdown is the detail view for a single article.
type Breakdown struct {
	Card
	Link        string
	InputLabel  string
	InputIcon   string
	Description string
	Content     string
	Points      []string
	Analyzed    string
}

// NewBreakdown builds the detail view.
func NewBreakdown(index int, a history.Article, now time.Time) Breakdown {
	b := Breakdown{
		Card:        NewCard(index, history.View(a), now),
		Description: a.Description,
		Content:     a.Content,
		Points:      a.Breakdown,
		InputLabel:  "Text Analysis",
		InputIcon:   "clipboard",
	}
	if a.InputType == "link" {
		b.InputLabel = "URL Analysis"
		b.InputIcon = "link"
	}
	if a.Link != nil {
		b.Link = *a.Link
	}
	if t, ok := history.ParseAnalysisDate(a.AnalysisDate, now.Location()); ok {
		b.Analyzed = t.Format("Jan 02, 2006 15:04")
	}
	return b
}

// IsMobile guesses a narrow viewport from an explicit hint or the User-Agent.
func IsMobile(viewport, userAgent string) bool {
	switch viewport {
	case "mobile":
		return true
	case "desktop":
		return false
	}
	ua := strings.ToLower(userAgent)
	if strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet") {
		return false
	}
	return strings.Contains(ua, "mobile") || strings.Contains(ua, "android")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
