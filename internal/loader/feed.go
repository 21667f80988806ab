package loader

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/TobiSchelling/facthistory/internal/history"
)

const scoreCategory = "factuality:"

// FeedStrategy loads the history from an RSS/Atom feed published by the
// backend. Each item is one analysis; its score travels as a
// "factuality:<n>" category.
type FeedStrategy struct {
	client *Client
	url    string
	parser *gofeed.Parser
}

// NewFeedStrategy creates a feed strategy for feedURL (absolute or base-relative).
func NewFeedStrategy(client *Client, feedURL string) *FeedStrategy {
	return &FeedStrategy{client: client, url: feedURL, parser: gofeed.NewParser()}
}

// Name returns the feed URL.
func (s *FeedStrategy) Name() string { return "feed:" + s.url }

// Load fetches and parses the feed.
func (s *FeedStrategy) Load(ctx context.Context) Attempt {
	resp, err := s.client.get(ctx, s.url)
	if err != nil {
		return skip(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return Attempt{Outcome: OutcomeRedirect, Err: ErrUnauthorized}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return skip(&httpError{code: resp.StatusCode})
	}

	feed, err := s.parser.Parse(resp.Body)
	if err != nil {
		return skip(fmt.Errorf("parsing feed: %w", err))
	}

	articles := make([]history.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if a := articleFromItem(item); a != nil {
			articles = append(articles, *a)
		}
	}
	return Attempt{Outcome: OutcomeSuccess, Articles: articles}
}

func articleFromItem(item *gofeed.Item) *history.Article {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return nil
	}

	a := &history.Article{
		ID:        feedItemID(item.GUID),
		Title:     title,
		Summary:   strings.TrimSpace(item.Description),
		InputType: "text",
	}
	if item.Link != "" {
		link := item.Link
		a.Link = &link
		a.InputType = "link"
	}

	switch {
	case item.PublishedParsed != nil:
		a.AnalysisDate = item.PublishedParsed.Format(time.RFC3339)
	case item.UpdatedParsed != nil:
		a.AnalysisDate = item.UpdatedParsed.Format(time.RFC3339)
	}

	for _, c := range item.Categories {
		v, ok := strings.CutPrefix(strings.TrimSpace(c), scoreCategory)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		// ParseFloat accepts "NaN" and "Inf", which cannot be encoded as JSON.
		if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			a.Score = &f
			a.Level = history.LevelForScore(f)
		}
	}
	return a
}

// feedItemID takes the trailing number of a GUID such as
// "https://host/results/42" or "article-42".
func feedItemID(guid string) int64 {
	base := path.Base(strings.TrimRight(guid, "/"))
	if i := strings.LastIndexAny(base, "-:="); i >= 0 {
		base = base[i+1:]
	}
	id, err := strconv.ParseInt(base, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
