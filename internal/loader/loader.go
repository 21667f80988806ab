// Package loader fetches a user's article history from the backend, trying an
// ordered list of strategies until one succeeds.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/TobiSchelling/facthistory/internal/history"
	"github.com/TobiSchelling/facthistory/internal/metrics"
)

// ErrUnauthorized means the backend rejected the session; the caller should
// send the user to the login page instead of showing data.
var ErrUnauthorized = errors.New("backend session is not authenticated")

// DefaultEndpoints are tried in order, newest API shape first.
var DefaultEndpoints = []string{
	"/get_articles?items_per_page=1000&include_breakdowns=true",
	"/get_articles?items_per_page=1000",
	"/get_articles",
}

const (
	defaultDetailsPath = "/get_article_details/"
	defaultSearchPath  = "/get_articles"
	defaultCacheSize   = 128
)

// Options configures a Loader.
type Options struct {
	Endpoints   []string
	FeedURL     string
	DetailsPath string
	CacheSize   int
}

// Loader runs the strategy chain and looks up article details.
type Loader struct {
	client      *Client
	strategies  []Strategy
	detailsPath string
	details     *lru.Cache[int64, *history.Article]
}

// New creates a loader whose chain is the configured endpoints followed by
// the feed, if any.
func New(client *Client, opts Options) (*Loader, error) {
	endpoints := opts.Endpoints
	if len(endpoints) == 0 {
		endpoints = DefaultEndpoints
	}
	strategies := make([]Strategy, 0, len(endpoints)+1)
	for _, ep := range endpoints {
		strategies = append(strategies, NewEndpointStrategy(client, ep))
	}
	if opts.FeedURL != "" {
		strategies = append(strategies, NewFeedStrategy(client, opts.FeedURL))
	}
	return NewWithStrategies(client, opts, strategies...)
}

// NewWithStrategies creates a loader with an explicit strategy chain.
func NewWithStrategies(client *Client, opts Options, strategies ...Strategy) (*Loader, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[int64, *history.Article](size)
	if err != nil {
		return nil, fmt.Errorf("creating details cache: %w", err)
	}
	detailsPath := opts.DetailsPath
	if detailsPath == "" {
		detailsPath = defaultDetailsPath
	}
	return &Loader{
		client:      client,
		strategies:  strategies,
		detailsPath: strings.TrimRight(detailsPath, "/") + "/",
		details:     cache,
	}, nil
}

// LoadArticles tries each strategy in turn, one at a time. The first success
// wins. A redirect outcome stops the chain with ErrUnauthorized. When every
// strategy fails the result is an empty list and no error: callers cannot
// tell "backend down" from "no history yet", and they are not meant to.
func (l *Loader) LoadArticles(ctx context.Context) ([]history.Article, error) {
	for _, s := range l.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		log.Printf("Trying strategy: %s", s.Name())
		a := s.Load(ctx)
		metrics.LoaderAttempts.WithLabelValues(s.Name(), a.Outcome.String()).Inc()

		switch a.Outcome {
		case OutcomeSuccess:
			log.Printf("Loaded %d articles from %s", len(a.Articles), s.Name())
			if a.Articles == nil {
				return []history.Article{}, nil
			}
			return a.Articles, nil
		case OutcomeRedirect:
			log.Printf("Strategy %s requires login", s.Name())
			return nil, ErrUnauthorized
		default:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("Strategy %s failed: %v", s.Name(), a.Err)
		}
	}

	log.Println("All strategies failed or returned no data")
	return []history.Article{}, nil
}

// ArticleDetails fetches the full record for id. A missing article, or any
// failure other than an expired session, yields (nil, nil) so the caller can
// fall back to the data it already holds.
func (l *Loader) ArticleDetails(ctx context.Context, id int64) (*history.Article, error) {
	if a, ok := l.details.Get(id); ok {
		metrics.DetailsRequests.WithLabelValues("cached").Inc()
		return a, nil
	}

	resp, err := l.client.get(ctx, l.detailsPath+strconv.FormatInt(id, 10))
	if err != nil {
		log.Printf("Error fetching article details for %d: %v", id, err)
		metrics.DetailsRequests.WithLabelValues("error").Inc()
		return nil, nil //nolint: nilerr
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		metrics.DetailsRequests.WithLabelValues("unauthorized").Inc()
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		log.Printf("Article %d not found or access denied", id)
		metrics.DetailsRequests.WithLabelValues("not_found").Inc()
		return nil, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		log.Printf("Article details endpoint error for %d: %d", id, resp.StatusCode)
		metrics.DetailsRequests.WithLabelValues("error").Inc()
		return nil, nil
	}

	var a history.Article
	if err := decodeJSON(resp.Body, &a); err != nil {
		log.Printf("Error decoding article details for %d: %v", id, err)
		metrics.DetailsRequests.WithLabelValues("error").Inc()
		return nil, nil //nolint: nilerr
	}
	l.details.Add(id, &a)
	metrics.DetailsRequests.WithLabelValues("fetched").Inc()
	return &a, nil
}

// Query is a server-side search over the article listing.
type Query struct {
	Term    string
	Order   string // "newest", "oldest", "highest", "lowest"
	Page    int
	PerPage int
}

// Page is one page of search results.
type Page struct {
	Articles    []history.Article
	CurrentPage int
	TotalPages  int
	Total       int
}

// Search runs q against the listing endpoint. Failures degrade to an empty page.
func (l *Loader) Search(ctx context.Context, q Query) (*Page, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = 5
	}
	params := url.Values{}
	params.Set("items_per_page", strconv.Itoa(q.PerPage))
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("include_breakdowns", "false")
	if q.Term != "" {
		params.Set("search_term", q.Term)
	}
	if q.Order != "" {
		params.Set("filter_order", q.Order)
	}

	empty := &Page{Articles: []history.Article{}, CurrentPage: q.Page}
	resp, err := l.client.get(ctx, defaultSearchPath+"?"+params.Encode())
	if err != nil {
		log.Printf("Search request failed: %v", err)
		return empty, nil //nolint: nilerr
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("Search endpoint error: %d", resp.StatusCode)
		return empty, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, nil //nolint: nilerr
	}
	r, err := decodeArticles(body)
	if err != nil {
		log.Printf("Error decoding search results: %v", err)
		return empty, nil //nolint: nilerr
	}
	page := &Page{
		Articles:    r.Articles,
		CurrentPage: r.CurrentPage,
		TotalPages:  r.TotalPages,
		Total:       r.Total,
	}
	if page.CurrentPage == 0 {
		page.CurrentPage = q.Page
	}
	return page, nil
}
