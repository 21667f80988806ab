package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TobiSchelling/facthistory/internal/export"
	"github.com/TobiSchelling/facthistory/internal/history"
)

func newTestLoader(t *testing.T, srv *httptest.Server, opts Options) *Loader {
	t.Helper()
	client, err := NewClient(srv.URL, "session", "secret", 5*time.Second)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	l, err := New(client, opts)
	if err != nil {
		t.Fatalf("failed to create loader: %v", err)
	}
	return l
}

func TestLoadArticlesFirstSuccessWins(t *testing.T) {
	var hits []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, r.URL.RawQuery)
		if c, err := r.Cookie("session"); err != nil || c.Value != "secret" {
			t.Errorf("expected session cookie on request")
		}
		if r.URL.Query().Get("include_breakdowns") == "true" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"articles":[{"id":7,"title":"A","factuality_score":88,"link":"https://a.com/x"}],"current_page":1,"total_pages":1}`)
	}))
	defer srv.Close()

	l := newTestLoader(t, srv, Options{})
	articles, err := l.LoadArticles(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(articles) != 1 || articles[0].ID != 7 {
		t.Fatalf("unexpected articles %+v", articles)
	}
	if articles[0].Score == nil || *articles[0].Score != 88 {
		t.Error("expected score 88")
	}
	if len(hits) != 2 {
		t.Errorf("expected 2 sequential attempts, got %d (%v)", len(hits), hits)
	}
}

func TestLoadArticlesAllFailReturnsEmpty(t *testing.T) {
	var count int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&count, 1)
		if strings.HasSuffix(r.URL.RawQuery, "1000") {
			fmt.Fprint(w, `{not json`)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	l := newTestLoader(t, srv, Options{})
	articles, err := l.LoadArticles(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if articles == nil || len(articles) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", articles)
	}
	if count != 3 {
		t.Errorf("expected all 3 endpoints tried, got %d", count)
	}
}

func TestLoadArticlesUnauthorizedShortCircuits(t *testing.T) {
	var count int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&count, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	l := newTestLoader(t, srv, Options{})
	_, err := l.LoadArticles(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if count != 1 {
		t.Errorf("expected chain to stop after first 401, got %d attempts", count)
	}
}

func TestLoginRedirectTreatedAsUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login?next=/get_articles", http.StatusFound)
	}))
	defer srv.Close()

	l := newTestLoader(t, srv, Options{})
	if _, err := l.LoadArticles(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestLegacyArrayShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":1,"title":"One","factuality_score":null},{"id":2,"title":"Two"}]`)
	}))
	defer srv.Close()

	l := newTestLoader(t, srv, Options{Endpoints: []string{"/get_articles"}})
	articles, err := l.LoadArticles(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}
	if articles[0].Score != nil {
		t.Error("expected null score to decode as nil")
	}
}

func TestFeedFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/history.atom" {
			w.Header().Set("Content-Type", "application/atom+xml")
			fmt.Fprint(w, `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>History</title>
  <entry>
    <id>https://truthguard.local/results/42</id>
    <title>Feed article</title>
    <link href="https://news.example.com/story"/>
    <published>2026-02-10T08:00:00Z</published>
    <summary>Summary text</summary>
    <category term="factuality:73"/>
  </entry>
  <entry>
    <id>article-43</id>
    <title></title>
  </entry>
</feed>`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	l := newTestLoader(t, srv, Options{Endpoints: []string{"/get_articles"}, FeedURL: "/history.atom"})
	articles, err := l.LoadArticles(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 article from feed, got %d", len(articles))
	}
	a := articles[0]
	if a.ID != 42 || a.Title != "Feed article" {
		t.Errorf("unexpected article %+v", a)
	}
	if a.Score == nil || *a.Score != 73 || a.Level != "High" {
		t.Errorf("expected score 73/High, got %v/%q", a.Score, a.Level)
	}
	if a.Link == nil || *a.Link != "https://news.example.com/story" || a.InputType != "link" {
		t.Errorf("unexpected link %v / %q", a.Link, a.InputType)
	}
	if !strings.HasPrefix(a.AnalysisDate, "2026-02-10T08:00:00") {
		t.Errorf("unexpected date %q", a.AnalysisDate)
	}
}

func TestFeedNonFiniteScoresDropped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/history.rss" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, `<?xml version="1.0"?>
<rss version="2.0"><channel><title>History</title>
  <item><guid>results/1</guid><title>Not a number</title><pubDate>Tue, 10 Feb 2026 08:00:00 GMT</pubDate><category>factuality:NaN</category></item>
  <item><guid>results/2</guid><title>Scored</title><pubDate>Tue, 10 Feb 2026 09:00:00 GMT</pubDate><category>factuality:70</category></item>
  <item><guid>results/3</guid><title>Infinite</title><pubDate>Tue, 10 Feb 2026 10:00:00 GMT</pubDate><category>factuality:+Inf</category></item>
</channel></rss>`)
	}))
	defer srv.Close()

	l := newTestLoader(t, srv, Options{Endpoints: []string{"/get_articles"}, FeedURL: "/history.rss"})
	articles, err := l.LoadArticles(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(articles) != 3 {
		t.Fatalf("expected 3 articles, got %d", len(articles))
	}
	for _, a := range articles {
		if a.Title != "Scored" && a.Score != nil {
			t.Errorf("%s: expected nil score, got %v", a.Title, *a.Score)
		}
	}

	now := time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC)
	s := history.Calculate(articles, now)
	if s.TotalArticles != 3 || s.AvgFactuality != 70 {
		t.Errorf("unexpected summary total=%d avg=%v", s.TotalArticles, s.AvgFactuality)
	}
	if _, err := json.Marshal(s); err != nil {
		t.Fatalf("summary not encodable: %v", err)
	}
	opts := export.DefaultOptions(now)
	opts.Format = export.FormatJSON
	if err := export.Write(&bytes.Buffer{}, s, opts, now); err != nil {
		t.Fatalf("json export failed: %v", err)
	}
}

func TestArticleDetails(t *testing.T) {
	var detailHits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/get_article_details/1":
			atomic.AddInt32(&detailHits, 1)
			fmt.Fprint(w, `{"id":1,"title":"Full","content":"Body","factuality_breakdown":["a","b"]}`)
		case "/get_article_details/2":
			w.WriteHeader(http.StatusNotFound)
		case "/get_article_details/3":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	l := newTestLoader(t, srv, Options{})
	ctx := context.Background()

	a, err := l.ArticleDetails(ctx, 1)
	if err != nil || a == nil || a.Content != "Body" || len(a.Breakdown) != 2 {
		t.Fatalf("unexpected details %+v, err %v", a, err)
	}
	if _, err := l.ArticleDetails(ctx, 1); err != nil {
		t.Fatalf("unexpected error on cached lookup: %v", err)
	}
	if detailHits != 1 {
		t.Errorf("expected cached second lookup, got %d hits", detailHits)
	}

	if a, err := l.ArticleDetails(ctx, 2); a != nil || err != nil {
		t.Errorf("expected nil,nil for 404, got %v,%v", a, err)
	}
	if _, err := l.ArticleDetails(ctx, 3); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	if a, err := l.ArticleDetails(ctx, 4); a != nil || err != nil {
		t.Errorf("expected nil,nil for 500, got %v,%v", a, err)
	}
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("search_term") != "climate" || q.Get("filter_order") != "newest" || q.Get("page") != "2" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"articles":[{"id":9,"title":"Climate"}],"page":2,"total_pages":3,"total":11}`)
	}))
	defer srv.Close()

	l := newTestLoader(t, srv, Options{})
	page, err := l.Search(context.Background(), Query{Term: "climate", Order: "newest", Page: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.CurrentPage != 2 || page.TotalPages != 3 || page.Total != 11 || len(page.Articles) != 1 {
		t.Errorf("unexpected page %+v", page)
	}
}

type stubStrategy struct {
	name    string
	attempt Attempt
	calls   *int
}

func (s stubStrategy) Name() string { return s.name }

func (s stubStrategy) Load(context.Context) Attempt {
	*s.calls++
	return s.attempt
}

func TestStrategyOrder(t *testing.T) {
	client, _ := NewClient("http://127.0.0.1:1", "", "", time.Second)
	var calls int
	l, err := NewWithStrategies(client, Options{},
		stubStrategy{name: "a", attempt: Attempt{Outcome: OutcomeSkip, Err: errors.New("down")}, calls: &calls},
		stubStrategy{name: "b", attempt: Attempt{Outcome: OutcomeSuccess}, calls: &calls},
		stubStrategy{name: "c", attempt: Attempt{Outcome: OutcomeRedirect}, calls: &calls},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	articles, err := l.LoadArticles(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if articles == nil {
		t.Error("expected non-nil empty list on success without articles")
	}
	if calls != 2 {
		t.Errorf("expected 2 strategies called, got %d", calls)
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	if _, err := NewClient("not a url", "", "", 0); err == nil {
		t.Error("expected error for relative base URL")
	}
}
