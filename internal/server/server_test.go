package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/facthistory/internal/dashboard"
	"github.com/TobiSchelling/facthistory/internal/database"
	"github.com/TobiSchelling/facthistory/internal/history"
	"github.com/TobiSchelling/facthistory/internal/loader"
)

var fixedNow = time.Date(2026, 2, 11, 15, 0, 0, 0, time.UTC)

func ptr(s string) *string { return &s }

func score(v float64) *float64 { return &v }

type stubSource struct {
	articles []history.Article
	err      error
}

func (s *stubSource) LoadArticles(ctx context.Context) ([]history.Article, error) {
	return s.articles, s.err
}

func (s *stubSource) ArticleDetails(ctx context.Context, id int64) (*history.Article, error) {
	return nil, s.err
}

func (s *stubSource) Search(ctx context.Context, q loader.Query) (*loader.Page, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &loader.Page{
		Articles:    []history.Article{{ID: 9, Title: "Search hit " + q.Term, Score: score(55)}},
		CurrentPage: 1,
		TotalPages:  1,
		Total:       1,
	}, nil
}

type stubPreviews struct{}

func (stubPreviews) Preview(ctx context.Context, link string) *database.Preview {
	return &database.Preview{URL: link, Title: "Preview title", SiteName: "Example"}
}

func testArticles(n int) []history.Article {
	out := make([]history.Article, n)
	for i := range out {
		out[i] = history.Article{
			ID:           int64(i + 1),
			Title:        "Story " + string(rune('A'+i)),
			Summary:      "**Bold** claim <script>alert(1)</script>",
			Score:        score(85),
			Level:        "Very High",
			AnalysisDate: fixedNow.Add(-time.Duration(i) * time.Hour).Format(time.RFC3339),
			InputType:    "link",
			Link:         ptr("https://news.example.com/story"),
			Breakdown:    []string{"Claim one verified"},
		}
	}
	return out
}

func newTestServer(t *testing.T, src *stubSource) (*Server, *dashboard.Controller) {
	t.Helper()
	ctrl := dashboard.New(src, dashboard.Options{Now: func() time.Time { return fixedNow }})
	srv, err := New(ctrl, Options{LoginURL: "/login", Previews: stubPreviews{}, RefreshEvery: time.Hour})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv, ctrl
}

func get(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", target, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestIndexRoute(t *testing.T) {
	srv, _ := newTestServer(t, &stubSource{articles: testArticles(7)})

	rec := get(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Your Analysis History", "Story A", "Factuality Distribution", "news.example.com", "Showing 1-5 of 7 articles"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in response body", want)
		}
	}
	if strings.Contains(body, "Story F") {
		t.Error("expected only the first page of articles")
	}
}

func TestIndexEmptyHistory(t *testing.T) {
	srv, _ := newTestServer(t, &stubSource{articles: []history.Article{}})

	body := get(t, srv, "/").Body.String()
	if !strings.Contains(body, "No articles analyzed yet") {
		t.Error("expected empty state")
	}
}

func TestIndexUnauthorizedRedirects(t *testing.T) {
	srv, _ := newTestServer(t, &stubSource{err: loader.ErrUnauthorized})

	rec := get(t, srv, "/")
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login" {
		t.Errorf("expected redirect to /login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestArticlesFragment(t *testing.T) {
	srv, ctrl := newTestServer(t, &stubSource{articles: testArticles(7)})
	ctrl.Refresh(context.Background())

	rec := get(t, srv, "/articles?page=2&viewport=mobile")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "<html") {
		t.Error("fragment should not include the page layout")
	}
	if !strings.Contains(body, `id="article-list"`) || !strings.Contains(body, "Story F") {
		t.Error("expected second page of the article list")
	}
	if !strings.Contains(body, `data-mobile="true"`) {
		t.Error("expected mobile marker")
	}
}

func TestArticleRoute(t *testing.T) {
	srv, ctrl := newTestServer(t, &stubSource{articles: testArticles(2)})
	ctrl.Refresh(context.Background())

	rec := get(t, srv, "/article/0")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<strong>Bold</strong>") {
		t.Error("expected markdown rendered")
	}
	if strings.Contains(body, "<script>alert") {
		t.Error("expected script to be sanitized")
	}
	for _, want := range []string{"URL Analysis", "Claim one verified", "Preview title"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in response", want)
		}
	}

	if rec := get(t, srv, "/article/5"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown index, got %d", rec.Code)
	}
	if rec := get(t, srv, "/article/abc"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for bad index, got %d", rec.Code)
	}
}

func TestSearchRoute(t *testing.T) {
	srv, _ := newTestServer(t, &stubSource{})

	rec := get(t, srv, "/search?q=budget&order=newest")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Search hit budget") {
		t.Error("expected search result in response")
	}
}

func TestExportWithoutStatistics(t *testing.T) {
	srv, _ := newTestServer(t, &stubSource{})

	rec := get(t, srv, "/export?format=json")
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/?error=No+statistics+data+available+to+export" {
		t.Errorf("unexpected redirect %q", loc)
	}
}

func TestExportJSON(t *testing.T) {
	srv, ctrl := newTestServer(t, &stubSource{articles: testArticles(3)})
	ctrl.Refresh(context.Background())

	rec := get(t, srv, "/export?format=json&overview=on&insights=on")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "truthguard_statistics_2026-02-11.json") {
		t.Errorf("unexpected disposition %q", cd)
	}

	var doc map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if _, ok := doc["overview"]; !ok {
		t.Error("expected overview section")
	}
	if _, ok := doc["articles"]; ok {
		t.Error("articles were not selected")
	}
}

func TestExportFormWithNoSections(t *testing.T) {
	srv, ctrl := newTestServer(t, &stubSource{articles: testArticles(3)})
	ctrl.Refresh(context.Background())

	rec := get(t, srv, "/export?sections=1&dateFrom=2026-01-01&dateTo=2026-02-11&format=json")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var doc map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	for _, key := range []string{"overview", "factuality_distribution", "weekly_activity", "top_sources", "insights", "articles"} {
		if _, ok := doc[key]; ok {
			t.Errorf("unticked section %q was exported", key)
		}
	}
	for _, key := range []string{"export_id", "generated_at", "date_range", "export_options"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("missing header field %q", key)
		}
	}

	rec = get(t, srv, "/export?format=json")
	doc = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if _, ok := doc["overview"]; !ok {
		t.Error("expected defaults for a bare export request")
	}
}

func TestExportPDF(t *testing.T) {
	srv, ctrl := newTestServer(t, &stubSource{articles: testArticles(3)})
	ctrl.Refresh(context.Background())

	rec := get(t, srv, "/export?format=pdf")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/pdf" {
		t.Errorf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	if !strings.HasPrefix(rec.Body.String(), "%PDF-") {
		t.Error("expected PDF body")
	}

	if rec := get(t, srv, "/export?format=xml"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown format, got %d", rec.Code)
	}
}

func TestRefreshRoute(t *testing.T) {
	srv, ctrl := newTestServer(t, &stubSource{articles: testArticles(1)})

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/refresh", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	rec := post()
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/" {
		t.Errorf("expected redirect to /, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if ctrl.Current() == nil {
		t.Error("expected summary after refresh")
	}

	if rec := post(); rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 for rapid refresh, got %d", rec.Code)
	}
}

func TestRefreshUnauthorized(t *testing.T) {
	srv, _ := newTestServer(t, &stubSource{err: loader.ErrUnauthorized})

	req := httptest.NewRequest("POST", "/refresh", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login" {
		t.Errorf("expected redirect to /login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestStatisticsAPI(t *testing.T) {
	srv, ctrl := newTestServer(t, &stubSource{articles: testArticles(2)})

	if rec := get(t, srv, "/api/statistics"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 before load, got %d", rec.Code)
	}

	ctrl.Refresh(context.Background())
	rec := get(t, srv, "/api/statistics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var s history.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if s.TotalArticles != 2 {
		t.Errorf("expected 2 articles, got %d", s.TotalArticles)
	}
}

func TestMetricsRoute(t *testing.T) {
	srv, _ := newTestServer(t, &stubSource{})
	rec := get(t, srv, "/metrics")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "facthistory_") {
		t.Error("expected facthistory metrics")
	}
}

func TestStaticRoute(t *testing.T) {
	srv, _ := newTestServer(t, &stubSource{})

	rec := get(t, srv, "/static/style.css")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "font-sans") {
		t.Error("expected CSS content")
	}

	rec = get(t, srv, "/static/dashboard.js")
	if !strings.Contains(rec.Body.String(), "DEBOUNCE_MS = 250") {
		t.Error("expected debounced resize script")
	}
	if !strings.Contains(rec.Body.String(), "MOBILE_BELOW = 640") {
		t.Error("expected 640px mobile breakpoint")
	}
}
