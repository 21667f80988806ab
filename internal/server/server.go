// Package server serves the statistics dashboard over HTTP.
package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yuin/goldmark"
	"golang.org/x/time/rate"

	"github.com/TobiSchelling/facthistory/internal/dashboard"
	"github.com/TobiSchelling/facthistory/internal/database"
	"github.com/TobiSchelling/facthistory/internal/export"
	"github.com/TobiSchelling/facthistory/internal/history"
	"github.com/TobiSchelling/facthistory/internal/loader"
	"github.com/TobiSchelling/facthistory/internal/view"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var (
	md        = goldmark.New()
	sanitizer = bluemonday.UGCPolicy()
)

const noStatisticsMessage = "No statistics data available to export"

// Previewer resolves link previews for the detail page.
type Previewer interface {
	Preview(ctx context.Context, link string) *database.Preview
}

// Options configures a Server.
type Options struct {
	LoginURL       string
	SearchPageSize int
	RefreshEvery   time.Duration // minimum spacing of manual refreshes
	Previews       Previewer     // optional
}

// Server is the HTTP server for the dashboard.
type Server struct {
	ctrl     *dashboard.Controller
	opts     Options
	limiter  *rate.Limiter
	pages    map[string]*template.Template
	fragment *template.Template
	mux      *http.ServeMux
}

// New creates a new Server.
func New(ctrl *dashboard.Controller, opts Options) (*Server, error) {
	if opts.LoginURL == "" {
		opts.LoginURL = "/login"
	}
	if opts.SearchPageSize <= 0 {
		opts.SearchPageSize = view.PageSize
	}
	if opts.RefreshEvery <= 0 {
		opts.RefreshEvery = 5 * time.Second
	}

	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"pct":      func(v float64) string { return strconv.FormatFloat(v, 'f', 0, 64) },
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	// The base carries the shared partials so every page and the list
	// fragment can use them.
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html", "templates/partials.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone so its {{define "content"}} and
	// {{define "title"}} do not collide.
	pageNames := []string{"index.html", "article.html", "search.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{
		ctrl:     ctrl,
		opts:     opts,
		limiter:  rate.NewLimiter(rate.Every(opts.RefreshEvery), 1),
		pages:    pages,
		fragment: base,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /articles", s.handleArticles)
	s.mux.HandleFunc("GET /article/{index}", s.handleArticle)
	s.mux.HandleFunc("GET /search", s.handleSearch)
	s.mux.HandleFunc("POST /refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /export", s.handleExport)
	s.mux.HandleFunc("GET /api/statistics", s.handleStatistics)
}

// summary returns the current summary, loading it on first use. A nil
// summary with a nil error means the load failed and was logged.
func (s *Server) summary(ctx context.Context) (*history.Summary, error) {
	if cur := s.ctrl.Current(); cur != nil {
		return cur, nil
	}
	sum, err := s.ctrl.Refresh(ctx)
	if errors.Is(err, loader.ErrUnauthorized) {
		return nil, err
	}
	if err != nil {
		log.Printf("Initial load failed: %v", err)
		return nil, nil
	}
	return sum, nil
}

type indexPage struct {
	Error        string
	Loaded       bool
	Updated      string
	Overview     view.Overview
	Distribution []view.Bar
	Weekly       []view.Bar
	Ranges       []view.Bar
	Sources      []view.SourceRow
	Insights     view.Insights
	List         view.ArticleList
	Export       export.Options
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sum, err := s.summary(r.Context())
	if errors.Is(err, loader.ErrUnauthorized) {
		http.Redirect(w, r, s.opts.LoginURL, http.StatusFound)
		return
	}

	now := s.ctrl.Now()
	data := indexPage{
		Error:  r.URL.Query().Get("error"),
		Loaded: sum != nil,
		Export: export.DefaultOptions(now),
	}
	if sum == nil {
		if data.Error == "" {
			data.Error = "Failed to load statistics. Please try refreshing."
		}
		sum = history.Empty(now)
	} else {
		data.Updated = view.RelativeLabel(sum.GeneratedAt.Format(time.RFC3339Nano), now)
	}

	data.Overview = view.NewOverview(sum)
	data.Distribution = view.DistributionBars(sum)
	data.Weekly = view.WeeklyBars(sum)
	data.Ranges = view.ScoreRangeBars(sum)
	data.Sources = view.TopSources(sum)
	data.Insights = view.NewInsights(sum)
	data.List = s.articleList(r, sum, now)

	s.render(w, "index.html", data)
}

func (s *Server) articleList(r *http.Request, sum *history.Summary, now time.Time) view.ArticleList {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	mobile := view.IsMobile(r.URL.Query().Get("viewport"), r.UserAgent())
	return view.NewArticleList(sum, page, mobile, now)
}

// handleArticles renders only the list fragment, for pagination and resize
// re-renders.
func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	sum := s.ctrl.Current()
	now := s.ctrl.Now()
	if sum == nil {
		sum = history.Empty(now)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.fragment.ExecuteTemplate(w, "article-list", s.articleList(r, sum, now)); err != nil {
		log.Printf("Error rendering article list: %v", err)
	}
}

type articlePage struct {
	Article     view.Breakdown
	SummaryHTML template.HTML
	Preview     *database.Preview
}

func (s *Server) handleArticle(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	a, err := s.ctrl.Details(r.Context(), index)
	switch {
	case errors.Is(err, loader.ErrUnauthorized):
		http.Redirect(w, r, s.opts.LoginURL, http.StatusFound)
		return
	case errors.Is(err, dashboard.ErrArticleNotFound):
		http.NotFound(w, r)
		return
	case err != nil:
		log.Printf("Error loading article %d: %v", index, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	data := articlePage{
		Article:     view.NewBreakdown(index, *a, s.ctrl.Now()),
		SummaryHTML: renderMarkdown(a.Summary),
	}
	if s.opts.Previews != nil && a.Link != nil && *a.Link != "" {
		data.Preview = s.opts.Previews.Preview(r.Context(), *a.Link)
	}
	s.render(w, "article.html", data)
}

type searchPage struct {
	Term     string
	Order    string
	Cards    []view.Card
	Pages    []view.PageItem
	Total    int
	PrevPage int
	NextPage int
	HasPrev  bool
	HasNext  bool
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := loader.Query{
		Term:    strings.TrimSpace(r.URL.Query().Get("q")),
		Order:   r.URL.Query().Get("order"),
		PerPage: s.opts.SearchPageSize,
	}
	q.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))

	page, err := s.ctrl.Search(r.Context(), q)
	if errors.Is(err, loader.ErrUnauthorized) {
		http.Redirect(w, r, s.opts.LoginURL, http.StatusFound)
		return
	}
	if err != nil {
		log.Printf("Search failed: %v", err)
		page = &loader.Page{CurrentPage: 1}
	}

	now := s.ctrl.Now()
	data := searchPage{Term: q.Term, Order: q.Order, Total: page.Total}
	for i, a := range page.Articles {
		data.Cards = append(data.Cards, view.NewCard(i, history.View(a), now))
	}
	if page.TotalPages > 1 {
		data.Pages = view.PageWindow(page.CurrentPage, page.TotalPages, view.MaxPagesDesktop)
	}
	data.PrevPage, data.NextPage = page.CurrentPage-1, page.CurrentPage+1
	data.HasPrev = page.CurrentPage > 1
	data.HasNext = page.CurrentPage < page.TotalPages
	s.render(w, "search.html", data)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		http.Error(w, "Refresh already requested, try again shortly", http.StatusTooManyRequests)
		return
	}

	refresh := s.ctrl.Refresh
	if r.FormValue("force") != "" {
		refresh = s.ctrl.Reload
	}
	_, err := refresh(r.Context())
	switch {
	case errors.Is(err, loader.ErrUnauthorized):
		http.Redirect(w, r, s.opts.LoginURL, http.StatusFound)
	case errors.Is(err, dashboard.ErrSuperseded), err == nil:
		http.Redirect(w, r, "/", http.StatusFound)
	default:
		log.Printf("Refresh failed: %v", err)
		http.Redirect(w, r, "/?error="+url.QueryEscape("Refresh failed: "+err.Error()), http.StatusFound)
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sum := s.ctrl.Current()
	if sum == nil {
		http.Redirect(w, r, "/?error="+url.QueryEscape(noStatisticsMessage), http.StatusFound)
		return
	}

	now := s.ctrl.Now()
	opts, err := exportOptions(r, now)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, sum, opts, now); err != nil {
		log.Printf("Export failed: %v", err)
		http.Error(w, "Export failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", export.ContentType(opts.Format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(opts.Format, now)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	buf.WriteTo(w)
}

const sectionsMarker = "sections"

// exportOptions reads the export form. The form's "sections" marker makes
// the checkboxes authoritative, so an all-unticked form exports no sections.
// Without the marker and without checkboxes the defaults apply.
func exportOptions(r *http.Request, now time.Time) (export.Options, error) {
	q := r.URL.Query()
	opts := export.DefaultOptions(now)

	if f := q.Get("format"); f != "" {
		format, err := export.ParseFormat(f)
		if err != nil {
			return opts, err
		}
		opts.Format = format
	}

	var sections []string
	for _, name := range export.Sections {
		if v := q.Get(name); v == "on" || v == "true" || v == "1" {
			sections = append(sections, name)
		}
	}
	if q.Has(sectionsMarker) || len(sections) > 0 {
		if err := opts.SetSections(sections); err != nil {
			return opts, err
		}
	}
	if q.Has("dateFrom") {
		opts.DateFrom = q.Get("dateFrom")
	}
	if q.Has("dateTo") {
		opts.DateTo = q.Get("dateTo")
	}
	return opts, nil
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	sum := s.ctrl.Current()
	if sum == nil {
		http.Error(w, noStatisticsMessage, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(sum); err != nil {
		log.Printf("Error encoding statistics: %v", err)
	}
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

// renderMarkdown converts backend-supplied markdown to sanitized HTML.
func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(sanitizer.SanitizeBytes(buf.Bytes())) //nolint: gosec
}

// Serve starts the HTTP server on the given port.
func Serve(ctx context.Context, ctrl *dashboard.Controller, opts Options, port int) error {
	srv, err := New(ctrl, opts)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	httpSrv := &http.Server{Addr: addr, Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() {
		log.Printf("Server listening on http://%s", addr)
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
}
