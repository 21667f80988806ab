// Package export turns the cached statistics summary into downloadable
// JSON and PDF reports.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/TobiSchelling/facthistory/internal/history"
	"github.com/TobiSchelling/facthistory/internal/metrics"
)

// ErrNoStatistics is returned when an export is requested before any
// statistics have been loaded.
var ErrNoStatistics = errors.New("no statistics data available to export")

// Format selects the export encoding.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatJSON Format = "json"
)

// ParseFormat accepts "pdf" or "json" (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatPDF:
		return FormatPDF, nil
	case FormatJSON, "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want pdf or json)", s)
	}
}

// Options selects which sections go into an export.
type Options struct {
	Overview     bool   `json:"overview"`
	Distribution bool   `json:"distribution"`
	Activity     bool   `json:"activity"`
	Sources      bool   `json:"sources"`
	Articles     bool   `json:"articles"`
	Insights     bool   `json:"insights"`
	Detailed     bool   `json:"detailed"`
	Charts       bool   `json:"charts"`
	DateFrom     string `json:"dateFrom"`
	DateTo       string `json:"dateTo"`
	Format       Format `json:"format"`
}

// DefaultOptions selects every section except per-article breakdowns, over
// the last 30 days.
func DefaultOptions(now time.Time) Options {
	return Options{
		Overview:     true,
		Distribution: true,
		Activity:     true,
		Sources:      true,
		Articles:     true,
		Insights:     true,
		Charts:       true,
		DateFrom:     now.AddDate(0, 0, -30).Format(time.DateOnly),
		DateTo:       now.Format(time.DateOnly),
		Format:       FormatPDF,
	}
}

// Sections lists the section names accepted by SetSections.
var Sections = []string{"overview", "distribution", "activity", "sources", "articles", "insights", "detailed", "charts"}

// SetSections replaces the section toggles with the named ones.
func (o *Options) SetSections(names []string) error {
	o.Overview, o.Distribution, o.Activity, o.Sources = false, false, false, false
	o.Articles, o.Insights, o.Detailed, o.Charts = false, false, false, false
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "overview":
			o.Overview = true
		case "distribution":
			o.Distribution = true
		case "activity":
			o.Activity = true
		case "sources":
			o.Sources = true
		case "articles":
			o.Articles = true
		case "insights":
			o.Insights = true
		case "detailed":
			o.Detailed = true
		case "charts":
			o.Charts = true
		case "":
		default:
			return fmt.Errorf("unknown export section %q", n)
		}
	}
	return nil
}

// DateRange is the requested reporting window.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// OverviewSection mirrors the dashboard's headline numbers.
type OverviewSection struct {
	TotalArticles     int     `json:"total_articles"`
	AvgFactuality     float64 `json:"avg_factuality"`
	ArticlesThisWeek  int     `json:"articles_this_week"`
	ArticlesThisMonth int     `json:"articles_this_month"`
	Streak            int     `json:"streak"`
	UniqueSources     int     `json:"unique_sources"`
	DiversityScore    string  `json:"diversity_score"`
	PersonalScore     string  `json:"personal_score"`
}

// InsightsSection mirrors the quick-insights panel.
type InsightsSection struct {
	MostActiveDay     string  `json:"most_active_day"`
	HighestFactuality float64 `json:"highest_factuality"`
	LowestFactuality  float64 `json:"lowest_factuality"`
}

// ArticleEntry is one exported article.
type ArticleEntry struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	AnalysisDate string   `json:"analysis_date"`
	Score        *float64 `json:"factuality_score"`
	Level        string   `json:"factuality_level"`
	InputType    string   `json:"input_type"`
	Link         *string  `json:"link"`
	Summary      string   `json:"summary"`
	Breakdown    []string `json:"factuality_breakdown,omitempty"`
}

// Document is the JSON export. Unselected sections are omitted.
type Document struct {
	ExportID      string    `json:"export_id"`
	GeneratedAt   time.Time `json:"generated_at"`
	DateRange     DateRange `json:"date_range"`
	ExportOptions Options   `json:"export_options"`

	Overview               *OverviewSection      `json:"overview,omitempty"`
	FactualityDistribution *history.Distribution `json:"factuality_distribution,omitempty"`
	WeeklyActivity         *[7]int               `json:"weekly_activity,omitempty"`
	TopSources             []history.SourceStat  `json:"top_sources,omitempty"`
	Insights               *InsightsSection      `json:"insights,omitempty"`
	Articles               []ArticleEntry        `json:"articles,omitempty"`
}

// Build assembles the export document for the selected sections.
func Build(s *history.Summary, opts Options, now time.Time) (*Document, error) {
	if s == nil {
		return nil, ErrNoStatistics
	}

	doc := &Document{
		ExportID:      uuid.NewString(),
		GeneratedAt:   now.UTC(),
		DateRange:     DateRange{From: opts.DateFrom, To: opts.DateTo},
		ExportOptions: opts,
	}

	if opts.Overview {
		doc.Overview = &OverviewSection{
			TotalArticles:     s.TotalArticles,
			AvgFactuality:     s.AvgFactuality,
			ArticlesThisWeek:  s.ArticlesThisWeek,
			ArticlesThisMonth: s.ArticlesThisMonth,
			Streak:            s.Streak,
			UniqueSources:     s.UniqueSources,
			DiversityScore:    s.DiversityScore,
			PersonalScore:     s.PersonalScore,
		}
	}
	if opts.Distribution {
		d := s.FactualityDistribution
		doc.FactualityDistribution = &d
	}
	if opts.Activity {
		w := s.WeeklyActivity
		doc.WeeklyActivity = &w
	}
	if opts.Sources {
		doc.TopSources = append([]history.SourceStat{}, s.TopSources...)
	}
	if opts.Insights {
		doc.Insights = &InsightsSection{
			MostActiveDay:     s.MostActiveDay,
			HighestFactuality: s.HighestFactuality,
			LowestFactuality:  s.LowestFactuality,
		}
	}
	if opts.Articles {
		doc.Articles = articleEntries(s, opts, now.Location())
	}
	return doc, nil
}

func articleEntries(s *history.Summary, opts Options, loc *time.Location) []ArticleEntry {
	entries := []ArticleEntry{}
	for _, a := range s.AllArticles {
		if !history.InRange(a.AnalysisDate, opts.DateFrom, opts.DateTo, loc) {
			continue
		}
		e := ArticleEntry{
			ID:           a.ID,
			Title:        a.Title,
			AnalysisDate: a.AnalysisDate,
			Score:        a.Score,
			Level:        a.Level,
			InputType:    a.InputType,
			Link:         a.Link,
			Summary:      a.Summary,
		}
		if opts.Detailed {
			e.Breakdown = a.Breakdown
		}
		entries = append(entries, e)
	}
	return entries
}

// WriteJSON writes the document as indented JSON.
func WriteJSON(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}
	metrics.ExportsTotal.WithLabelValues(string(FormatJSON)).Inc()
	return nil
}

// FileName returns the download name for an export generated at now.
func FileName(f Format, now time.Time) string {
	return fmt.Sprintf("truthguard_statistics_%s.%s", now.UTC().Format(time.DateOnly), f)
}

// ContentType returns the MIME type for f.
func ContentType(f Format) string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "application/json"
}

// Write renders s in the format selected by opts.
func Write(w io.Writer, s *history.Summary, opts Options, now time.Time) error {
	if s == nil {
		return ErrNoStatistics
	}
	if opts.Format == FormatPDF {
		return WritePDF(w, s, opts, now)
	}
	doc, err := Build(s, opts, now)
	if err != nil {
		return err
	}
	return WriteJSON(w, doc)
}
