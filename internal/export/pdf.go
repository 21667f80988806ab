package export

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/TobiSchelling/facthistory/internal/history"
	"github.com/TobiSchelling/facthistory/internal/metrics"
	"github.com/TobiSchelling/facthistory/internal/view"
)

const (
	pageWidth   = 210.0
	margin      = 15.0
	contentW    = pageWidth - 2*margin
	labelW      = 45.0
	barMaxW     = contentW - labelW - 20
	lineH       = 6.0
	sectionGapH = 4.0
)

var toneRGB = map[string][3]int{
	"green":  {34, 197, 94},
	"yellow": {234, 179, 8},
	"orange": {249, 115, 22},
	"red":    {239, 68, 68},
	"cyan":   {6, 182, 212},
}

// pdfReport wraps an fpdf document with the report's layout helpers.
type pdfReport struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

// WritePDF renders the selected sections of s as an A4 PDF.
func WritePDF(w io.Writer, s *history.Summary, opts Options, now time.Time) error {
	if s == nil {
		return ErrNoStatistics
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetTitle("TruthGuard Statistics Report", true)
	pdf.SetCreator("facthistory", true)
	pdf.AliasNbPages("")
	r := &pdfReport{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	r.header(opts, now)
	if opts.Overview {
		r.overview(s)
	}
	if opts.Distribution {
		r.distribution(s, opts.Charts)
	}
	if opts.Activity {
		r.activity(s, opts.Charts)
	}
	if opts.Sources {
		r.sources(s)
	}
	if opts.Insights {
		r.insights(s)
	}
	if opts.Articles {
		r.articles(s, opts, now.Location())
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("writing pdf: %w", err)
	}
	metrics.ExportsTotal.WithLabelValues(string(FormatPDF)).Inc()
	return nil
}

func (r *pdfReport) header(opts Options, now time.Time) {
	p := r.pdf
	p.SetFont("Helvetica", "B", 20)
	p.SetTextColor(17, 24, 39)
	p.CellFormat(contentW, 10, "TruthGuard Statistics Report", "", 1, "L", false, 0, "")

	p.SetFont("Helvetica", "", 10)
	p.SetTextColor(100, 100, 100)
	p.CellFormat(contentW, lineH, "Generated "+now.Format("January 02, 2006 15:04"), "", 1, "L", false, 0, "")
	if opts.DateFrom != "" || opts.DateTo != "" {
		p.CellFormat(contentW, lineH, fmt.Sprintf("Date range: %s to %s", orDash(opts.DateFrom), orDash(opts.DateTo)), "", 1, "L", false, 0, "")
	}
	p.Ln(sectionGapH)
}

func (r *pdfReport) section(title string) {
	p := r.pdf
	if p.GetY() > 250 {
		p.AddPage()
	}
	p.Ln(sectionGapH)
	p.SetFont("Helvetica", "B", 14)
	p.SetTextColor(8, 145, 178)
	p.CellFormat(contentW, 8, title, "", 1, "L", false, 0, "")
	p.SetDrawColor(200, 200, 200)
	p.Line(margin, p.GetY(), pageWidth-margin, p.GetY())
	p.Ln(2)
	p.SetFont("Helvetica", "", 10)
	p.SetTextColor(30, 30, 30)
}

func (r *pdfReport) row(label, value string) {
	p := r.pdf
	p.SetFont("Helvetica", "B", 10)
	p.CellFormat(60, lineH, r.tr(label), "", 0, "L", false, 0, "")
	p.SetFont("Helvetica", "", 10)
	p.CellFormat(contentW-60, lineH, r.tr(value), "", 1, "L", false, 0, "")
}

func (r *pdfReport) bar(label string, count int, pct float64, tone string, chart bool) {
	p := r.pdf
	p.CellFormat(labelW, lineH, r.tr(label), "", 0, "L", false, 0, "")
	if chart {
		rgb := toneRGB[tone]
		x, y := p.GetX(), p.GetY()
		p.SetFillColor(229, 231, 235)
		p.Rect(x, y+1.5, barMaxW, lineH-3, "F")
		if w := barMaxW * pct / 100; w > 0 {
			p.SetFillColor(rgb[0], rgb[1], rgb[2])
			p.Rect(x, y+1.5, w, lineH-3, "F")
		}
		p.SetX(x + barMaxW + 2)
	}
	p.CellFormat(18, lineH, fmt.Sprintf("%d", count), "", 1, "R", false, 0, "")
}

func (r *pdfReport) overview(s *history.Summary) {
	r.section("Overview")
	r.row("Total articles", fmt.Sprintf("%d", s.TotalArticles))
	r.row("Average factuality", fmt.Sprintf("%.1f%%", s.AvgFactuality))
	r.row("This week / month", fmt.Sprintf("%d / %d", s.ArticlesThisWeek, s.ArticlesThisMonth))
	r.row("Analysis streak", fmt.Sprintf("%d (%s)", s.Streak, s.StreakStatus))
	r.row("Sources analyzed", fmt.Sprintf("%d (%s)", s.UniqueSources, s.DiversityScore))
	r.row("Personal score", s.PersonalScore)
}

func (r *pdfReport) distribution(s *history.Summary, chart bool) {
	r.section("Factuality Distribution")
	bars := view.DistributionBars(s)
	if len(bars) == 0 {
		r.pdf.CellFormat(contentW, lineH, "No articles analyzed yet", "", 1, "L", false, 0, "")
		return
	}
	for _, b := range bars {
		r.bar(fmt.Sprintf("%s (%s)", b.Label, b.Caption), b.Count, b.Percent, b.Tone, chart)
	}
	if ranges := view.ScoreRangeBars(s); chart && len(ranges) > 0 {
		r.pdf.Ln(2)
		for _, b := range ranges {
			r.bar(b.Label, b.Count, b.Percent, b.Tone, chart)
		}
	}
}

func (r *pdfReport) activity(s *history.Summary, chart bool) {
	r.section("Weekly Activity")
	bars := view.WeeklyBars(s)
	if len(bars) == 0 {
		r.pdf.CellFormat(contentW, lineH, "No activity data yet", "", 1, "L", false, 0, "")
		return
	}
	for i, b := range bars {
		r.bar(history.DayNames[i], b.Count, b.Percent, b.Tone, chart)
	}
}

func (r *pdfReport) sources(s *history.Summary) {
	r.section("Top Sources")
	if len(s.TopSources) == 0 {
		r.pdf.CellFormat(contentW, lineH, "No sources analyzed yet", "", 1, "L", false, 0, "")
		return
	}
	p := r.pdf
	p.SetFont("Helvetica", "B", 10)
	p.SetFillColor(243, 244, 246)
	p.CellFormat(10, lineH, "#", "1", 0, "C", true, 0, "")
	p.CellFormat(110, lineH, "Domain", "1", 0, "L", true, 0, "")
	p.CellFormat(25, lineH, "Articles", "1", 0, "R", true, 0, "")
	p.CellFormat(contentW-145, lineH, "Avg score", "1", 1, "R", true, 0, "")
	p.SetFont("Helvetica", "", 10)
	for i, src := range s.TopSources {
		p.CellFormat(10, lineH, fmt.Sprintf("%d", i+1), "1", 0, "C", false, 0, "")
		p.CellFormat(110, lineH, r.tr(truncate(src.Domain, 60)), "1", 0, "L", false, 0, "")
		p.CellFormat(25, lineH, fmt.Sprintf("%d", src.Count), "1", 0, "R", false, 0, "")
		p.CellFormat(contentW-145, lineH, fmt.Sprintf("%d%%", int(math.Round(src.AvgFactuality))), "1", 1, "R", false, 0, "")
	}
}

func (r *pdfReport) insights(s *history.Summary) {
	r.section("Insights")
	r.row("Most active day", s.MostActiveDay)
	r.row("Highest factuality", fmt.Sprintf("%.1f%%", s.HighestFactuality))
	r.row("Lowest factuality", fmt.Sprintf("%.1f%%", s.LowestFactuality))
}

func (r *pdfReport) articles(s *history.Summary, opts Options, loc *time.Location) {
	r.section("Analyzed Articles")
	p := r.pdf
	written := 0
	for _, a := range s.AllArticles {
		if !history.InRange(a.AnalysisDate, opts.DateFrom, opts.DateTo, loc) {
			continue
		}
		written++

		score := "n/a"
		if history.ValidScore(a.Score) {
			score = fmt.Sprintf("%.0f%%", *a.Score)
		}
		p.SetFont("Helvetica", "B", 11)
		p.MultiCell(contentW, lineH, r.tr(orDash(a.Title)), "", "L", false)
		p.SetFont("Helvetica", "", 9)
		p.SetTextColor(100, 100, 100)
		meta := fmt.Sprintf("%s  |  %s  |  %s", view.DateLabel(a.AnalysisDate, loc), score, orDash(a.Level))
		if a.Link != nil && *a.Link != "" {
			meta += "  |  " + truncate(*a.Link, 70)
		}
		p.MultiCell(contentW, 5, r.tr(meta), "", "L", false)
		p.SetTextColor(30, 30, 30)
		if a.Summary != "" {
			p.MultiCell(contentW, 5, r.tr(a.Summary), "", "L", false)
		}
		if opts.Detailed {
			for _, point := range a.Breakdown {
				p.SetX(margin + 4)
				p.MultiCell(contentW-4, 5, r.tr("- "+point), "", "L", false)
			}
		}
		p.Ln(3)
	}
	if written == 0 {
		p.CellFormat(contentW, lineH, "No articles in the selected date range", "", 1, "L", false, 0, "")
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
