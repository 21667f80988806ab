package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/facthistory/internal/config"
	"github.com/TobiSchelling/facthistory/internal/dashboard"
	"github.com/TobiSchelling/facthistory/internal/database"
	"github.com/TobiSchelling/facthistory/internal/export"
	"github.com/TobiSchelling/facthistory/internal/history"
	"github.com/TobiSchelling/facthistory/internal/loader"
	"github.com/TobiSchelling/facthistory/internal/preview"
	"github.com/TobiSchelling/facthistory/internal/server"
	"github.com/TobiSchelling/facthistory/internal/view"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "facthistory",
	Short:   "Statistics dashboard for your fact-check history",
	Long:    "facthistory loads the articles you have analyzed, aggregates factuality statistics, and serves or exports them.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setLogFlags(verbose)

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		if err := config.LoadEnv(); err != nil {
			return err
		}
		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if strings.EqualFold(cfg.Logging.Level, "DEBUG") {
			setLogFlags(true)
		}
		return nil
	},
}

func setLogFlags(detailed bool) {
	if detailed {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(log.LstdFlags)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(articlesCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(snapshotsCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("facthistory", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/facthistory/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to point at your analysis backend, then export your session cookie as FACTHISTORY_SESSION.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and local database status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		session := "not set"
		if cfg.Backend.SessionValue() != "" {
			session = "set"
		}
		fmt.Println("Backend:")
		fmt.Printf("  URL: %s\n", cfg.Backend.BaseURL)
		fmt.Printf("  Endpoints: %d configured\n", len(cfg.Backend.Endpoints))
		if cfg.Backend.FeedURL != "" {
			fmt.Printf("  Feed fallback: %s\n", cfg.Backend.FeedURL)
		}
		fmt.Printf("  Session (%s): %s\n", cfg.Backend.SessionEnv, session)
		fmt.Println("\nDatabase:")
		fmt.Printf("  Path: %s\n", db.Path())
		fmt.Printf("  Snapshots: %d\n", stats.Snapshots)
		fmt.Printf("  Cached previews: %d\n", stats.Previews)
		if stats.LatestSnapshot != nil {
			if t, err := time.Parse(time.RFC3339Nano, *stats.LatestSnapshot); err == nil {
				fmt.Printf("  Last snapshot: %s (%s)\n", t.Local().Format("Jan 02, 2006 15:04"), humanize.Time(t))
			}
		}
		return nil
	},
}

// --- stats command ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Load the history and print aggregate statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctrl, err := newController(db)
		if err != nil {
			return err
		}
		s, err := loadSummary(cmd.Context(), ctrl)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		ov := view.NewOverview(s)
		in := view.NewInsights(s)
		heading(out, "Overview")
		if err := renderTable(out, []string{"Metric", "Value", "Note"}, [][]string{
			{"Articles analyzed", fmt.Sprint(ov.TotalArticles), ov.WeekChange},
			{"Avg. factuality", ov.AvgFactuality, ov.Trend},
			{"Analysis streak", fmt.Sprint(ov.Streak), ov.StreakStatus},
			{"Sources analyzed", fmt.Sprint(ov.UniqueSources), ov.DiversityScore + " diversity"},
			{"This month", fmt.Sprint(in.ThisMonth), ""},
			{"Most active day", in.MostActiveDay, ""},
			{"Highest factuality", in.HighestFactuality, ""},
			{"Personal score", gradeColor(in.PersonalScore), ""},
		}); err != nil {
			return err
		}

		if bars := view.DistributionBars(s); len(bars) > 0 {
			heading(out, "Factuality distribution")
			var rows [][]string
			for _, b := range bars {
				rows = append(rows, []string{toneColor(b.Tone).Sprint(b.Label), b.Caption, fmt.Sprint(b.Count), fmt.Sprintf("%.0f%%", b.Percent)})
			}
			if err := renderTable(out, []string{"Band", "Range", "Articles", "Share"}, rows); err != nil {
				return err
			}
		}

		if bars := view.WeeklyBars(s); len(bars) > 0 {
			heading(out, "Last 7 days")
			var rows [][]string
			for i, b := range bars {
				rows = append(rows, []string{history.DayNames[i], fmt.Sprint(b.Count), strings.Repeat("█", int(b.Percent/10))})
			}
			if err := renderTable(out, []string{"Day", "Articles", ""}, rows); err != nil {
				return err
			}
		}

		if sources := view.TopSources(s); len(sources) > 0 {
			heading(out, "Top sources")
			var rows [][]string
			for _, src := range sources {
				rows = append(rows, []string{fmt.Sprint(src.Rank), src.Domain, fmt.Sprint(src.Count), toneColor(src.Tone).Sprint(src.AvgFactuality)})
			}
			if err := renderTable(out, []string{"#", "Domain", "Articles", "Avg"}, rows); err != nil {
				return err
			}
		}
		return nil
	},
}

// --- articles command ---

var articlesPage int

var articlesCmd = &cobra.Command{
	Use:   "articles",
	Short: "List analyzed articles, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctrl, err := newController(db)
		if err != nil {
			return err
		}
		s, err := loadSummary(cmd.Context(), ctrl)
		if err != nil {
			return err
		}

		list := view.NewArticleList(s, articlesPage, false, ctrl.Now())
		if list.Empty {
			fmt.Println("No articles analyzed yet.")
			return nil
		}
		if err := printCards(cmd, list.Cards); err != nil {
			return err
		}
		fmt.Printf("\nPage %d of %d", list.Pager.Current, list.Pager.Total)
		if list.Showing != "" {
			fmt.Printf(" · %s", list.Showing)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	articlesCmd.Flags().IntVarP(&articlesPage, "page", "p", 1, "Page to show")
}

func printCards(cmd *cobra.Command, cards []view.Card) error {
	var rows [][]string
	for _, c := range cards {
		when := c.Date
		if c.Relative != "" {
			when = c.Relative
		}
		rows = append(rows, []string{fmt.Sprint(c.Index + 1), truncate(c.Title, 60), toneColor(c.Tone).Sprint(c.Score), c.Level, when, c.Hostname})
	}
	return renderTable(cmd.OutOrStdout(), []string{"#", "Title", "Score", "Level", "Analyzed", "Source"}, rows)
}

// --- search command ---

var (
	searchOrder string
	searchPage  int
)

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search analyzed articles on the backend",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ld, err := newLoader()
		if err != nil {
			return err
		}
		page, err := ld.Search(cmd.Context(), loader.Query{
			Term:    strings.Join(args, " "),
			Order:   searchOrder,
			Page:    searchPage,
			PerPage: cfg.Dashboard.PageSize,
		})
		if errors.Is(err, loader.ErrUnauthorized) {
			return fmt.Errorf("%w: log in at %s and set %s", err, cfg.Backend.LoginURL, cfg.Backend.SessionEnv)
		}
		if err != nil {
			return err
		}
		if len(page.Articles) == 0 {
			fmt.Println("No matching articles.")
			return nil
		}

		now := time.Now()
		cards := make([]view.Card, len(page.Articles))
		for i, a := range page.Articles {
			cards[i] = view.NewCard(i, history.View(a), now)
		}
		if err := printCards(cmd, cards); err != nil {
			return err
		}
		fmt.Printf("\nPage %d of %d (%d results)\n", page.CurrentPage, max(page.TotalPages, 1), page.Total)
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchOrder, "order", "newest", "Result order: newest, oldest, highest, lowest")
	searchCmd.Flags().IntVarP(&searchPage, "page", "p", 1, "Result page")
}

// --- export command ---

var (
	exportFormat   string
	exportOut      string
	exportSections []string
	exportFrom     string
	exportTo       string
	exportOffline  bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export statistics as PDF or JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctrl, err := newController(db)
		if err != nil {
			return err
		}
		if err := ctrl.Warm(cmd.Context()); err != nil {
			log.Printf("Could not load snapshot: %v", err)
		}
		if !exportOffline {
			if _, err := ctrl.Refresh(cmd.Context()); err != nil {
				if ctrl.Current() == nil {
					return err
				}
				log.Printf("Refresh failed, exporting last snapshot: %v", err)
			}
		}

		now := ctrl.Now()
		opts := export.DefaultOptions(now)
		format, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}
		opts.Format = format
		if len(exportSections) > 0 {
			if err := opts.SetSections(exportSections); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("from") {
			opts.DateFrom = exportFrom
		}
		if cmd.Flags().Changed("to") {
			opts.DateTo = exportTo
		}

		target := exportOut
		if target == "" {
			target = export.FileName(opts.Format, now)
		}
		f, err := os.Create(target)
		if err != nil {
			return fmt.Errorf("creating %s: %w", target, err)
		}
		if err := export.Write(f, ctrl.Current(), opts, now); err != nil {
			f.Close()
			os.Remove(target)
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Printf("Exported %s to %s\n", strings.ToUpper(string(opts.Format)), target)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "pdf", "Export format: pdf or json")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default truthguard_statistics_<date>.<ext>)")
	exportCmd.Flags().StringSliceVar(&exportSections, "sections", nil, "Sections to include: "+strings.Join(export.Sections, ","))
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Only export articles analyzed on or after this date (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "Only export articles analyzed on or before this date (YYYY-MM-DD)")
	exportCmd.Flags().BoolVar(&exportOffline, "offline", false, "Export the last stored snapshot without contacting the backend")
}

// --- snapshots command ---

var snapshotsLimit int

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List stored statistics snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		snaps, err := db.ListSnapshots(snapshotsLimit)
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Println("No snapshots yet. Run 'facthistory stats' or 'facthistory serve' to create one.")
			return nil
		}

		var rows [][]string
		for _, s := range snaps {
			when := s.GeneratedAt
			if t, err := time.Parse(time.RFC3339Nano, s.GeneratedAt); err == nil {
				when = t.Local().Format("2006-01-02 15:04")
			}
			rows = append(rows, []string{
				fmt.Sprint(s.ID), when, fmt.Sprint(s.TotalArticles),
				fmt.Sprintf("%.1f%%", s.AvgFactuality), gradeColor(s.PersonalScore), fmt.Sprint(s.Streak),
			})
		}
		return renderTable(cmd.OutOrStdout(), []string{"ID", "Generated", "Articles", "Avg", "Grade", "Streak"}, rows)
	},
}

func init() {
	snapshotsCmd.Flags().IntVarP(&snapshotsLimit, "limit", "n", 20, "Number of snapshots to show")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local dashboard server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctrl, err := newController(db)
		if err != nil {
			return err
		}
		if err := ctrl.Warm(cmd.Context()); err != nil {
			log.Printf("Could not load snapshot: %v", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// The warmed snapshot may be stale; replace it as soon as the backend answers.
		ctrl.RefreshInBackground(ctx)

		if spec := cfg.Dashboard.RefreshSchedule; spec != "" {
			c := cron.New()
			if _, err := c.AddFunc(spec, func() {
				if _, err := ctrl.Refresh(ctx); err != nil {
					log.Printf("Scheduled refresh failed: %v", err)
				}
			}); err != nil {
				return fmt.Errorf("invalid refresh_schedule %q: %w", spec, err)
			}
			c.Start()
			defer c.Stop()
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") || port == 0 {
			port = servePort
		}
		opts := server.Options{
			LoginURL:       loginURL(),
			SearchPageSize: cfg.Dashboard.PageSize,
			Previews:       preview.NewFetcher(db, cfg.Backend.Timeout()),
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, ctrl, opts, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

// loginURL resolves a relative login path against the backend.
func loginURL() string {
	u := cfg.Backend.LoginURL
	if strings.HasPrefix(u, "/") {
		return strings.TrimRight(cfg.Backend.BaseURL, "/") + u
	}
	return u
}

func newLoader() (*loader.Loader, error) {
	client, err := loader.NewClient(cfg.Backend.BaseURL, cfg.Backend.SessionCookie, cfg.Backend.SessionValue(), cfg.Backend.Timeout())
	if err != nil {
		return nil, err
	}
	return loader.New(client, loader.Options{
		Endpoints:   cfg.Backend.Endpoints,
		FeedURL:     cfg.Backend.FeedURL,
		DetailsPath: cfg.Backend.DetailsPath,
		CacheSize:   cfg.Dashboard.DetailsCacheSize,
	})
}

func newController(db *database.DB) (*dashboard.Controller, error) {
	ld, err := newLoader()
	if err != nil {
		return nil, err
	}
	return dashboard.New(ld, dashboard.Options{
		Store:        db,
		SnapshotKeep: cfg.Dashboard.SnapshotKeep,
	}), nil
}

// loadSummary refreshes from the backend, with a hint when the session is
// missing or expired.
func loadSummary(ctx context.Context, ctrl *dashboard.Controller) (*history.Summary, error) {
	s, err := ctrl.Refresh(ctx)
	if errors.Is(err, loader.ErrUnauthorized) {
		return nil, fmt.Errorf("%w: log in at %s and set %s", err, loginURL(), cfg.Backend.SessionEnv)
	}
	return s, err
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(filepath.Join(dataDir, database.FileName))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
