// Package dashboard owns the current statistics summary and the refresh
// cycle that replaces it.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/TobiSchelling/facthistory/internal/database"
	"github.com/TobiSchelling/facthistory/internal/history"
	"github.com/TobiSchelling/facthistory/internal/loader"
	"github.com/TobiSchelling/facthistory/internal/metrics"
)

var (
	// ErrSuperseded is returned by a refresh whose result was discarded
	// because a newer refresh was started after it.
	ErrSuperseded = errors.New("refresh superseded by a newer one")

	// ErrArticleNotFound is returned for an index outside the cached list.
	ErrArticleNotFound = errors.New("article not found")
)

// Source loads article history from the backend.
type Source interface {
	LoadArticles(ctx context.Context) ([]history.Article, error)
	ArticleDetails(ctx context.Context, id int64) (*history.Article, error)
	Search(ctx context.Context, q loader.Query) (*loader.Page, error)
}

// Store persists summaries between runs.
type Store interface {
	InsertSnapshot(s *history.Summary) (int64, error)
	LatestSnapshot() (*database.Snapshot, error)
	PruneSnapshots(keep int) (int64, error)
}

// Options configures a Controller.
type Options struct {
	Store        Store            // optional
	SnapshotKeep int              // snapshots retained after each save; 0 keeps all
	Now          func() time.Time // defaults to time.Now
}

// Controller holds the current summary. The summary is replaced wholesale on
// every refresh and never mutated after it is published.
type Controller struct {
	source Source
	store  Store
	keep   int
	now    func() time.Time

	current atomic.Pointer[history.Summary]
	group   singleflight.Group
	gen     atomic.Uint64

	mu        sync.Mutex
	storedGen uint64
	cancel    context.CancelCauseFunc
}

// New creates a controller reading from source.
func New(source Source, opts Options) *Controller {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		source: source,
		store:  opts.Store,
		keep:   opts.SnapshotKeep,
		now:    now,
	}
}

// Current returns the published summary, or nil before the first load.
func (c *Controller) Current() *history.Summary {
	return c.current.Load()
}

// Now returns the controller's clock reading.
func (c *Controller) Now() time.Time {
	return c.now()
}

// Refresh reloads the history and publishes a new summary. Callers that
// arrive while a refresh is in flight share its result.
func (c *Controller) Refresh(ctx context.Context) (*history.Summary, error) {
	v, err, shared := c.group.Do("refresh", func() (any, error) {
		return c.refresh(ctx)
	})
	if shared {
		log.Printf("joined in-flight refresh")
	}
	if err != nil {
		return nil, err
	}
	return v.(*history.Summary), nil
}

// Reload cancels any in-flight refresh and starts a new one. The cancelled
// refresh returns ErrSuperseded.
func (c *Controller) Reload(ctx context.Context) (*history.Summary, error) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel(ErrSuperseded)
	}
	c.mu.Unlock()
	c.group.Forget("refresh")
	return c.Refresh(ctx)
}

func (c *Controller) refresh(parent context.Context) (*history.Summary, error) {
	start := time.Now()
	gen := c.gen.Add(1)

	// Detached from the first caller: coalesced callers share this context.
	ctx, cancel := context.WithCancelCause(context.WithoutCancel(parent))
	defer cancel(nil)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	articles, err := c.source.LoadArticles(ctx)
	if err != nil {
		if errors.Is(context.Cause(ctx), ErrSuperseded) {
			return nil, c.discard(gen, start)
		}
		status := "error"
		if errors.Is(err, loader.ErrUnauthorized) {
			status = "unauthorized"
		}
		metrics.RefreshDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("loading articles: %w", err)
	}

	summary := history.Calculate(articles, c.now())

	c.mu.Lock()
	if gen < c.storedGen {
		c.mu.Unlock()
		return nil, c.discard(gen, start)
	}
	c.storedGen = gen
	c.current.Store(summary)
	c.mu.Unlock()

	metrics.ArticlesLoaded.Set(float64(summary.TotalArticles))
	metrics.RefreshDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	log.Printf("refresh %d: %d articles, avg factuality %.1f", gen, summary.TotalArticles, summary.AvgFactuality)

	c.saveSnapshot(summary)
	return summary, nil
}

func (c *Controller) discard(gen uint64, start time.Time) error {
	metrics.StaleRefreshes.Inc()
	metrics.RefreshDuration.WithLabelValues("stale").Observe(time.Since(start).Seconds())
	log.Printf("refresh %d discarded: superseded", gen)
	return ErrSuperseded
}

func (c *Controller) saveSnapshot(s *history.Summary) {
	if c.store == nil {
		return
	}
	if _, err := c.store.InsertSnapshot(s); err != nil {
		log.Printf("saving snapshot: %v", err)
		return
	}
	if removed, err := c.store.PruneSnapshots(c.keep); err != nil {
		log.Printf("pruning snapshots: %v", err)
	} else if removed > 0 {
		log.Printf("pruned %d old snapshots", removed)
	}
}

// Warm publishes the latest stored snapshot if nothing has been loaded yet,
// so exports work before the first refresh completes.
func (c *Controller) Warm(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	snap, err := c.store.LatestSnapshot()
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	if snap == nil || snap.Summary == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current.Load() != nil {
		return nil
	}
	c.current.Store(snap.Summary)
	metrics.ArticlesLoaded.Set(float64(snap.Summary.TotalArticles))
	log.Printf("warmed from snapshot %d (%s)", snap.ID, snap.GeneratedAt)
	return nil
}

// RefreshInBackground starts a refresh without waiting for it. The returned
// channel receives the refresh error (nil on success) and is then closed.
func (c *Controller) RefreshInBackground(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		_, err := c.Refresh(ctx)
		if err != nil {
			log.Printf("background refresh failed: %v", err)
		}
		done <- err
	}()
	return done
}

// Details resolves the article at index in the current list. Full details are
// fetched by ID; when the backend has none, the cached entry is returned.
func (c *Controller) Details(ctx context.Context, index int) (*history.Article, error) {
	s := c.Current()
	if s == nil || index < 0 || index >= len(s.AllArticles) {
		return nil, ErrArticleNotFound
	}
	cached := s.AllArticles[index]

	full, err := c.source.ArticleDetails(ctx, cached.ID)
	if err != nil {
		return nil, err
	}
	if full != nil {
		return full, nil
	}
	return &history.Article{
		ID:           cached.ID,
		Title:        cached.Title,
		Summary:      cached.Summary,
		Score:        cached.Score,
		Level:        cached.Level,
		AnalysisDate: cached.AnalysisDate,
		InputType:    cached.InputType,
		Link:         cached.Link,
		Breakdown:    cached.Breakdown,
	}, nil
}

// Search runs a server-side search against the backend.
func (c *Controller) Search(ctx context.Context, q loader.Query) (*loader.Page, error) {
	return c.source.Search(ctx, q)
}
