// Package preview extracts title and excerpt metadata from article links,
// caching results in the database.
package preview

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"

	"github.com/TobiSchelling/facthistory/internal/database"
)

const (
	maxBody        = 2 << 20
	maxExcerpt     = 280
	defaultTimeout = 10 * time.Second
)

// Store is the preview cache.
type Store interface {
	GetPreview(url string) (*database.Preview, error)
	PutPreview(p database.Preview) error
}

// Fetcher resolves link previews via HTTP + readability extraction.
type Fetcher struct {
	store  Store
	client *http.Client
}

// NewFetcher creates a fetcher. store may be nil to disable caching.
func NewFetcher(store Store, timeout time.Duration) *Fetcher {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Fetcher{
		store: store,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Preview returns page metadata for link. Any failure yields nil; previews
// are decoration and never block the detail view.
func (f *Fetcher) Preview(ctx context.Context, link string) *database.Preview {
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil
	}
	key := u.String()

	if f.store != nil {
		cached, err := f.store.GetPreview(key)
		if err != nil {
			log.Printf("preview cache lookup for %s: %v", link, err)
		} else if cached != nil {
			return cached
		}
	}

	p, err := f.fetch(ctx, u)
	if err != nil {
		log.Printf("preview for %s: %v", link, err)
		return nil
	}

	if f.store != nil {
		if err := f.store.PutPreview(*p); err != nil {
			log.Printf("caching preview for %s: %v", link, err)
		}
	}
	return p
}

func (f *Fetcher) fetch(ctx context.Context, u *url.URL) (*database.Preview, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "facthistory/1.0 (link preview)")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxBody), u)
	if err != nil {
		return nil, fmt.Errorf("extracting content: %w", err)
	}

	excerpt := strings.TrimSpace(article.Excerpt)
	if excerpt == "" {
		excerpt = strings.TrimSpace(article.TextContent)
	}
	siteName := strings.TrimSpace(article.SiteName)
	if siteName == "" {
		siteName = strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	}
	return &database.Preview{
		URL:      u.String(),
		Title:    strings.TrimSpace(article.Title),
		Excerpt:  clip(excerpt, maxExcerpt),
		SiteName: siteName,
	}, nil
}

// clip shortens s to at most n runes, collapsing whitespace.
func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
