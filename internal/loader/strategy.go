package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/TobiSchelling/facthistory/internal/history"
)

// Outcome is the typed result of one strategy attempt.
type Outcome int

const (
	// OutcomeSuccess ends the chain with the attempt's articles.
	OutcomeSuccess Outcome = iota
	// OutcomeSkip moves on to the next strategy.
	OutcomeSkip
	// OutcomeRedirect ends the chain; the session must log in again.
	OutcomeRedirect
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeSkip:
		return "skip"
	case OutcomeRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Attempt is what a Strategy reports back to the Loader.
type Attempt struct {
	Outcome  Outcome
	Articles []history.Article
	Err      error
}

func skip(err error) Attempt { return Attempt{Outcome: OutcomeSkip, Err: err} }

// Strategy is one way of obtaining the article history.
type Strategy interface {
	Name() string
	Load(ctx context.Context) Attempt
}

// EndpointStrategy loads articles from a JSON endpoint on the backend.
type EndpointStrategy struct {
	client *Client
	path   string
}

// NewEndpointStrategy creates a strategy for path relative to the client's base URL.
func NewEndpointStrategy(client *Client, path string) *EndpointStrategy {
	return &EndpointStrategy{client: client, path: path}
}

// Name returns the endpoint path.
func (s *EndpointStrategy) Name() string { return s.path }

// Load fetches and decodes the endpoint.
func (s *EndpointStrategy) Load(ctx context.Context) Attempt {
	resp, err := s.client.get(ctx, s.path)
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

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return skip(fmt.Errorf("reading body: %w", err))
	}
	page, err := decodeArticles(body)
	if err != nil {
		return skip(fmt.Errorf("decoding articles: %w", err))
	}
	return Attempt{Outcome: OutcomeSuccess, Articles: page.Articles}
}

// articlesResponse covers both the current and the legacy listing shapes.
type articlesResponse struct {
	Articles    []history.Article `json:"articles"`
	Total       int               `json:"total"`
	Page        int               `json:"page"`
	CurrentPage int               `json:"current_page"`
	TotalPages  int               `json:"total_pages"`
}

func decodeArticles(body []byte) (*articlesResponse, error) {
	body = bytes.TrimSpace(body)
	r := &articlesResponse{}

	// Legacy endpoints return a bare array.
	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal(body, &r.Articles); err != nil {
			return nil, err
		}
	} else if err := json.Unmarshal(body, r); err != nil {
		return nil, err
	}

	if r.Articles == nil {
		r.Articles = []history.Article{}
	}
	if r.CurrentPage == 0 {
		r.CurrentPage = r.Page
	}
	return r, nil
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.code, http.StatusText(e.code))
}

func decodeJSON(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}
