package loader

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const userAgent = "facthistory/1.0 (statistics dashboard)"

// Client performs authenticated GET requests against the backend.
type Client struct {
	base   *url.URL
	http   *http.Client
	cookie *http.Cookie
}

// NewClient creates a client for baseURL. A non-empty sessionValue is sent as
// the cookie named sessionName on every request.
func NewClient(baseURL, sessionName, sessionValue string, timeout time.Duration) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid backend base URL %q", baseURL)
	}
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		base: base,
		http: &http.Client{
			Timeout: timeout,
			// Redirects are surfaced to the caller so a bounce to the login
			// page can be told apart from a real response.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
	if sessionValue != "" {
		if sessionName == "" {
			sessionName = "session"
		}
		c.cookie = &http.Cookie{Name: sessionName, Value: sessionValue}
	}
	return c, nil
}

// resolve turns an endpoint path (with query) or an absolute URL into a full URL.
func (c *Client) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	full := *c.base
	full.Path = c.base.Path + "/" + strings.TrimLeft(u.Path, "/")
	full.RawQuery = u.RawQuery
	return full.String(), nil
}

func (c *Client) get(ctx context.Context, ref string) (*http.Response, error) {
	target, err := c.resolve(ref)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if isLoginRedirect(resp) {
		resp.StatusCode = http.StatusUnauthorized
	}
	return resp, nil
}

// isLoginRedirect reports whether the backend bounced the request to its login page.
func isLoginRedirect(resp *http.Response) bool {
	if resp.StatusCode < 300 || resp.StatusCode > 399 {
		return false
	}
	return strings.Contains(resp.Header.Get("Location"), "/login")
}
