package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxBody caps document downloads.
const maxBody = 32 << 20

// Response is the outcome of an authenticated GET.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Cookie is the subset of a browser cookie forwarded on requests.
type Cookie struct {
	Name  string
	Value string
}

// Fetcher performs the plain HTTP side of a browser session: captcha
// images and order documents are fetched with the page's cookies instead of
// through the renderer.
type Fetcher struct {
	client *http.Client
	ua     string
}

// NewFetcher creates a Fetcher sending ua as User-Agent.
func NewFetcher(ua string) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: 2 * time.Minute},
		ua:     ua,
	}
}

// Get fetches url. Non-2xx statuses are not errors: callers classify them.
func (f *Fetcher) Get(ctx context.Context, url, referer string, cookies []Cookie) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("browser: new request: %w", err)
	}
	if f.ua != "" {
		req.Header.Set("User-Agent", f.ua)
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	for _, c := range cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("browser: get %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("browser: read body: %w", err)
	}
	return &Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
