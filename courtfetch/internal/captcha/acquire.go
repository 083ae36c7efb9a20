// Package captcha acquires the portal's captcha image, cleans it up for
// OCR and turns it into a candidate code.
package captcha

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hazyhaar/hcbot/courtfetch/internal/browser"
	"github.com/hazyhaar/hcbot/courtfetch/internal/runlog"
)

// Image sources, in priority order.
const (
	SourceDataURI    = "data-uri"
	SourceNetwork    = "network"
	SourceScreenshot = "screenshot"
)

// Page is the slice of the browser tab acquisition needs.
type Page interface {
	URL() string
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Attribute(ctx context.Context, selector, name string) (string, bool, error)
	Get(ctx context.Context, url string, timeout time.Duration) (*browser.Response, error)
	ElementScreenshot(ctx context.Context, selector string) ([]byte, error)
}

// Acquire returns the captcha image bytes and where they came from. The
// image element must become visible within the visibility timeout; after
// that the data URI, the network and finally an element screenshot are
// tried in turn.
func (s *Solver) Acquire(ctx context.Context, page Page) ([]byte, string, error) {
	if err := page.WaitVisible(ctx, s.opts.Selector, s.opts.VisibleTimeout); err != nil {
		return nil, "", fmt.Errorf("captcha: image not visible: %w", err)
	}
	if err := sleep(ctx, s.opts.Settle); err != nil {
		return nil, "", err
	}

	src, _, err := page.Attribute(ctx, s.opts.Selector, "src")
	if err != nil {
		s.logf("[debug] captcha src unreadable: %v", err)
	}
	src = strings.TrimSpace(src)

	if strings.HasPrefix(src, "data:image") {
		raw, err := DecodeDataURI(src)
		if err == nil {
			return raw, SourceDataURI, nil
		}
		s.logf("[debug] captcha data uri: %v", err)
	} else if src != "" {
		if raw := s.fetch(ctx, page, src); raw != nil {
			return raw, SourceNetwork, nil
		}
	}

	raw, err := page.ElementScreenshot(ctx, s.opts.Selector)
	if err != nil {
		return nil, "", fmt.Errorf("captcha: screenshot: %w", err)
	}
	return raw, SourceScreenshot, nil
}

// fetch narrates its own failures and returns nil on any of them.
func (s *Solver) fetch(ctx context.Context, page Page, src string) []byte {
	abs, err := resolve(page.URL(), src)
	if err != nil {
		s.logf("[debug] captcha URL fetch failed: %s", runlog.FirstLine(err))
		return nil
	}
	resp, err := page.Get(ctx, abs, s.opts.FetchTimeout)
	if err != nil {
		s.logf("[debug] captcha URL fetch failed: %s", runlog.FirstLine(err))
		return nil
	}
	if resp.Status != http.StatusOK {
		s.logf("[debug] captcha URL status=%d", resp.Status)
		return nil
	}
	if len(resp.Body) == 0 {
		s.logf("[debug] captcha URL fetch failed: empty body")
		return nil
	}
	return resp.Body
}

// DecodeDataURI returns the payload of a data: URI.
func DecodeDataURI(uri string) ([]byte, error) {
	header, payload, ok := strings.Cut(uri, ",")
	if !ok {
		return nil, errors.New("captcha: malformed data uri")
	}
	if !strings.HasSuffix(header, ";base64") {
		s, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("captcha: data uri: %w", err)
		}
		return []byte(s), nil
	}
	payload = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			return -1
		}
		return r
	}, payload)
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
	}
	if err != nil {
		return nil, fmt.Errorf("captcha: data uri: %w", err)
	}
	return raw, nil
}

// resolve makes ref absolute against base.
func resolve(base, ref string) (string, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	if r.IsAbs() {
		return r.String(), nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
