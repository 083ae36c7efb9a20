package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// ErrWaitTimeout is returned when a bounded wait expires.
var ErrWaitTimeout = errors.New("browser: wait timed out")

// Tab wraps the single Rod page a run drives. Every operation is bounded:
// by the caller's context, and by the manager's page timeout when the
// caller sets no tighter limit.
type Tab struct {
	page    *rod.Page
	fetch   *Fetcher
	timeout time.Duration
}

// OpenTab creates a stealth tab with the configured viewport and user agent.
func (m *Manager) OpenTab(ctx context.Context) (*Tab, error) {
	m.mu.Lock()
	b, err := m.startLocked(ctx)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.ViewportWidth,
		Height:            m.cfg.ViewportHeight,
		DeviceScaleFactor: m.cfg.DeviceScaleFactor,
	}); err != nil {
		m.cfg.Logger.Warn("browser: set viewport failed", "error", err)
	}
	if m.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: m.cfg.UserAgent}); err != nil {
			m.cfg.Logger.Warn("browser: set user agent failed", "error", err)
		}
	}

	if len(m.cfg.ResourceBlocking) > 0 {
		if err := applyResourceBlocking(page, m.cfg.ResourceBlocking); err != nil {
			m.cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		}
	}

	return &Tab{
		page:    page,
		fetch:   NewFetcher(m.cfg.UserAgent),
		timeout: m.cfg.PageTimeout,
	}, nil
}

// bounded returns the page bound to ctx with a deadline of d (or the page
// timeout when d is zero).
func (t *Tab) bounded(ctx context.Context, d time.Duration) (*rod.Page, context.CancelFunc) {
	if d <= 0 {
		d = t.timeout
	}
	tctx, cancel := context.WithTimeout(ctx, d)
	return t.page.Context(tctx), cancel
}

// Navigate loads url and waits for the load event.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	p, cancel := t.bounded(ctx, 0)
	defer cancel()
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("browser: wait load %s: %w", url, err)
	}
	return nil
}

// Reload reloads the current page.
func (t *Tab) Reload(ctx context.Context) error {
	p, cancel := t.bounded(ctx, 0)
	defer cancel()
	if err := p.Reload(); err != nil {
		return fmt.Errorf("browser: reload: %w", err)
	}
	return nil
}

// URL returns the current document URL, or "" if the target is gone.
func (t *Tab) URL() string {
	info, err := t.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// RemoveElements deletes every element matching selector and returns how
// many were removed.
func (t *Tab) RemoveElements(ctx context.Context, selector string) (int, error) {
	p, cancel := t.bounded(ctx, 0)
	defer cancel()
	res, err := p.Eval(`(sel) => {
		const els = document.querySelectorAll(sel);
		els.forEach(e => e.remove());
		return els.length;
	}`, selector)
	if err != nil {
		return 0, fmt.Errorf("browser: remove %s: %w", selector, err)
	}
	return res.Value.Int(), nil
}

// element finds selector, waiting up to the page timeout.
func (t *Tab) element(p *rod.Page, selector string) (*rod.Element, error) {
	el, err := p.Element(selector)
	if err != nil {
		return nil, fmt.Errorf("browser: find %s: %w", selector, err)
	}
	return el, nil
}

// Click performs a real mouse click on selector. rod first checks the
// element is interactable, so a covered element errors here and callers
// fall back to ClickScript.
func (t *Tab) Click(ctx context.Context, selector string) error {
	p, cancel := t.bounded(ctx, 0)
	defer cancel()
	el, err := t.element(p, selector)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: click %s: %w", selector, err)
	}
	return nil
}

// ClickScript invokes element.click() from page script, which goes through
// overlays that block real mouse events.
func (t *Tab) ClickScript(ctx context.Context, selector string) error {
	return t.evalOnElement(ctx, selector, `(sel) => {
		const el = document.querySelector(sel);
		if (!el) return false;
		el.click();
		return true;
	}`)
}

// Select chooses the option whose value attribute equals value.
func (t *Tab) Select(ctx context.Context, selector, value string) error {
	p, cancel := t.bounded(ctx, 0)
	defer cancel()
	el, err := t.element(p, selector)
	if err != nil {
		return err
	}
	opt := fmt.Sprintf(`option[value=%q]`, value)
	if err := el.Select([]string{opt}, true, rod.SelectorTypeCSSSector); err != nil {
		return fmt.Errorf("browser: select %s=%s: %w", selector, value, err)
	}
	return nil
}

// SelectScript sets the select's value from script and fires change, which
// triggers the portal's cascading reloads.
func (t *Tab) SelectScript(ctx context.Context, selector, value string) error {
	return t.evalOnElement(ctx, selector, `(sel, val) => {
		const el = document.querySelector(sel);
		if (!el) return false;
		el.value = val;
		el.dispatchEvent(new Event('change', { bubbles: true }));
		return el.value === val;
	}`, value)
}

// Fill replaces the text of an input by typing value.
func (t *Tab) Fill(ctx context.Context, selector, value string) error {
	p, cancel := t.bounded(ctx, 0)
	defer cancel()
	el, err := t.element(p, selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("browser: fill %s: %w", selector, err)
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("browser: fill %s: %w", selector, err)
	}
	return nil
}

// FillScript assigns the input's value from script and fires input/change.
func (t *Tab) FillScript(ctx context.Context, selector, value string) error {
	return t.evalOnElement(ctx, selector, `(sel, val) => {
		const el = document.querySelector(sel);
		if (!el) return false;
		el.value = val;
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		return true;
	}`, value)
}

func (t *Tab) evalOnElement(ctx context.Context, selector, js string, args ...any) error {
	p, cancel := t.bounded(ctx, 0)
	defer cancel()
	res, err := p.Eval(js, append([]any{selector}, args...)...)
	if err != nil {
		return fmt.Errorf("browser: script on %s: %w", selector, err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("browser: script on %s: element missing or rejected", selector)
	}
	return nil
}

// Visible reports whether selector exists and is rendered, without waiting.
func (t *Tab) Visible(ctx context.Context, selector string) (bool, error) {
	p, cancel := t.bounded(ctx, 0)
	defer cancel()
	has, el, err := p.Has(selector)
	if err != nil || !has {
		return false, err
	}
	return el.Visible()
}

// WaitVisible waits up to timeout for selector to exist and be visible.
func (t *Tab) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	p, cancel := t.bounded(ctx, timeout)
	defer cancel()
	el, err := p.Element(selector)
	if err == nil {
		err = el.WaitVisible()
	}
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrWaitTimeout, selector)
		}
		return fmt.Errorf("browser: wait visible %s: %w", selector, err)
	}
	return nil
}

// WaitText polls the rendered body text for text, up to timeout.
func (t *Tab) WaitText(ctx context.Context, text string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		res, err := t.page.Context(ctx).Eval(`(t) => !!document.body && document.body.innerText.includes(t)`, text)
		if err == nil && res.Value.Bool() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: text %q", ErrWaitTimeout, text)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}

// Attribute returns the attribute value and whether it is present.
func (t *Tab) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	p, cancel := t.bounded(ctx, 0)
	defer cancel()
	el, err := t.element(p, selector)
	if err != nil {
		return "", false, err
	}
	v, err := el.Attribute(name)
	if err != nil {
		return "", false, fmt.Errorf("browser: attribute %s@%s: %w", selector, name, err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

// ElementScreenshot renders selector as PNG.
func (t *Tab) ElementScreenshot(ctx context.Context, selector string) ([]byte, error) {
	p, cancel := t.bounded(ctx, 0)
	defer cancel()
	el, err := t.element(p, selector)
	if err != nil {
		return nil, err
	}
	data, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot %s: %w", selector, err)
	}
	return data, nil
}

// Screenshot renders the full page as PNG.
func (t *Tab) Screenshot(ctx context.Context) ([]byte, error) {
	p, cancel := t.bounded(ctx, 0)
	defer cancel()
	data, err := p.Screenshot(true, &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng})
	if err != nil {
		return nil, fmt.Errorf("browser: page screenshot: %w", err)
	}
	return data, nil
}

// HTML returns the current rendered DOM.
func (t *Tab) HTML(ctx context.Context) (string, error) {
	p, cancel := t.bounded(ctx, 0)
	defer cancel()
	html, err := p.HTML()
	if err != nil {
		return "", fmt.Errorf("browser: get DOM: %w", err)
	}
	return html, nil
}

// Get issues an HTTP GET carrying the tab's cookies, user agent and
// referer, so the portal sees the same session as the page.
func (t *Tab) Get(ctx context.Context, url string, timeout time.Duration) (*Response, error) {
	cookies, err := t.page.Context(ctx).Cookies([]string{url})
	if err != nil {
		return nil, fmt.Errorf("browser: cookies for %s: %w", url, err)
	}
	jar := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		jar = append(jar, Cookie{Name: c.Name, Value: c.Value})
	}
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return t.fetch.Get(fctx, url, t.URL(), jar)
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.page != nil {
		return t.page.Close()
	}
	return nil
}
