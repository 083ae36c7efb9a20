// Package navigate drives one attempt at a case through the portal's
// case-status form: open the page, fill the form, solve the captcha,
// submit, and read the order history.
package navigate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/hazyhaar/hcbot/courtfetch/internal/captcha"
	"github.com/hazyhaar/hcbot/courtfetch/internal/config"
	"github.com/hazyhaar/hcbot/courtfetch/internal/diag"
	"github.com/hazyhaar/hcbot/courtfetch/internal/ordertable"
	"github.com/hazyhaar/hcbot/courtfetch/internal/pdfdoc"
	"github.com/hazyhaar/hcbot/courtfetch/internal/runlog"
	"github.com/hazyhaar/hcbot/courtfetch/record"
)

// ErrObstructed means a required form step failed on both the direct and
// the script path.
var ErrObstructed = errors.New("navigate: step obstructed")

// Result is how an attempt ended.
type Result struct {
	State     State
	Reason    string // outcome reason when State is terminal
	Orders    []ordertable.Order
	Documents []record.FetchResult
	Trace     []State
}

// Options wires a Sequencer.
type Options struct {
	Config     *config.Config
	Recognizer captcha.Recognizer
	Log        *runlog.Log
	Diag       *diag.Writer
	Logger     *slog.Logger
}

// Sequencer runs attempts. It holds no per-attempt state, so one value
// serves a whole run.
type Sequencer struct {
	cfg    *config.Config
	solver *captcha.Solver
	log    *runlog.Log
	diag   *diag.Writer
	logger *slog.Logger
}

// New builds a Sequencer. A nil Config means defaults; a nil Log gets a
// private one.
func New(opts Options) *Sequencer {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Log
	if log == nil {
		log = runlog.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	solver := captcha.NewSolver(opts.Recognizer, captcha.Options{
		Selector:       cfg.Selectors.CaptchaImage,
		VisibleTimeout: cfg.Timeouts.CaptchaVisible,
		FetchTimeout:   cfg.Timeouts.ImageFetch,
		Settle:         cfg.Delays.BeforeCaptcha,
		Diag:           opts.Diag,
		Logf:           log.Addf,
	})
	return &Sequencer{cfg: cfg, solver: solver, log: log, diag: opts.Diag, logger: logger}
}

// attempt carries what one pass needs so helpers stay small.
type attempt struct {
	ctx  context.Context
	page Page
	req  record.CaseRequest
	tag  diag.Tag
	res  *Result
}

func (a *attempt) enter(s State) {
	a.res.State = s
	a.res.Trace = append(a.res.Trace, s)
}

// Attempt makes one pass for req. A non-nil error always comes with
// StateTransientError; the caller decides whether to retry.
func (s *Sequencer) Attempt(ctx context.Context, page Page, req record.CaseRequest, n int) (Result, error) {
	res := Result{State: StateStart}
	a := &attempt{ctx: ctx, page: page, req: req, tag: diag.Tag{Case: req.Slug(), Attempt: n}, res: &res}
	err := s.run(a)
	if err != nil {
		a.enter(StateTransientError)
	}
	s.logger.Debug("navigate: attempt done",
		"case", req.Label(), "attempt", n, "state", res.State.String(), "error", err)
	return res, err
}

func (s *Sequencer) run(a *attempt) error {
	sel := s.cfg.Selectors

	if err := a.page.Navigate(a.ctx, s.cfg.Portal.URL); err != nil {
		if a.ctx.Err() != nil {
			return a.ctx.Err()
		}
		s.log.Add("[warn] page load timeout (continue)")
	}
	if err := sleep(a.ctx, s.cfg.Delays.AfterLoad); err != nil {
		return err
	}
	a.enter(StatePageLoaded)

	s.removeOverlays(a)

	if err := s.interact(a, "menu", false,
		func() error { return a.page.Click(a.ctx, sel.Menu) },
		func() error { return a.page.ClickScript(a.ctx, sel.Menu) },
	); err != nil {
		return err
	}
	a.enter(StateMenuOpened)

	court := firstNonEmpty(a.req.Court, s.cfg.Portal.CourtCode)
	if err := s.choose(a, "court", sel.Court, court); err != nil {
		return err
	}
	if err := sleep(a.ctx, s.cfg.Delays.AfterSelect); err != nil {
		return err
	}
	a.enter(StateCourtSelected)

	bench := firstNonEmpty(a.req.Bench, s.cfg.Portal.BenchCode)
	if err := s.choose(a, "bench", sel.Bench, bench); err != nil {
		return err
	}
	if err := sleep(a.ctx, s.cfg.Delays.AfterSelect); err != nil {
		return err
	}
	a.enter(StateBenchSelected)

	if err := s.searchMode(a); err != nil {
		return err
	}
	a.enter(StateSearchModeSelected)

	if err := s.fillFields(a); err != nil {
		return err
	}
	a.enter(StateFieldsFilled)

	s.diag.Capture(a.tag, "page_before_captcha", "png", func() ([]byte, error) {
		return a.page.Screenshot(a.ctx)
	})

	solved := s.solver.Solve(a.ctx, a.page, a.tag)
	if err := a.ctx.Err(); err != nil {
		return err
	}
	if !solved.OK() {
		s.log.Add("[warn] captcha unreadable. retrying")
		s.diag.Capture(a.tag, "dom_snapshot", "html", func() ([]byte, error) {
			html, err := a.page.HTML(a.ctx)
			return []byte(html), err
		})
		if err := a.page.Reload(a.ctx); err != nil {
			s.log.Addf("[debug] reload failed: %s", runlog.FirstLine(err))
		}
		a.enter(StateCaptchaUnreadable)
		return nil
	}
	a.enter(StateCaptchaSolved)

	if err := s.fill(a, "captcha", sel.CaptchaInput, solved.Code); err != nil {
		return err
	}
	if err := s.interact(a, "submit", true,
		func() error { return a.page.Click(a.ctx, sel.Submit) },
		func() error { return a.page.ClickScript(a.ctx, sel.Submit) },
	); err != nil {
		return err
	}
	a.enter(StateSubmitted)

	// The rejection banner may render after the wait gives up; a late
	// banner then reads as "no history".
	if err := a.page.WaitText(a.ctx, sel.InvalidCaptcha, s.cfg.Timeouts.InvalidCaptcha); err == nil {
		s.log.Add("[warn] invalid captcha. retrying")
		s.diag.Capture(a.tag, "invalid_captcha_page", "png", func() ([]byte, error) {
			return a.page.Screenshot(a.ctx)
		})
		a.enter(StateInvalidCaptcha)
		return nil
	} else if a.ctx.Err() != nil {
		return a.ctx.Err()
	}

	if !s.openHistory(a) {
		if err := a.ctx.Err(); err != nil {
			return err
		}
		s.log.Add("[info] no history/orders found")
		a.res.Reason = record.ReasonNoHistory
		a.enter(StateNoHistory)
		return nil
	}

	return s.collect(a)
}

// removeOverlays deletes modal dialogs and alert banners. Best effort.
func (s *Sequencer) removeOverlays(a *attempt) {
	n, err := a.page.RemoveElements(a.ctx, s.cfg.Selectors.Overlays)
	if err != nil {
		s.log.Addf("[debug] popup removal failed: %s", runlog.FirstLine(err))
		return
	}
	s.log.Addf("[info] popups removed (%d)", n)
}

func (s *Sequencer) searchMode(a *attempt) error {
	sel := s.cfg.Selectors
	radio, step := sel.CaseNumberMode, "case number mode"
	if a.req.Mode == record.ModeFilingNumber {
		radio, step = sel.FilingMode, "filing number mode"
	}
	return s.interact(a, step, false,
		func() error {
			visible, err := a.page.Visible(a.ctx, radio)
			if err != nil {
				return err
			}
			if !visible {
				return fmt.Errorf("%s not visible", radio)
			}
			return a.page.Click(a.ctx, radio)
		},
		func() error { return a.page.ClickScript(a.ctx, radio) },
	)
}

func (s *Sequencer) fillFields(a *attempt) error {
	sel := s.cfg.Selectors
	if a.req.Mode == record.ModeFilingNumber {
		if err := sleep(a.ctx, s.cfg.Delays.AfterSelect); err != nil {
			return err
		}
		if err := s.fill(a, "filing number", sel.FilingNumber, a.req.Number); err != nil {
			return err
		}
		return s.fill(a, "filing year", sel.FilingYear, a.req.Year)
	}
	if err := s.choose(a, "case type", sel.CaseType, a.req.CaseType); err != nil {
		return err
	}
	if err := s.fill(a, "case number", sel.CaseNumber, a.req.Number); err != nil {
		return err
	}
	return s.fill(a, "case year", sel.CaseYear, a.req.Year)
}

// openHistory waits for the history link, follows it and waits for the
// order table. Any failure means the portal has no history for the case.
func (s *Sequencer) openHistory(a *attempt) bool {
	sel := s.cfg.Selectors
	if err := a.page.WaitVisible(a.ctx, sel.HistoryLink, s.cfg.Timeouts.HistoryLink); err != nil {
		return false
	}
	err := s.interact(a, "history link", true,
		func() error { return a.page.Click(a.ctx, sel.HistoryLink) },
		func() error { return a.page.ClickScript(a.ctx, sel.HistoryLink) },
	)
	if err != nil {
		return false
	}
	return a.page.WaitVisible(a.ctx, sel.OrderTable, s.cfg.Timeouts.OrderTable) == nil
}

// collect reads the order table and downloads the selected orders.
func (s *Sequencer) collect(a *attempt) error {
	html, err := a.page.HTML(a.ctx)
	if err != nil {
		return fmt.Errorf("navigate: read history page: %w", err)
	}
	orders, err := ordertable.Extract(html)
	if err != nil {
		return err
	}
	a.res.Orders = orders

	selected := ordertable.Select(orders, s.cfg.Orders.Policy)
	if len(selected) == 0 {
		s.log.Add("[info] no recent orders found")
		a.res.Reason = record.ReasonNoOrders
		a.enter(StateNoRecentOrders)
		return nil
	}

	var fetchErrs []error
	for i, o := range selected {
		if i == 0 {
			s.log.Addf("[info] latest order date: %s", o.Label())
		} else {
			s.log.Addf("[info] order date: %s", o.Label())
		}
		doc, err := s.download(a, o)
		if err != nil {
			if a.ctx.Err() != nil {
				return a.ctx.Err()
			}
			if errors.Is(err, pdfdoc.ErrStatus) || errors.Is(err, pdfdoc.ErrNotPDF) {
				s.log.Add("[warn] order listed but file missing/broken")
				continue
			}
			s.log.Addf("[warn] order fetch failed: %s", runlog.FirstLine(err))
			fetchErrs = append(fetchErrs, err)
			continue
		}
		a.res.Documents = append(a.res.Documents, doc)
	}

	switch {
	case len(a.res.Documents) > 0:
		a.res.Reason = record.ReasonFetched
		a.enter(StateSuccess)
		return nil
	case len(fetchErrs) > 0:
		return fmt.Errorf("navigate: fetch orders: %w", errors.Join(fetchErrs...))
	default:
		a.res.Reason = record.ReasonFileMissing
		a.enter(StateOrderFound)
		return nil
	}
}

func (s *Sequencer) download(a *attempt, o ordertable.Order) (record.FetchResult, error) {
	link, err := resolve(a.page.URL(), s.cfg.Portal.URL, o.Link)
	if err != nil {
		return record.FetchResult{}, fmt.Errorf("navigate: order link %q: %w", o.Link, err)
	}
	resp, err := a.page.Get(a.ctx, link, s.cfg.Timeouts.DocumentFetch)
	if err != nil {
		return record.FetchResult{}, err
	}
	if err := pdfdoc.Validate(resp.Status, resp.ContentType, resp.Body); err != nil {
		return record.FetchResult{}, err
	}

	doc := record.FetchResult{
		Label:       a.req.Label(),
		Description: fmt.Sprintf("%s (Order: %s)", caseName(a.req), o.Label()),
		OrderDate:   o.Label(),
		Data:        resp.Body,
	}
	if info, err := pdfdoc.Inspect(resp.Body); err != nil {
		s.log.Addf("[debug] pdf inspect failed: %s", runlog.FirstLine(err))
	} else {
		doc.Pages = info.Pages
	}
	if doc.Pages > 0 {
		s.log.Addf("[ok] pdf downloaded (%d pages)", doc.Pages)
	} else {
		s.log.Add("[ok] pdf downloaded")
	}
	return doc, nil
}

func (s *Sequencer) choose(a *attempt, step, selector, value string) error {
	return s.interact(a, step, true,
		func() error { return a.page.Select(a.ctx, selector, value) },
		func() error { return a.page.SelectScript(a.ctx, selector, value) },
	)
}

func (s *Sequencer) fill(a *attempt, step, selector, value string) error {
	return s.interact(a, step, true,
		func() error { return a.page.Fill(a.ctx, selector, value) },
		func() error { return a.page.FillScript(a.ctx, selector, value) },
	)
}

// interact tries direct, then fallback. Optional steps that fail both
// ways are narrated and skipped; required ones fail the attempt.
func (s *Sequencer) interact(a *attempt, step string, required bool, direct, fallback func() error) error {
	errDirect := direct()
	if errDirect == nil {
		return nil
	}
	if err := a.ctx.Err(); err != nil {
		return err
	}
	errScript := fallback()
	if errScript == nil {
		s.log.Addf("[debug] %s: used script fallback", step)
		return nil
	}
	if err := a.ctx.Err(); err != nil {
		return err
	}
	if !required {
		s.log.Addf("[debug] %s skipped: %s", step, runlog.FirstLine(errScript))
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrObstructed, step, errors.Join(errDirect, errScript))
}

// caseName is the display name used in result descriptions.
func caseName(req record.CaseRequest) string {
	switch {
	case req.Mode == record.ModeFilingNumber:
		return "Filing"
	case req.CaseTypeLabel != "":
		return req.CaseTypeLabel
	}
	return req.CaseType
}

// resolve makes ref absolute against the page URL, or the portal URL when
// the page has none.
func resolve(pageURL, portalURL, ref string) (string, error) {
	base := pageURL
	if base == "" || base == "about:blank" {
		base = portalURL
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
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
