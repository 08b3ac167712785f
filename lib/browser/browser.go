// Package browser wraps a chromedp-driven Chrome session with the
// bounded-wait primitives the portal scraper needs.
//
// One Session owns one browser context and cookie jar. All interaction
// goes through explicit per-call bounds, a timeout surfaces as ErrTimeout
// so callers can decide which scope it kills. State-changing interactions
// are preceded by randomized jitter to stay under the portal's
// anti-automation radar.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/mazen160/go-random"
)

// ErrTimeout is returned by any bounded operation that did not resolve
// within its bound.
var ErrTimeout = errors.New("browser: wait timed out")

type Options struct {
	Headless    bool
	DownloadDir string        // where captured downloads land
	MinDelay    time.Duration // jitter window before interactions
	MaxDelay    time.Duration
	UserAgent   string
}

type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options

	// completed download GUIDs, signalled by the CDP browser listener
	downloads chan string
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// NewSession launches a browser and prepares download capture. The
// session lives until Close or until parent is cancelled.
func NewSession(parent context.Context, opts Options) (*Session, error) {
	if opts.MinDelay == 0 {
		opts.MinDelay = 1 * time.Second
	}
	if opts.MaxDelay <= opts.MinDelay {
		opts.MaxDelay = opts.MinDelay + 2*time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.UserAgent(opts.UserAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	ctx, ctxCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		ctxCancel()
		allocCancel()
	}

	s := &Session{
		ctx:       ctx,
		cancel:    cancel,
		opts:      opts,
		downloads: make(chan string, 4),
	}

	err := chromedp.Run(ctx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(opts.DownloadDir).
			WithEventsEnabled(true),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	chromedp.ListenBrowser(ctx, func(ev interface{}) {
		if e, ok := ev.(*browser.EventDownloadProgress); ok && e.State == browser.DownloadProgressStateCompleted {
			select {
			case s.downloads <- e.GUID:
			default:
			}
		}
	})

	return s, nil
}

func (s *Session) Close() {
	s.cancel()
}

// Pause sleeps for a random duration inside the session's jitter window.
// Scheduling noise only, never correctness-critical.
func (s *Session) Pause() {
	s.PauseBetween(s.opts.MinDelay, s.opts.MaxDelay)
}

func (s *Session) PauseBetween(min, max time.Duration) {
	ms, err := random.IntRange(int(min.Milliseconds()), int(max.Milliseconds())+1)
	if err != nil {
		ms = int(min.Milliseconds())
	}
	select {
	case <-s.ctx.Done():
	case <-time.After(time.Duration(ms) * time.Millisecond):
	}
}

// run executes actions against the given chromedp context under a bound.
func run(ctx context.Context, within time.Duration, actions ...chromedp.Action) error {
	bounded, cancel := context.WithTimeout(ctx, within)
	defer cancel()

	err := chromedp.Run(bounded, actions...)
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

func (s *Session) Navigate(url string, within time.Duration) error {
	return run(s.ctx, within, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery))
}

func (s *Session) WaitVisible(sel string, within time.Duration) error {
	return run(s.ctx, within, chromedp.WaitVisible(sel, chromedp.ByQuery))
}

// Visible reports whether sel becomes visible within the bound.
func (s *Session) Visible(sel string, within time.Duration) bool {
	return s.WaitVisible(sel, within) == nil
}

func (s *Session) Click(sel string, within time.Duration) error {
	s.Pause()
	return run(s.ctx, within, chromedp.Click(sel, chromedp.ByQuery))
}

func textXPath(text string) string {
	return fmt.Sprintf(`//*[normalize-space(text())=%s]`, xpathLiteral(text))
}

// xpathLiteral quotes text for embedding in an XPath expression. XPath 1.0
// has no escaping, strings with both quote kinds need concat().
func xpathLiteral(text string) string {
	if !strings.Contains(text, `'`) {
		return "'" + text + "'"
	}
	if !strings.Contains(text, `"`) {
		return `"` + text + `"`
	}
	parts := strings.Split(text, `'`)
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}

// ClickText clicks the first element whose trimmed text equals text and
// waits for the resulting page to settle.
func (s *Session) ClickText(text string, within time.Duration) error {
	s.Pause()
	return run(s.ctx, within,
		chromedp.Click(textXPath(text), chromedp.BySearch),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// TypeSlow fills sel one key at a time with a human-ish delay.
func (s *Session) TypeSlow(sel, text string) error {
	actions := []chromedp.Action{
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Focus(sel, chromedp.ByQuery),
	}
	for _, r := range text {
		actions = append(actions,
			chromedp.SendKeys(sel, string(r), chromedp.ByQuery),
			chromedp.Sleep(keystrokeDelay()),
		)
	}
	return run(s.ctx, 2*time.Minute, actions...)
}

func keystrokeDelay() time.Duration {
	ms, err := random.IntRange(80, 201)
	if err != nil {
		ms = 100
	}
	return time.Duration(ms) * time.Millisecond
}

// Fill sets sel's value in one shot.
func (s *Session) Fill(sel, text string, within time.Duration) error {
	s.Pause()
	return run(s.ctx, within,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.SetValue(sel, text, chromedp.ByQuery),
	)
}

// SelectOption picks an option of a <select> by value and fires the
// change event the portal's scripts listen for.
func (s *Session) SelectOption(sel, value string, within time.Duration) error {
	js := fmt.Sprintf(
		`(() => { const el = document.querySelector(%q); el.value = %q; el.dispatchEvent(new Event("change", {bubbles: true})); })()`,
		sel, value,
	)
	return run(s.ctx, within,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Evaluate(js, nil),
	)
}

func (s *Session) Text(sel string, within time.Duration) (string, error) {
	var out string
	err := run(s.ctx, within, chromedp.Text(sel, &out, chromedp.ByQuery))
	return out, err
}

// TextAfter reads the text of the element immediately following the
// element matching an exact-text query. The portal lays out detail
// values as a label span followed by a value div.
func (s *Session) TextAfter(labelText string, within time.Duration) (string, error) {
	var out string
	xpath := textXPath(labelText) + "/following-sibling::div"
	err := run(s.ctx, within, chromedp.Text(xpath, &out, chromedp.BySearch))
	return out, err
}

// HTML returns the outer HTML of the first match of sel.
func (s *Session) HTML(sel string, within time.Duration) (string, error) {
	var out string
	err := run(s.ctx, within, chromedp.OuterHTML(sel, &out, chromedp.ByQuery))
	return out, err
}

// Content returns the full page HTML.
func (s *Session) Content() (string, error) {
	return s.HTML("html", 10*time.Second)
}

func (s *Session) Back() error {
	return run(s.ctx, 30*time.Second,
		chromedp.NavigateBack(),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Count returns how many elements currently match sel.
func (s *Session) Count(sel string, within time.Duration) (int, error) {
	var n int
	js := fmt.Sprintf(`document.querySelectorAll(%q).length`, sel)
	err := run(s.ctx, within, chromedp.Evaluate(js, &n))
	return n, err
}

// WaitURLContains polls the page location until it contains substr.
func (s *Session) WaitURLContains(substr string, within time.Duration) error {
	bounded, cancel := context.WithTimeout(s.ctx, within)
	defer cancel()

	for {
		var location string
		if err := chromedp.Run(bounded, chromedp.Location(&location)); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return ErrTimeout
			}
			return err
		}
		if strings.Contains(location, substr) {
			return nil
		}

		select {
		case <-bounded.Done():
			return ErrTimeout
		case <-time.After(250 * time.Millisecond):
		}
	}
}

// Tab is a secondary page opened by the portal (the digital folder opens
// in its own window). Always closed by the caller, success or not.
type Tab struct {
	session *Session
	ctx     context.Context
	cancel  context.CancelFunc
}

// ExpectTab runs trigger and captures the page it opens.
func (s *Session) ExpectTab(within time.Duration, trigger func() error) (*Tab, error) {
	targets := chromedp.WaitNewTarget(s.ctx, func(info *target.Info) bool {
		return info.Type == "page" && info.OpenerID != ""
	})

	if err := trigger(); err != nil {
		return nil, err
	}

	select {
	case id := <-targets:
		tabCtx, tabCancel := chromedp.NewContext(s.ctx, chromedp.WithTargetID(id))
		if err := run(tabCtx, within, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
			tabCancel()
			return nil, err
		}
		return &Tab{session: s, ctx: tabCtx, cancel: tabCancel}, nil
	case <-time.After(within):
		return nil, ErrTimeout
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	}
}

func (t *Tab) Close() {
	err := chromedp.Cancel(t.ctx)
	if err != nil {
		slog.Warn("failed to close tab cleanly", "err", err)
	}
	t.cancel()
}

// ClickText clicks the first element whose text contains the given
// fragment, matched case-insensitively.
func (t *Tab) ClickText(fragment string, within time.Duration) error {
	t.session.Pause()
	xpath := fmt.Sprintf(
		`//*[contains(translate(text(), 'ABCDEFGHIJKLMNOPQRSTUVWXYZÇÃÕÁÉÍÓÚÂÊÔ', 'abcdefghijklmnopqrstuvwxyzçãõáéíóúâêô'), %s)]`,
		xpathLiteral(strings.ToLower(fragment)),
	)
	return run(t.ctx, within, chromedp.Click(xpath, chromedp.BySearch))
}

// drainDownloads discards queued completion GUIDs. Anything still in
// the channel belongs to a download whose AwaitDownload already gave up.
func (s *Session) drainDownloads() {
	for {
		select {
		case guid := <-s.downloads:
			slog.Warn("discarding stale completed download", "guid", guid)
		default:
			return
		}
	}
}

// ClickInFrame clicks innerSel inside the iframe matching frameSel. The
// document viewer renders its controls in a same-origin iframe. This
// click is what starts a download, so stale completions are drained
// first and the next GUID to arrive is the one this click produced.
func (t *Tab) ClickInFrame(frameSel, innerSel string, within time.Duration) error {
	t.session.drainDownloads()
	t.session.Pause()
	js := fmt.Sprintf(
		`document.querySelector(%q).contentDocument.querySelector(%q).click()`,
		frameSel, innerSel,
	)
	bounded, cancel := context.WithTimeout(t.ctx, within)
	defer cancel()

	// the frame populates asynchronously, poll until the control exists
	probe := fmt.Sprintf(
		`!!(document.querySelector(%q) && document.querySelector(%q).contentDocument && document.querySelector(%q).contentDocument.querySelector(%q))`,
		frameSel, frameSel, frameSel, innerSel,
	)
	for {
		var ready bool
		if err := chromedp.Run(bounded, chromedp.Evaluate(probe, &ready)); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return ErrTimeout
			}
			return err
		}
		if ready {
			break
		}
		select {
		case <-bounded.Done():
			return ErrTimeout
		case <-time.After(500 * time.Millisecond):
		}
	}

	err := chromedp.Run(bounded, chromedp.Evaluate(js, nil))
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

// AwaitDownload blocks until a download completes and returns the path
// of the captured file.
func (t *Tab) AwaitDownload(within time.Duration) (string, error) {
	select {
	case guid := <-t.session.downloads:
		return filepath.Join(t.session.opts.DownloadDir, guid), nil
	case <-time.After(within):
		return "", ErrTimeout
	case <-t.ctx.Done():
		return "", t.ctx.Err()
	}
}
