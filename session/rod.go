package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/dexharvest/config"
	"github.com/use-agent/dexharvest/models"
	"github.com/ysmood/gson"
)

// isNavigationalJS reports whether clicking the element follows a real link.
const isNavigationalJS = `() => {
	const a = this.closest('a[href]');
	if (!a) return false;
	const h = (a.getAttribute('href') || '').trim().toLowerCase();
	return h !== '' && !h.startsWith('#') && !h.startsWith('javascript:');
}`

const (
	backTimeout = 30 * time.Second
	backPoll    = 50 * time.Millisecond
)

// Rod is a Session backed by a single Chromium tab driven through go-rod.
type Rod struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	router   *rod.HijackRouter

	// gen changes on every navigation; elements remember the value they
	// were found under.
	gen  uint64
	once sync.Once
}

var _ Session = (*Rod)(nil)

// NewRod launches a browser per cfg and opens the session's only page.
func NewRod(cfg config.BrowserConfig) (*Rod, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewHarvestError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, models.NewHarvestError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	var page *rod.Page
	if cfg.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, models.NewHarvestError(models.ErrCodeBrowserCrash, "failed to open page", err)
	}

	if cfg.AcceptLanguage != "" {
		err := proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{"Accept-Language": cfg.AcceptLanguage}),
		}.Call(page)
		if err != nil {
			slog.Warn("extra headers not set", "acceptLanguage", cfg.AcceptLanguage, "error", err)
		}
	}

	return &Rod{
		launcher: l,
		browser:  browser,
		page:     page,
		router:   setupHijack(page, newBlockRules(cfg.BlockedResourceTypes, cfg.BlockAds, cfg.SiteHosts)),
	}, nil
}

// toHeadersMap converts a plain string map into the format
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

func (r *Rod) Load(ctx context.Context, url string) error {
	p := r.page.Context(ctx)
	r.gen++
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("rod: navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("rod: wait load %s: %w", url, err)
	}
	return nil
}

func (r *Rod) Find(ctx context.Context, loc Locator) ([]Element, error) {
	p := r.page.Context(ctx)
	var (
		els rod.Elements
		err error
	)
	switch loc.By {
	case ByXPath:
		els, err = p.ElementsX(loc.Value)
	case ByLinkText:
		els, err = p.ElementsX(LinkTextXPath(loc.Value))
		if err == nil {
			els, err = exactText(els, loc.Value)
		}
	default:
		sel, ok := loc.CSSSelector()
		if !ok {
			return nil, fmt.Errorf("rod: unsupported locator %s", loc)
		}
		els, err = p.Elements(sel)
	}
	if err != nil {
		return nil, fmt.Errorf("rod: find %s: %w", loc, err)
	}
	return r.wrap(els), nil
}

// exactText keeps the elements whose rendered text equals text.
func exactText(els rod.Elements, text string) (rod.Elements, error) {
	out := els[:0]
	for _, el := range els {
		t, err := el.Text()
		if err != nil {
			return nil, err
		}
		if t == text {
			out = append(out, el)
		}
	}
	return out, nil
}

func (r *Rod) wrap(els rod.Elements) []Element {
	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = &rodElement{r: r, el: el, gen: r.gen}
	}
	return out
}

// Click clicks el. When el is (or sits inside) a link, Click waits for the
// next document's DOMContentLoaded before returning.
func (r *Rod) Click(ctx context.Context, el Element) error {
	re, ok := el.(*rodElement)
	if !ok {
		return fmt.Errorf("rod: foreign element %T", el)
	}
	if err := re.check(); err != nil {
		return err
	}
	target := re.el.Context(ctx)

	res, err := target.Eval(isNavigationalJS)
	if err != nil {
		return fmt.Errorf("rod: inspect click target: %w", err)
	}
	if !res.Value.Bool() {
		return target.Click(proto.InputMouseButtonLeft, 1)
	}

	wait := r.page.Context(ctx).WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := target.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}
	r.gen++
	wait()
	return ctx.Err()
}

// HistoryBack moves to the previous history entry and returns once that
// entry is the committed, loaded document, so consecutive calls pop one
// entry each.
func (r *Rod) HistoryBack(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, backTimeout)
	defer cancel()
	p := r.page.Context(ctx)

	hist, err := p.GetNavigationHistory()
	if err != nil {
		return fmt.Errorf("rod: read history: %w", err)
	}
	prev, ok := previousEntry(hist)
	if !ok {
		return nil
	}

	r.gen++
	if err := (proto.PageNavigateToHistoryEntry{EntryID: prev.ID}).Call(p); err != nil {
		return fmt.Errorf("rod: history back: %w", err)
	}
	for {
		cur, err := p.GetNavigationHistory()
		if err != nil {
			return fmt.Errorf("rod: read history: %w", err)
		}
		if cur.CurrentIndex == hist.CurrentIndex-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("rod: history back to %s: %w", prev.URL, ctx.Err())
		case <-time.After(backPoll):
		}
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("rod: wait load after back: %w", err)
	}
	return nil
}

// previousEntry returns the entry before the current one, if any.
func previousEntry(hist *proto.PageGetNavigationHistoryResult) (*proto.PageNavigationEntry, bool) {
	if hist == nil || hist.CurrentIndex <= 0 || hist.CurrentIndex > len(hist.Entries)-1 {
		return nil, false
	}
	return hist.Entries[hist.CurrentIndex-1], true
}

func (r *Rod) URL() string {
	info, err := r.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Close stops request interception, closes the page and kills the browser
// process. Only the first call has an effect.
func (r *Rod) Close() error {
	var err error
	r.once.Do(func() {
		slog.Info("session shutting down: closing browser")
		if r.router != nil {
			_ = r.router.Stop()
		}
		_ = r.page.Close()
		err = r.browser.Close()
		r.launcher.Kill()
		r.launcher.Cleanup()
		slog.Info("session shutdown complete")
	})
	return err
}

type rodElement struct {
	r   *Rod
	el  *rod.Element
	gen uint64
}

func (e *rodElement) check() error {
	if e.gen != e.r.gen {
		return ErrStale
	}
	return nil
}

func (e *rodElement) Text() (string, error) {
	if err := e.check(); err != nil {
		return "", err
	}
	return e.el.Text()
}

func (e *rodElement) Attribute(name string) (string, bool, error) {
	if err := e.check(); err != nil {
		return "", false, err
	}
	v, err := e.el.Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *rodElement) Find(loc Locator) ([]Element, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	var (
		els rod.Elements
		err error
	)
	switch loc.By {
	case ByXPath:
		els, err = e.el.ElementsX(loc.Value)
	case ByLinkText:
		els, err = e.el.ElementsX("." + LinkTextXPath(loc.Value))
		if err == nil {
			els, err = exactText(els, loc.Value)
		}
	default:
		sel, ok := loc.CSSSelector()
		if !ok {
			return nil, fmt.Errorf("rod: unsupported locator %s", loc)
		}
		els, err = e.el.Elements(sel)
	}
	if err != nil {
		return nil, err
	}
	return e.r.wrap(els), nil
}

func (e *rodElement) Children() ([]Element, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	els, err := e.el.Elements(":scope > *")
	if err != nil {
		return nil, err
	}
	return e.r.wrap(els), nil
}

func (e *rodElement) Visible() (bool, error) {
	if err := e.check(); err != nil {
		return false, err
	}
	return e.el.Visible()
}

// Clickable reports whether a pointer click would land on the element.
func (e *rodElement) Clickable() (bool, error) {
	if err := e.check(); err != nil {
		return false, err
	}
	_, err := e.el.Interactable()
	if err == nil {
		return true, nil
	}
	var (
		covered   *rod.CoveredError
		invisible *rod.InvisibleShapeError
		noPointer *rod.NoPointerEventsError
		notInter  *rod.NotInteractableError
	)
	if errors.As(err, &covered) || errors.As(err, &invisible) ||
		errors.As(err, &noPointer) || errors.As(err, &notInter) {
		return false, nil
	}
	return false, err
}
