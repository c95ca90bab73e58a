// Package navigator issues page transitions against a session and applies
// wait predicates around each of them. It never retries.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/dexharvest/catalog"
	"github.com/use-agent/dexharvest/models"
	"github.com/use-agent/dexharvest/session"
	"github.com/use-agent/dexharvest/wait"
	"golang.org/x/time/rate"
)

// Options tunes waits and politeness.
type Options struct {
	// ActionTimeout bounds clickability and post-click readiness waits.
	ActionTimeout time.Duration
	// PollInterval is the wait predicate polling period.
	PollInterval time.Duration
	// PagesPerSecond limits loads and link clicks; 0 means unlimited.
	PagesPerSecond float64
}

// Navigator drives one session. It is not safe for concurrent use.
type Navigator struct {
	sess    session.Session
	cat     *catalog.Catalog
	opts    Options
	limiter *rate.Limiter
}

// New creates a Navigator over sess.
func New(sess session.Session, cat *catalog.Catalog, opts Options) *Navigator {
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 30 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = wait.DefaultInterval
	}
	limit := rate.Inf
	if opts.PagesPerSecond > 0 {
		limit = rate.Limit(opts.PagesPerSecond)
	}
	return &Navigator{
		sess:    sess,
		cat:     cat,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Session returns the session the navigator drives.
func (n *Navigator) Session() session.Session { return n.sess }

// LoadOutcome reports a full navigation. Loaded is true whenever Load
// returned without error.
type LoadOutcome struct {
	Loaded bool
	Ready  bool
	// ConsentDismissed is true when a consent control was clicked.
	ConsentDismissed bool
}

// Load navigates to url, awaits ready (if non-nil) for at most timeout and
// dismisses the consent banner once. A readiness timeout is reported in the
// outcome; only a failed navigation or cancellation is an error.
func (n *Navigator) Load(ctx context.Context, url string, ready wait.Predicate, timeout time.Duration) (LoadOutcome, error) {
	var out LoadOutcome
	if err := n.limiter.Wait(ctx); err != nil {
		return out, err
	}
	slog.Debug("loading page", "url", url)
	if err := n.sess.Load(ctx, url); err != nil {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		return out, models.NewHarvestError(models.ErrCodeNavigation, "load "+url, err)
	}
	out.Loaded = true
	out.Ready = true

	if ready != nil {
		switch wait.Await(ctx, n.sess, ready, timeout, n.opts.PollInterval) {
		case wait.Canceled:
			return out, ctx.Err()
		case wait.TimedOut:
			out.Ready = false
			slog.Debug("page not ready in time", "url", url, "timeout", timeout)
		}
	}
	out.ConsentDismissed = n.dismissConsent(ctx)
	return out, nil
}

func (n *Navigator) dismissConsent(ctx context.Context) bool {
	if n.cat == nil || n.cat.ConsentDismiss.IsZero() {
		return false
	}
	clicked, err := wait.DismissConsent(ctx, n.sess, n.cat.ConsentDismiss)
	if err != nil {
		slog.Warn("consent dismissal failed", "error", err)
	}
	return clicked
}

// AttributeMatch narrows link candidates by one attribute.
type AttributeMatch struct {
	Name  string
	Value string
	// Contains accepts any attribute value containing Value.
	Contains bool
}

func (m AttributeMatch) matches(el session.Element) (bool, error) {
	v, ok, err := el.Attribute(m.Name)
	if err != nil || !ok {
		return false, err
	}
	if m.Contains {
		return strings.Contains(v, m.Value), nil
	}
	return v == m.Value, nil
}

// Status classifies a link navigation.
type Status int

const (
	Navigated Status = iota
	TargetNotFound
	NotClickable
)

func (s Status) String() string {
	switch s {
	case Navigated:
		return "navigated"
	case TargetNotFound:
		return "target not found"
	case NotClickable:
		return "not clickable"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// NavigateOutcome reports a link navigation.
type NavigateOutcome struct {
	Status Status
	// Clicked is true when the link was clicked, so the history grew by one.
	Clicked bool
	// Ready is false when the post-click predicate timed out.
	Ready bool
	// Target describes what was looked for, for error messages.
	Target string
}

// Err converts a non-successful outcome into a coded error, or nil.
func (o NavigateOutcome) Err() error {
	switch {
	case o.Status == TargetNotFound:
		return models.NewHarvestError(models.ErrCodeTargetNotFound, "no link "+o.Target, nil)
	case o.Status == NotClickable:
		return models.NewHarvestError(models.ErrCodeNotClickable, "link "+o.Target+" never became clickable", nil)
	case !o.Ready:
		return models.NewHarvestError(models.ErrCodeReadyTimeout, "page after "+o.Target+" not ready", nil)
	}
	return nil
}

// NavigateViaLink clicks the link whose visible text equals text. With a
// non-nil match the first candidate satisfying it is used; otherwise the
// first candidate. After the click, ready (if non-nil) is awaited for at
// most the action timeout.
func (n *Navigator) NavigateViaLink(ctx context.Context, text string, match *AttributeMatch, ready wait.Predicate) (NavigateOutcome, error) {
	out := NavigateOutcome{Target: describe(text, match)}

	candidates, err := n.sess.Find(ctx, session.LinkText(text))
	if err != nil {
		return out, n.sessionError(ctx, "find "+out.Target, err)
	}
	target, err := pick(candidates, match)
	if err != nil {
		return out, n.sessionError(ctx, "inspect "+out.Target, err)
	}
	if target == nil {
		out.Status = TargetNotFound
		return out, nil
	}

	if n.cat != nil && !n.cat.ConsentOverlay.IsZero() {
		if wait.Await(ctx, n.sess, wait.Invisible(n.cat.ConsentOverlay), n.opts.ActionTimeout, n.opts.PollInterval) == wait.Canceled {
			return out, ctx.Err()
		}
	}
	switch wait.Await(ctx, n.sess, wait.ElementClickable(target), n.opts.ActionTimeout, n.opts.PollInterval) {
	case wait.Canceled:
		return out, ctx.Err()
	case wait.TimedOut:
		out.Status = NotClickable
		return out, nil
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return out, err
	}
	slog.Debug("following link", "target", out.Target, "from", n.sess.URL())
	if err := n.sess.Click(ctx, target); err != nil {
		return out, n.sessionError(ctx, "click "+out.Target, err)
	}
	out.Clicked = true
	out.Status = Navigated
	out.Ready = true

	if ready != nil {
		switch wait.Await(ctx, n.sess, ready, n.opts.ActionTimeout, n.opts.PollInterval) {
		case wait.Canceled:
			return out, ctx.Err()
		case wait.TimedOut:
			out.Ready = false
		}
	}
	n.dismissConsent(ctx)
	return out, nil
}

func pick(candidates []session.Element, match *AttributeMatch) (session.Element, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if match == nil {
		return candidates[0], nil
	}
	for _, el := range candidates {
		ok, err := match.matches(el)
		if err != nil {
			return nil, err
		}
		if ok {
			return el, nil
		}
	}
	return nil, nil
}

func describe(text string, match *AttributeMatch) string {
	if match == nil {
		return fmt.Sprintf("%q", text)
	}
	op := "="
	if match.Contains {
		op = "*="
	}
	return fmt.Sprintf("%q [%s%s%q]", text, match.Name, op, match.Value)
}

// GoBack issues steps single history-back operations in sequence with no
// wait between them.
func (n *Navigator) GoBack(ctx context.Context, steps int) error {
	for i := 1; i <= steps; i++ {
		if err := n.sess.HistoryBack(ctx); err != nil {
			return n.sessionError(ctx, fmt.Sprintf("history back %d/%d", i, steps), err)
		}
	}
	if steps > 0 {
		slog.Debug("went back", "steps", steps, "url", n.sess.URL())
	}
	return nil
}

// sessionError codes a session failure. Cancellation passes through.
func (n *Navigator) sessionError(ctx context.Context, msg string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	code := models.ErrCodeNavigation
	if errors.Is(err, session.ErrStale) {
		code = models.ErrCodeStaleElement
	}
	return models.NewHarvestError(code, msg, err)
}
