// Package wait polls the session for page conditions within a bounded time.
package wait

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/use-agent/dexharvest/session"
)

// DefaultInterval is the polling period used when none is given.
const DefaultInterval = 100 * time.Millisecond

// Outcome is the result of Await. A timeout is an outcome, not an error.
type Outcome int

const (
	Satisfied Outcome = iota
	TimedOut
	Canceled
)

func (o Outcome) String() string {
	switch o {
	case Satisfied:
		return "satisfied"
	case TimedOut:
		return "timed out"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Predicate probes the session. Probes must not change the page.
type Predicate func(ctx context.Context, s session.Session) (bool, error)

// Await evaluates p immediately and then every interval until it reports
// true, timeout elapses (TimedOut) or ctx is done (Canceled). Probe errors
// count as "not yet".
func Await(ctx context.Context, s session.Session, p Predicate, timeout, interval time.Duration) Outcome {
	if interval <= 0 {
		interval = DefaultInterval
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		ok, err := p(probeCtx, s)
		if err == nil && ok {
			return Satisfied
		}
		if err != nil {
			slog.Debug("wait probe failed", "attempt", attempt, "error", err)
		}

		select {
		case <-probeCtx.Done():
			if ctx.Err() != nil {
				return Canceled
			}
			return TimedOut
		case <-ticker.C:
		}
	}
}

// Present is true when loc matches at least one element.
func Present(loc session.Locator) Predicate {
	return func(ctx context.Context, s session.Session) (bool, error) {
		els, err := s.Find(ctx, loc)
		if err != nil {
			return false, err
		}
		return len(els) > 0, nil
	}
}

// AllPresent is true when every locator matches at least one element.
func AllPresent(locs ...session.Locator) Predicate {
	return func(ctx context.Context, s session.Session) (bool, error) {
		for _, loc := range locs {
			els, err := s.Find(ctx, loc)
			if err != nil {
				return false, err
			}
			if len(els) == 0 {
				return false, nil
			}
		}
		return true, nil
	}
}

// Invisible is true when loc matches nothing or nothing visible.
func Invisible(loc session.Locator) Predicate {
	return func(ctx context.Context, s session.Session) (bool, error) {
		els, err := s.Find(ctx, loc)
		if err != nil {
			return false, err
		}
		for _, el := range els {
			visible, err := el.Visible()
			if errors.Is(err, session.ErrStale) {
				continue
			}
			if err != nil {
				return false, err
			}
			if visible {
				return false, nil
			}
		}
		return true, nil
	}
}

// Clickable is true when the first element matching loc can be clicked.
func Clickable(loc session.Locator) Predicate {
	return func(ctx context.Context, s session.Session) (bool, error) {
		els, err := s.Find(ctx, loc)
		if err != nil || len(els) == 0 {
			return false, err
		}
		return els[0].Clickable()
	}
}

// ElementClickable is true when el can be clicked.
func ElementClickable(el session.Element) Predicate {
	return func(context.Context, session.Session) (bool, error) {
		return el.Clickable()
	}
}

// DismissConsent clicks the first control matching loc, if any, and reports
// whether it clicked. It never clicks more than once per call.
func DismissConsent(ctx context.Context, s session.Session, loc session.Locator) (bool, error) {
	els, err := s.Find(ctx, loc)
	if err != nil {
		return false, err
	}
	if len(els) == 0 {
		return false, nil
	}
	if err := s.Click(ctx, els[0]); err != nil {
		return false, err
	}
	slog.Debug("consent banner dismissed", "locator", loc.String())
	return true, nil
}
