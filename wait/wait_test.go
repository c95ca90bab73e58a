package wait

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/dexharvest/session"
)

const page = `<html><body>
<div id="gdpr-confirm" role="dialog" aria-modal="true"><p>Cookies</p><p><button>Okay</button></p></div>
<table id="pokedex"><tbody><tr><td><a href="/x">Bulbasaur</a></td></tr></tbody></table>
<div id="ghost" style="display:none">boo</div>
</body></html>`

func newSession(t *testing.T) *session.Static {
	t.Helper()
	s := session.NewStatic(session.NewMapFetcher(map[string]string{"https://dex.test/": page}))
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Load(context.Background(), "https://dex.test/"))
	return s
}

func TestAwait_SatisfiedImmediately(t *testing.T) {
	s := newSession(t)
	got := Await(context.Background(), s, Present(session.ID("pokedex")), time.Second, 10*time.Millisecond)
	assert.Equal(t, Satisfied, got)
}

func TestAwait_TimesOutWithoutError(t *testing.T) {
	s := newSession(t)
	start := time.Now()
	got := Await(context.Background(), s, Present(session.ID("missing")), 50*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, TimedOut, got)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestAwait_Canceled(t *testing.T) {
	s := newSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	got := Await(ctx, s, Present(session.ID("missing")), 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, Canceled, got)
}

func TestAwait_PollsUntilTrue(t *testing.T) {
	s := newSession(t)
	calls := 0
	p := func(context.Context, session.Session) (bool, error) {
		calls++
		if calls < 3 {
			return false, errors.New("not rendered yet")
		}
		return true, nil
	}
	got := Await(context.Background(), s, p, time.Second, time.Millisecond)
	assert.Equal(t, Satisfied, got)
	assert.Equal(t, 3, calls)
}

func TestPredicates(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()

	tests := []struct {
		name string
		p    Predicate
		want bool
	}{
		{"present", Present(session.ID("pokedex")), true},
		{"absent", Present(session.ID("nope")), false},
		{"all present", AllPresent(session.ID("pokedex"), session.ID("gdpr-confirm")), true},
		{"all present with one missing", AllPresent(session.ID("pokedex"), session.ID("nope")), false},
		{"invisible when hidden", Invisible(session.ID("ghost")), true},
		{"invisible when missing", Invisible(session.ID("nope")), true},
		{"not invisible when shown", Invisible(session.ID("gdpr-confirm")), false},
		{"link under modal not clickable", Clickable(session.LinkText("Bulbasaur")), false},
		{"button in modal clickable", Clickable(session.CSS("#gdpr-confirm button")), true},
		{"missing not clickable", Clickable(session.ID("nope")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.p(ctx, s)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDismissConsent(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	loc := session.XPath("/html/body/div/p[2]/button")

	clicked, err := DismissConsent(ctx, s, loc)
	require.NoError(t, err)
	assert.True(t, clicked)

	ok, err := Invisible(session.ID("gdpr-confirm"))(ctx, s)
	require.NoError(t, err)
	assert.True(t, ok)

	clicked, err = DismissConsent(ctx, s, loc)
	require.NoError(t, err)
	assert.False(t, clicked, "nothing left to dismiss")

	links, err := s.Find(ctx, session.LinkText("Bulbasaur"))
	require.NoError(t, err)
	ok, err = ElementClickable(links[0])(ctx, s)
	require.NoError(t, err)
	assert.True(t, ok)
}
