package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const indexPage = `<!doctype html><html><body>
<div id="gdpr-confirm" role="dialog" aria-modal="true"><p>We use cookies</p><p><button>Okay</button></p></div>
<table id="pokedex">
<thead><tr><th>#</th><th>Name</th></tr></thead>
<tbody>
<tr><td>1</td><td><a href="/pokedex/bulbasaur">Bulbasaur</a></td></tr>
<tr><td>6</td><td><a href="/pokedex/charizard">Charizard</a><br><small>Mega Charizard X</small></td></tr>
</tbody>
</table>
<a href="#top" class="skip">Top</a>
<p style="display: none">secret</p>
</body></html>`

const detailPage = `<html><body><h1>Bulbasaur</h1><a href="/pokedex/bulbasaur/moves/1">1</a></body></html>`

func newFixtureSession(t *testing.T) (*Static, *MapFetcher) {
	t.Helper()
	f := NewMapFetcher(map[string]string{
		"https://dex.test/index":             indexPage,
		"https://dex.test/pokedex/bulbasaur": detailPage,
	})
	s := NewStatic(f)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Load(context.Background(), "https://dex.test/index"))
	return s, f
}

func TestStatic_FindByLocatorKinds(t *testing.T) {
	s, _ := newFixtureSession(t)
	ctx := context.Background()

	byID, err := s.Find(ctx, ID("pokedex"))
	require.NoError(t, err)
	require.Len(t, byID, 1)

	rows, err := byID[0].Find(CSS("tbody > tr"))
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	buttons, err := s.Find(ctx, XPath("/html/body/div/p[2]/button"))
	require.NoError(t, err)
	require.Len(t, buttons, 1)
	text, err := buttons[0].Text()
	require.NoError(t, err)
	assert.Equal(t, "Okay", text)

	skip, err := s.Find(ctx, Class("skip"))
	require.NoError(t, err)
	assert.Len(t, skip, 1)

	links, err := s.Find(ctx, LinkText("Charizard"))
	require.NoError(t, err)
	assert.Len(t, links, 1)

	none, err := s.Find(ctx, LinkText("Pikachu"))
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = s.Find(ctx, CSS("tr[[["))
	assert.Error(t, err)
}

func TestStatic_TextRendering(t *testing.T) {
	s, _ := newFixtureSession(t)
	cells, err := s.Find(context.Background(), CSS("tbody > tr:nth-child(2) > td"))
	require.NoError(t, err)
	require.Len(t, cells, 2)

	name, err := cells[1].Text()
	require.NoError(t, err)
	assert.Equal(t, "Charizard\nMega Charizard X", name)

	hiddenP, err := s.Find(context.Background(), CSS("p[style]"))
	require.NoError(t, err)
	require.Len(t, hiddenP, 1)
	visible, err := hiddenP[0].Visible()
	require.NoError(t, err)
	assert.False(t, visible)
}

func TestStatic_ModalBlocksClicksUntilDismissed(t *testing.T) {
	s, _ := newFixtureSession(t)
	ctx := context.Background()

	link, err := s.Find(ctx, LinkText("Bulbasaur"))
	require.NoError(t, err)
	require.Len(t, link, 1)
	ok, err := link[0].Clickable()
	require.NoError(t, err)
	assert.False(t, ok, "link under an open consent dialog")
	assert.Error(t, s.Click(ctx, link[0]))

	button, err := s.Find(ctx, XPath("/html/body/div/p[2]/button"))
	require.NoError(t, err)
	require.NoError(t, s.Click(ctx, button[0]))

	overlay, err := s.Find(ctx, ID("gdpr-confirm"))
	require.NoError(t, err)
	assert.Empty(t, overlay)

	// a DOM mutation is not a navigation: the old handle is still usable
	ok, err = link[0].Clickable()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStatic_ClickNavigatesAndBackRestores(t *testing.T) {
	s, f := newFixtureSession(t)
	ctx := context.Background()
	dismiss(t, s)

	link, err := s.Find(ctx, LinkText("Bulbasaur"))
	require.NoError(t, err)
	require.NoError(t, s.Click(ctx, link[0]))
	assert.Equal(t, "https://dex.test/pokedex/bulbasaur", s.URL())
	assert.Equal(t, 1, f.Hits("https://dex.test/pokedex/bulbasaur"))

	_, err = link[0].Text()
	assert.ErrorIs(t, err, ErrStale)

	require.NoError(t, s.HistoryBack(ctx))
	assert.Equal(t, "https://dex.test/index", s.URL())
	assert.Equal(t, 1, f.Hits("https://dex.test/index"), "back must not refetch")

	// handles from before the round trip stay stale
	_, err = link[0].Text()
	assert.ErrorIs(t, err, ErrStale)

	table, err := s.Find(ctx, ID("pokedex"))
	require.NoError(t, err)
	assert.Len(t, table, 1)

	// back with a single document left is a no-op
	require.NoError(t, s.HistoryBack(ctx))
	assert.Equal(t, "https://dex.test/index", s.URL())
}

func TestStatic_FragmentLinkDoesNotNavigate(t *testing.T) {
	s, _ := newFixtureSession(t)
	ctx := context.Background()
	dismiss(t, s)

	top, err := s.Find(ctx, Class("skip"))
	require.NoError(t, err)
	require.NoError(t, s.Click(ctx, top[0]))
	assert.Equal(t, "https://dex.test/index", s.URL())
	_, err = top[0].Text()
	assert.NoError(t, err)
}

func TestStatic_LoadFailure(t *testing.T) {
	s, _ := newFixtureSession(t)
	err := s.Load(context.Background(), "/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "https://dex.test/missing")
	assert.Equal(t, "https://dex.test/index", s.URL())
}

func TestStatic_Closed(t *testing.T) {
	s, _ := newFixtureSession(t)
	els, err := s.Find(context.Background(), ID("pokedex"))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Find(context.Background(), ID("pokedex"))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = els[0].Text()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStatic_Children(t *testing.T) {
	s, _ := newFixtureSession(t)
	cells, err := s.Find(context.Background(), CSS("tbody > tr:nth-child(2) > td:nth-child(2)"))
	require.NoError(t, err)
	require.Len(t, cells, 1)
	kids, err := cells[0].Children()
	require.NoError(t, err)
	require.Len(t, kids, 3) // a, br, small
	text, err := kids[2].Text()
	require.NoError(t, err)
	assert.Equal(t, "Mega Charizard X", text)
}

func dismiss(t *testing.T, s *Static) {
	t.Helper()
	button, err := s.Find(context.Background(), XPath("//div[@id='gdpr-confirm']//button"))
	require.NoError(t, err)
	require.Len(t, button, 1)
	require.NoError(t, s.Click(context.Background(), button[0]))
}
