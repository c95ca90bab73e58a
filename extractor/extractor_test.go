package extractor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/dexharvest/catalog"
	"github.com/use-agent/dexharvest/models"
	"github.com/use-agent/dexharvest/session"
)

const indexTable = `<html><body><table id="pokedex">
<thead><tr>
<th>#</th><th>Name</th><th>Type</th><th>Total</th><th>HP</th><th>Attack</th><th>Defense</th><th>Sp. Atk</th><th>Sp. Def</th><th>Speed</th>
</tr></thead>
<tbody><tr>
<td><span><img src="/sprites/bulbasaur.png" alt="Bulbasaur"></span>1</td>
<td><a href="/pokedex/bulbasaur">Bulbasaur</a></td>
<td><a class="type-icon" href="/type/grass">Grass</a></td>
<td>318</td><td>45</td><td>49</td><td>49</td><td>65</td><td>65</td><td>45</td>
</tr></tbody></table></body></html>`

const movesTable = `<html><body><table class="data-table">
<thead><tr><th>Lv.</th><th>Move</th><th>Type</th><th>Cat.</th><th>Type</th></tr></thead>
<tbody>
<tr><td>1</td><td><a href="/move/tackle">Tackle</a></td><td><a href="/type/normal">Normal</a></td><td><img src="p.png" title="Physical" alt="physical-alt"></td><td><a href="/type/grass">Grass</a><br><a href="/type/poison">Poison</a></td></tr>
<tr><td>9</td><td>Vine<br>Whip</td><td><a href="/type/grass">Grass</a></td><td><img src="s.png" alt="Special"></td><td><a href="/type/fire">Fire</a><a href="#"></a></td></tr>
<tr><td>13</td><td>Growl</td><td></td><td><span></span></td><td></td></tr>
</tbody></table></body></html>`

const ragged = `<html><body><table id="t">
<thead><tr><th>a</th><th>b</th></tr></thead>
<tbody><tr><td>1</td><td>2</td></tr><tr><td>3</td></tr></tbody>
</table></body></html>`

func loadTable(t *testing.T, html string, loc session.Locator) (*session.Static, session.Element) {
	t.Helper()
	s := session.NewStatic(session.NewMapFetcher(map[string]string{"https://dex.test/": html}))
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Load(context.Background(), "https://dex.test/"))
	els, err := s.Find(context.Background(), loc)
	require.NoError(t, err)
	require.Len(t, els, 1)
	return s, els[0]
}

func TestExtract_IndexRow(t *testing.T) {
	_, table := loadTable(t, indexTable, session.ID("pokedex"))

	sheet, err := New(catalog.Default()).Extract(context.Background(), table)
	require.NoError(t, err)

	assert.Equal(t, []string{"#", "Name", "Type", "Total", "HP", "Attack", "Defense", "Sp. Atk", "Sp. Def", "Speed"}, sheet.Header)
	require.Len(t, sheet.Records, 1)
	assert.Equal(t, []string{"1", "Bulbasaur", "Grass", "318", "45", "49", "49", "65", "65", "45"}, sheet.Records[0].Strings())
	for _, c := range sheet.Records[0] {
		assert.False(t, c.IsSequence())
	}
	require.NoError(t, sheet.Validate())
}

func TestExtract_MixedCells(t *testing.T) {
	_, table := loadTable(t, movesTable, session.Class("data-table"))

	sheet, err := New(catalog.Default()).Extract(context.Background(), table)
	require.NoError(t, err)

	// duplicate header labels are kept
	assert.Equal(t, []string{"Lv.", "Move", "Type", "Cat.", "Type"}, sheet.Header)
	require.Len(t, sheet.Records, 3)

	first := sheet.Records[0]
	assert.True(t, first[3].Equal(models.Scalar("Physical")), "title wins over alt")
	assert.True(t, first[4].Equal(models.Sequence("Grass", "Poison")))

	second := sheet.Records[1]
	assert.True(t, second[1].Equal(models.Scalar("Vine/Whip")), "newline flattened")
	assert.True(t, second[3].Equal(models.Scalar("Special")), "alt fallback")
	assert.True(t, second[4].Equal(models.Scalar("Fire")), "empty link ignored")

	third := sheet.Records[2]
	assert.True(t, third[2].Equal(models.Scalar("")), "no child")
	assert.True(t, third[3].Equal(models.Scalar("")), "child without title")
}

func TestExtract_ImageTitleCell(t *testing.T) {
	page := `<html><body><table id="t"><thead><tr><th>Type</th></tr></thead>
<tbody><tr><td><img src="fire.png" title="Fire"></td></tr></tbody></table></body></html>`
	_, table := loadTable(t, page, session.ID("t"))

	sheet, err := New(catalog.Default()).Extract(context.Background(), table)
	require.NoError(t, err)
	require.Len(t, sheet.Records, 1)
	assert.True(t, sheet.Records[0][0].Equal(models.Scalar("Fire")))
}

func TestExtract_RowWidthMismatch(t *testing.T) {
	_, table := loadTable(t, ragged, session.ID("t"))

	_, err := New(catalog.Default()).Extract(context.Background(), table)
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.ErrCodeExtractionMismatch))
	assert.Contains(t, err.Error(), "row 2")
}

func TestExtract_Progress(t *testing.T) {
	_, table := loadTable(t, movesTable, session.Class("data-table"))

	var calls [][2]int
	x := New(catalog.Default(), WithProgress(func(done, total int) {
		calls = append(calls, [2]int{done, total})
	}))
	_, err := x.Extract(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, calls)
}

func TestExtract_StaleTable(t *testing.T) {
	s, table := loadTable(t, indexTable, session.ID("pokedex"))
	require.NoError(t, s.Load(context.Background(), "https://dex.test/"))

	_, err := New(catalog.Default()).Extract(context.Background(), table)
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.ErrCodeStaleElement))
}

func TestExtract_Canceled(t *testing.T) {
	_, table := loadTable(t, movesTable, session.Class("data-table"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(catalog.Default()).Extract(ctx, table)
	assert.ErrorIs(t, err, context.Canceled)
}
