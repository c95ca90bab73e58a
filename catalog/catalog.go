// Package catalog holds every site-specific locator the harvester uses, so a
// change in the site's layout touches this package only.
package catalog

import (
	"fmt"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/xpath"
	"github.com/use-agent/dexharvest/models"
	"github.com/use-agent/dexharvest/session"
)

// Catalog is the full set of locators for one site.
type Catalog struct {
	// IndexTable is the creature index table.
	IndexTable session.Locator
	// DetailReady appears once an entry's detail page rendered.
	DetailReady session.Locator
	// MovesTable is the per-generation level-up moves table.
	MovesTable session.Locator

	// HeaderCells, Rows and Cells are evaluated relative to a table.
	HeaderCells session.Locator
	Rows        session.Locator
	// Cells is evaluated relative to a row.
	Cells session.Locator
	// CellLinks is evaluated relative to a cell.
	CellLinks session.Locator

	// NameHeader is the index column holding the display name.
	NameHeader string

	// ConsentDismiss is the privacy banner's accept control.
	ConsentDismiss session.Locator
	// ConsentOverlay is the banner container that blocks clicks while shown.
	ConsentOverlay session.Locator
}

// Default returns the locators for pokemondb.net.
func Default() *Catalog {
	return &Catalog{
		IndexTable:     session.ID("pokedex"),
		DetailReady:    session.CSS(".data-table"),
		MovesTable:     session.CSS("#tabs-moves-1 > div:nth-child(1) > div:nth-child(1) > div:nth-child(3) > table:nth-child(1)"),
		HeaderCells:    session.CSS("thead > tr > th"),
		Rows:           session.CSS("tbody > tr"),
		Cells:          session.CSS("td"),
		CellLinks:      session.CSS("a"),
		NameHeader:     "Name",
		ConsentDismiss: session.XPath("/html/body/div/div/div/p[2]/button"),
		ConsentOverlay: session.ID("gdpr-confirm"),
	}
}

// Validate compiles every locator.
func (c *Catalog) Validate() error {
	named := []struct {
		name string
		loc  session.Locator
	}{
		{"index table", c.IndexTable},
		{"detail ready", c.DetailReady},
		{"moves table", c.MovesTable},
		{"header cells", c.HeaderCells},
		{"rows", c.Rows},
		{"cells", c.Cells},
		{"cell links", c.CellLinks},
		{"consent dismiss", c.ConsentDismiss},
		{"consent overlay", c.ConsentOverlay},
	}
	for _, n := range named {
		if err := compile(n.loc); err != nil {
			return models.NewHarvestError(models.ErrCodeInvalidInput,
				fmt.Sprintf("catalog: %s locator %s", n.name, n.loc), err)
		}
	}
	if c.NameHeader == "" {
		return models.NewHarvestError(models.ErrCodeInvalidInput, "catalog: name header is empty", nil)
	}
	return nil
}

func compile(loc session.Locator) error {
	if loc.IsZero() {
		return fmt.Errorf("empty locator")
	}
	switch loc.By {
	case session.ByXPath:
		_, err := xpath.Compile(loc.Value)
		return err
	case session.ByLinkText:
		return nil
	default:
		sel, ok := loc.CSSSelector()
		if !ok {
			return fmt.Errorf("unsupported locator kind %s", loc.By)
		}
		_, err := cascadia.Compile(sel)
		return err
	}
}
