// Package extractor turns a rendered table into a Sheet.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/use-agent/dexharvest/catalog"
	"github.com/use-agent/dexharvest/models"
	"github.com/use-agent/dexharvest/session"
)

// ProgressFunc is called after each row with the rows done so far and the
// row total.
type ProgressFunc func(done, total int)

// Extractor reads tables using the catalog's header, row, cell and link
// locators.
type Extractor struct {
	cat      *catalog.Catalog
	progress ProgressFunc
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithProgress installs a per-row progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(x *Extractor) { x.progress = fn }
}

// New creates an Extractor.
func New(cat *catalog.Catalog, opts ...Option) *Extractor {
	x := &Extractor{cat: cat}
	for _, o := range opts {
		o(x)
	}
	return x
}

// Extract materializes the whole table. A row whose width differs from the
// header fails the extraction with EXTRACTION_MISMATCH.
func (x *Extractor) Extract(ctx context.Context, table session.Element) (*models.Sheet, error) {
	headerCells, err := table.Find(x.cat.HeaderCells)
	if err != nil {
		return nil, elementError("read header cells", err)
	}
	header := make([]string, len(headerCells))
	for i, hc := range headerCells {
		text, err := hc.Text()
		if err != nil {
			return nil, elementError(fmt.Sprintf("read header %d", i+1), err)
		}
		header[i] = models.Flatten(strings.TrimSpace(text))
	}

	rows, err := table.Find(x.cat.Rows)
	if err != nil {
		return nil, elementError("read rows", err)
	}

	sheet := &models.Sheet{Header: header, Records: make([]models.Record, 0, len(rows))}
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := x.row(row)
		if err != nil {
			return nil, elementError(fmt.Sprintf("read row %d", i+1), err)
		}
		if len(rec) != len(header) {
			return nil, models.NewHarvestError(models.ErrCodeExtractionMismatch,
				fmt.Sprintf("row %d has %d cells, header has %d", i+1, len(rec), len(header)), nil)
		}
		sheet.Records = append(sheet.Records, rec)
		if x.progress != nil {
			x.progress(i+1, len(rows))
		}
	}

	slog.Debug("table extracted", "columns", len(header), "rows", len(sheet.Records))
	return sheet, nil
}

func (x *Extractor) row(row session.Element) (models.Record, error) {
	cells, err := row.Find(x.cat.Cells)
	if err != nil {
		return nil, err
	}
	rec := make(models.Record, len(cells))
	for i, cell := range cells {
		v, err := x.cell(cell)
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", i+1, err)
		}
		rec[i] = v
	}
	return rec, nil
}

// cell applies, in order: two or more non-empty links give a Sequence of
// their texts; non-empty text gives a flattened Scalar; otherwise the first
// child's title (or alt) attribute gives the Scalar.
func (x *Extractor) cell(cell session.Element) (models.CellValue, error) {
	links, err := cell.Find(x.cat.CellLinks)
	if err != nil {
		return models.CellValue{}, err
	}
	if len(links) >= 2 {
		items := make([]string, 0, len(links))
		for _, l := range links {
			t, err := l.Text()
			if err != nil {
				return models.CellValue{}, err
			}
			if t = models.Flatten(strings.TrimSpace(t)); t != "" {
				items = append(items, t)
			}
		}
		if len(items) >= 2 {
			return models.Sequence(items...), nil
		}
	}

	text, err := cell.Text()
	if err != nil {
		return models.CellValue{}, err
	}
	if text = strings.TrimSpace(text); text != "" {
		return models.Scalar(models.Flatten(text)), nil
	}

	return imageValue(cell)
}

// imageValue reads the semantic value of an icon-only cell.
func imageValue(cell session.Element) (models.CellValue, error) {
	children, err := cell.Children()
	if err != nil || len(children) == 0 {
		return models.Scalar(""), err
	}
	for _, name := range []string{"title", "alt"} {
		v, ok, err := children[0].Attribute(name)
		if err != nil {
			return models.CellValue{}, err
		}
		if ok && v != "" {
			return models.Scalar(models.Flatten(v)), nil
		}
	}
	return models.Scalar(""), nil
}

// elementError wraps failures of the session underneath an extraction.
// A stale handle gets its own code.
func elementError(msg string, err error) error {
	if errors.Is(err, session.ErrStale) {
		return models.NewHarvestError(models.ErrCodeStaleElement, msg, err)
	}
	return fmt.Errorf("extract: %s: %w", msg, err)
}
