// Package traverse runs the harvest: load and extract the index once, then
// for every entry reach its moves table, extract it, write it and return to
// the index. One failing entry never stops the run.
package traverse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/dexharvest/catalog"
	"github.com/use-agent/dexharvest/extractor"
	"github.com/use-agent/dexharvest/models"
	"github.com/use-agent/dexharvest/navigator"
	"github.com/use-agent/dexharvest/sink"
	"github.com/use-agent/dexharvest/wait"
)

// Strategy selects how an entry's moves table is reached.
type Strategy string

const (
	// StrategyClick follows the entry link and the generation link, then
	// goes back as many steps as it clicked.
	StrategyClick Strategy = "click"
	// StrategyURL loads the detail URL built from the entry's slug.
	StrategyURL Strategy = "url"
)

// Generation identifies the generation tab on a detail page.
type Generation struct {
	// Label is the tab link's visible text.
	Label string
	// Name must be contained in the tab link's title attribute.
	Name string
}

// Config is everything the loop needs to know about the run.
type Config struct {
	IndexURL          string
	DetailURLTemplate string
	Strategy          Strategy
	// Fallback retries a click-strategy entry once through the detail URL
	// when a link is missing.
	Fallback      bool
	Generation    Generation
	MaxEntries    int
	Naming        Naming
	LoadTimeout   time.Duration
	ActionTimeout time.Duration
	PollInterval  time.Duration
}

// Harvester owns one traversal. It is not safe for concurrent use.
type Harvester struct {
	nav *navigator.Navigator
	ext *extractor.Extractor
	out sink.Sink
	cat *catalog.Catalog
	cfg Config
	obs Observer
}

// Option configures a Harvester.
type Option func(*Harvester)

// WithObserver replaces the default LogObserver.
func WithObserver(o Observer) Option {
	return func(h *Harvester) { h.obs = o }
}

// New creates a Harvester.
func New(nav *navigator.Navigator, ext *extractor.Extractor, out sink.Sink, cat *catalog.Catalog, cfg Config, opts ...Option) *Harvester {
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyClick
	}
	if cfg.Naming == "" {
		cfg.Naming = NamingDisplay
	}
	h := &Harvester{nav: nav, ext: ext, out: out, cat: cat, cfg: cfg, obs: LogObserver{}}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Run executes the whole traversal. Setup failures (index navigation, index
// table missing, index extraction) are returned as errors; entry failures
// are only recorded in the report. Cancellation stops the loop before the
// next entry and is returned with the partial report.
func (h *Harvester) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{}
	defer func() { report.Elapsed = time.Since(start) }()

	index, err := h.harvestIndex(ctx, report)
	if err != nil {
		return report, err
	}

	entries := BuildEntries(index, h.cat.NameHeader)
	if h.cfg.MaxEntries > 0 && len(entries) > h.cfg.MaxEntries {
		entries = entries[:h.cfg.MaxEntries]
	}
	report.Total = len(entries)
	slog.Info("work list built", "entries", len(entries), "strategy", string(h.cfg.Strategy))

	for i, e := range entries {
		if ctx.Err() != nil {
			break
		}
		h.obs.EntryStarted(e, i+1, len(entries))
		rows, fellBack, err := h.harvestEntry(ctx, e)
		if fellBack {
			report.Fallbacks = append(report.Fallbacks, e.Name)
		}
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			h.obs.EntryFailed(e, err)
			report.Failures = append(report.Failures, Failure{Entry: e, Err: err})
			continue
		}
		h.obs.EntryCompleted(e, rows)
		report.Succeeded = append(report.Succeeded, e.Name)
	}
	return report, ctx.Err()
}

// harvestIndex covers LOAD_INDEX and EXTRACT_INDEX.
func (h *Harvester) harvestIndex(ctx context.Context, report *Report) (*models.Sheet, error) {
	out, err := h.nav.Load(ctx, h.cfg.IndexURL, wait.Present(h.cat.IndexTable), h.cfg.LoadTimeout)
	if err != nil {
		return nil, err
	}
	if !out.Ready {
		report.DegradedIndex = true
		slog.Warn("index table not ready in time, extracting what is there",
			"url", h.cfg.IndexURL, "timeout", h.cfg.LoadTimeout)
	}

	tables, err := h.nav.Session().Find(ctx, h.cat.IndexTable)
	if err != nil {
		return nil, models.NewHarvestError(models.ErrCodeNavigation, "find index table", err)
	}
	if len(tables) == 0 {
		return nil, models.NewHarvestError(models.ErrCodeTargetNotFound,
			fmt.Sprintf("index table %s not on %s", h.cat.IndexTable, h.cfg.IndexURL), nil)
	}
	sheet, err := h.ext.Extract(ctx, tables[0])
	if err != nil {
		return nil, fmt.Errorf("extract index: %w", err)
	}

	if err := h.out.Write(IndexDestination, sheet); err != nil {
		report.IndexWriteErr = err
		slog.Error("index sheet not written", "destination", IndexDestination, "error", err)
	}
	return sheet, nil
}

// harvestEntry reaches, extracts and writes one entry's moves table and
// leaves the session on the index (click strategy) or wherever the direct
// load left it (URL strategy).
func (h *Harvester) harvestEntry(ctx context.Context, e models.Entry) (rows int, fellBack bool, err error) {
	if h.cfg.Strategy == StrategyURL {
		rows, _, err = h.viaURL(ctx, e)
		return rows, false, err
	}

	rows, clicks, err := h.viaClicks(ctx, e)
	if restoreErr := h.returnToIndex(ctx, clicks); restoreErr != nil {
		return rows, false, errors.Join(err, restoreErr)
	}
	if err == nil || !h.cfg.Fallback || !models.IsCode(err, models.ErrCodeTargetNotFound) {
		return rows, false, err
	}

	slog.Warn("link not found, trying the detail url", "entry", e.Name, "error", err)
	rows, loaded, err := h.viaURL(ctx, e)
	steps := 0
	if loaded {
		steps = 1
	}
	if restoreErr := h.returnToIndex(ctx, steps); restoreErr != nil {
		return rows, true, errors.Join(err, restoreErr)
	}
	return rows, true, err
}

// viaClicks follows the entry link then the generation link and reports how
// many clicks actually navigated.
func (h *Harvester) viaClicks(ctx context.Context, e models.Entry) (rows, clicks int, err error) {
	out, err := h.nav.NavigateViaLink(ctx, e.LinkText, nil, wait.Present(h.cat.DetailReady))
	if out.Clicked {
		clicks++
	}
	if err != nil {
		return 0, clicks, err
	}
	if out.Status != navigator.Navigated {
		return 0, clicks, out.Err()
	}
	if !out.Ready {
		slog.Warn("detail page not ready in time, continuing", "entry", e.Name)
	}

	match := &navigator.AttributeMatch{Name: "title", Value: h.cfg.Generation.Name, Contains: true}
	out, err = h.nav.NavigateViaLink(ctx, h.cfg.Generation.Label, match, wait.Present(h.cat.MovesTable))
	if out.Clicked {
		clicks++
	}
	if err != nil {
		return 0, clicks, err
	}
	if out.Status != navigator.Navigated {
		return 0, clicks, out.Err()
	}

	rows, err = h.extractMoves(ctx, e, out.Ready)
	return rows, clicks, err
}

// viaURL loads the slug-built detail URL. loaded reports whether the
// session navigated.
func (h *Harvester) viaURL(ctx context.Context, e models.Entry) (rows int, loaded bool, err error) {
	url := DetailURL(h.cfg.DetailURLTemplate, e)
	out, err := h.nav.Load(ctx, url, wait.Present(h.cat.MovesTable), h.cfg.ActionTimeout)
	if err != nil {
		return 0, false, err
	}
	rows, err = h.extractMoves(ctx, e, out.Ready)
	return rows, true, err
}

// extractMoves covers EXTRACT_SUBVIEW.
func (h *Harvester) extractMoves(ctx context.Context, e models.Entry, ready bool) (int, error) {
	tables, err := h.nav.Session().Find(ctx, h.cat.MovesTable)
	if err != nil {
		return 0, models.NewHarvestError(models.ErrCodeNavigation, "find moves table", err)
	}
	if len(tables) == 0 {
		if !ready {
			return 0, models.NewHarvestError(models.ErrCodeReadyTimeout, "moves table did not appear", nil)
		}
		return 0, models.NewHarvestError(models.ErrCodeTargetNotFound, "moves table "+h.cat.MovesTable.String(), nil)
	}
	sheet, err := h.ext.Extract(ctx, tables[0])
	if err != nil {
		return 0, err
	}
	if err := h.out.Write(MovesDestination(e, h.cfg.Naming), sheet); err != nil {
		return 0, err
	}
	return len(sheet.Records), nil
}

// returnToIndex undoes steps navigations and makes sure the index table is
// back, reloading the index page when it is not.
func (h *Harvester) returnToIndex(ctx context.Context, steps int) error {
	if ctx.Err() != nil {
		return nil
	}
	if steps > 0 {
		if err := h.nav.GoBack(ctx, steps); err != nil {
			slog.Warn("back navigation failed, reloading index", "steps", steps, "error", err)
		}
	}
	switch wait.Await(ctx, h.nav.Session(), wait.Present(h.cat.IndexTable), h.cfg.LoadTimeout, h.cfg.PollInterval) {
	case wait.Satisfied, wait.Canceled:
		return nil
	}

	slog.Warn("index not restored, reloading", "url", h.cfg.IndexURL)
	out, err := h.nav.Load(ctx, h.cfg.IndexURL, wait.Present(h.cat.IndexTable), h.cfg.LoadTimeout)
	if err != nil {
		return err
	}
	if !out.Ready {
		return models.NewHarvestError(models.ErrCodeReadyTimeout, "index table missing after reload", nil)
	}
	return nil
}
