package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/use-agent/dexharvest/catalog"
	"github.com/use-agent/dexharvest/config"
	"github.com/use-agent/dexharvest/extractor"
	"github.com/use-agent/dexharvest/navigator"
	"github.com/use-agent/dexharvest/session"
	"github.com/use-agent/dexharvest/sink"
	"github.com/use-agent/dexharvest/traverse"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(config.Load()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dexharvest",
		Short: "dexharvest walks the pokedex index and writes every entry's moves table to disk.",
		Long: "dexharvest loads the creature index, writes it as a sheet, then visits each entry's\n" +
			"generation moves page and writes that table too. Flags override DEXHARVEST_* variables.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Output.Dir, "output-dir", cfg.Output.Dir, "root directory for written sheets")
	f.StringVar(&cfg.Output.Format, "format", cfg.Output.Format, "sheet format: csv, xlsx or both")
	f.StringVar(&cfg.Browser.BrowserBin, "browser-bin", cfg.Browser.BrowserBin, "Chromium binary (default: auto-download)")
	f.BoolVar(&cfg.Browser.Headless, "headless", cfg.Browser.Headless, "run the browser headless")
	f.StringVar(&cfg.Browser.Driver, "driver", cfg.Browser.Driver, "session driver: rod or static")
	f.StringVar(&cfg.Harvest.Strategy, "strategy", cfg.Harvest.Strategy, "how moves pages are reached: click or url")
	f.IntVar(&cfg.Harvest.MaxEntries, "max-entries", cfg.Harvest.MaxEntries, "harvest at most this many entries (0 = all)")
	f.StringVar(&cfg.Harvest.IndexURL, "index-url", cfg.Harvest.IndexURL, "page holding the index table")
	f.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "debug, info, warn or error")
	f.StringVar(&cfg.Log.Format, "log-format", cfg.Log.Format, "text or json")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	initLogger(cfg.Log)
	if err := cfg.Validate(); err != nil {
		return err
	}
	cat := catalog.Default()
	if err := cat.Validate(); err != nil {
		return err
	}

	slog.Info("dexharvest starting",
		"driver", cfg.Browser.Driver,
		"strategy", cfg.Harvest.Strategy,
		"index", cfg.Harvest.IndexURL,
		"output", cfg.Output.Dir,
		"format", cfg.Output.Format,
	)

	defaultSiteHosts(cfg)

	sess, err := openSession(cfg.Browser)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			slog.Warn("session close failed", "error", err)
		}
	}()

	nav := navigator.New(sess, cat, navigator.Options{
		ActionTimeout:  cfg.Harvest.ActionTimeout,
		PollInterval:   cfg.Harvest.PollInterval,
		PagesPerSecond: cfg.Harvest.PagesPerSecond,
	})
	ext := extractor.New(cat, extractor.WithProgress(func(done, total int) {
		if done == total || done%50 == 0 {
			slog.Debug("extracting rows", "done", done, "total", total)
		}
	}))

	h := traverse.New(nav, ext, newSink(cfg.Output), cat, traverse.Config{
		IndexURL:          cfg.Harvest.IndexURL,
		DetailURLTemplate: cfg.Harvest.DetailURLTemplate,
		Strategy:          traverse.Strategy(cfg.Harvest.Strategy),
		Fallback:          cfg.Harvest.Fallback,
		Generation: traverse.Generation{
			Label: cfg.Harvest.GenerationLabel,
			Name:  cfg.Harvest.GenerationName,
		},
		MaxEntries:    cfg.Harvest.MaxEntries,
		Naming:        traverse.Naming(cfg.Output.DestinationNaming),
		LoadTimeout:   cfg.Harvest.LoadTimeout,
		ActionTimeout: cfg.Harvest.ActionTimeout,
		PollInterval:  cfg.Harvest.PollInterval,
	})

	report, err := h.Run(ctx)
	if err != nil {
		slog.Error("harvest stopped", "report", report, "error", err)
		return err
	}
	slog.Info("harvest finished", "report", report, "failures", report.FailureCodes())
	return nil
}

// defaultSiteHosts treats the index URL's host as the site when none is set.
func defaultSiteHosts(cfg *config.Config) {
	if len(cfg.Browser.SiteHosts) > 0 {
		return
	}
	if u, err := url.Parse(cfg.Harvest.IndexURL); err == nil && u.Hostname() != "" {
		cfg.Browser.SiteHosts = []string{u.Hostname()}
	}
}

func openSession(cfg config.BrowserConfig) (session.Session, error) {
	if cfg.Driver == "static" {
		return session.NewStatic(session.NewHTTPFetcher(cfg.Proxy, cfg.AcceptLanguage)), nil
	}
	r, err := session.NewRod(cfg)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func newSink(cfg config.OutputConfig) sink.Sink {
	switch cfg.Format {
	case "xlsx":
		return &sink.XLSX{Dir: cfg.Dir}
	case "both":
		return sink.Multi{&sink.CSV{Dir: cfg.Dir}, &sink.XLSX{Dir: cfg.Dir}}
	default:
		return &sink.CSV{Dir: cfg.Dir}
	}
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
