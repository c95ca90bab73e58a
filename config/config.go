package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Browser BrowserConfig
	Harvest HarvestConfig
	Output  OutputConfig
	Log     LogConfig
}

// BrowserConfig controls the browsing session.
type BrowserConfig struct {
	// Driver selects the session implementation: "rod" or "static".
	Driver string // default: "rod"

	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is an optional proxy URL for all requests.
	Proxy string

	// Stealth masks navigator.webdriver and friends on the rod page.
	Stealth bool // default: false

	// AcceptLanguage is sent with every request.
	AcceptLanguage string // default: "en-US,en;q=0.9"

	// BlockedResourceTypes lists resource types the rod session refuses to load.
	// default: ["Font", "Media"]
	BlockedResourceTypes []string

	// BlockAds refuses requests to well-known ad and tracking hosts.
	BlockAds bool // default: true

	// SiteHosts are the harvested site's own hosts. Their requests are never
	// treated as ads. Defaults to the index URL's host when empty.
	SiteHosts []string
}

// HarvestConfig controls the traversal.
type HarvestConfig struct {
	// IndexURL is the page holding the creature index table.
	IndexURL string // default: "https://pokemondb.net/pokedex/stats/gen1"

	// DetailURLTemplate builds the direct moves URL; "{slug}" is replaced
	// with the lower-cased entry slug.
	DetailURLTemplate string // default: "https://pokemondb.net/pokedex/{slug}/moves/1"

	// Strategy is "click" (follow links, then go back) or "url" (load the
	// detail URL directly).
	Strategy string // default: "click"

	// Fallback retries a click-strategy entry once through the URL strategy
	// when a link cannot be found.
	Fallback bool // default: true

	// GenerationLabel is the visible text of the generation tab link.
	GenerationLabel string // default: "1"

	// GenerationName must appear in the generation link's title attribute.
	GenerationName string // default: "Generation 1"

	// MaxEntries caps the work list; 0 means every index row.
	MaxEntries int // default: 0

	// LoadTimeout bounds the wait for the index table after a load.
	LoadTimeout time.Duration // default: 5s

	// ActionTimeout bounds waits around clicks and detail pages.
	ActionTimeout time.Duration // default: 30s

	// PollInterval is the wait predicate polling period.
	PollInterval time.Duration // default: 100ms

	// PagesPerSecond throttles navigations; 0 disables throttling.
	PagesPerSecond float64 // default: 2
}

// OutputConfig controls the record sinks.
type OutputConfig struct {
	// Dir is the root output directory.
	Dir string // default: "output"

	// Format is "csv", "xlsx" or "both".
	Format string // default: "csv"

	// DestinationNaming is "display" (raw display name) or "slug" (path-safe).
	DestinationNaming string // default: "display"
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Browser: BrowserConfig{
			Driver:         envOr("DEXHARVEST_DRIVER", "rod"),
			Headless:       envBoolOr("DEXHARVEST_HEADLESS", true),
			NoSandbox:      envBoolOr("DEXHARVEST_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("DEXHARVEST_BROWSER_BIN"),
			Proxy:          os.Getenv("DEXHARVEST_PROXY"),
			Stealth:        envBoolOr("DEXHARVEST_STEALTH", false),
			AcceptLanguage: envOr("DEXHARVEST_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			BlockedResourceTypes: envListOr("DEXHARVEST_BLOCKED_RESOURCES", []string{
				"Font", "Media",
			}),
			BlockAds:  envBoolOr("DEXHARVEST_BLOCK_ADS", true),
			SiteHosts: envListOr("DEXHARVEST_SITE_HOSTS", nil),
		},
		Harvest: HarvestConfig{
			IndexURL:          envOr("DEXHARVEST_INDEX_URL", "https://pokemondb.net/pokedex/stats/gen1"),
			DetailURLTemplate: envOr("DEXHARVEST_DETAIL_URL", "https://pokemondb.net/pokedex/{slug}/moves/1"),
			Strategy:          envOr("DEXHARVEST_STRATEGY", "click"),
			Fallback:          envBoolOr("DEXHARVEST_FALLBACK", true),
			GenerationLabel:   envOr("DEXHARVEST_GENERATION_LABEL", "1"),
			GenerationName:    envOr("DEXHARVEST_GENERATION_NAME", "Generation 1"),
			MaxEntries:        envIntOr("DEXHARVEST_MAX_ENTRIES", 0),
			LoadTimeout:       envDurationOr("DEXHARVEST_LOAD_TIMEOUT", 5*time.Second),
			ActionTimeout:     envDurationOr("DEXHARVEST_ACTION_TIMEOUT", 30*time.Second),
			PollInterval:      envDurationOr("DEXHARVEST_POLL_INTERVAL", 100*time.Millisecond),
			PagesPerSecond:    envFloatOr("DEXHARVEST_PAGES_PER_SECOND", 2),
		},
		Output: OutputConfig{
			Dir:               envOr("DEXHARVEST_OUTPUT_DIR", "output"),
			Format:            envOr("DEXHARVEST_FORMAT", "csv"),
			DestinationNaming: envOr("DEXHARVEST_DESTINATION_NAMING", "display"),
		},
		Log: LogConfig{
			Level:  envOr("DEXHARVEST_LOG_LEVEL", "info"),
			Format: envOr("DEXHARVEST_LOG_FORMAT", "text"),
		},
	}
}

// Validate rejects enum values the rest of the program does not understand.
func (c *Config) Validate() error {
	if err := oneOf("driver", c.Browser.Driver, "rod", "static"); err != nil {
		return err
	}
	if err := oneOf("strategy", c.Harvest.Strategy, "click", "url"); err != nil {
		return err
	}
	if err := oneOf("format", c.Output.Format, "csv", "xlsx", "both"); err != nil {
		return err
	}
	if err := oneOf("destination naming", c.Output.DestinationNaming, "slug", "display"); err != nil {
		return err
	}
	if c.Harvest.IndexURL == "" {
		return fmt.Errorf("config: index url is required")
	}
	if c.Harvest.Strategy == "url" || c.Harvest.Fallback {
		if !strings.Contains(c.Harvest.DetailURLTemplate, "{slug}") {
			return fmt.Errorf("config: detail url template %q has no {slug} placeholder", c.Harvest.DetailURLTemplate)
		}
	}
	if c.Harvest.MaxEntries < 0 {
		return fmt.Errorf("config: max entries must not be negative")
	}
	if c.Harvest.PollInterval <= 0 {
		return fmt.Errorf("config: poll interval must be positive")
	}
	return nil
}

func oneOf(name, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("config: unknown %s %q (want one of %s)", name, value, strings.Join(allowed, ", "))
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envParsed parses key with parse, keeping fallback when the variable is
// unset or malformed.
func envParsed[T any](key string, fallback T, parse func(string) (T, error)) T {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := parse(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envIntOr(key string, fallback int) int {
	return envParsed(key, fallback, strconv.Atoi)
}

func envBoolOr(key string, fallback bool) bool {
	return envParsed(key, fallback, strconv.ParseBool)
}

func envFloatOr(key string, fallback float64) float64 {
	return envParsed(key, fallback, func(v string) (float64, error) { return strconv.ParseFloat(v, 64) })
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	return envParsed(key, fallback, time.ParseDuration)
}

// envListOr splits a comma-separated variable, dropping empty items.
func envListOr(key string, fallback []string) []string {
	return envParsed(key, fallback, func(v string) ([]string, error) {
		var items []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, p)
			}
		}
		return items, nil
	})
}
