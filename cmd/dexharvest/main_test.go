package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/dexharvest/config"
	"github.com/use-agent/dexharvest/sink"
)

func TestRootCmd_FlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("DEXHARVEST_OUTPUT_DIR", "from-env")
	t.Setenv("DEXHARVEST_DRIVER", "static")

	cfg := config.Load()
	cmd := newRootCmd(cfg)
	require.NoError(t, cmd.ParseFlags([]string{"--output-dir", "from-flag", "--max-entries", "3", "--strategy", "url"}))

	assert.Equal(t, "from-flag", cfg.Output.Dir)
	assert.Equal(t, 3, cfg.Harvest.MaxEntries)
	assert.Equal(t, "url", cfg.Harvest.Strategy)
	assert.Equal(t, "static", cfg.Browser.Driver, "unset flag keeps the environment value")
}

func TestDefaultSiteHosts(t *testing.T) {
	cfg := &config.Config{Harvest: config.HarvestConfig{IndexURL: "https://pokemondb.net:443/pokedex/stats/gen1"}}
	defaultSiteHosts(cfg)
	assert.Equal(t, []string{"pokemondb.net"}, cfg.Browser.SiteHosts)

	cfg.Browser.SiteHosts = []string{"cdn.example.org"}
	defaultSiteHosts(cfg)
	assert.Equal(t, []string{"cdn.example.org"}, cfg.Browser.SiteHosts, "explicit hosts kept")
}

func TestNewSink(t *testing.T) {
	assert.IsType(t, &sink.CSV{}, newSink(config.OutputConfig{Dir: "out", Format: "csv"}))
	assert.IsType(t, &sink.XLSX{}, newSink(config.OutputConfig{Dir: "out", Format: "xlsx"}))

	both, ok := newSink(config.OutputConfig{Dir: "out", Format: "both"}).(sink.Multi)
	require.True(t, ok)
	assert.Len(t, both, 2)
}
