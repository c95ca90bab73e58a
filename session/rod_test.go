package session

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
)

func TestIsAdHost(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"doubleclick.net", true},
		{"securepubads.g.doubleclick.net", true},
		{"STATS.G.DOUBLECLICK.NET", true},
		{"www.googletagmanager.com.", true},
		{"pokemondb.net", false},
		{"img.pokemondb.net", false},
		{"notdoubleclick.net", false},
		{"net", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isAdHost(tt.host); got != tt.want {
			t.Errorf("isAdHost(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestBlockRules(t *testing.T) {
	rules := newBlockRules([]string{"Font", "Media", "Bogus"}, true, []string{"PokemonDB.net"})

	tests := []struct {
		name string
		rt   proto.NetworkResourceType
		url  string
		want bool
	}{
		{"document always loads", proto.NetworkResourceTypeDocument, "https://ad.doubleclick.net/page", false},
		{"blocked type", proto.NetworkResourceTypeFont, "https://pokemondb.net/font.woff2", true},
		{"media on site", proto.NetworkResourceTypeMedia, "https://img.pokemondb.net/cry.ogg", true},
		{"ad script", proto.NetworkResourceTypeScript, "https://securepubads.g.doubleclick.net/tag.js", true},
		{"site script", proto.NetworkResourceTypeScript, "https://pokemondb.net/static/app.js", false},
		{"site image", proto.NetworkResourceTypeImage, "https://img.pokemondb.net/sprites/bulbasaur.png", false},
		{"malformed url", proto.NetworkResourceTypeXHR, "://%zz", false},
	}
	for _, tt := range tests {
		if got := rules.blocks(tt.rt, tt.url); got != tt.want {
			t.Errorf("%s: blocks(%s, %q) = %v, want %v", tt.name, tt.rt, tt.url, got, tt.want)
		}
	}
}

func TestBlockRules_SiteHostExemptFromAdList(t *testing.T) {
	rules := newBlockRules(nil, true, []string{"criteo.com"})
	if rules.blocks(proto.NetworkResourceTypeScript, "https://static.criteo.com/js/ld.js") {
		t.Error("site host blocked as an ad host")
	}
	if !rules.blocks(proto.NetworkResourceTypeScript, "https://criteo.net/js/ld.js") {
		t.Error("other ad host not blocked")
	}
}

func TestBlockRules_Empty(t *testing.T) {
	if !newBlockRules([]string{"Bogus"}, false, nil).empty() {
		t.Error("unknown types without ad blocking should install no router")
	}
	if newBlockRules(nil, true, nil).empty() {
		t.Error("ad blocking alone needs a router")
	}
	if newBlockRules(nil, false, nil).blocks(proto.NetworkResourceTypeScript, "https://doubleclick.net/x.js") {
		t.Error("ad host blocked with ad blocking off")
	}
}

func TestToHeadersMap(t *testing.T) {
	got := toHeadersMap(map[string]string{"Accept-Language": "en-US,en;q=0.9", "X-Empty": ""})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if v := got["Accept-Language"].Str(); v != "en-US,en;q=0.9" {
		t.Errorf("Accept-Language = %q", v)
	}
	if v := got["X-Empty"].Str(); v != "" {
		t.Errorf("X-Empty = %q, want empty", v)
	}
	if len(toHeadersMap(nil)) != 0 {
		t.Error("nil map should give no headers")
	}
}

func TestPreviousEntry(t *testing.T) {
	entries := []*proto.PageNavigationEntry{
		{ID: 1, URL: "https://pokemondb.net/pokedex/stats/gen1"},
		{ID: 4, URL: "https://pokemondb.net/pokedex/bulbasaur"},
		{ID: 7, URL: "https://pokemondb.net/pokedex/bulbasaur/moves/1"},
	}
	tests := []struct {
		name    string
		hist    *proto.PageGetNavigationHistoryResult
		wantID  int
		wantHit bool
	}{
		{"from moves page", &proto.PageGetNavigationHistoryResult{CurrentIndex: 2, Entries: entries}, 4, true},
		{"from detail page", &proto.PageGetNavigationHistoryResult{CurrentIndex: 1, Entries: entries}, 1, true},
		{"at first entry", &proto.PageGetNavigationHistoryResult{CurrentIndex: 0, Entries: entries}, 0, false},
		{"index past entries", &proto.PageGetNavigationHistoryResult{CurrentIndex: 3, Entries: entries}, 0, false},
		{"nil history", nil, 0, false},
	}
	for _, tt := range tests {
		e, ok := previousEntry(tt.hist)
		if ok != tt.wantHit {
			t.Errorf("%s: ok = %v, want %v", tt.name, ok, tt.wantHit)
			continue
		}
		if ok && e.ID != tt.wantID {
			t.Errorf("%s: entry id = %d, want %d", tt.name, e.ID, tt.wantID)
		}
	}
}
