package session

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceTypes maps config names to protocol resource types.
var resourceTypes = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
	"Script":     proto.NetworkResourceTypeScript,
}

// adHosts are ad and tracking hosts refused when ad blocking is on.
var adHosts = map[string]struct{}{
	"doubleclick.net":       {},
	"googlesyndication.com": {},
	"googleadservices.com":  {},
	"google-analytics.com":  {},
	"googletagmanager.com":  {},
	"googletagservices.com": {},
	"adnxs.com":             {},
	"adsrvr.org":            {},
	"amazon-adsystem.com":   {},
	"criteo.com":            {},
	"criteo.net":            {},
	"pubmatic.com":          {},
	"rubiconproject.com":    {},
	"scorecardresearch.com": {},
	"quantserve.com":        {},
	"casalemedia.com":       {},
	"openx.net":             {},
	"consensu.org":          {},
}

// isAdHost matches host or any of its parent domains against adHosts.
func isAdHost(host string) bool {
	return matchDomain(adHosts, host)
}

// matchDomain reports whether host or one of its parent domains is in set.
func matchDomain(set map[string]struct{}, host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for host != "" {
		if _, ok := set[host]; ok {
			return true
		}
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			return false
		}
		host = host[idx+1:]
	}
	return false
}

// blockRules decides which requests the rod session refuses. Documents are
// always loaded, since every harvest step needs the page itself; the site's
// own hosts are exempt from ad blocking.
type blockRules struct {
	types    map[proto.NetworkResourceType]struct{}
	blockAds bool
	site     map[string]struct{}
}

func newBlockRules(blockedTypes []string, blockAds bool, siteHosts []string) blockRules {
	r := blockRules{
		types:    make(map[proto.NetworkResourceType]struct{}, len(blockedTypes)),
		blockAds: blockAds,
		site:     make(map[string]struct{}, len(siteHosts)),
	}
	for _, name := range blockedTypes {
		if rt, ok := resourceTypes[name]; ok {
			r.types[rt] = struct{}{}
		}
	}
	for _, h := range siteHosts {
		r.site[strings.ToLower(h)] = struct{}{}
	}
	return r
}

func (r blockRules) empty() bool {
	return len(r.types) == 0 && !r.blockAds
}

func (r blockRules) blocks(rt proto.NetworkResourceType, rawURL string) bool {
	if rt == proto.NetworkResourceTypeDocument {
		return false
	}
	if _, ok := r.types[rt]; ok {
		return true
	}
	if !r.blockAds {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return !matchDomain(r.site, host) && isAdHost(host)
}

// setupHijack installs a request interceptor enforcing rules. It returns nil
// when nothing is blocked; otherwise the caller stops the router on close.
func setupHijack(page *rod.Page, rules blockRules) *rod.HijackRouter {
	if rules.empty() {
		return nil
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(h *rod.Hijack) {
		if rules.blocks(h.Request.Type(), h.Request.URL().String()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// Run blocks until Stop.
	go router.Run()

	return router
}
