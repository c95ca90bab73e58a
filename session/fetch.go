package session

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"

	tls2 "github.com/refraction-networking/utls"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// maxBody caps how much of a response the static session will parse.
const maxBody = 10 * 1024 * 1024

// Fetched is a retrieved document.
type Fetched struct {
	// URL is the final address after redirects.
	URL  string
	Body []byte
}

// Fetcher retrieves documents for the static session.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Fetched, error)
}

// HTTPFetcher performs GET requests with a Chrome TLS fingerprint (utls).
type HTTPFetcher struct {
	client         *http.Client
	acceptLanguage string
}

// NewHTTPFetcher creates a fetcher. proxy may be empty, an http(s) proxy URL,
// or a socks5 address.
func NewHTTPFetcher(proxy, acceptLanguage string) *HTTPFetcher {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialTLSChrome(ctx, network, addr, proxy)
		},
	}
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err == nil && (proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	if acceptLanguage == "" {
		acceptLanguage = "en-US,en;q=0.9"
	}
	return &HTTPFetcher{
		client:         &http.Client{Transport: transport},
		acceptLanguage: acceptLanguage,
	}
}

// Fetch retrieves targetURL and returns the body and the final URL.
func (f *HTTPFetcher) Fetch(ctx context.Context, targetURL string) (*Fetched, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: build request: %w", err)
	}
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", f.acceptLanguage)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("httpfetch: HTTP %d for %s", resp.StatusCode, targetURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("httpfetch: read body: %w", err)
	}
	return &Fetched{URL: resp.Request.URL.String(), Body: body}, nil
}

// Close drops idle keep-alive connections.
func (f *HTTPFetcher) Close() {
	f.client.CloseIdleConnections()
}

// dialTLSChrome establishes a TLS connection using a Chrome fingerprint via utls.
func dialTLSChrome(ctx context.Context, network, addr, proxy string) (net.Conn, error) {
	var rawConn net.Conn
	var err error

	dialer := &net.Dialer{}

	if proxy != "" {
		proxyURL, parseErr := url.Parse(proxy)
		if parseErr == nil && (proxyURL.Scheme == "socks5" || proxyURL.Scheme == "socks5h") {
			rawConn, err = dialer.DialContext(ctx, "tcp", proxyURL.Host)
			if err != nil {
				return nil, fmt.Errorf("socks5 dial: %w", err)
			}
		}
	}

	if rawConn == nil {
		rawConn, err = dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls2.UClient(rawConn, &tls2.Config{ServerName: host}, tls2.HelloChrome_Auto)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// MapFetcher serves documents from memory, keyed by absolute URL.
type MapFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	hits  map[string]int
}

// NewMapFetcher returns a fetcher over pages (URL → HTML).
func NewMapFetcher(pages map[string]string) *MapFetcher {
	cp := make(map[string]string, len(pages))
	for k, v := range pages {
		cp[k] = v
	}
	return &MapFetcher{pages: cp, hits: make(map[string]int)}
}

// Set adds or replaces a document.
func (m *MapFetcher) Set(url, html string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[url] = html
}

// Hits returns how many times url was fetched.
func (m *MapFetcher) Hits(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits[url]
}

func (m *MapFetcher) Fetch(ctx context.Context, url string) (*Fetched, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.pages[url]
	if !ok {
		return nil, fmt.Errorf("mapfetch: HTTP 404 for %s", url)
	}
	m.hits[url]++
	return &Fetched{URL: url, Body: []byte(body)}, nil
}
