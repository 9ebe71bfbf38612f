package cacheproxy

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/loomwright/httpproxy/internal/message"
)

// Prewarm synthesizes a GET request for rawURL, runs it through the same
// Classify/forward/Put pipeline a real client connection would take, and
// reports the resulting status code. It exists so wrapper/prewarmer can
// populate the Cache/Store ahead of real traffic without building on
// net/http, which this proxy does not otherwise depend on.
func (p *Proxy) Prewarm(ctx context.Context, rawURL string) (status int, fromCache bool, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, false, fmt.Errorf("prewarm: invalid URL %q: %w", rawURL, err)
	}
	if u.Host == "" {
		return 0, false, fmt.Errorf("prewarm: URL %q has no host", rawURL)
	}

	path := u.RequestURI()
	raw := "GET " + path + " HTTP/1.1\r\nHost: " + u.Host + "\r\nUser-Agent: httpproxy-prewarmer/1.0\r\nConnection: close\r\n\r\n"
	req, err := parseGetRequest(raw)
	if err != nil {
		return 0, false, fmt.Errorf("prewarm: %w", err)
	}

	h := &Handler{
		id:         p.nextID.Add(1),
		cache:      p.cache,
		dial:       p.dial,
		metrics:    p.metrics,
		resilience: p.resilience,
	}

	key := CanonicalKeyFromRequest(req)
	switch p.cache.Classify(ctx, key) {
	case Fresh:
		cached, ok := p.cache.Get(key)
		if ok {
			return cached.StatusCode, true, nil
		}
	}

	resp, err := h.forward(req, nil)
	if err != nil {
		return 0, false, err
	}
	p.cache.Put(ctx, key, resp)
	return resp.StatusCode, false, nil
}

func parseGetRequest(raw string) (*message.Request, error) {
	return message.ParseRequest(bufio.NewReader(bytes.NewReader([]byte(raw))), 0, GetLogger())
}
