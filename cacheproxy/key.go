package cacheproxy

import (
	"net/url"
	"strings"

	"github.com/loomwright/httpproxy/internal/message"
)

// CanonicalKey builds the cache key for a GET request: the method, scheme,
// lowercased host, port (elided when default), and path+query exactly as
// received. Only GET requests are ever looked up under this key; POST and
// CONNECT are never classifiable.
func CanonicalKey(target string) string {
	scheme := "http"
	rest := target
	if strings.Contains(target, "://") {
		if u, err := url.Parse(target); err == nil && u.Scheme != "" && u.Host != "" {
			scheme = u.Scheme
			host := strings.ToLower(u.Hostname())
			port := u.Port()
			hostport := host
			if port != "" && !isDefaultPort(scheme, port) {
				hostport = host + ":" + port
			}
			path := u.EscapedPath()
			if path == "" {
				path = "/"
			}
			if u.RawQuery != "" {
				path += "?" + u.RawQuery
			}
			return "GET " + scheme + "://" + hostport + path
		}
	}

	// Origin-form target (as seen when the proxy itself issues the request
	// after stripping scheme+authority); combine with a Host header by the
	// caller before calling CanonicalKey, or treat rest as already absolute.
	return "GET " + scheme + "://" + rest
}

// CanonicalKeyFromRequest builds the canonical key for a fully parsed GET
// request, combining the request-target with the Host header when the
// target is in origin-form.
func CanonicalKeyFromRequest(req *message.Request) string {
	target := req.Target
	if !strings.Contains(target, "://") {
		host := req.Headers.Get("Host")
		if host != "" {
			if !strings.HasPrefix(target, "/") {
				target = "/" + target
			}
			target = "http://" + host + target
		}
	}
	return CanonicalKey(target)
}

func isDefaultPort(scheme, port string) bool {
	switch scheme {
	case "http":
		return port == "80"
	case "https":
		return port == "443"
	default:
		return false
	}
}
