package cacheproxy

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/loomwright/httpproxy/internal/message"
	"github.com/loomwright/httpproxy/internal/proxyerr"
	"github.com/loomwright/httpproxy/internal/wire"
	"github.com/loomwright/httpproxy/metrics"
)

// DialFunc opens a connection to addr ("host:port"). It matches
// net.Dialer.DialContext's shape so the default is literally that method;
// tests substitute a net.Pipe-backed fake to avoid real sockets.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

func defaultDial(ctx context.Context, network, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, addr)
}

// Handler runs the per-connection state machine: parse, classify method,
// forward/tunnel/cache-serve/revalidate, reply, close. One Handler value is
// used per accepted connection; it holds no state that outlives a single
// connection.
type Handler struct {
	id          int64
	cache       *Cache
	dial        DialFunc
	idleTimeout time.Duration
	metrics     metrics.Collector
	resilience  *Resilience
}

// Serve drives the state machine for a single accepted client connection.
// Every exit path closes client exactly once before returning.
func (h *Handler) Serve(client net.Conn) {
	defer client.Close()
	logEvent(h.id, EventNewRequest)

	h.setDeadline(client)
	br := bufio.NewReader(client)
	req, err := message.ParseRequest(br, h.id, GetLogger())
	if err != nil {
		h.recordError(err)
		h.replyError(client, err)
		return
	}

	switch req.Method {
	case message.CONNECT:
		h.handleConnect(client, req)
	case message.GET:
		h.handleGet(client, req)
	case message.POST:
		h.handleForwardOnly(client, req)
	default:
		logEvent(h.id, EventError, "method", req.RawMethod)
		writeSimpleStatus(client, 400, "Bad Request")
	}
}

func (h *Handler) setDeadline(conns ...net.Conn) {
	if h.idleTimeout <= 0 {
		return
	}
	deadline := time.Now().Add(h.idleTimeout)
	for _, c := range conns {
		_ = c.SetDeadline(deadline)
	}
}

func (h *Handler) recordError(err error) {
	kind := proxyerr.Internal
	if pe, ok := proxyerr.As(err); ok {
		kind = pe.Kind
	}
	logEvent(h.id, EventError, "reason", err.Error())
	h.metrics.RecordError(kind.String())
}

// replyError writes the user-visible status for a closed error kind:
// MALFORMED -> 400, RESOLVE_FAIL/CONNECT_FAIL -> 502, everything else
// mid-forward closes silently (headers may already be in flight).
func (h *Handler) replyError(client net.Conn, err error) {
	pe, ok := proxyerr.As(err)
	if !ok {
		return
	}
	switch pe.Kind {
	case proxyerr.Malformed:
		writeSimpleStatus(client, 400, "Bad Request")
	case proxyerr.ResolveFail, proxyerr.ConnectFail:
		writeSimpleStatus(client, 502, "Bad Gateway")
	default:
		// IO_TIMEOUT / PEER_CLOSED / INTERNAL mid-message: silent close.
	}
}

func writeSimpleStatus(w net.Conn, code int, reason string) {
	_, _ = w.Write([]byte("HTTP/1.1 " + strconv.Itoa(code) + " " + reason + "\r\n\r\n"))
}

// handleConnect implements CONNECT tunneling: dial the origin, reply 200,
// then relay bytes opaquely until either side closes.
// The proxy never parses the tunneled stream.
func (h *Handler) handleConnect(client net.Conn, req *message.Request) {
	host := hostPort(req.Target, "443")
	origin, err := h.dialOrigin(host)
	if err != nil {
		h.recordError(err)
		writeSimpleStatus(client, 502, "Bad Gateway")
		return
	}
	defer origin.Close()

	if _, err := client.Write([]byte("HTTP/1.1 200 OK\r\n\r\n")); err != nil {
		return
	}
	logEvent(h.id, EventTunnelOpen, "target", host)
	start := time.Now()

	// Tunnels run with no idle deadline: a long-lived, idle HTTPS session is
	// expected and must not be killed by the request-level timeout.
	_ = client.SetDeadline(time.Time{})
	_ = origin.SetDeadline(time.Time{})

	relayErr := wire.Relay(client, origin)
	// wire.Relay does not report byte counts, so tunnels are recorded with
	// zero bytes in each direction; only the duration is measured.
	h.metrics.RecordTunnel(time.Since(start), 0, 0)
	if relayErr != nil {
		logEvent(h.id, EventTunnelClose, "reason", relayErr.Error())
		return
	}
	logEvent(h.id, EventTunnelClose)
}

// handleGet implements the GET branch: consult the Cache, then
// MISS -> forward+maybe-store, FRESH -> reply from cache,
// MUST_REVALIDATE -> conditional forward.
func (h *Handler) handleGet(client net.Conn, req *message.Request) {
	key := CanonicalKeyFromRequest(req)
	ctx := context.Background()

	switch h.cache.Classify(ctx, key) {
	case Miss:
		logEvent(h.id, EventNotInCache)
		resp, err := h.forward(req, nil)
		if err != nil {
			h.recordError(err)
			h.replyError(client, err)
			return
		}
		h.cache.Put(ctx, key, resp)
		h.reply(client, resp)

	case Fresh:
		logEvent(h.id, EventInCacheValid)
		cached, _ := h.cache.Get(key)
		h.replyFromCache(client, cached)

	case MustRevalidate:
		logEvent(h.id, EventInCacheRevalidate)
		h.revalidate(ctx, client, req, key)
	}
}

// revalidate forwards the original request with
// If-None-Match/If-Modified-Since added, then:
// 304 -> serve the cached body; 200 -> replace the entry if cacheable and
// forward the new response; anything else -> forward as-is, cache untouched.
func (h *Handler) revalidate(ctx context.Context, client net.Conn, req *message.Request, key string) {
	cached, ok := h.cache.Get(key)
	if !ok {
		// Entry vanished between Classify and Get (e.g. raced with another
		// worker); fall back to an unconditional forward.
		resp, err := h.forward(req, nil)
		if err != nil {
			h.recordError(err)
			h.replyError(client, err)
			return
		}
		h.cache.Put(ctx, key, resp)
		h.reply(client, resp)
		return
	}

	logEvent(h.id, EventRevalidating)
	condHeaders := map[string]string{}
	if cached.ETag != "" {
		condHeaders["If-None-Match"] = cached.ETag
	} else if cached.LastModified != "" {
		condHeaders["If-Modified-Since"] = cached.LastModified
	}

	resp, err := h.forward(req, condHeaders)
	if err != nil {
		h.recordError(err)
		h.replyError(client, err)
		return
	}

	switch resp.StatusCode {
	case 304:
		logEvent(h.id, EventNotModified)
		// A successful revalidation resets the freshness window, so the
		// entry is not revalidated again on every single request.
		h.cache.TouchInsertedAt(key)
		h.replyFromCache(client, cached)
	case 200:
		logEvent(h.id, EventModifiedReplyNew)
		h.cache.Replace(ctx, key, resp)
		h.reply(client, resp)
	default:
		h.reply(client, resp)
	}
}

// handleForwardOnly implements the POST branch: forward, reply, never
// consult or populate the Cache.
func (h *Handler) handleForwardOnly(client net.Conn, req *message.Request) {
	resp, err := h.forward(req, nil)
	if err != nil {
		h.recordError(err)
		h.replyError(client, err)
		return
	}
	h.reply(client, resp)
}

// forward resolves and dials the origin, rewrites the request line to
// origin-form, strips hop-by-hop headers, sends
// headers+body verbatim (plus any extra conditional headers for
// revalidation), and parses the full response.
func (h *Handler) forward(req *message.Request, extraHeaders map[string]string) (*message.Response, error) {
	host := hostPort(absoluteTarget(req), "80")
	logEvent(h.id, EventForwarding, "target", host)
	start := time.Now()

	resp, err := h.resilienceFor().Run(host, func() (*message.Response, error) {
		origin, dialErr := h.dialOrigin(host)
		if dialErr != nil {
			return nil, dialErr
		}
		defer origin.Close()
		h.setDeadline(origin)

		if _, writeErr := origin.Write(buildOriginRequest(req, extraHeaders)); writeErr != nil {
			return nil, proxyerr.Wrap(proxyerr.IOTimeout, "write to origin failed", writeErr)
		}

		return message.ParseResponse(bufio.NewReader(origin), GetLogger())
	})

	cacheStatus := "bypass"
	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}
	h.metrics.RecordForward(req.Method.String(), cacheStatus, statusCode, time.Since(start))
	return resp, err
}

func (h *Handler) resilienceFor() *Resilience {
	return h.resilience
}

func (h *Handler) dialOrigin(hostport string) (net.Conn, error) {
	conn, err := h.dial(context.Background(), "tcp", hostport)
	if err == nil {
		return conn, nil
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return nil, proxyerr.Wrap(proxyerr.ResolveFail, "dns lookup failed for "+hostport, dnsErr)
	}
	return nil, proxyerr.Wrap(proxyerr.ConnectFail, "connect failed to "+hostport, err)
}

// reply writes a freshly forwarded response to the client verbatim.
func (h *Handler) reply(client net.Conn, resp *message.Response) {
	logEvent(h.id, EventResponding, "status", resp.StatusCode)
	h.writeChunked(client, resp.Raw)
}

// replyFromCache writes the cached raw response bytes to the client in
// fixed-size chunks.
func (h *Handler) replyFromCache(client net.Conn, resp *message.Response) {
	logEvent(h.id, EventResponding, "status", resp.StatusCode, "source", "cache")
	h.writeChunked(client, resp.Raw)
}

const replyChunkSize = 32 * 1024

func (h *Handler) writeChunked(w net.Conn, raw []byte) {
	for len(raw) > 0 {
		n := replyChunkSize
		if n > len(raw) {
			n = len(raw)
		}
		if _, err := w.Write(raw[:n]); err != nil {
			return
		}
		raw = raw[n:]
	}
}

// buildOriginRequest rewrites req into origin-form and strips hop-by-hop
// headers, optionally layering in conditional revalidation headers.
func buildOriginRequest(req *message.Request, extraHeaders map[string]string) []byte {
	headers := req.Headers.Clone()
	headers.StripHopByHop()
	if len(req.Body) > 0 {
		// The parser buffered the whole body, dechunking it if the client
		// sent Transfer-Encoding, and the hop-by-hop strip above removed
		// that header; re-frame with the byte count actually being sent so
		// the origin can tell a body follows.
		headers.Set("Content-Length", strconv.Itoa(len(req.Body)))
	}
	for name, value := range extraHeaders {
		headers.Set(name, value)
	}

	var b strings.Builder
	b.WriteString(req.RawMethod)
	b.WriteByte(' ')
	b.WriteString(originFormTarget(absoluteTarget(req)))
	b.WriteString(" HTTP/1.1\r\n")
	headers.Each(func(name, value string) {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	})
	b.WriteString("\r\n")
	out := []byte(b.String())
	return append(out, req.Body...)
}

// absoluteTarget returns req.Target, synthesizing an absolute-form URI from
// the Host header when the client sent origin-form (a bare path), the same
// combination CanonicalKeyFromRequest applies for cache-key purposes.
func absoluteTarget(req *message.Request) string {
	target := req.Target
	if strings.Contains(target, "://") {
		return target
	}
	host := req.Headers.Get("Host")
	if host == "" {
		return target
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return "http://" + host + target
}

// originFormTarget strips scheme+authority from an absolute-form target,
// leaving only the path (+query).
func originFormTarget(target string) string {
	if !strings.Contains(target, "://") {
		return target
	}
	idx := strings.Index(target, "://")
	rest := target[idx+3:]
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		return rest[slash:]
	}
	return "/"
}

// hostPort extracts "host:port" from an absolute-form target or a bare
// authority, applying defaultPort when none is present.
func hostPort(target, defaultPort string) string {
	t := target
	if strings.Contains(t, "://") {
		idx := strings.Index(t, "://")
		t = t[idx+3:]
		if slash := strings.IndexByte(t, '/'); slash >= 0 {
			t = t[:slash]
		}
	}
	if !strings.Contains(t, ":") {
		t = t + ":" + defaultPort
	}
	return t
}
