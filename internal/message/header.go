// Package message defines the normalized Request/Response value types the
// wire parser produces, plus Cache-Control parsing.
package message

import "strings"

// Header is an ordered sequence of name/value pairs. Names are stored
// verbatim (to preserve exact casing for re-serialization) but compared
// case-insensitively, and duplicates are preserved in insertion order.
type Header struct {
	pairs [][2]string
}

// Add appends a (name, value) pair, preserving any existing pair with the
// same name.
func (h *Header) Add(name, value string) {
	h.pairs = append(h.pairs, [2]string{name, value})
}

// Get returns the value of the first pair whose name matches name
// case-insensitively, or "" if none match.
func (h *Header) Get(name string) string {
	for _, p := range h.pairs {
		if strings.EqualFold(p[0], name) {
			return p[1]
		}
	}
	return ""
}

// Values returns every value whose name matches name case-insensitively.
func (h *Header) Values(name string) []string {
	var out []string
	for _, p := range h.pairs {
		if strings.EqualFold(p[0], name) {
			out = append(out, p[1])
		}
	}
	return out
}

// Has reports whether any pair's name matches name case-insensitively.
func (h *Header) Has(name string) bool {
	for _, p := range h.pairs {
		if strings.EqualFold(p[0], name) {
			return true
		}
	}
	return false
}

// Del removes every pair whose name matches name case-insensitively.
func (h *Header) Del(name string) {
	out := h.pairs[:0]
	for _, p := range h.pairs {
		if !strings.EqualFold(p[0], name) {
			out = append(out, p)
		}
	}
	h.pairs = out
}

// Set replaces every pair matching name with a single (name, value) pair.
func (h *Header) Set(name, value string) {
	h.Del(name)
	h.Add(name, value)
}

// Len returns the number of pairs, including duplicates.
func (h *Header) Len() int { return len(h.pairs) }

// Each calls fn once per pair in insertion order.
func (h *Header) Each(fn func(name, value string)) {
	for _, p := range h.pairs {
		fn(p[0], p[1])
	}
}

// Clone returns a deep copy.
func (h *Header) Clone() Header {
	out := Header{pairs: make([][2]string, len(h.pairs))}
	copy(out.pairs, h.pairs)
	return out
}

var hopByHopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Transfer-Encoding",
	"Upgrade",
	"TE",
	"Trailer",
}

// StripHopByHop removes the headers that are meaningful only for a single
// transport hop, per the forwarding contract.
func (h *Header) StripHopByHop() {
	for _, name := range hopByHopHeaders {
		h.Del(name)
	}
}
