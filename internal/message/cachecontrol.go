package message

import (
	"log/slog"
	"strings"
	"time"
)

const (
	CacheControlMaxAge               = "max-age"
	CacheControlNoCache              = "no-cache"
	CacheControlNoStore              = "no-store"
	CacheControlPrivate              = "private"
	CacheControlPublic               = "public"
	CacheControlMustRevalidate       = "must-revalidate"
	CacheControlStaleWhileRevalidate = "stale-while-revalidate"
)

// CacheControl is a parsed set of Cache-Control directives. A directive with
// no value (e.g. "no-cache") maps to the empty string, which is still a
// distinct member from "directive absent".
type CacheControl map[string]string

// Has reports whether directive is present, regardless of value.
func (cc CacheControl) Has(directive string) bool {
	_, ok := cc[directive]
	return ok
}

// MaxAge returns the parsed max-age duration and whether it was present and
// well-formed.
func (cc CacheControl) MaxAge() (time.Duration, bool) {
	v, ok := cc[CacheControlMaxAge]
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(v + "s")
	if err != nil || d < 0 {
		return 0, false
	}
	return d, true
}

// ParseCacheControl parses a raw Cache-Control header value into a
// CacheControl set. Duplicate directives keep the first occurrence; the
// rest are logged and dropped, mirroring RFC 9111 Section 4.2.1 guidance on
// duplicate/conflicting directives.
func ParseCacheControl(raw string, log *slog.Logger) CacheControl {
	cc := CacheControl{}
	seen := map[string]bool{}

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var directive, value string
		if idx := strings.IndexByte(part, '='); idx >= 0 {
			directive = strings.TrimSpace(part[:idx])
			value = strings.Trim(strings.TrimSpace(part[idx+1:]), `"`)
		} else {
			directive = part
		}
		directive = strings.ToLower(directive)
		if seen[directive] {
			if log != nil {
				log.Warn("duplicate Cache-Control directive, keeping first value",
					"directive", directive, "ignored_value", value)
			}
			continue
		}
		seen[directive] = true
		cc[directive] = value
	}
	return cc
}
