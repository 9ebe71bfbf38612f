package cacheproxy

import (
	"log/slog"
	"sync"
)

var (
	logger     *slog.Logger
	loggerOnce sync.Once
)

// SetLogger sets a custom slog.Logger instance to be used by the cacheproxy
// package. If not set, the default slog logger is used.
func SetLogger(l *slog.Logger) {
	logger = l
}

// GetLogger returns the configured logger, defaulting to slog.Default().
func GetLogger() *slog.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = slog.Default()
		}
	})
	return logger
}

// Closed log events, per the wire-level logging contract: one line per
// event, prefixed by the request id.
const (
	EventNewRequest        = "new request"
	EventNotInCache        = "not in cache"
	EventInCacheValid      = "in cache, valid"
	EventInCacheRevalidate = "in cache, requires validation"
	EventRevalidating      = "revalidating"
	EventNotModified       = "not modified"
	EventModifiedReplyNew  = "modified, reply new"
	EventForwarding        = "forwarding"
	EventResponding        = "responding"
	EventTunnelOpen        = "tunnel open"
	EventTunnelClose       = "tunnel close"
	EventError             = "ERROR"
)

func logEvent(id int64, event string, args ...any) {
	attrs := make([]any, 0, len(args)+2)
	attrs = append(attrs, slog.Int64("id", id), slog.String("event", event))
	attrs = append(attrs, args...)
	GetLogger().Info(event, attrs...)
}
