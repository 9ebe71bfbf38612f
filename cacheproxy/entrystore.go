package cacheproxy

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/loomwright/httpproxy/internal/message"
)

// encodeEntry serializes an Entry into its persisted wire form:
// inserted_at (unix nanos), freshness_lifetime (nanos), then the exact raw
// response bytes used to rebuild the Response on load.
// The key itself is not encoded; it is the Store's own lookup key.
func encodeEntry(entry *Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, entry.InsertedAt.UnixNano()); err != nil {
		return nil, fmt.Errorf("encode inserted_at: %w", err)
	}
	if err := binary.Write(&buf, binary.BigEndian, int64(entry.FreshnessLifetime)); err != nil {
		return nil, fmt.Errorf("encode freshness_lifetime: %w", err)
	}
	buf.Write(entry.Response.Raw)
	return buf.Bytes(), nil
}

// decodeEntry parses the StoreEntry wire form back into an Entry, reparsing
// the raw response bytes through the same message parser used on the wire so
// the rehydrated Response carries its derived fields (ETag, CacheControl,
// etc.) rather than trusting stale serialized metadata.
func decodeEntry(key string, raw []byte) (*Entry, error) {
	if len(raw) < 16 {
		return nil, fmt.Errorf("store entry too short: %d bytes", len(raw))
	}
	insertedAtNanos := int64(binary.BigEndian.Uint64(raw[0:8]))
	lifetimeNanos := int64(binary.BigEndian.Uint64(raw[8:16]))
	respRaw := raw[16:]

	resp, err := message.ParseResponseBytes(respRaw, GetLogger())
	if err != nil {
		return nil, fmt.Errorf("decode store entry response: %w", err)
	}

	return &Entry{
		Key:               key,
		Response:          resp,
		InsertedAt:        time.Unix(0, insertedAtNanos),
		FreshnessLifetime: time.Duration(lifetimeNanos),
	}, nil
}
