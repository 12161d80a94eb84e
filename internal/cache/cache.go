// Package cache provides the TTL response cache consulted by the
// chat-completion processor: identical conversations sent to the same
// assistant reuse the previous completion until the entry expires.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
)

// ResponseCache is a TTL'd byte cache. Get returns (value, true) on a hit;
// a miss is not an error.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Message is one turn of a conversation, as sent to the completion vendor.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Key derives the cache key for a conversation: a SHA-256 over the assistant
// id and every message, with length prefixes so no two distinct
// conversations collapse onto the same digest input.
func Key(assistantID string, messages []Message) string {
	h := sha256.New()
	writeField(h, assistantID)
	for _, m := range messages {
		writeField(h, m.Role)
		writeField(h, m.Content)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(w io.Writer, s string) {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(s)))
	w.Write(lenBuf[:])
	w.Write([]byte(s))
}
