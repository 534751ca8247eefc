package ws

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// ConnInfo captures the identity and tracing context of one connection,
// fixed at handshake time.
type ConnInfo struct {
	ConnID      string
	UserID      int64
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
