package node

import (
	"time"

	"github.com/rajnipawar/SimpleChat-DSDV-Routing/message"
)

// PendingMessage tracks one unicast CHAT awaiting an ACK, keyed by the
// message's id in the engine's pendingAcks map.
type PendingMessage struct {
	Message      *message.Message
	TargetPeerID string
	SentTimeMs   int64
	RetryCount   int
}

func nowMs() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}
