// Package message defines the wire payload exchanged between SimpleChat
// nodes and its JSON codec.
package message

import (
	"encoding/json"
	"fmt"

	"github.com/rajnipawar/SimpleChat-DSDV-Routing/common"
)

// Type enumerates the five kinds of datagrams the engine exchanges.
type Type string

const (
	// Chat carries user-authored text, gossiped epidemically.
	Chat Type = "CHAT"
	// AERequest kicks off an anti-entropy exchange, carrying the
	// requester's vector clock.
	AERequest Type = "AE_REQUEST"
	// AEResponse answers an AERequest with the responder's vector clock.
	AEResponse Type = "AE_RESPONSE"
	// Ack acknowledges receipt of a unicast CHAT.
	Ack Type = "ACK"
	// RouteRumor advertises an origin's current DSDV route sequence
	// number.
	RouteRumor Type = "ROUTE_RUMOR"
)

// Broadcast destinations. Both literals mean "flood to every known peer".
const (
	BroadcastDest    = "broadcast"
	BroadcastDestAlt = "-1"
)

// DefaultHopLimit is the forwarding budget stamped on outbound messages
// that don't specify one.
const DefaultHopLimit = uint32(10)

// Message is the self-contained datagram payload exchanged between nodes.
// Every field round-trips through Encode/Decode; MessageID is derived, not
// transmitted, and recomputed on decode. An ACK reuses Origin/SequenceNumber
// to name the CHAT it acknowledges (Origin = that CHAT's origin, not the
// acker; Destination = the peer the ACK is being sent to) rather than
// carrying a second, independent id field.
type Message struct {
	Type           Type              `json:"type"`
	Origin         string            `json:"origin"`
	Destination    string            `json:"destination"`
	SequenceNumber uint32            `json:"sequence_number"`
	ChatText       string            `json:"chat_text"`
	HopLimit       uint32            `json:"hop_limit"`
	LastIP         string            `json:"last_ip,omitempty"`
	LastPort       int               `json:"last_port,omitempty"`
	VectorClock    map[string]uint32 `json:"vector_clock,omitempty"`

	// MessageID is derived as "{origin}_{sequence_number}" and is not part
	// of the wire encoding; Decode always recomputes it.
	MessageID string `json:"-"`
}

// ID computes the canonical message id for the given origin/sequence pair.
func ID(origin string, seq uint32) string {
	return fmt.Sprintf("%s_%d", origin, seq)
}

// IsBroadcast reports whether dest is one of the two broadcast literals.
func IsBroadcast(dest string) bool {
	return dest == BroadcastDest || dest == BroadcastDestAlt
}

// Valid reports whether m satisfies the validity rule: only CHAT has
// constraints (non-empty chat_text/origin/destination, sequence_number >=
// 1). Every other type, including AE_REQUEST, is valid regardless of
// content — this also lets the engine's Send path build a message first
// and stamp origin=self afterward without failing its own pre-stamp check.
func (m *Message) Valid() bool {
	if m.Type == Chat {
		return m.ChatText != "" && m.Origin != "" && m.Destination != "" && m.SequenceNumber >= 1
	}
	return true
}

// Encode serializes the message to a self-delimiting JSON record.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses the inverse of Encode. Malformed payloads return an error
// and must be dropped by the caller.
func Decode(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, common.NewEngineErr(common.MalformedDatagram, err.Error())
	}
	if m.Type == "" || m.Origin == "" && m.Type != AERequest {
		return nil, common.NewEngineErr(common.MalformedDatagram, "missing required field")
	}
	m.MessageID = ID(m.Origin, m.SequenceNumber)
	return &m, nil
}
