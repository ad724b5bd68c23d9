package message

import "testing"

// TestRoundTrip asserts every field, including hop_limit, last_ip,
// last_port and vector_clock, survives encode/decode.
func TestRoundTrip(t *testing.T) {
	m := &Message{
		Type:           Chat,
		Origin:         "NodeA",
		Destination:    "NodeB",
		SequenceNumber: 42,
		ChatText:       "Hello",
		HopLimit:       8,
		LastIP:         "10.0.0.1",
		LastPort:       8080,
		VectorClock:    map[string]uint32{"NodeA": 42},
	}

	data, err := m.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.Type != m.Type || got.Origin != m.Origin || got.Destination != m.Destination ||
		got.SequenceNumber != m.SequenceNumber || got.ChatText != m.ChatText ||
		got.HopLimit != m.HopLimit || got.LastIP != m.LastIP || got.LastPort != m.LastPort {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, m)
	}

	if got.VectorClock["NodeA"] != 42 {
		t.Fatalf("vector clock not preserved: %+v", got.VectorClock)
	}
}

// TestIDDerivation asserts message_id is always "{origin}_{seq}".
func TestIDDerivation(t *testing.T) {
	m := &Message{Type: Chat, Origin: "NodeA", Destination: "NodeB", SequenceNumber: 1, ChatText: "hi"}
	data, _ := m.Encode()
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.MessageID != "NodeA_1" {
		t.Fatalf("message id = %q, want NodeA_1", got.MessageID)
	}
}

func TestValid(t *testing.T) {
	cases := []struct {
		name string
		m    Message
		want bool
	}{
		{"valid chat", Message{Type: Chat, Origin: "A", Destination: "B", SequenceNumber: 1, ChatText: "hi"}, true},
		{"empty text", Message{Type: Chat, Origin: "A", Destination: "B", SequenceNumber: 1}, false},
		{"zero seq", Message{Type: Chat, Origin: "A", Destination: "B", SequenceNumber: 0, ChatText: "hi"}, false},
		{"ae request always valid", Message{Type: AERequest}, true},
		{"ack always valid regardless of content", Message{Type: Ack}, true},
		{"route rumor always valid regardless of content", Message{Type: RouteRumor}, true},
	}
	for _, c := range cases {
		if got := c.m.Valid(); got != c.want {
			t.Errorf("%s: Valid() = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := Decode([]byte("{not json")); err == nil {
		t.Fatalf("expected error decoding malformed payload")
	}
}

func TestIsBroadcast(t *testing.T) {
	if !IsBroadcast("broadcast") || !IsBroadcast("-1") {
		t.Fatalf("broadcast literals not recognized")
	}
	if IsBroadcast("NodeA") {
		t.Fatalf("NodeA incorrectly treated as broadcast")
	}
}
