package node

import (
	"github.com/rajnipawar/SimpleChat-DSDV-Routing/message"
	netpkg "github.com/rajnipawar/SimpleChat-DSDV-Routing/net"
)

// sentPacket records one call to fakeTransport.SendTo, for assertions.
type sentPacket struct {
	Host    string
	Port    int
	Payload []byte
}

// fakeTransport is an in-memory netpkg.Transport, letting engine tests
// assert exactly what would have gone on the wire without binding a real
// socket.
type fakeTransport struct {
	consumeCh chan netpkg.Packet
	sent      []sentPacket
	closed    bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{consumeCh: make(chan netpkg.Packet, 64)}
}

func (f *fakeTransport) Listen() error                    { return nil }
func (f *fakeTransport) Consumer() <-chan netpkg.Packet    { return f.consumeCh }
func (f *fakeTransport) LocalAddr() string                { return "127.0.0.1:0" }
func (f *fakeTransport) LocalPort() int                    { return 0 }
func (f *fakeTransport) Close() error                      { f.closed = true; return nil }

func (f *fakeTransport) SendTo(host string, port int, payload []byte) error {
	f.sent = append(f.sent, sentPacket{Host: host, Port: port, Payload: payload})
	return nil
}

// netpkgPacket builds an inbound Packet for handleInbound tests.
func netpkgPacket(host string, port int, payload []byte) netpkg.Packet {
	return netpkg.Packet{Host: host, Port: port, Payload: payload}
}

// recordingObserver captures every callback the engine fires, for
// assertions in receive-path tests.
type recordingObserver struct {
	received   []string // chat_text of each OnMessageReceived call
	discovered []string
	statuses   []bool
}

func (r *recordingObserver) OnMessageReceived(m message.Message) {
	r.received = append(r.received, m.ChatText)
}

func (r *recordingObserver) OnPeerDiscovered(peerID, host string, port int) {
	r.discovered = append(r.discovered, peerID)
}

func (r *recordingObserver) OnPeerStatusChanged(peerID string, active bool) {
	r.statuses = append(r.statuses, active)
}
