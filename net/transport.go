// Package net provides the connectionless datagram transport the engine
// binds to: there is no dial/pool step, because every send is a one-shot,
// unacknowledged-at-this-layer write. Reliability is built above this
// layer, in node.Engine.
package net

// Packet is one inbound datagram delivered to the Consumer channel.
type Packet struct {
	Payload []byte
	Host    string
	Port    int
}

// Transport provides an interface over a single connectionless endpoint
// that a node engine uses to send and receive datagrams.
type Transport interface {
	// Listen starts the background reader that feeds Consumer.
	Listen() error

	// Consumer returns the channel of inbound packets.
	Consumer() <-chan Packet

	// LocalAddr returns our local bind address.
	LocalAddr() string

	// LocalPort returns the bound port.
	LocalPort() int

	// SendTo writes payload to host:port. It does not block waiting for
	// any response; UDP has none at this layer.
	SendTo(host string, port int, payload []byte) error

	// Close permanently closes the transport, stopping the reader
	// goroutine and releasing the socket.
	Close() error
}
