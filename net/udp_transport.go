package net

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

// we need a buffer comfortably larger than any single Message encoding;
// UDP datagrams on loopback are well under this in practice.
const bufSize = 65507

// ErrTransportShutdown is returned when operations on a transport are
// invoked after it's been closed.
var ErrTransportShutdown = errors.New("transport shutdown")

// UDPTransport is a connectionless transport over a single bound UDP
// socket. Each inbound datagram is parsed into a Packet and pushed onto
// consumeCh for the node engine's single dispatch loop to read; framing
// and payload interpretation are the caller's responsibility — this layer
// hands over raw bytes without understanding them.
type UDPTransport struct {
	logger *logrus.Entry

	conn *net.UDPConn

	consumeCh chan Packet

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex
}

// NewUDPTransport binds a UDP socket on bindAddr ("host:port") and returns
// a transport ready for Listen.
func NewUDPTransport(bindAddr string, logger *logrus.Entry) (*UDPTransport, error) {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	addr, err := net.ResolveUDPAddr("udp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("resolving bind address %q: %w", bindAddr, err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("binding udp socket %q: %w", bindAddr, err)
	}

	return &UDPTransport{
		logger:     logger,
		conn:       conn,
		consumeCh:  make(chan Packet, 256),
		shutdownCh: make(chan struct{}),
	}, nil
}

// Listen starts the background reader goroutine. It is the only goroutine
// this transport runs; everything it reads is handed to consumeCh for the
// engine's single-threaded dispatch loop to process.
func (t *UDPTransport) Listen() error {
	go t.listen()
	return nil
}

func (t *UDPTransport) listen() {
	buf := make([]byte, bufSize)
	for {
		n, addr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-t.shutdownCh:
				return
			default:
				t.logger.WithError(err).Debug("udp read error")
				continue
			}
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])

		pkt := Packet{Payload: payload, Host: addr.IP.String(), Port: addr.Port}

		select {
		case t.consumeCh <- pkt:
		case <-t.shutdownCh:
			return
		}
	}
}

// Consumer implements Transport.
func (t *UDPTransport) Consumer() <-chan Packet {
	return t.consumeCh
}

// LocalAddr implements Transport.
func (t *UDPTransport) LocalAddr() string {
	return t.conn.LocalAddr().String()
}

// LocalPort implements Transport.
func (t *UDPTransport) LocalPort() int {
	return t.conn.LocalAddr().(*net.UDPAddr).Port
}

// SendTo implements Transport. The write is a single non-blocking socket
// call: there is no I/O wait here beyond the kernel handing the datagram
// to the network stack.
func (t *UDPTransport) SendTo(host string, port int, payload []byte) error {
	if t.IsShutdown() {
		return ErrTransportShutdown
	}

	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return fmt.Errorf("resolving destination %s:%d: %w", host, port, err)
	}

	_, err = t.conn.WriteToUDP(payload, addr)
	return err
}

// IsShutdown reports whether Close has been called.
func (t *UDPTransport) IsShutdown() bool {
	select {
	case <-t.shutdownCh:
		return true
	default:
		return false
	}
}

// Close implements Transport.
func (t *UDPTransport) Close() error {
	t.shutdownLock.Lock()
	defer t.shutdownLock.Unlock()

	if !t.shutdown {
		close(t.shutdownCh)
		t.shutdown = true
		return t.conn.Close()
	}
	return nil
}
