// Package node implements the node engine: the single-threaded dispatcher
// that binds the message codec, peer registry, message store, and routing
// table to a datagram transport, and runs the four periodic control
// loops: anti-entropy, ACK retry, peer health sweep, and route rumor.
package node

import (
	"fmt"

	"github.com/rajnipawar/SimpleChat-DSDV-Routing/common"
	"github.com/rajnipawar/SimpleChat-DSDV-Routing/config"
	"github.com/rajnipawar/SimpleChat-DSDV-Routing/message"
	netpkg "github.com/rajnipawar/SimpleChat-DSDV-Routing/net"
	"github.com/rajnipawar/SimpleChat-DSDV-Routing/peers"
	"github.com/rajnipawar/SimpleChat-DSDV-Routing/routing"
	"github.com/rajnipawar/SimpleChat-DSDV-Routing/store"
	"github.com/sirupsen/logrus"
)

// Engine owns the datagram endpoint and every piece of mutable protocol
// state. Everything on it is touched from exactly one goroutine, the
// dispatch loop run by ListenAndServe; there is no internal locking
// anywhere in the engine or the components it owns.
type Engine struct {
	selfID string
	conf   *config.Config
	logger *logrus.Entry

	trans    netpkg.Transport
	registry *peers.Registry
	store    *store.Store
	routes   *routing.Table
	observer Observer

	nextSeq     map[string]uint32
	pendingAcks map[string]*PendingMessage
	routeSeqNo  uint32

	aeTicker     *ticker
	ackTicker    *ticker
	healthTicker *ticker
	rumorTicker  *ticker

	shutdownCh chan struct{}
}

// NewEngine wires an Engine around a transport and a set of collaborators.
// The node's own id is derived from its bind port, "Node{port}", the same
// heuristic used to synthesize ids for peers it has never named directly.
func NewEngine(conf *config.Config, trans netpkg.Transport, observer Observer) *Engine {
	if observer == nil {
		observer = NopObserver{}
	}
	selfID := fmt.Sprintf("Node%d", conf.Port)
	logger := conf.Logger().WithField("component", "engine")

	e := &Engine{
		selfID:      selfID,
		conf:        conf,
		logger:      logger,
		trans:       trans,
		observer:    observer,
		nextSeq:     make(map[string]uint32),
		pendingAcks: make(map[string]*PendingMessage),
		routeSeqNo:  0,
		shutdownCh:  make(chan struct{}),
	}

	e.registry = peers.NewRegistry(selfID, e.handlePeerDiscovered, e.handlePeerStatusChanged, logger.WithField("component", "registry"))
	e.store = store.New()
	e.routes = routing.New(selfID, e.handleRouteInstalled, logger.WithField("component", "routing"))

	e.aeTicker = newTicker()
	e.ackTicker = newTicker()
	e.healthTicker = newTicker()
	e.rumorTicker = newTicker()

	return e
}

// SelfID returns this node's synthesized identity.
func (e *Engine) SelfID() string {
	return e.selfID
}

// Peers returns every peer this node has ever seen, active or not, for
// the debug HTTP service.
func (e *Engine) Peers() []*peers.Peer {
	return e.registry.ActivePeers()
}

// Routes returns a snapshot of the routing table, for the debug HTTP
// service.
func (e *Engine) Routes() map[string]routing.Route {
	return e.routes.Snapshot()
}

// Stats returns a small set of counters describing the engine's current
// state.
func (e *Engine) Stats() map[string]interface{} {
	return map[string]interface{}{
		"self_id":      e.selfID,
		"peers":        len(e.registry.ActivePeers()),
		"live_peers":   len(e.registry.LivePeers()),
		"routes":       len(e.routes.Snapshot()),
		"pending_acks": len(e.pendingAcks),
		"vector_clock": e.store.Clock(),
	}
}

func (e *Engine) handlePeerDiscovered(id, host string, port int) {
	e.logger.WithFields(logrus.Fields{"peer": id, "host": host, "port": port}).Debug("peer discovered")
	e.observer.OnPeerDiscovered(id, host, port)
}

func (e *Engine) handlePeerStatusChanged(id string, active bool) {
	e.logger.WithFields(logrus.Fields{"peer": id, "active": active}).Debug("peer status changed")
	e.observer.OnPeerStatusChanged(id, active)
}

// handleRouteInstalled fires only when routes.Update actually installs or
// replaces an entry, never on a stale/rejected rumor. A relay we haven't
// seen yet only becomes a known peer once we've actually adopted it as a
// next hop; registering it here and nowhere else keeps those two facts in
// lockstep.
func (e *Engine) handleRouteInstalled(destination string, r routing.Route) {
	e.logger.WithFields(logrus.Fields{
		"destination": destination,
		"next_hop":    r.NextHopID,
		"seq_no":      r.SeqNo,
		"is_direct":   r.IsDirect,
	}).Debug("routing table updated")

	if _, known := e.registry.Get(r.NextHopID); !known {
		e.registry.Add(r.NextHopID, r.NextHopIP, r.NextHopPort)
	}
}

// ListenAndServe starts the transport's reader (the socket itself is bound
// when the transport is constructed), starts the four periodic loops, and
// runs the single-threaded dispatch loop until Shutdown is called. It
// blocks; callers typically run it in its own goroutine.
func (e *Engine) ListenAndServe() error {
	if err := e.trans.Listen(); err != nil {
		return err
	}

	go e.aeTicker.run(e.conf.AEInterval, e.conf.AEInterval)
	go e.ackTicker.run(e.conf.AckCheckInterval, e.conf.AckCheckInterval)
	go e.healthTicker.run(e.conf.PeerHealthInterval, e.conf.PeerHealthInterval)
	go e.rumorTicker.run(e.conf.RouteRumorFirstTick, e.conf.RouteRumorInterval)

	e.dispatch()
	return nil
}

// dispatch is the cooperative loop: every case runs to completion before
// the next is considered, so the protocol state below it never observes
// a partial mutation.
func (e *Engine) dispatch() {
	for {
		select {
		case pkt := <-e.trans.Consumer():
			e.handleInbound(pkt)
		case <-e.aeTicker.tickCh:
			e.runAntiEntropy()
		case <-e.ackTicker.tickCh:
			e.runAckRetry()
		case <-e.healthTicker.tickCh:
			e.registry.Sweep(nowMs(), e.conf.PeerTimeout)
		case <-e.rumorTicker.tickCh:
			e.runRouteRumor()
		case <-e.shutdownCh:
			return
		}
	}
}

// Shutdown stops the dispatch loop, the four tickers, and the transport.
// Pending ACKs are discarded without notification.
func (e *Engine) Shutdown() {
	e.aeTicker.shutdown()
	e.ackTicker.shutdown()
	e.healthTicker.shutdown()
	e.rumorTicker.shutdown()
	close(e.shutdownCh)
	e.trans.Close()
}

// DiscoverPeers implements the startup peer-discovery step: an AE_REQUEST
// is probed at each candidate local port, skipping our own. The recipient
// has no registry entry for us yet, so this bypasses Send/sendDirect
// (which require a known peer id) and transmits straight to this node's
// own bind host at each port.
func (e *Engine) DiscoverPeers(ports []int) {
	for _, port := range ports {
		if port == e.conf.Port {
			continue
		}
		probe := &message.Message{
			Type:        message.AERequest,
			Origin:      e.selfID,
			Destination: "discovery",
			VectorClock: e.store.Clock(),
		}
		if err := e.transmit(probe, e.conf.BindHost, port); err != nil {
			e.logger.WithError(err).WithField("port", port).Debug("peer discovery probe failed")
		}
	}
}

// transmit encodes m and writes it to host:port. Every outbound datagram,
// whether locally originated or a reply/forward/replication, goes through
// this one chokepoint.
func (e *Engine) transmit(m *message.Message, host string, port int) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}
	return e.trans.SendTo(host, port, data)
}

// Send is the engine's public send path. Callers building a CHAT are
// expected to set Origin to this node's own id up front, since the
// validity check runs before the origin stamp. A CHAT's sequence number is
// allocated here and is checked as if already assigned; every other field
// is this engine's to fill in.
func (e *Engine) Send(m *message.Message) error {
	check := *m
	if check.Type == message.Chat {
		check.SequenceNumber = e.nextSeq[m.Destination] + 1
	}
	if m.Type != message.AERequest && !check.Valid() {
		return common.NewEngineErr(common.InvalidMessage, string(m.Type))
	}

	m.Origin = e.selfID

	if m.Type == message.Chat {
		seq := e.nextSeq[m.Destination] + 1
		e.nextSeq[m.Destination] = seq
		m.SequenceNumber = seq
		m.MessageID = message.ID(m.Origin, seq)
		e.store.UpdateClock(m.Origin, seq)
		e.store.Put(m)
	}

	if m.HopLimit == 0 {
		m.HopLimit = e.conf.HopLimit
	}
	m.VectorClock = e.store.Clock()

	if message.IsBroadcast(m.Destination) {
		for _, p := range e.registry.LivePeers() {
			if err := e.transmit(m, p.Host, p.Port); err != nil {
				e.logger.WithError(err).WithField("peer", p.ID).Debug("broadcast send failed")
			}
		}
		return nil
	}

	return e.sendDirect(m, m.Destination, true)
}

// sendDirect transmits m to peerID's registered address and, if trackAck
// and m is a CHAT, records a PendingMessage. An existing pending entry
// for the same message id is never overwritten, so a retry in flight
// can't be clobbered by a second call.
func (e *Engine) sendDirect(m *message.Message, peerID string, trackAck bool) error {
	p, ok := e.registry.Get(peerID)
	if !ok {
		return common.NewEngineErr(common.UnknownPeer, peerID)
	}

	if err := e.transmit(m, p.Host, p.Port); err != nil {
		return err
	}

	if trackAck && m.Type == message.Chat {
		if _, exists := e.pendingAcks[m.MessageID]; !exists {
			e.pendingAcks[m.MessageID] = &PendingMessage{
				Message:      m,
				TargetPeerID: peerID,
				SentTimeMs:   nowMs(),
				RetryCount:   0,
			}
		}
	}
	return nil
}

// handleInbound implements the receive path: parse, drop self-origin,
// touch the sender, dispatch by type.
func (e *Engine) handleInbound(pkt netpkg.Packet) {
	m, err := message.Decode(pkt.Payload)
	if err != nil {
		e.logger.WithError(err).Debug("dropping malformed datagram")
		return
	}

	// An ACK names the CHAT it acknowledges by that CHAT's origin, which is
	// this node for an ACK of our own message, so ACKs are exempt from the
	// self-origin drop.
	if m.Origin == e.selfID && m.Type != message.Ack {
		return
	}

	if m.Origin != "" {
		e.registry.Touch(m.Origin, pkt.Host, pkt.Port)
	}

	switch m.Type {
	case message.Chat:
		e.handleChat(m)
	case message.AERequest:
		e.handleAERequest(m, pkt.Host, pkt.Port)
	case message.AEResponse:
		e.handleAEResponse(m)
	case message.Ack:
		e.handleAck(m)
	case message.RouteRumor:
		e.handleRouteRumor(m, pkt.Host, pkt.Port)
	}
}

func (e *Engine) handleChat(m *message.Message) {
	forUs := m.Destination == e.selfID || message.IsBroadcast(m.Destination)
	alreadyHave := e.store.Has(m.MessageID)

	if !alreadyHave {
		e.store.Put(m)
		e.store.UpdateClock(m.Origin, m.SequenceNumber)
	}

	if forUs {
		suppressed := e.conf.NoForward && m.ChatText != ""
		if !suppressed && (message.IsBroadcast(m.Destination) || !alreadyHave) {
			e.observer.OnMessageReceived(*m)
		}

		if !alreadyHave && m.Destination == e.selfID {
			e.replyAck(m)
		}
		return
	}

	if !message.IsBroadcast(m.Destination) && !e.conf.NoForward {
		if err := e.forward(m); err != nil {
			e.logger.WithError(err).WithField("destination", m.Destination).Debug("forward failed")
		}
	}
}

// replyAck sends an ACK carrying chat's message id back to its origin.
// This reuses chat's own Origin/SequenceNumber rather than the acker's, so
// that the derived message_id matches the CHAT being acknowledged; it
// bypasses Send entirely since Send would stamp Origin to this node.
func (e *Engine) replyAck(chat *message.Message) {
	ack := &message.Message{
		Type:           message.Ack,
		Origin:         chat.Origin,
		Destination:    chat.Origin,
		SequenceNumber: chat.SequenceNumber,
		MessageID:      chat.MessageID,
	}
	if err := e.sendDirect(ack, chat.Origin, false); err != nil {
		e.logger.WithError(err).WithField("peer", chat.Origin).Debug("ack reply failed")
	}
}

// handleAERequest replies with our vector clock, then replicates every
// message the sender is missing, direct to its address.
func (e *Engine) handleAERequest(req *message.Message, senderHost string, senderPort int) {
	missing := e.store.MissingRelativeTo(req.VectorClock)

	response := &message.Message{
		Type:        message.AEResponse,
		Origin:      e.selfID,
		Destination: req.Origin,
		VectorClock: e.store.Clock(),
	}
	if err := e.transmit(response, senderHost, senderPort); err != nil {
		e.logger.WithError(err).Debug("ae_response send failed")
	}

	e.replicateMissing(missing, senderHost, senderPort)
}

// handleAEResponse replicates our own missing-relative-to-sender set back
// to the responder. This duplicates handleAERequest's replication in the
// opposite direction, deliberately: it trades bandwidth for faster
// convergence under asymmetric loss.
func (e *Engine) handleAEResponse(resp *message.Message) {
	missing := e.store.MissingRelativeTo(resp.VectorClock)

	peer, ok := e.registry.Get(resp.Origin)
	if !ok {
		return
	}
	e.replicateMissing(missing, peer.Host, peer.Port)
}

// replicateMissing transmits each message in missing as its own datagram,
// unaltered, with ACK tracking disabled: these are reconciliation copies,
// not new deliveries.
func (e *Engine) replicateMissing(missing []*message.Message, host string, port int) {
	if len(missing) > 0 {
		e.logger.WithFields(logrus.Fields{"count": len(missing), "host": host, "port": port}).Debug("anti-entropy replicating missing messages")
	}
	for _, m := range missing {
		if err := e.transmit(m, host, port); err != nil {
			e.logger.WithError(err).Debug("anti-entropy replication failed")
		}
	}
}

// handleAck removes the pending entry for message's id, if any. A missing
// key (late/duplicate ACK, or already given up) is not an error.
func (e *Engine) handleAck(m *message.Message) {
	delete(e.pendingAcks, m.MessageID)
}

// handleRouteRumor handles an inbound ROUTE_RUMOR: resolve the sender's
// node id, update the routing table per the DSDV rule, then re-gossip to
// one random active peer other than the sender.
func (e *Engine) handleRouteRumor(m *message.Message, senderHost string, senderPort int) {
	senderID, ok := e.registry.FindByAddress(senderHost, senderPort)
	if !ok {
		senderID = fmt.Sprintf("Node%d", senderPort)
	}

	nextHopIP := m.LastIP
	if nextHopIP == "" {
		nextHopIP = senderHost
	}
	nextHopPort := m.LastPort
	if nextHopPort == 0 {
		nextHopPort = senderPort
	}

	isDirect := m.Origin == senderID
	e.routes.Update(m.Origin, m.SequenceNumber, senderID, nextHopIP, nextHopPort, isDirect)

	e.forwardRumor(m, senderHost, senderPort)
}

// forwardRumor re-gossips an inbound rumor to one random active peer,
// excluding the address it arrived from, after rewriting last_ip/last_port
// to this node's own address so the next hop installs a direct route to us.
func (e *Engine) forwardRumor(m *message.Message, excludeHost string, excludePort int) {
	candidates := excludeAddr(e.registry.LivePeers(), excludeHost, excludePort)
	next := randomLivePeer(candidates)
	if next == nil {
		return
	}

	forwarded := *m
	forwarded.LastIP = e.conf.BindHost
	forwarded.LastPort = e.conf.Port

	if err := e.transmit(&forwarded, next.Host, next.Port); err != nil {
		e.logger.WithError(err).WithField("peer", next.ID).Debug("rumor forward failed")
	}
}

// forward implements hop-limited unicast forwarding: hop-limit check and
// decrement, route lookup, single transmission to the next hop. It never
// touches pendingAcks; end-to-end ACK is the ultimate destination's job.
func (e *Engine) forward(m *message.Message) error {
	if m.HopLimit == 0 {
		return common.NewEngineErr(common.HopLimitExhausted, m.MessageID)
	}
	m.HopLimit--

	route, ok := e.routes.Lookup(m.Destination)
	if !ok {
		return common.NewEngineErr(common.NoRoute, m.Destination)
	}

	return e.transmit(m, route.NextHopIP, route.NextHopPort)
}

// runAntiEntropy implements the anti-entropy loop: pick one live peer
// uniformly at random and send it an AE_REQUEST.
func (e *Engine) runAntiEntropy() {
	live := e.registry.LivePeers()
	if len(live) == 0 {
		return
	}
	target := randomLivePeer(live)
	req := &message.Message{Type: message.AERequest, Destination: target.ID}
	if err := e.Send(req); err != nil {
		e.logger.WithError(err).WithField("peer", target.ID).Debug("anti-entropy request failed")
	}
}

// runAckRetry implements the retry loop in two passes. The first pass walks
// pendingAcks, skipping entries whose ack timeout has not elapsed, giving up
// on (removing) those whose retries are exhausted, and collecting the rest;
// the second resends each collected id, re-checking that it still exists,
// since an ACK may have arrived while the first pass ran.
func (e *Engine) runAckRetry() {
	now := nowMs()
	timeout := e.conf.AckTimeout.Milliseconds()

	var toRetry []string
	for id, pending := range e.pendingAcks {
		if now-pending.SentTimeMs <= timeout {
			continue
		}
		if pending.RetryCount < e.conf.MaxRetries {
			toRetry = append(toRetry, id)
		} else {
			e.logger.WithField("message_id", id).Debug("ack retries exhausted, giving up")
			delete(e.pendingAcks, id)
		}
	}

	for _, id := range toRetry {
		pending, ok := e.pendingAcks[id]
		if !ok {
			continue
		}
		pending.RetryCount++
		pending.SentTimeMs = now
		if err := e.sendDirect(pending.Message, pending.TargetPeerID, false); err != nil {
			e.logger.WithError(err).WithField("message_id", id).Debug("ack retry send failed")
		}
	}
}

// runRouteRumor implements the route-rumor loop: increment our sequence
// number and broadcast a ROUTE_RUMOR with last_ip/last_port unset, so
// each recipient fills them in from the datagram's own source address on
// first handling.
func (e *Engine) runRouteRumor() {
	if len(e.registry.LivePeers()) == 0 {
		return
	}
	e.routeSeqNo++
	rumor := &message.Message{
		Type:           message.RouteRumor,
		Destination:    message.BroadcastDest,
		SequenceNumber: e.routeSeqNo,
	}
	if err := e.Send(rumor); err != nil {
		e.logger.WithError(err).Debug("route rumor broadcast failed")
	}
}
