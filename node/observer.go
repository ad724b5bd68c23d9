package node

import "github.com/rajnipawar/SimpleChat-DSDV-Routing/message"

// Observer is the interface the engine invokes to hand events to external
// collaborators: a UI, a history store, a peer-listing display. Delivery
// is one-directional: the engine calls out, the observer never calls back
// in.
//
// All three methods are invoked synchronously on the engine's single
// dispatch loop; an Observer must not block or call back into the engine
// from within one of these methods.
type Observer interface {
	// OnMessageReceived fires when a CHAT is delivered to this node,
	// either because it was addressed here or because it arrived as a
	// broadcast.
	OnMessageReceived(m message.Message)

	// OnPeerDiscovered fires the first time a peer id is seen, whether by
	// inbound datagram or by a route rumor naming a new next hop.
	OnPeerDiscovered(peerID, host string, port int)

	// OnPeerStatusChanged fires whenever a peer's active flag flips, in
	// either direction.
	OnPeerStatusChanged(peerID string, active bool)
}

// NopObserver implements Observer with no-op methods, used when the engine
// is run without a collaborator attached (e.g. in tests).
type NopObserver struct{}

func (NopObserver) OnMessageReceived(message.Message)              {}
func (NopObserver) OnPeerDiscovered(peerID, host string, port int) {}
func (NopObserver) OnPeerStatusChanged(peerID string, active bool) {}
