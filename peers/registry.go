package peers

import (
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// Registry tracks every peer this node has seen, by peer id. It is owned
// exclusively by the node engine's single dispatch loop, so it carries
// no internal locking.
type Registry struct {
	selfID string
	byID   map[string]*Peer
	byAddr map[string]string // "host:port" -> peer id

	// onDiscover fires exactly once per peer id, the first time it is
	// added: a fresh inbound datagram or route rumor naming a peer we've
	// never touched before.
	onDiscover func(id, host string, port int)

	// onStatusChanged fires whenever the active flag flips, in either
	// direction.
	onStatusChanged func(id string, active bool)

	logger *logrus.Entry
}

// NewRegistry builds an empty registry for selfID. Either callback may be
// nil.
func NewRegistry(selfID string, onDiscover func(id, host string, port int), onStatusChanged func(id string, active bool), logger *logrus.Entry) *Registry {
	return &Registry{
		selfID:          selfID,
		byID:            make(map[string]*Peer),
		byAddr:          make(map[string]string),
		onDiscover:      onDiscover,
		onStatusChanged: onStatusChanged,
		logger:          logger,
	}
}

func addrKey(host string, port int) string {
	return host + ":" + strconv.Itoa(port)
}

// Add registers a peer by id/host/port. It is idempotent on peer id and
// refuses to add self. Fires onDiscover the first time peerID is seen,
// whether called directly (route-rumor next-hop discovery) or via Touch's
// first-sight path.
func (r *Registry) Add(peerID, host string, port int) *Peer {
	if peerID == r.selfID {
		return nil
	}
	if existing, ok := r.byID[peerID]; ok {
		return existing
	}
	p := &Peer{ID: peerID, Host: host, Port: port, Active: true, LastSeenMs: nowMs()}
	r.byID[peerID] = p
	r.byAddr[addrKey(host, port)] = peerID
	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{"peer": peerID, "addr": p.Addr()}).Debug("peer added")
	}
	if r.onDiscover != nil {
		r.onDiscover(peerID, host, port)
	}
	return p
}

// Touch updates last_seen for peerID, adding it first if unknown (which
// fires onDiscover via Add). A reactivation (inactive -> active) instead
// fires onStatusChanged(id, true). First sight is discovery, not a status
// change: the peer never held a prior "inactive" state to transition out of.
func (r *Registry) Touch(peerID, host string, port int) *Peer {
	if peerID == r.selfID {
		return nil
	}
	p, ok := r.byID[peerID]
	if !ok {
		return r.Add(peerID, host, port)
	}

	wasInactive := !p.Active
	p.Active = true
	p.LastSeenMs = nowMs()
	if host != "" {
		p.Host = host
	}
	if port != 0 {
		p.Port = port
	}
	if wasInactive && r.onStatusChanged != nil {
		r.onStatusChanged(peerID, true)
	}
	return p
}

// Sweep marks every peer inactive whose silence exceeds timeout, relative
// to now (milliseconds since epoch). It fires onStatusChanged(id, false)
// for each transition.
func (r *Registry) Sweep(now int64, timeout time.Duration) {
	limit := timeout.Milliseconds()
	for id, p := range r.byID {
		if !p.Active {
			continue
		}
		if now-p.LastSeenMs > limit {
			p.Active = false
			if r.logger != nil {
				r.logger.WithField("peer", id).Debug("peer timed out")
			}
			if r.onStatusChanged != nil {
				r.onStatusChanged(id, false)
			}
		}
	}
}

// FindByAddress returns the peer id registered at host:port, if any.
func (r *Registry) FindByAddress(host string, port int) (string, bool) {
	id, ok := r.byAddr[addrKey(host, port)]
	return id, ok
}

// Get returns the peer with the given id, if known.
func (r *Registry) Get(peerID string) (*Peer, bool) {
	p, ok := r.byID[peerID]
	return p, ok
}

// ActivePeers intentionally returns every known peer, not just the active
// ones, so manually-seeded peers never disappear from a status query. It
// is an accessor for external callers (the debug HTTP service, a future
// UI); the engine's own send, anti-entropy, and route-rumor loops use
// LivePeers instead, filtering on the active flag directly. Do not "fix"
// ActivePeers to filter by Active; that would just duplicate LivePeers.
func (r *Registry) ActivePeers() []*Peer {
	res := make([]*Peer, 0, len(r.byID))
	for _, p := range r.byID {
		res = append(res, p)
	}
	return res
}

// LivePeers returns only the peers currently marked active. This is what
// the protocol loops (broadcast send, anti-entropy peer pick, route-rumor
// fan-out and re-gossip) select from.
func (r *Registry) LivePeers() []*Peer {
	res := make([]*Peer, 0, len(r.byID))
	for _, p := range r.byID {
		if p.Active {
			res = append(res, p)
		}
	}
	return res
}

func nowMs() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}
