// Package routing implements a DSDV destination-sequenced distance
// vector routing table.
package routing

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Route is one destination's routing entry: the next hop to reach it, the
// sequence number that installed it, and whether the next hop is the
// destination itself.
type Route struct {
	NextHopID   string `json:"next_hop_id"`
	NextHopIP   string `json:"next_hop_ip"`
	NextHopPort int    `json:"next_hop_port"`
	SeqNo       uint32 `json:"seq_no"`
	IsDirect    bool   `json:"is_direct"`
	LastUpdated int64  `json:"last_updated_ms"`
}

// Table is the destination -> Route map. It is owned exclusively by the
// node engine's single dispatch loop, so it carries no internal locking,
// mirroring the registry's concurrency model.
type Table struct {
	selfID string
	routes map[string]*Route

	// onInstall is invoked whenever an entry is installed or replaced,
	// never for an ignored update. It lets the engine react to an install
	// (trace it and register an unseen next hop as a peer); the table logs
	// the install itself as well.
	onInstall func(destination string, r Route)

	logger *logrus.Entry
}

// New returns an empty routing table for selfID.
func New(selfID string, onInstall func(destination string, r Route), logger *logrus.Entry) *Table {
	return &Table{
		selfID:    selfID,
		routes:    make(map[string]*Route),
		onInstall: onInstall,
		logger:    logger,
	}
}

// Update applies the DSDV update rule:
//  1. origin == self is a no-op: never install a route to self.
//  2. No existing entry: install.
//  3. seq > current.seq: install.
//  4. seq == current.seq && isDirect && !current.isDirect: install.
//  5. Otherwise: ignore.
func (t *Table) Update(origin string, seq uint32, nextHopID, nextHopIP string, nextHopPort int, isDirect bool) {
	if origin == t.selfID {
		return
	}

	cur, ok := t.routes[origin]

	install := !ok
	if ok {
		if seq > cur.SeqNo {
			install = true
		} else if seq == cur.SeqNo && isDirect && !cur.IsDirect {
			install = true
		}
	}

	if !install {
		return
	}

	r := &Route{
		NextHopID:   nextHopID,
		NextHopIP:   nextHopIP,
		NextHopPort: nextHopPort,
		SeqNo:       seq,
		IsDirect:    isDirect,
		LastUpdated: nowMs(),
	}
	t.routes[origin] = r

	if t.logger != nil {
		t.logger.WithFields(logrus.Fields{
			"destination": origin,
			"next_hop":    nextHopID,
			"seq_no":      seq,
			"is_direct":   isDirect,
		}).Debug("routing table updated")
	}
	if t.onInstall != nil {
		t.onInstall(origin, *r)
	}
}

// Lookup returns the route to destination, if one exists.
func (t *Table) Lookup(destination string) (Route, bool) {
	r, ok := t.routes[destination]
	if !ok {
		return Route{}, false
	}
	return *r, true
}

// Snapshot returns a copy of the full destination -> Route map, suitable
// for exposing through the debug HTTP service.
func (t *Table) Snapshot() map[string]Route {
	snap := make(map[string]Route, len(t.routes))
	for k, v := range t.routes {
		snap[k] = *v
	}
	return snap
}

func nowMs() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}
