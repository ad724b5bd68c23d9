// Package peers implements the peer registry: it tracks known peers by
// address, liveness, and last-seen time.
package peers

import "fmt"

// Peer is one entry in the registry: {peer_id, host, port, active,
// last_seen_ms}.
type Peer struct {
	ID         string `json:"peer_id"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Active     bool   `json:"active"`
	LastSeenMs int64  `json:"last_seen_ms"`
}

// Addr renders the peer's address in "host:port" form, used for logging.
func (p *Peer) Addr() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}
