package node

import (
	"math/rand"

	"github.com/rajnipawar/SimpleChat-DSDV-Routing/peers"
)

// randomLivePeer returns a uniformly random peer from candidates, or nil
// if candidates is empty. It backs the anti-entropy peer pick and the
// route-rumor re-gossip neighbor pick.
func randomLivePeer(candidates []*peers.Peer) *peers.Peer {
	if len(candidates) == 0 {
		return nil
	}
	return candidates[rand.Intn(len(candidates))]
}

// excludeAddr filters out any peer whose host:port matches the given
// address. Used by route-rumor re-gossip to avoid bouncing the rumor
// straight back to the peer it arrived from.
func excludeAddr(candidates []*peers.Peer, host string, port int) []*peers.Peer {
	res := make([]*peers.Peer, 0, len(candidates))
	for _, p := range candidates {
		if p.Host == host && p.Port == port {
			continue
		}
		res = append(res, p)
	}
	return res
}
