// Package store implements the message store and per-origin vector clock.
// Unlike an LRU-backed cache, this store never evicts: messages are
// replicated lazily and never deleted, so an unbounded map is the correct
// structure, not a simplification of one.
package store

import (
	"github.com/rajnipawar/SimpleChat-DSDV-Routing/message"
)

// Store holds every chat message this node has seen, indexed by message id,
// plus the per-origin vector clock derived from it.
type Store struct {
	byID  map[string]*message.Message
	clock map[string]uint32
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		byID:  make(map[string]*message.Message),
		clock: make(map[string]uint32),
	}
}

// Has reports whether a message with this id is already stored.
func (s *Store) Has(messageID string) bool {
	_, ok := s.byID[messageID]
	return ok
}

// Put stores m, keyed by its message id. It is idempotent: putting the same
// id twice leaves the store unchanged.
func (s *Store) Put(m *message.Message) {
	if _, ok := s.byID[m.MessageID]; ok {
		return
	}
	s.byID[m.MessageID] = m
}

// Get returns the stored message for id, if any.
func (s *Store) Get(messageID string) (*message.Message, bool) {
	m, ok := s.byID[messageID]
	return m, ok
}

// UpdateClock advances the vector clock entry for origin to the max of its
// current value and seq.
func (s *Store) UpdateClock(origin string, seq uint32) {
	if cur, ok := s.clock[origin]; !ok || seq > cur {
		s.clock[origin] = seq
	}
}

// Clock returns a snapshot copy of the current vector clock, safe for a
// caller to attach to an outbound message without risk of later mutation
// leaking back into the store's own clock.
func (s *Store) Clock() map[string]uint32 {
	snap := make(map[string]uint32, len(s.clock))
	for k, v := range s.clock {
		snap[k] = v
	}
	return snap
}

// MissingRelativeTo returns every stored message whose sequence number
// exceeds the corresponding entry in remoteClock. Origins absent from
// remoteClock are treated as having seen nothing. This is a linear scan of
// the store, acceptable because anti-entropy runs at a coarse cadence.
func (s *Store) MissingRelativeTo(remoteClock map[string]uint32) []*message.Message {
	var missing []*message.Message
	for _, m := range s.byID {
		if m.SequenceNumber > remoteClock[m.Origin] {
			missing = append(missing, m)
		}
	}
	return missing
}
