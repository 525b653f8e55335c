package channel

import (
	"sync"

	"github.com/holiman/uint256"
)

// Store is a concurrent mapping from channel_id to PaymentChannel, with
// fine-grained per-key locking so distinct channels progress independently
// while requests for the same channel serialize.
type Store struct {
	mapMu sync.Mutex
	keys  map[string]*storeEntry
}

type storeEntry struct {
	mu   sync.Mutex
	data PaymentChannel
	set  bool
}

// NewStore returns an empty channel store.
func NewStore() *Store {
	return &Store{keys: make(map[string]*storeEntry)}
}

func channelKey(channelID *uint256.Int) string {
	return channelID.Dec()
}

func (s *Store) entryFor(channelID *uint256.Int) *storeEntry {
	key := channelKey(channelID)
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	e, ok := s.keys[key]
	if !ok {
		e = &storeEntry{}
		s.keys[key] = e
	}
	return e
}

// Get returns a snapshot copy of the stored record for channelID, and
// whether it was present.
func (s *Store) Get(channelID *uint256.Int) (PaymentChannel, bool) {
	e := s.entryFor(channelID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.set {
		return PaymentChannel{}, false
	}
	return e.data.Clone(), true
}

// Upsert blindly inserts or replaces the record for channelID.
func (s *Store) Upsert(channelID *uint256.Int, value PaymentChannel) {
	e := s.entryFor(channelID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data = value.Clone()
	e.set = true
}

// WithLock runs fn under channelID's exclusive per-key guard, passing the
// current value (if any) and letting fn decide the next value. If fn
// returns ok=false, the store is left untouched — this is the single
// critical section the verification pipeline uses to enforce nonce and
// balance monotonicity across lookup, validate, and commit.
func (s *Store) WithLock(channelID *uint256.Int, fn func(current PaymentChannel, present bool) (next PaymentChannel, commit bool, err *AuthError)) *AuthError {
	e := s.entryFor(channelID)
	e.mu.Lock()
	defer e.mu.Unlock()

	var current PaymentChannel
	if e.set {
		current = e.data.Clone()
	}

	next, commit, err := fn(current, e.set)
	if err != nil {
		return err
	}
	if commit {
		e.data = next.Clone()
		e.set = true
	}
	return nil
}
