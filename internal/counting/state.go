package counting

import (
	"sort"

	"github.com/zzzrenn/HeadCountGuard/internal/geometry"
)

// State holds the per-track crossing state. Entries are owned exclusively
// by the StateStore; the engine mutates them during its synchronous frame
// pass and nothing else touches them.
type State struct {
	// Side is the last determinate side the track was observed on, or
	// geometry.SideUnknown before the first determinate observation.
	Side geometry.Side
	// LastPoint is the reference point from the most recent determinate
	// observation, in normalized coordinates. Valid only when HasPoint.
	LastPoint geometry.Point
	HasPoint  bool
	// HasCrossed records whether the most recent side transition was
	// confirmed by the path intersection test.
	HasCrossed bool
}

// StateStore maps live track ids to their crossing state. Eviction is
// driven solely by the tracker's lost-track notifications; the store never
// times entries out on its own, so the tracker's liveness signal stays the
// single source of truth.
type StateStore struct {
	states map[int]*State
}

// NewStateStore returns an empty store.
func NewStateStore() *StateStore {
	return &StateStore{states: make(map[int]*State)}
}

// GetOrCreate returns the state for the track id, creating a fresh
// unknown-side state on first observation.
func (s *StateStore) GetOrCreate(id int) *State {
	st, ok := s.states[id]
	if !ok {
		st = &State{Side: geometry.SideUnknown}
		s.states[id] = st
	}
	return st
}

// Evict discards the state for a dead track. Evicting an unknown id is a
// no-op. A later observation with the same id starts over as a new track.
func (s *StateStore) Evict(id int) {
	delete(s.states, id)
}

// LiveIDs returns the ids of all tracks with state, in ascending order.
func (s *StateStore) LiveIDs() []int {
	ids := make([]int, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Len returns the number of live tracks.
func (s *StateStore) Len() int {
	return len(s.states)
}
