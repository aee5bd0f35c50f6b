// Package sparse implements a sparse set over uint64 ids: O(1) add,
// remove, and membership with dense iteration order.
package sparse

import (
	"fmt"

	"github.com/kamstrup/intmap"
)

// Set keeps members in a dense slice for iteration and maps each id to
// its dense slot in a side index. The index stores slot+1 so that a zero
// lookup unambiguously means "not a member", which also lets id 0 be
// stored like any other id.
type Set struct {
	dense []uint64
	index *intmap.Map[uint64, uint64]
}

// New returns an empty set.
func New() *Set {
	return &Set{
		dense: nil,
		index: intmap.New[uint64, uint64](64),
	}
}

// Len returns the number of members.
func (s *Set) Len() int {
	return len(s.dense)
}

// Member reports whether id is in the set.
func (s *Set) Member(id uint64) bool {
	slot, ok := s.index.Get(id)
	return ok && slot != 0
}

// Add inserts id. Adding an id that is already a member is a no-op.
func (s *Set) Add(id uint64) {
	if s.Member(id) {
		return
	}
	s.dense = append(s.dense, id)
	s.index.Put(id, uint64(len(s.dense))) // slot+1
}

// Remove deletes id by swapping it with the last dense element and
// truncating. Removing a non-member is a no-op. Membership order is not
// preserved across removals.
func (s *Set) Remove(id uint64) {
	slotPlusOne, ok := s.index.Get(id)
	if !ok || slotPlusOne == 0 {
		return
	}
	slot := slotPlusOne - 1
	if slot >= uint64(len(s.dense)) || s.dense[slot] != id {
		panic(fmt.Sprintf("sparse: index corruption for id %d", id))
	}
	last := uint64(len(s.dense) - 1)
	moved := s.dense[last]
	s.dense[slot] = moved
	s.dense = s.dense[:last]
	s.index.Del(id)
	if moved != id {
		s.index.Put(moved, slot+1)
	}
}

// Elements returns the members in dense order. The slice is a copy.
func (s *Set) Elements() []uint64 {
	out := make([]uint64, len(s.dense))
	copy(out, s.dense)
	return out
}

// Clear removes all members.
func (s *Set) Clear() {
	s.dense = nil
	s.index = intmap.New[uint64, uint64](64)
}
