// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package slab provides a slab allocator: a growable container that hands out
// stable integer keys for inserted values and reuses the slots of removed
// values in O(1) via an internal free list. It is intended as a building block
// for arena-style object pools and graph node/edge storage, where stable
// handles are preferable to pointers and where insert/remove churn would
// otherwise translate into allocator and GC pressure.
//
// # Representation
//
// A Slab[V] owns a single contiguous slice of slots. Each slot is either
// occupied, holding a live value, or vacant, holding the index of the next
// vacant slot. The vacant slots thus form a singly linked free list threaded
// through the storage itself, costing no memory beyond the slots. The head of
// the free list is tracked in the Slab; a head equal to the slice length is
// the empty-list sentinel, in which case insertion appends a new slot.
//
// Insertion pops the head of the free list (or appends at the boundary) and
// removal pushes the freed index onto it, so a freed slot is reused by the
// very next insert. Keys handed out by Insert remain valid until the value is
// removed; with no intervening removes, keys are the consecutive integers
// 0, 1, 2, ... in insertion order.
//
// Keys are not generational: after Remove(k) returns a value, a later Insert
// may hand out k again, and a stale use of k will silently address the new
// value. Callers that need stale-handle detection must layer a generation
// counter on top.
//
// Storage growth is geometric and, like all allocation performed by a Slab,
// goes through a configurable Allocator (see WithAllocator). Growth is the
// only failure mode: Insert, Reserve, Clone, and New with a capacity hint
// return the allocator's error verbatim and leave the slab untouched;
// Remove and Clear never fail.
//
// A Slab is NOT goroutine-safe.
package slab

import (
	"fmt"
	"strings"
)

// Slab growth doubles the backing capacity, with a floor to avoid a flurry of
// tiny reallocations for small slabs.
const minCapacity = 8

type slotState uint8

const (
	// slotVacant is the zero value so that freshly allocated storage is
	// vacant without initialization.
	slotVacant slotState = iota
	slotOccupied
)

// Slot is one storage cell of a Slab: either occupied, holding a value, or
// vacant, holding the index of the next vacant slot in the free list. Slot is
// exported only so that custom Allocators can allocate slot storage; its
// fields are not accessible.
type Slot[V any] struct {
	value V
	// next is the index of the next vacant slot when this slot is vacant.
	// The terminal link holds the append boundary (the slice length). The
	// boundary cannot move while any slot is vacant, since inserts drain
	// the free list before appending, so terminal links never go stale.
	next  int
	state slotState
}

// Slab is a growable container of values of type V, indexed by the int keys
// returned from Insert. The zero value is an empty slab using the default
// make-backed allocator.
type Slab[V any] struct {
	// The allocator backing slots. nil is treated as defaultAllocator so
	// that the zero-value Slab is usable.
	allocator Allocator[V]
	// slots holds one cell per key handed out so far. len(slots) is the
	// append boundary; cap(slots) is the reserved capacity.
	slots []Slot[V]
	// The number of occupied slots.
	used int
	// The index of the slot the next Insert will fill. Equal to len(slots)
	// when the free list is empty; otherwise slots[freeHead] is vacant.
	freeHead int
}

// New constructs a Slab with the specified initial capacity. If
// initialCapacity is 0 no storage is allocated and the slab will grow on the
// first insert. New fails only if the configured allocator fails to reserve
// the initial capacity.
func New[V any](initialCapacity int, options ...option[V]) (*Slab[V], error) {
	s := &Slab[V]{allocator: defaultAllocator[V]{}}
	for _, op := range options {
		op.apply(s)
	}

	if initialCapacity > 0 {
		storage, err := s.alloc().AllocSlots(initialCapacity)
		if err != nil {
			return nil, err
		}
		s.slots = storage[:0]
	}

	s.checkInvariants()
	return s, nil
}

// Insert stores value in the slab and returns a key that addresses it until
// it is removed. The freed slot most recently pushed onto the free list is
// reused; if none is free, storage grows by one slot at the append boundary.
// Insert fails only if that growth requires a reallocation and the allocator
// fails; the slab is unchanged on failure.
func (s *Slab[V]) Insert(value V) (int, error) {
	idx := s.freeHead
	if idx == len(s.slots) {
		// Free list is empty: append at the boundary.
		if len(s.slots) == cap(s.slots) {
			newCapacity := 2 * cap(s.slots)
			if newCapacity < minCapacity {
				newCapacity = minCapacity
			}
			if err := s.Reserve(newCapacity); err != nil {
				return 0, err
			}
		}
		s.slots = s.slots[:idx+1]
		s.slots[idx] = Slot[V]{value: value, state: slotOccupied}
		s.freeHead = len(s.slots)
	} else {
		// slots[freeHead] is vacant whenever freeHead is below the
		// boundary. Unlink it and fill it.
		s.freeHead = s.slots[idx].next
		s.slots[idx] = Slot[V]{value: value, state: slotOccupied}
	}
	s.used++
	s.checkInvariants()
	return idx, nil
}

// Remove removes the value at key from the slab and returns it, pushing the
// freed slot onto the head of the free list. The second result reports
// whether a value was present: removal of an out-of-range, never-used, or
// already-removed key returns ok=false and mutates nothing, so Remove is
// total over all of int and double removes are harmless.
//
// Remove does not invalidate key in any detectable way: a later Insert may
// return the same key for a different value. Continuing to use a removed key
// is a caller bug.
func (s *Slab[V]) Remove(key int) (value V, ok bool) {
	if key < 0 || key >= len(s.slots) {
		return value, false
	}
	slot := &s.slots[key]
	if slot.state != slotOccupied {
		return value, false
	}
	value = slot.value
	*slot = Slot[V]{next: s.freeHead, state: slotVacant}
	s.freeHead = key
	s.used--
	s.checkInvariants()
	return value, true
}

// Get returns a copy of the value at key, with ok=false if key does not
// address an occupied slot.
func (s *Slab[V]) Get(key int) (value V, ok bool) {
	if key < 0 || key >= len(s.slots) {
		return value, false
	}
	slot := &s.slots[key]
	if slot.state != slotOccupied {
		return value, false
	}
	return slot.value, true
}

// Contains reports whether key addresses an occupied slot.
func (s *Slab[V]) Contains(key int) bool {
	_, ok := s.Get(key)
	return ok
}

// Len returns the number of occupied slots.
func (s *Slab[V]) Len() int {
	return s.used
}

// Cap returns the number of slots the slab can hold without reallocating.
func (s *Slab[V]) Cap() int {
	return cap(s.slots)
}

// Reserve ensures the slab can grow to at least capacity total slots without
// further reallocation. Logical contents are unaffected. If a reallocation is
// needed the new storage comes from the configured allocator and the old
// storage is released to it; on allocator failure the slab is unchanged.
func (s *Slab[V]) Reserve(capacity int) error {
	if capacity <= cap(s.slots) {
		return nil
	}
	storage, err := s.alloc().AllocSlots(capacity)
	if err != nil {
		return err
	}
	n := copy(storage, s.slots)
	old := s.slots
	s.slots = storage[:n]
	if cap(old) > 0 {
		s.alloc().FreeSlots(old[:cap(old)])
	}
	s.checkInvariants()
	return nil
}

// Clone returns a deep, independent copy of the slab: identical occupied
// values, identical free-list topology, identical keys, and the same reserved
// capacity, allocated from the same allocator. Mutating the clone never
// affects the original and vice versa. Values are copied by assignment; if V
// contains pointers the copies share the referenced data.
func (s *Slab[V]) Clone() (*Slab[V], error) {
	c := &Slab[V]{
		allocator: s.allocator,
		used:      s.used,
		freeHead:  s.freeHead,
	}
	if cap(s.slots) > 0 {
		storage, err := s.alloc().AllocSlots(cap(s.slots))
		if err != nil {
			return nil, err
		}
		c.slots = storage[:len(s.slots)]
		copy(c.slots, s.slots)
	}
	c.checkInvariants()
	return c, nil
}

// Clear removes all values from the slab, resetting it to the freshly created
// state while retaining the reserved capacity for reuse: the next Insert
// returns key 0 and triggers no allocation. Clear never fails.
func (s *Slab[V]) Clear() {
	clear(s.slots)
	s.slots = s.slots[:0]
	s.used = 0
	s.freeHead = 0
	s.checkInvariants()
}

// Close closes the slab, releasing its storage back to the configured
// allocator. It is unnecessary to close a slab using the default allocator.
// It is invalid to use a Slab after it has been closed, though Close itself
// is idempotent.
func (s *Slab[V]) Close() {
	if cap(s.slots) > 0 {
		s.alloc().FreeSlots(s.slots[:cap(s.slots)])
	}
	s.slots = nil
	s.used = 0
	s.freeHead = 0
	s.allocator = nil
}

func (s *Slab[V]) alloc() Allocator[V] {
	if s.allocator == nil {
		return defaultAllocator[V]{}
	}
	return s.allocator
}

// checkInvariants walks the free list and verifies the structural invariants
// of the slab: every slot below the append boundary is either occupied or on
// the free list exactly once, the list has exactly len(slots)-used entries,
// every link is in bounds, and the occupied count matches.
func (s *Slab[V]) checkInvariants() {
	if invariants {
		onFreeList := make([]bool, len(s.slots))
		n := 0
		for idx := s.freeHead; idx != len(s.slots); idx = s.slots[idx].next {
			if idx < 0 || idx > len(s.slots) {
				panic(fmt.Sprintf("invariant failed: free-list link %d out of bounds\n%s",
					idx, s.debugString()))
			}
			if onFreeList[idx] {
				panic(fmt.Sprintf("invariant failed: free-list cycle through %d\n%s",
					idx, s.debugString()))
			}
			if s.slots[idx].state != slotVacant {
				panic(fmt.Sprintf("invariant failed: occupied slot %d on free list\n%s",
					idx, s.debugString()))
			}
			onFreeList[idx] = true
			n++
		}
		if n != len(s.slots)-s.used {
			panic(fmt.Sprintf("invariant failed: free list has %d entries, expected %d\n%s",
				n, len(s.slots)-s.used, s.debugString()))
		}

		occupied := 0
		for i := range s.slots {
			switch s.slots[i].state {
			case slotOccupied:
				occupied++
			case slotVacant:
				if !onFreeList[i] {
					panic(fmt.Sprintf("invariant failed: vacant slot %d unreachable from free list\n%s",
						i, s.debugString()))
				}
			}
		}
		if occupied != s.used {
			panic(fmt.Sprintf("invariant failed: found %d occupied slots, but used count is %d\n%s",
				occupied, s.used, s.debugString()))
		}
	}
}

func (s *Slab[V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "len=%d  cap=%d  used=%d  free-head=%d\n",
		len(s.slots), cap(s.slots), s.used, s.freeHead)
	for i := range s.slots {
		switch s.slots[i].state {
		case slotOccupied:
			fmt.Fprintf(&buf, "  %4d: %v\n", i, s.slots[i].value)
		default:
			fmt.Fprintf(&buf, "  %4d: vacant -> %d\n", i, s.slots[i].next)
		}
	}
	return buf.String()
}
