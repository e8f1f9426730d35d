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

package slab

// option provide an interface to do work on Slab while it is being created.
type option[V any] interface {
	apply(s *Slab[V])
}

// Allocator specifies an interface for allocating and releasing the slot
// storage used by a Slab. The default allocator utilizes Go's builtin make()
// and allows the GC to reclaim memory.
//
// Every operation that grows or duplicates storage (Insert at a full
// boundary, Reserve, Clone, New with a capacity hint) obtains new storage
// from AllocSlots and, when replacing existing storage, releases the old
// storage via FreeSlots. An error returned by AllocSlots is surfaced to the
// caller verbatim and the slab is left in its prior state.
//
// If the allocator is manually managing memory and requires that slots be
// freed then Slab.Close must be called in order to ensure FreeSlots is
// called.
type Allocator[V any] interface {
	// AllocSlots should return a slice equivalent to make([]Slot[V], n),
	// or an error if the allocation cannot be satisfied.
	AllocSlots(n int) ([]Slot[V], error)

	// FreeSlots can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocSlots.
	FreeSlots(v []Slot[V])
}

type defaultAllocator[V any] struct{}

func (defaultAllocator[V]) AllocSlots(n int) ([]Slot[V], error) {
	return make([]Slot[V], n), nil
}

func (defaultAllocator[V]) FreeSlots(v []Slot[V]) {
}

type allocatorOption[V any] struct {
	allocator Allocator[V]
}

func (op allocatorOption[V]) apply(s *Slab[V]) {
	s.allocator = op.allocator
}

// WithAllocator is an option for specifying the Allocator to use for a
// Slab[V].
func WithAllocator[V any](allocator Allocator[V]) option[V] {
	return allocatorOption[V]{allocator}
}
