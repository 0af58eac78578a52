/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package queue implements the Queue Slot Allocator (spec.md §4.1): it
// hands out LQ/SQ slot indices in program order and enforces queue
// capacity. The allocation counters are the only state it guards; slot
// payload and state-machine transitions belong to mbox/entry and are
// guarded by the separate mBoxMutex (spec.md §5 lock ordering:
// {lq,sq}Mutex -> mBoxMutex).
package queue

import "sync"

// Full is the slot index Allocate returns, with ok == false, when the
// queue has no free slot. Its value is ^uint32(0), not the queue length.
// Callers check ok and stall the issuing instruction.
const Full = ^uint32(0)

// Allocator hands out slot indices into a fixed-capacity array of length
// size, in program order. It is grounded on connstate's pollCache
// allocator (a mutex-protected, index-returning allocator over a fixed
// backing array) but adapted from a free-list to a monotonic
// wraparound counter: spec.md §4.1 allocates strictly in program order
// and reclaims lazily when the scheduler observes a terminal state, so
// there is no free-list to maintain here.
type Allocator struct {
	mu   sync.Mutex
	next uint32
	size uint32
}

// New returns an Allocator over a queue of the given size.
func New(size uint32) *Allocator {
	return &Allocator{size: size}
}

// Allocate scans for the next free slot in program order starting from
// the last allocation point and claims it, or returns Full if every slot
// is in use. isFree and claim are invoked under the allocator's lock, so
// that a free slot can never be observed and handed to two callers: the
// caller's claim callback should mark the slot Assigned (spec.md §4.1:
// "the allocator initializes the slot's state to Assigned") as part of
// the same critical section.
func (a *Allocator) Allocate(isFree func(slot uint32) bool, claim func(slot uint32)) (uint32, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := uint32(0); i < a.size; i++ {
		slot := (a.next + i) % a.size
		if isFree(slot) {
			a.next = (slot + 1) % a.size
			claim(slot)
			return slot, true
		}
	}
	return Full, false
}
