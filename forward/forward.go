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

// Package forward implements the Store Forwarding Engine (spec.md §4.3):
// given a pending load, it selects the youngest older store that covers
// the load's address and width, or reports that the load must fall
// through to the cache probe (possibly because of a partial overlap that
// must itself suppress the cache probe).
package forward

import (
	"github.com/axp21264/mbox/entry"
	"github.com/axp21264/mbox/internal/alpha"
)

// Result reports the outcome of a forwarding attempt.
type Result struct {
	Covered bool   // a qualifying store was found; Value is authoritative
	Blocked bool   // a partial-overlap store was found; load must stall
	Value   uint64 // raw bytes from the selected store, low Len bytes valid
}

// Resolve scans sq for the forwarding source of a load at (va, ln) issued
// by instruction uniqueID, applying spec.md §4.3's algorithm: among all
// entries satisfying the coverage + age predicate, the one with the
// greatest uniqueID (the youngest older store) wins. A partial-overlap
// match anywhere in the queue takes priority over a cover match, since
// the load must stall rather than read a stale or blended value.
func Resolve(sq *[alpha.QueueLen]entry.SQEntry, va uint64, ln alpha.AccessWidth, loadUniqueID uint64) Result {
	var (
		bestUniqueID uint64
		bestValue    uint64
		found        bool
		blocked      bool
	)

	for i := range sq {
		s := &sq[i]
		if !s.State.ForwardEligible() {
			continue
		}
		if s.Instr.Ptr == nil || s.Instr.Ptr.UniqueID >= loadUniqueID {
			continue // not older
		}

		if s.Overlaps(va, ln) {
			blocked = true
			continue
		}
		if !s.Covers(va, ln) {
			continue
		}

		if !found || s.Instr.Ptr.UniqueID > bestUniqueID {
			found = true
			bestUniqueID = s.Instr.Ptr.UniqueID
			bestValue = s.Value
		}
	}

	if blocked {
		return Result{Blocked: true}
	}
	if !found {
		return Result{}
	}
	return Result{Covered: true, Value: maskLow(bestValue, ln)}
}

// maskLow truncates v to its low ln bytes. The forwarding engine copies
// low-order bytes of the store's value uniformly regardless of the
// store's own width (spec.md §9 open question (b) resolution, recorded in
// SPEC_FULL.md): a wider store forwarding to a narrower load simply
// drops the high bytes.
func maskLow(v uint64, ln alpha.AccessWidth) uint64 {
	if ln >= 8 {
		return v
	}
	return v & ((uint64(1) << (uint(ln) * 8)) - 1)
}
