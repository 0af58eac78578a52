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

package forward

import (
	"testing"

	"github.com/axp21264/mbox/entry"
	"github.com/axp21264/mbox/internal/alpha"
	"github.com/stretchr/testify/assert"
)

func storeAt(uniqueID uint64, state entry.State, va uint64, ln alpha.AccessWidth, value uint64) entry.SQEntry {
	return entry.SQEntry{
		State:       state,
		VirtAddress: va,
		Len:         ln,
		Value:       value,
		Instr:       alpha.Handle{Seq: uniqueID, Ptr: &alpha.Instr{UniqueID: uniqueID}},
	}
}

func TestResolveNoQualifyingStoreFallsThrough(t *testing.T) {
	var sq [alpha.QueueLen]entry.SQEntry
	r := Resolve(&sq, 0x100, alpha.Quadword, 50)
	assert.False(t, r.Covered)
	assert.False(t, r.Blocked)
}

func TestResolveExactMatchForwards(t *testing.T) {
	var sq [alpha.QueueLen]entry.SQEntry
	sq[0] = storeAt(10, entry.SQWritePending, 0x100, alpha.Quadword, 0xDEADBEEF)

	r := Resolve(&sq, 0x100, alpha.Quadword, 50)
	assert.True(t, r.Covered)
	assert.Equal(t, uint64(0xDEADBEEF), r.Value)
}

func TestResolveYoungerStoreIgnored(t *testing.T) {
	var sq [alpha.QueueLen]entry.SQEntry
	sq[0] = storeAt(100, entry.SQWritePending, 0x100, alpha.Quadword, 0x1111)

	r := Resolve(&sq, 0x100, alpha.Quadword, 50)
	assert.False(t, r.Covered, "store with uniqueID >= load's must not forward")
}

func TestResolveSelectsYoungestOlderStore(t *testing.T) {
	var sq [alpha.QueueLen]entry.SQEntry
	sq[0] = storeAt(5, entry.SQWritePending, 0x100, alpha.Quadword, 0xAAAA)
	sq[1] = storeAt(20, entry.SQComplete, 0x100, alpha.Quadword, 0xBBBB)
	sq[2] = storeAt(12, entry.Initial, 0x100, alpha.Quadword, 0xCCCC)

	r := Resolve(&sq, 0x100, alpha.Quadword, 50)
	assert.True(t, r.Covered)
	assert.Equal(t, uint64(0xBBBB), r.Value, "uniqueID 20 is the youngest older store")
}

func TestResolvePartialOverlapBlocksRatherThanForwards(t *testing.T) {
	var sq [alpha.QueueLen]entry.SQEntry
	// store covers bytes [0x100, 0x104), load wants [0x102, 0x10A) -> overlap, not cover
	sq[0] = storeAt(10, entry.SQWritePending, 0x100, alpha.Longword, 0xFFFF)

	r := Resolve(&sq, 0x102, alpha.Quadword, 50)
	assert.True(t, r.Blocked)
	assert.False(t, r.Covered)
}

func TestResolveNarrowerStoreAtSameAddressDeclinesRatherThanBlocks(t *testing.T) {
	// spec.md §8 scenario 3: store byte at VA, load quadword at the same
	// VA. Forwarding declines (len not covering) and the load falls
	// through to the cache probe rather than stalling.
	var sq [alpha.QueueLen]entry.SQEntry
	sq[0] = storeAt(10, entry.SQWritePending, 0x100, alpha.Byte, 0xFF)

	r := Resolve(&sq, 0x100, alpha.Quadword, 50)
	assert.False(t, r.Covered)
	assert.False(t, r.Blocked, "a same-address narrower store declines rather than stalls")
}

func TestResolveMasksValueToLoadWidth(t *testing.T) {
	var sq [alpha.QueueLen]entry.SQEntry
	sq[0] = storeAt(10, entry.SQWritePending, 0x100, alpha.Quadword, 0x1122334455667788)

	r := Resolve(&sq, 0x100, alpha.Byte, 50)
	assert.True(t, r.Covered)
	assert.Equal(t, uint64(0x88), r.Value)
}

func TestResolveIgnoresNonForwardEligibleStates(t *testing.T) {
	var sq [alpha.QueueLen]entry.SQEntry
	sq[0] = storeAt(10, entry.SQReady, 0x100, alpha.Quadword, 0xABCD)

	r := Resolve(&sq, 0x100, alpha.Quadword, 50)
	assert.False(t, r.Covered, "SQReady has already committed/ordered past forwarding eligibility")
}
