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

// Package alpha holds the shared constants and the in-flight instruction
// descriptor that the Mbox's Ebox/Ibox collaborators produce and consume.
// Only the fields the Mbox actually touches are modeled here; opcode
// semantics beyond access width/sign-extension and register rename are
// the Ibox/Ebox's concern.
package alpha

import "sync/atomic"

// AccessWidth is a load/store width in bytes, always one of 1, 2, 4, 8.
type AccessWidth uint8

const (
	Byte     AccessWidth = 1
	Word     AccessWidth = 2
	Longword AccessWidth = 4
	Quadword AccessWidth = 8
)

// AccessMode is the privilege level an access is made under, used to pick
// the DTB's per-mode read/write enable bits.
type AccessMode uint8

const (
	Kernel AccessMode = iota
	Exec
	Sup
	User
)

// AccessKind distinguishes a load from a store for DTB fault-on-read /
// fault-on-write checks.
type AccessKind uint8

const (
	AccessRead AccessKind = iota
	AccessWrite
	AccessExecute
)

// InstrState mirrors the subset of the Ibox's instruction lifecycle the
// Mbox reads or writes.
type InstrState uint8

const (
	Executing InstrState = iota
	WaitingForCompletion
	WaitingRetirement
	Retired
	Squashed
)

// FaultKind enumerates the translation/alignment faults the Mbox can
// raise against the Ibox.
type FaultKind uint8

const (
	NoFault FaultKind = iota
	FaultTNV
	FaultACV
	FaultFOR
	FaultFOW
	FaultUnaligned
)

// R31 is the Alpha integer zero/discard register. The Ebox has already
// converted stores/loads targeting it into no-ops or prefetch hints
// before anything reaches the Mbox (spec.md §4.3 edge case); the Mbox
// never allocates a queue entry for it.
const R31 = 31

// Instr is the instruction descriptor shared with the Ebox/Fbox/Ibox.
// It is owned by the Ibox's in-flight window; the Mbox only ever holds a
// non-owning Handle to it (see Handle below) so that squash/retire can
// reclaim it without racing a stale Mbox reference.
type Instr struct {
	Opcode   uint32
	PC       uint64
	UniqueID uint64 // monotonic, program-order; sole basis for age comparison

	DestReg int8 // R31 means "no destination"

	// Destv is the 64-bit destination value slot. The Mbox writes it for
	// loads (forwarded or cache-read value) and for store-conditional
	// (1 on success, 0 on failure).
	Destv uint64

	Disp int64

	state atomic.Uint32 // InstrState, atomic: read by the Ibox concurrently

	LockFlagPending     bool
	LockPhysAddrPending uint64
	LockVirtAddrPending uint64
	ClearLockPending    bool
}

// State returns the instruction's current lifecycle state.
func (in *Instr) State() InstrState {
	return InstrState(in.state.Load())
}

// SetState transitions the instruction's lifecycle state. The Mbox calls
// this once per queue entry, with WaitingRetirement, when it finalizes an
// entry in LQComplete/SQComplete; destv and the memory effect are already
// in place by then (spec.md invariant #4).
func (in *Instr) SetState(s InstrState) {
	in.state.Store(uint32(s))
}

// Handle is a non-owning, generation-counted reference from a queue entry
// to its instruction. Design note (spec.md §9): a raw pointer would let a
// squashed-then-reused Instr slot fool a late-arriving Mbox transition
// into touching the wrong instruction; Seq guards against that by
// comparing against the generation the entry was allocated under.
type Handle struct {
	Seq uint64
	Ptr *Instr
}

// Valid reports whether the handle still refers to the generation it was
// taken against. currentSeq is supplied by the Ibox's in-flight window
// (e.g. a per-slot counter bumped on every allocate/squash/retire).
func (h Handle) Valid(currentSeq uint64) bool {
	return h.Ptr != nil && h.Seq == currentSeq
}
