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

package entry

import "github.com/axp21264/mbox/internal/alpha"

// LQEntry is a load-queue slot (spec.md §3 "Queue entry (LQ or SQ)").
type LQEntry struct {
	State State

	VirtAddress uint64
	PhysAddress uint64 // meaningful from LQReadPending onwards
	Len         alpha.AccessWidth
	Value       uint64 // scratch for loads; final result is Instr.Destv

	Instr alpha.Handle

	IOflag   bool
	LockCond bool

	// Opcode is carried so the forwarding engine and cache probe know
	// sign-extension/alignment requirements without dereferencing Instr.
	Opcode alpha.Opcode

	// PendingReq tracks an outstanding MAF/IOWB index while the entry
	// waits on Cbox completion (spec.md §4.4 "leave L in LQReadPending").
	PendingReq      uint32
	PendingReqValid bool
}

// Reset clears an LQ slot back to QNotInUse. Called by the scheduler on
// retirement, translation fault and revocation.
func (e *LQEntry) Reset() {
	*e = LQEntry{State: QNotInUse}
}

// Publish transitions Assigned -> Initial on ReadMem (spec.md §4.2).
func (e *LQEntry) Publish(h alpha.Handle, op alpha.Opcode, va uint64) {
	assertState(e.State == Assigned, "Publish: LQ entry not Assigned")
	e.Instr = h
	e.Opcode = op
	e.VirtAddress = va
	e.Len = op.Width()
	e.LockCond = op.IsLockVariant()
	e.State = Initial
}

// PhysAddr returns the translated physical address. Valid from
// LQReadPending onwards.
func (e *LQEntry) PhysAddr() uint64 {
	assertState(e.State == LQReadPending || e.State == LQComplete,
		"PhysAddr: read before translation")
	return e.PhysAddress
}

// SQEntry is a store-queue slot.
type SQEntry struct {
	State State

	VirtAddress uint64
	PhysAddress uint64
	Len         alpha.AccessWidth
	Value       uint64 // the data to be stored

	Instr alpha.Handle

	IOflag   bool
	LockCond bool

	Opcode alpha.Opcode

	PendingReq      uint32
	PendingReqValid bool
}

// Reset clears an SQ slot back to QNotInUse.
func (e *SQEntry) Reset() {
	*e = SQEntry{State: QNotInUse}
}

// Publish transitions Assigned -> Initial on WriteMem (spec.md §4.2).
func (e *SQEntry) Publish(h alpha.Handle, op alpha.Opcode, va uint64, value uint64) {
	assertState(e.State == Assigned, "Publish: SQ entry not Assigned")
	e.Instr = h
	e.Opcode = op
	e.VirtAddress = va
	e.Len = op.Width()
	e.LockCond = op.IsLockVariant()
	e.Value = value
	e.State = Initial
}

// PhysAddr returns the translated physical address. Valid from
// SQWritePending onwards.
func (e *SQEntry) PhysAddr() uint64 {
	assertState(e.State == SQWritePending || e.State == SQReady || e.State == SQComplete,
		"PhysAddr: read before translation")
	return e.PhysAddress
}

// Covers reports whether this store entry (as a forwarding source) fully
// covers a load of width ln at address va — spec.md §4.3's coverage
// predicate, minus the age/state checks the forwarding engine applies
// separately.
func (e *SQEntry) Covers(va uint64, ln alpha.AccessWidth) bool {
	return e.VirtAddress == va && e.Len >= ln
}

// Overlaps reports whether the store's byte range intersects the load's
// byte range without fully covering it — spec.md §4.3's partial-overlap
// case, which must suppress both forwarding and the cache probe. A store
// that starts at the same address as the load (spec.md §8 scenario 3: a
// narrower store at the load's own address) is not ambiguous — it simply
// fails the coverage predicate and the load falls through to the cache
// probe, so that shape is excluded here rather than treated as a stall.
func (e *SQEntry) Overlaps(va uint64, ln alpha.AccessWidth) bool {
	if e.VirtAddress == va {
		return false
	}
	sStart, sEnd := e.VirtAddress, e.VirtAddress+uint64(e.Len)
	lStart, lEnd := va, va+uint64(ln)
	if sStart >= lEnd || lStart >= sEnd {
		return false // disjoint
	}
	return !e.Covers(va, ln)
}
