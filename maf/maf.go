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

// Package maf implements the Miss Address File and I/O Write Buffer
// (spec.md §3, §4.4): bounded arrays of in-flight Cbox requests, each
// tracking the originating LQ/SQ slot so the scheduler can re-probe once
// the Cbox signals completion.
//
// The entry shape and lifecycle are grounded on internal/iouring's
// userData: a magic-tagged, sync.Pool-recycled struct carrying a
// buffered notify channel, reset on reuse rather than reallocated.
package maf

import (
	"sync"

	"github.com/bytedance/gopkg/lang/mcache"

	"github.com/axp21264/mbox/internal/alpha"
)

// Kind distinguishes a load miss from a store/write request.
type Kind uint8

const (
	LDx Kind = iota
	STx
)

const entryMagic = 0x4D41465F454E5452 // "MAF_ENTR"

// Entry is one MAF or IOWB slot (spec.md §3: "originating queue kind,
// physical address, owning LQ/SQ slot index, payload, length, a request
// code, a response code, and a completion flag").
type Entry struct {
	magic uint64

	InUse       bool
	Kind        Kind
	PhysAddress uint64
	Slot        uint32 // owning LQ/SQ slot; orphaned (see Orphan) on revoke
	Len         alpha.AccessWidth
	ReqCode     uint8
	RespCode    uint8
	Complete    bool
	Orphaned    bool

	// respValue carries an I/O read's returned data. The real Cbox path
	// writes this through SetResponseValue before calling Complete; a
	// store/write request never reads it.
	respValue uint64

	// payload is the store data for an IOWB write request, borrowed from
	// mcache for the lifetime of the in-flight request — grounded on
	// bufiox's Get/Put-around-a-byte-buffer pattern, since the payload
	// here is always small (<=8 bytes) and short-lived like bufiox's
	// scratch buffers.
	payload []byte

	notify chan struct{}
}

func (e *Entry) reset() {
	if e.payload != nil {
		mcache.Free(e.payload)
		e.payload = nil
	}
	if len(e.notify) > 0 {
		<-e.notify
	}
	*e = Entry{magic: entryMagic, notify: e.notify}
}

// IsValid reports whether this Entry was handed out by an Array (as
// opposed to a zero-value Entry the caller constructed by hand).
func (e *Entry) IsValid() bool { return e.magic == entryMagic }

// Payload returns the entry's store-data scratch buffer, valid for Kind
// == STx entries.
func (e *Entry) Payload() []byte { return e.payload }

// ResponseValue returns an I/O load's fetched data, valid once Complete
// is set for a Kind == LDx entry.
func (e *Entry) ResponseValue() uint64 { return e.respValue }

// Array is a bounded, pool-backed MAF or IOWB. Sized by the caller
// (alpha.MAFLen for the MAF, alpha.IOWBLen for the IOWB).
type Array struct {
	mu      sync.Mutex
	entries []Entry
}

// NewArray allocates an Array of the given size with every entry
// initialized to not-in-use.
func NewArray(size int) *Array {
	a := &Array{entries: make([]Entry, size)}
	for i := range a.entries {
		a.entries[i] = Entry{magic: entryMagic, notify: make(chan struct{}, 1)}
	}
	return a
}

// Dispatch claims the first free entry and records a miss/write request
// against it (spec.md §4.4: "allocate a MAF entry recording {kind=LDx,
// physAddress, lqSlot, len}"). Returns (index, false) if every entry is
// in flight — callers leave the issuing LQ/SQ entry pending and retry on
// the next scheduler pass.
func (a *Array) Dispatch(kind Kind, pa uint64, slot uint32, ln alpha.AccessWidth, data []byte) (uint32, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.entries {
		e := &a.entries[i]
		if e.InUse {
			continue
		}
		e.reset()
		e.InUse = true
		e.Kind = kind
		e.PhysAddress = pa
		e.Slot = slot
		e.Len = ln
		if len(data) > 0 {
			e.payload = mcache.Malloc(len(data))
			copy(e.payload, data)
		}
		return uint32(i), true
	}
	return uint32(len(a.entries)), false
}

// Complete marks idx's request as fulfilled and notifies any waiter
// (Cbox callback path — MAFComplete/IOWBComplete in the external
// interface, spec.md §6). An orphaned entry (its owning LQ/SQ slot was
// revoked before completion) is released immediately instead: nothing
// will ever probe it again, so it must not hold the slot forever
// (spec.md §5 "Cancellation": "its completion is dropped").
func (a *Array) Complete(idx uint32, respCode uint8) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e := &a.entries[idx]
	if !e.InUse {
		return
	}
	if e.Orphaned {
		e.reset()
		return
	}
	e.RespCode = respCode
	e.Complete = true
	select {
	case e.notify <- struct{}{}:
	default:
	}
}

// SetResponseValue records an I/O load's fetched data ahead of Complete.
func (a *Array) SetResponseValue(idx uint32, value uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries[idx].respValue = value
}

// Orphan marks idx's request as belonging to a revoked LQ/SQ slot
// (spec.md §5 "Cancellation": "any outstanding MAF/IOWB reference to
// that slot is marked orphaned and its completion is dropped"). A
// subsequent Complete resets the entry itself, without calling Release or
// setting Complete, so no result is left for the scheduler to see.
func (a *Array) Orphan(idx uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries[idx].Orphaned = true
}

// Release frees idx back to the pool of available entries. Called once
// the scheduler has consumed a completed (or orphaned) entry's result.
func (a *Array) Release(idx uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries[idx].reset()
}

// Get returns a read view of entry idx for the scheduler to inspect
// completion/orphan status. The returned pointer aliases live state and
// must only be read with the Mbox lock held.
func (a *Array) Get(idx uint32) *Entry {
	return &a.entries[idx]
}
