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

// Package mbox wires the Load Queue, Store Queue, DTB, Dcache/Bcache,
// Store Forwarding Engine, MAF/IOWB, and the cooperative scheduler into
// the single external surface (spec.md §6): GetLQSlot/GetSQSlot,
// ReadMem/WriteMem, RetireStore, RevokeSlot, MAFComplete/IOWBComplete.
package mbox

import (
	"errors"
	"fmt"

	"github.com/axp21264/mbox/cache"
	"github.com/axp21264/mbox/dtb"
	"github.com/axp21264/mbox/entry"
	"github.com/axp21264/mbox/internal/alpha"
	"github.com/axp21264/mbox/ipr"
	"github.com/axp21264/mbox/maf"
	"github.com/axp21264/mbox/queue"
	"github.com/axp21264/mbox/scheduler"
)

// Translator, CacheHierarchy, and Notifier are aliased from scheduler
// (which must define them, since mbox imports scheduler and the reverse
// would cycle) so a caller configuring a Mbox sees the documented
// mbox.* names from spec.md §9.
type (
	Translator     = scheduler.Translator
	CacheHierarchy = scheduler.CacheHierarchy
	Notifier       = scheduler.Notifier
)

// ErrNotifierRequired is returned by New when Config.Notifier is nil:
// the Mbox has no collaborator to report faults/retirements to.
var ErrNotifierRequired = errors.New("mbox: Config.Notifier is required")

// SlotKind distinguishes the LQ from the SQ for RevokeSlot (spec.md §6:
// "RevokeSlot(cpu, kind, slot)").
type SlotKind uint8

const (
	LQSlot SlotKind = iota
	SQSlot
)

// Config bundles the knobs a Mbox needs, in the shape of
// gopool.Option/gopool.DefaultOption: a plain struct plus a defaulting
// constructor, every field overridable.
type Config struct {
	// ASN/Mode are the translation context this Mbox's single hart runs
	// under (spec.md's data model carries no richer per-entry privilege
	// context than this).
	ASN  uint8
	Mode alpha.AccessMode

	// MMIOBase/MMIOLimit bound the physical address window classified as
	// IOflag (spec.md §3).
	MMIOBase  uint64
	MMIOLimit uint64

	// MAFSize/IOWBSize default to alpha.MAFLen/alpha.IOWBLen when zero.
	MAFSize  int
	IOWBSize int

	// Notifier is the Ibox collaborator faults and retirements report to.
	// Required.
	Notifier Notifier

	// Translator/Cache let a caller substitute its own DTB/cache
	// implementation (a test double, or a future real Ibox integration);
	// nil builds the in-package dtb.DTB / cache.Hierarchy.
	Translator Translator
	Cache      CacheHierarchy
}

// DefaultConfig returns a Config with every field defaulted except
// Notifier, which the caller must still supply.
func DefaultConfig() Config {
	return Config{
		Mode:      alpha.User,
		MMIOBase:  0xFFFFFFFF00000000,
		MMIOLimit: 0xFFFFFFFFFFFFFFFF,
		MAFSize:   alpha.MAFLen,
		IOWBSize:  alpha.IOWBLen,
	}
}

// Mbox is one CPU's memory pipeline core: the fixed LQ/SQ arrays, their
// allocators, the DTB/cache hierarchy (unless supplied externally), the
// MAF/IOWB arrays, and the scheduler that drives all of it.
type Mbox struct {
	lq [alpha.QueueLen]entry.LQEntry
	sq [alpha.QueueLen]entry.SQEntry

	lqAlloc *queue.Allocator
	sqAlloc *queue.Allocator

	ownedDTB    *dtb.DTB
	ownedCache  *cache.Hierarchy
	dtbFillNext int // round-robin slot cursor for MapIdentity

	mafArr  *maf.Array
	iowbArr *maf.Array

	sched *scheduler.Scheduler

	dcCtl   ipr.DcCtl
	altMode ipr.DTBAltMode
}

// New builds and starts a Mbox from cfg (spec.md §4.7 Mbox_Init). The
// only hard error case is a missing Notifier; resource allocation for
// the LQ/SQ/DTB/cache/MAF/IOWB arrays is all fixed-size and cannot fail.
func New(cfg Config) (*Mbox, error) {
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("mbox: init: %w", ErrNotifierRequired)
	}

	m := &Mbox{}

	xlate := cfg.Translator
	if xlate == nil {
		d := dtb.New()
		d.Init()
		m.ownedDTB = d
		xlate = d
	}

	cch := cfg.Cache
	if cch == nil {
		h := cache.NewHierarchy(cfg.MMIOBase, cfg.MMIOLimit)
		h.Init()
		m.ownedCache = h
		cch = h
	}

	mafSize, iowbSize := cfg.MAFSize, cfg.IOWBSize
	if mafSize == 0 {
		mafSize = alpha.MAFLen
	}
	if iowbSize == 0 {
		iowbSize = alpha.IOWBLen
	}
	m.mafArr = maf.NewArray(mafSize)
	m.iowbArr = maf.NewArray(iowbSize)

	m.lqAlloc = queue.New(alpha.QueueLen)
	m.sqAlloc = queue.New(alpha.QueueLen)

	m.dcCtl = ipr.DefaultDcCtl()
	m.altMode = ipr.DefaultDTBAltMode()

	m.sched = scheduler.New(scheduler.Config{
		LQ: &m.lq, SQ: &m.sq,
		Xlate: xlate, Cache: cch,
		MAF: m.mafArr, IOWB: m.iowbArr,
		Notif: cfg.Notifier,
		ASN:   cfg.ASN, Mode: cfg.Mode,
	})
	m.sched.Start()

	return m, nil
}

// Stop halts the scheduler's worker. Safe to call once, at shutdown.
func (m *Mbox) Stop() {
	m.sched.Stop()
}

// GetLQSlot reserves the next free LQ slot in program order, or returns
// (queue.Full, false) if the LQ is exhausted (spec.md §6's
// AXP_MBOX_QUEUE_LEN sentinel, carried here as the ok-bool idiom instead
// of a magic return value). isFree/claim run under the scheduler's mutex
// (spec.md §5 lock order {lq,sq}Mutex -> mBoxMutex: "any read of an
// entry beyond its immutable identity requires mBoxMutex"), nested
// inside the allocator's own counter lock.
func (m *Mbox) GetLQSlot() (uint32, bool) {
	return m.lqAlloc.Allocate(
		func(s uint32) (free bool) {
			m.sched.WithLock(func() { free = m.lq[s].State == entry.QNotInUse })
			return
		},
		func(s uint32) { m.sched.WithLock(func() { m.lq[s].State = entry.Assigned }) },
	)
}

// GetSQSlot reserves the next free SQ slot in program order.
func (m *Mbox) GetSQSlot() (uint32, bool) {
	return m.sqAlloc.Allocate(
		func(s uint32) (free bool) {
			m.sched.WithLock(func() { free = m.sq[s].State == entry.QNotInUse })
			return
		},
		func(s uint32) { m.sched.WithLock(func() { m.sq[s].State = entry.Assigned }) },
	)
}

// ReadMem publishes a load at the previously-reserved LQ slot (spec.md
// §4.2/§6) and wakes the scheduler.
func (m *Mbox) ReadMem(slot uint32, instr alpha.Handle, op alpha.Opcode, va uint64) {
	m.sched.LockAnd(func() {
		m.lq[slot].Publish(instr, op, va)
	})
}

// WriteMem publishes a store at the previously-reserved SQ slot.
func (m *Mbox) WriteMem(slot uint32, instr alpha.Handle, op alpha.Opcode, va uint64, value uint64) {
	m.sched.LockAnd(func() {
		m.sq[slot].Publish(instr, op, va, value)
	})
}

// RetireStore signals that the Ibox has retired the store at slot,
// allowing it to commit to the Dcache (SQWritePending -> SQReady,
// spec.md §4.2).
func (m *Mbox) RetireStore(slot uint32) {
	m.sched.LockAnd(func() {
		m.sched.RetireStore(slot)
	})
}

// RevokeSlot squashes the entry at slot in the given queue, yielding
// QNotInUse with no observable architectural effect (spec.md invariant
// #5). Any outstanding MAF/IOWB reference is orphaned, not cancelled —
// its eventual completion is simply ignored.
func (m *Mbox) RevokeSlot(kind SlotKind, slot uint32) {
	m.sched.LockAnd(func() {
		switch kind {
		case LQSlot:
			m.sched.RevokeSlotLQ(slot)
		case SQSlot:
			m.sched.RevokeSlotSQ(slot)
		}
	})
}

// MAFComplete is the Cbox's miss-fill completion callback (spec.md §6):
// fill data has already landed in the Dcache out of band; this marks the
// MAF entry complete and wakes the scheduler, which releases the slot and
// re-probes.
func (m *Mbox) MAFComplete(mafIndex uint32) {
	m.mafArr.Complete(mafIndex, 0)
	m.sched.Signal()
}

// IOWBComplete is the Cbox's I/O completion callback (spec.md §6): a
// store's write-acknowledge, or — carrying value — a load's fetched
// data (value is ignored for a store-kind entry).
func (m *Mbox) IOWBComplete(iowbIndex uint32, value uint64) {
	m.iowbArr.SetResponseValue(iowbIndex, value)
	m.iowbArr.Complete(iowbIndex, 0)
	m.sched.Signal()
}

// SetLockFlag records a successful load-lock (spec.md §4.6): called when
// the load-locked instruction retires.
func (m *Mbox) SetLockFlag(pa uint64) {
	m.sched.SetLockFlag(pa)
}

// InvalidateLock clears the lock flag in response to an observed
// coherence event on the locked line.
func (m *Mbox) InvalidateLock(pa uint64) {
	m.sched.InvalidateLock(pa)
}

// DcCtl returns the current dcCtl IPR value (spec.md §4.7 reset value:
// both Dcache sets enabled).
func (m *Mbox) DcCtl() ipr.DcCtl { return m.dcCtl }

// SetDcCtl installs a new dcCtl value, as PAL code does via HW_MTPR.
func (m *Mbox) SetDcCtl(v ipr.DcCtl) { m.dcCtl = v }

// DTBAltMode returns the current dtbAltMode IPR value (spec.md §4.7
// reset value: Kernel).
func (m *Mbox) DTBAltMode() ipr.DTBAltMode { return m.altMode }

// SetDTBAltMode installs a new dtbAltMode value, as PAL code does ahead
// of a HW_LD/HW_ST that must bypass the current access mode.
func (m *Mbox) SetDTBAltMode(v ipr.DTBAltMode) { m.altMode = v }

// ErrNoOwnedDTB is returned by MapIdentity when the Mbox was configured
// with an externally-supplied Translator instead of the in-package DTB.
var ErrNoOwnedDTB = errors.New("mbox: no owned DTB (Config.Translator was supplied)")

// MapIdentity installs a full-permission identity translation for va
// into the in-package DTB (PAL code's real equivalent fills dtbTag/
// dtbPte and issues a DTB fill instruction; this is cmd/mboxsim's stand-in
// for that path, since the Mbox core has no PAL decode of its own).
func (m *Mbox) MapIdentity(va uint64, asn uint8) error {
	if m.ownedDTB == nil {
		return ErrNoOwnedDTB
	}
	slot := m.dtbFillNext
	m.dtbFillNext = (m.dtbFillNext + 1) % alpha.TBLen
	m.ownedDTB.Fill(slot, dtb.Entry{
		VTag:        va,
		ASN:         asn,
		PA:          va,
		ReadEnable:  [4]bool{true, true, true, true},
		WriteEnable: [4]bool{true, true, true, true},
	})
	return nil
}
