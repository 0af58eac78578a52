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

// Package scheduler implements the Mbox Scheduler (spec.md §4.5): a
// single cooperative worker that owns the LQ/SQ arrays under one mutex,
// wakes on a condition variable, and walks LQ then SQ index order,
// advancing each entry's state machine one step per walk. On every wakeup
// it repeats the walk until a walk changes no entry's state.
//
// Per spec.md §9's design note, this is deliberately NOT a per-entry
// goroutine/task pool: the state machine steps are cheap, and a single
// worker is what keeps the ordering proofs in §5 tractable. The
// background worker itself is launched through concurrency/gopool, the
// teacher's panic-recovering goroutine launcher, configured for exactly
// one long-lived worker rather than its default growable pool.
package scheduler

import (
	"sync"

	"github.com/axp21264/mbox/concurrency/gopool"
	"github.com/axp21264/mbox/entry"
	"github.com/axp21264/mbox/forward"
	"github.com/axp21264/mbox/internal/alpha"
	"github.com/axp21264/mbox/maf"
)

// Translator resolves a virtual address to a physical one. dtb.DTB
// satisfies this directly.
type Translator interface {
	Translate(va uint64, asn uint8, mode alpha.AccessMode, kind alpha.AccessKind) (pa uint64, ok bool, fault alpha.FaultKind)
}

// CacheHierarchy is the narrow probe/read/fill surface spec.md §4.4
// requires of the Dcache/Bcache pair (cache.Hierarchy satisfies this).
type CacheHierarchy interface {
	DcacheProbe(pa uint64) (way int, hit bool)
	DcacheRead(pa uint64, way int, ln alpha.AccessWidth, dst []byte)
	DcacheWrite(pa uint64, way int, ln alpha.AccessWidth, src []byte)
	DcacheFillFrom(pa uint64, data []byte) (way int, victimTag uint64, victimDirty bool)
	BcacheProbe(pa uint64) bool
	BcacheRead(pa uint64) []byte
	IsMMIO(pa uint64) bool
}

// Notifier reports faults and retirement readiness to the Ibox
// (internal/testutils provides a double; a real integration wires the
// Ibox's actual event/retirement queue).
type Notifier interface {
	IboxEvent(h alpha.Handle, fault alpha.FaultKind, va uint64, opcode alpha.Opcode)
	Retire(h alpha.Handle)
}

// Scheduler drives the LQ/SQ state machines. All its exported methods
// that touch lq/sq are safe to call from any goroutine; the scheduler's
// own worker, and ReadMem/WriteMem/RetireStore/RevokeSlot/MAFComplete/
// IOWBComplete from the mbox package, all serialize through mu exactly as
// spec.md §5 describes for mBoxMutex.
type Scheduler struct {
	mu   sync.Mutex
	cond *sync.Cond

	pending bool
	stopped bool

	lq *[alpha.QueueLen]entry.LQEntry
	sq *[alpha.QueueLen]entry.SQEntry

	xlate Translator
	cache CacheHierarchy
	maf   *maf.Array
	iowb  *maf.Array
	notif Notifier

	// asn/mode are the translation context for the single hart this
	// Scheduler instance serves; spec.md's data model carries no richer
	// per-entry privilege context than this.
	asn  uint8
	mode alpha.AccessMode

	lockFlag     bool
	lockPhysAddr uint64
}

// Config bundles the collaborators a Scheduler needs.
type Config struct {
	LQ    *[alpha.QueueLen]entry.LQEntry
	SQ    *[alpha.QueueLen]entry.SQEntry
	Xlate Translator
	Cache CacheHierarchy
	MAF   *maf.Array
	IOWB  *maf.Array
	Notif Notifier
	ASN   uint8
	Mode  alpha.AccessMode
}

// New builds a Scheduler from cfg. Start must be called separately to
// launch its worker.
func New(cfg Config) *Scheduler {
	s := &Scheduler{
		lq: cfg.LQ, sq: cfg.SQ,
		xlate: cfg.Xlate, cache: cfg.Cache,
		maf: cfg.MAF, iowb: cfg.IOWB,
		notif: cfg.Notif,
		asn:   cfg.ASN, mode: cfg.Mode,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Start launches the single cooperative worker via gopool, mirroring the
// teacher's panic-recovering goroutine launch but intentionally never
// growing past one worker — there is exactly one call to gopool.Go here,
// ever, for the lifetime of a Scheduler.
func (s *Scheduler) Start() {
	pool := gopool.NewGoPool("mbox-scheduler", &gopool.Option{
		MaxIdleWorkers: 1,
		TaskChanBuffer: 1,
	})
	pool.Go(s.run)
}

// Stop releases the worker. Safe to call once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Signal wakes the worker after a producer (ReadMem, WriteMem,
// RetireStore, MAFComplete, IOWBComplete) has mutated queue state.
// Signal takes mu itself, so it must not be called with mu held; callers
// that also touch lq/sq use LockAnd instead.
func (s *Scheduler) Signal() {
	s.mu.Lock()
	s.pending = true
	s.cond.Signal()
	s.mu.Unlock()
}

// LockAnd runs f with mu held, then marks a pass pending and wakes the
// worker. Used by mbox's external API methods to publish/mutate an entry
// and signal atomically (spec.md §5: "signalled after ReadMem/WriteMem
// publishes an entry or after Cbox completes a miss").
func (s *Scheduler) LockAnd(f func()) {
	s.mu.Lock()
	f()
	s.pending = true
	s.cond.Signal()
	s.mu.Unlock()
}

// WithLock runs f with mu held but does not mark a pass pending — used
// by the slot allocator's isFree/claim callbacks (spec.md §5: "any read
// of an entry beyond its immutable identity requires mBoxMutex"), since
// an allocation alone (QNotInUse -> Assigned) carries no payload for the
// scheduler to act on yet.
func (s *Scheduler) WithLock(f func()) {
	s.mu.Lock()
	f()
	s.mu.Unlock()
}

func (s *Scheduler) run() {
	for {
		s.mu.Lock()
		for !s.pending && !s.stopped {
			s.cond.Wait()
		}
		if s.stopped {
			s.mu.Unlock()
			return
		}
		s.pending = false
		for s.passLocked() {
		}
		s.mu.Unlock()
	}
}

// passLocked performs one full LQ-then-SQ walk (spec.md §4.5) and reports
// whether any entry changed state. Called with mu held.
func (s *Scheduler) passLocked() (progressed bool) {
	for i := range s.lq {
		before := s.lq[i].State
		s.stepLQ(uint32(i))
		progressed = progressed || s.lq[i].State != before
	}
	for i := range s.sq {
		before := s.sq[i].State
		s.stepSQ(uint32(i))
		progressed = progressed || s.sq[i].State != before
	}
	return progressed
}

func (s *Scheduler) stepLQ(slot uint32) {
	e := &s.lq[slot]
	switch e.State {
	case entry.Initial:
		s.translateLQ(slot, e)
	case entry.LQReadPending:
		s.advanceLQReadPending(slot, e)
	case entry.LQComplete:
		if e.Instr.Ptr != nil {
			e.Instr.Ptr.SetState(alpha.WaitingRetirement)
		}
		s.notif.Retire(e.Instr)
		e.Reset()
	}
}

func (s *Scheduler) translateLQ(slot uint32, e *entry.LQEntry) {
	kind := alpha.AccessKindFor(e.Opcode)
	if e.Opcode.IsLockVariant() {
		kind = alpha.AccessRead
	}
	pa, ok, fault := s.xlate.Translate(e.VirtAddress, s.asn, s.mode, kind)
	if !ok {
		s.notif.IboxEvent(e.Instr, fault, e.VirtAddress, e.Opcode)
		e.Reset()
		return
	}
	e.PhysAddress = pa
	e.IOflag = s.cache.IsMMIO(pa)
	e.State = entry.LQReadPending
}

func (s *Scheduler) advanceLQReadPending(slot uint32, e *entry.LQEntry) {
	if e.IOflag {
		s.advanceLQIO(slot, e)
		return
	}

	if !e.LockCond {
		// load-lock forwarding is permitted but must still touch the
		// cache to register the lock (spec.md §4.3 edge case), so only
		// ordinary loads may complete purely from forwarding.
		res := forward.Resolve(s.sq, e.VirtAddress, e.Len, e.Instr.Ptr.UniqueID)
		if res.Blocked {
			return // stall; partial overlap must not touch the cache either
		}
		if res.Covered {
			s.completeLQ(e, res.Value)
			return
		}
	}

	s.probeCaches(slot, e)
}

func (s *Scheduler) probeCaches(slot uint32, e *entry.LQEntry) {
	pa := e.PhysAddress

	// An outstanding MAF request must be resolved (and its slot freed)
	// before re-probing, even if the Dcache would otherwise already hit —
	// otherwise the MAF entry would never be released (spec.md §4.4:
	// "the scheduler re-runs probing which will now hit").
	if e.PendingReqValid {
		me := s.maf.Get(e.PendingReq)
		if !me.Complete {
			return
		}
		s.maf.Release(e.PendingReq)
		e.PendingReqValid = false
	}

	if way, hit := s.cache.DcacheProbe(pa); hit {
		s.completeLQFromDcache(e, pa, way)
		return
	}

	if s.cache.BcacheProbe(pa) {
		data := s.cache.BcacheRead(pa)
		way, _, _ := s.cache.DcacheFillFrom(pa, data)
		s.completeLQFromDcache(e, pa, way)
		return
	}

	idx, ok := s.maf.Dispatch(maf.LDx, pa, slot, e.Len, nil)
	if ok {
		e.PendingReq = idx
		e.PendingReqValid = true
	}
	// else: MAF full, retried next pass
}

func (s *Scheduler) advanceLQIO(slot uint32, e *entry.LQEntry) {
	if !e.PendingReqValid {
		idx, ok := s.iowb.Dispatch(maf.LDx, e.PhysAddress, slot, e.Len, nil)
		if ok {
			e.PendingReq = idx
			e.PendingReqValid = true
		}
		return
	}
	ie := s.iowb.Get(e.PendingReq)
	if !ie.Complete {
		return
	}
	value := ie.ResponseValue()
	s.iowb.Release(e.PendingReq)
	e.PendingReqValid = false
	s.completeLQ(e, value)
}

func (s *Scheduler) completeLQFromDcache(e *entry.LQEntry, pa uint64, way int) {
	var buf [8]byte
	s.cache.DcacheRead(pa, way, e.Len, buf[:e.Len])
	var raw uint64
	for i := alpha.AccessWidth(0); i < e.Len; i++ {
		raw |= uint64(buf[i]) << (8 * i)
	}
	s.completeLQ(e, raw)
}

func (s *Scheduler) completeLQ(e *entry.LQEntry, raw uint64) {
	value := alpha.ExtendValue(raw, e.Len, e.Opcode.SignExtend())
	if e.Instr.Ptr != nil {
		e.Instr.Ptr.Destv = value
		if e.LockCond {
			e.Instr.Ptr.LockFlagPending = true
			e.Instr.Ptr.LockPhysAddrPending = e.PhysAddress
			e.Instr.Ptr.LockVirtAddrPending = e.VirtAddress
		}
	}
	e.Value = value
	e.State = entry.LQComplete
}

func (s *Scheduler) stepSQ(slot uint32) {
	e := &s.sq[slot]
	switch e.State {
	case entry.Initial:
		s.translateSQ(slot, e)
	case entry.SQReady:
		s.commitSQ(slot, e)
	case entry.SQComplete:
		if e.Instr.Ptr != nil {
			e.Instr.Ptr.SetState(alpha.WaitingRetirement)
		}
		s.notif.Retire(e.Instr)
		e.Reset()
	}
}

func (s *Scheduler) translateSQ(slot uint32, e *entry.SQEntry) {
	pa, ok, fault := s.xlate.Translate(e.VirtAddress, s.asn, s.mode, alpha.AccessWrite)
	if !ok {
		s.notif.IboxEvent(e.Instr, fault, e.VirtAddress, e.Opcode)
		e.Reset()
		return
	}
	e.PhysAddress = pa
	e.IOflag = s.cache.IsMMIO(pa)
	e.State = entry.SQWritePending
}

// RetireStore moves slot from SQWritePending to SQReady. Called by
// mbox.RetireStore under LockAnd.
func (s *Scheduler) RetireStore(slot uint32) {
	e := &s.sq[slot]
	if e.State == entry.SQWritePending {
		e.State = entry.SQReady
	}
}

func (s *Scheduler) commitSQ(slot uint32, e *entry.SQEntry) {
	if e.LockCond {
		s.commitStoreConditional(slot, e)
		return
	}

	var buf [8]byte
	for i := alpha.AccessWidth(0); i < e.Len; i++ {
		buf[i] = byte(e.Value >> (8 * i))
	}

	if e.IOflag {
		if !e.PendingReqValid {
			idx, ok := s.iowb.Dispatch(maf.STx, e.PhysAddress, slot, e.Len, buf[:e.Len])
			if ok {
				e.PendingReq = idx
				e.PendingReqValid = true
			}
			return
		}
		ie := s.iowb.Get(e.PendingReq)
		if !ie.Complete {
			return
		}
		s.iowb.Release(e.PendingReq)
		e.PendingReqValid = false
		e.State = entry.SQComplete
		return
	}

	way, hit := s.cache.DcacheProbe(e.PhysAddress)
	if !hit {
		way, _, _ = s.cache.DcacheFillFrom(e.PhysAddress, make([]byte, alpha.CacheLineSize))
	}
	s.cache.DcacheWrite(e.PhysAddress, way, e.Len, buf[:e.Len])
	e.State = entry.SQComplete
}

// commitStoreConditional implements spec.md §4.6: success iff lockFlag is
// set and the addressed line's lock hasn't been flipped off by an
// intervening coherence event; destv carries the boolean outcome and the
// lock flag is always cleared afterward.
func (s *Scheduler) commitStoreConditional(slot uint32, e *entry.SQEntry) {
	succeeds := s.lockFlag && s.lockPhysAddr == e.PhysAddress

	if succeeds {
		var buf [8]byte
		for i := alpha.AccessWidth(0); i < e.Len; i++ {
			buf[i] = byte(e.Value >> (8 * i))
		}
		way, hit := s.cache.DcacheProbe(e.PhysAddress)
		if !hit {
			way, _, _ = s.cache.DcacheFillFrom(e.PhysAddress, make([]byte, alpha.CacheLineSize))
		}
		s.cache.DcacheWrite(e.PhysAddress, way, e.Len, buf[:e.Len])
	}

	if e.Instr.Ptr != nil {
		if succeeds {
			e.Instr.Ptr.Destv = 1
		} else {
			e.Instr.Ptr.Destv = 0
		}
		e.Instr.Ptr.ClearLockPending = true
	}
	s.lockFlag = false
	e.State = entry.SQComplete
}

// SetLockFlag is called when a load-lock retires (spec.md §4.6: "When
// the load retires, the CPU's lockFlag becomes true").
func (s *Scheduler) SetLockFlag(pa uint64) {
	s.mu.Lock()
	s.lockFlag = true
	s.lockPhysAddr = pa
	s.mu.Unlock()
}

// InvalidateLock clears the lock flag in response to an observed
// coherence event on the locked line (external write winning the race
// against the pending store-conditional).
func (s *Scheduler) InvalidateLock(pa uint64) {
	s.mu.Lock()
	if s.lockPhysAddr == pa {
		s.lockFlag = false
	}
	s.mu.Unlock()
}

// RevokeSlotLQ/RevokeSlotSQ move an entry straight to QNotInUse with no
// side effects (spec.md §5 "Cancellation"), orphaning any outstanding
// MAF/IOWB reference so its eventual completion is ignored.
func (s *Scheduler) RevokeSlotLQ(slot uint32) {
	e := &s.lq[slot]
	if e.PendingReqValid {
		if e.IOflag {
			s.iowb.Orphan(e.PendingReq)
		} else {
			s.maf.Orphan(e.PendingReq)
		}
	}
	e.Reset()
}

func (s *Scheduler) RevokeSlotSQ(slot uint32) {
	e := &s.sq[slot]
	if e.PendingReqValid {
		s.iowb.Orphan(e.PendingReq)
	}
	e.Reset()
}
