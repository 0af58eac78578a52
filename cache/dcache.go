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

package cache

import (
	"encoding/binary"

	"github.com/axp21264/mbox/container/ring"
	"github.com/axp21264/mbox/hash/xfnv"
	"github.com/axp21264/mbox/internal/alpha"
)

// Dcache is a 2-way set-associative cache of AXP_CACHE_ENTRIES sets
// (spec.md §3). Each set's two ways are stored in a ring.Ring[Line] —
// grounded on container/ring.Ring, the teacher's GC-friendly fixed-size
// ring — accessed by way index rather than walked as a ring, since a
// 2-way set has no meaningful "next" traversal; Ring is reused here purely
// for its single-allocation, pointer-stable backing array.
type Dcache struct {
	sets []*ring.Ring[Line]
}

// NewDcache builds an empty, invalid Dcache.
func NewDcache() *Dcache {
	d := &Dcache{sets: make([]*ring.Ring[Line], alpha.CacheEntries)}
	for i := range d.sets {
		d.sets[i] = ring.NewFromSlice(make([]Line, alpha.CacheWays))
	}
	return d
}

// Init clears every line to invalid (spec.md §4.7).
func (d *Dcache) Init() {
	for _, set := range d.sets {
		set.Do(func(l *Line) { l.reset() })
	}
}

func setIndex(pa uint64) int {
	lineAddr := pa &^ (uint64(lineSize) - 1)
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], lineAddr)
	return int(xfnv.Hash(b[:]) % uint64(alpha.CacheEntries))
}

// Probe reports whether phys is resident, and if so which way (spec.md
// §4.4 step 1: "Probe Dcache by (virt, phys)"; the virt half of that
// lookup is handled by callers via the DTB before reaching here — once
// translated, Dcache indexing is physically tagged like the real 21264).
func (d *Dcache) Probe(pa uint64) (way int, hit bool) {
	set := d.sets[setIndex(pa)]
	tag := pa &^ (uint64(lineSize) - 1)
	for i := 0; i < set.Len(); i++ {
		item, _ := set.Get(i)
		if item.Value().Valid && item.Value().Tag == tag {
			return i, true
		}
	}
	return 0, false
}

// Read copies ln bytes starting at the byte offset within the resident
// line at (pa, way) into dst. Caller must have already confirmed a hit.
func (d *Dcache) Read(pa uint64, way int, ln alpha.AccessWidth, dst []byte) {
	set := d.sets[setIndex(pa)]
	item, _ := set.Get(way)
	off := pa & (uint64(lineSize) - 1)
	copy(dst, item.Value().Data[off:off+uint64(ln)])
}

// Write stores ln bytes at the byte offset within the resident line at
// (pa, way), marking it dirty/modified. Used by SQReady->SQComplete commit
// (spec.md §4.2 SQ table).
func (d *Dcache) Write(pa uint64, way int, ln alpha.AccessWidth, src []byte) {
	set := d.sets[setIndex(pa)]
	item, _ := set.Get(way)
	l := item.Pointer()
	off := pa & (uint64(lineSize) - 1)
	copy(l.Data[off:off+uint64(ln)], src)
	l.Dirty = true
	l.Modified = true
}

// Fill installs data for pa into set, evicting the way chosen by the
// replacement policy (here: way 0 before way 1, i.e. fill-the-first-
// invalid-or-LRU-less way — spec.md explicitly places replacement policy
// internals out of scope, §1 "Explicitly out of scope"). Returns the
// victim line's tag and whether it requires Bcache/Cbox writeback
// (dirty eviction).
func (d *Dcache) Fill(pa uint64, data []byte) (way int, victimTag uint64, victimDirty bool) {
	set := d.sets[setIndex(pa)]
	tag := pa &^ (uint64(lineSize) - 1)

	for i := 0; i < set.Len(); i++ {
		item, _ := set.Get(i)
		if !item.Value().Valid {
			item.Pointer().fill(tag, data)
			item.Pointer().Set01 = i == 1
			return i, 0, false
		}
	}

	// every way occupied: evict way 0 (spec.md leaves the replacement
	// policy itself out of scope; a fixed victim way keeps the core
	// deterministic for testing).
	victim := set.Head()
	victimTag = victim.Value().Tag
	victimDirty = victim.Value().Dirty
	victim.Pointer().fill(tag, data)
	return 0, victimTag, victimDirty
}

// Evict invalidates the line at (pa, way) without writeback bookkeeping;
// used when a Bcache-level invalidation must propagate down.
func (d *Dcache) Evict(pa uint64, way int) {
	set := d.sets[setIndex(pa)]
	item, _ := set.Get(way)
	item.Pointer().reset()
}
