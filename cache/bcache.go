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

import "github.com/axp21264/mbox/internal/alpha"

// bcacheEntries is a larger backing store than the Dcache, direct-mapped
// (spec.md §3: "Bcache is a larger, direct-mapped-or-associative backing
// cache keyed by physical address only").
const bcacheEntries = alpha.CacheEntries * 8

// Bcache is a single contiguous arena sliced into bcacheEntries fixed-size
// line regions, direct-index-addressed by physical address. It is
// grounded on unsafex/malloc's bitmap allocator in spirit — a flat arena
// carved into uniform blocks rather than one []byte per line — but drops
// the bitmap occupancy tracking and multi-block run search entirely: a
// direct-mapped cache has no allocation decision to make, the index for a
// given physical address is forced by the address itself, and occupancy
// is already tracked per-line by Line.Valid.
type Bcache struct {
	arena []byte
	lines []Line
}

// NewBcache allocates the backing arena and descriptor array.
func NewBcache() *Bcache {
	b := &Bcache{
		arena: make([]byte, bcacheEntries*lineSize),
		lines: make([]Line, bcacheEntries),
	}
	for i := range b.lines {
		b.lines[i].Data = b.arena[i*lineSize : (i+1)*lineSize]
	}
	return b
}

// Init invalidates every line without releasing the arena.
func (b *Bcache) Init() {
	for i := range b.lines {
		data := b.lines[i].Data
		for j := range data {
			data[j] = 0
		}
		b.lines[i] = Line{Data: data}
	}
}

func bcacheIndex(pa uint64) int {
	lineAddr := pa &^ (uint64(lineSize) - 1)
	return int((lineAddr / uint64(lineSize)) % uint64(bcacheEntries))
}

// Probe reports whether phys is resident in the Bcache (spec.md §4.4 step
// 2: "On Dcache miss, probe Bcache by phys").
func (b *Bcache) Probe(pa uint64) bool {
	l := &b.lines[bcacheIndex(pa)]
	return l.Valid && l.Tag == pa&^(uint64(lineSize)-1)
}

// Read returns the resident line's data block, for copying up into the
// Dcache on a Bcache hit.
func (b *Bcache) Read(pa uint64) []byte {
	return b.lines[bcacheIndex(pa)].Data
}

// Fill installs data for pa, evicting whatever line occupied that direct-
// mapped slot. Returns the victim's tag and dirty bit so the caller can
// decide whether a writeback to the system interface (Cbox) is owed.
func (b *Bcache) Fill(pa uint64, data []byte) (victimTag uint64, victimDirty bool) {
	idx := bcacheIndex(pa)
	l := &b.lines[idx]
	victimTag, victimDirty = l.Tag, l.Dirty
	wasValid := l.Valid
	copy(l.Data, data)
	l.Tag = pa &^ (uint64(lineSize) - 1)
	l.Valid = true
	l.Dirty = false
	if !wasValid {
		return 0, false
	}
	return victimTag, victimDirty
}

// MarkDirty flags the resident line at pa as holding a modification not
// yet reflected past the Bcache (Dcache dirty-eviction writeback target).
func (b *Bcache) MarkDirty(pa uint64, data []byte) {
	l := &b.lines[bcacheIndex(pa)]
	copy(l.Data, data)
	l.Dirty = true
}
