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

// Package cache implements the Dcache/Bcache probe-and-fill protocol
// (spec.md §4.4): a 2-way set-associative Dcache backed by a larger
// direct-mapped Bcache, connected through a narrow Probe/Read/Fill/Evict
// interface that hides line replacement from the Mbox core.
package cache

import "github.com/axp21264/mbox/internal/alpha"

const lineSize = alpha.CacheLineSize

// Line is one cache line: a data block plus the status bits spec.md §3
// lists for the Dcache ({valid, dirty, shared, modified, set_0_1, locked}).
// Bcache lines reuse the same shape; Bcache has no set_0_1/way concept so
// that field is simply left false there.
type Line struct {
	Valid    bool
	Dirty    bool
	Shared   bool
	Modified bool
	Locked   bool
	Set01    bool // which Dcache way this line lives in, diagnostic only

	Tag  uint64 // physical address, line-aligned
	Data []byte
}

// reset returns the line to its post-init state (spec.md §4.7: "zero all
// Dcache lines and set them Invalid").
func (l *Line) reset() {
	if l.Data != nil {
		freeLine(l.Data)
	}
	*l = Line{}
}

// fill installs tag/data into an (assumed already-evicted) line.
func (l *Line) fill(tag uint64, data []byte) {
	if l.Data == nil {
		l.Data = allocLine()
	}
	copy(l.Data, data)
	l.Tag = tag
	l.Valid = true
	l.Dirty = false
	l.Modified = false
}
