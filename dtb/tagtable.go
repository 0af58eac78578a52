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

package dtb

import (
	"encoding/binary"

	"github.com/axp21264/mbox/internal/alpha"
	"github.com/axp21264/mbox/internal/hash/maphash"
)

// tagTable is a GC-friendly, open-addressing index over the fixed DTB
// array, keyed by (virtual tag, ASN). It is grounded on
// container/strmap.StrMap's technique of hashing a key into a fixed
// table of slot indices, adapted from strmap's bulk
// load-once-then-immutable model to one that supports the DTB's
// individual Fill/Invalidate mutations: an open-addressing table with
// tombstones replaces strmap's sort-then-first-index trick, since the
// DTB is rewritten one PAL-code fill at a time, not rebuilt wholesale.
type tagTable struct {
	seed maphash.Seed
	// slot holds entry-array indices + 1; 0 means empty, -1 (stored as
	// tombstone marker below) means deleted-but-probed-through.
	slot []int32
	// vtag/asn hold the key stored at each occupied slot, so a probe can
	// step past slots held by other keys.
	vtag []uint64
	asn  []uint8
}

const tagTableEmpty = 0
const tagTableTombstone = -1

func newTagTable() tagTable {
	t := tagTable{seed: maphash.MakeSeed()}
	n := nextPow2(alpha.TBLen * 2)
	t.slot = make([]int32, n)
	t.vtag = make([]uint64, n)
	t.asn = make([]uint8, n)
	return t
}

func (t *tagTable) reset() {
	for i := range t.slot {
		t.slot[i] = tagTableEmpty
	}
}

func keyBytes(vtag uint64, asn uint8) [9]byte {
	var b [9]byte
	binary.LittleEndian.PutUint64(b[:8], vtag)
	b[8] = asn
	return b
}

func (t *tagTable) hashOf(vtag uint64, asn uint8) uint32 {
	kb := keyBytes(vtag, asn)
	return uint32(maphash.Bytes(t.seed, kb[:]))
}

func (t *tagTable) put(vtag uint64, asn uint8, entrySlot int) {
	mask := uint32(len(t.slot) - 1)
	h := t.hashOf(vtag, asn) & mask
	for i := uint32(0); i < uint32(len(t.slot)); i++ {
		idx := (h + i) & mask
		if t.slot[idx] == tagTableEmpty || t.slot[idx] == tagTableTombstone {
			t.slot[idx] = int32(entrySlot) + 1
			t.vtag[idx], t.asn[idx] = vtag, asn
			return
		}
	}
	// table full: shouldn't happen since it's sized 2x AXP_TB_LEN and
	// every entrySlot is unique, but fail safe by not indexing it —
	// Translate() falls back to a miss/fault rather than corrupting state.
}

func (t *tagTable) delete(vtag uint64, asn uint8) {
	mask := uint32(len(t.slot) - 1)
	h := t.hashOf(vtag, asn) & mask
	for i := uint32(0); i < uint32(len(t.slot)); i++ {
		idx := (h + i) & mask
		if t.slot[idx] == tagTableEmpty {
			return
		}
		if t.slot[idx] != tagTableTombstone && t.vtag[idx] == vtag && t.asn[idx] == asn {
			t.slot[idx] = tagTableTombstone
			return
		}
	}
}

func (t *tagTable) get(vtag uint64, asn uint8) (int, bool) {
	mask := uint32(len(t.slot) - 1)
	h := t.hashOf(vtag, asn) & mask
	for i := uint32(0); i < uint32(len(t.slot)); i++ {
		idx := (h + i) & mask
		v := t.slot[idx]
		if v == tagTableEmpty {
			return 0, false
		}
		if v != tagTableTombstone && t.vtag[idx] == vtag && t.asn[idx] == asn {
			return int(v - 1), true
		}
	}
	return 0, false
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
