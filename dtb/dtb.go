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

// Package dtb implements the data translation buffer (spec.md §3, §4):
// a fixed array of AXP_TB_LEN translation entries, keyed by virtual tag
// + ASN, filled by Ibox-driven PAL code. The Mbox only ever reads it.
package dtb

import (
	"github.com/axp21264/mbox/internal/alpha"
)

// Entry is one DTB translation. Grounded on spec.md §3's field list.
type Entry struct {
	VTag uint64
	ASN  uint8

	PA uint64

	// per-mode read/write enable, indexed by alpha.AccessMode.
	ReadEnable  [4]bool
	WriteEnable [4]bool

	FaultOnRead    bool
	FaultOnWrite   bool
	FaultOnExecute bool

	GlobalHint bool
	ASM        bool // address-space-match
	Valid      bool
}

// DTB is the fixed-size translation buffer.
type DTB struct {
	entries [alpha.TBLen]Entry
	index   tagTable
}

// New returns an empty, invalidated DTB.
func New() *DTB {
	d := &DTB{}
	d.index = newTagTable()
	return d
}

// Init clears all entries to invalid (spec.md §4.7).
func (d *DTB) Init() {
	for i := range d.entries {
		d.entries[i] = Entry{}
	}
	d.index.reset()
}

// Fill installs or replaces a translation entry. Called by PAL code via
// the Ibox; the Mbox itself never calls this.
func (d *DTB) Fill(slot int, e Entry) {
	if old := &d.entries[slot]; old.Valid {
		d.index.delete(old.VTag, old.ASN)
	}
	e.VTag &^= 0x1FFF
	e.Valid = true
	d.entries[slot] = e
	d.index.put(e.VTag, e.ASN, slot)
}

// Invalidate marks entry slot invalid and removes it from the index.
func (d *DTB) Invalidate(slot int) {
	e := &d.entries[slot]
	if e.Valid {
		d.index.delete(e.VTag, e.ASN)
	}
	*e = Entry{}
}

// Translate resolves a virtual address to a physical address, returning
// an explicit faultValid flag rather than overloading a zero physical
// address as "translation failed" (spec.md §9 open question (c): a
// valid translation can legitimately produce physical address 0).
//
// On success: (pa, true, alpha.NoFault).
// On miss/fault: (0, false, <fault kind>).
func (d *DTB) Translate(va uint64, asn uint8, mode alpha.AccessMode, kind alpha.AccessKind) (pa uint64, ok bool, fault alpha.FaultKind) {
	vtag := va &^ 0x1FFF
	slot, found := d.index.get(vtag, asn)
	if !found {
		// address-space-match entries serve every ASN, but the index is
		// keyed by the ASN they were filled under.
		for i := range d.entries {
			if c := &d.entries[i]; c.Valid && c.ASM && c.VTag == vtag {
				slot, found = i, true
				break
			}
		}
	}
	if !found {
		return 0, false, alpha.FaultTNV
	}
	e := &d.entries[slot]
	if !e.Valid {
		return 0, false, alpha.FaultTNV
	}
	if !e.ASM && e.ASN != asn {
		return 0, false, alpha.FaultTNV
	}

	switch kind {
	case alpha.AccessRead, alpha.AccessExecute:
		if e.FaultOnRead {
			return 0, false, alpha.FaultFOR
		}
		if !e.ReadEnable[mode] {
			return 0, false, alpha.FaultACV
		}
	case alpha.AccessWrite:
		if e.FaultOnWrite {
			return 0, false, alpha.FaultFOW
		}
		if !e.WriteEnable[mode] {
			return 0, false, alpha.FaultACV
		}
	}

	offset := va & 0x1FFF // 8KB page granularity
	return (e.PA &^ 0x1FFF) | offset, true, alpha.NoFault
}
