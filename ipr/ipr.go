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

// Package ipr models the PAL-visible internal processor registers the
// Mbox exposes (spec.md §6: "bitfield layouts follow the 21264 HRM
// exactly"). Each register is a small struct with named bit-position
// constants and Pack/Unpack methods, the way protocol/thrift's
// msgVersionMask/msgTypeMask pair a shift/mask constant with the
// uint32 it's carved from, rather than reaching for a bitfield library
// the corpus never uses.
package ipr

import "github.com/axp21264/mbox/internal/alpha"

// DTBTag is the dtbTag0/dtbTag1 register pair: the virtual tag written
// by PAL code ahead of a DTB fill.
type DTBTag struct {
	VA uint64
}

func (r DTBTag) Pack() uint64     { return r.VA &^ 0x1FFF }
func (r *DTBTag) Unpack(v uint64) { r.VA = v &^ 0x1FFF }

// DTBPte is the dtbPte0/dtbPte1 register pair: the PTE fields PAL code
// stages before a DTB fill latches dtbTag+dtbPte into an entry.
const (
	ptePAShift   = 13
	ptePFNShift  = 32 // page frame number, bits 63:32
	pteFORShift  = 0
	pteFOWShift  = 1
	pteFOEShift  = 2
	pteGHShift   = 3
	pteASMShift  = 4
	pteKREShift  = 8
	pteEREShift  = 9
	pteSREShift  = 10
	pteUREShift  = 11
	pteKWEShift  = 12
	pteEWEShift  = 13
	pteSWEShift  = 14
	pteUWEShift  = 15
)

type DTBPte struct {
	PA                          uint64
	FOR, FOW, FOE               bool
	GH, ASM                     bool
	ReadEnable, WriteEnable     [4]bool // indexed by alpha.AccessMode
}

// Pack renders the PTE fields into the HRM's dtbPte bit layout.
func (r DTBPte) Pack() uint64 {
	var v uint64
	v |= (r.PA >> ptePAShift) << ptePFNShift
	v |= boolBit(r.FOR, pteFORShift)
	v |= boolBit(r.FOW, pteFOWShift)
	v |= boolBit(r.FOE, pteFOEShift)
	v |= boolBit(r.GH, pteGHShift)
	v |= boolBit(r.ASM, pteASMShift)
	v |= boolBit(r.ReadEnable[alpha.Kernel], pteKREShift)
	v |= boolBit(r.ReadEnable[alpha.Exec], pteEREShift)
	v |= boolBit(r.ReadEnable[alpha.Sup], pteSREShift)
	v |= boolBit(r.ReadEnable[alpha.User], pteUREShift)
	v |= boolBit(r.WriteEnable[alpha.Kernel], pteKWEShift)
	v |= boolBit(r.WriteEnable[alpha.Exec], pteEWEShift)
	v |= boolBit(r.WriteEnable[alpha.Sup], pteSWEShift)
	v |= boolBit(r.WriteEnable[alpha.User], pteUWEShift)
	return v
}

// Unpack reverses Pack.
func (r *DTBPte) Unpack(v uint64) {
	r.PA = (v >> ptePFNShift) << ptePAShift
	r.FOR = bitSet(v, pteFORShift)
	r.FOW = bitSet(v, pteFOWShift)
	r.FOE = bitSet(v, pteFOEShift)
	r.GH = bitSet(v, pteGHShift)
	r.ASM = bitSet(v, pteASMShift)
	r.ReadEnable[alpha.Kernel] = bitSet(v, pteKREShift)
	r.ReadEnable[alpha.Exec] = bitSet(v, pteEREShift)
	r.ReadEnable[alpha.Sup] = bitSet(v, pteSREShift)
	r.ReadEnable[alpha.User] = bitSet(v, pteUREShift)
	r.WriteEnable[alpha.Kernel] = bitSet(v, pteKWEShift)
	r.WriteEnable[alpha.Exec] = bitSet(v, pteEWEShift)
	r.WriteEnable[alpha.Sup] = bitSet(v, pteSWEShift)
	r.WriteEnable[alpha.User] = bitSet(v, pteUWEShift)
}

// DTBAltMode is the dtbAltMode register: PAL code's override of the
// current access mode for the next DTB lookup (HW_LD/HW_ST use this
// instead of the CPU's actual current mode).
type DTBAltMode struct {
	AltMode alpha.AccessMode
}

const altModeMask = 0x3

func (r DTBAltMode) Pack() uint64     { return uint64(r.AltMode) & altModeMask }
func (r *DTBAltMode) Unpack(v uint64) { r.AltMode = alpha.AccessMode(v & altModeMask) }

// DTBIs is the dtbIs0/dtbIs1 register pair: writing it invalidates a
// single DTB entry matching the written VA (PAL's selective-invalidate
// path, as opposed to dtbIa's invalidate-all).
type DTBIs struct {
	VA uint64
}

func (r DTBIs) Pack() uint64     { return r.VA &^ 0x1FFF }
func (r *DTBIs) Unpack(v uint64) { r.VA = v &^ 0x1FFF }

// DTBAsn is the dtbAsn0/dtbAsn1 register pair: the address space number
// PAL code stages ahead of a DTB fill or ASN-qualified invalidate.
type DTBAsn struct {
	ASN uint8
}

const asnMask = 0xFF

func (r DTBAsn) Pack() uint64     { return uint64(r.ASN) }
func (r *DTBAsn) Unpack(v uint64) { r.ASN = uint8(v & asnMask) }

// MMStat is mmStat: the last Dstream fault's cause, captured for PAL's
// fault handler to read back.
type MMStat struct {
	Fault   alpha.FaultKind
	Opcode  uint32
	WriteOp bool
}

const (
	mmStatFaultShift  = 0
	mmStatWROShift    = 8
	mmStatOpcodeShift = 16
	mmStatOpcodeMask  = 0x3F
)

func (r MMStat) Pack() uint64 {
	v := uint64(r.Fault) << mmStatFaultShift
	v |= boolBit(r.WriteOp, mmStatWROShift)
	v |= (uint64(r.Opcode) & mmStatOpcodeMask) << mmStatOpcodeShift
	return v
}

func (r *MMStat) Unpack(v uint64) {
	r.Fault = alpha.FaultKind(v >> mmStatFaultShift & 0xFF)
	r.WriteOp = bitSet(v, mmStatWROShift)
	r.Opcode = uint32(v>>mmStatOpcodeShift) & mmStatOpcodeMask
}

// MCtl is mCtl: Mbox-wide control bits PAL code writes during
// initialization (spec.md §4.7).
type MCtl struct {
	SpE   [3]bool // superpage enables, one per granularity
	UseVA bool    // true: use full 43-bit VA; false: use compatibility VA
}

const (
	mCtlSpE0Shift  = 1
	mCtlSpE1Shift  = 2
	mCtlSpE2Shift  = 3
	mCtlUseVAShift = 0
)

func (r MCtl) Pack() uint64 {
	v := boolBit(r.UseVA, mCtlUseVAShift)
	v |= boolBit(r.SpE[0], mCtlSpE0Shift)
	v |= boolBit(r.SpE[1], mCtlSpE1Shift)
	v |= boolBit(r.SpE[2], mCtlSpE2Shift)
	return v
}

func (r *MCtl) Unpack(v uint64) {
	r.UseVA = bitSet(v, mCtlUseVAShift)
	r.SpE[0] = bitSet(v, mCtlSpE0Shift)
	r.SpE[1] = bitSet(v, mCtlSpE1Shift)
	r.SpE[2] = bitSet(v, mCtlSpE2Shift)
}

// DcCtl is dcCtl: Dcache control bits. SetEn defaults to 3 (both sets
// enabled) on reset per spec.md §4.7.
type DcCtl struct {
	SetEn     uint8 // bit0: set 0 enabled, bit1: set 1 enabled
	DCacheEn  bool
}

const (
	dcCtlSetEnShift = 0
	dcCtlSetEnMask  = 0x3
	dcCtlEnShift    = 2
)

func (r DcCtl) Pack() uint64 {
	v := (uint64(r.SetEn) & dcCtlSetEnMask) << dcCtlSetEnShift
	v |= boolBit(r.DCacheEn, dcCtlEnShift)
	return v
}

func (r *DcCtl) Unpack(v uint64) {
	r.SetEn = uint8(v>>dcCtlSetEnShift) & dcCtlSetEnMask
	r.DCacheEn = bitSet(v, dcCtlEnShift)
}

// DefaultDcCtl returns dcCtl's reset value (spec.md §4.7: "dcCtl.SetEn =
// 3", both Dcache sets enabled out of reset).
func DefaultDcCtl() DcCtl {
	return DcCtl{SetEn: 3, DCacheEn: true}
}

// DefaultDTBAltMode returns dtbAltMode's reset value (spec.md §4.7:
// "dtbAltMode.AltMode = Kernel").
func DefaultDTBAltMode() DTBAltMode {
	return DTBAltMode{AltMode: alpha.Kernel}
}

// DcStat is dcStat: the last Dcache-detected condition (parity/ECC class
// of error), latched for PAL's machine-check handler. The Mbox's scope
// ends at cache-line ECC being out of scope (spec.md §1 Non-goals); this
// register is carried only as a landing place other PAL reads expect to
// exist, and is never set by this implementation.
type DcStat struct {
	Bits uint64
}

func (r DcStat) Pack() uint64     { return r.Bits }
func (r *DcStat) Unpack(v uint64) { r.Bits = v }

func boolBit(b bool, shift uint) uint64 {
	if b {
		return 1 << shift
	}
	return 0
}

func bitSet(v uint64, shift uint) bool {
	return v&(1<<shift) != 0
}
