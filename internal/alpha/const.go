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

package alpha

const (
	// QueueLen is AXP_MBOX_QUEUE_LEN: the LQ/SQ depth. The allocator does
	// not return it on exhaustion; see queue.Full.
	QueueLen = 32

	// TBLen is AXP_TB_LEN: the DTB entry count.
	TBLen = 128

	// CacheEntries is AXP_CACHE_ENTRIES: the number of Dcache sets.
	CacheEntries = 512

	// CacheLineSize is the Dcache/Bcache line size in bytes.
	CacheLineSize = 64

	// CacheWays is the Dcache associativity (two-way per spec.md §3).
	CacheWays = 2

	// MAFLen/IOWBLen bound the miss-address-file and I/O write buffer
	// arrays (spec.md §3: "Bounded arrays of miss-address entries").
	MAFLen  = 8
	IOWBLen = 4
)

// Opcode is a narrow slice of the Alpha opcode space: only the few values
// the Mbox needs to distinguish (load vs store width, lock-variant) are
// named here. Everything else about decode belongs to the Ibox.
type Opcode uint32

const (
	OpLDBU  Opcode = iota // load byte unsigned
	OpLDWU                // load word unsigned
	OpLDL                 // load longword, sign-extended
	OpLDQ                 // load quadword
	OpLDQU                // load quadword unaligned
	OpLDL_L               // load longword locked
	OpLDQ_L               // load quadword locked
	OpSTB                 // store byte
	OpSTW                 // store word
	OpSTL                 // store longword
	OpSTQ                 // store quadword
	OpSTQ_U               // store quadword unaligned
	OpSTL_C               // store longword conditional
	OpSTQ_C               // store quadword conditional
)

// Width returns the access width in bytes for a load/store opcode.
func (op Opcode) Width() AccessWidth {
	switch op {
	case OpLDBU, OpSTB:
		return Byte
	case OpLDWU, OpSTW:
		return Word
	case OpLDL, OpLDL_L, OpSTL, OpSTL_C:
		return Longword
	default:
		return Quadword
	}
}

// SignExtend reports whether the load's result should be sign-extended
// rather than zero-extended.
func (op Opcode) SignExtend() bool {
	return op == OpLDL || op == OpLDL_L
}

// IsLoad reports whether the opcode is a load (vs. a store).
func (op Opcode) IsLoad() bool {
	switch op {
	case OpLDBU, OpLDWU, OpLDL, OpLDQ, OpLDQU, OpLDL_L, OpLDQ_L:
		return true
	default:
		return false
	}
}

// IsLockVariant reports whether the opcode is load-locked or
// store-conditional.
func (op Opcode) IsLockVariant() bool {
	switch op {
	case OpLDL_L, OpLDQ_L, OpSTL_C, OpSTQ_C:
		return true
	default:
		return false
	}
}

// RequiresAlignment reports whether the opcode requires its virtual
// address to be a multiple of its width (the *_U unaligned variants do
// not).
func (op Opcode) RequiresAlignment() bool {
	return op != OpLDQU && op != OpSTQ_U
}
