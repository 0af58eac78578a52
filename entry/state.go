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

// Package entry defines the LQ/SQ queue entry and its state machine
// (spec.md §3, §4.2). Entries live in fixed-size arrays owned by the
// mbox package; every field beyond state/instr is mutated only by the
// scheduler holding mBoxMutex.
package entry

// State is the tagged-variant discriminant for a queue entry. Which
// payload fields are meaningful depends on State; see the accessor
// comments below for the state each becomes valid at (spec.md §9 design
// note: enforced by construction, not by a sum-of-structs, to keep the
// fixed-length queue arrays contiguous).
type State uint8

const (
	// QNotInUse is the reset/free state; entries here carry no payload.
	QNotInUse State = iota
	// Assigned means the allocator has reserved the slot; payload is
	// still empty, waiting on ReadMem/WriteMem to publish it.
	Assigned
	// Initial means a virtual address (and, for stores, a value) has
	// been published; translation hasn't happened yet.
	Initial
	// LQReadPending (loads only): translated, forwarding/cache probing
	// in progress.
	LQReadPending
	// LQComplete (loads only): destv has been written; terminal.
	LQComplete

	// SQWritePending (stores only): translated, waiting on retirement.
	SQWritePending
	// SQReady (stores only): retired, waiting to commit to Dcache.
	SQReady
	// SQComplete (stores only): committed; terminal.
	SQComplete
)

// String renders a state for logs/tests.
func (s State) String() string {
	switch s {
	case QNotInUse:
		return "QNotInUse"
	case Assigned:
		return "Assigned"
	case Initial:
		return "Initial"
	case LQReadPending:
		return "LQReadPending"
	case LQComplete:
		return "LQComplete"
	case SQWritePending:
		return "SQWritePending"
	case SQReady:
		return "SQReady"
	case SQComplete:
		return "SQComplete"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether s is one of the states from which the slot
// may be reclaimed (QNotInUse itself is the reclaimed state, not a
// terminal-pending one).
func (s State) IsTerminal() bool {
	return s == LQComplete || s == SQComplete
}

// ForwardEligible reports whether an SQ entry in state s may serve as a
// forwarding source (spec.md invariant #2).
func (s State) ForwardEligible() bool {
	switch s {
	case Initial, SQWritePending, SQComplete:
		return true
	default:
		return false
	}
}
