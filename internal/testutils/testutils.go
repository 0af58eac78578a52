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

// Package testutils holds small in-memory fakes for the Ibox
// collaborator the Mbox reports to (spec.md §6 "consumes from
// environment": Ibox_Event, retirement). It's only used for testing
// purposes — grounded on internal/testutils/netpoll's "small struct
// implementing one narrow interface, for tests only" pattern — and has
// no production counterpart in this module (a real Ibox integration
// supplies its own mbox.Notifier).
package testutils

import (
	"sync"

	"github.com/axp21264/mbox/internal/alpha"
)

// FaultReport is one Ibox_Event call recorded by FakeIbox.
type FaultReport struct {
	Instr  alpha.Handle
	Fault  alpha.FaultKind
	VA     uint64
	Opcode alpha.Opcode
}

// FakeIbox records every fault and retirement notification the Mbox
// reports, for a test to assert against afterward. It implements
// mbox.Notifier.
type FakeIbox struct {
	mu      sync.Mutex
	Faults  []FaultReport
	Retired []alpha.Handle
}

// IboxEvent implements mbox.Notifier.
func (f *FakeIbox) IboxEvent(h alpha.Handle, fault alpha.FaultKind, va uint64, opcode alpha.Opcode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Faults = append(f.Faults, FaultReport{Instr: h, Fault: fault, VA: va, Opcode: opcode})
}

// Retire implements mbox.Notifier.
func (f *FakeIbox) Retire(h alpha.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Retired = append(f.Retired, h)
}

// RetiredCount returns the number of retirements observed so far.
func (f *FakeIbox) RetiredCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Retired)
}

// FaultCount returns the number of faults observed so far.
func (f *FakeIbox) FaultCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Faults)
}
