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

// Command mboxsim is a trace-replay harness for manually driving a
// *mbox.Mbox outside of a real Ibox/Ebox/Cbox (spec.md §8's seed
// scenarios, exercised as a scripted CLI rather than a unit test). Not a
// production surface — spec.md §1 places CLI/build glue out of scope for
// the Mbox core itself; this exists only to make the engine drivable by
// hand.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/axp21264/mbox/internal/alpha"
	"github.com/axp21264/mbox/internal/testutils"
	"github.com/axp21264/mbox/mbox"
)

func main() {
	scriptPath := flag.String("script", "", "path to a trace script (required)")
	settle := flag.Duration("settle", 50*time.Millisecond, "time to wait after each directive for the scheduler to drain")
	flag.Parse()

	if *scriptPath == "" {
		fmt.Fprintln(os.Stderr, "mboxsim: -script is required")
		os.Exit(2)
	}

	f, err := os.Open(*scriptPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mboxsim: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	ibox := &testutils.FakeIbox{}
	cfg := mbox.DefaultConfig()
	cfg.Notifier = ibox
	m, err := mbox.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mboxsim: %v\n", err)
		os.Exit(1)
	}
	defer m.Stop()

	r := newReplayer(m, ibox)

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := r.exec(line); err != nil {
			fmt.Fprintf(os.Stderr, "mboxsim: %v\n", err)
			os.Exit(1)
		}
		time.Sleep(*settle)
	}
	if err := sc.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "mboxsim: reading script: %v\n", err)
		os.Exit(1)
	}

	r.printSummary()
}

// replayer holds the instruction handles allocated so far, so `retire`/
// `revoke` directives can name a slot and the summary can print destv.
type replayer struct {
	m    *mbox.Mbox
	ibox *testutils.FakeIbox

	nextUID uint64
	loads   map[uint32]*alpha.Instr
	stores  map[uint32]*alpha.Instr
}

func newReplayer(m *mbox.Mbox, ibox *testutils.FakeIbox) *replayer {
	return &replayer{
		m: m, ibox: ibox,
		loads:  map[uint32]*alpha.Instr{},
		stores: map[uint32]*alpha.Instr{},
	}
}

// exec dispatches one script directive. Grammar, one directive per line:
//
//	map <va>
//	load <va>
//	store <va> <value>
//	retire <sqSlot>
//	revoke lq|sq <slot>
//	maf-complete <idx>
//	iowb-complete <idx> <value>
func (r *replayer) exec(line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "map":
		va, err := parseHex(fields[1])
		if err != nil {
			return err
		}
		if err := r.m.MapIdentity(va, 0); err != nil {
			return err
		}
		fmt.Printf("map va=0x%x\n", va)
		return nil

	case "load":
		va, err := parseHex(fields[1])
		if err != nil {
			return err
		}
		slot, ok := r.m.GetLQSlot()
		if !ok {
			return fmt.Errorf("load: LQ exhausted")
		}
		instr := &alpha.Instr{UniqueID: r.nextUID}
		r.nextUID++
		r.loads[slot] = instr
		r.m.ReadMem(slot, alpha.Handle{Seq: 1, Ptr: instr}, alpha.OpLDQ, va)
		fmt.Printf("load va=0x%x -> lq[%d]\n", va, slot)
		return nil

	case "store":
		if len(fields) < 3 {
			return fmt.Errorf("store: want <va> <value>")
		}
		va, err := parseHex(fields[1])
		if err != nil {
			return err
		}
		value, err := parseHex(fields[2])
		if err != nil {
			return err
		}
		slot, ok := r.m.GetSQSlot()
		if !ok {
			return fmt.Errorf("store: SQ exhausted")
		}
		instr := &alpha.Instr{UniqueID: r.nextUID}
		r.nextUID++
		r.stores[slot] = instr
		r.m.WriteMem(slot, alpha.Handle{Seq: 1, Ptr: instr}, alpha.OpSTQ, va, value)
		fmt.Printf("store va=0x%x value=0x%x -> sq[%d]\n", va, value, slot)
		return nil

	case "retire":
		slot, err := parseSlot(fields[1])
		if err != nil {
			return err
		}
		r.m.RetireStore(slot)
		fmt.Printf("retire sq[%d]\n", slot)
		return nil

	case "revoke":
		if len(fields) < 3 {
			return fmt.Errorf("revoke: want lq|sq <slot>")
		}
		slot, err := parseSlot(fields[2])
		if err != nil {
			return err
		}
		switch fields[1] {
		case "lq":
			r.m.RevokeSlot(mbox.LQSlot, slot)
		case "sq":
			r.m.RevokeSlot(mbox.SQSlot, slot)
		default:
			return fmt.Errorf("revoke: unknown queue %q", fields[1])
		}
		fmt.Printf("revoke %s[%d]\n", fields[1], slot)
		return nil

	case "maf-complete":
		idx, err := parseSlot(fields[1])
		if err != nil {
			return err
		}
		r.m.MAFComplete(idx)
		fmt.Printf("maf-complete [%d]\n", idx)
		return nil

	case "iowb-complete":
		if len(fields) < 3 {
			return fmt.Errorf("iowb-complete: want <idx> <value>")
		}
		idx, err := parseSlot(fields[1])
		if err != nil {
			return err
		}
		value, err := parseHex(fields[2])
		if err != nil {
			return err
		}
		r.m.IOWBComplete(idx, value)
		fmt.Printf("iowb-complete [%d] value=0x%x\n", idx, value)
		return nil

	default:
		return fmt.Errorf("unknown directive %q", fields[0])
	}
}

func (r *replayer) printSummary() {
	fmt.Println("--- final state ---")
	for slot, instr := range r.loads {
		fmt.Printf("lq[%d]: destv=0x%x\n", slot, instr.Destv)
	}
	for slot, instr := range r.stores {
		fmt.Printf("sq[%d]: destv=0x%x\n", slot, instr.Destv)
	}
	for _, f := range r.ibox.Faults {
		fmt.Printf("fault: %d at va=0x%x\n", f.Fault, f.VA)
	}
}

func parseHex(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	return strconv.ParseUint(s, 16, 64)
}

func parseSlot(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}
