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
	"testing"

	"github.com/axp21264/mbox/internal/alpha"
	"github.com/stretchr/testify/assert"
)

func fullPerm() (rd, wr [4]bool) {
	for i := range rd {
		rd[i] = true
		wr[i] = true
	}
	return
}

func TestTranslateMissReturnsFaultTNV(t *testing.T) {
	d := New()
	d.Init()

	pa, ok, fault := d.Translate(0x10000, 0, alpha.User, alpha.AccessRead)
	assert.False(t, ok)
	assert.Equal(t, uint64(0), pa)
	assert.Equal(t, alpha.FaultTNV, fault)
}

func TestTranslateHitComputesPageOffset(t *testing.T) {
	d := New()
	d.Init()
	rd, wr := fullPerm()
	d.Fill(0, Entry{VTag: 0x4000, ASN: 3, PA: 0x80000000, ReadEnable: rd, WriteEnable: wr})

	pa, ok, fault := d.Translate(0x4000|0x123, 3, alpha.User, alpha.AccessRead)
	assert.True(t, ok)
	assert.Equal(t, alpha.NoFault, fault)
	assert.Equal(t, uint64(0x80000000|0x123), pa)
}

func TestTranslateASNMismatchMissesWithoutASM(t *testing.T) {
	d := New()
	d.Init()
	rd, wr := fullPerm()
	d.Fill(0, Entry{VTag: 0x4000, ASN: 3, PA: 0x80000000, ReadEnable: rd, WriteEnable: wr, ASM: false})

	_, ok, fault := d.Translate(0x4000, 9, alpha.User, alpha.AccessRead)
	assert.False(t, ok)
	assert.Equal(t, alpha.FaultTNV, fault)
}

func TestTranslateGlobalMatchIgnoresASN(t *testing.T) {
	d := New()
	d.Init()
	rd, wr := fullPerm()
	d.Fill(0, Entry{VTag: 0x4000, ASN: 3, PA: 0x80000000, ReadEnable: rd, WriteEnable: wr, ASM: true})

	pa, ok, _ := d.Translate(0x4000, 9, alpha.User, alpha.AccessRead)
	assert.True(t, ok)
	assert.Equal(t, uint64(0x80000000), pa)
}

func TestTranslateFaultOnReadTakesPrecedenceOverACV(t *testing.T) {
	d := New()
	d.Init()
	d.Fill(0, Entry{VTag: 0x4000, ASN: 0, PA: 0, FaultOnRead: true})

	_, ok, fault := d.Translate(0x4000, 0, alpha.User, alpha.AccessRead)
	assert.False(t, ok)
	assert.Equal(t, alpha.FaultFOR, fault)
}

func TestTranslateAccessViolationWhenModeNotEnabled(t *testing.T) {
	d := New()
	d.Init()
	var rd [4]bool
	rd[alpha.Kernel] = true // only kernel may read
	d.Fill(0, Entry{VTag: 0x4000, ASN: 0, PA: 0, ReadEnable: rd})

	_, ok, fault := d.Translate(0x4000, 0, alpha.User, alpha.AccessRead)
	assert.False(t, ok)
	assert.Equal(t, alpha.FaultACV, fault)
}

func TestTranslateWriteChecksFaultOnWriteAndWriteEnable(t *testing.T) {
	d := New()
	d.Init()
	rd, wr := fullPerm()
	d.Fill(0, Entry{VTag: 0x4000, ASN: 0, PA: 0, ReadEnable: rd, WriteEnable: wr, FaultOnWrite: true})

	_, ok, fault := d.Translate(0x4000, 0, alpha.User, alpha.AccessWrite)
	assert.False(t, ok)
	assert.Equal(t, alpha.FaultFOW, fault)
}

func TestInvalidateRemovesEntryFromIndex(t *testing.T) {
	d := New()
	d.Init()
	rd, wr := fullPerm()
	d.Fill(5, Entry{VTag: 0x9000, ASN: 1, PA: 0xC000, ReadEnable: rd, WriteEnable: wr})

	_, ok, _ := d.Translate(0x9000, 1, alpha.User, alpha.AccessRead)
	assert.True(t, ok)

	d.Invalidate(5)

	_, ok, fault := d.Translate(0x9000, 1, alpha.User, alpha.AccessRead)
	assert.False(t, ok)
	assert.Equal(t, alpha.FaultTNV, fault)
}

func TestRefillOfSameSlotOverwritesIndex(t *testing.T) {
	d := New()
	d.Init()
	rd, wr := fullPerm()
	d.Fill(0, Entry{VTag: 0x1000, ASN: 2, PA: 0x5000, ReadEnable: rd, WriteEnable: wr})
	d.Fill(0, Entry{VTag: 0x2000, ASN: 2, PA: 0x6000, ReadEnable: rd, WriteEnable: wr})

	_, ok, _ := d.Translate(0x1000, 2, alpha.User, alpha.AccessRead)
	assert.False(t, ok, "stale tag must no longer resolve once the slot is refilled")

	pa, ok, _ := d.Translate(0x2000, 2, alpha.User, alpha.AccessRead)
	assert.True(t, ok)
	assert.Equal(t, uint64(0x6000), pa)
}

func TestInitClearsAllEntries(t *testing.T) {
	d := New()
	d.Init()
	rd, wr := fullPerm()
	d.Fill(10, Entry{VTag: 0x7000, ASN: 0, PA: 0x1000, ReadEnable: rd, WriteEnable: wr})

	d.Init()

	_, ok, fault := d.Translate(0x7000, 0, alpha.User, alpha.AccessRead)
	assert.False(t, ok)
	assert.Equal(t, alpha.FaultTNV, fault)
}

func TestTagTableManyEntriesRoundTrip(t *testing.T) {
	d := New()
	d.Init()
	rd, wr := fullPerm()

	for i := 0; i < alpha.TBLen; i++ {
		vtag := uint64(i) << 13
		d.Fill(i, Entry{VTag: vtag, ASN: uint8(i % 16), PA: uint64(i) << 16, ReadEnable: rd, WriteEnable: wr})
	}

	for i := 0; i < alpha.TBLen; i++ {
		vtag := uint64(i) << 13
		pa, ok, _ := d.Translate(vtag, uint8(i%16), alpha.User, alpha.AccessRead)
		assert.True(t, ok, "entry %d should resolve", i)
		assert.Equal(t, uint64(i)<<16, pa)
	}
}
