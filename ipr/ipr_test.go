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

package ipr

import (
	"testing"

	"github.com/axp21264/mbox/internal/alpha"
	"github.com/stretchr/testify/assert"
)

func TestDTBPtePackUnpackRoundTrips(t *testing.T) {
	want := DTBPte{
		PA:  0x0000123456788000,
		FOW: true,
		GH:  true,
	}
	want.ReadEnable[alpha.Kernel] = true
	want.ReadEnable[alpha.User] = true
	want.WriteEnable[alpha.Kernel] = true

	var got DTBPte
	got.Unpack(want.Pack())
	assert.Equal(t, want, got)
}

func TestDTBAltModePackUnpack(t *testing.T) {
	r := DTBAltMode{AltMode: alpha.Sup}
	var got DTBAltMode
	got.Unpack(r.Pack())
	assert.Equal(t, alpha.Sup, got.AltMode)
}

func TestMMStatPackUnpack(t *testing.T) {
	want := MMStat{Fault: alpha.FaultACV, Opcode: 0x2A, WriteOp: true}
	var got MMStat
	got.Unpack(want.Pack())
	assert.Equal(t, want, got)
}

func TestMCtlPackUnpack(t *testing.T) {
	want := MCtl{SpE: [3]bool{true, false, true}, UseVA: true}
	var got MCtl
	got.Unpack(want.Pack())
	assert.Equal(t, want, got)
}

func TestDefaultDcCtlMatchesResetValue(t *testing.T) {
	d := DefaultDcCtl()
	assert.Equal(t, uint8(3), d.SetEn)
	assert.True(t, d.DCacheEn)
}

func TestDefaultDTBAltModeMatchesResetValue(t *testing.T) {
	m := DefaultDTBAltMode()
	assert.Equal(t, alpha.Kernel, m.AltMode)
}

func TestDTBTagMasksPageOffset(t *testing.T) {
	tag := DTBTag{VA: 0x2000 | 0x1FF}
	assert.Equal(t, uint64(0x2000), tag.Pack())
}
