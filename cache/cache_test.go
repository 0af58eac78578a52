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

package cache

import (
	"testing"

	"github.com/axp21264/mbox/internal/alpha"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDcacheProbeMissesWhenEmpty(t *testing.T) {
	d := NewDcache()
	d.Init()

	_, hit := d.Probe(0x1000)
	assert.False(t, hit)
}

func TestDcacheFillThenProbeHits(t *testing.T) {
	d := NewDcache()
	d.Init()

	data := make([]byte, lineSize)
	data[0] = 0xAB
	way, victimTag, victimDirty := d.Fill(0x1000, data)
	assert.Equal(t, 0, way)
	assert.Equal(t, uint64(0), victimTag)
	assert.False(t, victimDirty)

	gotWay, hit := d.Probe(0x1000)
	require.True(t, hit)
	assert.Equal(t, way, gotWay)

	dst := make([]byte, 1)
	d.Read(0x1000, gotWay, 1, dst)
	assert.Equal(t, byte(0xAB), dst[0])
}

func TestDcacheSecondFillUsesOtherWay(t *testing.T) {
	d := NewDcache()
	d.Init()

	data := make([]byte, lineSize)
	// two addresses that hash to the same set but carry distinct line tags
	pa1 := uint64(0x1000)
	pa2 := pa1 + uint64(alpha.CacheEntries)*uint64(lineSize)

	w1, _, _ := d.Fill(pa1, data)
	w2, _, _ := d.Fill(pa2, data)
	assert.NotEqual(t, w1, w2)

	_, hit1 := d.Probe(pa1)
	_, hit2 := d.Probe(pa2)
	assert.True(t, hit1)
	assert.True(t, hit2)
}

func TestDcacheThirdFillEvictsWayZero(t *testing.T) {
	d := NewDcache()
	d.Init()

	data := make([]byte, lineSize)
	pa1 := uint64(0x1000)
	pa2 := pa1 + uint64(alpha.CacheEntries)*uint64(lineSize)
	pa3 := pa2 + uint64(alpha.CacheEntries)*uint64(lineSize)

	d.Fill(pa1, data)
	d.Fill(pa2, data)
	_, victimTag, _ := d.Fill(pa3, data)
	assert.Equal(t, pa1, victimTag)

	_, hit1 := d.Probe(pa1)
	assert.False(t, hit1, "way 0 should have been evicted")
}

func TestDcacheWriteMarksDirty(t *testing.T) {
	d := NewDcache()
	d.Init()
	data := make([]byte, lineSize)
	way, _, _ := d.Fill(0x2000, data)

	src := []byte{0xFF}
	d.Write(0x2000, way, 1, src)

	item, _ := d.sets[setIndex(0x2000)].Get(way)
	assert.True(t, item.Value().Dirty)
	assert.True(t, item.Value().Modified)
}

func TestBcacheProbeFillRoundTrip(t *testing.T) {
	b := NewBcache()
	b.Init()

	assert.False(t, b.Probe(0x30000))

	data := make([]byte, lineSize)
	data[3] = 0x77
	victimTag, victimDirty := b.Fill(0x30000, data)
	assert.Equal(t, uint64(0), victimTag)
	assert.False(t, victimDirty)

	assert.True(t, b.Probe(0x30000))
	assert.Equal(t, byte(0x77), b.Read(0x30000)[3])
}

func TestBcacheFillEvictsDirectMappedSlot(t *testing.T) {
	b := NewBcache()
	b.Init()

	data := make([]byte, lineSize)
	pa1 := uint64(0x1000)
	pa2 := pa1 + uint64(bcacheEntries)*uint64(lineSize) // same direct-mapped slot

	b.Fill(pa1, data)
	b.MarkDirty(pa1, data)
	victimTag, victimDirty := b.Fill(pa2, data)

	assert.Equal(t, pa1&^(uint64(lineSize)-1), victimTag)
	assert.True(t, victimDirty)
	assert.False(t, b.Probe(pa1), "pa1 was evicted by the direct-mapped collision")
	assert.True(t, b.Probe(pa2))
}
