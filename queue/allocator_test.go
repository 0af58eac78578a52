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

package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatorProgramOrder(t *testing.T) {
	a := New(4)
	var inUse [4]bool
	isFree := func(s uint32) bool { return !inUse[s] }
	claim := func(s uint32) { inUse[s] = true }

	for i := uint32(0); i < 4; i++ {
		slot, ok := a.Allocate(isFree, claim)
		require.True(t, ok)
		assert.Equal(t, i, slot)
	}
}

func TestAllocatorFullReturnsSentinel(t *testing.T) {
	a := New(2)
	inUse := [2]bool{true, true}
	slot, ok := a.Allocate(
		func(s uint32) bool { return !inUse[s] },
		func(s uint32) { inUse[s] = true },
	)
	assert.False(t, ok)
	assert.Equal(t, Full, slot)
}

func TestAllocatorReclaimsTerminalSlots(t *testing.T) {
	a := New(2)
	var inUse [2]bool
	isFree := func(s uint32) bool { return !inUse[s] }
	claim := func(s uint32) { inUse[s] = true }

	s0, ok := a.Allocate(isFree, claim)
	require.True(t, ok)

	s1, ok := a.Allocate(isFree, claim)
	require.True(t, ok)
	assert.NotEqual(t, s0, s1)

	_, ok = a.Allocate(isFree, claim)
	assert.False(t, ok)

	inUse[s0] = false // scheduler reclaimed slot 0 (reached LQComplete/QNotInUse)
	s2, ok := a.Allocate(isFree, claim)
	require.True(t, ok)
	assert.Equal(t, s0, s2)
}

func TestAllocatorConcurrentMutualExclusion(t *testing.T) {
	const size = 64
	a := New(size)
	var mu sync.Mutex
	inUse := make([]bool, size)
	seen := make(map[uint32]int)

	isFree := func(s uint32) bool {
		mu.Lock()
		defer mu.Unlock()
		return !inUse[s]
	}
	claim := func(s uint32) {
		mu.Lock()
		defer mu.Unlock()
		inUse[s] = true
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 8; i++ {
				slot, ok := a.Allocate(isFree, claim)
				if !ok {
					continue
				}
				mu.Lock()
				seen[slot]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	for slot, n := range seen {
		assert.Equal(t, 1, n, "slot %d allocated more than once", slot)
	}
}
