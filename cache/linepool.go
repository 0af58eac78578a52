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

import "sync"

// linePool recycles fixed-size cache-line data blocks. It is adapted from
// cache/mempool.memPool: the teacher's own tiered sync.Pool-of-size-classes
// allocator, stripped down to a single size class. mempool's footer-magic
// double-free check exists because Malloc(size) accepts any size and Free
// must recover which pool a []byte came from; here every block is exactly
// the cache line size, so the pool index is never ambiguous and the footer
// is unnecessary.
var linePool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, lineSize)
		return &b
	},
}

func allocLine() []byte {
	p := linePool.Get().(*[]byte)
	b := *p
	for i := range b {
		b[i] = 0
	}
	return b
}

func freeLine(b []byte) {
	if len(b) != lineSize {
		return
	}
	linePool.Put(&b)
}
