//go:build go1.19

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

// Package maphash wraps std hash/maphash for go1.18, which lacks the
// Bytes function dtb.tagTable needs to hash its (virtual tag, ASN) key.
// Trimmed to Bytes/Seed/MakeSeed only — tagTable never hashes a string.
package maphash

import "hash/maphash"

// Seed is a maphash.Seed, re-exported so callers don't need to import
// hash/maphash directly.
type Seed = maphash.Seed

// MakeSeed returns a new random seed.
func MakeSeed() maphash.Seed { return maphash.MakeSeed() }

// Bytes hashes b under seed.
func Bytes(seed maphash.Seed, b []byte) uint64 {
	return maphash.Bytes(seed, b)
}
