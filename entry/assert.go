//go:build !mboxdebug

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

package entry

// assertState is a no-op in production builds. Build with -tags mboxdebug
// to catch accessor/state mismatches (spec.md §9 open question (b)'s
// class of bug) during development at the cost of a branch per access.
func assertState(cond bool, msg string) {}
