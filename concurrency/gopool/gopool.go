/*
 * Copyright 2025 CloudWeGo Authors
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

// Package gopool launches panic-recovering background goroutines through
// a small worker pool, trimmed from the teacher's general-purpose pool
// down to what the Mbox scheduler needs: exactly one long-lived worker,
// never per-call context, never idle-aging (the scheduler's one worker
// blocks in its run loop until Stop, so there is nothing to age out).
package gopool

import (
	"log"
	"runtime/debug"
	"sync/atomic"
)

// Option configures a GoPool.
type Option struct {
	// MaxIdleWorkers bounds how many workers stay alive waiting for more
	// tasks; a worker started beyond that count drains the queue and then
	// exits.
	MaxIdleWorkers int

	// TaskChanBuffer is the size of the task queue. If it's full, Go
	// falls back to a bare `go` statement instead of blocking.
	TaskChanBuffer int
}

// DefaultOption returns a single-worker Option, the shape the Mbox
// scheduler always wants.
func DefaultOption() *Option {
	return &Option{MaxIdleWorkers: 1, TaskChanBuffer: 1}
}

// GoPool runs submitted funcs on a bounded set of recycled goroutines,
// recovering and logging any panic rather than crashing the process.
type GoPool struct {
	name string

	workers int32
	maxIdle int32

	panicHandler func(r interface{})

	tasks chan func()
}

// NewGoPool creates a GoPool. A nil Option defaults to a single worker.
func NewGoPool(name string, o *Option) *GoPool {
	if o == nil {
		o = DefaultOption()
	}
	return &GoPool{
		name:    name,
		tasks:   make(chan func(), o.TaskChanBuffer),
		maxIdle: int32(o.MaxIdleWorkers),
	}
}

// Go submits f to run on a pool worker, spinning up a new worker if every
// existing one is busy, or falling back to a bare `go` statement if the
// task queue itself is already full.
func (p *GoPool) Go(f func()) {
	select {
	case p.tasks <- f:
	default:
		go p.runTask(f)
		return
	}
	if len(p.tasks) == 0 {
		return
	}
	go p.runWorker()
}

// SetPanicHandler overrides the default log.Printf panic recovery.
func (p *GoPool) SetPanicHandler(f func(r interface{})) {
	p.panicHandler = f
}

func (p *GoPool) runTask(f func()) {
	defer func() {
		if r := recover(); r != nil {
			if p.panicHandler != nil {
				p.panicHandler(r)
			} else {
				log.Printf("GOPOOL: panic in pool: %s: %v: %s", p.name, r, debug.Stack())
			}
		}
	}()
	f()
}

func (p *GoPool) runWorker() {
	id := atomic.AddInt32(&p.workers, 1)
	defer atomic.AddInt32(&p.workers, -1)

	if id > p.maxIdle {
		// drain whatever is already queued, then exit without waiting
		for {
			select {
			case t := <-p.tasks:
				p.runTask(t)
			default:
				return
			}
		}
	}

	for t := range p.tasks {
		p.runTask(t)
	}
}
