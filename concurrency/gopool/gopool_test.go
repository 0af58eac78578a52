package gopool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGoPoolRunsSubmittedTasks(t *testing.T) {
	p := NewGoPool("TestGoPoolRunsSubmittedTasks", nil)

	n := 10
	wg := sync.WaitGroup{}
	wg.Add(n)
	v := int32(0)
	for i := 0; i < n; i++ {
		p.Go(func() {
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&v, 1)
			wg.Done()
		})
	}
	wg.Wait()
	require.Equal(t, int32(n), atomic.LoadInt32(&v))
}

func TestGoPoolRecoversPanicViaHandler(t *testing.T) {
	p := NewGoPool("TestGoPoolRecoversPanicViaHandler", nil)

	var wg sync.WaitGroup
	wg.Add(1)
	const want = "testpanic"
	var got interface{}
	p.SetPanicHandler(func(r interface{}) {
		got = r
		wg.Done()
	})
	p.Go(func() { panic(want) })
	wg.Wait()

	require.Equal(t, want, got)
}

func TestGoPoolFallsBackWhenQueueFull(t *testing.T) {
	// An unbuffered task channel with no worker listening yet can never
	// accept a send without blocking, so Go's select takes the `default`
	// branch and runs f on a bare goroutine instead.
	p := NewGoPool("TestGoPoolFallsBackWhenQueueFull", &Option{MaxIdleWorkers: 1, TaskChanBuffer: 0})

	var wg sync.WaitGroup
	wg.Add(1)
	p.Go(func() { wg.Done() })

	wg.Wait()
}
