package hammer

import (
	"runtime"
	"sync"
	"testing"
)

// Hammer runs a test body concurrently in P goroutines, N times per goroutine, to surface
// data races on code documented as safe for concurrent use (run with -race).
//
//	P, N := 8, 1000
//	if testing.Short() {
//		P, N = 4, 100
//	}
//	hammer.NewHammer(t, P, N).Run(func(p, n int) {
//		// p is the goroutine index, n the iteration within it.
//	}, nil)
//	if t.Failed() {
//		return
//	}
type Hammer interface {
	// Run starts P goroutines, waits until all are running, calls onRunning if non-nil,
	// then releases them at once. Each goroutine calls test N times.
	//
	// A panic in test, including a failed require assertion, is reported with t.Error.
	Run(test func(p, n int), onRunning func())
}

// NewHammer returns a Hammer for P goroutines doing N iterations each.
func NewHammer(t *testing.T, P, N int) Hammer {
	return &hammer{t: t, P: P, N: N}
}

// hammer implements Hammer
type hammer struct {
	t *testing.T
	// P is the count of goroutines.
	P int
	// N is the iterations per goroutine.
	N int
}

// Run implements Hammer.Run
func (h *hammer) Run(test func(p, n int), onRunning func()) {
	// Fewer procs than goroutines forces them to switch cores.
	procs := h.P / 2
	if procs < 1 {
		procs = 1
	}
	defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(procs))

	running := make(chan struct{})
	finished := make(chan struct{})
	var unblocked sync.WaitGroup

	unblocked.Add(1)
	for p := 0; p < h.P; p++ {
		p := p
		go func() {
			defer func() {
				if recovered := recover(); recovered != nil {
					h.t.Error(recovered)
				}
				finished <- struct{}{}
			}()
			running <- struct{}{}

			unblocked.Wait()
			for n := 0; n < h.N; n++ {
				test(p, n)
			}
		}()
	}

	for i := 0; i < h.P; i++ {
		<-running
	}

	if onRunning != nil {
		onRunning()
	}

	unblocked.Done()

	for i := 0; i < h.P; i++ {
		<-finished
	}
}
