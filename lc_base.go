package jobq

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/go-jobq/jobq/internal/pool"
)

const (
	stopped = iota
	started
)

var (
	// ErrDoubleStarted is returned when Start is called on a component
	// that has already been started.
	ErrDoubleStarted = errors.New("jobq: double start")

	// ErrDoubleStopped is returned when Stop is called on a component
	// that is not currently running.
	ErrDoubleStopped = errors.New("jobq: double stop")

	// ErrStopTimeout is returned when a component fails to shut down
	// within the provided timeout during Stop.
	//
	// In this case, the component may still be terminating in the
	// background.
	ErrStopTimeout = errors.New("jobq: stop timeout")
)

// lcBase implements the strict start-once/stop-once lifecycle shared by
// Worker, Service and the retention sweeper.
type lcBase struct {
	state atomic.Int32
}

func (lb *lcBase) tryStart() error {
	if !lb.state.CompareAndSwap(stopped, started) {
		return ErrDoubleStarted
	}
	return nil
}

func (lb *lcBase) tryStop(timeout time.Duration, df pool.DoneFunc) error {
	if !lb.state.CompareAndSwap(started, stopped) {
		return ErrDoubleStopped
	}
	done := df()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}
