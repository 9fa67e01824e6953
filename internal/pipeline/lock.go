package pipeline

import "sync/atomic"

// RunLock allows one run at a time without blocking the caller that loses.
type RunLock struct {
	state atomic.Int32 // 0 = idle, 1 = running
}

// TryAcquire takes the lock if it is free and reports whether it did.
func (l *RunLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release frees the lock. Only the holder may call it.
func (l *RunLock) Release() {
	l.state.Store(0)
}

// Held reports whether a run is in progress
func (l *RunLock) Held() bool {
	return l.state.Load() == 1
}
