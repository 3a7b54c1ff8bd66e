package cleanup

import "sync/atomic"

// RunGuard lets at most one cleanup run execute at a time in the process.
type RunGuard struct {
	running atomic.Bool
}

func NewRunGuard() *RunGuard {
	return &RunGuard{}
}

// TryAcquire reports whether the caller now owns the run.
func (g *RunGuard) TryAcquire() bool {
	return g.running.CompareAndSwap(false, true)
}

func (g *RunGuard) Release() {
	g.running.Store(false)
}

func (g *RunGuard) Running() bool {
	return g.running.Load()
}
