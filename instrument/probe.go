package instrument

import "github.com/Erotemic/line-profiler/callstack"

// Probe is the per-invocation line event feed handed to an instrumented
// routine body. Line reports that the numbered source line is about to
// execute. A nil Probe is the inert feed: calling Line on it costs a single
// branch and touches nothing.
type Probe struct {
	stack *callstack.Stack
}

// Line notifies the engine that line is about to execute.
func (p *Probe) Line(line int) {
	if p == nil {
		return
	}

	p.stack.LineReached(line)
}
