// Package callstack attributes elapsed ticks to the correct source line
// while instrumented routines run, including under recursion and nested
// instrumented calls.
//
// A Stack belongs to one goroutine's chain of instrumented calls and needs
// no locking. Completed intervals are committed to a Committer, normally the
// session's linestats.Store.
package callstack

import (
	"sync/atomic"

	"github.com/Erotemic/line-profiler/linestats"
	"github.com/Erotemic/line-profiler/timing"
)

// Committer receives completed line intervals.
type Committer interface {
	Record(key linestats.LineKey, ticks uint64)
}

// Frame is the timing context of one in-flight invocation. currentLine is
// zero until the first line notification arrives; the span between routine
// entry and the first line is not attributed to any line.
type Frame struct {
	routine     string
	sourceUnit  string
	currentLine int
	entered     timing.Ticks
}

// Stack tracks the in-flight frames of one goroutine's instrumented calls.
type Stack struct {
	timeTeller timing.TimeTeller
	committer  Committer
	frames     []Frame

	dropped atomic.Uint64
}

// NewStack creates a Stack that reads timestamps from tt and commits
// completed intervals to c.
func NewStack(tt timing.TimeTeller, c Committer) *Stack {
	return &Stack{
		timeTeller: tt,
		committer:  c,
	}
}

// Committer returns the commit target the stack was created with.
func (s *Stack) Committer() Committer {
	return s.committer
}

// Depth returns the number of in-flight frames.
func (s *Stack) Depth() int {
	return len(s.frames)
}

// DroppedCommits returns the number of intervals lost because a commit
// failed. Losing a sample is preferred over disturbing the observed program.
func (s *Stack) DroppedCommits() uint64 {
	return s.dropped.Load()
}

// Push enters a new frame for an invocation of the named routine.
func (s *Stack) Push(routine, sourceUnit string) {
	s.frames = append(s.frames, Frame{
		routine:    routine,
		sourceUnit: sourceUnit,
		entered:    s.timeTeller.CurrentTick(),
	})
}

// LineReached closes the top frame's pending interval, if any, and opens an
// interval for line. Reaching the same line again, as a loop header does,
// commits one interval per pass.
func (s *Stack) LineReached(line int) {
	if len(s.frames) == 0 {
		return
	}

	now := s.timeTeller.CurrentTick()
	top := &s.frames[len(s.frames)-1]

	if top.currentLine != 0 {
		s.commit(top, now)
	}

	top.currentLine = line
	top.entered = now
}

// Pop closes the top frame's last open interval and removes the frame. If a
// caller frame becomes exposed, its interval clock restarts now so the
// caller's line does not absorb the callee's wall time.
func (s *Stack) Pop() {
	if len(s.frames) == 0 {
		return
	}

	now := s.timeTeller.CurrentTick()
	top := &s.frames[len(s.frames)-1]

	if top.currentLine != 0 {
		s.commit(top, now)
	}

	s.frames = s.frames[:len(s.frames)-1]

	if len(s.frames) > 0 {
		s.frames[len(s.frames)-1].entered = s.timeTeller.CurrentTick()
	}
}

// commit records the top frame's pending interval. A failing commit must
// never escape into the observed routine's control flow, so panics are
// swallowed and counted instead.
func (s *Stack) commit(top *Frame, now timing.Ticks) {
	defer func() {
		if r := recover(); r != nil {
			s.dropped.Add(1)
		}
	}()

	delta := now - top.entered
	if delta < 0 {
		delta = 0
	}

	s.committer.Record(linestats.LineKey{
		SourceUnit: top.sourceUnit,
		Line:       top.currentLine,
		Routine:    top.routine,
	}, uint64(delta))
}
