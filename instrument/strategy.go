package instrument

import (
	"context"

	"github.com/Erotemic/line-profiler/callstack"
	"github.com/Erotemic/line-profiler/timing"
)

// Strategy is what instrumented calls currently delegate to. The lifecycle
// controller swaps strategies atomically; in-flight calls keep the stack
// they started with.
type Strategy struct {
	// Active selects between real timing and the inert pass-through.
	Active bool

	// TimeTeller and Committer are required when Active is true.
	TimeTeller timing.TimeTeller
	Committer  callstack.Committer
}

type stackContextKey struct{}

// stackFromContext returns the goroutine's in-flight stack carried by ctx,
// creating one when this is a top-level instrumented call. A stale stack
// committing to a different store than the current strategy is replaced.
//
// The stack is unlocked and owned by one goroutine's chain of instrumented
// calls. Callers must not fan a probe-carrying context out to concurrent
// goroutines; see Body.
func stackFromContext(
	ctx context.Context,
	st *Strategy,
) (*callstack.Stack, context.Context) {
	if existing, ok := ctx.Value(stackContextKey{}).(*callstack.Stack); ok {
		if existing.Committer() == st.Committer {
			return existing, ctx
		}
	}

	stack := callstack.NewStack(st.TimeTeller, st.Committer)

	return stack, context.WithValue(ctx, stackContextKey{}, stack)
}
