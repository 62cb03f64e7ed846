// Package instrument wraps routines so that their line-level execution can
// be observed, and keeps the set of currently observed routines.
//
// A routine is a Body plus a Descriptor naming it. Attach returns a Handle,
// the stable wrapped form of the routine; the caller invokes the routine
// through Handle.Call. Arbitrary argument and result signatures flow through
// closures around the Body.
package instrument

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Descriptor identifies a routine and the identity metadata the wrapper
// must keep exposed.
type Descriptor struct {
	// Name is the qualified routine name, e.g. "mypkg.Fibonacci".
	Name string

	// SourceUnit is the source file the routine lives in.
	SourceUnit string

	// FirstLine is the line of the routine's declaration.
	FirstLine int
}

// Body is the instrumentable form of a routine. The probe reports line
// transitions; it is nil when profiling is inert.
//
// The ctx handed to the body carries the invocation's frame stack, which is
// not safe for concurrent use. A body may pass ctx to instrumented callees
// it invokes itself, but must not hand it to goroutines it spawns; a
// spawned goroutine calling an instrumented handle uses its own context,
// such as context.Background(), and gets an independent stack.
type Body func(ctx context.Context, p *Probe) error

// Registry owns the substitution of routines with their wrapped form.
// Attach and Detach may be called concurrently with each other and with
// calls through already-attached handles.
type Registry struct {
	mu      sync.Mutex
	entries map[Descriptor]*Handle

	strategy  atomic.Pointer[Strategy]
	setupOnce sync.Once
	setup     func() *Strategy

	log *logrus.Logger
}

// NewRegistry creates an empty registry. setup is consulted once, on the
// first call through any attached routine that happens before a strategy
// was installed; a nil setup leaves such calls inert.
func NewRegistry(setup func() *Strategy) *Registry {
	return &Registry{
		entries: make(map[Descriptor]*Handle),
		setup:   setup,
		log:     logrus.StandardLogger(),
	}
}

// SetLogger overrides the registry's logger.
func (r *Registry) SetLogger(log *logrus.Logger) {
	r.log = log
}

// SetStrategy atomically swaps what attached routines delegate to. Calls
// that enter after the swap see the new strategy; calls already in flight
// finish their commit/pop lifecycle against the old one.
func (r *Registry) SetStrategy(st *Strategy) {
	r.strategy.Store(st)
}

var inertStrategy = &Strategy{}

func (r *Registry) currentStrategy() *Strategy {
	if st := r.strategy.Load(); st != nil {
		return st
	}

	r.setupOnce.Do(func() {
		st := inertStrategy
		if r.setup != nil {
			if configured := r.setup(); configured != nil {
				st = configured
			}
		}

		r.strategy.CompareAndSwap(nil, st)
	})

	return r.strategy.Load()
}

// Attach wraps the routine described by desc. Attaching a descriptor that
// is already attached returns the existing handle, body included; the
// handle's identity is stable across repeated calls. A previously detached
// handle is re-activated, so an attached routine is always instrumented.
func (r *Registry) Attach(desc Descriptor, body Body) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.entries[desc]; ok {
		h.active.Store(true)
		return h
	}

	h := newHandle(r, desc, body)
	r.entries[desc] = h

	return h
}

// Detach restores the routine behind h to a pass-through: no timing, no
// store mutation. Accumulated stats are untouched and the handle remains
// valid for a later re-attach. Detaching a handle the registry does not
// know is a logged no-op.
func (r *Registry) Detach(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h == nil {
		r.log.Warn("instrument: detach of nil handle ignored")
		return
	}

	known, ok := r.entries[h.desc]
	if !ok || known != h {
		r.log.WithField("routine", h.desc.Name).
			Warn("instrument: detach of unknown handle ignored")
		return
	}

	h.active.Store(false)
}

// Reattach re-enables timing on a previously detached handle.
func (r *Registry) Reattach(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	known, ok := r.entries[h.desc]
	if !ok || known != h {
		r.log.WithField("routine", h.desc.Name).
			Warn("instrument: reattach of unknown handle ignored")
		return
	}

	h.active.Store(true)
}

// Lookup returns the handle attached under desc, if any.
func (r *Registry) Lookup(desc Descriptor) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.entries[desc]

	return h, ok
}

// Len returns the number of attached routines.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}
