package instrument

import (
	"context"
	"sync/atomic"

	"github.com/rs/xid"
)

// Handle is the wrapped form of an attached routine and its stable identity
// in the registry. It preserves the routine's call contract: the body's
// result and any panic propagate unchanged, and the descriptor metadata
// stays visible.
type Handle struct {
	id       string
	registry *Registry
	desc     Descriptor
	body     Body
	active   atomic.Bool
}

func newHandle(r *Registry, desc Descriptor, body Body) *Handle {
	h := &Handle{
		id:       xid.New().String(),
		registry: r,
		desc:     desc,
		body:     body,
	}
	h.active.Store(true)

	return h
}

// ID returns the handle's unique identifier.
func (h *Handle) ID() string {
	return h.id
}

// Name returns the routine's qualified name.
func (h *Handle) Name() string {
	return h.desc.Name
}

// SourceUnit returns the routine's source file.
func (h *Handle) SourceUnit() string {
	return h.desc.SourceUnit
}

// FirstLine returns the line of the routine's declaration.
func (h *Handle) FirstLine() int {
	return h.desc.FirstLine
}

// Descriptor returns the routine's identity metadata.
func (h *Handle) Descriptor() Descriptor {
	return h.desc
}

// Call invokes the routine. When profiling is inert, or the handle is
// detached, the body runs directly with a nil probe. When active, a frame
// is pushed for the invocation and popped on every exit path, normal or
// panicking.
func (h *Handle) Call(ctx context.Context) error {
	st := h.registry.currentStrategy()

	if !st.Active || !h.active.Load() {
		return h.body(ctx, nil)
	}

	stack, ctx := stackFromContext(ctx, st)

	stack.Push(h.desc.Name, h.desc.SourceUnit)
	defer stack.Pop()

	return h.body(ctx, &Probe{stack: stack})
}
