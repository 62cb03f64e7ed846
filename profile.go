package lineprofiler

import (
	"io"
	"sync"

	"github.com/Erotemic/line-profiler/instrument"
	"github.com/Erotemic/line-profiler/lifecycle"
	"github.com/Erotemic/line-profiler/linestats"
	"github.com/Erotemic/line-profiler/report"
)

var (
	defaultOnce       sync.Once
	defaultController *lifecycle.Controller
)

// Default returns the process-wide controller, constructing it on first
// use.
func Default() *lifecycle.Controller {
	defaultOnce.Do(func() {
		defaultController = lifecycle.New()
	})

	return defaultController
}

// Attach instruments a routine through the default controller.
func Attach(desc instrument.Descriptor, body instrument.Body) *instrument.Handle {
	return Default().Attach(desc, body)
}

// Detach restores the routine behind h to a pass-through.
func Detach(h *instrument.Handle) {
	Default().Detach(h)
}

// Enable forces profiling on. An empty outputPrefix keeps the current one.
func Enable(outputPrefix string) {
	Default().Enable(outputPrefix)
}

// Disable suspends accumulation; previously collected stats are kept.
func Disable() {
	Default().Disable()
}

// IsActive reports whether profiling is currently accumulating.
func IsActive() bool {
	return Default().IsActive()
}

// PrintStats renders the accumulated stats to w.
func PrintStats(w io.Writer, opts report.Options) error {
	return Default().PrintStats(w, opts)
}

// DumpStats writes the accumulated stats to the file at path.
func DumpStats(path string) error {
	return Default().DumpStats(path)
}

// LoadStats reads a stats file written by DumpStats.
func LoadStats(path string) (*linestats.Store, error) {
	return lifecycle.LoadStats(path)
}

// Finalize renders and persists results now instead of waiting for process
// exit. It is safe to call more than once; later calls do nothing.
func Finalize() error {
	return Default().Finalize()
}
