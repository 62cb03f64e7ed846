// Package lifecycle decides whether profiling is live for the process,
// owns the one real stats store, and guarantees that results are rendered
// and persisted exactly once when the program ends.
package lifecycle

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/tebeka/atexit"

	"github.com/Erotemic/line-profiler/instrument"
	"github.com/Erotemic/line-profiler/linestats"
	"github.com/Erotemic/line-profiler/report"
	"github.com/Erotemic/line-profiler/statsfile"
	"github.com/Erotemic/line-profiler/timing"
)

// State is the controller's profiling mode.
type State int

const (
	// StateUninitialized means no decision has been made yet. The first
	// call through an instrumented routine resolves it.
	StateUninitialized State = iota

	// StateInert means instrumented routines run through a pass-through
	// shim.
	StateInert

	// StateActive means a real stats store exists and accumulates.
	StateActive
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInert:
		return "inert"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Defaults for implicit setup, matching the conventional line-profiler
// spellings.
const (
	DefaultOutputPrefix = "profile_output"
	DefaultEnvironFlag  = "LINE_PROFILE"
)

// DefaultCLIFlags are the argv spellings that request profiling.
var DefaultCLIFlags = []string{"--line-profile", "--line_profile"}

// Environment values that do not request profiling. Any other non-empty
// value is truthy.
var falsyStrings = map[string]bool{
	"":      true,
	"0":     true,
	"off":   true,
	"false": true,
	"no":    true,
}

// SnapshotRecorder persists flushed snapshots somewhere durable, such as a
// run-history database.
type SnapshotRecorder interface {
	RecordSnapshot(sn *linestats.Snapshot) error
}

// Controller is the process-wide profiling lifecycle. Construct one with
// New, attach routines through its Registry, and either let implicit setup
// decide the mode on first use or force it with Enable/Disable.
type Controller struct {
	mu           sync.Mutex
	state        State
	outputPrefix string
	environFlag  string
	cliFlags     []string

	registry *instrument.Registry
	clock    timing.Clock
	store    *linestats.Store

	exitHookOnce sync.Once
	flushOnce    sync.Once

	getenv   func(string) string
	args     []string
	newClock func() timing.Clock
	stdout   io.Writer
	log      *logrus.Logger
	renderer *report.Renderer
	recorder SnapshotRecorder
}

// New creates a Controller in the uninitialized state.
func New() *Controller {
	c := &Controller{
		state:        StateUninitialized,
		outputPrefix: DefaultOutputPrefix,
		environFlag:  DefaultEnvironFlag,
		cliFlags:     append([]string(nil), DefaultCLIFlags...),
		getenv:       os.Getenv,
		args:         os.Args,
		newClock:     func() timing.Clock { return timing.NewWallClock() },
		stdout:       os.Stdout,
		log:          logrus.StandardLogger(),
		renderer:     report.NewRenderer(),
	}

	c.registry = instrument.NewRegistry(c.implicitSetup)

	return c
}

// WithOutputPrefix sets the path prefix of the files written at exit.
func (c *Controller) WithOutputPrefix(prefix string) *Controller {
	c.outputPrefix = prefix
	return c
}

// WithEnvironFlag overrides the environment variable consulted during
// implicit setup.
func (c *Controller) WithEnvironFlag(name string) *Controller {
	c.environFlag = name
	return c
}

// WithCLIFlags overrides the argv spellings consulted during implicit
// setup.
func (c *Controller) WithCLIFlags(flags []string) *Controller {
	c.cliFlags = append([]string(nil), flags...)
	return c
}

// WithArgs overrides the argv implicit setup scans. Defaults to os.Args.
func (c *Controller) WithArgs(args []string) *Controller {
	c.args = append([]string(nil), args...)
	return c
}

// WithEnvLookup overrides the environment lookup used during implicit
// setup. Defaults to os.Getenv.
func (c *Controller) WithEnvLookup(getenv func(string) string) *Controller {
	c.getenv = getenv
	return c
}

// WithClockFactory overrides how the session clock is created.
func (c *Controller) WithClockFactory(factory func() timing.Clock) *Controller {
	c.newClock = factory
	return c
}

// WithStdout redirects where the exit flush prints the report and the
// written file locations.
func (c *Controller) WithStdout(w io.Writer) *Controller {
	c.stdout = w
	return c
}

// WithLogger overrides the controller's logger.
func (c *Controller) WithLogger(log *logrus.Logger) *Controller {
	c.log = log
	c.registry.SetLogger(log)
	return c
}

// WithSnapshotRecorder additionally persists every flushed snapshot with
// rec.
func (c *Controller) WithSnapshotRecorder(rec SnapshotRecorder) *Controller {
	c.recorder = rec
	return c
}

// Registry returns the instrumentation registry routines attach through.
func (c *Controller) Registry() *instrument.Registry {
	return c.registry
}

// Attach instruments a routine through the controller's registry.
func (c *Controller) Attach(
	desc instrument.Descriptor,
	body instrument.Body,
) *instrument.Handle {
	return c.registry.Attach(desc, body)
}

// Detach restores the routine behind h to a pass-through.
func (c *Controller) Detach(h *instrument.Handle) {
	c.registry.Detach(h)
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// IsActive reports whether profiling is currently accumulating.
func (c *Controller) IsActive() bool {
	return c.State() == StateActive
}

// implicitSetup runs once, triggered by the first instrumented call that
// happens before an explicit Enable or Disable. A .env file is honored so
// the flag can live next to the project.
func (c *Controller) implicitSetup() *instrument.Strategy {
	_ = godotenv.Load()

	if c.profilingRequested() {
		c.Enable("")
	} else {
		c.Disable()
	}

	// The registry picks up the strategy Enable or Disable installed.
	return nil
}

func (c *Controller) profilingRequested() bool {
	if !falsyStrings[strings.ToLower(c.getenv(c.environFlag))] {
		return true
	}

	for _, arg := range c.args {
		for _, flag := range c.cliFlags {
			if arg == flag {
				return true
			}
		}
	}

	return false
}

// Enable transitions to the active state. The real stats store and its
// clock are created on the first Enable only, and the exit flush is
// registered at the same time; later calls reuse the store, so profiling
// resumes rather than restarts after a Disable. A non-empty outputPrefix
// updates where the exit flush writes.
func (c *Controller) Enable(outputPrefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store == nil {
		c.clock = c.newClock()
		c.store = linestats.NewStore(c.clock.TickUnit())

		c.exitHookOnce.Do(func() {
			atexit.Register(c.exitFlush)
		})
	}

	if outputPrefix != "" {
		c.outputPrefix = outputPrefix
	}

	c.state = StateActive
	c.registry.SetStrategy(&instrument.Strategy{
		Active:     true,
		TimeTeller: c.clock,
		Committer:  c.store,
	})
}

// Disable transitions to the inert state. Routine entries after the call
// run pass-through; invocations already in flight finish their own
// commit/pop lifecycle. Accumulated data is retained for a later Enable.
func (c *Controller) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = StateInert
	c.registry.SetStrategy(&instrument.Strategy{})
}

// Snapshot returns a copy of the accumulated stats. ok is false when
// profiling was never enabled.
func (c *Controller) Snapshot() (sn *linestats.Snapshot, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store == nil {
		return nil, false
	}

	return c.store.Snapshot(), true
}

// ResetStats clears the accumulated stats while keeping the session's tick
// unit and mode.
func (c *Controller) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store != nil {
		c.store.Reset()
	}
}

// PrintStats renders the accumulated stats to w. If profiling was never
// enabled it reports so instead of failing.
func (c *Controller) PrintStats(w io.Writer, opts report.Options) error {
	sn, ok := c.Snapshot()
	if !ok {
		_, err := fmt.Fprintln(w, "Profiling was not enabled")
		return err
	}

	return c.renderer.Render(w, sn, opts)
}

// DumpStats writes the accumulated stats to the file at path. If profiling
// was never enabled it reports so and writes nothing.
func (c *Controller) DumpStats(path string) error {
	sn, ok := c.Snapshot()
	if !ok {
		c.log.Info("line-profiler: profiling was not enabled, nothing to dump")
		return nil
	}

	return statsfile.Dump(path, sn)
}

// LoadStats reads a stats file written by DumpStats.
func LoadStats(path string) (*linestats.Store, error) {
	return statsfile.Load(path)
}
