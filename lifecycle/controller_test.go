package lifecycle

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/Erotemic/line-profiler/instrument"
	"github.com/Erotemic/line-profiler/linestats"
	"github.com/Erotemic/line-profiler/report"
	"github.com/Erotemic/line-profiler/timing"
)

// Manual clock. Bodies advance it explicitly so timings are exact.
type testClock struct {
	current atomic.Int64
}

func (c *testClock) CurrentTick() timing.Ticks {
	return timing.Ticks(c.current.Load())
}

func (c *testClock) TickUnit() float64 {
	return 1e-9
}

func (c *testClock) advance(d int64) {
	c.current.Add(d)
}

var _ = Describe("Controller", func() {
	var (
		clock      *testClock
		controller *Controller
		stdout     *bytes.Buffer
		noEnv      func(string) string
	)

	quiet := func() *logrus.Logger {
		log := logrus.New()
		log.SetOutput(io.Discard)
		return log
	}

	BeforeEach(func() {
		clock = &testClock{}
		stdout = &bytes.Buffer{}
		noEnv = func(string) string { return "" }

		controller = New().
			WithEnvLookup(noEnv).
			WithArgs([]string{"prog"}).
			WithClockFactory(func() timing.Clock { return clock }).
			WithStdout(stdout).
			WithLogger(quiet())
	})

	demoDesc := instrument.Descriptor{
		Name: "demo.Run", SourceUnit: "demo.go", FirstLine: 9,
	}

	attachDemo := func(c *Controller) *instrument.Handle {
		return c.Attach(demoDesc, func(_ context.Context, p *instrument.Probe) error {
			p.Line(10)
			clock.advance(5)
			p.Line(11)
			clock.advance(7)
			return nil
		})
	}

	demoKey := func(line int) linestats.LineKey {
		return linestats.LineKey{SourceUnit: "demo.go", Line: line, Routine: "demo.Run"}
	}

	Describe("implicit setup", func() {
		It("starts uninitialized", func() {
			Expect(controller.State()).To(Equal(StateUninitialized))
		})

		It("goes inert on first call when nothing requests profiling", func() {
			h := attachDemo(controller)

			Expect(h.Call(context.Background())).To(Succeed())
			Expect(controller.State()).To(Equal(StateInert))

			_, ok := controller.Snapshot()
			Expect(ok).To(BeFalse())
		})

		It("activates when the environment flag is truthy", func() {
			controller.WithEnvLookup(func(name string) string {
				if name == DefaultEnvironFlag {
					return "1"
				}
				return ""
			})

			h := attachDemo(controller)

			Expect(h.Call(context.Background())).To(Succeed())
			Expect(controller.State()).To(Equal(StateActive))

			sn, ok := controller.Snapshot()
			Expect(ok).To(BeTrue())
			Expect(sn.Stats[demoKey(10)].Hits).To(Equal(uint64(1)))
		})

		It("treats the documented falsy spellings as off", func() {
			for _, value := range []string{"", "0", "off", "OFF", "false", "no"} {
				c := New().
					WithEnvLookup(func(string) string { return value }).
					WithArgs([]string{"prog"}).
					WithClockFactory(func() timing.Clock { return clock }).
					WithLogger(quiet())

				h := c.Attach(demoDesc, func(context.Context, *instrument.Probe) error {
					return nil
				})

				Expect(h.Call(context.Background())).To(Succeed())
				Expect(c.State()).To(Equal(StateInert), "value %q", value)
			}
		})

		It("activates on either command-line spelling", func() {
			for _, flag := range []string{"--line-profile", "--line_profile"} {
				c := New().
					WithEnvLookup(noEnv).
					WithArgs([]string{"prog", flag}).
					WithClockFactory(func() timing.Clock { return clock }).
					WithLogger(quiet())

				h := c.Attach(demoDesc, func(context.Context, *instrument.Probe) error {
					return nil
				})

				Expect(h.Call(context.Background())).To(Succeed())
				Expect(c.State()).To(Equal(StateActive), "flag %s", flag)
			}
		})
	})

	Describe("enable and disable", func() {
		It("accumulates across a disable/enable bracket", func() {
			controller.Enable("")
			h := attachDemo(controller)

			Expect(h.Call(context.Background())).To(Succeed())

			controller.Disable()
			Expect(controller.IsActive()).To(BeFalse())

			// Pass-through while inert.
			Expect(h.Call(context.Background())).To(Succeed())

			controller.Enable("")
			Expect(h.Call(context.Background())).To(Succeed())

			sn, ok := controller.Snapshot()
			Expect(ok).To(BeTrue())
			Expect(sn.Stats[demoKey(10)]).To(Equal(linestats.LineStat{
				Hits: 2, TotalTicks: 10,
			}))
			Expect(sn.Stats[demoKey(11)]).To(Equal(linestats.LineStat{
				Hits: 2, TotalTicks: 14,
			}))
		})

		It("lets an in-flight invocation finish after disable", func() {
			controller.Enable("")

			h := controller.Attach(demoDesc, func(_ context.Context, p *instrument.Probe) error {
				p.Line(10)
				clock.advance(5)
				controller.Disable()
				p.Line(11)
				clock.advance(7)
				return nil
			})

			Expect(h.Call(context.Background())).To(Succeed())

			sn, _ := controller.Snapshot()
			Expect(sn.Stats[demoKey(10)].Hits).To(Equal(uint64(1)))
			Expect(sn.Stats[demoKey(11)].Hits).To(Equal(uint64(1)))

			// The next entry sees inert behavior.
			Expect(h.Call(context.Background())).To(Succeed())
			after, _ := controller.Snapshot()
			Expect(after.Stats[demoKey(10)].Hits).To(Equal(uint64(1)))
		})

		It("updates the output prefix on a later enable", func() {
			controller.Enable("first")
			controller.Enable("second")

			controller.mu.Lock()
			prefix := controller.outputPrefix
			controller.mu.Unlock()

			Expect(prefix).To(Equal("second"))
		})
	})

	Describe("reporting", func() {
		It("says so when profiling was never enabled", func() {
			var out bytes.Buffer

			Expect(controller.PrintStats(&out, report.Options{})).To(Succeed())
			Expect(out.String()).To(ContainSubstring("Profiling was not enabled"))

			Expect(controller.DumpStats(
				filepath.Join(GinkgoT().TempDir(), "out.lprof"))).To(Succeed())
		})

		It("renders accumulated stats", func() {
			controller.Enable("")
			h := attachDemo(controller)
			Expect(h.Call(context.Background())).To(Succeed())

			var out bytes.Buffer
			Expect(controller.PrintStats(&out, report.Options{})).To(Succeed())

			Expect(out.String()).To(ContainSubstring("demo.Run"))
			Expect(out.String()).To(ContainSubstring("demo.go"))
		})

		It("round-trips through DumpStats and LoadStats", func() {
			controller.Enable("")
			h := attachDemo(controller)
			Expect(h.Call(context.Background())).To(Succeed())

			path := filepath.Join(GinkgoT().TempDir(), "out.lprof")
			Expect(controller.DumpStats(path)).To(Succeed())

			loaded, err := LoadStats(path)
			Expect(err).NotTo(HaveOccurred())

			sn, _ := controller.Snapshot()
			Expect(loaded.Snapshot().Equal(sn)).To(BeTrue())
		})
	})

	Describe("finalize", func() {
		It("writes the dump, the report, and a timestamped copy", func() {
			dir := GinkgoT().TempDir()
			prefix := filepath.Join(dir, "profile_output")

			controller.Enable(prefix)
			h := attachDemo(controller)
			Expect(h.Call(context.Background())).To(Succeed())

			Expect(controller.Finalize()).To(Succeed())

			Expect(prefix + ".lprof").To(BeAnExistingFile())
			Expect(prefix + ".txt").To(BeAnExistingFile())

			entries, err := os.ReadDir(dir)
			Expect(err).NotTo(HaveOccurred())

			var historyCopies int
			for _, entry := range entries {
				name := entry.Name()
				if strings.HasPrefix(name, "profile_output_") &&
					strings.HasSuffix(name, ".txt") {
					historyCopies++
				}
			}
			Expect(historyCopies).To(Equal(1))

			Expect(stdout.String()).To(ContainSubstring("Wrote profile results to"))
			Expect(stdout.String()).To(ContainSubstring(prefix + ".lprof"))
		})

		It("flushes at most once", func() {
			dir := GinkgoT().TempDir()
			prefix := filepath.Join(dir, "out")

			controller.Enable(prefix)
			h := attachDemo(controller)
			Expect(h.Call(context.Background())).To(Succeed())

			Expect(controller.Finalize()).To(Succeed())
			written := stdout.Len()

			Expect(controller.Finalize()).To(Succeed())
			Expect(stdout.Len()).To(Equal(written))
		})

		It("does nothing when profiling was never enabled", func() {
			Expect(controller.Finalize()).To(Succeed())
			Expect(stdout.Len()).To(BeZero())
		})

		It("surfaces an unwritable output prefix", func() {
			prefix := filepath.Join(GinkgoT().TempDir(), "no-such-dir", "out")

			controller.Enable(prefix)
			h := attachDemo(controller)
			Expect(h.Call(context.Background())).To(Succeed())

			Expect(controller.Finalize()).To(HaveOccurred())
		})
	})
})
