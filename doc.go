// Package lineprofiler provides line-granularity execution timing for
// selected routines in a running program.
//
// A routine is attached with a descriptor naming it and a body that reports
// line transitions through a probe:
//
//	h := lineprofiler.Attach(instrument.Descriptor{
//		Name:       "mypkg.Fib",
//		SourceUnit: "fib.go",
//		FirstLine:  10,
//	}, func(ctx context.Context, p *instrument.Probe) error {
//		p.Line(11)
//		a, b := 0, 1
//		for a < 100 {
//			p.Line(13)
//			a, b = b, a+b
//		}
//		return nil
//	})
//
//	h.Call(context.Background())
//
// By default attached routines run as plain pass-throughs. Profiling turns
// on when the LINE_PROFILE environment variable is truthy, when the program
// was started with --line-profile or --line_profile, or when Enable is
// called. While active, every executed line accumulates a hit count and
// elapsed wall time, aggregated across invocations, recursion, and
// goroutines, and the results are rendered and persisted once when the
// program exits through atexit.
package lineprofiler
