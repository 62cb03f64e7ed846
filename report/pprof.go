package report

import (
	"io"
	"math"

	"github.com/google/pprof/profile"

	"github.com/Erotemic/line-profiler/linestats"
)

// ToPprof converts a snapshot into a pprof profile with one sample per
// recorded line, valued by hit count and nanoseconds, so standard pprof
// tooling can browse line hotspots.
func ToPprof(sn *linestats.Snapshot) *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "hits", Unit: "count"},
			{Type: "time", Unit: "nanoseconds"},
		},
	}

	type functionKey struct {
		name string
		unit string
	}

	functions := make(map[functionKey]*profile.Function)

	for _, key := range sn.Keys {
		stat := sn.Stats[key]

		fnKey := functionKey{name: key.Routine, unit: key.SourceUnit}
		fn, ok := functions[fnKey]
		if !ok {
			fn = &profile.Function{
				ID:       uint64(len(p.Function) + 1),
				Name:     key.Routine,
				Filename: key.SourceUnit,
			}
			functions[fnKey] = fn
			p.Function = append(p.Function, fn)
		}

		loc := &profile.Location{
			ID: uint64(len(p.Location) + 1),
			Line: []profile.Line{{
				Function: fn,
				Line:     int64(key.Line),
			}},
		}
		p.Location = append(p.Location, loc)

		nanos := sn.Seconds(stat.TotalTicks) * 1e9

		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{int64(stat.Hits), int64(math.Round(nanos))},
		})
	}

	return p
}

// WritePprof writes sn to w in pprof's compressed wire format.
func WritePprof(w io.Writer, sn *linestats.Snapshot) error {
	return ToPprof(sn).Write(w)
}
