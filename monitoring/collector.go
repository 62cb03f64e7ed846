package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Erotemic/line-profiler/lifecycle"
)

// statsCollector exports per-routine aggregates from the current snapshot.
// Totals are monotonically non-decreasing while profiling is active, so
// they are exposed as counters.
type statsCollector struct {
	controller *lifecycle.Controller

	hitsDesc    *prometheus.Desc
	secondsDesc *prometheus.Desc
}

func newStatsCollector(c *lifecycle.Controller) *statsCollector {
	labels := []string{"routine", "source_unit"}

	return &statsCollector{
		controller: c,
		hitsDesc: prometheus.NewDesc(
			"line_profiler_routine_hits_total",
			"Total line hits per instrumented routine.",
			labels, nil),
		secondsDesc: prometheus.NewDesc(
			"line_profiler_routine_seconds_total",
			"Total seconds attributed to lines of each instrumented routine.",
			labels, nil),
	}
}

func (sc *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- sc.hitsDesc
	ch <- sc.secondsDesc
}

func (sc *statsCollector) Collect(ch chan<- prometheus.Metric) {
	sn, ok := sc.controller.Snapshot()
	if !ok {
		return
	}

	type routineKey struct {
		routine string
		unit    string
	}

	type routineTotal struct {
		hits  uint64
		ticks uint64
	}

	totals := make(map[routineKey]*routineTotal)
	var order []routineKey

	for _, key := range sn.Keys {
		stat := sn.Stats[key]
		rk := routineKey{routine: key.Routine, unit: key.SourceUnit}

		total, seen := totals[rk]
		if !seen {
			total = &routineTotal{}
			totals[rk] = total
			order = append(order, rk)
		}

		total.hits += stat.Hits
		total.ticks += stat.TotalTicks
	}

	for _, rk := range order {
		total := totals[rk]

		ch <- prometheus.MustNewConstMetric(sc.hitsDesc,
			prometheus.CounterValue, float64(total.hits), rk.routine, rk.unit)
		ch <- prometheus.MustNewConstMetric(sc.secondsDesc,
			prometheus.CounterValue, sn.Seconds(total.ticks), rk.routine, rk.unit)
	}
}
