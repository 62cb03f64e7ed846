// Package monitoring serves the live state of a profiling session over
// HTTP so a running program can be inspected without waiting for the exit
// flush.
package monitoring

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"

	"github.com/Erotemic/line-profiler/lifecycle"
)

// Monitor exposes a controller's current snapshot as JSON, per-routine
// totals as Prometheus metrics, and process resource usage.
type Monitor struct {
	controller *lifecycle.Controller
	portNumber int
	listener   net.Listener
	server     *http.Server
	log        *logrus.Logger
}

// NewMonitor creates a Monitor.
func NewMonitor() *Monitor {
	return &Monitor{log: logrus.StandardLogger()}
}

// WithPortNumber sets the port the monitor listens on. Port 0 picks a free
// port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	m.portNumber = portNumber
	return m
}

// WithLogger overrides the monitor's logger.
func (m *Monitor) WithLogger(log *logrus.Logger) *Monitor {
	m.log = log
	return m
}

// RegisterController sets the controller whose session is served.
func (m *Monitor) RegisterController(c *lifecycle.Controller) {
	m.controller = c
}

// StartServer starts serving in the background and returns once the
// listener is bound. Addr reports the bound address.
func (m *Monitor) StartServer() error {
	if m.controller == nil {
		return fmt.Errorf("monitoring: no controller registered")
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", m.portNumber))
	if err != nil {
		return err
	}
	m.listener = listener

	registry := prometheus.NewRegistry()
	registry.MustRegister(newStatsCollector(m.controller))

	router := mux.NewRouter()
	router.HandleFunc("/api/stats", m.serveStats)
	router.HandleFunc("/api/status", m.serveStatus)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	m.server = &http.Server{Handler: router}

	m.log.WithField("addr", m.Addr()).Info("line-profiler monitor listening")

	go func() {
		if err := m.server.Serve(listener); err != http.ErrServerClosed {
			m.log.WithError(err).Error("line-profiler monitor stopped")
		}
	}()

	return nil
}

// Addr returns the address the monitor is listening on.
func (m *Monitor) Addr() string {
	if m.listener == nil {
		return ""
	}

	return m.listener.Addr().String()
}

// StopServer stops the monitor.
func (m *Monitor) StopServer() error {
	if m.server == nil {
		return nil
	}

	return m.server.Close()
}

// OpenDashboard opens the stats endpoint in the default browser.
func (m *Monitor) OpenDashboard() error {
	return browser.OpenURL(fmt.Sprintf("http://%s/api/stats", m.Addr()))
}

type statsEntry struct {
	SourceUnit string  `json:"source_unit"`
	Line       int     `json:"line"`
	Routine    string  `json:"routine"`
	Hits       uint64  `json:"hits"`
	TotalTicks uint64  `json:"total_ticks"`
	Seconds    float64 `json:"seconds"`
}

type statsRsp struct {
	TickUnit float64      `json:"tick_unit"`
	Entries  []statsEntry `json:"entries"`
}

func (m *Monitor) serveStats(w http.ResponseWriter, _ *http.Request) {
	rsp := statsRsp{Entries: []statsEntry{}}

	if sn, ok := m.controller.Snapshot(); ok {
		rsp.TickUnit = sn.TickUnit

		for _, key := range sn.Keys {
			stat := sn.Stats[key]
			rsp.Entries = append(rsp.Entries, statsEntry{
				SourceUnit: key.SourceUnit,
				Line:       key.Line,
				Routine:    key.Routine,
				Hits:       stat.Hits,
				TotalTicks: stat.TotalTicks,
				Seconds:    sn.Seconds(stat.TotalTicks),
			})
		}
	}

	m.writeJSON(w, rsp)
}

type statusRsp struct {
	State      string  `json:"state"`
	Active     bool    `json:"active"`
	PID        int     `json:"pid"`
	CPUPercent float64 `json:"cpu_percent"`
	MemoryRSS  uint64  `json:"memory_rss"`
}

func (m *Monitor) serveStatus(w http.ResponseWriter, _ *http.Request) {
	rsp := statusRsp{
		State:  m.controller.State().String(),
		Active: m.controller.IsActive(),
		PID:    os.Getpid(),
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if cpuPercent, err := proc.CPUPercent(); err == nil {
			rsp.CPUPercent = cpuPercent
		}

		if memory, err := proc.MemoryInfo(); err == nil {
			rsp.MemoryRSS = memory.RSS
		}
	}

	m.writeJSON(w, rsp)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		m.log.WithError(err).Error("line-profiler monitor: writing response")
	}
}
