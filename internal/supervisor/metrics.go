package supervisor

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cometlabs/comet/api/schemas"
)

// Metrics exposes supervisor counters to Prometheus. All methods are
// nil-safe so wiring metrics stays optional.
type Metrics struct {
	tasksSubmitted prometheus.Counter
	tasksTerminal  *prometheus.CounterVec
	activeTasks    prometheus.Gauge
	iterations     prometheus.Histogram
}

// NewMetrics registers the supervisor collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tasksSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "comet",
			Name:      "tasks_submitted_total",
			Help:      "Browse tasks accepted by the supervisor.",
		}),
		tasksTerminal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "comet",
			Name:      "tasks_terminal_total",
			Help:      "Browse tasks that reached a terminal state, by status.",
		}, []string{"status"}),
		activeTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "comet",
			Name:      "tasks_active",
			Help:      "Agent loops currently executing.",
		}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "comet",
			Name:      "task_iterations",
			Help:      "Loop iterations consumed per completed task.",
			Buckets:   prometheus.LinearBuckets(1, 2, 10),
		}),
	}
	reg.MustRegister(m.tasksSubmitted, m.tasksTerminal, m.activeTasks, m.iterations)
	return m
}

func (m *Metrics) taskSubmitted() {
	if m == nil {
		return
	}
	m.tasksSubmitted.Inc()
}

func (m *Metrics) taskStarted() {
	if m == nil {
		return
	}
	m.activeTasks.Inc()
}

func (m *Metrics) taskFinished() {
	if m == nil {
		return
	}
	m.activeTasks.Dec()
}

func (m *Metrics) taskTerminal(status schemas.TaskStatus) {
	if m == nil {
		return
	}
	m.tasksTerminal.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) observeIterations(n int) {
	if m == nil {
		return
	}
	m.iterations.Observe(float64(n))
}
