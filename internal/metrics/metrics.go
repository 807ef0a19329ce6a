package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metrics for the quiz service. All methods are safe on a
// nil receiver so tests can run without a registry.
type Metrics struct {
	registry *prometheus.Registry

	Submissions     *prometheus.CounterVec
	AdminActions    *prometheus.CounterVec
	Broadcasts      *prometheus.CounterVec
	DroppedClients  prometheus.Counter
	LiveClients     prometheus.Gauge
	SnapshotWrites  *prometheus.HistogramVec
	RequestDuration *prometheus.HistogramVec
}

// New registers the service metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiz",
			Name:      "submissions_total",
			Help:      "Answer submissions by result",
		}, []string{"result"}),
		AdminActions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiz",
			Name:      "admin_actions_total",
			Help:      "Admin state changes by action",
		}, []string{"action"}),
		Broadcasts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiz",
			Name:      "broadcasts_total",
			Help:      "Events broadcast to live clients",
		}, []string{"msg"}),
		DroppedClients: f.NewCounter(prometheus.CounterOpts{
			Namespace: "quiz",
			Name:      "dropped_clients_total",
			Help:      "Live clients removed after a failed delivery",
		}),
		LiveClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "quiz",
			Name:      "live_clients",
			Help:      "Currently registered live clients",
		}),
		SnapshotWrites: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quiz",
			Name:      "snapshot_write_seconds",
			Help:      "Duration of full snapshot writes",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quiz",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "code"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Submission(result string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(result).Inc()
}

func (m *Metrics) AdminAction(action string) {
	if m == nil {
		return
	}
	m.AdminActions.WithLabelValues(action).Inc()
}

func (m *Metrics) Broadcast(msg string) {
	if m == nil {
		return
	}
	m.Broadcasts.WithLabelValues(msg).Inc()
}

func (m *Metrics) ClientDropped() {
	if m == nil {
		return
	}
	m.DroppedClients.Inc()
}

func (m *Metrics) SetLiveClients(n int) {
	if m == nil {
		return
	}
	m.LiveClients.Set(float64(n))
}

func (m *Metrics) ObserveSnapshotWrite(start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.SnapshotWrites.WithLabelValues(status).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveRequest(method string, code int, start time.Time) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, strconv.Itoa(code)).Observe(time.Since(start).Seconds())
}
