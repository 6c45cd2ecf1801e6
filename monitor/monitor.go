// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	startTime        = time.Now()
	messagesReceived = expvar.NewInt("messages_received")
	gamesFinished    = expvar.NewInt("games_finished")
)

func init() {
	// 添加expvar指标
	expvar.Publish("uptime", expvar.Func(func() interface{} {
		return time.Since(startTime).Seconds()
	}))
}

type Metrics struct {
	OnlinePlayers    prometheus.Gauge
	ActiveRooms      prometheus.Gauge
	MessagesReceived prometheus.Counter
	MessagesSent     *prometheus.CounterVec
	MessageLatency   prometheus.Histogram
	JoinsRejected    *prometheus.CounterVec
	GamesFinished    prometheus.Counter
	RoomsSwept       prometheus.Counter
}

func NewMetrics(namespace string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of open player connections",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of rooms in the registry",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of messages received",
		}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Frames queued to connections by message id",
		}, []string{"msg_id"}),
		MessageLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_latency_seconds",
			Help:      "Message processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		JoinsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "joins_rejected_total",
			Help:      "Rejected join attempts by reason",
		}, []string{"reason"}),
		GamesFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Games that ran until all but one player won",
		}),
		RoomsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_swept_total",
			Help:      "Rooms removed by the idle sweep",
		}),
	}

	registerer.MustRegister(
		m.OnlinePlayers,
		m.ActiveRooms,
		m.MessagesReceived,
		m.MessagesSent,
		m.MessageLatency,
		m.JoinsRejected,
		m.GamesFinished,
		m.RoomsSwept,
	)

	return m
}

// Monitor wraps the metrics. A nil *Monitor is valid and records nothing.
type Monitor struct {
	metrics  *Metrics
	gatherer prometheus.Gatherer
}

// NewMonitor registers on reg, or on the default registry when reg is nil.
func NewMonitor(namespace string, reg *prometheus.Registry) *Monitor {
	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg != nil {
		registerer, gatherer = reg, reg
	}
	return &Monitor{
		metrics:  NewMetrics(namespace, registerer),
		gatherer: gatherer,
	}
}

// Handler serves the prometheus exposition format.
func (m *Monitor) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// VarsHandler serves the expvar counters.
func (m *Monitor) VarsHandler() http.Handler {
	return expvar.Handler()
}

func (m *Monitor) IncOnlinePlayers() {
	if m == nil {
		return
	}
	m.metrics.OnlinePlayers.Inc()
}

func (m *Monitor) DecOnlinePlayers() {
	if m == nil {
		return
	}
	m.metrics.OnlinePlayers.Dec()
}

func (m *Monitor) SetActiveRooms(count int) {
	if m == nil {
		return
	}
	m.metrics.ActiveRooms.Set(float64(count))
}

func (m *Monitor) IncMessagesReceived() {
	messagesReceived.Add(1)
	if m == nil {
		return
	}
	m.metrics.MessagesReceived.Inc()
}

func (m *Monitor) AddMessagesSent(msgID uint16, n int) {
	if m == nil {
		return
	}
	m.metrics.MessagesSent.WithLabelValues(strconv.Itoa(int(msgID))).Add(float64(n))
}

func (m *Monitor) ObserveMessageLatency(duration time.Duration) {
	if m == nil {
		return
	}
	m.metrics.MessageLatency.Observe(duration.Seconds())
}

func (m *Monitor) IncJoinsRejected(reason string) {
	if m == nil {
		return
	}
	m.metrics.JoinsRejected.WithLabelValues(reason).Inc()
}

func (m *Monitor) IncGamesFinished() {
	gamesFinished.Add(1)
	if m == nil {
		return
	}
	m.metrics.GamesFinished.Inc()
}

func (m *Monitor) AddRoomsSwept(n int) {
	if m == nil || n == 0 {
		return
	}
	m.metrics.RoomsSwept.Add(float64(n))
}
