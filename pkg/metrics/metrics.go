// Package metrics exports engine and fan-out activity to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/astromechza/collab-canvas/pkg/canvas"
)

const namespace = "canvas"

// Collector implements canvas.Observer and realtime.DeliveryObserver.
type Collector struct {
	rooms        prometheus.Gauge
	participants prometheus.Gauge
	committed    *prometheus.CounterVec
	live         *prometheus.CounterVec
	history      *prometheus.CounterVec
	rejected     *prometheus.CounterVec
	delivered    *prometheus.CounterVec
	sendFailures *prometheus.CounterVec
}

// New registers the collector's metrics with reg. Use a fresh prometheus.NewRegistry() per test.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		rooms: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Number of rooms currently held in memory",
		}),
		participants: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "participants_active",
			Help:      "Number of participants across all rooms",
		}),
		committed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_committed_total",
			Help:      "Strokes appended to an operation log",
		}, []string{"type"}),
		live: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_segments_total",
			Help:      "Live segments received, by whether they were emitted or held back",
		}, []string{"result"}),
		history: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_requests_total",
			Help:      "Undo, redo and clear requests, by whether they changed the log",
		}, []string{"kind", "result"}),
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_rejected_total",
			Help:      "Client messages silently dropped",
		}, []string{"kind", "reason"}),
		delivered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_delivered_total",
			Help:      "Outbound events queued to clients",
		}, []string{"kind"}),
		sendFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "Outbound events that could not be queued",
		}, []string{"kind"}),
	}
}

func (c *Collector) RoomCreated(string)       { c.rooms.Inc() }
func (c *Collector) RoomDropped(string)       { c.rooms.Dec() }
func (c *Collector) ParticipantJoined(string) { c.participants.Inc() }
func (c *Collector) ParticipantLeft(string)   { c.participants.Dec() }

func (c *Collector) Committed(_ string, op canvas.Operation) {
	c.committed.WithLabelValues(string(op.Type)).Inc()
}

func (c *Collector) LiveSegment(_ string, emitted bool) {
	c.live.WithLabelValues(result(emitted, "emitted", "held")).Inc()
}

func (c *Collector) HistoryChanged(kind string, changed bool) {
	c.history.WithLabelValues(kind, result(changed, "changed", "noop")).Inc()
}

func (c *Collector) Rejected(kind, reason string) {
	c.rejected.WithLabelValues(kind, reason).Inc()
}

func (c *Collector) Delivered(kind string, recipients int) {
	c.delivered.WithLabelValues(kind).Add(float64(recipients))
}

func (c *Collector) SendFailed(kind string) {
	c.sendFailures.WithLabelValues(kind).Inc()
}

func result(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
