package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// NotificationMetrics tracks consumer outcomes and fan-out dispatches.
type NotificationMetrics struct {
	handled    *prometheus.CounterVec
	dispatched *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	recipients prometheus.Histogram
}

func NewNotificationMetrics(reg prometheus.Registerer) *NotificationMetrics {
	if reg == nil {
		return &NotificationMetrics{}
	}
	handled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "consumer_messages_total",
		Help:      "Messages processed by event consumers, by outcome.",
	}, []string{"consumer", "outcome"})
	dispatched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_dispatched_total",
		Help:      "Notification dispatch attempts, by type and result.",
	}, []string{"type", "result"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_events_dropped_total",
		Help:      "Events whose fan-out was abandoned after the graph lookup kept failing.",
	}, []string{"event_type"})
	recipients := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "notifications_fanout_recipients",
		Help:      "Recipients per fan-out.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	})
	reg.MustRegister(handled, dispatched, dropped, recipients)
	return &NotificationMetrics{
		handled:    handled,
		dispatched: dispatched,
		dropped:    dropped,
		recipients: recipients,
	}
}

// IncHandled records one consumer outcome such as "ack", "duplicate" or "retry".
func (m *NotificationMetrics) IncHandled(consumer, outcome string) {
	if m == nil || m.handled == nil {
		return
	}
	m.handled.WithLabelValues(normalizeLabel(consumer), normalizeLabel(outcome)).Inc()
}

func (m *NotificationMetrics) IncDispatched(notificationType string, ok bool) {
	if m == nil || m.dispatched == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.dispatched.WithLabelValues(normalizeLabel(notificationType), result).Inc()
}

func (m *NotificationMetrics) IncDropped(eventType string) {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *NotificationMetrics) ObserveRecipients(n int) {
	if m == nil || m.recipients == nil {
		return
	}
	m.recipients.Observe(float64(n))
}
