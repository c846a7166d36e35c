package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WebhooksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhooks_processed_total",
		Help: "Inbound gateway webhooks by gateway and outcome.",
	}, []string{"gateway", "outcome"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_events_published_total",
		Help: "Lifecycle events handed to the queue by event type and result.",
	}, []string{"event_type", "result"})

	EventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_events_consumed_total",
		Help: "Queue messages processed by the consumer by event type and result.",
	}, []string{"event_type", "result"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
