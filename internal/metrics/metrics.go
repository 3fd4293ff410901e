// Package metrics holds the Prometheus collectors for the billing pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookEvents counts webhook deliveries by event family and outcome.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billing",
		Name:      "webhook_events_total",
		Help:      "Webhook deliveries by event family and outcome.",
	}, []string{"family", "outcome"})

	// MirrorWrites counts upserts into the local mirror by table and result.
	MirrorWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billing",
		Name:      "mirror_writes_total",
		Help:      "Upserts into the billing mirror by table and result.",
	}, []string{"table", "result"})

	// CustomersCreated counts payment-provider customers created at checkout.
	CustomersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "billing",
		Name:      "customers_created_total",
		Help:      "Payment-provider customers created by the customer resolver.",
	})
)
