package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	webhooks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "showticket",
		Name:      "webhook_notifications_total",
		Help:      "Provider notifications received, by provider and outcome.",
	}, []string{"provider", "outcome"})

	purchases = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "showticket",
		Name:      "purchases_created_total",
		Help:      "Purchases created, by initial status.",
	}, []string{"status"})

	fulfillments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "showticket",
		Name:      "fulfillments_total",
		Help:      "Fulfillment runs, by outcome.",
	}, []string{"outcome"})

	fulfillmentDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "showticket",
		Name:      "fulfillment_duration_seconds",
		Help:      "Time spent rendering and uploading one purchase's tickets.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "showticket",
		Name:      "notifications_total",
		Help:      "Buyer notifications, by kind and result.",
	}, []string{"kind", "result"})
)

func WebhookReceived(provider, outcome string) {
	webhooks.WithLabelValues(provider, outcome).Inc()
}

func PurchaseCreated(status string) {
	purchases.WithLabelValues(status).Inc()
}

func FulfillmentFinished(outcome string, took time.Duration) {
	fulfillments.WithLabelValues(outcome).Inc()
	fulfillmentDuration.Observe(took.Seconds())
}

func NotificationSent(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	notifications.WithLabelValues(kind, result).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
