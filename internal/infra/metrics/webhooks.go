package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookEventsTotal,
		tokensIssuedTotal,
	)
}

var (
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Inbound payment webhooks by normalized status.",
		},
		[]string{"status"},
	)

	tokensIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tokens_issued_total",
			Help: "Tokens issued on a first paid transition.",
		},
	)
)

// knownStatuses are the NOWPayments statuses that get their own series.
// Anything else from the request body is counted as "other".
var knownStatuses = map[string]struct{}{
	"waiting":        {},
	"confirming":     {},
	"confirmed":      {},
	"sending":        {},
	"partially_paid": {},
	"finished":       {},
	"failed":         {},
	"refunded":       {},
	"expired":        {},
}

func statusLabel(status string) string {
	status = norm(status)
	if status == "" {
		return "empty"
	}
	if _, ok := knownStatuses[status]; ok {
		return status
	}
	return "other"
}

func IncWebhookEvent(status string) {
	webhookEventsTotal.WithLabelValues(statusLabel(status)).Inc()
}

func IncTokenIssued() { tokensIssuedTotal.Inc() }
