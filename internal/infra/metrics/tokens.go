package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(tokenOpsTotal) }

var tokenOpsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "token_operations_total",
		Help: "Activation and check calls by outcome.",
	},
	[]string{"op", "result"}, // op="activate"|"check", result="ok"|"expired"|"not_found"|"conflict"|"invalid"|"error"
)

func IncTokenOp(op, result string) {
	tokenOpsTotal.WithLabelValues(norm(op), norm(result)).Inc()
}
