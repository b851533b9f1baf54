package metrics

import (
	"fmt"
	"net/http"
	"time"

	vmetrics "github.com/VictoriaMetrics/metrics"
)

const (
	ResultSuccess = "success"
	ResultError   = "error"
)

func WebhookRequest(endpoint, result string) {
	vmetrics.GetOrCreateCounter(fmt.Sprintf(`webhook_requests_total{endpoint=%q,result=%q}`, endpoint, result)).Inc()
}

// GatewayRequest records one outbound gateway call and its latency.
func GatewayRequest(op, result string, started time.Time) {
	vmetrics.GetOrCreateCounter(fmt.Sprintf(`gateway_requests_total{op=%q,result=%q}`, op, result)).Inc()
	vmetrics.GetOrCreateHistogram(fmt.Sprintf(`gateway_request_duration_seconds{op=%q}`, op)).UpdateDuration(started)
}

func StatusWrite(status string) {
	vmetrics.GetOrCreateCounter(fmt.Sprintf(`payment_status_writes_total{status=%q}`, status)).Inc()
}

// StatusTransition counts status changes by where they came from. A first
// write has from="none".
func StatusTransition(from, to, source string) {
	if from == "" {
		from = "none"
	}
	vmetrics.GetOrCreateCounter(fmt.Sprintf(`payment_status_transitions_total{from=%q,to=%q,source=%q}`, from, to, source)).Inc()
}

func StatusSwept(n int) {
	if n <= 0 {
		return
	}
	vmetrics.GetOrCreateCounter(`payment_status_swept_total`).Add(n)
}

// RegisterStoreSize exposes the live record count. Only the first
// registration for the process wins.
func RegisterStoreSize(size func() int) {
	vmetrics.GetOrCreateGauge(`payment_status_records`, func() float64 {
		return float64(size())
	})
}

func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		vmetrics.WritePrometheus(w, true)
	})
}
