// Package metrics exposes the application's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "loyaltix",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loyaltix",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "loyaltix",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)

	otpIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "loyaltix",
			Subsystem: "auth",
			Name:      "otp_issued_total",
			Help:      "Total number of OTP codes issued.",
		},
	)

	otpConfirmed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loyaltix",
			Subsystem: "auth",
			Name:      "otp_confirmations_total",
			Help:      "Total number of OTP confirmation attempts.",
		},
		[]string{"result"},
	)

	smsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loyaltix",
			Subsystem: "auth",
			Name:      "sms_rejected_total",
			Help:      "OTP requests rejected before dispatch.",
		},
		[]string{"reason"},
	)
)

func init() {
	Registry.MustRegister(httpInFlight, httpRequests, httpDuration,
		otpIssued, otpConfirmed, smsRejected)
}

// Handler serves the registry for GET /metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one handled request.
func ObserveHTTP(method, path string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncInFlight / DecInFlight bracket request handling.
func IncInFlight() { httpInFlight.Inc() }
func DecInFlight() { httpInFlight.Dec() }

// OTPIssued counts a successfully dispatched code.
func OTPIssued() { otpIssued.Inc() }

// OTPConfirmed counts a confirmation attempt by result ("ok", "rejected").
func OTPConfirmed(result string) { otpConfirmed.WithLabelValues(result).Inc() }

// SMSRejected counts a pre-dispatch rejection ("cooldown", "quota").
func SMSRejected(reason string) { smsRejected.WithLabelValues(reason).Inc() }
