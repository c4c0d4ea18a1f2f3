package metrics

import (
	"github.com/khanghh/konbase/params"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultRejected = "rejected"
	ResultLocked   = "locked"
	ResultError    = "error"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: params.MetricsNamespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: params.MetricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	TwoFactorSetupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: params.MetricsNamespace,
			Name:      "twofactor_setups_total",
			Help:      "Total number of 2FA setup attempts.",
		},
		[]string{"result"},
	)

	TwoFactorVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: params.MetricsNamespace,
			Name:      "twofactor_verifications_total",
			Help:      "Total number of TOTP and recovery key checks.",
		},
		[]string{"flow", "result"},
	)

	TwoFactorDisablesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: params.MetricsNamespace,
			Name:      "twofactor_disables_total",
			Help:      "Total number of 2FA disable requests.",
		},
		[]string{"result"},
	)

	ElevationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: params.MetricsNamespace,
			Name:      "elevations_total",
			Help:      "Total number of privilege elevation attempts.",
		},
		[]string{"result"},
	)
)

func MustRegister() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		TwoFactorSetupsTotal,
		TwoFactorVerificationsTotal,
		TwoFactorDisablesTotal,
		ElevationsTotal,
	)
}
