package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "keyvault"
)

const (
	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	// Signing
	signaturesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "signer",
			Name:      "signatures_total",
			Help:      "Total number of signing attempts by key type and outcome",
		},
		[]string{"key_type", "result"},
	)

	signDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "signer",
			Name:      "sign_duration_seconds",
			Help:      "Time taken to resolve a key and produce a signature",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"key_type"},
	)

	// Key resolution
	keyResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "keystore",
			Name:      "resolutions_total",
			Help:      "Total number of private key resolutions by storage variant and outcome",
		},
		[]string{"variant", "result"},
	)

	// Wallet seeds
	seedUnlocksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "wallet",
			Name:      "unlocks_total",
			Help:      "Total number of wallet unlock attempts by outcome",
		},
		[]string{"result"}, // result: "success", "error", "throttled"
	)

	openSeeds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "wallet",
			Name:      "open_seeds",
			Help:      "Number of wallet seeds currently held open in memory",
		},
	)
)

func ObserveSign(keyType string, err error, started time.Time) {
	signaturesTotal.WithLabelValues(keyType, result(err)).Inc()
	signDuration.WithLabelValues(keyType).Observe(time.Since(started).Seconds())
}

func ObserveResolution(variant string, err error) {
	keyResolutionsTotal.WithLabelValues(variant, result(err)).Inc()
}

func ObserveUnlock(outcome string) {
	seedUnlocksTotal.WithLabelValues(outcome).Inc()
}

func SeedOpened() { openSeeds.Inc() }

func SeedClosed() { openSeeds.Dec() }

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
