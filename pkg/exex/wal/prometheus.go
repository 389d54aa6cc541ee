package wal

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics for monitoring service.
var (
	// notificationsCount prometheus metric.
	notificationsCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Help:      "Number of notifications in WAL",
			Name:      "wal_notifications",
			Namespace: "neoexex",
		},
	)
	// lowestBlock prometheus metric.
	lowestBlock = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Help:      "Lowest block index referenced by WAL notifications",
			Name:      "wal_lowest_block",
			Namespace: "neoexex",
		},
	)
	// highestBlock prometheus metric.
	highestBlock = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Help:      "Highest block index referenced by WAL notifications",
			Name:      "wal_highest_block",
			Namespace: "neoexex",
		},
	)
)

func init() {
	prometheus.MustRegister(
		notificationsCount,
		lowestBlock,
		highestBlock,
	)
}

func updateWALMetrics(count int, low, high uint32) {
	notificationsCount.Set(float64(count))
	lowestBlock.Set(float64(low))
	highestBlock.Set(float64(high))
}
