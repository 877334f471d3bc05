package aggregate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var batchesOpened = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_aggregate_batches_opened",
	Help: "Number of debounce windows opened, by notification kind",
}, []string{"kind"})

var batchSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "warden_aggregate_batch_size",
	Help:    "Number of members in each rendered batch",
	Buckets: prometheus.ExponentialBuckets(1, 2, 10),
}, []string{"kind"})
