package msgcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheHits = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_msgcache_hits",
	Help: "Number of message cache lookups which found the message",
})

var cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_msgcache_misses",
	Help: "Number of message cache lookups which did not find the message",
})

var cacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_msgcache_evictions",
	Help: "Number of messages removed from the cache, by capacity or explicit removal",
})
