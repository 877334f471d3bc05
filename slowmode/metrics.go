package slowmode

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var slowmodeActivations = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_slowmode_activations",
	Help: "Number of times slow mode was automatically enabled on a channel",
})

var slowmodeReverts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_slowmode_reverts",
	Help: "Number of automatic slow mode reverts",
})
