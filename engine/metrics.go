package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "warden_event_duration_sec",
	Help: "Total duration of gateway event processing",
}, []string{"type"})

var eventProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_event_processed",
	Help: "Number of gateway events processed",
}, []string{"type"})

var eventErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_event_errors",
	Help: "Number of gateway events which failed processing",
}, []string{"type"})

var messagesFilteredCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_messages_filtered",
	Help: "Number of messages deleted by content filters, by reason kind",
}, []string{"reason"})

var slowmodeEnabledCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_slowmode_enabled",
	Help: "Number of times slow mode was applied to a channel",
})

var infractionsCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_infractions",
	Help: "Number of infractions recorded against message authors",
})

var notificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_notifications_sent",
	Help: "Number of chat notifications posted, by kind",
}, []string{"kind"})

var platformErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_platform_errors",
	Help: "Number of failed chat platform calls, by operation",
}, []string{"op"})
