package auditlog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var deliveriesCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_audit_deliveries",
	Help: "Number of audit records delivered, by category",
}, []string{"category"})

var repairsCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_audit_endpoint_repairs",
	Help: "Number of webhook endpoint repair attempts, by outcome",
}, []string{"outcome"})

var droppedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_audit_dropped",
	Help: "Number of audit records dropped after failed delivery, by category",
}, []string{"category"})

var deregisteredCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_audit_bindings_deregistered",
	Help: "Number of audit bindings removed because their channel no longer exists",
})

var deliveryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "warden_audit_delivery_duration_sec",
	Help: "Duration of audit record delivery, including repair",
})
