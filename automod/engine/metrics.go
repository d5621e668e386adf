package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messageProcessDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "warden_message_duration_sec",
	Help: "Total duration of message processing, including enforcement",
})

var messageProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_messages_processed",
	Help: "Number of messages processed, by result",
}, []string{"result"})

var messageErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_message_errors",
	Help: "Number of messages which failed processing (recovered panics)",
})

var violationCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_violations",
	Help: "Number of violations detected, by type",
}, []string{"type"})

var punishmentCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_punishments",
	Help: "Number of punishments applied, by requested and applied tier",
}, []string{"requested", "applied"})

var enforceAttemptCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_enforcement_attempts",
	Help: "Number of enforcement attempts, by tier and success",
}, []string{"tier", "success"})

var auditRecordCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_audit_records",
	Help: "Number of audit records delivered, by kind",
}, []string{"kind"})

var auditErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_audit_errors",
	Help: "Number of audit records which failed to deliver, by kind",
}, []string{"kind"})
