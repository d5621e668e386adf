package engine

import (
	"context"
	"time"

	"github.com/wardenchat/warden/automod/config"
	"github.com/wardenchat/warden/automod/keyword"
)

const (
	DefaultAuditTimeout = 5 * time.Second
	// message content included in audit records is cut to this many runes
	MaxAuditContentRunes = 500
)

type AuditKind string

const (
	AuditViolation   AuditKind = "violation"
	AuditEnforcement AuditKind = "enforcement"
	AuditDeletion    AuditKind = "deletion"
)

type AuditRecord struct {
	Timestamp      time.Time     `json:"timestamp"`
	Kind           AuditKind     `json:"kind"`
	TenantID       string        `json:"tenantId"`
	AuthorID       string        `json:"authorId"`
	ChannelID      string        `json:"channelId,omitempty"`
	MessageID      string        `json:"messageId,omitempty"`
	ViolationType  ViolationType `json:"violationType,omitempty"`
	Reason         string        `json:"reason,omitempty"`
	ViolationCount int           `json:"violationCount,omitempty"`
	RequestedTier  Tier          `json:"requestedTier"`
	AppliedTier    Tier          `json:"appliedTier"`
	// 1-based position in the fallback chain; zero for non-enforcement records
	Attempt       int    `json:"attempt,omitempty"`
	Success       bool   `json:"success"`
	FailureReason string `json:"failureReason,omitempty"`
	// tenant's configured log channel, if any
	Destination string `json:"destination,omitempty"`
	// only populated when the tenant opted in to content logging
	Content     string `json:"content,omitempty"`
	Attachments int    `json:"attachments,omitempty"`
}

// True for enforcement records which describe a fallback (not the originally requested tier).
func (r *AuditRecord) IsFallback() bool {
	return r.Kind == AuditEnforcement && r.Attempt > 1
}

// Receives audit records. Implementations may do network I/O; Record is called with a deadline.
type AuditSink interface {
	Record(ctx context.Context, rec AuditRecord) error
}

// Whether the tenant's logging settings ask for this kind of record.
func auditWanted(lc config.LoggingConfig, rec *AuditRecord) bool {
	if !lc.Enabled {
		return false
	}
	switch {
	case rec.Kind == AuditViolation:
		return lc.LogViolations
	case rec.IsFallback():
		return lc.LogFallbacks
	default:
		return lc.LogPunishments
	}
}

// Sends one record to the audit sink, subject to the tenant's logging settings. Failures are logged, never returned.
func (eng *Engine) emitAudit(ctx context.Context, cfg config.TenantConfig, msg *MessageEvent, rec AuditRecord) {
	if eng.Audit == nil || !auditWanted(cfg.Logging, &rec) {
		return
	}
	rec.Timestamp = eng.now()
	rec.TenantID = msg.TenantID
	rec.AuthorID = msg.AuthorID
	rec.ChannelID = msg.ChannelID
	rec.MessageID = msg.MessageID
	rec.Destination = cfg.Logging.ChannelID
	rec.Attachments = msg.AttachmentCount
	if cfg.Logging.IncludeContent {
		rec.Content = keyword.TruncateRunes(msg.Content, MaxAuditContentRunes)
	}

	timeout := eng.AuditTimeout
	if timeout <= 0 {
		timeout = DefaultAuditTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := eng.Audit.Record(ctx, rec); err != nil {
		auditErrorCount.WithLabelValues(string(rec.Kind)).Inc()
		eng.Logger.Warn("failed to record audit entry", "tenant", msg.TenantID, "kind", rec.Kind, "err", err)
		return
	}
	auditRecordCount.WithLabelValues(string(rec.Kind)).Inc()
}
