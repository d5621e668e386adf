package auditlog

import (
	"context"
	"log/slog"

	"github.com/wardenchat/warden/automod/engine"
)

// Writes audit records as structured log lines.
type LogSink struct {
	Logger *slog.Logger
}

var _ engine.AuditSink = (*LogSink)(nil)

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{Logger: logger.With("component", "audit")}
}

func (s *LogSink) Record(ctx context.Context, rec engine.AuditRecord) error {
	args := []any{
		"kind", rec.Kind,
		"tenant", rec.TenantID,
		"author", rec.AuthorID,
		"channel", rec.ChannelID,
		"message", rec.MessageID,
		"success", rec.Success,
	}
	if rec.ViolationType != "" {
		args = append(args, "violationType", rec.ViolationType, "reason", rec.Reason, "violationCount", rec.ViolationCount)
	}
	if rec.Kind == engine.AuditEnforcement {
		args = append(args, "requested", rec.RequestedTier, "applied", rec.AppliedTier, "attempt", rec.Attempt)
	}
	if rec.FailureReason != "" {
		args = append(args, "failureReason", rec.FailureReason)
	}
	level := slog.LevelInfo
	if !rec.Success && rec.Kind != engine.AuditViolation {
		level = slog.LevelWarn
	}
	s.Logger.Log(ctx, level, "moderation audit", args...)
	return nil
}
