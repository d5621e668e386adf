// Destinations for moderation audit records: structured logs, a Slack channel, and a SQL table.
//
// Every type here implements engine.AuditSink. Combine several with MultiSink.
package auditlog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wardenchat/warden/automod/engine"
)

// Sends each record to every sink. All sinks are attempted; errors are joined.
type MultiSink []engine.AuditSink

var _ engine.AuditSink = MultiSink(nil)

func (m MultiSink) Record(ctx context.Context, rec engine.AuditRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// One-line human readable description of a record, as posted to chat channels.
func Summary(rec engine.AuditRecord) string {
	var sb strings.Builder
	switch rec.Kind {
	case engine.AuditViolation:
		fmt.Fprintf(&sb, "Violation (%s) by <@%s>: %s", rec.ViolationType, rec.AuthorID, rec.Reason)
		fmt.Fprintf(&sb, " [count=%d, tier=%s]", rec.ViolationCount, rec.RequestedTier)
	case engine.AuditDeletion:
		if rec.Success {
			fmt.Fprintf(&sb, "Deleted message %s from <@%s>", rec.MessageID, rec.AuthorID)
		} else {
			fmt.Fprintf(&sb, "Failed to delete message %s from <@%s>: %s", rec.MessageID, rec.AuthorID, rec.FailureReason)
		}
	case engine.AuditEnforcement:
		label := "Punishment"
		if rec.IsFallback() {
			label = "Fallback punishment"
		}
		if rec.Success {
			fmt.Fprintf(&sb, "%s: %s applied to <@%s> (requested %s): %s", label, rec.AppliedTier, rec.AuthorID, rec.RequestedTier, rec.Reason)
		} else {
			fmt.Fprintf(&sb, "%s failed (attempt %d, requested %s) for <@%s>: %s", label, rec.Attempt, rec.RequestedTier, rec.AuthorID, rec.FailureReason)
		}
	default:
		fmt.Fprintf(&sb, "%s for <@%s>", rec.Kind, rec.AuthorID)
	}
	if rec.Attachments > 0 {
		fmt.Fprintf(&sb, " (%d attachments)", rec.Attachments)
	}
	if rec.Content != "" {
		fmt.Fprintf(&sb, "\n> %s", strings.ReplaceAll(rec.Content, "\n", "\n> "))
	}
	return sb.String()
}
