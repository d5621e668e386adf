package engine

import (
	"context"
	"log/slog"
	"time"
)

// Platform which only logs the actions it is asked to take, and reports full permissions. Used when no platform is configured.
type DryRunPlatform struct {
	Logger *slog.Logger
}

var _ Platform = (*DryRunPlatform)(nil)

func NewDryRunPlatform(logger *slog.Logger) *DryRunPlatform {
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRunPlatform{Logger: logger.With("platform", "dry-run")}
}

func (p *DryRunPlatform) Permissions(ctx context.Context, tenantID, userID string) (Permissions, error) {
	return Permissions{CanMute: true, CanKick: true, CanBan: true, EnforcerRank: 1, TargetRank: 0}, nil
}

func (p *DryRunPlatform) Mute(ctx context.Context, tenantID, userID string, duration time.Duration, reason string) error {
	p.Logger.Info("dry-run mute", "tenant", tenantID, "user", userID, "duration", duration, "reason", reason)
	return nil
}

func (p *DryRunPlatform) Kick(ctx context.Context, tenantID, userID, reason string) error {
	p.Logger.Info("dry-run kick", "tenant", tenantID, "user", userID, "reason", reason)
	return nil
}

func (p *DryRunPlatform) Ban(ctx context.Context, tenantID, userID, reason string, deleteMessageDays int) error {
	p.Logger.Info("dry-run ban", "tenant", tenantID, "user", userID, "reason", reason, "deleteMessageDays", deleteMessageDays)
	return nil
}

func (p *DryRunPlatform) SendDirectMessage(ctx context.Context, userID, text string) error {
	p.Logger.Info("dry-run direct message", "user", userID, "text", text)
	return nil
}

func (p *DryRunPlatform) DeleteMessage(ctx context.Context, tenantID, channelID, messageID string) error {
	p.Logger.Info("dry-run delete message", "tenant", tenantID, "channel", channelID, "message", messageID)
	return nil
}
