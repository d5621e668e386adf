package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wardenchat/warden/automod/config"
)

const (
	DefaultEnforceTimeout = 5 * time.Second
	// ban, kick, mute
	MaxEnforceAttempts = 3
)

// Applies punishment tiers through the Platform, degrading ban to kick to mute when an attempt fails.
type Enforcer struct {
	Platform Platform
	Logger   *slog.Logger
	// per network call (permission check, action, deletion, notice)
	Timeout time.Duration
}

func NewEnforcer(p Platform, logger *slog.Logger) *Enforcer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enforcer{
		Platform: p,
		Logger:   logger,
		Timeout:  DefaultEnforceTimeout,
	}
}

func (e *Enforcer) timeout() time.Duration {
	if e.Timeout <= 0 {
		return DefaultEnforceTimeout
	}
	return e.Timeout
}

// Deletes the offending message if the tier asks for it, then applies the tier, falling back on failure.
//
// Never returns an error: every failure is described in the outcome, one attempt per tier tried.
func (e *Enforcer) Apply(ctx context.Context, cfg config.TenantConfig, msg *MessageEvent, tier Tier, reason string) EnforcementOutcome {
	out := EnforcementOutcome{
		Requested: tier,
		Attempts:  []EnforcementAttempt{},
	}
	logger := e.Logger.With("tenant", msg.TenantID, "author", msg.AuthorID)

	if tierSettings(cfg, tier).DeleteMessage && msg.MessageID != "" {
		out.Deletion = e.deleteMessage(ctx, msg, logger)
	}

	cur := tier
	for i := 0; i < MaxEnforceAttempts; i++ {
		start := time.Now()
		err := e.applyTier(ctx, cfg, msg, cur, reason, logger)
		attempt := EnforcementAttempt{
			Tier:     cur,
			Success:  err == nil,
			Duration: time.Since(start),
		}
		if err != nil {
			attempt.Reason = err.Error()
		}
		out.Attempts = append(out.Attempts, attempt)
		enforceAttemptCount.WithLabelValues(cur.String(), fmt.Sprint(err == nil)).Inc()

		if err == nil {
			out.Success = true
			out.Applied = cur
			out.FailureReason = ""
			break
		}
		logger.Info("enforcement attempt failed", "tier", cur, "err", err)
		out.FailureReason = err.Error()
		next, ok := cur.Fallback()
		if !ok {
			break
		}
		cur = next
	}

	if out.Success && out.Applied != TierWarn {
		e.sendNotice(ctx, msg, out.Applied, cfg, reason, logger)
	}
	return out
}

func tierSettings(cfg config.TenantConfig, tier Tier) config.TierConfig {
	switch tier {
	case TierWarn:
		return cfg.Punishments.Warn
	case TierMute:
		return cfg.Punishments.Mute.TierConfig
	case TierKick:
		return cfg.Punishments.Kick
	case TierBan:
		return cfg.Punishments.Ban.TierConfig
	default:
		return config.TierConfig{}
	}
}

func (e *Enforcer) applyTier(ctx context.Context, cfg config.TenantConfig, msg *MessageEvent, tier Tier, reason string, logger *slog.Logger) error {
	if !tierSettings(cfg, tier).Enabled {
		return ErrTierDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	if tier == TierWarn {
		text := fmt.Sprintf("You have been warned: %s", reason)
		if err := e.Platform.SendDirectMessage(ctx, msg.AuthorID, text); err != nil {
			// the author may have DMs closed; the warning still counts
			logger.Info("failed to deliver warning", "err", err)
		}
		return nil
	}

	perms, err := e.Platform.Permissions(ctx, msg.TenantID, msg.AuthorID)
	if err != nil {
		return fmt.Errorf("fetching permissions: %w", err)
	}

	switch tier {
	case TierMute:
		if !perms.CanMute {
			return fmt.Errorf("%w: mute", ErrPermissionDenied)
		}
		return e.Platform.Mute(ctx, msg.TenantID, msg.AuthorID, cfg.Punishments.Mute.Timeout(), reason)
	case TierKick:
		if !perms.CanKick {
			return fmt.Errorf("%w: kick", ErrPermissionDenied)
		}
		if perms.TargetRank >= perms.EnforcerRank {
			return ErrRankTooLow
		}
		return e.Platform.Kick(ctx, msg.TenantID, msg.AuthorID, reason)
	case TierBan:
		if !perms.CanBan {
			return fmt.Errorf("%w: ban", ErrPermissionDenied)
		}
		if perms.TargetRank >= perms.EnforcerRank {
			return ErrRankTooLow
		}
		days := min(max(cfg.Punishments.Ban.DeleteMessageDays, 0), config.MaxBanDeleteDays)
		return e.Platform.Ban(ctx, msg.TenantID, msg.AuthorID, reason, days)
	default:
		return fmt.Errorf("unhandled tier: %s", tier)
	}
}

func (e *Enforcer) deleteMessage(ctx context.Context, msg *MessageEvent, logger *slog.Logger) *DeletionResult {
	ctx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	if err := e.Platform.DeleteMessage(ctx, msg.TenantID, msg.ChannelID, msg.MessageID); err != nil {
		logger.Warn("failed to delete message", "channel", msg.ChannelID, "message", msg.MessageID, "err", err)
		return &DeletionResult{FailureReason: err.Error()}
	}
	return &DeletionResult{Success: true}
}

func (e *Enforcer) sendNotice(ctx context.Context, msg *MessageEvent, tier Tier, cfg config.TenantConfig, reason string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	var text string
	switch tier {
	case TierMute:
		text = fmt.Sprintf("You have been muted for %s: %s", cfg.Punishments.Mute.Timeout(), reason)
	case TierKick:
		text = fmt.Sprintf("You have been kicked: %s", reason)
	case TierBan:
		text = fmt.Sprintf("You have been banned: %s", reason)
	}
	if err := e.Platform.SendDirectMessage(ctx, msg.AuthorID, text); err != nil {
		logger.Debug("failed to deliver punishment notice", "tier", tier, "err", err)
	}
}

// True if the error came from a permission or rank check, as opposed to a platform failure.
func IsPrivilegeError(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrRankTooLow)
}
