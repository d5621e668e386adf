package engine

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/wardenchat/warden/automod/config"

	"github.com/stretchr/testify/assert"
)

func TestEnforceBanFallsBackToMute(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	p := NewMockPlatform()
	p.Perms["u1"] = Permissions{CanMute: true, EnforcerRank: 10, TargetRank: 1}
	enf := NewEnforcer(p, slog.Default())

	msg := TestMessage("guild1", "u1", "whatever")
	out := enf.Apply(ctx, config.Default(), msg, TierBan, "spam")
	assert.True(out.Success)
	assert.Equal(TierBan, out.Requested)
	assert.Equal(TierMute, out.Applied)
	assert.True(out.FellBack())
	assert.Len(out.Attempts, 3)
	assert.False(out.Attempts[0].Success)
	assert.Contains(out.Attempts[0].Reason, ErrPermissionDenied.Error())
	assert.Equal(TierKick, out.Attempts[1].Tier)
	assert.True(out.Attempts[2].Success)
	assert.NotNil(out.Deletion)
	assert.True(out.Deletion.Success)

	// deletion first, permissions re-fetched for every attempt, then notice
	assert.Equal([]string{"DeleteMessage", "Permissions", "Permissions", "Permissions", "Mute", "SendDirectMessage"}, p.Methods())
}

func TestEnforceRankCheck(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	p := NewMockPlatform()
	p.Perms["mod"] = Permissions{CanMute: true, CanKick: true, CanBan: true, EnforcerRank: 5, TargetRank: 5}
	enf := NewEnforcer(p, slog.Default())

	out := enf.Apply(ctx, config.Default(), TestMessage("guild1", "mod", "x"), TierKick, "caps")
	assert.True(out.Success)
	assert.Equal(TierMute, out.Applied)
	assert.Equal(ErrRankTooLow.Error(), out.Attempts[0].Reason)
	assert.True(IsPrivilegeError(ErrRankTooLow))
	assert.False(IsPrivilegeError(errors.New("gateway timeout")))
}

func TestEnforceMuteFailureIsTerminal(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	p := NewMockPlatform()
	enf := NewEnforcer(p, slog.Default())

	out := enf.Apply(ctx, config.Default(), TestMessage("guild1", "u1", "x"), TierMute, "caps")
	assert.False(out.Success)
	assert.Equal(TierNone, out.Applied)
	assert.Len(out.Attempts, 1)
	assert.NotEmpty(out.FailureReason)

	// nothing allowed at all: three attempts, then give up
	out = enf.Apply(ctx, config.Default(), TestMessage("guild1", "u1", "x"), TierBan, "caps")
	assert.False(out.Success)
	assert.Len(out.Attempts, MaxEnforceAttempts)
}

func TestEnforceDisabledTier(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	p := NewMockPlatform()
	p.DefaultPerms = Permissions{CanMute: true, CanKick: true, CanBan: true, EnforcerRank: 10}
	enf := NewEnforcer(p, slog.Default())

	cfg := config.Default()
	cfg.Punishments.Ban.Enabled = false
	cfg.Punishments.Ban.DeleteMessage = false
	out := enf.Apply(ctx, cfg, TestMessage("guild1", "u1", "x"), TierBan, "links")
	assert.True(out.Success)
	assert.Equal(TierKick, out.Applied)
	assert.Equal(ErrTierDisabled.Error(), out.Attempts[0].Reason)
	assert.Nil(out.Deletion)
	// a disabled tier makes no platform calls
	assert.Equal([]string{"Permissions", "Kick", "SendDirectMessage"}, p.Methods())
}

func TestEnforceWarn(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	p := NewMockPlatform()
	p.Errors["SendDirectMessage"] = errors.New("cannot send messages to this user")
	p.Errors["DeleteMessage"] = errors.New("unknown message")
	enf := NewEnforcer(p, slog.Default())

	out := enf.Apply(ctx, config.Default(), TestMessage("guild1", "u1", "x"), TierWarn, "profanity")
	assert.True(out.Success)
	assert.Equal(TierWarn, out.Applied)
	assert.False(out.Deletion.Success)
	assert.Equal("unknown message", out.Deletion.FailureReason)
	assert.Equal([]string{"DeleteMessage", "SendDirectMessage"}, p.Methods())
}

func TestEnforceBanDeleteDaysClamped(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	p := NewMockPlatform()
	p.DefaultPerms = Permissions{CanBan: true, EnforcerRank: 10}
	enf := NewEnforcer(p, slog.Default())

	cfg := config.Default()
	cfg.Punishments.Ban.DeleteMessageDays = 30
	out := enf.Apply(ctx, cfg, TestMessage("guild1", "u1", "x"), TierBan, "spam")
	assert.True(out.Success)
	for _, c := range p.Calls() {
		if c.Method == "Ban" {
			assert.Equal("7", c.Detail)
		}
	}
}
