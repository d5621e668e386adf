package engine

import (
	"testing"

	"github.com/wardenchat/warden/automod/config"

	"github.com/stretchr/testify/assert"
)

func TestTierForCount(t *testing.T) {
	assert := assert.New(t)

	esc := config.Default().Escalation
	fixtures := []struct {
		count int
		tier  Tier
	}{
		{count: 0, tier: TierWarn},
		{count: 1, tier: TierWarn},
		{count: 3, tier: TierWarn},
		{count: 5, tier: TierMute},
		{count: 7, tier: TierMute},
		{count: 8, tier: TierKick},
		{count: 10, tier: TierBan},
		{count: 500, tier: TierBan},
	}
	for _, fix := range fixtures {
		assert.Equal(fix.tier, TierForCount(esc, fix.count), "count=%d", fix.count)
	}

	esc.Enabled = false
	assert.Equal(TierWarn, TierForCount(esc, 500))
}

func TestDeterminePunishmentSequence(t *testing.T) {
	assert := assert.New(t)

	esc := config.EscalationConfig{
		Enabled:       true,
		WarnThreshold: 1,
		MuteThreshold: 3,
		KickThreshold: 5,
		BanThreshold:  8,
	}
	expected := []Tier{TierWarn, TierWarn, TierMute, TierMute, TierKick}
	escalated := []bool{false, false, true, false, true}
	for i := range expected {
		count := i + 1
		tier, esc := DeterminePunishment(esc, count, count-1)
		assert.Equal(expected[i], tier, "count=%d", count)
		assert.Equal(escalated[i], esc, "count=%d", count)
	}
}

func TestTierFallbackChain(t *testing.T) {
	assert := assert.New(t)

	next, ok := TierBan.Fallback()
	assert.True(ok)
	assert.Equal(TierKick, next)
	next, ok = TierKick.Fallback()
	assert.True(ok)
	assert.Equal(TierMute, next)
	_, ok = TierMute.Fallback()
	assert.False(ok)
	_, ok = TierWarn.Fallback()
	assert.False(ok)

	for _, tier := range []Tier{TierWarn, TierMute, TierKick, TierBan} {
		parsed, err := ParseTier(tier.String())
		assert.NoError(err)
		assert.Equal(tier, parsed)
	}
	_, err := ParseTier("exile")
	assert.Error(err)
}
