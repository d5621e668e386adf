package engine

import (
	"github.com/wardenchat/warden/automod/config"
)

// Maps a violation count to a punishment tier: the most severe tier whose threshold the count has reached, or warn. With escalation disabled, always warn.
func TierForCount(esc config.EscalationConfig, count int) Tier {
	if !esc.Enabled {
		return TierWarn
	}
	switch {
	case count >= esc.BanThreshold:
		return TierBan
	case count >= esc.KickThreshold:
		return TierKick
	case count >= esc.MuteThreshold:
		return TierMute
	default:
		return TierWarn
	}
}

// Tier for the author's new violation count, and whether it is more severe than what their previous count called for.
func DeterminePunishment(esc config.EscalationConfig, count, previous int) (Tier, bool) {
	tier := TierForCount(esc, count)
	return tier, tier > TierForCount(esc, previous)
}
