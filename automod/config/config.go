// Per-tenant moderation settings, with defaults and a validating merge for partial updates.
//
// A TenantConfig is treated as an immutable value: readers get a copy, and updates produce a new value which replaces the old one wholesale (see Resolver).
package config

import (
	"slices"
	"time"
)

// Numeric bounds for config fields. Values outside of these are clamped during merge.
//
// The message-count thresholds can not exceed the per-author history ring (history.DefaultMaxObservations), which holds the only observations the spam detectors see.
const (
	MinMaxMessages = 2
	MaxMaxMessages = 10

	MinTimeWindow = 1
	MaxTimeWindow = 300

	MinMaxDuplicates = 2
	MaxMaxDuplicates = 10

	MinDuplicateTimeWindow = 5
	MaxDuplicateTimeWindow = 3600

	MinCapsPercentage = 10
	MaxCapsPercentage = 100

	MinCapsLength = 1
	MaxCapsLength = 2000

	MinMuteDuration = 60
	MaxMuteDuration = 28 * 24 * 60 * 60

	// hard platform limit on how many days of messages a ban can purge
	MaxBanDeleteDays = 7

	MinThreshold = 1
	MaxThreshold = 1000

	MaxResetTime = 365 * 24 * 60 * 60

	MaxCustomWords    = 500
	MaxWordLength     = 64
	MaxListEntries    = 1000
	MaxPatternEntries = 100
)

type TenantConfig struct {
	Enabled     bool             `json:"enabled"`
	Spam        SpamConfig       `json:"spam"`
	Profanity   ProfanityConfig  `json:"profanity"`
	Links       LinkConfig       `json:"links"`
	Caps        CapsConfig       `json:"caps"`
	Punishments PunishmentConfig `json:"punishments"`
	Escalation  EscalationConfig `json:"escalation"`
	Logging     LoggingConfig    `json:"logging"`
	Exemptions  ExemptionConfig  `json:"exemptions"`
}

type SpamConfig struct {
	Enabled bool `json:"enabled"`
	// number of messages within TimeWindow which counts as spam
	MaxMessages int `json:"maxMessages"`
	// seconds
	TimeWindow          int `json:"timeWindow"`
	MaxDuplicates       int `json:"maxDuplicates"`
	DuplicateTimeWindow int `json:"duplicateTimeWindow"`
}

type ProfanityConfig struct {
	Enabled     bool     `json:"enabled"`
	UseBuiltin  bool     `json:"useBuiltin"`
	CustomWords []string `json:"customWords"`
}

type LinkConfig struct {
	Enabled         bool     `json:"enabled"`
	BlockInvites    bool     `json:"blockInvites"`
	BlockSuspicious bool     `json:"blockSuspicious"`
	Whitelist       []string `json:"whitelist"`
	Patterns        []string `json:"patterns"`
}

type CapsConfig struct {
	Enabled       bool `json:"enabled"`
	MaxPercentage int  `json:"maxPercentage"`
	MinLength     int  `json:"minLength"`
}

type TierConfig struct {
	Enabled       bool `json:"enabled"`
	DeleteMessage bool `json:"deleteMessage"`
}

type MuteConfig struct {
	TierConfig
	// seconds
	Duration int `json:"duration"`
}

type BanConfig struct {
	TierConfig
	DeleteMessageDays int `json:"deleteMessageDays"`
}

type PunishmentConfig struct {
	Warn TierConfig `json:"warn"`
	Mute MuteConfig `json:"mute"`
	Kick TierConfig `json:"kick"`
	Ban  BanConfig  `json:"ban"`
}

type EscalationConfig struct {
	Enabled       bool `json:"enabled"`
	WarnThreshold int  `json:"warnThreshold"`
	MuteThreshold int  `json:"muteThreshold"`
	KickThreshold int  `json:"kickThreshold"`
	BanThreshold  int  `json:"banThreshold"`
	// seconds of inactivity after which an author's violation count starts over. zero disables decay.
	ResetTime int `json:"resetTime"`
}

type LoggingConfig struct {
	Enabled        bool   `json:"enabled"`
	ChannelID      string `json:"channelId"`
	LogViolations  bool   `json:"logViolations"`
	LogPunishments bool   `json:"logPunishments"`
	LogFallbacks   bool   `json:"logFallbacks"`
	IncludeContent bool   `json:"includeContent"`
}

type ExemptionConfig struct {
	Users    []string `json:"users"`
	Roles    []string `json:"roles"`
	Channels []string `json:"channels"`
}

// DefaultLinkPatterns matches link shorteners, IP loggers, and common gift/nitro lookalike hosts.
var DefaultLinkPatterns = []string{
	`(?i)\b(?:https?://)?(?:www\.)?(?:bit\.ly|tinyurl\.com|goo\.gl|ow\.ly|is\.gd|buff\.ly|adf\.ly|shorte\.st|cutt\.ly|rb\.gy)/\S+`,
	`(?i)\b(?:https?://)?(?:www\.)?(?:grabify\.link|iplogger\.(?:org|com|ru)|2no\.co|yip\.su|blasze\.tk)\S*`,
	`(?i)\b(?:https?://)?(?:www\.)?(?:d[il1]sc[o0]rd|dlscord|discorcl|steamcommunlty|stearncommunity)[a-z0-9-]*\.(?:gift|gifts|xyz|ru|tk|ml|ga|cf|site|online|click)\S*`,
}

var DefaultWhitelist = []string{
	"discord.com",
	"github.com",
	"youtube.com",
	"youtu.be",
	"wikipedia.org",
}

// Returns a new default config. Every call returns a fresh value, so callers can't mutate shared state.
func Default() TenantConfig {
	return TenantConfig{
		Enabled: true,
		Spam: SpamConfig{
			Enabled:             true,
			MaxMessages:         5,
			TimeWindow:          10,
			MaxDuplicates:       5,
			DuplicateTimeWindow: 60,
		},
		Profanity: ProfanityConfig{
			Enabled:     true,
			UseBuiltin:  true,
			CustomWords: []string{},
		},
		Links: LinkConfig{
			Enabled:         true,
			BlockInvites:    true,
			BlockSuspicious: true,
			Whitelist:       slices.Clone(DefaultWhitelist),
			Patterns:        slices.Clone(DefaultLinkPatterns),
		},
		Caps: CapsConfig{
			Enabled:       true,
			MaxPercentage: 70,
			MinLength:     10,
		},
		Punishments: PunishmentConfig{
			Warn: TierConfig{Enabled: true, DeleteMessage: true},
			Mute: MuteConfig{TierConfig: TierConfig{Enabled: true, DeleteMessage: true}, Duration: 600},
			Kick: TierConfig{Enabled: true, DeleteMessage: true},
			Ban:  BanConfig{TierConfig: TierConfig{Enabled: true, DeleteMessage: true}, DeleteMessageDays: 1},
		},
		Escalation: EscalationConfig{
			Enabled:       true,
			WarnThreshold: 3,
			MuteThreshold: 5,
			KickThreshold: 8,
			BanThreshold:  10,
			ResetTime:     7 * 24 * 60 * 60,
		},
		Logging: LoggingConfig{
			Enabled:        true,
			LogViolations:  true,
			LogPunishments: true,
			LogFallbacks:   true,
		},
		Exemptions: ExemptionConfig{
			Users:    []string{},
			Roles:    []string{},
			Channels: []string{},
		},
	}
}

// Returns a deep copy; slices are not shared with the receiver.
func (tc TenantConfig) Clone() TenantConfig {
	out := tc
	out.Profanity.CustomWords = slices.Clone(tc.Profanity.CustomWords)
	out.Links.Whitelist = slices.Clone(tc.Links.Whitelist)
	out.Links.Patterns = slices.Clone(tc.Links.Patterns)
	out.Exemptions.Users = slices.Clone(tc.Exemptions.Users)
	out.Exemptions.Roles = slices.Clone(tc.Exemptions.Roles)
	out.Exemptions.Channels = slices.Clone(tc.Exemptions.Channels)
	return out
}

func (sc SpamConfig) Window() time.Duration {
	return time.Duration(sc.TimeWindow) * time.Second
}

func (sc SpamConfig) DuplicateWindow() time.Duration {
	return time.Duration(sc.DuplicateTimeWindow) * time.Second
}

func (mc MuteConfig) Timeout() time.Duration {
	return time.Duration(mc.Duration) * time.Second
}

func (ec EscalationConfig) ResetAfter() time.Duration {
	return time.Duration(ec.ResetTime) * time.Second
}
