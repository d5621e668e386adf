package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/wardenchat/warden/automod/helpers"
)

// Partial update to a TenantConfig. Nil fields (and nil sections) are left unchanged by Merge.
type Patch struct {
	Enabled     *bool            `json:"enabled,omitempty"`
	Spam        *SpamPatch       `json:"spam,omitempty"`
	Profanity   *ProfanityPatch  `json:"profanity,omitempty"`
	Links       *LinkPatch       `json:"links,omitempty"`
	Caps        *CapsPatch       `json:"caps,omitempty"`
	Punishments *PunishmentPatch `json:"punishments,omitempty"`
	Escalation  *EscalationPatch `json:"escalation,omitempty"`
	Logging     *LoggingPatch    `json:"logging,omitempty"`
	Exemptions  *ExemptionPatch  `json:"exemptions,omitempty"`
}

type SpamPatch struct {
	Enabled             *bool `json:"enabled,omitempty"`
	MaxMessages         *int  `json:"maxMessages,omitempty"`
	TimeWindow          *int  `json:"timeWindow,omitempty"`
	MaxDuplicates       *int  `json:"maxDuplicates,omitempty"`
	DuplicateTimeWindow *int  `json:"duplicateTimeWindow,omitempty"`
}

type ProfanityPatch struct {
	Enabled     *bool     `json:"enabled,omitempty"`
	UseBuiltin  *bool     `json:"useBuiltin,omitempty"`
	CustomWords *[]string `json:"customWords,omitempty"`
}

type LinkPatch struct {
	Enabled         *bool     `json:"enabled,omitempty"`
	BlockInvites    *bool     `json:"blockInvites,omitempty"`
	BlockSuspicious *bool     `json:"blockSuspicious,omitempty"`
	Whitelist       *[]string `json:"whitelist,omitempty"`
	Patterns        *[]string `json:"patterns,omitempty"`
}

type CapsPatch struct {
	Enabled       *bool `json:"enabled,omitempty"`
	MaxPercentage *int  `json:"maxPercentage,omitempty"`
	MinLength     *int  `json:"minLength,omitempty"`
}

type TierPatch struct {
	Enabled       *bool `json:"enabled,omitempty"`
	DeleteMessage *bool `json:"deleteMessage,omitempty"`
}

type MutePatch struct {
	TierPatch
	Duration *int `json:"duration,omitempty"`
}

type BanPatch struct {
	TierPatch
	DeleteMessageDays *int `json:"deleteMessageDays,omitempty"`
}

type PunishmentPatch struct {
	Warn *TierPatch `json:"warn,omitempty"`
	Mute *MutePatch `json:"mute,omitempty"`
	Kick *TierPatch `json:"kick,omitempty"`
	Ban  *BanPatch  `json:"ban,omitempty"`
}

type EscalationPatch struct {
	Enabled       *bool `json:"enabled,omitempty"`
	WarnThreshold *int  `json:"warnThreshold,omitempty"`
	MuteThreshold *int  `json:"muteThreshold,omitempty"`
	KickThreshold *int  `json:"kickThreshold,omitempty"`
	BanThreshold  *int  `json:"banThreshold,omitempty"`
	ResetTime     *int  `json:"resetTime,omitempty"`
}

type LoggingPatch struct {
	Enabled        *bool   `json:"enabled,omitempty"`
	ChannelID      *string `json:"channelId,omitempty"`
	LogViolations  *bool   `json:"logViolations,omitempty"`
	LogPunishments *bool   `json:"logPunishments,omitempty"`
	LogFallbacks   *bool   `json:"logFallbacks,omitempty"`
	IncludeContent *bool   `json:"includeContent,omitempty"`
}

type ExemptionPatch struct {
	Users    *[]string `json:"users,omitempty"`
	Roles    *[]string `json:"roles,omitempty"`
	Channels *[]string `json:"channels,omitempty"`
}

// Decodes a JSON object in to a Patch, one field at a time.
//
// A field which has the wrong JSON type is skipped (and described in the returned warnings) instead of failing the whole update. Only a body which isn't a JSON object at all is an error.
func ParsePatch(raw []byte) (Patch, []string, error) {
	var p Patch
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return p, nil, fmt.Errorf("config patch must be a JSON object: %w", err)
	}
	warnings := decodeLenient("", obj, reflect.ValueOf(&p).Elem(), false)
	return p, warnings, nil
}

func decodeLenient(prefix string, obj map[string]json.RawMessage, dst reflect.Value, embedded bool) []string {
	var warnings []string
	known := make(map[string]bool)
	t := dst.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fv := dst.Field(i)
		if field.Anonymous {
			// embedded sections (eg, TierPatch in MutePatch) share the parent JSON object
			warnings = append(warnings, decodeLenient(prefix, obj, fv, true)...)
			for k := range jsonKeys(field.Type) {
				known[k] = true
			}
			continue
		}
		name := strings.Split(field.Tag.Get("json"), ",")[0]
		known[name] = true
		val, ok := obj[name]
		if !ok || string(val) == "null" {
			continue
		}
		elem := field.Type.Elem()
		if elem.Kind() == reflect.Struct {
			var sub map[string]json.RawMessage
			if err := json.Unmarshal(val, &sub); err != nil {
				warnings = append(warnings, fmt.Sprintf("%s%s: expected object", prefix, name))
				continue
			}
			ptr := reflect.New(elem)
			warnings = append(warnings, decodeLenient(prefix+name+".", sub, ptr.Elem(), false)...)
			fv.Set(ptr)
			continue
		}
		ptr := reflect.New(elem)
		if err := json.Unmarshal(val, ptr.Interface()); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s%s: invalid value (%s)", prefix, name, err))
			continue
		}
		fv.Set(ptr)
	}
	// embedded structs share their parent's object, so only the parent reports unknown keys
	if !embedded {
		for k := range obj {
			if !known[k] {
				warnings = append(warnings, fmt.Sprintf("%s%s: unknown field", prefix, k))
			}
		}
	}
	slices.Sort(warnings)
	return warnings
}

func jsonKeys(t reflect.Type) map[string]bool {
	out := make(map[string]bool)
	for i := 0; i < t.NumField(); i++ {
		name := strings.Split(t.Field(i).Tag.Get("json"), ",")[0]
		out[name] = true
	}
	return out
}

// Applies a patch on top of base, returning a new value. The base config is not modified.
//
// Each section is validated independently: numbers are clamped to their allowed range, strings are trimmed, and lists are de-duplicated. Escalation thresholds which end up out of order are replaced with the defaults.
func Merge(base TenantConfig, p Patch) TenantConfig {
	out := base.Clone()
	def := Default()

	setBool(&out.Enabled, p.Enabled)

	if s := p.Spam; s != nil {
		setBool(&out.Spam.Enabled, s.Enabled)
		setInt(&out.Spam.MaxMessages, s.MaxMessages, MinMaxMessages, MaxMaxMessages)
		setInt(&out.Spam.TimeWindow, s.TimeWindow, MinTimeWindow, MaxTimeWindow)
		setInt(&out.Spam.MaxDuplicates, s.MaxDuplicates, MinMaxDuplicates, MaxMaxDuplicates)
		setInt(&out.Spam.DuplicateTimeWindow, s.DuplicateTimeWindow, MinDuplicateTimeWindow, MaxDuplicateTimeWindow)
	}

	if s := p.Profanity; s != nil {
		setBool(&out.Profanity.Enabled, s.Enabled)
		setBool(&out.Profanity.UseBuiltin, s.UseBuiltin)
		if s.CustomWords != nil {
			out.Profanity.CustomWords = cleanWords(*s.CustomWords)
		}
	}

	if s := p.Links; s != nil {
		setBool(&out.Links.Enabled, s.Enabled)
		setBool(&out.Links.BlockInvites, s.BlockInvites)
		setBool(&out.Links.BlockSuspicious, s.BlockSuspicious)
		if s.Whitelist != nil {
			out.Links.Whitelist = cleanHosts(*s.Whitelist)
		}
		if s.Patterns != nil {
			out.Links.Patterns = cleanList(*s.Patterns, MaxPatternEntries, false)
		}
	}

	if s := p.Caps; s != nil {
		setBool(&out.Caps.Enabled, s.Enabled)
		setInt(&out.Caps.MaxPercentage, s.MaxPercentage, MinCapsPercentage, MaxCapsPercentage)
		setInt(&out.Caps.MinLength, s.MinLength, MinCapsLength, MaxCapsLength)
	}

	if s := p.Punishments; s != nil {
		if s.Warn != nil {
			mergeTier(&out.Punishments.Warn, s.Warn)
		}
		if s.Mute != nil {
			mergeTier(&out.Punishments.Mute.TierConfig, &s.Mute.TierPatch)
			setInt(&out.Punishments.Mute.Duration, s.Mute.Duration, MinMuteDuration, MaxMuteDuration)
		}
		if s.Kick != nil {
			mergeTier(&out.Punishments.Kick, s.Kick)
		}
		if s.Ban != nil {
			mergeTier(&out.Punishments.Ban.TierConfig, &s.Ban.TierPatch)
			setInt(&out.Punishments.Ban.DeleteMessageDays, s.Ban.DeleteMessageDays, 0, MaxBanDeleteDays)
		}
	}

	if s := p.Escalation; s != nil {
		setBool(&out.Escalation.Enabled, s.Enabled)
		setInt(&out.Escalation.WarnThreshold, s.WarnThreshold, MinThreshold, MaxThreshold)
		setInt(&out.Escalation.MuteThreshold, s.MuteThreshold, MinThreshold, MaxThreshold)
		setInt(&out.Escalation.KickThreshold, s.KickThreshold, MinThreshold, MaxThreshold)
		setInt(&out.Escalation.BanThreshold, s.BanThreshold, MinThreshold, MaxThreshold)
		setInt(&out.Escalation.ResetTime, s.ResetTime, 0, MaxResetTime)
		if !thresholdsOrdered(out.Escalation) {
			out.Escalation.WarnThreshold = def.Escalation.WarnThreshold
			out.Escalation.MuteThreshold = def.Escalation.MuteThreshold
			out.Escalation.KickThreshold = def.Escalation.KickThreshold
			out.Escalation.BanThreshold = def.Escalation.BanThreshold
		}
	}

	if s := p.Logging; s != nil {
		setBool(&out.Logging.Enabled, s.Enabled)
		if s.ChannelID != nil {
			out.Logging.ChannelID = strings.TrimSpace(*s.ChannelID)
		}
		setBool(&out.Logging.LogViolations, s.LogViolations)
		setBool(&out.Logging.LogPunishments, s.LogPunishments)
		setBool(&out.Logging.LogFallbacks, s.LogFallbacks)
		setBool(&out.Logging.IncludeContent, s.IncludeContent)
	}

	if s := p.Exemptions; s != nil {
		if s.Users != nil {
			out.Exemptions.Users = cleanList(*s.Users, MaxListEntries, false)
		}
		if s.Roles != nil {
			out.Exemptions.Roles = cleanList(*s.Roles, MaxListEntries, false)
		}
		if s.Channels != nil {
			out.Exemptions.Channels = cleanList(*s.Channels, MaxListEntries, false)
		}
	}
	return out
}

// Parses a full or partial JSON config (eg, as persisted in a config store) on top of the defaults.
func FromJSON(raw []byte) (TenantConfig, []string, error) {
	p, warnings, err := ParsePatch(raw)
	if err != nil {
		return Default(), nil, err
	}
	return Merge(Default(), p), warnings, nil
}

func thresholdsOrdered(ec EscalationConfig) bool {
	return ec.WarnThreshold <= ec.MuteThreshold &&
		ec.MuteThreshold <= ec.KickThreshold &&
		ec.KickThreshold <= ec.BanThreshold
}

func mergeTier(dst *TierConfig, p *TierPatch) {
	setBool(&dst.Enabled, p.Enabled)
	setBool(&dst.DeleteMessage, p.DeleteMessage)
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int, lo, hi int) {
	if v != nil {
		*dst = clamp(*v, lo, hi)
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// trims, drops blanks, optionally lower-cases, and de-duplicates (preserving first-seen order)
func cleanList(in []string, limit int, lower bool) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if lower {
			v = strings.ToLower(v)
		}
		if v != "" {
			out = append(out, v)
		}
	}
	out = helpers.DedupeStrings(out)
	if out == nil {
		return []string{}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func cleanWords(in []string) []string {
	out := cleanList(in, MaxCustomWords, true)
	return slices.DeleteFunc(out, func(w string) bool {
		return utf8.RuneCountInString(w) > MaxWordLength
	})
}

func cleanHosts(in []string) []string {
	hosts := make([]string, len(in))
	for i, h := range in {
		hosts[i] = helpers.NormalizeHost(h)
	}
	return cleanList(hosts, MaxListEntries, true)
}
