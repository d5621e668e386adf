package engine

import (
	"fmt"
	"time"
)

type ViolationType string

const (
	ViolationSpam           ViolationType = "SPAM"
	ViolationDuplicate      ViolationType = "DUPLICATE"
	ViolationProfanity      ViolationType = "PROFANITY"
	ViolationSuspiciousLink ViolationType = "SUSPICIOUS_LINK"
	ViolationExcessiveCaps  ViolationType = "EXCESSIVE_CAPS"
)

// Punishment tier. Ordered by severity; the zero value means "none".
type Tier int

const (
	TierNone Tier = iota
	TierWarn
	TierMute
	TierKick
	TierBan
)

func (t Tier) String() string {
	switch t {
	case TierWarn:
		return "warn"
	case TierMute:
		return "mute"
	case TierKick:
		return "kick"
	case TierBan:
		return "ban"
	default:
		return "none"
	}
}

func ParseTier(s string) (Tier, error) {
	switch s {
	case "warn":
		return TierWarn, nil
	case "mute":
		return TierMute, nil
	case "kick":
		return TierKick, nil
	case "ban":
		return TierBan, nil
	case "none", "":
		return TierNone, nil
	default:
		return TierNone, fmt.Errorf("unknown punishment tier: %q", s)
	}
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Next tier to try when enforcement of this tier fails. Mute and warn have no fallback.
func (t Tier) Fallback() (Tier, bool) {
	switch t {
	case TierBan:
		return TierKick, true
	case TierKick:
		return TierMute, true
	default:
		return TierNone, false
	}
}

// Result of running the detectors (and, for violations, escalation and enforcement) on one message.
type Verdict struct {
	Violated       bool          `json:"violated"`
	Type           ViolationType `json:"type,omitempty"`
	Reason         string        `json:"reason,omitempty"`
	Tier           Tier          `json:"tier"`
	ViolationCount int           `json:"violationCount,omitempty"`
	// true when this violation moved the author to a more severe tier than their previous one
	Escalated bool                `json:"escalated,omitempty"`
	Exempt    bool                `json:"exempt,omitempty"`
	Outcome   *EnforcementOutcome `json:"outcome,omitempty"`
}

type EnforcementAttempt struct {
	Tier     Tier          `json:"tier"`
	Success  bool          `json:"success"`
	Reason   string        `json:"reason,omitempty"`
	Duration time.Duration `json:"duration"`
}

type EnforcementOutcome struct {
	Requested Tier `json:"requested"`
	// TierNone if nothing could be applied
	Applied       Tier                 `json:"applied"`
	Success       bool                 `json:"success"`
	FailureReason string               `json:"failureReason,omitempty"`
	Attempts      []EnforcementAttempt `json:"attempts"`
	// nil if no deletion was requested for this tier
	Deletion *DeletionResult `json:"deletion,omitempty"`
}

// True when the applied tier differs from the requested one.
func (o *EnforcementOutcome) FellBack() bool {
	return o.Success && o.Applied != o.Requested
}

type DeletionResult struct {
	Success       bool   `json:"success"`
	FailureReason string `json:"failureReason,omitempty"`
}
