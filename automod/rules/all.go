package rules

import (
	"github.com/wardenchat/warden/automod"
)

// The standard detectors, in precedence order: when more than one would fire on a message, the earliest in this list decides the violation.
func DefaultRules() automod.RuleSet {
	rules := automod.RuleSet{
		Detectors: []automod.DetectorFunc{
			RateSpamRule,
			DuplicateSpamRule,
			ProfanityRule,
			SuspiciousLinkRule,
			ExcessiveCapsRule,
		},
	}
	return rules
}
