package rules

import (
	"fmt"
	"unicode/utf8"

	"github.com/wardenchat/warden/automod"
	"github.com/wardenchat/warden/automod/helpers"
)

var _ automod.DetectorFunc = ExcessiveCapsRule

// Flags messages which are mostly capital letters. Short messages, and messages with few letters (emoji, numbers), are ignored.
func ExcessiveCapsRule(c *automod.MessageContext) error {
	caps := c.Config.Caps
	if !caps.Enabled {
		return nil
	}
	text := c.Message.Content
	if utf8.RuneCountInString(text) < caps.MinLength {
		return nil
	}
	upper, letters := helpers.LetterCase(text)
	if letters == 0 || letters < caps.MinLength {
		return nil
	}
	if upper*100 > caps.MaxPercentage*letters {
		c.Violation(automod.ViolationExcessiveCaps, fmt.Sprintf("message was %d%% capital letters", upper*100/letters))
	}
	return nil
}
