package rules

import (
	"fmt"

	"github.com/wardenchat/warden/automod"
)

var _ automod.DetectorFunc = RateSpamRule

// Flags authors sending too many messages in a short window. The current message is already part of the window.
func RateSpamRule(c *automod.MessageContext) error {
	spam := c.Config.Spam
	if !spam.Enabled {
		return nil
	}
	n := len(c.Window(spam.Window()))
	if n >= spam.MaxMessages {
		c.Violation(automod.ViolationSpam, fmt.Sprintf("sent %d messages in %d seconds", n, spam.TimeWindow))
	}
	return nil
}

var _ automod.DetectorFunc = DuplicateSpamRule

// Flags authors repeating the same message. Messages are compared after normalization (case, surrounding whitespace, unicode form).
func DuplicateSpamRule(c *automod.MessageContext) error {
	spam := c.Config.Spam
	if !spam.Enabled || c.Normalized == "" {
		return nil
	}
	n := 0
	for _, obs := range c.Window(spam.DuplicateWindow()) {
		if obs.ContentHash == c.ContentHash {
			n++
		}
	}
	if n >= spam.MaxDuplicates {
		c.Violation(automod.ViolationDuplicate, fmt.Sprintf("repeated the same message %d times in %d seconds", n, spam.DuplicateTimeWindow))
	}
	return nil
}
