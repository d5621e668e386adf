package rules

import (
	"regexp"

	"github.com/wardenchat/warden/automod"
	"github.com/wardenchat/warden/automod/helpers"
)

// chat server invite links, which are always blocked when BlockInvites is set (even on whitelisted hosts)
var inviteRegex = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.|ptb\.|canary\.)?(?:discord(?:app)?\.(?:gg|io|me|li)|discord(?:app)?\.com/invite|dsc\.gg|invite\.gg)/[a-z0-9-]+`)

var _ automod.DetectorFunc = SuspiciousLinkRule

func SuspiciousLinkRule(c *automod.MessageContext) error {
	links := c.Config.Links
	if !links.Enabled || c.Message.Content == "" {
		return nil
	}
	text := c.Message.Content

	if links.BlockInvites && inviteRegex.MatchString(text) {
		c.Violation(automod.ViolationSuspiciousLink, "posted a server invite link")
		return nil
	}
	if !links.BlockSuspicious {
		return nil
	}

	for _, expr := range links.Patterns {
		re, err := c.Patterns().Expr(expr)
		if err != nil {
			c.Logger.Warn("skipping invalid link pattern", "err", err)
			continue
		}
		for _, match := range re.FindAllString(text, -1) {
			host := helpers.Hostname(match)
			if host == "" {
				continue
			}
			if !helpers.HostInList(host, links.Whitelist) {
				c.Logger.Debug("suspicious link", "host", host)
				c.Violation(automod.ViolationSuspiciousLink, "posted a suspicious link")
				return nil
			}
		}
	}
	return nil
}
