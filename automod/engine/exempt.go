package engine

import (
	"slices"

	"github.com/wardenchat/warden/automod/config"
)

// Name of the global set (see setstore) of authors which are exempt in every tenant.
const ExemptUsersSet = "exempt-users"

// True if the message should not be moderated at all under the given tenant config: admins, bots, and the tenant's exempt users, channels, and roles.
func IsExempt(cfg config.TenantConfig, msg *MessageEvent) bool {
	if msg.AuthorIsAdmin || msg.AuthorIsBot {
		return true
	}
	if slices.Contains(cfg.Exemptions.Users, msg.AuthorID) {
		return true
	}
	if msg.ChannelID != "" && slices.Contains(cfg.Exemptions.Channels, msg.ChannelID) {
		return true
	}
	for _, role := range msg.AuthorRoles {
		if slices.Contains(cfg.Exemptions.Roles, role) {
			return true
		}
	}
	return false
}
