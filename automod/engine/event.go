package engine

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// A chat message, as delivered by the gateway.
type MessageEvent struct {
	TenantID  string `json:"tenantId"`
	ChannelID string `json:"channelId"`
	MessageID string `json:"messageId"`
	AuthorID  string `json:"authorId"`
	// roles held by the author in this tenant
	AuthorRoles   []string  `json:"authorRoles,omitempty"`
	AuthorIsAdmin bool      `json:"authorIsAdmin,omitempty"`
	AuthorIsBot   bool      `json:"authorIsBot,omitempty"`
	Content       string    `json:"content"`
	// files, images and embeds sent along with the content
	AttachmentCount int       `json:"attachmentCount,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Checks that the message has the identifiers needed to attribute it.
func (m *MessageEvent) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil message", ErrInvalidMessage)
	}
	if strings.TrimSpace(m.TenantID) == "" {
		return fmt.Errorf("%w: missing tenant ID", ErrInvalidMessage)
	}
	if strings.TrimSpace(m.AuthorID) == "" {
		return fmt.Errorf("%w: missing author ID", ErrInvalidMessage)
	}
	return nil
}

// What the enforcing principal (the bot) is allowed to do to a particular member.
type Permissions struct {
	CanMute bool `json:"canMute"`
	CanKick bool `json:"canKick"`
	CanBan  bool `json:"canBan"`
	// position of the enforcer's highest role; kick and ban require EnforcerRank > TargetRank
	EnforcerRank int `json:"enforcerRank"`
	TargetRank   int `json:"targetRank"`
}

// Platform actions needed for enforcement. Implementations make network calls; every method is called with a context carrying a deadline.
type Platform interface {
	Permissions(ctx context.Context, tenantID, userID string) (Permissions, error)
	Mute(ctx context.Context, tenantID, userID string, duration time.Duration, reason string) error
	Kick(ctx context.Context, tenantID, userID, reason string) error
	Ban(ctx context.Context, tenantID, userID, reason string, deleteMessageDays int) error
	SendDirectMessage(ctx context.Context, userID, text string) error
	DeleteMessage(ctx context.Context, tenantID, channelID, messageID string) error
}
