package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/wardenchat/warden/automod/engine"
)

type muteRequest struct {
	DurationSeconds int64  `json:"durationSeconds"`
	Reason          string `json:"reason"`
}

type kickRequest struct {
	Reason string `json:"reason"`
}

type banRequest struct {
	Reason            string `json:"reason"`
	DeleteMessageDays int    `json:"deleteMessageDays"`
}

type messageRequest struct {
	Text string `json:"text"`
}

func memberPath(tenantID, userID, action string) string {
	return fmt.Sprintf("/v1/tenants/%s/members/%s/%s", url.PathEscape(tenantID), url.PathEscape(userID), action)
}

func permsCacheKey(tenantID, userID string) string {
	return "perms/" + tenantID + "/" + userID
}

func (c *Client) Permissions(ctx context.Context, tenantID, userID string) (engine.Permissions, error) {
	var perms engine.Permissions
	key := permsCacheKey(tenantID, userID)
	if c.Cache != nil {
		ok, err := c.Cache.Get(ctx, key, &perms)
		if err != nil {
			slog.Warn("permission cache read failed", "err", err)
		} else if ok {
			return perms, nil
		}
	}

	if err := c.Do(ctx, http.MethodGet, memberPath(tenantID, userID, "permissions"), nil, &perms); err != nil {
		return engine.Permissions{}, err
	}

	if c.Cache != nil {
		if err := c.Cache.Set(ctx, key, perms); err != nil {
			slog.Warn("permission cache write failed", "err", err)
		}
	}
	return perms, nil
}

// Drops any cached permissions for the member, eg after a role change.
func (c *Client) PurgePermissions(ctx context.Context, tenantID, userID string) error {
	if c.Cache == nil {
		return nil
	}
	return c.Cache.Purge(ctx, permsCacheKey(tenantID, userID))
}

// Runs a member action. A refusal means the cached permissions were stale, so they are dropped for the next check.
func (c *Client) memberAction(ctx context.Context, tenantID, userID, action string, body any) error {
	err := c.Do(ctx, http.MethodPost, memberPath(tenantID, userID, action), body, nil)
	if errors.Is(err, engine.ErrPermissionDenied) {
		if perr := c.PurgePermissions(ctx, tenantID, userID); perr != nil {
			slog.Warn("permission cache purge failed", "err", perr)
		}
	}
	return err
}

func (c *Client) Mute(ctx context.Context, tenantID, userID string, duration time.Duration, reason string) error {
	body := muteRequest{
		DurationSeconds: int64(duration / time.Second),
		Reason:          reason,
	}
	return c.memberAction(ctx, tenantID, userID, "mute", body)
}

func (c *Client) Kick(ctx context.Context, tenantID, userID, reason string) error {
	return c.memberAction(ctx, tenantID, userID, "kick", kickRequest{Reason: reason})
}

func (c *Client) Ban(ctx context.Context, tenantID, userID, reason string, deleteMessageDays int) error {
	body := banRequest{
		Reason:            reason,
		DeleteMessageDays: deleteMessageDays,
	}
	return c.memberAction(ctx, tenantID, userID, "ban", body)
}

func (c *Client) SendDirectMessage(ctx context.Context, userID, text string) error {
	path := fmt.Sprintf("/v1/users/%s/dm", url.PathEscape(userID))
	return c.Do(ctx, http.MethodPost, path, messageRequest{Text: text}, nil)
}

func (c *Client) DeleteMessage(ctx context.Context, tenantID, channelID, messageID string) error {
	path := fmt.Sprintf("/v1/tenants/%s/channels/%s/messages/%s", url.PathEscape(tenantID), url.PathEscape(channelID), url.PathEscape(messageID))
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) PostChannelMessage(ctx context.Context, tenantID, channelID, text string) error {
	path := fmt.Sprintf("/v1/tenants/%s/channels/%s/messages", url.PathEscape(tenantID), url.PathEscape(channelID))
	return c.Do(ctx, http.MethodPost, path, messageRequest{Text: text}, nil)
}
