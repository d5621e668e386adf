package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/wardenchat/warden/automod/auditlog"
	"github.com/wardenchat/warden/automod/engine"
	"github.com/wardenchat/warden/automod/keyword"

	"github.com/RussellLuo/slidingwindow"
	"github.com/puzpuzpuz/xsync/v3"
)

const (
	// platform messages are capped well below this; longer summaries are cut
	maxChannelMessageRunes = 1900

	DefaultChannelPostsPerMinute = 30
)

var ErrChannelRateLimited = fmt.Errorf("audit channel post rate limit exceeded")

// Posts audit records into the tenant's configured log channel. Records without a destination are dropped.
//
// Each tenant gets a sliding per-minute budget of posts, so a raid does not flood the log channel (or exhaust the bot's platform rate limit). Records over the budget are dropped with ErrChannelRateLimited.
type ChannelAuditSink struct {
	Client         *Client
	PerMinuteLimit int64

	limiters *xsync.MapOf[string, *slidingwindow.Limiter]
}

var _ engine.AuditSink = (*ChannelAuditSink)(nil)

func NewChannelAuditSink(c *Client) *ChannelAuditSink {
	return &ChannelAuditSink{
		Client:         c,
		PerMinuteLimit: DefaultChannelPostsPerMinute,
		limiters:       xsync.NewMapOf[string, *slidingwindow.Limiter](),
	}
}

func windowFunc() (slidingwindow.Window, slidingwindow.StopFunc) {
	return slidingwindow.NewLocalWindow()
}

func (s *ChannelAuditSink) allow(tenantID string) bool {
	if s.limiters == nil || s.PerMinuteLimit <= 0 {
		return true
	}
	lim, _ := s.limiters.LoadOrCompute(tenantID, func() *slidingwindow.Limiter {
		l, _ := slidingwindow.NewLimiter(time.Minute, s.PerMinuteLimit, windowFunc)
		return l
	})
	return lim.Allow()
}

func (s *ChannelAuditSink) Record(ctx context.Context, rec engine.AuditRecord) error {
	if rec.Destination == "" {
		return nil
	}
	if !s.allow(rec.TenantID) {
		return ErrChannelRateLimited
	}
	text := keyword.TruncateRunes(auditlog.Summary(rec), maxChannelMessageRunes)
	return s.Client.PostChannelMessage(ctx, rec.TenantID, rec.Destination, text)
}
