package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/wardenchat/warden/automod/config"
	"github.com/wardenchat/warden/automod/history"
	"github.com/wardenchat/warden/automod/keyword"
)

// Outcome of a detector: the first (and only) violation found in a message.
type Violation struct {
	Type   ViolationType
	Reason string
}

// The interface exposed to detectors, for a single message.
type MessageContext struct {
	// Actual golang "context.Context", if needed for timeouts etc
	Ctx context.Context
	// slog logger handle, with message-specific structured fields pre-populated. Pointer, but expected to never be nil.
	Logger *slog.Logger
	// Snapshot of the tenant's config; never shared with other messages.
	Config  config.TenantConfig
	Message *MessageEvent
	// Processing time, used for all window calculations on this message
	Now time.Time
	// NormalizeContent() of the message text
	Normalized string
	// hash of Normalized, as stored in history
	ContentHash string

	engine    *Engine // NOTE: pointer, but expected never to be nil
	violation *Violation
}

// Observations of this author (in this tenant) within the given duration of Now, including the current message.
func (c *MessageContext) Window(d time.Duration) []history.Observation {
	return c.engine.History.Window(c.Message.TenantID, c.Message.AuthorID, c.Now.Add(-d))
}

// Reports a violation. Only the first report for a message is kept.
func (c *MessageContext) Violation(t ViolationType, reason string) {
	if c.violation != nil {
		return
	}
	c.violation = &Violation{Type: t, Reason: reason}
}

func (c *MessageContext) Violated() bool {
	return c.violation != nil
}

// Shared cache of compiled word and link patterns.
func (c *MessageContext) Patterns() *keyword.PatternCache {
	return c.engine.Patterns
}

// checks if `val` is an element of set `name`. errors are logged and treated as "not in set".
func (c *MessageContext) InSet(name, val string) bool {
	if c.engine.Sets == nil {
		return false
	}
	ok, err := c.engine.Sets.InSet(c.Ctx, name, val)
	if err != nil {
		c.Logger.Warn("set lookup failed", "set", name, "err", err)
		return false
	}
	return ok
}

// Helper to access the private violation field from a context. Intended for use in test code, *not* from detectors.
func ExtractViolation(c *MessageContext) *Violation {
	return c.violation
}
