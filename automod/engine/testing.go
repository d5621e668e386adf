package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/wardenchat/warden/automod/config"
	"github.com/wardenchat/warden/automod/countstore"
	"github.com/wardenchat/warden/automod/history"
	"github.com/wardenchat/warden/automod/keyword"
	"github.com/wardenchat/warden/automod/setstore"
)

var _ DetectorFunc = simpleRule

// flags any message containing the word "forbidden"
func simpleRule(c *MessageContext) error {
	if strings.Contains(c.Normalized, "forbidden") {
		c.Violation(ViolationProfanity, "contains a forbidden word")
	}
	return nil
}

// A recorded call to MockPlatform.
type PlatformCall struct {
	Method string
	UserID string
	Detail string
}

// In-memory Platform for tests. Per-user permissions default to the zero value (nothing allowed) unless set in Perms or DefaultPerms.
type MockPlatform struct {
	DefaultPerms Permissions
	Perms        map[string]Permissions
	// if set, returned by the named method ("Mute", "Kick", "Ban", "SendDirectMessage", "DeleteMessage", "Permissions")
	Errors map[string]error

	mu    sync.Mutex
	calls []PlatformCall
}

func NewMockPlatform() *MockPlatform {
	return &MockPlatform{
		Perms:  make(map[string]Permissions),
		Errors: make(map[string]error),
	}
}

func (p *MockPlatform) record(method, userID, detail string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, PlatformCall{Method: method, UserID: userID, Detail: detail})
	return p.Errors[method]
}

func (p *MockPlatform) Calls() []PlatformCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PlatformCall, len(p.calls))
	copy(out, p.calls)
	return out
}

// Methods called, in order, ignoring arguments.
func (p *MockPlatform) Methods() []string {
	calls := p.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Method
	}
	return out
}

func (p *MockPlatform) Permissions(ctx context.Context, tenantID, userID string) (Permissions, error) {
	if err := p.record("Permissions", userID, tenantID); err != nil {
		return Permissions{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if perms, ok := p.Perms[userID]; ok {
		return perms, nil
	}
	return p.DefaultPerms, nil
}

func (p *MockPlatform) Mute(ctx context.Context, tenantID, userID string, duration time.Duration, reason string) error {
	return p.record("Mute", userID, duration.String())
}

func (p *MockPlatform) Kick(ctx context.Context, tenantID, userID, reason string) error {
	return p.record("Kick", userID, reason)
}

func (p *MockPlatform) Ban(ctx context.Context, tenantID, userID, reason string, deleteMessageDays int) error {
	return p.record("Ban", userID, fmt.Sprint(deleteMessageDays))
}

func (p *MockPlatform) SendDirectMessage(ctx context.Context, userID, text string) error {
	return p.record("SendDirectMessage", userID, text)
}

func (p *MockPlatform) DeleteMessage(ctx context.Context, tenantID, channelID, messageID string) error {
	return p.record("DeleteMessage", "", messageID)
}

// AuditSink which keeps records in memory, for tests.
type MemAuditSink struct {
	Err error

	mu      sync.Mutex
	records []AuditRecord
}

func (s *MemAuditSink) Record(ctx context.Context, rec AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *MemAuditSink) Records() []AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Engine wired to in-memory stores, a MockPlatform which allows everything, and a MemAuditSink. The background sweeper is disabled.
func EngineTestFixture() (*Engine, *MockPlatform, *MemAuditSink) {
	rules := RuleSet{
		Detectors: []DetectorFunc{
			simpleRule,
		},
	}
	platform := NewMockPlatform()
	platform.DefaultPerms = Permissions{CanMute: true, CanKick: true, CanBan: true, EnforcerRank: 10, TargetRank: 1}
	sets := setstore.NewMemSetStore()
	sets.Add(ExemptUsersSet, "trusted-user")
	sink := &MemAuditSink{}
	eng := NewEngine(Options{
		Logger:        slog.Default(),
		Rules:         rules,
		Configs:       config.NewResolver(nil, slog.Default()),
		History:       history.NewStore(history.DefaultOptions()),
		Counters:      countstore.NewMemCountStore(),
		Sets:          sets,
		Patterns:      keyword.NewPatternCache(128),
		Platform:      platform,
		Audit:         sink,
		SweepInterval: -1,
	})
	return eng, platform, sink
}

// Helper for building test messages.
func TestMessage(tenantID, authorID, content string) *MessageEvent {
	return &MessageEvent{
		TenantID:  tenantID,
		ChannelID: "chan-general",
		MessageID: fmt.Sprintf("msg-%d", time.Now().UnixNano()),
		AuthorID:  authorID,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// Builds a MessageContext outside of the engine's processing path, for unit testing detectors. The message is recorded in history first, as during real processing.
func NewTestMessageContext(eng *Engine, cfg config.TenantConfig, msg *MessageEvent) *MessageContext {
	c := eng.newMessageContext(context.Background(), cfg, msg)
	eng.History.Record(msg.TenantID, msg.AuthorID, history.Observation{
		At:          c.Now,
		ChannelID:   msg.ChannelID,
		Content:     keyword.TruncateRunes(c.Normalized, maxObservationRunes),
		ContentHash: c.ContentHash,
	})
	return c
}
