package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wardenchat/warden/automod/config"
	"github.com/wardenchat/warden/automod/countstore"
	"github.com/wardenchat/warden/automod/helpers"
	"github.com/wardenchat/warden/automod/history"
	"github.com/wardenchat/warden/automod/keyword"
	"github.com/wardenchat/warden/automod/setstore"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("engine")

// observations keep a prefix of the normalized text, for debugging; equality checks use the hash
const maxObservationRunes = 256

// Counter namespaces in the engine's CountStore. Values are "<tenant>/<detail>".
const (
	CounterViolation  = "violation"
	CounterPunishment = "punishment"
	CounterFallback   = "fallback"
	// distinct authors with violations, bucketed by tenant
	CounterViolators = "violators"
)

type Options struct {
	Logger   *slog.Logger
	Rules    RuleSet
	Configs  *config.Resolver
	History  *history.Store
	Counters countstore.CountStore
	Sets     setstore.SetStore
	Patterns *keyword.PatternCache
	// if nil, a DryRunPlatform: punishments are logged but not applied
	Platform Platform
	// optional; if nil, nothing is audited
	Audit          AuditSink
	EnforceTimeout time.Duration
	AuditTimeout   time.Duration
	// zero means history.DefaultSweepInterval; negative disables the background sweeper
	SweepInterval time.Duration
	// defaults to time.Now
	Clock func() time.Time
}

// runtime for executing detectors, tracking per-author state, and enforcing punishments.
type Engine struct {
	Logger       *slog.Logger
	Rules        RuleSet
	Configs      *config.Resolver
	History      *history.Store
	Counters     countstore.CountStore
	Sets         setstore.SetStore
	Patterns     *keyword.PatternCache
	Enforcer     *Enforcer
	Audit        AuditSink
	AuditTimeout time.Duration

	clock     func() time.Time
	sweeper   *history.Sweeper
	startedAt time.Time

	// in-flight messages hold the read lock; Shutdown takes the write lock to drain them
	gate         sync.RWMutex
	closed       bool
	shutdownOnce sync.Once

	processed   atomic.Int64
	violations  atomic.Int64
	exempted    atomic.Int64
	enforced    atomic.Int64
	enforceFail atomic.Int64
	fallbacks   atomic.Int64
}

// Builds an engine, filling in in-memory defaults for any unset stores and a dry-run platform if none is set, and starts the history sweeper.
func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Configs == nil {
		opts.Configs = config.NewResolver(nil, logger)
	}
	if opts.History == nil {
		opts.History = history.NewStore(history.DefaultOptions())
	}
	if opts.Sets == nil {
		opts.Sets = setstore.NewMemSetStore()
	}
	if opts.Patterns == nil {
		opts.Patterns = keyword.NewPatternCache(keyword.DefaultPatternCacheSize)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Counters == nil {
		mem := countstore.NewMemCountStore()
		mem.Clock = opts.Clock
		opts.Counters = mem
	}
	if opts.Platform == nil {
		logger.Warn("no moderation platform configured, punishments will only be logged")
		opts.Platform = NewDryRunPlatform(logger)
	}
	enforcer := NewEnforcer(opts.Platform, logger)
	if opts.EnforceTimeout > 0 {
		enforcer.Timeout = opts.EnforceTimeout
	}
	eng := &Engine{
		Logger:       logger,
		Rules:        opts.Rules,
		Configs:      opts.Configs,
		History:      opts.History,
		Counters:     opts.Counters,
		Sets:         opts.Sets,
		Patterns:     opts.Patterns,
		Enforcer:     enforcer,
		Audit:        opts.Audit,
		AuditTimeout: opts.AuditTimeout,
		clock:        opts.Clock,
		startedAt:    opts.Clock(),
	}
	if opts.SweepInterval >= 0 {
		eng.sweeper = history.NewSweeper(eng.History, opts.SweepInterval, logger)
		eng.sweeper.Clock = opts.Clock
		eng.sweeper.Start()
	}
	return eng
}

func (eng *Engine) now() time.Time {
	if eng.clock == nil {
		return time.Now()
	}
	return eng.clock()
}

// Runs one message through exemption checks, detectors, escalation, enforcement, and auditing.
//
// Moderation failures (detector errors, platform errors, audit sink errors) are logged and reflected in the returned verdict, not returned. The only errors are ErrEngineClosed and ErrInvalidMessage.
func (eng *Engine) ProcessMessage(ctx context.Context, msg *MessageEvent) (verdict *Verdict, err error) {
	eng.gate.RLock()
	defer eng.gate.RUnlock()
	if eng.closed {
		return nil, ErrEngineClosed
	}
	if err := msg.Validate(); err != nil {
		messageProcessCount.WithLabelValues("invalid").Inc()
		return nil, err
	}

	start := time.Now()
	defer func() {
		messageProcessDuration.Observe(time.Since(start).Seconds())
	}()

	ctx, span := tracer.Start(ctx, "ProcessMessage", trace.WithAttributes(
		attribute.String("tenant", msg.TenantID),
		attribute.String("channel", msg.ChannelID),
	))
	defer span.End()

	// similar to an HTTP server, we want to recover any panics from detector execution
	defer func() {
		if r := recover(); r != nil {
			messageErrorCount.Inc()
			eng.Logger.Error("moderation message execution exception", "err", r, "tenant", msg.TenantID, "author", msg.AuthorID)
			span.SetAttributes(attribute.Bool("panic", true))
			verdict = &Verdict{}
			err = nil
		}
	}()

	eng.processed.Add(1)
	cfg := eng.Configs.Resolve(ctx, msg.TenantID)
	if !cfg.Enabled {
		messageProcessCount.WithLabelValues("disabled").Inc()
		return &Verdict{}, nil
	}
	if eng.isExempt(ctx, cfg, msg) {
		eng.exempted.Add(1)
		messageProcessCount.WithLabelValues("exempt").Inc()
		return &Verdict{Exempt: true}, nil
	}

	c := eng.newMessageContext(ctx, cfg, msg)
	count, previous := eng.detect(c)
	if c.violation == nil {
		messageProcessCount.WithLabelValues("clean").Inc()
		return &Verdict{}, nil
	}
	messageProcessCount.WithLabelValues("violation").Inc()
	eng.violations.Add(1)
	violationCount.WithLabelValues(string(c.violation.Type)).Inc()

	tier, escalated := DeterminePunishment(cfg.Escalation, count, previous)
	verdict = &Verdict{
		Violated:       true,
		Type:           c.violation.Type,
		Reason:         c.violation.Reason,
		Tier:           tier,
		ViolationCount: count,
		Escalated:      escalated,
	}
	span.SetAttributes(
		attribute.String("violation", string(verdict.Type)),
		attribute.String("tier", tier.String()),
	)

	eng.emitAudit(ctx, cfg, msg, AuditRecord{
		Kind:           AuditViolation,
		ViolationType:  verdict.Type,
		Reason:         verdict.Reason,
		ViolationCount: count,
		RequestedTier:  tier,
	})

	outcome := eng.Enforcer.Apply(ctx, cfg, msg, tier, verdict.Reason)
	verdict.Outcome = &outcome
	eng.auditOutcome(ctx, cfg, msg, verdict)
	eng.persistCounters(ctx, msg, verdict)
	eng.canonicalLogLine(c, verdict)
	return verdict, nil
}

func (eng *Engine) newMessageContext(ctx context.Context, cfg config.TenantConfig, msg *MessageEvent) *MessageContext {
	normalized := keyword.NormalizeContent(msg.Content)
	return &MessageContext{
		Ctx:         ctx,
		Logger:      eng.Logger.With("tenant", msg.TenantID, "author", msg.AuthorID, "channel", msg.ChannelID),
		Config:      cfg,
		Message:     msg,
		Now:         eng.now(),
		Normalized:  normalized,
		ContentHash: helpers.HashOfString(normalized),
		engine:      eng,
	}
}

// Records the message, runs detectors, and counts any violation, all under the author's lock. Returns the new and previous violation counts (zero when nothing was detected).
func (eng *Engine) detect(c *MessageContext) (int, int) {
	unlock := eng.History.Lock(c.Message.TenantID, c.Message.AuthorID)
	defer unlock()

	eng.History.Record(c.Message.TenantID, c.Message.AuthorID, history.Observation{
		At:          c.Now,
		ChannelID:   c.Message.ChannelID,
		Content:     keyword.TruncateRunes(c.Normalized, maxObservationRunes),
		ContentHash: c.ContentHash,
	})
	eng.Rules.CallDetectors(c)
	if c.violation == nil {
		return 0, 0
	}
	return eng.History.IncrementViolations(c.Message.TenantID, c.Message.AuthorID, c.Now, c.Config.Escalation.ResetAfter())
}

func (eng *Engine) isExempt(ctx context.Context, cfg config.TenantConfig, msg *MessageEvent) bool {
	if IsExempt(cfg, msg) {
		return true
	}
	if eng.Sets == nil {
		return false
	}
	ok, err := eng.Sets.InSet(ctx, ExemptUsersSet, msg.AuthorID)
	if err != nil {
		eng.Logger.Warn("global exemption lookup failed", "author", msg.AuthorID, "err", err)
		return false
	}
	return ok
}

func (eng *Engine) auditOutcome(ctx context.Context, cfg config.TenantConfig, msg *MessageEvent, v *Verdict) {
	out := v.Outcome
	if out.Deletion != nil {
		eng.emitAudit(ctx, cfg, msg, AuditRecord{
			Kind:           AuditDeletion,
			ViolationType:  v.Type,
			Reason:         v.Reason,
			ViolationCount: v.ViolationCount,
			RequestedTier:  out.Requested,
			Success:        out.Deletion.Success,
			FailureReason:  out.Deletion.FailureReason,
		})
	}
	for i, a := range out.Attempts {
		rec := AuditRecord{
			Kind:           AuditEnforcement,
			ViolationType:  v.Type,
			Reason:         v.Reason,
			ViolationCount: v.ViolationCount,
			RequestedTier:  out.Requested,
			Attempt:        i + 1,
			Success:        a.Success,
			FailureReason:  a.Reason,
		}
		if a.Success {
			rec.AppliedTier = a.Tier
		}
		eng.emitAudit(ctx, cfg, msg, rec)
	}

	if out.Success {
		eng.enforced.Add(1)
		punishmentCount.WithLabelValues(out.Requested.String(), out.Applied.String()).Inc()
		if out.FellBack() {
			eng.fallbacks.Add(1)
		}
	} else {
		eng.enforceFail.Add(1)
		punishmentCount.WithLabelValues(out.Requested.String(), TierNone.String()).Inc()
	}
}

// Aggregate counters are best-effort: failures are logged, and never roll back moderation state.
func (eng *Engine) persistCounters(ctx context.Context, msg *MessageEvent, v *Verdict) {
	if eng.Counters == nil {
		return
	}
	tenant := msg.TenantID
	batch := []countstore.Counter{
		{Name: CounterViolation, Val: fmt.Sprintf("%s/%s", tenant, v.Type)},
		{Name: CounterViolators, Val: tenant, Member: msg.AuthorID},
	}
	if out := v.Outcome; out != nil {
		batch = append(batch, countstore.Counter{Name: CounterPunishment, Val: fmt.Sprintf("%s/%s", tenant, out.Applied)})
		if out.FellBack() {
			batch = append(batch, countstore.Counter{Name: CounterFallback, Val: fmt.Sprintf("%s/%s-%s", tenant, out.Requested, out.Applied)})
		}
	}
	if err := eng.Counters.IncrementMany(ctx, batch); err != nil {
		eng.Logger.Warn("failed to record counters", "tenant", tenant, "count", len(batch), "err", err)
	}
}

func (eng *Engine) canonicalLogLine(c *MessageContext, v *Verdict) {
	args := []any{
		"type", v.Type,
		"reason", v.Reason,
		"violationCount", v.ViolationCount,
		"tier", v.Tier,
		"escalated", v.Escalated,
	}
	if n := c.Message.AttachmentCount; n > 0 {
		args = append(args, "attachments", n)
	}
	if out := v.Outcome; out != nil {
		args = append(args,
			"applied", out.Applied,
			"success", out.Success,
			"attempts", len(out.Attempts),
		)
		if out.FailureReason != "" && !out.Success {
			args = append(args, "failureReason", out.FailureReason)
		}
	}
	c.Logger.Info("canonical-violation-line", args...)
}

// Returns a count from the engine's aggregate counters; see the Counter* names.
func (eng *Engine) GetCount(ctx context.Context, name, val, period string) (int, error) {
	return eng.Counters.GetCount(ctx, name, val, period)
}

func (eng *Engine) GetCountDistinct(ctx context.Context, name, bucket, period string) (int, error) {
	return eng.Counters.GetCountDistinct(ctx, name, bucket, period)
}

type Stats struct {
	History             history.Stats `json:"history"`
	Tenants             int           `json:"tenants"`
	MessagesProcessed   int64         `json:"messagesProcessed"`
	MessagesExempt      int64         `json:"messagesExempt"`
	Violations          int64         `json:"violations"`
	Enforcements        int64         `json:"enforcements"`
	EnforcementFailures int64         `json:"enforcementFailures"`
	Fallbacks           int64         `json:"fallbacks"`
	Uptime              time.Duration `json:"uptime"`
	Closed              bool          `json:"closed"`
}

func (eng *Engine) GetStats() Stats {
	eng.gate.RLock()
	closed := eng.closed
	eng.gate.RUnlock()
	return Stats{
		History:             eng.History.Stats(),
		Tenants:             eng.Configs.Count(),
		MessagesProcessed:   eng.processed.Load(),
		MessagesExempt:      eng.exempted.Load(),
		Violations:          eng.violations.Load(),
		Enforcements:        eng.enforced.Load(),
		EnforcementFailures: eng.enforceFail.Load(),
		Fallbacks:           eng.fallbacks.Load(),
		Uptime:              eng.now().Sub(eng.startedAt),
		Closed:              closed,
	}
}

// Clears the author's violation count in every tenant. Returns whether there was anything to clear.
func (eng *Engine) ResetUserViolations(authorID string) bool {
	return eng.History.ResetAuthor(authorID)
}

// Sum of the author's violation counts across tenants.
func (eng *Engine) GetUserViolations(authorID string) int {
	return eng.History.AuthorViolations(authorID)
}

func (eng *Engine) ResetTenantUserViolations(tenantID, authorID string) bool {
	return eng.History.ResetViolations(tenantID, authorID)
}

func (eng *Engine) GetTenantUserViolations(tenantID, authorID string) int {
	return eng.History.Violations(tenantID, authorID)
}

// Runs a history sweep immediately, outside the regular schedule.
func (eng *Engine) ForceCleanup() history.CleanupStats {
	st := eng.History.Cleanup(eng.now())
	eng.Logger.Info("forced history cleanup",
		"observationsRemoved", st.ObservationsRemoved,
		"authorsRemoved", st.AuthorsRemoved,
		"violationsRemoved", st.ViolationsRemoved,
	)
	return st
}

func (eng *Engine) GetTenantConfig(ctx context.Context, tenantID string) config.TenantConfig {
	return eng.Configs.Resolve(ctx, tenantID)
}

func (eng *Engine) UpdateTenantConfig(ctx context.Context, tenantID string, p config.Patch) config.TenantConfig {
	return eng.Configs.Update(ctx, tenantID, p)
}

// Applies a JSON partial config update; see config.ParsePatch for how invalid fields are handled.
func (eng *Engine) UpdateTenantConfigJSON(ctx context.Context, tenantID string, raw []byte) (config.TenantConfig, []string, error) {
	return eng.Configs.UpdateJSON(ctx, tenantID, raw)
}

// Stops the sweeper, waits for in-flight messages to finish, and drops all in-memory state. Later calls to ProcessMessage return ErrEngineClosed. Safe to call more than once.
func (eng *Engine) Shutdown() {
	eng.shutdownOnce.Do(func() {
		eng.Logger.Info("shutting down moderation engine")
		if eng.sweeper != nil {
			eng.sweeper.Stop()
		}
		eng.gate.Lock()
		eng.closed = true
		eng.gate.Unlock()
		if eng.sweeper != nil {
			eng.sweeper.Wait()
		}
		eng.History.Clear()
		eng.Configs.Clear()
		eng.Patterns.Purge()
	})
}
