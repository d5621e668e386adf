package automod

import (
	"github.com/wardenchat/warden/automod/countstore"
	"github.com/wardenchat/warden/automod/engine"
)

type Engine = engine.Engine
type Options = engine.Options
type RuleSet = engine.RuleSet
type Stats = engine.Stats

type MessageEvent = engine.MessageEvent
type MessageContext = engine.MessageContext
type Verdict = engine.Verdict
type Violation = engine.Violation
type ViolationType = engine.ViolationType
type Tier = engine.Tier
type EnforcementOutcome = engine.EnforcementOutcome

type Platform = engine.Platform
type Permissions = engine.Permissions
type AuditSink = engine.AuditSink
type AuditRecord = engine.AuditRecord

type DetectorFunc = engine.DetectorFunc

var (
	NewEngine = engine.NewEngine

	ViolationSpam           = engine.ViolationSpam
	ViolationDuplicate      = engine.ViolationDuplicate
	ViolationProfanity      = engine.ViolationProfanity
	ViolationSuspiciousLink = engine.ViolationSuspiciousLink
	ViolationExcessiveCaps  = engine.ViolationExcessiveCaps

	TierWarn = engine.TierWarn
	TierMute = engine.TierMute
	TierKick = engine.TierKick
	TierBan  = engine.TierBan

	ErrEngineClosed   = engine.ErrEngineClosed
	ErrInvalidMessage = engine.ErrInvalidMessage

	PeriodTotal = countstore.PeriodTotal
	PeriodDay   = countstore.PeriodDay
	PeriodHour  = countstore.PeriodHour
)
