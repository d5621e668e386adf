package rules

import (
	"github.com/wardenchat/warden/automod"
	"github.com/wardenchat/warden/automod/config"
	"github.com/wardenchat/warden/automod/engine"
)

// Runs a single detector against a message, as the engine would (the message is recorded in history first).
func checkRule(eng *automod.Engine, cfg config.TenantConfig, rule automod.DetectorFunc, msg *automod.MessageEvent) *automod.Violation {
	c := engine.NewTestMessageContext(eng, cfg, msg)
	if err := rule(c); err != nil {
		panic(err)
	}
	return engine.ExtractViolation(c)
}

func engineFixture() *automod.Engine {
	eng, _, _ := engine.EngineTestFixture()
	eng.Rules = DefaultRules()
	return eng
}
