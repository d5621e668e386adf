package rules

import (
	"context"
	"fmt"
	"testing"

	"github.com/wardenchat/warden/automod"
	"github.com/wardenchat/warden/automod/config"
	"github.com/wardenchat/warden/automod/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateSpamRule(t *testing.T) {
	assert := assert.New(t)

	eng := engineFixture()
	cfg := config.Default()
	for i := 0; i < 4; i++ {
		assert.Nil(checkRule(eng, cfg, RateSpamRule, engine.TestMessage("guild1", "u1", fmt.Sprintf("message %d", i))))
	}
	v := checkRule(eng, cfg, RateSpamRule, engine.TestMessage("guild1", "u1", "message 5"))
	require.NotNil(t, v)
	assert.Equal(automod.ViolationSpam, v.Type)
	assert.Equal("sent 5 messages in 10 seconds", v.Reason)

	// other authors have their own windows
	assert.Nil(checkRule(eng, cfg, RateSpamRule, engine.TestMessage("guild1", "u2", "message 1")))

	cfg.Spam.Enabled = false
	assert.Nil(checkRule(eng, cfg, RateSpamRule, engine.TestMessage("guild1", "u1", "message 6")))
}

func TestDuplicateSpamRule(t *testing.T) {
	assert := assert.New(t)

	eng := engineFixture()
	cfg := config.Default()
	cfg.Spam.MaxDuplicates = 3

	assert.Nil(checkRule(eng, cfg, DuplicateSpamRule, engine.TestMessage("guild1", "u1", "Buy now")))
	assert.Nil(checkRule(eng, cfg, DuplicateSpamRule, engine.TestMessage("guild1", "u1", "something else")))
	assert.Nil(checkRule(eng, cfg, DuplicateSpamRule, engine.TestMessage("guild1", "u1", "  buy NOW ")))
	v := checkRule(eng, cfg, DuplicateSpamRule, engine.TestMessage("guild1", "u1", "BUY NOW"))
	require.NotNil(t, v)
	assert.Equal(automod.ViolationDuplicate, v.Type)

	// empty content is never a duplicate
	for i := 0; i < 4; i++ {
		assert.Nil(checkRule(eng, cfg, DuplicateSpamRule, engine.TestMessage("guild1", "u2", "   ")))
	}
}

func TestProfanityRule(t *testing.T) {
	assert := assert.New(t)

	eng := engineFixture()
	cfg := config.Default()

	fixtures := []struct {
		text     string
		violated bool
	}{
		{text: "what the fuck", violated: true},
		{text: "Oh MERDE!", violated: true},
		{text: "FÜCK this", violated: true},
		{text: "a classic assessment", violated: false},
		{text: "scunthorpe", violated: false},
		{text: "", violated: false},
	}
	for _, fix := range fixtures {
		v := checkRule(eng, cfg, ProfanityRule, engine.TestMessage("guild1", "u1", fix.text))
		assert.Equal(fix.violated, v != nil, fix.text)
	}

	// custom words only
	cfg.Profanity.UseBuiltin = false
	cfg.Profanity.CustomWords = []string{"heck", "x", "darn it"}
	assert.Nil(checkRule(eng, cfg, ProfanityRule, engine.TestMessage("guild1", "u1", "what the fuck")))
	assert.NotNil(checkRule(eng, cfg, ProfanityRule, engine.TestMessage("guild1", "u1", "oh HECK.")))
	assert.NotNil(checkRule(eng, cfg, ProfanityRule, engine.TestMessage("guild1", "u1", "well darn it")))
	// too short to match
	assert.Nil(checkRule(eng, cfg, ProfanityRule, engine.TestMessage("guild1", "u1", "x marks the spot")))

	cfg.Profanity.Enabled = false
	assert.Nil(checkRule(eng, cfg, ProfanityRule, engine.TestMessage("guild1", "u1", "heck")))
}

func TestSuspiciousLinkRule(t *testing.T) {
	assert := assert.New(t)

	eng := engineFixture()
	cfg := config.Default()

	fixtures := []struct {
		text     string
		violated bool
	}{
		{text: "join us at discord.gg/abc123", violated: true},
		{text: "https://discord.com/invite/xyz", violated: true},
		{text: "check bit.ly/abc123", violated: true},
		{text: "check bit.ly/abc?r=https://x", violated: true},
		{text: "free nitro at dlscord-gift.xyz/claim", violated: true},
		{text: "https://github.com/org/repo", violated: false},
		{text: "see https://www.youtube.com/watch?v=abc", violated: false},
		{text: "no links here", violated: false},
	}
	for _, fix := range fixtures {
		v := checkRule(eng, cfg, SuspiciousLinkRule, engine.TestMessage("guild1", "u1", fix.text))
		assert.Equal(fix.violated, v != nil, fix.text)
		if v != nil {
			assert.Equal(automod.ViolationSuspiciousLink, v.Type)
		}
	}

	cfg.Links.BlockInvites = false
	assert.Nil(checkRule(eng, cfg, SuspiciousLinkRule, engine.TestMessage("guild1", "u1", "join us at discord.gg/abc123")))

	cfg.Links.BlockSuspicious = false
	assert.Nil(checkRule(eng, cfg, SuspiciousLinkRule, engine.TestMessage("guild1", "u1", "check bit.ly/abc123")))
}

func TestSuspiciousLinkWhitelistRoundTrip(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := engineFixture()
	msg := "check https://www.bit.ly/abc123"
	assert.NotNil(checkRule(eng, eng.GetTenantConfig(ctx, "guild1"), SuspiciousLinkRule, engine.TestMessage("guild1", "u1", msg)))

	// whitelisting the host (entered as a URL) through a config update stops the match
	cfg := eng.UpdateTenantConfig(ctx, "guild1", config.Patch{Links: &config.LinkPatch{
		Whitelist: &[]string{"https://WWW.Bit.ly/"},
	}})
	assert.Nil(checkRule(eng, cfg, SuspiciousLinkRule, engine.TestMessage("guild1", "u1", msg)))

	// invalid patterns are skipped, valid ones still apply
	cfg.Links.Patterns = []string{`(unclosed`, `(?i)\bevil\.example\.com\S*`}
	assert.Nil(checkRule(eng, cfg, SuspiciousLinkRule, engine.TestMessage("guild1", "u1", msg)))
	assert.NotNil(checkRule(eng, cfg, SuspiciousLinkRule, engine.TestMessage("guild1", "u1", "go to evil.example.com/login")))
}

func TestExcessiveCapsRule(t *testing.T) {
	assert := assert.New(t)

	eng := engineFixture()
	cfg := config.Default()

	fixtures := []struct {
		text     string
		violated bool
	}{
		{text: "THIS IS SO LOUD", violated: true},
		{text: "OK", violated: false},
		{text: "HELLO world friends", violated: false},
		{text: "1234567890 AB", violated: false},
		{text: "ÉCOLE FERMÉE AUJOURD'HUI", violated: true},
		{text: "Mostly Normal Text Here", violated: false},
	}
	for _, fix := range fixtures {
		v := checkRule(eng, cfg, ExcessiveCapsRule, engine.TestMessage("guild1", "u1", fix.text))
		assert.Equal(fix.violated, v != nil, fix.text)
	}

	// exactly at the limit is allowed
	cfg.Caps.MaxPercentage = 50
	cfg.Caps.MinLength = 4
	assert.Nil(checkRule(eng, cfg, ExcessiveCapsRule, engine.TestMessage("guild1", "u1", "ABcd")))
	assert.NotNil(checkRule(eng, cfg, ExcessiveCapsRule, engine.TestMessage("guild1", "u1", "ABCd")))
}

func TestRulePrecedence(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := engineFixture()

	// profanity, link, and caps all match; profanity comes first
	v, err := eng.ProcessMessage(ctx, engine.TestMessage("guild1", "u1", "WHAT THE FUCK IS THIS bit.ly/abc123"))
	require.NoError(t, err)
	assert.Equal(automod.ViolationProfanity, v.Type)

	// link before caps
	v, err = eng.ProcessMessage(ctx, engine.TestMessage("guild1", "u2", "CLICK HERE NOW bit.ly/abc123"))
	require.NoError(t, err)
	assert.Equal(automod.ViolationSuspiciousLink, v.Type)

	v, err = eng.ProcessMessage(ctx, engine.TestMessage("guild1", "u3", "CLICK HERE NOW PLEASE"))
	require.NoError(t, err)
	assert.Equal(automod.ViolationExcessiveCaps, v.Type)
}

func TestRepeatedMessagesEndToEnd(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := engineFixture()
	for i := 0; i < 4; i++ {
		v, err := eng.ProcessMessage(ctx, engine.TestMessage("guild1", "u1", "hello everyone"))
		require.NoError(t, err)
		assert.False(v.Violated)
	}

	// rate spam takes precedence over the duplicate check on the same message
	v, err := eng.ProcessMessage(ctx, engine.TestMessage("guild1", "u1", "hello everyone"))
	require.NoError(t, err)
	assert.True(v.Violated)
	assert.Equal(automod.ViolationSpam, v.Type)
	assert.Equal(1, v.ViolationCount)
	assert.Equal(automod.TierWarn, v.Tier)
	assert.True(v.Outcome.Success)
	assert.Equal(1, eng.GetUserViolations("u1"))
}
