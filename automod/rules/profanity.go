package rules

import (
	"unicode/utf8"

	"github.com/wardenchat/warden/automod"
	"github.com/wardenchat/warden/automod/keyword"
)

var _ automod.DetectorFunc = ProfanityRule

// Whole-word match against the built-in list and the tenant's custom words. Text is checked both as written and with accents folded away.
func ProfanityRule(c *automod.MessageContext) error {
	prof := c.Config.Profanity
	if !prof.Enabled || c.Message.Content == "" {
		return nil
	}

	var words []string
	if prof.UseBuiltin {
		words = append(words, keyword.BuiltinProfanity...)
	}
	words = append(words, prof.CustomWords...)

	text := c.Message.Content
	folded := keyword.FoldText(text)
	seen := make(map[string]bool, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) < keyword.MinWordRunes || seen[w] {
			continue
		}
		seen[w] = true
		re, err := c.Patterns().Word(w)
		if err != nil {
			c.Logger.Warn("skipping invalid profanity pattern", "word", w, "err", err)
			continue
		}
		if re.MatchString(text) || re.MatchString(folded) {
			c.Logger.Debug("profanity match", "word", w)
			c.Violation(automod.ViolationProfanity, "used prohibited language")
			return nil
		}
	}
	return nil
}
