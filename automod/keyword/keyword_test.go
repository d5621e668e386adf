package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeContent(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("hello world", NormalizeContent("  Hello World \n"))
	// precomposed and decomposed forms compare equal
	assert.Equal(NormalizeContent("café"), NormalizeContent("Café"))
	assert.Equal("", NormalizeContent("   "))
}

func TestFoldText(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		text string
		out  string
	}{
		{text: "", out: ""},
		{text: "Gdańsk", out: "gdansk"},
		{text: "FÜCK", out: "fuck"},
		{text: "Hello, โลก!", out: "hello, โลก!"},
	}
	for _, fix := range fixtures {
		assert.Equal(fix.out, FoldText(fix.text))
	}
}

func TestTruncateRunes(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("", TruncateRunes("abc", 0))
	assert.Equal("ab", TruncateRunes("abc", 2))
	assert.Equal("abc", TruncateRunes("abc", 5))
	assert.Equal("日本", TruncateRunes("日本語", 2))
}

func TestCompileWord(t *testing.T) {
	assert := assert.New(t)

	re, err := CompileWord("ass")
	assert.NoError(err)
	assert.True(re.MatchString("you ass"))
	assert.True(re.MatchString("ASS!"))
	assert.True(re.MatchString("(ass)"))
	assert.False(re.MatchString("class"))
	assert.False(re.MatchString("assess"))
	assert.False(re.MatchString("ass_hat"))
	assert.False(re.MatchString("ass2"))

	// regex metacharacters are literal
	re, err = CompileWord("a.b")
	assert.NoError(err)
	assert.True(re.MatchString("x a.b y"))
	assert.False(re.MatchString("x axb y"))

	// unicode letters are word characters
	re, err = CompileWord("merde")
	assert.NoError(err)
	assert.False(re.MatchString("émerde"))
	assert.True(re.MatchString("oh merde."))

	_, err = CompileWord("x")
	assert.Error(err)
	_, err = CompileWord("  ")
	assert.Error(err)
}

func TestPatternCache(t *testing.T) {
	assert := assert.New(t)

	pc := NewPatternCache(4)
	a, err := pc.Word("Heck")
	assert.NoError(err)
	b, err := pc.Word("heck ")
	assert.NoError(err)
	assert.Same(a, b)

	_, err = pc.Expr(`(unclosed`)
	assert.Error(err)
	_, err = pc.Expr(`(unclosed`)
	assert.Error(err)

	re, err := pc.Expr(`bit\.ly/\S+`)
	assert.NoError(err)
	assert.True(re.MatchString("see bit.ly/abc"))

	for _, w := range []string{"one", "two", "three", "four", "five"} {
		_, _ = pc.Word(w)
	}
	assert.LessOrEqual(pc.Len(), 8)

	pc.Purge()
	assert.Equal(0, pc.Len())
}

func TestBuiltinProfanityCompiles(t *testing.T) {
	assert := assert.New(t)

	for _, w := range BuiltinProfanity {
		assert.Equal(FoldText(w), w)
		_, err := CompileWord(w)
		assert.NoError(err, w)
	}
}
