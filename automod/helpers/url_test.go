package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostname(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		raw  string
		host string
	}{
		{raw: "example.com", host: "example.com"},
		{raw: "https://www.Example.com/path?q=1", host: "example.com"},
		{raw: "HTTP://WWW.GITHUB.COM", host: "github.com"},
		{raw: "sub.example.com:8080/x", host: "sub.example.com"},
		{raw: "http://localhost:3000", host: ""},
		{raw: "", host: ""},
		{raw: "http://", host: ""},
		{raw: "bit.ly/abc123", host: "bit.ly"},
		{raw: "bit.ly/abc?r=https://x", host: "bit.ly"},
		{raw: "grabify.link/a?next=ftp://y.com", host: "grabify.link"},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.host, Hostname(fix.raw), fix.raw)
	}
}

func TestWhitelistRoundTrip(t *testing.T) {
	assert := assert.New(t)

	// a whitelist entry derived from a URL must match that same URL
	for _, raw := range []string{"https://www.youtube.com/watch?v=x", "github.com/org/repo", "HTTPS://Docs.Example.org/", "bit.ly/x?to=https://github.com"} {
		entry := NormalizeHost(raw)
		assert.True(HostInList(Hostname(raw), []string{entry}), raw)
	}

	assert.False(HostInList("evil.github.com", []string{"github.com"}))
	assert.False(HostInList("", []string{""}))
}
