package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWebsocketUrlForHost(t *testing.T) {
	assert := assert.New(t)

	testCases := []struct {
		host     string
		expected string
	}{
		{"localhost", "ws://localhost"},
		{"localhost:8400", "ws://localhost:8400"},
		{"127.0.0.1", "ws://127.0.0.1"},
		{"[::1]", "ws://[::1]"},
		{"wss://127.0.0.1:443", "wss://127.0.0.1:443"},
		{"gateway.example.com", "wss://gateway.example.com"},
		{"ws://example.com", "ws://example.com"},
		{"http://example.com", "ws://example.com"},
		{"https://example.com/gateway", "wss://example.com/gateway"},
		{"ftp://example.com", "ftp://example.com"},
		{"", ""},
	}

	for _, c := range testCases {
		assert.Equal(c.expected, WebsocketUrlForHost(c.host))
	}
}

func TestHTTPUrlForHost(t *testing.T) {
	assert := assert.New(t)

	testCases := []struct {
		host     string
		expected string
	}{
		{"localhost:8400", "http://localhost:8400"},
		{"wss://example.com", "https://example.com"},
		{"ws://127.0.0.1:8400", "http://127.0.0.1:8400"},
		{"https://example.com", "https://example.com"},
		{"example.com", "https://example.com"},
		{"", ""},
	}

	for _, c := range testCases {
		assert.Equal(c.expected, HTTPUrlForHost(c.host))
	}
}
