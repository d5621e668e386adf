package util

import (
	"strings"
)

// Takes a "host" string and returns an appropriate websocket URL. Defaults to
// wss://, except for localhost. Tries to convert http/https to wss/ws.
func WebsocketUrlForHost(host string) string {
	if host == "" {
		return ""
	}
	if strings.HasPrefix(host, "wss://") || strings.HasPrefix(host, "ws://") {
		return host
	}
	if rest, ok := strings.CutPrefix(host, "https://"); ok {
		return "wss://" + rest
	}
	if rest, ok := strings.CutPrefix(host, "http://"); ok {
		return "ws://" + rest
	}
	if strings.Contains(host, "://") {
		// don't mess with unexpected schemes
		return host
	}
	if isLoopback(host) {
		return "ws://" + host
	}
	return "wss://" + host
}

// Same conversion in the other direction, for REST calls to the host serving a gateway.
func HTTPUrlForHost(host string) string {
	if host == "" {
		return ""
	}
	if rest, ok := strings.CutPrefix(host, "wss://"); ok {
		return "https://" + rest
	}
	if rest, ok := strings.CutPrefix(host, "ws://"); ok {
		return "http://" + rest
	}
	if strings.Contains(host, "://") {
		return host
	}
	if isLoopback(host) {
		return "http://" + host
	}
	return "https://" + host
}

func isLoopback(host string) bool {
	if strings.HasPrefix(host, "127.0.0.") || strings.HasPrefix(host, "[::1]") {
		return true
	}
	hostname := strings.SplitN(host, ":", 2)[0]
	return hostname == "localhost"
}
