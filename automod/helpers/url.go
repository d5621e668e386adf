package helpers

import (
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/purell"
)

const normalizeFlags = purell.FlagsSafe | purell.FlagRemoveFragment | purell.FlagRemoveDuplicateSlashes | purell.FlagRemoveWWW

// only a scheme at the very start counts; "://" inside a query string does not
var schemeRegex = regexp.MustCompile(`(?i)^[a-z][a-z0-9+.-]*://`)

// Derives a comparable hostname from a URL-ish string, as found in message text: "HTTPS://WWW.Example.com/x" and "example.com" both give "example.com".
//
// Returns an empty string for unparseable input, for URLs without a host, and for localhost.
func Hostname(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !schemeRegex.MatchString(raw) {
		raw = "http://" + raw
	}
	clean, err := purell.NormalizeURLString(raw, normalizeFlags)
	if err != nil {
		return ""
	}
	u, err := url.Parse(clean)
	if err != nil {
		return ""
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	host = strings.TrimPrefix(host, "www.")
	if host == "" || host == "localhost" {
		return ""
	}
	return host
}

// Reduces a whitelist entry (which may have been entered as a URL) to the same form Hostname produces.
func NormalizeHost(entry string) string {
	entry = strings.ToLower(strings.TrimSpace(entry))
	if loc := schemeRegex.FindStringIndex(entry); loc != nil {
		entry = entry[loc[1]:]
	}
	if i := strings.IndexAny(entry, "/?#"); i >= 0 {
		entry = entry[:i]
	}
	return strings.TrimPrefix(entry, "www.")
}

// Exact match against a list of normalized hostnames. Subdomains of a listed host are not matched.
func HostInList(host string, list []string) bool {
	return host != "" && slices.Contains(list, host)
}
