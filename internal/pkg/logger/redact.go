package logger

import (
	"regexp"
	"strings"
)

var urlCredentialRegex = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://[^/\s:@]+:[^/\s@]*@`)

// RedactURLCredentials masks the password part of a URL userinfo prefix.
// "postgres://feeds:hunter2@db" → "postgres://feeds:***@db"
func RedactURLCredentials(s string) string {
	scheme := strings.Index(s, "://")
	at := strings.LastIndex(s, "@")
	if scheme < 0 || at < scheme {
		return s
	}
	userinfo := s[scheme+3 : at]
	colon := strings.Index(userinfo, ":")
	if colon < 0 {
		return s
	}
	return s[:scheme+3] + userinfo[:colon] + ":***" + s[at:]
}
