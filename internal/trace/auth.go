package trace

import (
	"fmt"
	"sort"
	"strings"
)

// DetectAuthMethod classifies the auth surface of a capture into a short
// human-readable summary. Detection is ordered from most to least specific;
// the first matching rule wins.
func DetectAuthMethod(authHeaders, cookies map[string]string) string {
	names := make([]string, 0, len(authHeaders))
	for name := range authHeaders {
		names = append(names, strings.ToLower(name))
	}
	sort.Strings(names)

	for _, value := range authHeaders {
		if strings.HasPrefix(strings.ToLower(value), "bearer ") {
			return "Bearer Token"
		}
	}

	if name := firstMatching(names, func(h string) bool {
		return strings.Contains(h, "api-key") || strings.Contains(h, "apikey") ||
			h == "x-api-key" || h == "x-key"
	}); name != "" {
		return fmt.Sprintf("API Key (%s)", name)
	}

	if name := firstMatching(names, func(h string) bool {
		return strings.Contains(h, "jwt") || strings.Contains(h, "id-token") ||
			strings.Contains(h, "id_token")
	}); name != "" {
		return fmt.Sprintf("JWT (%s)", name)
	}

	if value, ok := lookupFold(authHeaders, "authorization"); ok {
		lower := strings.ToLower(value)
		switch {
		case strings.HasPrefix(lower, "basic "):
			return "Basic Auth"
		case strings.HasPrefix(lower, "digest "):
			return "Digest Auth"
		default:
			return "Authorization Header"
		}
	}

	if name := firstMatching(names, func(h string) bool {
		return strings.Contains(h, "session") || strings.Contains(h, "csrf") ||
			strings.Contains(h, "xsrf")
	}); name != "" {
		return fmt.Sprintf("Session Token (%s)", name)
	}

	if firstMatching(names, func(h string) bool { return strings.Contains(h, "amz") }) != "" {
		return "AWS Signature"
	}

	if name := firstMatching(names, func(h string) bool { return strings.Contains(h, "oauth") }); name != "" {
		return fmt.Sprintf("OAuth (%s)", name)
	}

	if name := firstMatching(names, func(h string) bool {
		return strings.Contains(h, "auth") || strings.Contains(h, "token")
	}); name != "" {
		return fmt.Sprintf("Custom Token (%s)", name)
	}

	if name := firstMatching(names, func(h string) bool { return strings.HasPrefix(h, "x-") }); name != "" {
		return fmt.Sprintf("Custom Header (%s)", name)
	}

	authCookieNames := []string{
		"session", "sessionid", "token", "authtoken", "jwt", "auth",
		"access_token", "accesstoken", "id_token", "refresh_token",
	}
	for _, want := range authCookieNames {
		for name := range cookies {
			if strings.ToLower(name) == want {
				return fmt.Sprintf("Cookie-based (%s)", want)
			}
		}
	}

	cookieNames := make([]string, 0, len(cookies))
	for name := range cookies {
		cookieNames = append(cookieNames, name)
	}
	sort.Strings(cookieNames)
	for _, name := range cookieNames {
		lower := strings.ToLower(name)
		if strings.Contains(lower, "auth") || strings.Contains(lower, "token") ||
			strings.Contains(lower, "session") {
			return fmt.Sprintf("Cookie-based (%s)", name)
		}
	}

	return "Unknown (may need login)"
}

func firstMatching(sorted []string, match func(string) bool) string {
	for _, s := range sorted {
		if match(s) {
			return s
		}
	}
	return ""
}

func lookupFold(m map[string]string, key string) (string, bool) {
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}
