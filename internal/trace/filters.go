package trace

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Static asset extensions to skip.
var staticExts = []string{
	".css", ".js", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp",
	".woff", ".woff2", ".ico", ".map", ".ttf", ".eot", ".otf",
	".mp4", ".webm", ".mp3", ".wav", ".ogg",
}

// Path prefixes to skip.
var skipPaths = []string{
	"/cdn-cgi/", "/_next/data/", "/__nextjs", "/sockjs-node/",
	"/favicon", "/manifest.json", "/robots.txt", "/sitemap",
	"/.well-known/", "/apple-app-site-association",
	"/service-worker", "/sw.js", "/workbox-",
}

// Third-party domains to skip (analytics, ads, payments, consent, SSO, ...).
var skipDomains = []string{
	// Analytics & tracking
	"google-analytics.com", "analytics.google.com",
	"mixpanel.com", "mparticle.com",
	"segment.io", "segment.com",
	"amplitude.com", "heap.io", "heapanalytics.com",
	"posthog.com", "plausible.io", "matomo.org", "stats.wp.com",
	// Ads & attribution
	"doubleclick.net", "googletagmanager.com", "googlesyndication.com",
	"facebook.com", "instagram.com", "connect.facebook.net",
	"appsflyer.com", "intentiq.com", "id5-sync.com", "33across.com",
	"btloader.com", "hbwrapper.com",
	"criteo.com", "criteo.net", "taboola.com", "outbrain.com",
	// Payments (third-party widgets, not target APIs)
	"stripe.com", "paypal.com", "braintreegateway.com", "adyen.com",
	// Support & engagement
	"intercom.io", "zendesk.com", "freshdesk.com", "drift.com", "crisp.chat",
	// UX & monitoring
	"hotjar.com", "clarity.ms", "sentry.io",
	"logrocket.io", "smartlook.com", "mouseflow.com",
	// CDNs
	"cdn.jsdelivr.net", "unpkg.com", "cdnjs.cloudflare.com",
	"ajax.googleapis.com", "code.jquery.com",
	// Consent
	"onetrust.com", "cookielaw.org", "trustarc.com", "evidon.com",
	// Third-party SSO providers
	"accounts.google.com", "stack-auth.com",
	"auth0.com", "okta.com", "onelogin.com",
	// Cloudflare
	"cdn-cgi", "challenges.cloudflare.com",
	// Google services
	"www.google.com", "fonts.googleapis.com", "fonts.gstatic.com",
	"maps.googleapis.com", "www.gstatic.com", "apis.google.com",
	"ssl.gstatic.com", "adservice.google.com",
	"firebaseinstallations.googleapis.com",
	// Social embeds
	"graph.facebook.com", "platform.twitter.com", "syndication.twitter.com",
	// Monitoring SaaS
	"newrelic.com", "nr-data.net",
	"fullstory.com", "launchdarkly.com",
	"datadoghq.com", "bugsnag.com", "rollbar.com", "raygun.io", "trackjs.com",
	// Captcha
	"recaptcha.net", "hcaptcha.com",
	// Mobile attribution
	"branch.io", "app.link", "adjust.com", "kochava.com",
}

// Auth header names to capture (exact matches, lowercase).
var authHeaderNames = map[string]struct{}{
	"authorization": {}, "x-api-key": {}, "api-key": {}, "apikey": {},
	"x-auth-token": {}, "access-token": {}, "x-access-token": {},
	"token": {}, "x-token": {}, "authtype": {},
	"bearer": {}, "jwt": {}, "x-jwt": {}, "x-jwt-token": {},
	"id-token": {}, "id_token": {}, "x-id-token": {},
	"refresh-token": {}, "x-refresh-token": {},
	"x-apikey": {}, "x-key": {}, "key": {}, "secret": {}, "x-secret": {},
	"api-secret": {}, "x-api-secret": {}, "client-secret": {}, "x-client-secret": {},
	"session": {}, "session-id": {}, "sessionid": {}, "x-session": {},
	"x-session-id": {}, "x-session-token": {}, "session-token": {},
	"csrf": {}, "x-csrf": {}, "x-csrf-token": {}, "csrf-token": {},
	"x-xsrf-token": {}, "xsrf-token": {},
	"x-oauth-token": {}, "oauth-token": {}, "x-oauth": {}, "oauth": {},
	"x-amz-security-token": {}, "x-amz-access-token": {},
	"x-goog-api-key": {}, "x-rapidapi-key": {},
	"ocp-apim-subscription-key": {}, "x-functions-key": {},
	"x-auth": {}, "x-authentication": {}, "x-authorization": {},
	"x-user-token": {}, "x-app-token": {}, "x-client-token": {},
	"x-access-key": {}, "x-secret-key": {}, "x-signature": {},
	"x-request-signature": {}, "signature": {},
}

// Substrings that mark a header as auth-related.
var authHeaderPatterns = []string{
	"auth", "token", "key", "secret", "bearer", "jwt",
	"session", "credential", "password", "signature", "sign",
	"api-", "apikey", "access", "oauth", "csrf", "xsrf",
}

// Standard browser / infrastructure headers that are not custom API auth.
var standardHeaders = map[string]struct{}{
	"x-requested-with": {}, "x-forwarded-for": {}, "x-forwarded-host": {},
	"x-forwarded-proto": {}, "x-real-ip": {}, "x-frame-options": {},
	"x-content-type-options": {}, "x-xss-protection": {}, "x-ua-compatible": {},
	"x-dns-prefetch-control": {}, "x-download-options": {},
	"x-permitted-cross-domain-policies": {},
	"x-powered-by": {}, "x-request-id": {}, "x-correlation-id": {}, "x-trace-id": {},
	"x-amz-cf-id": {}, "x-amz-cf-pop": {}, "x-cache": {}, "x-cache-hits": {},
}

// Business identifier headers worth keeping as context.
var contextHeaderNames = map[string]struct{}{
	"outletid": {}, "userid": {}, "supplierid": {}, "companyid": {},
	"tenantid": {}, "organizationid": {}, "accountid": {},
	"workspaceid": {}, "projectid": {},
	"x-tenant-id": {}, "x-org-id": {}, "x-workspace-id": {},
}

// IsAuthHeader checks if a header name looks like an auth header.
func IsAuthHeader(name string) bool {
	lower := strings.ToLower(name)
	if _, ok := authHeaderNames[lower]; ok {
		return true
	}
	for _, p := range authHeaderPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// IsStandardHeader checks if a header is a standard browser header.
func IsStandardHeader(name string) bool {
	_, ok := standardHeaders[strings.ToLower(name)]
	return ok
}

// IsContextHeader checks if a header carries a business context identifier.
func IsContextHeader(name string) bool {
	_, ok := contextHeaderNames[strings.ToLower(name)]
	return ok
}

// isHTTP2PseudoHeader reports whether the name is an HTTP/2 pseudo-header.
func isHTTP2PseudoHeader(name string) bool {
	return strings.HasPrefix(name, ":")
}

// IsStaticAsset checks if a URL points to a static asset.
func IsStaticAsset(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	for _, ext := range staticExts {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	for _, prefix := range skipPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// IsThirdPartyDomain checks if a domain should be filtered out.
func IsThirdPartyDomain(domain string) bool {
	lower := strings.ToLower(domain)
	for _, skip := range skipDomains {
		if strings.Contains(lower, skip) {
			return true
		}
	}
	return false
}

// IsHTMLContentType checks if a content type indicates an HTML document.
func IsHTMLContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

// IsAPILike reports whether a request looks like an API call rather than a
// page navigation or asset fetch.
func IsAPILike(rawURL, method, domain, contentType string) bool {
	if contentType != "" {
		ct := strings.ToLower(contentType)
		if strings.Contains(ct, "application/json") || strings.Contains(ct, "text/json") {
			return true
		}
	}

	urlLower := strings.ToLower(rawURL)
	for _, marker := range []string{
		"/api/", "/services/", "/v1/", "/v2/", "/v3/", "/graphql",
		"/order", "/quote", "/tokens", "/markets",
		"/user", "/auth", "/account", "/profile",
		"/data", "/query", "/rpc",
	} {
		if strings.Contains(urlLower, marker) {
			return true
		}
	}

	switch method {
	case "POST", "PUT", "DELETE", "PATCH":
		return true
	}

	return strings.Contains(domain, "api.") ||
		strings.Contains(domain, "service") ||
		strings.HasPrefix(domain, "dev-") ||
		strings.HasPrefix(domain, "staging-")
}

// RootDomain returns the registrable domain (eTLD+1) for comparison across
// subdomains. Falls back to the last two labels when the public suffix list
// cannot resolve the input (bare hosts, IPs).
func RootDomain(domain string) string {
	if root, err := publicsuffix.EffectiveTLDPlusOne(domain); err == nil {
		return root
	}
	parts := strings.Split(domain, ".")
	if len(parts) >= 2 {
		return strings.Join(parts[len(parts)-2:], ".")
	}
	return domain
}

// SameRootDomain checks if two hosts share the same registrable domain.
func SameRootDomain(a, b string) bool {
	return RootDomain(a) == RootDomain(b)
}

var tldSuffixRe = regexp.MustCompile(`\.(com|org|net|co|io|ai|app|sg|dev|xyz|gg|fm|tv|me|so|to)\.?$`)

// ServiceName derives a stable service identifier from a domain, e.g.
// "api.github.com" -> "github".
func ServiceName(domain string) string {
	name := strings.ToLower(domain)
	for _, prefix := range []string{"www.", "api.", "app.", "m."} {
		name = strings.TrimPrefix(name, prefix)
	}

	name = tldSuffixRe.ReplaceAllString(name, "")
	name = strings.ReplaceAll(name, ".", "-")

	if name == "" {
		return "unknown-api"
	}
	return name
}
