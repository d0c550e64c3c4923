package trace

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Ingest normalizes a raw recorded-exchange list into a Capture: noise is
// filtered out, the auth surface is harvested, and service identity is
// derived. The input order is preserved for exchanges that survive
// filtering.
func Ingest(raw []Exchange, seedURL string) *Capture {
	c := newCollector(seedURL)
	for _, ex := range raw {
		c.add(ex)
	}
	return c.capture()
}

type collector struct {
	exchanges     []Exchange
	authHeaders   map[string]string
	cookies       map[string]string
	authInfo      map[string]string
	baseURLs      map[string]struct{}
	targetDomains map[string]struct{}
	seedDomain    string
	seedBaseURL   string
}

func newCollector(seedURL string) *collector {
	c := &collector{
		authHeaders:   make(map[string]string),
		cookies:       make(map[string]string),
		authInfo:      make(map[string]string),
		baseURLs:      make(map[string]struct{}),
		targetDomains: make(map[string]struct{}),
	}
	if seedURL != "" {
		if u, err := url.Parse(seedURL); err == nil && u.Host != "" {
			c.seedDomain = u.Hostname()
			c.seedBaseURL = u.Scheme + "://" + u.Host
		}
	}
	return c
}

func (c *collector) add(ex Exchange) {
	if IsStaticAsset(ex.URL) {
		return
	}

	u, err := url.Parse(ex.URL)
	if err != nil || u.Hostname() == "" {
		return
	}
	ex.Path = u.Path
	ex.Domain = u.Hostname()
	ex.Query = u.Query()

	if IsThirdPartyDomain(ex.Domain) {
		return
	}

	// HTML page navigations are not API traffic.
	if ex.Method == "GET" && IsHTMLContentType(ex.ResponseContentType) {
		return
	}

	seedRelated := c.seedDomain != "" && SameRootDomain(ex.Domain, c.seedDomain)
	_, knownDomain := c.targetDomains[ex.Domain]
	if !IsAPILike(ex.URL, ex.Method, ex.Domain, ex.ResponseContentType) &&
		len(c.targetDomains) > 0 && !knownDomain && !seedRelated {
		return
	}

	c.targetDomains[ex.Domain] = struct{}{}
	c.baseURLs[u.Scheme+"://"+u.Host] = struct{}{}

	c.harvestAuth(&ex)
	c.exchanges = append(c.exchanges, ex)
}

func (c *collector) harvestAuth(ex *Exchange) {
	for _, h := range ex.RequestHeaders {
		name := strings.ToLower(h.Name)
		if isHTTP2PseudoHeader(name) {
			continue
		}

		if IsAuthHeader(name) {
			c.authHeaders[name] = h.Value
			c.authInfo["request_header_"+name] = h.Value
		}
		if IsContextHeader(name) {
			c.authInfo["request_header_"+name] = h.Value
		}
		if strings.HasPrefix(name, "x-") && !IsStandardHeader(name) && h.Value != "" {
			key := "request_header_" + name
			if _, exists := c.authInfo[key]; !exists {
				c.authInfo[key] = h.Value
			}
		}
	}

	for _, cookie := range ex.RequestCookies {
		c.cookies[cookie.Name] = cookie.Value
		c.authInfo["request_cookie_"+cookie.Name] = cookie.Value
	}

	// Set-Cookie values are kept whole; dates inside contain commas, so the
	// header must never be comma-split.
	for _, h := range ex.ResponseHeaders {
		if !strings.EqualFold(h.Name, "set-cookie") {
			continue
		}
		name, value := splitSetCookie(h.Value)
		if name != "" && value != "" {
			c.authInfo["response_setcookie_"+name] = value
		}
	}
}

func splitSetCookie(raw string) (name, value string) {
	eq := strings.Index(raw, "=")
	if eq < 0 {
		return "", ""
	}
	name = strings.TrimSpace(raw[:eq])
	rest := raw[eq+1:]
	if semi := strings.Index(rest, ";"); semi >= 0 {
		rest = rest[:semi]
	}
	return name, strings.TrimSpace(rest)
}

func (c *collector) capture() *Capture {
	service, baseURL := c.identity()

	baseURLs := make([]string, 0, len(c.baseURLs))
	for b := range c.baseURLs {
		baseURLs = append(baseURLs, b)
	}
	sort.Strings(baseURLs)

	return &Capture{
		Service:     service,
		BaseURL:     baseURL,
		BaseURLs:    baseURLs,
		AuthMethod:  DetectAuthMethod(c.authHeaders, c.cookies),
		AuthHeaders: c.authHeaders,
		Cookies:     c.cookies,
		AuthInfo:    c.authInfo,
		Exchanges:   c.exchanges,
	}
}

// identity picks the service name and primary base URL. Preference order:
// the busiest API-looking domain related to the seed, then the seed itself,
// then the busiest observed domain.
func (c *collector) identity() (service, baseURL string) {
	const fallbackService = "unknown-api"
	const fallbackBase = "https://api.example.com"

	domainCounts := make(map[string]int)
	for _, ex := range c.exchanges {
		domainCounts[ex.Domain]++
	}

	var bestAPIDomain string
	bestCount := 0
	for domain, count := range domainCounts {
		looksAPI := strings.Contains(domain, "api.") ||
			strings.Contains(domain, "service") ||
			strings.HasPrefix(domain, "dev-")
		if looksAPI && (count > bestCount || (count == bestCount && domain < bestAPIDomain)) {
			bestAPIDomain = domain
			bestCount = count
		}
	}

	if bestAPIDomain != "" && c.seedDomain != "" {
		if SameRootDomain(bestAPIDomain, c.seedDomain) {
			return ServiceName(c.seedDomain), "https://" + bestAPIDomain
		}
		return ServiceName(c.seedDomain), c.seedBaseURL
	}

	if c.seedDomain != "" {
		if c.seedBaseURL != "" {
			return ServiceName(c.seedDomain), c.seedBaseURL
		}
		return ServiceName(c.seedDomain), fallbackBase
	}

	var mainDomain string
	mainCount := 0
	for domain, count := range domainCounts {
		if count > mainCount || (count == mainCount && domain < mainDomain) {
			mainDomain = domain
			mainCount = count
		}
	}
	if mainDomain != "" {
		return ServiceName(mainDomain), "https://" + mainDomain
	}

	return fallbackService, fallbackBase
}

// HTMLTitle extracts the document title from an HTML body, for response
// summaries of non-JSON endpoints. Returns "" for anything unparseable.
func HTMLTitle(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// SanitizeAuthValues masks credential values for display or export, keeping
// a short prefix so different tokens remain distinguishable.
func SanitizeAuthValues(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for name, value := range values {
		out[name] = maskValue(value)
	}
	return out
}

func maskValue(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	return fmt.Sprintf("%s****", value[:4])
}
