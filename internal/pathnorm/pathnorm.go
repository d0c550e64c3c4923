// Package pathnorm detects dynamic URL path segments and replaces them with
// named parameters, so that every observation of the same logical endpoint
// maps to one normalized path.
//
// Normalization is pure and idempotent: placeholders emitted by a previous
// pass are treated as literal static segments, so normalizing a normalized
// path is a fixed point.
package pathnorm

import (
	"fmt"
	"regexp"
	"strings"
)

// ParamType classifies the shape of a dynamic path segment.
type ParamType string

const (
	TypeNumeric ParamType = "numeric"
	TypeUUID    ParamType = "uuid"
	TypeHex     ParamType = "hex"
	TypeBase64  ParamType = "base64"
	TypeDate    ParamType = "date"
	TypeSlug    ParamType = "slug"
	TypeEmail   ParamType = "email"
	TypeUnknown ParamType = "unknown"
)

// PathParam describes one dynamic segment of a normalized path.
type PathParam struct {
	Name     string    `json:"name"`
	Position int       `json:"position"`
	Example  string    `json:"example"`
	Type     ParamType `json:"type"`
}

// versionRe matches API version markers (v1, v2.1, v10.0.3) which stay static.
var versionRe = regexp.MustCompile(`^v\d+(\.\d+)*$`)

// apiWords are API-convention segments that must never be parameterized,
// even when a shape detector would otherwise claim them.
var apiWords = map[string]struct{}{
	"api": {}, "auth": {}, "list": {}, "export": {}, "import": {},
	"login": {}, "logout": {}, "register": {}, "signup": {}, "signin": {},
	"search": {}, "graphql": {}, "oauth": {}, "callback": {},
	"webhook": {}, "webhooks": {}, "admin": {}, "settings": {},
	"health": {}, "status": {}, "metrics": {}, "docs": {}, "swagger": {},
	"current": {}, "latest": {}, "new": {}, "me": {},
	"token": {}, "refresh": {}, "batch": {}, "bulk": {},
}

var (
	uuidRe      = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	emailRe     = regexp.MustCompile(`^[^@\s/]+@[^@\s/]+\.[^@\s/]+$`)
	dateRe      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}(T[\d:.]+Z?)?$`)
	timestampRe = regexp.MustCompile(`^\d{10}(\d{3})?$`)
	numericRe   = regexp.MustCompile(`^\d+$`)
	hexRe       = regexp.MustCompile(`^[0-9a-fA-F]{8,}$`)
	slugRe      = regexp.MustCompile(`^[A-Za-z0-9]+(-[A-Za-z0-9]+)+$`)
	base64Re    = regexp.MustCompile(`^[A-Za-z0-9+/_-]+={0,2}$`)
)

// detector classifies one path segment. Detectors are evaluated in order,
// most specific first; the first match wins. The precedence order is a
// tested contract, not an implementation detail.
type detector struct {
	typ   ParamType
	match func(string) bool
	// fixedName overrides resource-based naming when non-empty.
	fixedName string
}

var detectors = []detector{
	{typ: TypeUUID, match: uuidRe.MatchString},
	{typ: TypeEmail, match: emailRe.MatchString, fixedName: "email"},
	{typ: TypeDate, match: dateRe.MatchString, fixedName: "date"},
	{typ: TypeDate, match: timestampRe.MatchString, fixedName: "timestamp"},
	{typ: TypeNumeric, match: numericRe.MatchString},
	{typ: TypeHex, match: hexRe.MatchString},
	{typ: TypeSlug, match: func(s string) bool { return len(s) >= 8 && slugRe.MatchString(s) }},
	{typ: TypeBase64, match: isBase64Token},
	{typ: TypeUnknown, match: isShortMixedToken},
}

func isBase64Token(s string) bool {
	if len(s) < 16 || !base64Re.MatchString(s) {
		return false
	}
	// A long plain word matches the base64 alphabet; demand a stronger
	// signal than letters alone.
	return strings.ContainsAny(s, "0123456789+/=_-")
}

func isShortMixedToken(s string) bool {
	if len(s) < 4 {
		return false
	}
	hasLetter, hasDigit := false, false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			hasLetter = true
		case r == '_':
			// prefixed ids like p_123 or usr_9f2
		default:
			return false
		}
	}
	return hasLetter && hasDigit
}

// resourceNames maps pluralized resource words to their canonical singular.
var resourceNames = map[string]string{
	"users": "user", "orders": "order", "projects": "project",
	"tasks": "task", "items": "item", "products": "product",
	"accounts": "account", "customers": "customer", "companies": "company",
	"organizations": "organization", "orgs": "org", "repos": "repo",
	"repositories": "repository", "teams": "team", "invoices": "invoice",
	"sessions": "session", "messages": "message", "posts": "post",
	"comments": "comment", "files": "file", "documents": "document",
	"events": "event", "transactions": "transaction", "payments": "payment",
	"addresses": "address", "categories": "category", "groups": "group",
	"workflows": "workflow", "jobs": "job", "workspaces": "workspace",
	"tickets": "ticket", "notes": "note", "tags": "tag",
}

// Normalize replaces dynamic segments of a URL path with named placeholders
// and returns the parameters that were extracted. It never fails; a segment
// that no detector claims stays static.
func Normalize(path string) (string, []PathParam) {
	segments := strings.Split(path, "/")
	params := make([]PathParam, 0, 2)
	usedNames := make(map[string]int)

	lastStatic := ""
	for i, seg := range segments {
		if seg == "" || isPlaceholder(seg) {
			continue
		}

		lower := strings.ToLower(seg)
		if versionRe.MatchString(lower) {
			lastStatic = seg
			continue
		}
		if _, ok := apiWords[lower]; ok {
			lastStatic = seg
			continue
		}

		det, matched := classify(seg)
		if !matched {
			lastStatic = seg
			continue
		}

		name := paramName(det, lastStatic)
		usedNames[name]++
		if n := usedNames[name]; n > 1 {
			name = fmt.Sprintf("%s%d", name, n)
		}

		params = append(params, PathParam{
			Name:     name,
			Position: i,
			Example:  seg,
			Type:     det.typ,
		})
		segments[i] = "{" + name + "}"
	}

	return strings.Join(segments, "/"), params
}

func classify(seg string) (detector, bool) {
	for _, det := range detectors {
		if det.match(seg) {
			return det, true
		}
	}
	return detector{}, false
}

func isPlaceholder(seg string) bool {
	return len(seg) >= 2 && strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}")
}

// paramName derives a parameter name from the detector and the nearest
// preceding static segment.
func paramName(det detector, precedingStatic string) string {
	if det.fixedName != "" {
		return det.fixedName
	}
	if precedingStatic == "" {
		return "id"
	}

	resource := strings.ToLower(precedingStatic)
	singular, ok := resourceNames[resource]
	if !ok {
		singular = singularize(resource)
	}
	return singular + "Id"
}

// singularize applies the fallback plural-stripping heuristics.
func singularize(word string) string {
	switch {
	case strings.HasSuffix(word, "ies") && len(word) > 3:
		return word[:len(word)-3] + "y"
	case strings.HasSuffix(word, "ses") || strings.HasSuffix(word, "xes") || strings.HasSuffix(word, "zes"):
		return word[:len(word)-2]
	case strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss") && len(word) > 1:
		return word[:len(word)-1]
	default:
		return word
	}
}
