// Package trace ingests recorded HTTP exchanges into a canonical form.
//
// Input traffic is untrusted and frequently malformed; every function in
// this package degrades (skips the entry, keeps the body opaque) instead of
// returning an error for bad content. Errors are reserved for unreadable
// input documents.
package trace

import (
	"net/url"
	"strings"
	"time"
)

// Header is a single request or response header.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Cookie is a request cookie observed in a capture.
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Exchange is one canonical request/response pair. Immutable once ingested.
type Exchange struct {
	Method string `json:"method"`
	URL    string `json:"url"`
	Path   string `json:"path"`
	Domain string `json:"domain"`

	Query               url.Values `json:"query,omitempty"`
	RequestHeaders      []Header   `json:"request_headers,omitempty"`
	RequestCookies      []Cookie   `json:"request_cookies,omitempty"`
	RequestBody         string     `json:"request_body,omitempty"`
	RequestContentType  string     `json:"request_content_type,omitempty"`
	Status              int        `json:"status"`
	ResponseHeaders     []Header   `json:"response_headers,omitempty"`
	ResponseBody        string     `json:"response_body,omitempty"`
	ResponseContentType string     `json:"response_content_type,omitempty"`

	// Timestamp is the capture time; zero when the capture did not record one.
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// RequestHeader returns the first request header with the given name,
// case-insensitively.
func (e *Exchange) RequestHeader(name string) (string, bool) {
	return headerValue(e.RequestHeaders, name)
}

// ResponseHeader returns the first response header with the given name,
// case-insensitively.
func (e *Exchange) ResponseHeader(name string) (string, bool) {
	return headerValue(e.ResponseHeaders, name)
}

func headerValue(headers []Header, name string) (string, bool) {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// Capture is the result of ingesting one recorded session: the canonical
// exchanges plus the auth surface and service identity derived from them.
type Capture struct {
	Service     string            `json:"service"`
	BaseURL     string            `json:"base_url"`
	BaseURLs    []string          `json:"base_urls"`
	AuthMethod  string            `json:"auth_method"`
	AuthHeaders map[string]string `json:"auth_headers,omitempty"`
	Cookies     map[string]string `json:"cookies,omitempty"`
	AuthInfo    map[string]string `json:"auth_info,omitempty"`
	Exchanges   []Exchange        `json:"exchanges"`
}
