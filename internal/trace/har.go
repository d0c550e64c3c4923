package trace

import (
	"encoding/json"
	"time"

	"github.com/traceforge/traceforge/internal/errors"
)

// HAR wire format, as emitted by browser devtools and recording proxies.
// Only the fields the ingestor consumes are modeled.

type harFile struct {
	Log harLog `json:"log"`
}

type harLog struct {
	Entries []harEntry `json:"entries"`
}

type harEntry struct {
	Request         harRequest  `json:"request"`
	Response        harResponse `json:"response"`
	StartedDateTime string      `json:"startedDateTime"`
}

type harNameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type harPostData struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

type harRequest struct {
	Method   string         `json:"method"`
	URL      string         `json:"url"`
	Headers  []harNameValue `json:"headers"`
	Cookies  []harNameValue `json:"cookies"`
	PostData *harPostData   `json:"postData"`
}

type harContent struct {
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

type harResponse struct {
	Status  int            `json:"status"`
	Headers []harNameValue `json:"headers"`
	Content *harContent    `json:"content"`
}

// ParseHAR ingests a HAR capture into a Capture. seedURL, when non-empty,
// anchors service identity to the domain the user actually targeted.
// Individual malformed entries are skipped; only an unreadable document is
// an error.
func ParseHAR(data []byte, seedURL string) (*Capture, error) {
	var har harFile
	if err := json.Unmarshal(data, &har); err != nil {
		return nil, errors.NewParseError("har", "har_parse", err)
	}

	exchanges := make([]Exchange, 0, len(har.Log.Entries))
	for _, entry := range har.Log.Entries {
		ex := Exchange{
			Method: entry.Request.Method,
			URL:    entry.Request.URL,
			Status: entry.Response.Status,
		}

		for _, h := range entry.Request.Headers {
			ex.RequestHeaders = append(ex.RequestHeaders, Header{Name: h.Name, Value: h.Value})
		}
		for _, c := range entry.Request.Cookies {
			ex.RequestCookies = append(ex.RequestCookies, Cookie{Name: c.Name, Value: c.Value})
		}
		if entry.Request.PostData != nil {
			ex.RequestBody = entry.Request.PostData.Text
			ex.RequestContentType = entry.Request.PostData.MimeType
		}

		for _, h := range entry.Response.Headers {
			ex.ResponseHeaders = append(ex.ResponseHeaders, Header{Name: h.Name, Value: h.Value})
		}
		if entry.Response.Content != nil {
			ex.ResponseBody = entry.Response.Content.Text
			if entry.Response.Content.MimeType != "" {
				ex.ResponseContentType = entry.Response.Content.MimeType
			}
		}
		if ex.ResponseContentType == "" {
			if ct, ok := ex.ResponseHeader("content-type"); ok {
				ex.ResponseContentType = ct
			}
		}

		if entry.StartedDateTime != "" {
			if ts, err := time.Parse(time.RFC3339Nano, entry.StartedDateTime); err == nil {
				ex.Timestamp = ts
			}
		}

		exchanges = append(exchanges, ex)
	}

	return Ingest(exchanges, seedURL), nil
}
