// Package validator probes a diverse subset of catalog endpoints with real
// credentials and reports structural evidence of liveness. It is read-only:
// only GET endpoints outside the auth category are ever exercised.
package validator

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	apperrors "github.com/traceforge/traceforge/internal/errors"
	"github.com/traceforge/traceforge/internal/group"
	"github.com/traceforge/traceforge/internal/logger"
)

// Config controls selection breadth, concurrency, and budgets.
type Config struct {
	MaxEndpoints   int
	BatchSize      int
	RequestTimeout time.Duration
	TotalBudget    time.Duration
	RequestsPerSec float64
	UserAgent      string
	SkipTLSVerify  bool
	ToolVersion    string
}

// DefaultConfig returns conservative probing defaults.
func DefaultConfig() Config {
	return Config{
		MaxEndpoints:   10,
		BatchSize:      4,
		RequestTimeout: 10 * time.Second,
		TotalBudget:    60 * time.Second,
		RequestsPerSec: 5,
		UserAgent:      "traceforge-validator/1.0",
		ToolVersion:    "1.0.0",
	}
}

// Credentials carry the auth surface recorded during capture.
type Credentials struct {
	Headers map[string]string
	Cookies map[string]string
}

// Result is the evidence for one probed endpoint.
type Result struct {
	Endpoint   string        `json:"endpoint"`
	URL        string        `json:"url,omitempty"`
	StatusCode int           `json:"statusCode"`
	OK         bool          `json:"ok"`
	Skipped    bool          `json:"skipped,omitempty"`
	Shape      string        `json:"shape,omitempty"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

// Evidence is the transient report of one validation run. It is never
// merged back into the catalog.
type Evidence struct {
	RunID             string        `json:"runId"`
	EndpointsTested   int           `json:"endpointsTested"`
	EndpointsVerified int           `json:"endpointsVerified"`
	EndpointsFailed   int           `json:"endpointsFailed"`
	EndpointsSkipped  int           `json:"endpointsSkipped"`
	Results           []Result      `json:"results"`
	Passed            bool          `json:"passed"`
	Platform          string        `json:"platform"`
	ToolVersion       string        `json:"toolVersion"`
	StartedAt         time.Time     `json:"startedAt"`
	Duration          time.Duration `json:"duration"`
}

// Validator issues bounded concurrent probes against one service.
type Validator struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

// New builds a validator. The transport mirrors a short-lived probing run:
// few connections, no aggressive keep-alive tuning.
func New(cfg Config, log *logger.Logger) *Validator {
	if cfg.MaxEndpoints <= 0 {
		cfg.MaxEndpoints = DefaultConfig().MaxEndpoints
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}
	if cfg.TotalBudget <= 0 {
		cfg.TotalBudget = DefaultConfig().TotalBudget
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = DefaultConfig().RequestsPerSec
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig().UserAgent
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.BatchSize * 2,
		MaxIdleConnsPerHost: cfg.BatchSize,
		TLSHandshakeTimeout: 5 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.SkipTLSVerify,
		},
	}

	return &Validator{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.BatchSize),
		log:     log.WithComponent("validator"),
	}
}

// Validate probes a diverse subset of groups against baseURL. Partial
// results after the budget expires are valid evidence, not a failure.
func (v *Validator) Validate(ctx context.Context, baseURL string, groups []*group.EndpointGroup, creds *Credentials) *Evidence {
	start := time.Now()
	ev := &Evidence{
		RunID:       uuid.NewString(),
		Platform:    runtime.GOOS + "/" + runtime.GOARCH,
		ToolVersion: v.cfg.ToolVersion,
		StartedAt:   start.UTC(),
	}

	candidates := Select(groups, v.cfg.MaxEndpoints)
	v.log.Debugf("selected %d of %d endpoints for validation", len(candidates), len(groups))

	var runnable []probe
	for _, g := range candidates {
		target, ok := buildURL(baseURL, g)
		if !ok {
			ev.Results = append(ev.Results, Result{
				Endpoint: g.Key(),
				Skipped:  true,
				Error:    "no concrete example for path parameter",
			})
			ev.EndpointsSkipped++
			continue
		}
		runnable = append(runnable, probe{key: g.Key(), url: target})
	}

	for batchStart := 0; batchStart < len(runnable); batchStart += v.cfg.BatchSize {
		if time.Since(start) >= v.cfg.TotalBudget || ctx.Err() != nil {
			for _, p := range runnable[batchStart:] {
				ev.Results = append(ev.Results, Result{
					Endpoint: p.key,
					URL:      p.url,
					Skipped:  true,
					Error:    "validation budget exceeded",
				})
				ev.EndpointsSkipped++
			}
			break
		}

		end := batchStart + v.cfg.BatchSize
		if end > len(runnable) {
			end = len(runnable)
		}
		batch := runnable[batchStart:end]

		results := make([]Result, len(batch))
		var wg sync.WaitGroup
		for i, p := range batch {
			wg.Add(1)
			go func(i int, p probe) {
				defer wg.Done()
				results[i] = v.probeOne(ctx, p, creds)
			}(i, p)
		}
		wg.Wait()

		for _, r := range results {
			ev.Results = append(ev.Results, r)
			ev.EndpointsTested++
			if r.OK {
				ev.EndpointsVerified++
			} else {
				ev.EndpointsFailed++
			}
		}
	}

	ev.Duration = time.Since(start)
	ev.Passed = ev.EndpointsVerified >= 1 &&
		float64(ev.EndpointsVerified) >= 0.5*float64(ev.EndpointsTested)
	v.log.Infof("validation run %s: %d tested, %d verified, %d skipped, passed=%v",
		ev.RunID, ev.EndpointsTested, ev.EndpointsVerified, ev.EndpointsSkipped, ev.Passed)
	return ev
}

type probe struct {
	key string
	url string
}

func (v *Validator) probeOne(ctx context.Context, p probe, creds *Credentials) Result {
	res := Result{Endpoint: p.key, URL: p.url}

	if err := v.limiter.Wait(ctx); err != nil {
		res.Error = apperrors.NewCancelledError(p.key, "rate limit wait").Error()
		return res
	}

	reqCtx, cancel := context.WithTimeout(ctx, v.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, p.url, nil)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	req.Header.Set("User-Agent", v.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	if creds != nil {
		for name, value := range creds.Headers {
			req.Header.Set(name, value)
		}
		for name, value := range creds.Cookies {
			req.AddCookie(&http.Cookie{Name: name, Value: value})
		}
	}

	resp, err := v.client.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		probeErr := apperrors.Categorize(err, p.url)
		res.Error = probeErr.Error()
		v.log.ErrorEvent(probeErr, p.url, "probe")
		v.log.ProbeEvent(http.MethodGet, p.url, 0, res.Duration)
		return res
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	res.StatusCode = resp.StatusCode

	shape, nonTrivial := AnalyzeShape(string(body))
	res.Shape = shape
	res.OK = resp.StatusCode >= 200 && resp.StatusCode < 300 && nonTrivial
	v.log.ProbeEvent(http.MethodGet, p.url, resp.StatusCode, res.Duration)
	return res
}

// buildURL substitutes concrete examples for path placeholders and appends
// observed query examples. A placeholder without an example means the
// endpoint cannot be probed.
func buildURL(baseURL string, g *group.EndpointGroup) (string, bool) {
	path := g.Path
	for _, p := range g.PathParams {
		placeholder := "{" + p.Name + "}"
		if !strings.Contains(path, placeholder) {
			continue
		}
		if p.Example == "" {
			return "", false
		}
		path = strings.ReplaceAll(path, placeholder, url.PathEscape(p.Example))
	}
	if strings.Contains(path, "{") {
		return "", false
	}

	full := strings.TrimRight(baseURL, "/") + path
	if len(g.QueryParams) > 0 {
		q := url.Values{}
		for _, qp := range g.QueryParams {
			if qp.Example != "" {
				q.Set(qp.Name, qp.Example)
			}
		}
		if encoded := q.Encode(); encoded != "" {
			full += "?" + encoded
		}
	}
	return full, true
}
