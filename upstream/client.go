// Package upstream implements typed, retrying HTTP access to the two
// collaborator services named in spec.md §6: the Ordinals service and the
// Address/Tx service. Every payload is decoded into a typed record at the
// boundary (types.go); callers never see raw JSON.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/btcsuite/btclog"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

// Recorder receives (success, latency) pairs for every upstream call, so
// the Adaptive Controllers (spec.md §4.4) can adjust concurrency.
type Recorder interface {
	RecordResult(success bool, latency time.Duration)
}

const (
	maxAttempts       = 5
	baseRetryDelay    = 1 * time.Second
	maxRetryDelay     = 30 * time.Second
	baseTimeout       = 30 * time.Second
	timeoutGrowth     = 1.5
	probeTimeout      = 10 * time.Second
)

// Client is a typed HTTP client over a discoverable set of candidate base
// URLs, with classified retry/backoff and adaptive per-attempt timeouts
// (spec.md §4.1).
type Client struct {
	httpClient *http.Client

	mu              sync.RWMutex
	localCandidates []string
	externalFallback string
	useLocalOnly    bool
	primary         string

	recorder Recorder
	log      btclog.Logger
}

// NewClient builds a Client over localCandidates (tried in order at
// startup) falling back to externalFallback unless useLocalOnly forbids it
// (spec.md §4.1 "Endpoint discovery").
func NewClient(localCandidates []string, externalFallback string, useLocalOnly bool, recorder Recorder, log btclog.Logger) *Client {
	return &Client{
		httpClient:       &http.Client{},
		localCandidates:  localCandidates,
		externalFallback: externalFallback,
		useLocalOnly:     useLocalOnly,
		recorder:         recorder,
		log:              log,
	}
}

// Discover probes each local candidate with a lightweight smoke call,
// selecting the first that answers successfully within probeTimeout as
// primary; on total failure it falls back to the external base URL unless
// useLocalOnly is set (spec.md §4.1).
func (c *Client) Discover(ctx context.Context, smokePath string) error {
	for _, base := range c.localCandidates {
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		_, err := c.rawGet(pctx, base, smokePath, "application/json")
		cancel()
		if err == nil || IsNotFound(err) {
			c.mu.Lock()
			c.primary = base
			c.mu.Unlock()
			if c.log != nil {
				c.log.Infof("upstream: selected local base %s", base)
			}
			return nil
		}
	}
	if c.useLocalOnly {
		return errors.New("upstream: all local candidates failed and local-only mode forbids fallback")
	}
	if c.externalFallback == "" {
		return errors.New("upstream: all local candidates failed and no external fallback is configured")
	}
	c.mu.Lock()
	c.primary = c.externalFallback
	c.mu.Unlock()
	if c.log != nil {
		c.log.Warnf("upstream: all local candidates failed, falling back to %s", c.externalFallback)
	}
	return nil
}

// reprobe is invoked after repeated transient/DNS-class failures during
// operation (spec.md §4.1): it re-runs Discover so the client can recover
// from a local candidate going away mid-run.
func (c *Client) reprobe(ctx context.Context, smokePath string) {
	if err := c.Discover(ctx, smokePath); err != nil && c.log != nil {
		c.log.Errorf("upstream: reprobe failed: %s", err)
	}
}

func (c *Client) base() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.primary
}

// get performs a classified, retried GET against path on the current
// primary base URL, recording every attempt's outcome with the Recorder.
func (c *Client) get(ctx context.Context, path, accept string) ([]byte, error) {
	base := c.base()
	if base == "" {
		return nil, errors.New("upstream: no base URL selected, call Discover first")
	}

	var body []byte
	attempt := 0
	consecutiveTransient := 0

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = baseRetryDelay
	eb.Multiplier = 2
	eb.MaxInterval = maxRetryDelay
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0 // bounded by WithMaxRetries below, not elapsed time
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, maxAttempts-1), ctx)

	op := func() error {
		attempt++
		timeout := time.Duration(float64(baseTimeout) * math.Pow(timeoutGrowth, float64(attempt-1)))
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		start := time.Now()
		b, err := c.rawGet(callCtx, base, path, accept)
		latency := time.Since(start)

		success := err == nil
		if c.recorder != nil {
			c.recorder.RecordResult(success, latency)
		}
		if err == nil {
			body = b
			return nil
		}

		if IsNotFound(err) || errorKindOf(err) == KindMalformed || errorKindOf(err) == KindUnauthorized {
			return backoff.Permanent(err)
		}

		consecutiveTransient++
		if consecutiveTransient >= 2 {
			c.reprobe(ctx, path)
			consecutiveTransient = 0
		}
		return err
	}

	err := backoff.Retry(op, policy)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) rawGet(ctx context.Context, base, path, accept string) ([]byte, error) {
	url := base + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, classify(KindMalformed, url, err)
	}
	req.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(KindTransient, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(KindTransient, url, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, classify(KindNotFound, url, errors.New("404"))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, classify(KindUnauthorized, url, errors.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= 500:
		return nil, classify(KindTransient, url, errors.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return nil, classify(KindMalformed, url, errors.Errorf("status %d", resp.StatusCode))
	}
	return body, nil
}

// getRange performs a ranged GET, used by content previews (spec.md §4.2,
// "range request preferred; full-content fallback"). If the upstream
// ignores the Range header it simply returns the full body, which callers
// truncate themselves.
func (c *Client) getRange(ctx context.Context, path string, start, end int64) ([]byte, error) {
	base := c.base()
	if base == "" {
		return nil, errors.New("upstream: no base URL selected, call Discover first")
	}
	url := base + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, classify(KindMalformed, url, err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

	start2 := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start2)
	if c.recorder != nil {
		c.recorder.RecordResult(err == nil, latency)
	}
	if err != nil {
		return nil, classify(KindTransient, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, classify(KindNotFound, url, errors.New("404"))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(KindTransient, url, err)
	}
	return body, nil
}

func errorKindOf(err error) ErrorKind {
	var uerr *Error
	if ok := errors.As(err, &uerr); ok {
		return uerr.Kind
	}
	return KindTransient
}

func decodeJSON(body []byte, v interface{}) error {
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(v); err != nil {
		return classify(KindMalformed, "", errors.Wrap(err, "decode response"))
	}
	return nil
}
