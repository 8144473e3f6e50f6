// Package gateway drives tuning interactions against vendor APIs without
// blocking the caller. Each Submit runs its attempt loop on its own
// goroutine with at most one network call in flight per handle; retries are
// sequential with capped exponential backoff.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stellarlinkco/prompt-mini/internal/config"
	"github.com/stellarlinkco/prompt-mini/internal/provider"
)

const (
	defaultMaxAttempts    = 3
	maxMaxAttempts        = 10
	defaultBaseDelay      = 500 * time.Millisecond
	defaultMaxDelay       = 8 * time.Second
	defaultAttemptTimeout = 60 * time.Second

	maxResponseBytes = 1 << 20
)

// Options tunes the gateway's retry and timeout behavior.
type Options struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
	HTTPClient     *http.Client
}

// Gateway submits tuning requests to vendor adapters.
type Gateway struct {
	registry *provider.Registry
	client   *http.Client
	opts     Options
}

// New builds a Gateway over the given adapter registry, clamping options
// to sane defaults.
func New(registry *provider.Registry, opts Options) *Gateway {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.MaxAttempts > maxMaxAttempts {
		opts.MaxAttempts = maxMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = defaultMaxDelay
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = defaultAttemptTimeout
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	return &Gateway{
		registry: registry,
		client:   client,
		opts:     opts,
	}
}

// FromConfig builds a Gateway with the full adapter set and the tuning
// section's retry knobs.
func FromConfig(cfg *config.Config) *Gateway {
	var opts Options
	if cfg != nil {
		opts.MaxAttempts = cfg.Tuning.MaxAttempts
		opts.BaseDelay = cfg.Tuning.BaseDelay
		opts.MaxDelay = cfg.Tuning.MaxDelay
		opts.AttemptTimeout = cfg.Tuning.AttemptTimeout
	}
	return New(provider.NewRegistry(), opts)
}

// Submit starts a tuning interaction and returns its handle. The attempt
// loop runs in the background; the caller observes completion through the
// handle. A nil onDone is fine.
func (g *Gateway) Submit(ctx context.Context, req *provider.TuneRequest, profile provider.Profile, onDone func(*Handle)) (*Handle, error) {
	if g == nil {
		return nil, errors.New("gateway: nil gateway")
	}
	if req == nil {
		return nil, errors.New("gateway: nil tune request")
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("gateway: empty prompt text")
	}

	adapter, ok := g.registry.Get(profile.Provider)
	if !ok {
		return nil, fmt.Errorf("gateway: no adapter for provider %q", profile.Provider)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)

	h := newHandle(cancel, onDone)
	h.markInFlight()
	go g.run(runCtx, cancel, h, adapter, req, profile)
	return h, nil
}

// run is the per-handle attempt loop. Every exit path lands the handle in a
// terminal state.
func (g *Gateway) run(ctx context.Context, cancel context.CancelFunc, h *Handle, adapter provider.Adapter, req *provider.TuneRequest, profile provider.Profile) {
	defer cancel()

	fail := func(kind provider.ErrorKind, diagnostic string) {
		h.finish(StateFailed, &provider.TuneResult{
			Provider:   profile.Provider,
			Model:      profile.Model,
			OK:         false,
			Diagnostic: diagnostic,
		}, kind)
	}

	wire, err := adapter.BuildRequest(req, profile)
	if err != nil {
		fail(provider.KindInvalidRequest, err.Error())
		return
	}

	var backoff time.Duration
	for attempt := 1; ; attempt++ {
		if attempt > 1 {
			backoff = retryBackoff(g.opts.BaseDelay, g.opts.MaxDelay, attempt-2)
			if err := sleepWithContext(ctx, backoff); err != nil {
				h.finish(StateCancelled, nil, "")
				return
			}
		}

		result, kind, diagnostic := g.attempt(ctx, adapter, wire)
		h.recordAttempt(Attempt{
			Num:        attempt,
			Kind:       kind,
			Diagnostic: diagnostic,
			Backoff:    backoff,
		})

		if ctx.Err() != nil {
			h.finish(StateCancelled, nil, "")
			return
		}

		if result != nil {
			result.Provider = profile.Provider
			if result.Model == "" {
				result.Model = profile.Model
			}
			h.finish(StateSucceeded, result, "")
			return
		}

		if !kind.Retryable() || attempt >= g.opts.MaxAttempts {
			fail(kind, diagnostic)
			return
		}
	}
}

// attempt performs exactly one vendor HTTP call under the per-attempt
// timeout. A nil result means failure, described by kind and diagnostic.
func (g *Gateway) attempt(ctx context.Context, adapter provider.Adapter, wire *provider.WireRequest) (*provider.TuneResult, provider.ErrorKind, string) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.opts.AttemptTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, wire.Method, wire.URL, bytes.NewReader(wire.Body))
	if err != nil {
		return nil, provider.KindInvalidRequest, fmt.Sprintf("build request: %v", err)
	}
	for k, vs := range wire.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		// Connection failures and per-attempt timeouts both land here.
		return nil, provider.KindNetwork, fmt.Sprintf("network: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, provider.KindNetwork, fmt.Sprintf("read response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		kind := adapter.ClassifyError(body, resp.StatusCode)
		return nil, kind, provider.ErrorMessage(body, resp.StatusCode)
	}

	result, err := adapter.ParseResponse(body, resp.StatusCode)
	if err != nil {
		// A 2xx we cannot parse is a contract problem, not worth retrying.
		return nil, provider.KindInvalidRequest, err.Error()
	}
	return result, "", ""
}

func retryBackoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 || attempt < 0 {
		return 0
	}
	d := base * time.Duration(1<<attempt)
	if max > 0 && d > max {
		return max
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
