package musicbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/smkaiser/songfix/internal/correction"
	"github.com/smkaiser/songfix/internal/provider"
	"github.com/smkaiser/songfix/internal/version"
)

const (
	defaultBaseURL    = "https://musicbrainz.org/ws/2"
	defaultLimit      = 5
	defaultTimeout    = 10 * time.Second
	defaultRetryDelay = time.Second
	maxAttempts       = 3
)

// Adapter searches MusicBrainz for corrected artist and recording names.
//
// All requests pass through the shared provider.Gate. The HTTP client is
// created lazily and reused; after a connection failure it is discarded
// under the gate's exclusion so the next attempt dials fresh.
type Adapter struct {
	gate       *provider.Gate
	logger     *slog.Logger
	baseURL    string
	limit      int
	threshold  float64
	timeout    time.Duration
	retryDelay time.Duration
	newClient  func() *http.Client

	client *http.Client // guarded by gate.Locked
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithBaseURL overrides the MusicBrainz web service root (for testing or mirrors).
func WithBaseURL(baseURL string) Option {
	return func(a *Adapter) {
		a.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithThreshold sets the minimum normalized score accepted by Lookup.
func WithThreshold(threshold float64) Option {
	return func(a *Adapter) {
		a.threshold = threshold
	}
}

// WithLimit sets the number of candidates requested per search.
func WithLimit(limit int) Option {
	return func(a *Adapter) {
		if limit > 0 {
			a.limit = limit
		}
	}
}

// WithTimeout sets the per-attempt request timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithRetryDelay sets the pause between attempts after a connection failure.
func WithRetryDelay(d time.Duration) Option {
	return func(a *Adapter) {
		a.retryDelay = d
	}
}

// WithClientFactory replaces the function that builds a fresh HTTP client.
func WithClientFactory(fn func() *http.Client) Option {
	return func(a *Adapter) {
		a.newClient = fn
	}
}

// New creates a MusicBrainz adapter that spaces its requests through gate.
func New(gate *provider.Gate, logger *slog.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		gate:       gate,
		logger:     logger.With(slog.String("provider", string(provider.NameMusicBrainz))),
		baseURL:    defaultBaseURL,
		limit:      defaultLimit,
		threshold:  DefaultThreshold,
		timeout:    defaultTimeout,
		retryDelay: defaultRetryDelay,
	}
	for _, o := range opts {
		o(a)
	}
	if a.newClient == nil {
		a.newClient = defaultClientFactory(a.timeout)
	}
	return a
}

// Name returns the provider name.
func (a *Adapter) Name() provider.ProviderName { return provider.NameMusicBrainz }

// Lookup searches for a corrected name. Artists are searched for TypeArtist,
// recordings for TypeSong, and artists then recordings for TypeAuto. It
// returns nil without searching when the name builds an empty query.
func (a *Adapter) Lookup(ctx context.Context, name string, typ correction.Type) (*correction.Match, error) {
	query := BuildQuery(name)
	if query == "" {
		return nil, nil
	}

	switch typ {
	case correction.TypeArtist:
		return a.lookupEntity(ctx, EntityArtist, query)
	case correction.TypeSong:
		return a.lookupEntity(ctx, EntityRecording, query)
	}

	m, err := a.lookupEntity(ctx, EntityArtist, query)
	if err != nil || m != nil {
		return m, err
	}
	return a.lookupEntity(ctx, EntityRecording, query)
}

func (a *Adapter) lookupEntity(ctx context.Context, entity Entity, query string) (*correction.Match, error) {
	cands, err := a.Search(ctx, entity, query, a.limit)
	if err != nil {
		return nil, err
	}
	m, ok := SelectMatch(cands, entity, a.threshold)
	if !ok {
		a.logger.Debug("no qualifying candidate",
			slog.String("entity", string(entity)),
			slog.String("query", query),
			slog.Int("candidates", len(cands)))
		return nil, nil
	}
	return &m, nil
}

// Search runs a search for entity and returns the hits in service order. A
// response without the entity's list yields no candidates and no error.
func (a *Adapter) Search(ctx context.Context, entity Entity, query string, limit int) ([]Candidate, error) {
	if limit <= 0 {
		limit = a.limit
	}
	params := url.Values{
		"query": {query},
		"fmt":   {"json"},
		"limit": {strconv.Itoa(limit)},
	}
	reqURL := a.baseURL + "/" + string(entity) + "?" + params.Encode()

	body, err := a.doRequest(ctx, entity, reqURL)
	if err != nil {
		return nil, err
	}

	var resp SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing %s search response: %w", entity, err)
	}
	return resp.candidates(entity), nil
}

// doRequest executes a GET through the gate, retrying connection failures.
func (a *Adapter) doRequest(ctx context.Context, entity Entity, reqURL string) ([]byte, error) {
	for attempt := 1; ; attempt++ {
		waitStart := time.Now()
		if err := a.gate.Wait(ctx); err != nil {
			return nil, &provider.ErrProviderUnavailable{
				Provider: provider.NameMusicBrainz,
				Cause:    fmt.Errorf("rate limiter: %w", err),
				Attempts: attempt,
			}
		}
		gateWait.Observe(time.Since(waitStart).Seconds())

		client := a.currentClient()
		start := time.Now()
		body, connectFailed, err := a.fetch(ctx, client, reqURL)
		if err == nil {
			observeAttempt(entity, outcomeOK, start)
			return body, nil
		}

		var unavailable *provider.ErrProviderUnavailable
		switch {
		case errors.As(err, &unavailable):
			observeAttempt(entity, outcomeHTTPError, start)
			unavailable.Attempts = attempt
			return nil, err
		case !connectFailed || ctx.Err() != nil:
			observeAttempt(entity, outcomeError, start)
			return nil, &provider.ErrProviderUnavailable{
				Provider: provider.NameMusicBrainz,
				Cause:    err,
				Attempts: attempt,
			}
		}

		observeAttempt(entity, outcomeConnectError, start)
		a.discardClient(client)
		if attempt >= maxAttempts {
			return nil, &provider.ErrProviderUnavailable{
				Provider: provider.NameMusicBrainz,
				Cause:    err,
				Attempts: attempt,
			}
		}

		a.logger.Warn("connect error, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.Any("error", err))

		timer := time.NewTimer(a.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &provider.ErrProviderUnavailable{
				Provider: provider.NameMusicBrainz,
				Cause:    ctx.Err(),
				Attempts: attempt,
			}
		case <-timer.C:
		}
	}
}

// fetch performs one GET bounded by the adapter timeout. connectFailed
// reports a transport error raised before any connection was obtained: a
// refused or stalled dial, a DNS failure or a TLS handshake that never
// finished. HTTP failures come back as ErrProviderUnavailable.
func (a *Adapter) fetch(ctx context.Context, client *http.Client, reqURL string) (body []byte, connectFailed bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var connected atomic.Bool
	ctx = httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
		GotConn: func(httptrace.GotConnInfo) { connected.Store(true) },
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent())
	req.Header.Set("Accept", "application/json")

	a.logger.Debug("requesting", slog.String("url", reqURL))

	resp, err := client.Do(req) //nolint:gosec // URL built from trusted base + encoded query
	if err != nil {
		return nil, !connected.Load(), err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		e := &provider.ErrProviderUnavailable{
			Provider:   provider.NameMusicBrainz,
			Cause:      fmt.Errorf("HTTP %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
		if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests {
			e.RetryAfter = 2 * time.Second
		}
		return nil, false, e
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	return body, false, err
}

// currentClient returns the shared client, creating it if needed.
func (a *Adapter) currentClient() *http.Client {
	var c *http.Client
	a.gate.Locked(func() {
		if a.client == nil {
			a.client = a.newClient()
		}
		c = a.client
	})
	return c
}

// discardClient drops stale as the shared client, unless another caller has
// already replaced it, and closes its idle connections.
func (a *Adapter) discardClient(stale *http.Client) {
	a.gate.Locked(func() {
		if a.client == stale {
			a.client = nil
		}
		stale.CloseIdleConnections()
	})
}

// defaultClientFactory bounds the dial and the TLS handshake by timeout. The
// whole attempt is bounded by fetch's context rather than Client.Timeout,
// whose error would hide whether a connection was ever made.
func defaultClientFactory(timeout time.Duration) func() *http.Client {
	return func() *http.Client {
		return &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: timeout,
				MaxIdleConns:        4,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
}

func userAgent() string {
	return fmt.Sprintf("songfix/%s (https://github.com/smkaiser/songfix)", version.Version)
}
