// Package openai asks a chat completion model to repair names that still
// hold corruption markers after the MusicBrainz search came up empty.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"golang.org/x/text/unicode/norm"

	"github.com/smkaiser/songfix/internal/correction"
	"github.com/smkaiser/songfix/internal/provider"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o-mini"

	// Confidence attached to a model-produced correction.
	aiConfidence = 0.8

	maxCompletionTokens = 120
)

const systemPrompt = "You are a music expert. The user will give you a song title or artist name " +
	"that has one or more corrupted characters (the Unicode replacement character \uFFFD). " +
	"Reply with ONLY the corrected name, with no explanation, no quotes and no punctuation " +
	"other than what belongs in the name. Each corrupted character should be replaced by a " +
	"SINGLE accented or special character that fits the context or language of the rest of the input."

// Corrector implements the AI fallback stage.
type Corrector struct {
	apiKey string
	model  string
	logger *slog.Logger
	client oai.Client
}

type config struct {
	baseURL    string
	model      string
	timeout    time.Duration
	maxRetries int
}

// Option configures a Corrector.
type Option func(*config)

// WithBaseURL overrides the OpenAI API base URL (for testing or compatible gateways).
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithModel selects the chat model.
func WithModel(model string) Option {
	return func(c *config) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithMaxRetries sets how many times the SDK retries a failed request.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// New creates a Corrector. An empty apiKey yields a disabled Corrector whose
// Correct always reports no result.
func New(apiKey string, logger *slog.Logger, opts ...Option) *Corrector {
	cfg := &config{model: DefaultModel, maxRetries: 2}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(cfg.maxRetries),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Corrector{
		apiKey: apiKey,
		model:  cfg.model,
		logger: logger.With(slog.String("provider", string(provider.NameOpenAI))),
		client: oai.NewClient(reqOpts...),
	}
}

// Name returns the provider name.
func (c *Corrector) Name() provider.ProviderName { return provider.NameOpenAI }

// Enabled reports whether an API key is configured.
func (c *Corrector) Enabled() bool { return c.apiKey != "" }

// Correct returns the model's repair of name. It returns nil with no error
// when no API key is configured or the model replies with nothing. A name
// without any marker is returned unchanged at full confidence without
// calling the model.
func (c *Corrector) Correct(ctx context.Context, name string, typ correction.Type) (*correction.Match, error) {
	if !c.Enabled() {
		return nil, nil
	}
	if !correction.HasMarker(name) {
		return &correction.Match{Corrected: name, Source: correction.SourceOpenAI, Confidence: 1.0}, nil
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, c.buildParams(name, typ))
	if err != nil {
		completionsTotal.WithLabelValues(outcomeError).Inc()
		return nil, c.wrapError(err)
	}
	completionDuration.Observe(time.Since(start).Seconds())

	if len(resp.Choices) == 0 {
		completionsTotal.WithLabelValues(outcomeEmpty).Inc()
		return nil, nil
	}
	corrected := norm.NFC.String(strings.TrimSpace(resp.Choices[0].Message.Content))
	if corrected == "" {
		completionsTotal.WithLabelValues(outcomeEmpty).Inc()
		return nil, nil
	}
	completionsTotal.WithLabelValues(outcomeOK).Inc()

	c.logger.Debug("model correction",
		slog.String("name", name),
		slog.String("corrected", corrected),
		slog.String("model", c.model))
	return &correction.Match{Corrected: corrected, Source: correction.SourceOpenAI, Confidence: aiConfidence}, nil
}

func (c *Corrector) buildParams(name string, typ correction.Type) oai.ChatCompletionNewParams {
	prompt := fmt.Sprintf("The following %s has corrupted characters (%c). What is the correct name?\n\n%s",
		typ.Describe(), correction.Marker, name)
	return oai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(systemPrompt),
			oai.UserMessage(prompt),
		},
		Temperature:         oai.Float(0),
		MaxCompletionTokens: oai.Int(maxCompletionTokens),
	}
}

// wrapError maps SDK errors onto the shared provider error types.
func (c *Corrector) wrapError(err error) error {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusUnauthorized {
			return &provider.ErrAuthRequired{Provider: provider.NameOpenAI}
		}
		return &provider.ErrProviderUnavailable{
			Provider:   provider.NameOpenAI,
			Cause:      err,
			StatusCode: apiErr.StatusCode,
		}
	}
	return &provider.ErrProviderUnavailable{Provider: provider.NameOpenAI, Cause: err}
}
