// Package provider holds what the external correction sources share: their
// names, the outbound rate gate and the typed errors they return.
package provider

import (
	"fmt"
	"time"
)

// ProviderName uniquely identifies an external correction source.
type ProviderName string

// Known provider names.
const (
	NameMusicBrainz ProviderName = "musicbrainz"
	NameOpenAI      ProviderName = "openai"
)

// DisplayName returns a human-readable name for the provider.
func (n ProviderName) DisplayName() string {
	switch n {
	case NameMusicBrainz:
		return "MusicBrainz"
	case NameOpenAI:
		return "OpenAI"
	default:
		return string(n)
	}
}

// ErrProviderUnavailable indicates a failed call to a provider: a transport
// failure that survived all retries, or a non-2xx response.
type ErrProviderUnavailable struct {
	Provider   ProviderName
	Cause      error
	Attempts   int
	StatusCode int
	RetryAfter time.Duration
}

func (e *ErrProviderUnavailable) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s unavailable: HTTP %d", e.Provider, e.StatusCode)
	}
	if e.Attempts > 1 {
		return fmt.Sprintf("provider %s unavailable after %d attempts: %v", e.Provider, e.Attempts, e.Cause)
	}
	return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Cause)
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Cause }

// ErrAuthRequired indicates the provider needs an API key but none is configured.
type ErrAuthRequired struct {
	Provider ProviderName
}

func (e *ErrAuthRequired) Error() string {
	return fmt.Sprintf("provider %s: API key not configured", e.Provider)
}
