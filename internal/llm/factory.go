package llm

import (
	"fmt"
	"time"
)

// Options selects and parameterizes the extraction provider at process start.
type Options struct {
	// Variant is "local" (Ollama) or "hosted" (OpenAI-compatible).
	Variant string
	// BaseURL of the provider API.
	BaseURL string
	// Model identifier passed on every call.
	Model string
	// APIKey authenticates hosted calls; ignored for local.
	APIKey string
	// Timeout bounds a single provider round trip.
	Timeout time.Duration
	// MaxRetries bounds local transport retries; ignored for hosted.
	MaxRetries int
}

// New builds the provider named by opts.Variant.
func New(opts Options) (Provider, error) {
	switch opts.Variant {
	case "local", "ollama", "":
		return NewOllamaProvider(opts.BaseURL, opts.Model, opts.Timeout, opts.MaxRetries)
	case "hosted":
		return NewHostedProvider(opts.BaseURL, opts.APIKey, opts.Model, opts.Timeout)
	default:
		return nil, fmt.Errorf("unknown extraction provider variant %q", opts.Variant)
	}
}
