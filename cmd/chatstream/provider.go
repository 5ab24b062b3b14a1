package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fwojciec/chatstream"
	"github.com/fwojciec/chatstream/gemini"
	"github.com/fwojciec/chatstream/xai"
)

// providerConfig is everything needed to construct a provider. Env var values
// are resolved by the caller and passed in.
type providerConfig struct {
	name      string
	apiKey    string // explicit --api-key
	xaiKey    string // XAI_API_KEY
	geminiKey string // GEMINI_API_KEY
	model     string
	baseURL   string
	logger    *slog.Logger
}

// providerResolver constructs the provider for one chat invocation.
type providerResolver func(ctx context.Context, cfg providerConfig) (chatstream.Provider, error)

// resolveProvider selects and constructs the provider. Without an explicit
// name it is detected from whichever provider key is set.
func resolveProvider(ctx context.Context, cfg providerConfig) (chatstream.Provider, error) {
	name := cfg.name
	if name == "" {
		hasXAI := cfg.xaiKey != ""
		hasGemini := cfg.geminiKey != ""
		switch {
		case hasXAI && hasGemini:
			return nil, errors.New("multiple API keys found (XAI_API_KEY, GEMINI_API_KEY): use --provider to select")
		case hasXAI:
			name = "xai"
		case hasGemini:
			name = "gemini"
		default:
			return nil, errors.New("no API key found: set XAI_API_KEY or GEMINI_API_KEY (or use --provider and --api-key)")
		}
	}

	// Explicit flag overrides env var.
	key := cfg.apiKey
	switch name {
	case "xai":
		if key == "" {
			key = cfg.xaiKey
		}
		if key == "" {
			return nil, errors.New("XAI_API_KEY not set (use --api-key or the environment variable)")
		}
		opts := []xai.Option{}
		if cfg.baseURL != "" {
			opts = append(opts, xai.WithBaseURL(cfg.baseURL))
		}
		if cfg.logger != nil {
			opts = append(opts, xai.WithLogger(cfg.logger))
		}
		return xai.New(key, opts...), nil
	case "gemini":
		if key == "" {
			key = cfg.geminiKey
		}
		if key == "" {
			return nil, errors.New("GEMINI_API_KEY not set (use --api-key or the environment variable)")
		}
		var opts []gemini.Option
		if cfg.model != "" {
			opts = append(opts, gemini.WithModel(cfg.model))
		}
		client, err := gemini.New(ctx, key, opts...)
		if err != nil {
			return nil, fmt.Errorf("gemini: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown provider %q: must be \"xai\" or \"gemini\"", name)
	}
}
