package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/seenimoa/mercadobr/internal/config"
	"github.com/seenimoa/mercadobr/internal/infra"
	"github.com/seenimoa/mercadobr/internal/logging"
)

// Router sends chat requests to the primary provider and walks the fallback
// chain when it fails.
type Router struct {
	mu         sync.RWMutex
	providers  map[string]LLMProvider
	primary    string
	fallbacks  []string
	maxRetries int
	retryDelay time.Duration
	sleep      infra.SleepFunc
	logger     *logging.Logger
}

// RouterOption configures the router.
type RouterOption func(*Router)

// WithFallbacks sets the fallback provider chain.
func WithFallbacks(providers ...string) RouterOption {
	return func(r *Router) { r.fallbacks = providers }
}

// WithMaxRetries sets the number of extra attempts per provider.
func WithMaxRetries(n int) RouterOption {
	return func(r *Router) { r.maxRetries = n }
}

// WithRetryDelay sets the base delay between retries.
func WithRetryDelay(d time.Duration) RouterOption {
	return func(r *Router) { r.retryDelay = d }
}

// WithRouterSleep replaces the wait used between retries.
func WithRouterSleep(fn infra.SleepFunc) RouterOption {
	return func(r *Router) { r.sleep = fn }
}

// WithRouterLogger sets the logger.
func WithRouterLogger(l *logging.Logger) RouterOption {
	return func(r *Router) { r.logger = l.With("llm/router") }
}

// NewRouter creates a router with the given primary provider. Requests are
// not retried unless WithMaxRetries says otherwise.
func NewRouter(primary string, opts ...RouterOption) *Router {
	r := &Router{
		providers:  make(map[string]LLMProvider),
		primary:    primary,
		retryDelay: time.Second,
		sleep:      infra.Sleep,
		logger:     logging.NewSilent(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterProvider adds a provider to the router.
func (r *Router) RegisterProvider(provider LLMProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.Name()] = provider
}

// GetProvider returns a registered provider by name.
func (r *Router) GetProvider(name string) (LLMProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Primary returns the primary provider.
func (r *Router) Primary() (LLMProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[r.primary]
	if !ok {
		return nil, fmt.Errorf("%w: primary provider %q not registered", ErrNoProviders, r.primary)
	}
	return p, nil
}

// Chat tries the primary provider first, then each fallback in order. A
// model name in opts only applies to the primary; fallbacks use their own
// default model.
func (r *Router) Chat(ctx context.Context, messages []Message, tools []Tool, opts *ChatOptions) (*Response, error) {
	chain := r.providerChain()

	var lastErr error
	tried := 0
	for i, providerName := range chain {
		provider, ok := r.GetProvider(providerName)
		if !ok {
			continue
		}
		tried++

		reqOpts := opts
		if i > 0 && opts != nil && opts.Model != "" {
			cp := *opts
			cp.Model = ""
			reqOpts = &cp
		}

		resp, err := r.chatWithRetry(ctx, provider, messages, tools, reqOpts)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		r.logger.Warn().Err(err).Str("provider", providerName).Msg("provider failed, trying next")

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	if tried == 0 {
		return nil, ErrNoProviders
	}
	return nil, fmt.Errorf("llm/router: all providers failed, last error: %w", lastErr)
}

// HealthCheck pings all registered providers and returns their status.
func (r *Router) HealthCheck(ctx context.Context) map[string]error {
	r.mu.RLock()
	providers := make(map[string]LLMProvider, len(r.providers))
	for k, v := range r.providers {
		providers[k] = v
	}
	r.mu.RUnlock()

	results := make(map[string]error, len(providers))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for name, provider := range providers {
		wg.Add(1)
		go func(n string, p LLMProvider) {
			defer wg.Done()
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			err := p.Ping(pingCtx)
			mu.Lock()
			results[n] = err
			mu.Unlock()
		}(name, provider)
	}

	wg.Wait()
	return results
}

// Name returns the name of the primary provider (satisfies LLMProvider).
func (r *Router) Name() string {
	return "router/" + r.primary
}

// Models returns the union of models from all registered providers (satisfies LLMProvider).
func (r *Router) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []string
	seen := make(map[string]bool)
	for _, p := range r.providers {
		for _, m := range p.Models() {
			if !seen[m] {
				seen[m] = true
				all = append(all, m)
			}
		}
	}
	sort.Strings(all)
	return all
}

// Ping checks the primary provider's health (satisfies LLMProvider).
func (r *Router) Ping(ctx context.Context) error {
	p, err := r.Primary()
	if err != nil {
		return err
	}
	return p.Ping(ctx)
}

// ProviderNames returns the names of all registered providers.
func (r *Router) ProviderNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ── Internal Helpers ──

func (r *Router) providerChain() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chain := []string{r.primary}
	for _, fb := range r.fallbacks {
		if fb != r.primary {
			chain = append(chain, fb)
		}
	}
	return chain
}

func (r *Router) chatWithRetry(ctx context.Context, provider LLMProvider,
	messages []Message, tools []Tool, opts *ChatOptions) (*Response, error) {

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			if err := r.sleep(ctx, r.retryDelay*time.Duration(attempt)); err != nil {
				return nil, err
			}
		}

		resp, err := provider.Chat(ctx, messages, tools, opts)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if isNonRetryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// isNonRetryable reports errors that another attempt cannot fix.
func isNonRetryable(err error) bool {
	return errors.Is(err, ErrNoAPIKey) ||
		errors.Is(err, ErrInvalidModel) ||
		errors.Is(err, ErrContextLength)
}

// NewRouterFromConfig registers every provider whose key is configured. The
// configured primary leads; the others become fallbacks in a fixed order.
func NewRouterFromConfig(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Router, error) {
	llmCfg := cfg.LLM
	timeout := config.Timeout(llmCfg.TimeoutSec, 180*time.Second)

	router := NewRouter(llmCfg.Primary, WithRouterLogger(logger))

	var fallbacks []string
	register := func(p LLMProvider) {
		router.RegisterProvider(p)
		if p.Name() != llmCfg.Primary {
			fallbacks = append(fallbacks, p.Name())
		}
	}

	if llmCfg.OpenAIKey != "" {
		p, err := NewOpenAIProvider(llmCfg.OpenAIKey,
			WithOpenAIModel(llmCfg.Model),
			WithOpenAIBaseURL(llmCfg.OpenAIBaseURL),
			WithOpenAITemperature(llmCfg.Temperature),
			WithOpenAIMaxTokens(llmCfg.MaxTokens),
			WithOpenAITimeout(timeout),
		)
		if err == nil {
			register(p)
		}
	}

	if llmCfg.GeminiKey != "" {
		p, err := NewGeminiProvider(ctx, llmCfg.GeminiKey,
			WithGeminiModel(llmCfg.GeminiModel),
			WithGeminiTemperature(llmCfg.Temperature),
			WithGeminiMaxTokens(llmCfg.MaxTokens),
		)
		if err != nil {
			router.logger.Warn().Err(err).Msg("gemini provider unavailable")
		} else {
			register(p)
		}
	}

	if llmCfg.AnthropicKey != "" {
		p, err := NewAnthropicProvider(llmCfg.AnthropicKey,
			WithAnthropicModel(llmCfg.AnthropicModel),
			WithAnthropicTemperature(llmCfg.Temperature),
			WithAnthropicMaxTokens(llmCfg.MaxTokens),
			WithAnthropicTimeout(timeout),
		)
		if err == nil {
			register(p)
		}
	}

	if len(router.ProviderNames()) == 0 {
		return nil, ErrNoProviders
	}

	router.fallbacks = fallbacks
	return router, nil
}
