// Package alphavantage implements the Alpha Vantage daily-bar provider for
// B3 tickers. The free tier allows 5 requests per minute, so the collector
// pauses between tickers.
//
// Requires a free API key from https://www.alphavantage.co/support/#api-key
// Docs: https://www.alphavantage.co/documentation/#daily
package alphavantage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/seenimoa/mercadobr/internal/infra"
	"github.com/seenimoa/mercadobr/internal/logging"
	"github.com/seenimoa/mercadobr/internal/provider"
	"github.com/seenimoa/mercadobr/internal/store"
)

const (
	providerName   = "alphavantage"
	defaultBaseURL = "https://www.alphavantage.co"
	credAPIKey     = "api_key"

	defaultSuffix     = ".SA"
	defaultLastN      = 20
	defaultTimeout    = 30 * time.Second
	defaultPause      = 15 * time.Second
	defaultRetryAfter = 30 * time.Second
)

// Options configures the provider. Zero values fall back to defaults.
type Options struct {
	BaseURL    string
	Tickers    []string
	Suffix     string
	LastN      int
	Timeout    time.Duration
	Pause      time.Duration // between tickers; negative disables
	RetryAfter time.Duration // before the single retry on 503
	Sleep      infra.SleepFunc
	Logger     *logging.Logger
}

// Provider implements provider.Provider for Alpha Vantage.
type Provider struct {
	provider.BaseProvider
	client     *resty.Client
	apiKey     string
	tickers    []string
	suffix     string
	lastN      int
	pause      time.Duration
	retryAfter time.Duration
	sleep      infra.SleepFunc
	log        *logging.Logger
}

// New creates an Alpha Vantage provider. Call Init with the API key before
// collecting.
func New(opts Options) *Provider {
	p := &Provider{
		BaseProvider: provider.NewBaseProvider(
			providerName,
			"Alpha Vantage - daily OHLCV bars for B3 equities",
			"https://www.alphavantage.co",
			store.FileEquities,
			[]provider.ProviderCredential{
				{
					Name:        credAPIKey,
					Description: "Alpha Vantage API key from alphavantage.co",
					Required:    true,
					EnvVar:      "ALPHA_VANTAGE_API_KEY",
				},
			},
		),
		tickers:    append([]string(nil), opts.Tickers...),
		suffix:     opts.Suffix,
		lastN:      opts.LastN,
		pause:      opts.Pause,
		retryAfter: opts.RetryAfter,
		sleep:      opts.Sleep,
		log:        logging.OrSilent(opts.Logger).With(providerName),
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if p.suffix == "" {
		p.suffix = defaultSuffix
	}
	if p.lastN <= 0 {
		p.lastN = defaultLastN
	}
	if p.pause == 0 {
		p.pause = defaultPause
	}
	if p.pause < 0 {
		p.pause = 0
	}
	if p.retryAfter <= 0 {
		p.retryAfter = defaultRetryAfter
	}
	if p.sleep == nil {
		p.sleep = infra.Sleep
	}

	p.client = resty.New()
	p.client.SetBaseURL(baseURL)
	p.client.SetTimeout(timeout)
	p.client.SetHeader("Accept", "application/json")
	p.client.SetHeader("User-Agent", infra.DefaultUserAgent)
	return p
}

// Init stores the API key.
func (p *Provider) Init(credentials map[string]string) error {
	if err := p.BaseProvider.Init(credentials); err != nil {
		return err
	}
	p.apiKey = credentials[credAPIKey]
	return nil
}

// Ping requests the first ticker and checks for a time series.
func (p *Provider) Ping(ctx context.Context) error {
	if len(p.tickers) == 0 {
		return fmt.Errorf("alphavantage ping: no tickers configured")
	}
	if _, err := p.FetchDaily(ctx, p.tickers[0]); err != nil {
		return fmt.Errorf("alphavantage ping: %w", err)
	}
	return nil
}

// Symbol returns the exchange-qualified symbol for a B3 ticker.
func (p *Provider) Symbol(ticker string) string {
	return ticker + p.suffix
}

// Tickers returns the configured tickers in collection order.
func (p *Provider) Tickers() []string {
	return append([]string(nil), p.tickers...)
}
