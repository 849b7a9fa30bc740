// Package bcb implements the Banco Central do Brasil SGS provider.
// SGS (Sistema Gerenciador de Séries Temporais) serves public time series
// identified by numeric codes. No API key is required.
//
// Docs: https://dadosabertos.bcb.gov.br/dataset/sgs
package bcb

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/seenimoa/mercadobr/internal/infra"
	"github.com/seenimoa/mercadobr/internal/logging"
	"github.com/seenimoa/mercadobr/internal/provider"
	"github.com/seenimoa/mercadobr/internal/store"
)

const (
	providerName   = "bcb"
	defaultBaseURL = "https://api.bcb.gov.br"
	defaultLastN   = 20
	defaultTimeout = 30 * time.Second
)

// Series maps an indicator name to its SGS code.
type Series struct {
	Name string
	Code int
}

// Options configures the provider. Zero values fall back to defaults.
type Options struct {
	BaseURL string
	Series  []Series
	LastN   int
	Timeout time.Duration
	Client  *http.Client
	Logger  *logging.Logger
	Now     func() time.Time
}

// Provider implements provider.Provider for the SGS API.
type Provider struct {
	provider.BaseProvider
	baseURL string
	series  []Series
	lastN   int
	client  *http.Client
	log     *logging.Logger
	now     func() time.Time
}

// New creates an SGS provider.
func New(opts Options) *Provider {
	p := &Provider{
		BaseProvider: provider.NewBaseProvider(
			providerName,
			"Banco Central do Brasil - séries temporais SGS",
			"https://www3.bcb.gov.br/sgspub",
			store.FileIndicators,
			nil,
		),
		baseURL: opts.BaseURL,
		series:  append([]Series(nil), opts.Series...),
		lastN:   opts.LastN,
		client:  opts.Client,
		log:     logging.OrSilent(opts.Logger).With(providerName),
		now:     opts.Now,
	}
	if p.baseURL == "" {
		p.baseURL = defaultBaseURL
	}
	if p.lastN <= 0 {
		p.lastN = defaultLastN
	}
	if p.client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		p.client = infra.NewHTTPClient(timeout)
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Series returns the configured series in collection order.
func (p *Provider) Series() []Series {
	return append([]Series(nil), p.series...)
}

// Ping fetches the latest observation of the first configured series.
func (p *Provider) Ping(ctx context.Context) error {
	if len(p.series) == 0 {
		return fmt.Errorf("bcb ping: no series configured")
	}
	if _, err := infra.DoGet(ctx, p.client, p.seriesURL(p.series[0].Code, 1), jsonHeaders()); err != nil {
		return fmt.Errorf("bcb ping: %w", err)
	}
	return nil
}

// seriesURL builds the "last n observations" endpoint for code.
func (p *Provider) seriesURL(code, n int) string {
	return fmt.Sprintf("%s/dados/serie/bcdata.sgs.%d/dados/ultimos/%d?formato=json", p.baseURL, code, n)
}

func jsonHeaders() map[string]string {
	return map[string]string{"Accept": "application/json"}
}
