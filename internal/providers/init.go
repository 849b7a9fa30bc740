// Package providers builds the configured collectors and registers them
// with a provider registry.
package providers

import (
	"time"

	"github.com/seenimoa/mercadobr/internal/config"
	"github.com/seenimoa/mercadobr/internal/datasource"
	"github.com/seenimoa/mercadobr/internal/logging"
	"github.com/seenimoa/mercadobr/internal/provider"
	"github.com/seenimoa/mercadobr/internal/providers/alphavantage"
	"github.com/seenimoa/mercadobr/internal/providers/bcb"
)

// Collectors holds one instance of each collector, built from config.
type Collectors struct {
	Indicators *bcb.Provider
	Equities   *alphavantage.Provider
	News       *datasource.News

	// EquitiesErr is the credential error from initializing the equity
	// collector; its Collect reports the same failure.
	EquitiesErr error
}

// New builds the collectors from cfg.
func New(cfg *config.Config, logger *logging.Logger) *Collectors {
	series := make([]bcb.Series, 0, len(cfg.Indicators.Series))
	for _, s := range cfg.Indicators.Series {
		series = append(series, bcb.Series{Name: s.Name, Code: s.Code})
	}
	sites := make([]datasource.Site, 0, len(cfg.News.Sites))
	for _, s := range cfg.News.Sites {
		sites = append(sites, datasource.Site{Name: s.Name, URL: s.URL, FeedURL: s.FeedURL})
	}

	c := &Collectors{
		Indicators: bcb.New(bcb.Options{
			BaseURL: cfg.Indicators.BaseURL,
			Series:  series,
			LastN:   cfg.Indicators.LastN,
			Timeout: config.Timeout(cfg.Indicators.TimeoutSec, 30*time.Second),
			Logger:  logger,
		}),
		Equities: alphavantage.New(alphavantage.Options{
			BaseURL:    cfg.Equities.BaseURL,
			Tickers:    cfg.Equities.Tickers,
			Suffix:     cfg.Equities.Suffix,
			LastN:      cfg.Equities.LastN,
			Timeout:    config.Timeout(cfg.Equities.TimeoutSec, 30*time.Second),
			Pause:      time.Duration(cfg.Equities.PauseSec) * time.Second,
			RetryAfter: time.Duration(cfg.Equities.RetryAfterSec) * time.Second,
			Logger:     logger,
		}),
		News: datasource.NewNews(datasource.NewsOptions{
			Sites:     sites,
			Keywords:  cfg.News.Keywords,
			MinTitle:  cfg.News.MinTitle,
			UserAgent: cfg.News.UserAgent,
			Timeout:   config.Timeout(cfg.News.TimeoutSec, 20*time.Second),
			Logger:    logger,
		}),
	}
	c.EquitiesErr = c.Equities.Init(map[string]string{"api_key": cfg.Equities.APIKey})
	return c
}

// RegisterAllTo registers every collector with reg.
func (c *Collectors) RegisterAllTo(reg *provider.Registry) error {
	for _, p := range []provider.Provider{c.Indicators, c.Equities, c.News} {
		if err := reg.Register(p); err != nil {
			return err
		}
	}
	return nil
}
