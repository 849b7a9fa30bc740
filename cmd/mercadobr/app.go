package main

import (
	"context"
	"fmt"
	"time"

	"github.com/seenimoa/mercadobr/api"
	"github.com/seenimoa/mercadobr/internal/agent"
	"github.com/seenimoa/mercadobr/internal/config"
	"github.com/seenimoa/mercadobr/internal/llm"
	"github.com/seenimoa/mercadobr/internal/logging"
	"github.com/seenimoa/mercadobr/internal/orchestrator"
	"github.com/seenimoa/mercadobr/internal/providers"
	"github.com/seenimoa/mercadobr/internal/report"
	"github.com/seenimoa/mercadobr/internal/store"
)

// app wires the configured components together.
type app struct {
	cfg        *config.Config
	log        *logging.Logger
	store      *store.Store
	collectors *providers.Collectors

	router    *llm.Router
	routerErr error
	routerSet bool
}

func newApp(cfg *config.Config, log *logging.Logger) *app {
	return &app{
		cfg:        cfg,
		log:        log,
		store:      store.New(cfg.Data.Dir),
		collectors: providers.New(cfg, log),
	}
}

// llmRouter builds the model router once. The error is ErrNoProviders when
// no model key is configured.
func (a *app) llmRouter(ctx context.Context) (*llm.Router, error) {
	if !a.routerSet {
		a.router, a.routerErr = llm.NewRouterFromConfig(ctx, a.cfg, a.log)
		a.routerSet = true
	}
	return a.router, a.routerErr
}

// search returns the web-search tool backend; without a key its tool
// answers that search is unavailable.
func (a *app) search() *llm.Search {
	s := a.cfg.Search
	return llm.NewSearch(llm.SearchOptions{
		APIKey:     s.APIKey,
		BaseURL:    s.BaseURL,
		Country:    s.Country,
		Language:   s.Language,
		NumResults: s.NumResults,
		RatePerSec: s.RatePerSec,
		Timeout:    30 * time.Second,
		Logger:     a.log,
	})
}

// generator builds the report generator on the primary model provider.
func (a *app) generator(ctx context.Context) *report.Generator {
	var primary llm.LLMProvider
	if router, err := a.llmRouter(ctx); err == nil {
		if p, err := router.Primary(); err == nil {
			primary = p
		} else {
			a.log.Warn().Err(err).Msg("primary model provider unavailable")
		}
	}
	return report.NewGenerator(report.Config{
		Store:    a.store,
		Provider: primary,
		Search:   a.search(),
		ChatOptions: a.reportOptions(),
		MaxToolIter: a.cfg.LLM.MaxToolIter,
		Logger:      a.log,
	})
}

// reportOptions are the completion settings of the report stages.
func (a *app) reportOptions() *llm.ChatOptions {
	return &llm.ChatOptions{
		Model:       primaryModel(a.cfg.LLM),
		Temperature: a.cfg.LLM.Temperature,
		MaxTokens:   a.cfg.LLM.MaxTokens,
	}
}

// primaryModel is the model name configured for the primary provider.
func primaryModel(c config.LLMConfig) string {
	switch c.Primary {
	case llm.ProviderGemini:
		return c.GeminiModel
	case llm.ProviderAnthropic:
		return c.AnthropicModel
	default:
		return c.Model
	}
}

// chat builds the dashboard chat on the router, so a failing primary falls
// back to the next configured model. Without any key the chat is disabled.
func (a *app) chat(ctx context.Context) *agent.Chat {
	cc := agent.ChatConfig{
		Temperature: a.cfg.LLM.ChatTemperature,
		MaxTokens:   a.cfg.LLM.MaxTokens,
		Logger:      a.log,
	}
	if router, err := a.llmRouter(ctx); err == nil {
		cc.Provider = router
	} else {
		a.log.Warn().Err(err).Msg(agent.ChatDisabledMessage)
	}
	return agent.NewChat(cc)
}

// steps returns the pipeline steps in run order.
func (a *app) steps(withReport bool) []orchestrator.Step {
	c := a.collectors
	steps := []orchestrator.Step{
		orchestrator.CollectStep(orchestrator.StepIndicators, c.Indicators.Collect, a.store.WriteIndicators),
		orchestrator.CollectStep(orchestrator.StepEquities, c.Equities.Collect, a.store.WriteEquities),
		orchestrator.CollectStep(orchestrator.StepNews, c.News.Collect, a.store.WriteNews),
	}
	if withReport {
		steps = append(steps, a.reportStep())
	}
	return steps
}

func (a *app) reportStep() orchestrator.Step {
	return orchestrator.Step{
		Name: orchestrator.StepReport,
		Run: func(ctx context.Context) (*orchestrator.StepResult, error) {
			res, err := a.generator(ctx).Generate(ctx)
			if err != nil {
				return nil, err
			}
			return &orchestrator.StepResult{
				Written: res.Path,
				Summary: fmt.Sprintf("%d stages, %d tokens", len(res.Stages), res.Tokens),
			}, nil
		},
	}
}

func (a *app) orchestrator(withReport bool) *orchestrator.Orchestrator {
	return orchestrator.New(a.log, a.steps(withReport)...)
}

// server builds the dashboard server.
func (a *app) server(ctx context.Context) (*api.Server, error) {
	return api.NewServer(api.Options{
		Store:     a.store,
		Chat:      a.chat(ctx),
		Dashboard: a.cfg.Dashboard,
		Logger:    a.log,
	})
}
