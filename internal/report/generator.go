package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/seenimoa/mercadobr/internal/agent"
	"github.com/seenimoa/mercadobr/internal/llm"
	"github.com/seenimoa/mercadobr/internal/logging"
	"github.com/seenimoa/mercadobr/internal/store"
)

// Errors returned by Generate.
var (
	ErrMissingInput = errors.New("report: missing input file")
	ErrEmptyReport  = errors.New("report: pipeline produced no text")
)

// InputFiles are the tables the report is built from, in load order.
var InputFiles = []string{store.FileEquities, store.FileNews, store.FileIndicators}

// MissingInputError lists the input files that were not found.
type MissingInputError struct {
	Dir   string
	Files []string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("report: missing input files in %s: %s", e.Dir, strings.Join(e.Files, ", "))
}

// Is matches ErrMissingInput.
func (e *MissingInputError) Is(target error) bool { return target == ErrMissingInput }

// Config configures a Generator.
type Config struct {
	Store       *store.Store
	Provider    llm.LLMProvider
	Search      *llm.Search
	ChatOptions *llm.ChatOptions
	MaxToolIter int
	Logger      *logging.Logger
}

// Generator produces the investment report from the collected tables.
type Generator struct {
	store       *store.Store
	provider    llm.LLMProvider
	search      *llm.Search
	opts        *llm.ChatOptions
	maxToolIter int
	log         *logging.Logger
	rootLog     *logging.Logger
}

// Result describes a written report.
type Result struct {
	Path     string        `json:"path"`
	Text     string        `json:"-"`
	Stages   []string      `json:"stages"`
	Tokens   int           `json:"tokens"`
	Duration time.Duration `json:"duration"`
}

// NewGenerator creates a generator.
func NewGenerator(cfg Config) *Generator {
	return &Generator{
		store:       cfg.Store,
		provider:    cfg.Provider,
		search:      cfg.Search,
		opts:        cfg.ChatOptions,
		maxToolIter: cfg.MaxToolIter,
		log:         cfg.Logger.With("report"),
		rootLog:     logging.OrSilent(cfg.Logger),
	}
}

// CheckInputs returns a *MissingInputError when any input table is absent.
func (g *Generator) CheckInputs() error {
	if missing := g.store.Missing(InputFiles...); len(missing) > 0 {
		return &MissingInputError{Dir: g.store.Dir(), Files: missing}
	}
	return nil
}

// LoadContext reads the three input tables and renders the role context.
// Header-only tables are accepted.
func (g *Generator) LoadContext() (Context, error) {
	if err := g.CheckInputs(); err != nil {
		return Context{}, err
	}
	tables := make(map[string]*store.Table, len(InputFiles))
	for _, name := range InputFiles {
		t, err := g.store.ReadTable(name)
		if err != nil && !errors.Is(err, store.ErrNoData) {
			return Context{}, fmt.Errorf("report: load %s: %w", name, err)
		}
		tables[name] = t
	}
	return BuildContext(tables[store.FileIndicators], tables[store.FileNews], tables[store.FileEquities]), nil
}

// Generate runs the three roles in order and overwrites the report file
// with the final text. Nothing is written when any stage fails.
func (g *Generator) Generate(ctx context.Context) (*Result, error) {
	start := time.Now()

	rc, err := g.LoadContext()
	if err != nil {
		return nil, err
	}
	if g.provider == nil {
		return nil, fmt.Errorf("report: %w", llm.ErrNoAPIKey)
	}
	if g.search == nil || !g.search.Available() {
		g.log.Warn().Msg("SERPER_API_KEY não encontrada; a busca na web ficará indisponível para os agentes")
	}

	pipeline := agent.NewReportPipeline(agent.RoleConfig{
		Provider:    g.provider,
		Search:      g.search,
		ChatOptions: g.opts,
		MaxToolIter: g.maxToolIter,
		Logger:      g.rootLog,
	}, agent.ReportInput{
		DataContext:   rc.Render(),
		EquitiesTable: rc.Equities,
		Tickers:       rc.Tickers,
	})

	g.log.Info().Str("provider", g.provider.Name()).Strs("stages", pipeline.Stages()).Msg("starting report pipeline")

	out, err := pipeline.Run(ctx)
	if err != nil {
		return nil, err
	}

	text := out.Text()
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyReport
	}

	path, err := g.store.WriteReport(text)
	if err != nil {
		return nil, fmt.Errorf("report: write: %w", err)
	}

	res := &Result{
		Path:     path,
		Text:     text,
		Stages:   pipeline.Stages(),
		Duration: time.Since(start),
	}
	for _, st := range out.Stages {
		if st.Result != nil {
			res.Tokens += st.Result.Tokens
		}
	}
	g.log.Info().Str("path", path).Int("tokens", res.Tokens).Dur("duration", res.Duration).Msg("report written")
	return res, nil
}
