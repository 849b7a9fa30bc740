package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/seenimoa/mercadobr/api"
	"github.com/seenimoa/mercadobr/internal/config"
	"github.com/seenimoa/mercadobr/internal/llm"
	"github.com/seenimoa/mercadobr/internal/orchestrator"
	"github.com/seenimoa/mercadobr/internal/provider"
	"github.com/seenimoa/mercadobr/internal/report"
	"github.com/seenimoa/mercadobr/internal/store"
	"github.com/seenimoa/mercadobr/pkg/utils"
)

// stepDescriptions are the console labels of each pipeline step.
var stepDescriptions = map[string]string{
	orchestrator.StepIndicators: "Coleta de indicadores econômicos (BACEN)",
	orchestrator.StepEquities:   "Coleta das ações da B3 (Alpha Vantage)",
	orchestrator.StepNews:       "Coleta de notícias econômicas",
	orchestrator.StepReport:     "Execução da análise multiagente",
}

// exitError carries a failure whose message was already printed.
type exitError struct{ err error }

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// --- Collection Commands ---

var indicatorsCmd = &cobra.Command{
	Use:   "indicators",
	Short: "Collect the central bank indicator series",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSingleStep(cmd.Context(), orchestrator.StepIndicators)
	},
}

var equitiesCmd = &cobra.Command{
	Use:   "equities",
	Short: "Collect daily bars of the configured B3 tickers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSingleStep(cmd.Context(), orchestrator.StepEquities)
	},
}

var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "Scrape financial headlines from the configured news sites",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSingleStep(cmd.Context(), orchestrator.StepNews)
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate the investment report from the collected files",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSingleStep(cmd.Context(), orchestrator.StepReport)
	},
}

// runSingleStep runs one named step with the same console output as a
// full run.
func runSingleStep(ctx context.Context, name string) error {
	a := newApp(cfg, log)
	if name == orchestrator.StepEquities && a.collectors.EquitiesErr != nil {
		fmt.Fprintf(os.Stderr, "❌ ERRO: Variável de ambiente %s não encontrada.\n", config.EnvAlphaVantageKey)
		return &exitError{a.collectors.EquitiesErr}
	}
	return runSteps(ctx, a.orchestrator(name == orchestrator.StepReport), name)
}

// runSteps runs the named steps (all when none are named) in order,
// printing progress, and stops at the first failure.
func runSteps(ctx context.Context, o *orchestrator.Orchestrator, only ...string) error {
	names := o.Steps()
	if len(only) > 0 {
		names = only
	}
	for _, name := range names {
		desc := stepDescriptions[name]
		fmt.Printf("\n🔁 %s\n", desc)
		res, err := o.RunStep(ctx, name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ ERRO ao executar: %s\n", desc)
			explainStepError(err)
			return &exitError{err}
		}
		fmt.Printf("✅ %s concluída com sucesso. (%s)\n", desc, res.Summary)
	}
	return nil
}

// explainStepError prints the operator-facing detail of known failures.
func explainStepError(err error) {
	var missing *report.MissingInputError
	switch {
	case errors.As(err, &missing):
		fmt.Fprintln(os.Stderr, "❌ Erro: Arquivo CSV não encontrado.")
		fmt.Fprintf(os.Stderr, "Certifique-se de que os arquivos %s estão na pasta '%s'.\n",
			strings.Join(report.InputFiles, ", "), missing.Dir)
	case errors.Is(err, llm.ErrNoAPIKey):
		fmt.Fprintf(os.Stderr, "ERRO: Variável de ambiente %s não encontrada.\n", config.EnvOpenAIKey)
	default:
		var credErr *provider.ErrInvalidCredentials
		if errors.As(err, &credErr) {
			fmt.Fprintf(os.Stderr, "❌ ERRO: Variável de ambiente %s não encontrada.\n", config.EnvAlphaVantageKey)
			return
		}
		fmt.Fprintf(os.Stderr, "   %v\n", err)
	}
}

// --- Run / Serve Commands ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the four pipeline steps, then serve the dashboard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipelineAndServe(cmd.Context())
	},
}

// runPipelineAndServe is the default entry point: every step in order,
// aborting on the first failure, then the dashboard.
func runPipelineAndServe(ctx context.Context) error {
	a := newApp(cfg, log)
	if err := runSteps(ctx, a.orchestrator(true)); err != nil {
		return err
	}
	srv, err := a.server(ctx)
	if err != nil {
		return err
	}
	return serve(ctx, srv, "DASHBOARD")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard over the existing data files",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		srv, err := newApp(cfg, log).server(ctx)
		if err != nil {
			return err
		}
		return serve(ctx, srv, "DASHBOARD")
	},
}

func serve(ctx context.Context, srv *api.Server, title string, extra ...[2]string) error {
	addr := cfg.Dashboard.Addr()
	kv := append([][2]string{
		{"Version", version},
		{"Dashboard", "http://" + addr},
		{"Data", cfg.Data.Dir},
	}, extra...)
	printBanner(title, kv)
	log.Info().Str("version", version).Str("addr", addr).Str("data_dir", cfg.Data.Dir).Msg("dashboard starting")

	err := srv.ListenAndServe(ctx, addr)
	printShutdownBanner()
	return err
}

// --- Schedule Command ---

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Serve the dashboard and run the pipeline on a cron schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		spec := cfg.Schedule.Cron
		if s, _ := cmd.Flags().GetString("cron"); s != "" {
			spec = s
		}
		now, _ := cmd.Flags().GetBool("now")

		a := newApp(cfg, log)
		srv, err := a.server(ctx)
		if err != nil {
			return err
		}
		job := scheduledRun(ctx, a.orchestrator(cfg.Schedule.WithReport), srv)

		cl := newCronLogger(log)
		c := cron.New(
			cron.WithLocation(utils.BRT),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		)
		if _, err := c.AddFunc(spec, job); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", spec, err)
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()

		if now {
			go job()
		}
		return serve(ctx, srv, "SCHEDULER", [2]string{"Schedule", spec + " (America/Sao_Paulo)"})
	},
}

func init() {
	scheduleCmd.Flags().String("cron", "", "cron expression overriding schedule.cron")
	scheduleCmd.Flags().Bool("now", false, "run the pipeline once at startup")
}

// scheduledRun returns the cron job: one orchestrator run followed by a
// refresh event to connected dashboards.
func scheduledRun(ctx context.Context, o *orchestrator.Orchestrator, srv *api.Server) func() {
	return func() {
		rep, err := o.Run(ctx)
		if err != nil {
			log.Error().Err(err).Str("failed", rep.Failed).Msg("scheduled run failed")
		} else {
			log.Info().Int("steps", len(rep.Steps)).Dur("duration", rep.Duration).Msg("scheduled run finished")
		}
		if len(rep.Steps) > 0 {
			srv.Notify("pipeline")
		}
	}
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration, API keys and data file freshness",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  mercadobr — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		now := utils.NowBRT()
		trading := "no"
		if utils.IsTradingDay(now) {
			trading = "yes"
		}
		fmt.Printf("  Time (BRT):    %s\n", utils.FormatBRDateTime(now))
		fmt.Printf("  Trading Day:   %s\n", trading)
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    LLM Provider:  %s (model: %s)\n", cfg.LLM.Primary, primaryModel(cfg.LLM))
		fmt.Printf("    Tickers:       %s\n", strings.Join(cfg.Equities.Tickers, ", "))
		fmt.Printf("    Dashboard:     %s\n", cfg.Dashboard.Addr())
		fmt.Printf("    Schedule:      %s\n", cfg.Schedule.Cron)
		fmt.Println()

		fmt.Println("  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}
		fmt.Println()

		a := newApp(cfg, log)
		fmt.Println("  LLM Providers:")
		if router, err := a.llmRouter(cmd.Context()); err != nil {
			fmt.Printf("    ❌ %v\n", err)
		} else {
			ping, _ := cmd.Flags().GetBool("ping")
			var health map[string]error
			if ping {
				health = router.HealthCheck(cmd.Context())
			}
			for _, name := range router.ProviderNames() {
				line := "registered"
				if ping {
					line = "✅ reachable"
					if err := health[name]; err != nil {
						line = fmt.Sprintf("❌ %v", err)
					}
				}
				fmt.Printf("    %-14s %s\n", name, line)
			}
		}
		fmt.Println()

		reg := provider.NewRegistry()
		if err := a.collectors.RegisterAllTo(reg); err != nil {
			return err
		}
		fmt.Println("  Collectors:")
		for _, info := range reg.List() {
			fmt.Printf("    %-14s → %s\n", info.Name, info.Output)
		}
		fmt.Println()

		fmt.Println("  Data Files:")
		st := store.New(cfg.Data.Dir)
		for _, name := range []string{store.FileIndicators, store.FileEquities, store.FileNews, store.FileReport} {
			fi, err := os.Stat(st.Path(name))
			if err != nil {
				fmt.Printf("    %-30s ❌ missing\n", name)
				continue
			}
			fmt.Printf("    %-30s ✅ %s (%d bytes)\n", name, utils.FormatBRDateTime(fi.ModTime()), fi.Size())
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("ping", false, "ping every configured LLM provider")
}

// --- Config Command ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as TOML (credentials omitted)",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := config.Render(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}
