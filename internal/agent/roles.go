package agent

import (
	"strings"

	"github.com/seenimoa/mercadobr/internal/agent/prompts"
	"github.com/seenimoa/mercadobr/internal/llm"
	"github.com/seenimoa/mercadobr/internal/logging"
)

// RoleConfig is shared by the report roles.
type RoleConfig struct {
	Provider    llm.LLMProvider
	Search      *llm.Search // nil disables web_search for every role
	ChatOptions *llm.ChatOptions
	MaxToolIter int
	Logger      *logging.Logger
}

func (c RoleConfig) searchTools() []llm.Tool {
	if c.Search == nil {
		return nil
	}
	return []llm.Tool{c.Search.Tool()}
}

func (c RoleConfig) base(name, role, prompt string, tools []llm.Tool) *BaseAgent {
	return NewBaseAgent(BaseAgentConfig{
		Name:         name,
		Role:         role,
		SystemPrompt: prompt + prompts.BrazilMarketPromptSuffix(),
		Provider:     c.Provider,
		Tools:        tools,
		ChatOptions:  c.ChatOptions,
		MaxToolIter:  c.MaxToolIter,
		Logger:       c.Logger,
	})
}

// NewMacroAnalyst creates the macro analyst role.
func NewMacroAnalyst(cfg RoleConfig) *BaseAgent {
	return cfg.base(prompts.AgentMacro, prompts.RoleMacro, prompts.MacroSystemPrompt, cfg.searchTools())
}

// NewEquitySpecialist creates the B3 equity specialist role.
func NewEquitySpecialist(cfg RoleConfig) *BaseAgent {
	return cfg.base(prompts.AgentEquity, prompts.RoleEquity, prompts.EquitySystemPrompt, cfg.searchTools())
}

// NewReportWriter creates the report writer role. It has no tools.
func NewReportWriter(cfg RoleConfig) *BaseAgent {
	return cfg.base(prompts.AgentWriter, prompts.RoleWriter, prompts.WriterSystemPrompt, nil)
}

// ReportInput is the rendered data the report stages work from.
type ReportInput struct {
	DataContext   string   // indicators, news and equities sections
	EquitiesTable string   // equities markdown table alone
	Tickers       []string // tickers present in the equities table
}

// NewReportPipeline wires macro analyst, equity specialist and writer into
// a three-stage pipeline.
func NewReportPipeline(cfg RoleConfig, in ReportInput) *Pipeline {
	equitiesTable := in.EquitiesTable
	if sectors := prompts.SectorContext(in.Tickers); sectors != "" {
		equitiesTable = strings.TrimRight(equitiesTable, "\n") + "\n\nSetores B3:\n" + sectors
	}

	return NewPipeline(cfg.Logger,
		Stage{
			Name:  "macro",
			Agent: NewMacroAnalyst(cfg),
			Task: func([]StageOutput) string {
				return prompts.MacroTask(in.DataContext)
			},
		},
		Stage{
			Name:  "equities",
			Agent: NewEquitySpecialist(cfg),
			Task: func(prior []StageOutput) string {
				return prompts.EquityTask(prior[0].Content, equitiesTable)
			},
		},
		Stage{
			Name:  "report",
			Agent: NewReportWriter(cfg),
			Task: func(prior []StageOutput) string {
				return prompts.WriterTask(prior[0].Content, prior[1].Content)
			},
		},
	)
}
