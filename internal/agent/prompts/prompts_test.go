package prompts

import (
	"strings"
	"testing"
)

// ── Agent Name Constants ──

func TestAgentNameConstants(t *testing.T) {
	names := map[string]string{
		"AgentMacro":   AgentMacro,
		"AgentEquity":  AgentEquity,
		"AgentWriter":  AgentWriter,
		"AgentChatbot": AgentChatbot,
	}
	seen := map[string]bool{}
	for label, name := range names {
		if name == "" {
			t.Errorf("%s should not be empty", label)
		}
		if strings.Contains(name, " ") {
			t.Errorf("%s should not contain spaces: %q", label, name)
		}
		if seen[name] {
			t.Errorf("%s duplicates another agent name: %q", label, name)
		}
		seen[name] = true
	}
}

// ── System Prompts ──

func TestSystemPromptsNameTheirRole(t *testing.T) {
	tests := []struct {
		name, prompt, role string
	}{
		{"macro", MacroSystemPrompt, "Analista Macroeconômico Sênior"},
		{"equity", EquitySystemPrompt, "Especialista em Análise de Ações da B3"},
		{"writer", WriterSystemPrompt, "Redator de Relatórios de Investimento"},
		{"chat", ChatSystemPrompt, "Analista Econômico Virtual"},
	}
	for _, tt := range tests {
		if !strings.Contains(tt.prompt, tt.role) {
			t.Errorf("%s prompt should name role %q", tt.name, tt.role)
		}
	}
}

func TestEquityPromptMentionsRecommendations(t *testing.T) {
	for _, want := range []string{"COMPRA", "VENDA", "MANTER", "web_search"} {
		if !strings.Contains(EquitySystemPrompt, want) {
			t.Errorf("equity prompt missing %q", want)
		}
	}
}

func TestWriterPromptHasNoTools(t *testing.T) {
	if strings.Contains(WriterSystemPrompt, "web_search") {
		t.Error("writer prompt must not reference the search tool")
	}
}

// ── Task Templates ──

func TestMacroTaskEmbedsContext(t *testing.T) {
	ctx := "| data | valor |\n|---|---|\n| 2024-01-01 | 0,42 |"
	task := MacroTask(ctx)
	if !strings.HasSuffix(task, ctx) {
		t.Error("macro task should end with the data context")
	}
	for _, want := range []string{"IPCA", "Selic", "web_search"} {
		if !strings.Contains(task, want) {
			t.Errorf("macro task missing %q", want)
		}
	}
}

func TestEquityTaskOrder(t *testing.T) {
	task := EquityTask("ANALISE_MACRO", "TABELA_ACOES")
	mi := strings.Index(task, "ANALISE_MACRO")
	ti := strings.Index(task, "TABELA_ACOES")
	if mi < 0 || ti < 0 || mi > ti {
		t.Errorf("macro analysis should precede the equities table: %d %d", mi, ti)
	}
	if !strings.Contains(task, "pelo menos 5 ações") {
		t.Error("equity task should ask for at least 5 recommendations")
	}
}

func TestWriterTaskListsSections(t *testing.T) {
	task := WriterTask("M", "E")
	last := -1
	for _, s := range ReportSections {
		i := strings.Index(task, "### "+s)
		if i < 0 {
			t.Fatalf("writer task missing section %q", s)
		}
		if i < last {
			t.Errorf("section %q out of order", s)
		}
		last = i
	}
}

func TestSectionOutline(t *testing.T) {
	out := SectionOutline()
	lines := strings.Split(out, "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 headings, got %d", len(lines))
	}
	if lines[0] != "### Sumário Executivo" || lines[4] != "### Apêndice: Fontes de Dados" {
		t.Errorf("outline: %q", out)
	}
}

// ── Brazilian Market ──

func TestBrazilMarketPromptSuffix(t *testing.T) {
	s := BrazilMarketPromptSuffix()
	for _, want := range []string{"B3", "R$", "Selic", "dd/mm/aaaa"} {
		if !strings.Contains(s, want) {
			t.Errorf("suffix missing %q", want)
		}
	}
}

func TestSectorForTicker(t *testing.T) {
	tests := []struct {
		ticker, want string
	}{
		{"PETR4", "Petróleo e Gás"},
		{"petr4.SA", "Petróleo e Gás"},
		{"ITUB4", "Bancos"},
		{"XPTO3", ""},
	}
	for _, tt := range tests {
		if got := SectorForTicker(tt.ticker); got != tt.want {
			t.Errorf("SectorForTicker(%q): got %q, want %q", tt.ticker, got, tt.want)
		}
	}
}

func TestSectorPeersExcludesSelf(t *testing.T) {
	peers := SectorPeers("BBAS3")
	if len(peers) != 3 {
		t.Fatalf("expected 3 bank peers, got %v", peers)
	}
	for _, p := range peers {
		if p == "BBAS3" {
			t.Error("peers should exclude the ticker itself")
		}
	}
	if SectorPeers("XPTO3") != nil {
		t.Error("unknown ticker should have no peers")
	}
}

func TestSectorContext(t *testing.T) {
	out := SectorContext([]string{"VALE3", "XPTO3"})
	if !strings.Contains(out, "- VALE3: Mineração") {
		t.Errorf("missing VALE3 line: %q", out)
	}
	if !strings.Contains(out, "- XPTO3: setor não classificado") {
		t.Errorf("missing unknown line: %q", out)
	}
	if SectorContext(nil) != "" {
		t.Error("empty input should render nothing")
	}
}

func TestEveryDefaultTickerHasASector(t *testing.T) {
	for _, tk := range []string{"PETR4", "VALE3", "ITUB4", "BBDC4", "ABEV3", "BBAS3", "B3SA3", "WEGE3", "RENT3", "MGLU3"} {
		if SectorForTicker(tk) == "" {
			t.Errorf("%s has no sector", tk)
		}
	}
}
