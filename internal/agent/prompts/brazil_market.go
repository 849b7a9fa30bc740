package prompts

import (
	"fmt"
	"strings"
)

// ── Brazilian Market–Specific Formatting & Context ──

// BrazilMarketContext provides B3 market context for agent prompts.
const BrazilMarketContext = `
## Contexto do Mercado Brasileiro
- Bolsa: B3 (Brasil, Bolsa, Balcão), índice de referência Ibovespa
- Moeda: Real brasileiro (R$ / BRL)
- Pregão: 10:00 às 17:00 (horário de Brasília), com leilões de abertura e fechamento
- Liquidação: D+2
- Política monetária: Copom define a taxa Selic a cada 45 dias
- Inflação oficial: IPCA (IBGE); IGP-M (FGV) reajusta contratos e aluguéis
- Tributação: 15% sobre ganho de capital em operações comuns; isenção para vendas até R$ 20 mil/mês
`

// BrazilNumberFormat describes Brazilian number formatting rules.
const BrazilNumberFormat = `
## Formatação de Números (Padrão Brasileiro)
- Valores monetários com prefixo R$: R$ 1.234,56
- Separador de milhar ponto, decimal vírgula: 10,75%
- Volumes: mil, mi, bi (ex.: R$ 2,3 bi)
- Datas no formato dd/mm/aaaa
- Horários no fuso de Brasília (BRT, UTC-3)
`

// BrazilMarketPromptSuffix returns a prompt suffix with B3 context.
// Append this to any role's system prompt.
func BrazilMarketPromptSuffix() string {
	return BrazilMarketContext + BrazilNumberFormat
}

// B3Sectors groups the tickers the pipeline follows by sector.
var B3Sectors = map[string][]string{
	"Petróleo e Gás":       {"PETR4", "PETR3", "PRIO3"},
	"Mineração":            {"VALE3"},
	"Bancos":               {"ITUB4", "BBDC4", "BBAS3", "SANB11"},
	"Bebidas":              {"ABEV3"},
	"Serviços Financeiros": {"B3SA3"},
	"Bens de Capital":      {"WEGE3", "EMBR3"},
	"Aluguel de Veículos":  {"RENT3"},
	"Varejo":               {"MGLU3", "LREN3"},
	"Papel e Celulose":     {"SUZB3", "KLBN11"},
	"Energia Elétrica":     {"ELET3", "EGIE3"},
}

// SectorForTicker returns the sector of a B3 ticker, or "" when unknown.
func SectorForTicker(ticker string) string {
	ticker = strings.ToUpper(strings.TrimSuffix(ticker, ".SA"))
	for sector, tickers := range B3Sectors {
		for _, t := range tickers {
			if t == ticker {
				return sector
			}
		}
	}
	return ""
}

// SectorPeers returns the other tickers of the same sector.
func SectorPeers(ticker string) []string {
	sector := SectorForTicker(ticker)
	if sector == "" {
		return nil
	}
	ticker = strings.ToUpper(strings.TrimSuffix(ticker, ".SA"))
	var peers []string
	for _, t := range B3Sectors[sector] {
		if t != ticker {
			peers = append(peers, t)
		}
	}
	return peers
}

// FormatTickerPrompt renders one line of sector context for a ticker.
func FormatTickerPrompt(ticker string) string {
	sector := SectorForTicker(ticker)
	if sector == "" {
		return fmt.Sprintf("- %s: setor não classificado", ticker)
	}
	peers := SectorPeers(ticker)
	if len(peers) == 0 {
		return fmt.Sprintf("- %s: %s", ticker, sector)
	}
	return fmt.Sprintf("- %s: %s (pares: %s)", ticker, sector, strings.Join(peers, ", "))
}

// SectorContext renders sector context for a list of tickers.
func SectorContext(tickers []string) string {
	if len(tickers) == 0 {
		return ""
	}
	lines := make([]string, 0, len(tickers))
	for _, t := range tickers {
		lines = append(lines, FormatTickerPrompt(t))
	}
	return strings.Join(lines, "\n")
}
