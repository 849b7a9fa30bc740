package prompts

import (
	"fmt"
	"strings"
)

// ── Step-by-step Task Templates ──
//
// Each pipeline stage receives one of these as its user message. Prior stage
// outputs are passed in verbatim.

// MacroTask builds the macro analyst's task over the full data context.
func MacroTask(dataContext string) string {
	return fmt.Sprintf(`Analise o cenário macroeconômico brasileiro.

Pense passo a passo:

1. **Indicadores**: analise os indicadores econômicos fornecidos para entender as tendências recentes.
2. **Notícias**: revise as notícias de investimento recentes para capturar o sentimento e os eventos atuais.
3. **Pesquisa**: use web_search para buscar informações atualizadas (últimos 1 a 3 meses) sobre:
   a) Perspectivas para IPCA, PIB, dólar, IGP-M e taxa Selic no Brasil.
   b) Principais fatores macroeconômicos que estão afetando o mercado de ações brasileiro.
   c) Notícias relevantes sobre a economia brasileira que possam impactar investimentos.
4. **Síntese**: produza um panorama do cenário atual e suas implicações para investidores em ações.

Resultado esperado: um relatório conciso destacando a trajetória recente dos indicadores e suas perspectivas, os principais eventos (CSV e pesquisa online) e os impactos esperados no mercado de ações brasileiro.

Contexto dos dados coletados:
%s`, dataContext)
}

// EquityTask builds the equity specialist's task from the macro analysis and
// the equities table.
func EquityTask(macroAnalysis, equitiesTable string) string {
	return fmt.Sprintf(`Avalie as ações listadas em top_10_acoes.csv à luz do cenário macroeconômico.

Pense passo a passo:

1. Parta da análise macroeconômica abaixo.
2. Para cada ação da tabela, use web_search para encontrar:
   a) Notícias recentes e específicas sobre a empresa e seu setor.
   b) Análises e perspectivas de mercado (preço-alvo, recomendações).
   c) Informações fundamentalistas relevantes, quando possível.
3. Se julgar pertinente, pesquise outras ações da B3 que representem oportunidades ou riscos.
4. Formule recomendações de COMPRA, VENDA ou MANTER para pelo menos 5 ações (priorizando as do CSV), cada uma com justificativa clara.

## Análise macroeconômica
%s

## Top 10 Ações (CSV)
%s`, macroAnalysis, equitiesTable)
}

// WriterTask builds the writer's task from both prior analyses.
func WriterTask(macroAnalysis, equityRecommendations string) string {
	return fmt.Sprintf(`**Gere e escreva agora o relatório de investimento final completo em markdown (PT-BR).**

Unifique a análise do cenário macroeconômico e as indicações de ações em um relatório coeso com as seções:
%s

Use as análises abaixo como base principal.

## Análise macroeconômica
%s

## Indicações de ações
%s`, SectionOutline(), macroAnalysis, equityRecommendations)
}

// SectionOutline renders ReportSections as level-3 markdown headings.
func SectionOutline() string {
	var b strings.Builder
	for _, s := range ReportSections {
		b.WriteString("### ")
		b.WriteString(s)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
