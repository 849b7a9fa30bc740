// Package report builds the data context for the three analyst roles,
// runs them and writes the final markdown report. It also renders the
// dashboard charts and the report HTML.
package report

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/seenimoa/mercadobr/internal/store"
)

// NoNewsPlaceholder stands in for the news list when the news table has no
// usable rows.
const NoNewsPlaceholder = "Nenhuma notícia de investimento carregada do CSV."

// Section banners of the data context.
const (
	BannerIndicators = "=== 📈 Dados Históricos de Indicadores Econômicos ==="
	BannerNews       = "=== 📰 Notícias de Investimento Recentes (do CSV) ==="
	BannerEquities   = "=== 📊 Top 10 Ações (do CSV) ==="
)

// Context is the text the roles work from.
type Context struct {
	Indicators string // markdown table
	News       string // "Título: …\nLink: …" lines or NoNewsPlaceholder
	Equities   string // markdown table
	Tickers    []string
}

// BuildContext renders the three input tables.
func BuildContext(indicators, news, equities *store.Table) Context {
	return Context{
		Indicators: MarkdownTable(indicators),
		News:       NewsLines(news),
		Equities:   MarkdownTable(equities),
		Tickers:    Tickers(equities),
	}
}

// Render joins the sections under their banners.
func (c Context) Render() string {
	var b strings.Builder
	b.WriteString(BannerIndicators + "\n")
	b.WriteString(c.Indicators + "\n\n")
	b.WriteString(BannerNews + "\n")
	b.WriteString(c.News + "\n\n")
	b.WriteString(BannerEquities + "\n")
	b.WriteString(c.Equities + "\n")
	return b.String()
}

// MarkdownTable renders a table with a markdown border. An unnamed index
// column is labelled "data".
func MarkdownTable(t *store.Table) string {
	if t == nil || len(t.Header) == 0 {
		return ""
	}
	headers := make([]string, len(t.Header))
	for i, h := range t.Header {
		if strings.TrimSpace(h) == "" {
			h = "data"
		}
		headers[i] = h
	}

	tbl := table.New().
		Border(lipgloss.MarkdownBorder()).
		BorderTop(false).
		BorderBottom(false).
		Headers(headers...)
	for _, row := range t.Rows {
		cells := make([]string, len(headers))
		for i := range headers {
			cells[i] = t.Cell(row, i)
		}
		tbl.Row(cells...)
	}
	return tbl.String()
}

// NewsLines renders one "Título/Link" pair per news row. A table without
// titulo and link columns, or without rows, yields NoNewsPlaceholder.
func NewsLines(t *store.Table) string {
	if t == nil {
		return NoNewsPlaceholder
	}
	cTitle, cLink := t.Column("titulo"), t.Column("link")
	if cTitle < 0 || cLink < 0 || len(t.Rows) == 0 {
		return NoNewsPlaceholder
	}
	lines := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		lines = append(lines, "Título: "+t.Cell(row, cTitle)+"\nLink: "+t.Cell(row, cLink))
	}
	return strings.Join(lines, "\n")
}

// Tickers returns the distinct values of the ticker column, sorted.
func Tickers(t *store.Table) []string {
	if t == nil {
		return nil
	}
	c := t.Column("ticker")
	if c < 0 {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, row := range t.Rows {
		tk := strings.TrimSpace(t.Cell(row, c))
		if tk == "" || seen[tk] {
			continue
		}
		seen[tk] = true
		out = append(out, tk)
	}
	sort.Strings(out)
	return out
}
