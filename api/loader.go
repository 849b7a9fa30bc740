package api

import (
	"errors"
	"fmt"
	"html/template"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/seenimoa/mercadobr/internal/infra"
	"github.com/seenimoa/mercadobr/internal/logging"
	"github.com/seenimoa/mercadobr/internal/report"
	"github.com/seenimoa/mercadobr/internal/store"
	"github.com/seenimoa/mercadobr/pkg/utils"
)

// ReportMissingMessage is shown when no report has been generated yet.
const ReportMissingMessage = "Relatório não encontrado. Execute a análise dos agentes primeiro."

// DefaultNewsLimit is how many news items the dashboard lists.
const DefaultNewsLimit = 10

// Placeholder converts an artifact load error into the text shown instead
// of the artifact.
func Placeholder(name string, err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, store.ErrNotFound):
		return fmt.Sprintf("Arquivo %s não encontrado.", name)
	case errors.Is(err, store.ErrNoData):
		return fmt.Sprintf("Arquivo %s está vazio.", name)
	case errors.Is(err, store.ErrEmpty):
		return fmt.Sprintf("Arquivo %s não contém dados para parsear.", name)
	default:
		return fmt.Sprintf("Erro ao carregar %s: %v", name, err)
	}
}

// ── Views ──

// ReportView is the report as markdown and rendered HTML.
type ReportView struct {
	Markdown string        `json:"markdown,omitempty"`
	HTML     template.HTML `json:"html,omitempty"`
	Message  string        `json:"message,omitempty"`
}

// EquitiesView lists the tickers available for charting.
type EquitiesView struct {
	Tickers []string `json:"tickers"`
	Message string   `json:"message,omitempty"`
}

// SeriesView is one ticker or indicator: its chartable points and the
// raw rows shown under the chart.
type SeriesView struct {
	Name    string         `json:"name"`
	Title   string         `json:"title"`
	Header  []string       `json:"header"`
	Rows    [][]string     `json:"rows"`
	Points  []report.Point `json:"-"`
	Count   int            `json:"points"`
	Summary string         `json:"summary,omitempty"`
	Message string         `json:"message,omitempty"`
}

// Chartable reports whether the series has enough points for a chart.
func (v SeriesView) Chartable() bool { return len(v.Points) >= 2 }

// IndicatorsView lists the indicator names available for charting.
type IndicatorsView struct {
	Names   []string `json:"names"`
	Message string   `json:"message,omitempty"`
}

// NewsEntry is one listed headline.
type NewsEntry struct {
	Title  string `json:"titulo"`
	Link   string `json:"link,omitempty"`
	Source string `json:"fonte"`
}

// NewsView is the headline list. When the file lacks the title or link
// columns, Header and Rows carry the first rows as they are.
type NewsView struct {
	Items   []NewsEntry `json:"items"`
	Header  []string    `json:"header,omitempty"`
	Rows    [][]string  `json:"rows,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ── Loader ──

type tableEntry struct {
	mod   time.Time
	size  int64
	table *store.Table
	err   error
}

// Loader reads dashboard artifacts through a cache keyed on file name and
// invalidated when the file's modification time or size changes.
// Concurrent loads of one file share a single read.
type Loader struct {
	store  *store.Store
	tables *infra.Cache[string, *tableEntry]
	group  singleflight.Group
	log    *logging.Logger
}

// NewLoader creates a loader over st. Entries expire after ttl even when the
// file is unchanged.
func NewLoader(st *store.Store, ttl time.Duration, logger *logging.Logger) *Loader {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Loader{
		store:  st,
		tables: infra.NewCache[string, *tableEntry](ttl),
		log:    logger.With("loader"),
	}
}

// Table returns the parsed CSV name. A header-only file returns the table
// together with store.ErrNoData.
func (l *Loader) Table(name string) (*store.Table, error) {
	fi, err := os.Stat(l.store.Path(name))
	if err != nil {
		l.tables.Invalidate(name)
		return l.store.ReadTable(name)
	}
	if e, ok := l.tables.Get(name); ok && e.mod.Equal(fi.ModTime()) && e.size == fi.Size() {
		return e.table, e.err
	}

	v, _, _ := l.group.Do(name, func() (interface{}, error) {
		t, err := l.store.ReadTable(name)
		if err != nil && !store.IsMissingOrEmpty(err) {
			l.log.Warn().Err(err).Str("file", name).Msg("artifact unreadable")
		}
		e := &tableEntry{mod: fi.ModTime(), size: fi.Size(), table: t, err: err}
		l.tables.Set(name, e)
		return e, nil
	})
	e := v.(*tableEntry)
	return e.table, e.err
}

// Report loads and renders the markdown report.
func (l *Loader) Report() ReportView {
	text, err := l.store.ReadReport()
	if err != nil {
		if store.IsMissingOrEmpty(err) {
			return ReportView{Message: ReportMissingMessage}
		}
		return ReportView{Message: fmt.Sprintf("Erro ao ler o relatório: %v", err)}
	}
	html, err := report.RenderMarkdown(text)
	if err != nil {
		l.log.Warn().Err(err).Msg("report markdown render failed")
		return ReportView{Markdown: text, Message: fmt.Sprintf("Erro ao ler o relatório: %v", err)}
	}
	return ReportView{Markdown: text, HTML: html}
}

// Equities lists the distinct tickers of the equity table.
func (l *Loader) Equities() EquitiesView {
	t, err := l.Table(store.FileEquities)
	if err != nil {
		return EquitiesView{Tickers: []string{}, Message: Placeholder(store.FileEquities, err)}
	}
	c := t.Column("ticker")
	if c < 0 {
		return EquitiesView{Tickers: []string{}, Message: fmt.Sprintf("Coluna 'ticker' não encontrada no arquivo %s.", store.FileEquities)}
	}
	tickers := distinct(t, c, nil)
	if len(tickers) == 0 {
		return EquitiesView{Tickers: tickers, Message: "Nenhum ticker encontrado no arquivo de ações."}
	}
	return EquitiesView{Tickers: tickers}
}

// Ticker returns the closing-price series of one ticker.
func (l *Loader) Ticker(ticker string) SeriesView {
	v := SeriesView{Name: ticker, Title: report.ClosingPriceTitle(ticker), Rows: [][]string{}}
	t, err := l.Table(store.FileEquities)
	if err != nil {
		v.Message = Placeholder(store.FileEquities, err)
		return v
	}
	c := t.Column("ticker")
	if c < 0 {
		v.Message = fmt.Sprintf("Coluna 'ticker' não encontrada no arquivo %s.", store.FileEquities)
		return v
	}

	sub := &store.Table{Header: t.Header}
	for _, row := range t.Rows {
		if t.Cell(row, c) == ticker {
			sub.Rows = append(sub.Rows, row)
		}
	}
	v.Header, v.Rows = displayHeader(t.Header), nonNil(sub.Rows)
	if len(sub.Rows) == 0 {
		v.Message = fmt.Sprintf("Não há dados para o ticker '%s'.", ticker)
		return v
	}

	dc := store.DateColumn(sub)
	if dc < 0 || !anyDate(sub, dc) {
		v.Message = "Não foi possível identificar a coluna de data para o gráfico de ações. " +
			"Verifique se existe uma coluna como 'Unnamed: 0', 'data', 'Data' ou 'Date'."
		return v
	}
	v.Points = points(sub, dc, sub.Column("fechamento"))
	v.Count = len(v.Points)
	if len(v.Points) == 0 {
		v.Message = fmt.Sprintf("Não há dados de fechamento válidos para plotar para %s.", ticker)
		return v
	}
	v.Summary = closeSummary(v.Points, points(sub, dc, sub.Column("volume")))
	return v
}

// closeSummary describes the latest close, its change over the previous
// close and the latest volume.
func closeSummary(closes, volumes []report.Point) string {
	last := closes[len(closes)-1]
	s := fmt.Sprintf("Último fechamento (%s): %s", last.Date.Format("02/01/2006"), utils.FormatBRL(last.Value))
	if n := len(closes); n >= 2 && closes[n-2].Value != 0 {
		prev := closes[n-2].Value
		s += " (" + utils.FormatPct((last.Value-prev)/prev*100) + ")"
	}
	if len(volumes) > 0 {
		s += " · Volume " + utils.FormatVolume(volumes[len(volumes)-1].Value)
	}
	return s
}

var indicatorColumns = []string{"data", "valor", "indicador"}

func (l *Loader) indicatorTable() (*store.Table, string) {
	t, err := l.Table(store.FileIndicators)
	if err != nil {
		return nil, Placeholder(store.FileIndicators, err)
	}
	for _, col := range indicatorColumns {
		if t.Column(col) < 0 {
			return nil, fmt.Sprintf("O arquivo %s deve conter as colunas: %s.", store.FileIndicators, strings.Join(indicatorColumns, ", "))
		}
	}
	return t, ""
}

// Indicators lists the indicator names that have at least one dated row.
func (l *Loader) Indicators() IndicatorsView {
	t, msg := l.indicatorTable()
	if t == nil {
		return IndicatorsView{Names: []string{}, Message: msg}
	}
	dc := t.Column("data")
	names := distinct(t, t.Column("indicador"), func(row []string) bool {
		_, err := store.ParseDate(t.Cell(row, dc))
		return err == nil
	})
	if len(names) == 0 {
		return IndicatorsView{Names: names, Message: "Não há dados válidos de indicadores após conversão de datas."}
	}
	return IndicatorsView{Names: names}
}

// Indicator returns the value series of one indicator.
func (l *Loader) Indicator(name string) SeriesView {
	v := SeriesView{Name: name, Title: report.IndicatorTitle(name), Rows: [][]string{}}
	t, msg := l.indicatorTable()
	if t == nil {
		v.Message = msg
		return v
	}
	ci := t.Column("indicador")
	sub := &store.Table{Header: t.Header}
	for _, row := range t.Rows {
		if t.Cell(row, ci) == name {
			sub.Rows = append(sub.Rows, row)
		}
	}
	v.Header, v.Rows = displayHeader(t.Header), nonNil(sub.Rows)
	if len(sub.Rows) == 0 {
		v.Message = fmt.Sprintf("Não há dados para o indicador '%s'.", name)
		return v
	}
	v.Points = points(sub, sub.Column("data"), sub.Column("valor"))
	v.Count = len(v.Points)
	if len(v.Points) == 0 {
		v.Message = fmt.Sprintf("Não há valores numéricos válidos para plotar para '%s'.", name)
	}
	return v
}

// News returns the first limit headlines in file order.
func (l *Loader) News(limit int) NewsView {
	if limit <= 0 {
		limit = DefaultNewsLimit
	}
	t, err := l.Table(store.FileNews)
	if err != nil {
		return NewsView{Items: []NewsEntry{}, Message: Placeholder(store.FileNews, err)}
	}
	rows := t.Rows
	if len(rows) > limit {
		rows = rows[:limit]
	}

	cTitle, cLink, cSrc := t.Column("titulo"), t.Column("link"), t.Column("fonte")
	if cTitle < 0 || cLink < 0 {
		return NewsView{
			Items:   []NewsEntry{},
			Header:  displayHeader(t.Header),
			Rows:    rows,
			Message: fmt.Sprintf("Colunas 'titulo' e 'link' não encontradas em %s. Exibindo as primeiras %d linhas como fallback.", store.FileNews, limit),
		}
	}

	items := make([]NewsEntry, 0, len(rows))
	for _, row := range rows {
		e := NewsEntry{Title: t.Cell(row, cTitle), Source: strings.TrimSpace(t.Cell(row, cSrc))}
		if link := strings.TrimSpace(t.Cell(row, cLink)); usableLink(link) {
			e.Link = link
		}
		if e.Source == "" {
			e.Source = "Não informado"
		}
		items = append(items, e)
	}
	return NewsView{Items: items}
}

// ── Helpers ──

func usableLink(link string) bool {
	switch strings.ToLower(link) {
	case "", "nan", "na", "n/a":
		return false
	}
	return true
}

// distinct returns the sorted distinct non-empty values of column c over
// the rows accepted by keep (all rows when keep is nil).
func distinct(t *store.Table, c int, keep func([]string) bool) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, row := range t.Rows {
		if keep != nil && !keep(row) {
			continue
		}
		v := strings.TrimSpace(t.Cell(row, c))
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func anyDate(t *store.Table, c int) bool {
	for _, row := range t.Rows {
		if _, err := store.ParseDate(t.Cell(row, c)); err == nil {
			return true
		}
	}
	return false
}

// points pairs the date and numeric value columns, dropping rows where
// either fails to parse, sorted by date.
func points(t *store.Table, dateCol, valueCol int) []report.Point {
	if dateCol < 0 || valueCol < 0 {
		return nil
	}
	var pts []report.Point
	for _, row := range t.Rows {
		d, err := store.ParseDate(t.Cell(row, dateCol))
		if err != nil {
			continue
		}
		v, err := decimal.NewFromString(strings.TrimSpace(t.Cell(row, valueCol)))
		if err != nil {
			continue
		}
		pts = append(pts, report.Point{Date: d, Value: v.InexactFloat64()})
	}
	report.SortPoints(pts)
	return pts
}

// displayHeader names the unnamed date index column.
func displayHeader(h []string) []string {
	out := make([]string, len(h))
	for i, name := range h {
		if name == "" {
			name = "data"
		}
		out[i] = name
	}
	return out
}

func nonNil(rows [][]string) [][]string {
	if rows == nil {
		return [][]string{}
	}
	return rows
}
