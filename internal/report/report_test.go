package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/mercadobr/internal/llm"
	"github.com/seenimoa/mercadobr/internal/store"
	"github.com/seenimoa/mercadobr/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

type mockProvider struct {
	mu    sync.Mutex
	calls [][]llm.Message
	reply func(n int) (*llm.Response, error)
}

func (m *mockProvider) Name() string               { return "mock" }
func (m *mockProvider) Models() []string           { return []string{"mock"} }
func (m *mockProvider) Ping(context.Context) error { return nil }

func (m *mockProvider) Chat(_ context.Context, msgs []llm.Message, _ []llm.Tool, _ *llm.ChatOptions) (*llm.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, msgs)
	n := len(m.calls)
	m.mu.Unlock()
	if m.reply != nil {
		return m.reply(n)
	}
	return &llm.Response{Content: fmt.Sprintf("etapa-%d", n), Usage: llm.Usage{TotalTokens: 10}}, nil
}

func (m *mockProvider) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func day(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }

func seedStore(t *testing.T, withNews bool) *store.Store {
	t.Helper()
	s := store.New(t.TempDir())
	if _, err := s.WriteIndicators([]models.IndicatorRecord{
		{Date: day(1), Value: decimal.RequireFromString("10.75"), Indicator: "SELIC", CollectedOn: day(20)},
		{Date: day(2), Value: decimal.RequireFromString("0.42"), Indicator: "IPCA", CollectedOn: day(20)},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.WriteEquities([]models.EquityBar{
		{Date: day(1), Open: decimal.NewFromInt(36), High: decimal.NewFromInt(37), Low: decimal.NewFromInt(35), Close: decimal.NewFromInt(36), Volume: decimal.NewFromInt(1000), Ticker: "PETR4"},
		{Date: day(1), Open: decimal.NewFromInt(60), High: decimal.NewFromInt(61), Low: decimal.NewFromInt(59), Close: decimal.NewFromInt(60), Volume: decimal.NewFromInt(900), Ticker: "VALE3"},
	}); err != nil {
		t.Fatal(err)
	}
	var news []models.NewsItem
	if withNews {
		news = append(news, models.NewsItem{Title: "Selic sobe para 11% ao ano", Link: "https://g1.globo.com/economia/selic", Source: "G1 Economia", CollectedAt: day(20)})
	}
	if _, err := s.WriteNews(news); err != nil {
		t.Fatal(err)
	}
	return s
}

// ════════════════════════════════════════════════════════════════════
// Context
// ════════════════════════════════════════════════════════════════════

func TestMarkdownTable(t *testing.T) {
	tbl := &store.Table{
		Header: []string{"", "fechamento", "ticker"},
		Rows:   [][]string{{"2024-03-01", "36.5", "PETR4"}},
	}
	out := MarkdownTable(tbl)
	for _, want := range []string{"data", "fechamento", "ticker", "2024-03-01", "36.5", "PETR4", "|", "---"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if MarkdownTable(nil) != "" {
		t.Error("nil table should render nothing")
	}
}

func TestNewsLines(t *testing.T) {
	tbl := &store.Table{
		Header: store.NewsHeader,
		Rows: [][]string{
			{"Selic sobe", "https://a/1", "G1", "2024-03-01 10:00:00"},
			{"Ibovespa cai", "https://a/2", "G1", "2024-03-01 10:00:00"},
		},
	}
	want := "Título: Selic sobe\nLink: https://a/1\nTítulo: Ibovespa cai\nLink: https://a/2"
	if got := NewsLines(tbl); got != want {
		t.Errorf("NewsLines: got %q, want %q", got, want)
	}

	placeholders := map[string]*store.Table{
		"nil":          nil,
		"no rows":      {Header: store.NewsHeader},
		"missing link": {Header: []string{"titulo"}, Rows: [][]string{{"x"}}},
	}
	for name, tb := range placeholders {
		if got := NewsLines(tb); got != NoNewsPlaceholder {
			t.Errorf("%s: got %q, want placeholder", name, got)
		}
	}
}

func TestContextRenderOrder(t *testing.T) {
	out := Context{Indicators: "IND", News: "NEWS", Equities: "EQ"}.Render()
	order := []string{BannerIndicators, "IND", BannerNews, "NEWS", BannerEquities, "EQ"}
	last := -1
	for _, s := range order {
		i := strings.Index(out, s)
		if i <= last {
			t.Fatalf("%q out of order in:\n%s", s, out)
		}
		last = i
	}
}

func TestTickers(t *testing.T) {
	tbl := &store.Table{
		Header: store.EquityHeader,
		Rows: [][]string{
			{"2024-03-01", "1", "1", "1", "1", "1", "VALE3"},
			{"2024-03-02", "1", "1", "1", "1", "1", "PETR4"},
			{"2024-03-03", "1", "1", "1", "1", "1", "VALE3"},
		},
	}
	got := Tickers(tbl)
	if strings.Join(got, ",") != "PETR4,VALE3" {
		t.Errorf("Tickers: got %v", got)
	}
}

// ════════════════════════════════════════════════════════════════════
// Generator
// ════════════════════════════════════════════════════════════════════

func TestGenerateMissingInputRunsNoRole(t *testing.T) {
	s := seedStore(t, true)
	if err := os.Remove(s.Path(store.FileNews)); err != nil {
		t.Fatal(err)
	}
	provider := &mockProvider{}
	g := NewGenerator(Config{Store: s, Provider: provider})

	_, err := g.Generate(context.Background())
	if !errors.Is(err, ErrMissingInput) {
		t.Fatalf("err: got %v, want ErrMissingInput", err)
	}
	var mie *MissingInputError
	if !errors.As(err, &mie) || len(mie.Files) != 1 || mie.Files[0] != store.FileNews {
		t.Errorf("missing files: %+v", mie)
	}
	if provider.count() != 0 {
		t.Errorf("roles invoked %d times, want 0", provider.count())
	}
	if s.Exists(store.FileReport) {
		t.Error("no report should be written")
	}
}

func TestGenerateWritesFinalStageVerbatim(t *testing.T) {
	s := seedStore(t, true)
	if _, err := s.WriteReport("relatório antigo"); err != nil {
		t.Fatal(err)
	}
	provider := &mockProvider{}
	g := NewGenerator(Config{Store: s, Provider: provider})

	res, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if provider.count() != 3 {
		t.Errorf("provider calls: got %d, want 3", provider.count())
	}
	if res.Tokens != 30 {
		t.Errorf("Tokens: got %d, want 30", res.Tokens)
	}
	raw, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "etapa-3" {
		t.Errorf("report: got %q, want %q", raw, "etapa-3")
	}

	macroTask := provider.calls[0][len(provider.calls[0])-1].Content
	for _, want := range []string{BannerIndicators, "SELIC", "Título: Selic sobe para 11% ao ano", "PETR4"} {
		if !strings.Contains(macroTask, want) {
			t.Errorf("macro task missing %q", want)
		}
	}
}

func TestGenerateHeaderOnlyNewsUsesPlaceholder(t *testing.T) {
	s := seedStore(t, false)
	provider := &mockProvider{}
	if _, err := NewGenerator(Config{Store: s, Provider: provider}).Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	macroTask := provider.calls[0][len(provider.calls[0])-1].Content
	if !strings.Contains(macroTask, NoNewsPlaceholder) {
		t.Error("macro task should carry the no-news placeholder")
	}
}

func TestGenerateStageFailureWritesNothing(t *testing.T) {
	s := seedStore(t, true)
	if _, err := s.WriteReport("relatório antigo"); err != nil {
		t.Fatal(err)
	}
	provider := &mockProvider{reply: func(n int) (*llm.Response, error) {
		if n == 2 {
			return nil, llm.ErrProviderDown
		}
		return &llm.Response{Content: "ok"}, nil
	}}

	_, err := NewGenerator(Config{Store: s, Provider: provider}).Generate(context.Background())
	if !errors.Is(err, llm.ErrProviderDown) {
		t.Fatalf("err: got %v, want ErrProviderDown", err)
	}
	if provider.count() != 2 {
		t.Errorf("provider calls: got %d, want 2", provider.count())
	}
	text, _ := s.ReadReport()
	if text != "relatório antigo" {
		t.Errorf("prior report changed: %q", text)
	}
}

func TestGenerateEmptyText(t *testing.T) {
	s := seedStore(t, true)
	provider := &mockProvider{reply: func(int) (*llm.Response, error) { return &llm.Response{Content: "  "}, nil }}
	_, err := NewGenerator(Config{Store: s, Provider: provider}).Generate(context.Background())
	if !errors.Is(err, ErrEmptyReport) {
		t.Errorf("err: got %v, want ErrEmptyReport", err)
	}
}

func TestGenerateWithoutProvider(t *testing.T) {
	s := seedStore(t, true)
	_, err := NewGenerator(Config{Store: s}).Generate(context.Background())
	if !errors.Is(err, llm.ErrNoAPIKey) {
		t.Errorf("err: got %v, want ErrNoAPIKey", err)
	}
}

// ════════════════════════════════════════════════════════════════════
// Charts
// ════════════════════════════════════════════════════════════════════

func TestSortPointsByDate(t *testing.T) {
	pts := []Point{{day(3), 3}, {day(1), 1}, {day(2), 2}}
	SortPoints(pts)
	for i, want := range []float64{1, 2, 3} {
		if pts[i].Value != want {
			t.Errorf("pts[%d]: got %v, want %v", i, pts[i].Value, want)
		}
	}
}

func TestRenderChartSVG(t *testing.T) {
	pts := []Point{{day(1), 10}, {day(2), 12}, {day(3), 11}}
	for _, style := range []ChartStyle{StyleLine, StyleArea} {
		svg, err := RenderChart("Teste", pts, style)
		if err != nil {
			t.Fatalf("RenderChart(%d): %v", style, err)
		}
		if !strings.Contains(string(svg), "<svg") {
			t.Errorf("style %d: output is not SVG", style)
		}
	}
}

func TestRenderChartTooFewPoints(t *testing.T) {
	if _, err := RenderChart("x", []Point{{day(1), 1}}, StyleLine); !errors.Is(err, ErrNotEnoughPoints) {
		t.Errorf("err: got %v, want ErrNotEnoughPoints", err)
	}
}

// ════════════════════════════════════════════════════════════════════
// Markdown
// ════════════════════════════════════════════════════════════════════

func TestRenderMarkdown(t *testing.T) {
	src := "### Sumário Executivo\n\n| Ticker | Recomendação |\n|---|---|\n| PETR4 | COMPRA |\n\n<script>alert(1)</script>\n"
	html, err := RenderMarkdown(src)
	if err != nil {
		t.Fatalf("RenderMarkdown: %v", err)
	}
	out := string(html)
	for _, want := range []string{"<h3", "Sumário Executivo", "<table>", "<td>PETR4</td>"} {
		if !strings.Contains(out, want) {
			t.Errorf("html missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "<script>") {
		t.Error("raw HTML should not pass through")
	}
}
