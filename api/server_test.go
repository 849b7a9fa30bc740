package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/seenimoa/mercadobr/internal/agent"
	"github.com/seenimoa/mercadobr/internal/config"
	"github.com/seenimoa/mercadobr/internal/llm"
	"github.com/seenimoa/mercadobr/internal/store"
	"github.com/seenimoa/mercadobr/pkg/models"
	"github.com/seenimoa/mercadobr/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

type mockProvider struct {
	mu    sync.Mutex
	calls [][]llm.Message
	fail  error
}

func (m *mockProvider) Name() string               { return "mock" }
func (m *mockProvider) Models() []string           { return []string{"mock"} }
func (m *mockProvider) Ping(context.Context) error { return nil }

func (m *mockProvider) Chat(_ context.Context, msgs []llm.Message, _ []llm.Tool, _ *llm.ChatOptions) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	m.calls = append(m.calls, msgs)
	return &llm.Response{Content: fmt.Sprintf("resposta-%d", len(m.calls))}, nil
}

// blockingProvider holds every answer until release is closed.
type blockingProvider struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingProvider() *blockingProvider {
	return &blockingProvider{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingProvider) Name() string               { return "blocking" }
func (b *blockingProvider) Models() []string           { return []string{"blocking"} }
func (b *blockingProvider) Ping(context.Context) error { return nil }

func (b *blockingProvider) Chat(ctx context.Context, _ []llm.Message, _ []llm.Tool, _ *llm.ChatOptions) (*llm.Response, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
		return &llm.Response{Content: "liberada"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var fixedNow = time.Date(2024, 3, 5, 10, 0, 0, 0, utils.BRT)

func day(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }

func testServer(t *testing.T, st *store.Store, provider llm.LLMProvider) *Server {
	t.Helper()
	var chat *agent.Chat
	if provider != nil {
		chat = agent.NewChat(agent.ChatConfig{Provider: provider})
	}
	srv, err := NewServer(Options{
		Store:     st,
		Chat:      chat,
		Dashboard: config.DashboardConfig{NewsLimit: 10},
		Now:       func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	go srv.wsHub.Run()
	t.Cleanup(srv.wsHub.Stop)
	return srv
}

func seedStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(t.TempDir())
	bar := func(d int, close int64, ticker string) models.EquityBar {
		c := decimal.NewFromInt(close)
		return models.EquityBar{Date: day(d), Open: c, High: c, Low: c, Close: c, Volume: decimal.NewFromInt(1000), Ticker: ticker}
	}
	if _, err := s.WriteEquities([]models.EquityBar{
		bar(2, 37, "PETR4"), bar(1, 36, "PETR4"), bar(3, 38, "PETR4"),
		bar(1, 60, "VALE3"),
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.WriteIndicators([]models.IndicatorRecord{
		{Date: day(1), Value: decimal.RequireFromString("10.75"), Indicator: "SELIC", CollectedOn: day(5)},
		{Date: day(2), Value: decimal.RequireFromString("10.50"), Indicator: "SELIC", CollectedOn: day(5)},
		{Date: day(1), Value: decimal.RequireFromString("5.01"), Indicator: "DÓLAR", CollectedOn: day(5)},
		{Date: day(2), Value: decimal.RequireFromString("5.03"), Indicator: "DÓLAR", CollectedOn: day(5)},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.WriteNews([]models.NewsItem{
		{Title: "Selic sobe para 11% ao ano", Link: "https://g1.globo.com/economia/selic", Source: "G1", CollectedAt: fixedNow},
		{Title: "Ibovespa fecha em alta com Petrobras", Link: "", Source: "", CollectedAt: fixedNow},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.WriteReport("# Relatório\n\n## Sumário Executivo\n\nCompra de **PETR4**.\n"); err != nil {
		t.Fatal(err)
	}
	return s
}

func do(t *testing.T, srv *Server, method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

// decodeData re-decodes the envelope's data into v.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Fatalf("unexpected failure: %s", resp.Error)
	}
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}

// ════════════════════════════════════════════════════════════════════
// Placeholders and loader
// ════════════════════════════════════════════════════════════════════

func TestPlaceholder(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("x: %w", store.ErrNotFound), "Arquivo x.csv não encontrado."},
		{fmt.Errorf("x: %w", store.ErrNoData), "Arquivo x.csv está vazio."},
		{fmt.Errorf("x: %w", store.ErrEmpty), "Arquivo x.csv não contém dados para parsear."},
		{errors.New("boom"), "Erro ao carregar x.csv: boom"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := Placeholder("x.csv", tt.err); got != tt.want {
			t.Errorf("Placeholder(%v): got %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestLoaderCachesUntilFileChanges(t *testing.T) {
	st := store.New(t.TempDir())
	if _, err := st.WriteTable(store.FileNews, store.NewsHeader, [][]string{{"a", "b", "c", "d"}}); err != nil {
		t.Fatal(err)
	}
	l := NewLoader(st, time.Hour, nil)

	first, err := l.Table(store.FileNews)
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	again, _ := l.Table(store.FileNews)
	if first != again {
		t.Error("unchanged file should be served from the cache")
	}

	if _, err := st.WriteTable(store.FileNews, store.NewsHeader, [][]string{{"a", "b", "c", "d"}, {"e", "f", "g", "h"}}); err != nil {
		t.Fatal(err)
	}
	changed, err := l.Table(store.FileNews)
	if err != nil {
		t.Fatal(err)
	}
	if len(changed.Rows) != 2 {
		t.Errorf("rows after rewrite: got %d, want 2", len(changed.Rows))
	}

	if err := os.Remove(st.Path(store.FileNews)); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Table(store.FileNews); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("after delete: got %v, want ErrNotFound", err)
	}
}

func TestLoaderTickerSeries(t *testing.T) {
	l := NewLoader(seedStore(t), 0, nil)

	v := l.Ticker("PETR4")
	if v.Message != "" {
		t.Fatalf("unexpected message %q", v.Message)
	}
	if len(v.Points) != 3 || v.Points[0].Value != 36 || v.Points[2].Value != 38 {
		t.Errorf("points not sorted by date: %+v", v.Points)
	}
	if v.Header[0] != "data" {
		t.Errorf("date index header: got %q, want %q", v.Header[0], "data")
	}
	if v.Title != "Preço de Fechamento — PETR4" {
		t.Errorf("title: got %q", v.Title)
	}
	want := "Último fechamento (03/03/2024): R$ 38,00 (+2,70%) · Volume 1,00 mil"
	if v.Summary != want {
		t.Errorf("summary: got %q, want %q", v.Summary, want)
	}
	if l.Ticker("VALE3").Chartable() {
		t.Error("single bar should not be chartable")
	}
	if msg := l.Ticker("ITUB4").Message; msg != "Não há dados para o ticker 'ITUB4'." {
		t.Errorf("unknown ticker: got %q", msg)
	}
}

func TestLoaderTickerWithoutDateColumn(t *testing.T) {
	st := store.New(t.TempDir())
	if _, err := st.WriteTable(store.FileEquities, []string{"fechamento", "ticker"}, [][]string{{"10", "PETR4"}}); err != nil {
		t.Fatal(err)
	}
	v := NewLoader(st, 0, nil).Ticker("PETR4")
	if !strings.HasPrefix(v.Message, "Não foi possível identificar a coluna de data") {
		t.Errorf("got %q", v.Message)
	}
}

func TestLoaderIndicators(t *testing.T) {
	l := NewLoader(seedStore(t), 0, nil)
	names := l.Indicators().Names
	if strings.Join(names, ",") != "DÓLAR,SELIC" {
		t.Errorf("names: got %v", names)
	}
	v := l.Indicator("SELIC")
	if len(v.Points) != 2 || v.Points[0].Value != 10.75 {
		t.Errorf("points: %+v", v.Points)
	}
	if v.Title != "SELIC — últimos registros" {
		t.Errorf("title: got %q", v.Title)
	}
}

func TestLoaderIndicatorsMissingColumns(t *testing.T) {
	st := store.New(t.TempDir())
	if _, err := st.WriteTable(store.FileIndicators, []string{"data", "valor"}, [][]string{{"2024-03-01", "1"}}); err != nil {
		t.Fatal(err)
	}
	want := "O arquivo indicadores_economicos.csv deve conter as colunas: data, valor, indicador."
	if got := NewLoader(st, 0, nil).Indicators().Message; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLoaderNews(t *testing.T) {
	v := NewLoader(seedStore(t), 0, nil).News(10)
	if len(v.Items) != 2 {
		t.Fatalf("items: got %d, want 2", len(v.Items))
	}
	if v.Items[0].Link == "" || v.Items[0].Source != "G1" {
		t.Errorf("first item: %+v", v.Items[0])
	}
	if v.Items[1].Link != "" || v.Items[1].Source != "Não informado" {
		t.Errorf("second item: %+v", v.Items[1])
	}
}

func TestLoaderNewsLimitAndFallback(t *testing.T) {
	st := store.New(t.TempDir())
	rows := make([][]string, 15)
	for i := range rows {
		rows[i] = []string{fmt.Sprintf("manchete %d", i), "x"}
	}
	if _, err := st.WriteTable(store.FileNews, []string{"headline", "fonte"}, rows); err != nil {
		t.Fatal(err)
	}
	v := NewLoader(st, 0, nil).News(10)
	if len(v.Rows) != 10 || len(v.Items) != 0 {
		t.Errorf("fallback rows: got %d rows, %d items", len(v.Rows), len(v.Items))
	}
	if !strings.HasPrefix(v.Message, "Colunas 'titulo' e 'link' não encontradas") {
		t.Errorf("message: %q", v.Message)
	}
}

func TestLoaderReport(t *testing.T) {
	l := NewLoader(seedStore(t), 0, nil)
	v := l.Report()
	if v.Message != "" || !strings.Contains(string(v.HTML), "<strong>PETR4</strong>") {
		t.Errorf("report view: %+v", v)
	}
	if got := NewLoader(store.New(t.TempDir()), 0, nil).Report().Message; got != ReportMissingMessage {
		t.Errorf("missing report: got %q", got)
	}
}

// ════════════════════════════════════════════════════════════════════
// Health and dashboard page
// ════════════════════════════════════════════════════════════════════

func TestHealth(t *testing.T) {
	srv := testServer(t, seedStore(t), nil)
	rec := do(t, srv, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var data struct {
		Status string          `json:"status"`
		Chat   bool            `json:"chat"`
		Files  map[string]bool `json:"files"`
		Time   string          `json:"time_brt"`
	}
	decodeData(t, rec, &data)
	if data.Status != "ok" || data.Chat || !data.Files[store.FileReport] {
		t.Errorf("health: %+v", data)
	}
	if data.Time != "05/03/2024 10:00:00" {
		t.Errorf("time: got %q", data.Time)
	}
}

func TestDashboardPageWithoutArtifacts(t *testing.T) {
	srv := testServer(t, store.New(t.TempDir()), nil)
	rec := do(t, srv, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard must not fail without data: status %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		ReportMissingMessage,
		"Arquivo top_10_acoes.csv não encontrado.",
		"Arquivo indicadores_economicos.csv não encontrado.",
		"Arquivo noticias_investimentos.csv não encontrado.",
		"O modelo de chat não está configurado.",
		"Painel atualizado em: 05/03/2024 10:00:00",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestDashboardPageEmptyFiles(t *testing.T) {
	st := store.New(t.TempDir())
	if _, err := st.WriteTable(store.FileEquities, store.EquityHeader, nil); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(st.Path(store.FileIndicators), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	body := do(t, testServer(t, st, nil), http.MethodGet, "/", "").Body.String()
	if !strings.Contains(body, "Arquivo top_10_acoes.csv está vazio.") {
		t.Error("header-only file should read as empty")
	}
	if !strings.Contains(body, "Arquivo indicadores_economicos.csv não contém dados para parsear.") {
		t.Error("zero-byte file should read as unparseable")
	}
}

func TestDashboardPageWithData(t *testing.T) {
	srv := testServer(t, seedStore(t), &mockProvider{})
	rec := do(t, srv, http.MethodGet, "/?ticker=PETR4&indicador=D%C3%93LAR", "")
	body := rec.Body.String()
	for _, want := range []string{
		`src="/api/v1/equities/PETR4/chart.svg"`,
		`src="/api/v1/indicators/D%C3%93LAR/chart.svg"`,
		"Selic sobe para 11% ao ano",
		"Ler notícia completa",
		"Fonte: G1",
		"Link não disponível.",
		"Digite sua pergunta",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	sessionCookie(t, rec)
}

// ════════════════════════════════════════════════════════════════════
// JSON views and charts
// ════════════════════════════════════════════════════════════════════

func TestEquitiesEndpoints(t *testing.T) {
	srv := testServer(t, seedStore(t), nil)

	var eq EquitiesView
	decodeData(t, do(t, srv, http.MethodGet, "/api/v1/equities", ""), &eq)
	if strings.Join(eq.Tickers, ",") != "PETR4,VALE3" {
		t.Errorf("tickers: got %v", eq.Tickers)
	}

	var series SeriesView
	decodeData(t, do(t, srv, http.MethodGet, "/api/v1/equities/PETR4", ""), &series)
	if series.Count != 3 || len(series.Rows) != 3 {
		t.Errorf("series: %+v", series)
	}
}

func TestEquitiesPlaceholderIsNotAnError(t *testing.T) {
	srv := testServer(t, store.New(t.TempDir()), nil)
	rec := do(t, srv, http.MethodGet, "/api/v1/equities", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var eq EquitiesView
	decodeData(t, rec, &eq)
	if eq.Message != "Arquivo top_10_acoes.csv não encontrado." || len(eq.Tickers) != 0 {
		t.Errorf("got %+v", eq)
	}
}

func TestChartEndpoints(t *testing.T) {
	srv := testServer(t, seedStore(t), nil)

	rec := do(t, srv, http.MethodGet, "/api/v1/equities/PETR4/chart.svg", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("content type: got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "<svg") {
		t.Error("body is not svg")
	}

	rec = do(t, srv, http.MethodGet, "/api/v1/indicators/"+url.PathEscape("DÓLAR")+"/chart.svg", "")
	if rec.Code != http.StatusOK {
		t.Errorf("escaped indicator chart: got %d", rec.Code)
	}

	if rec := do(t, srv, http.MethodGet, "/api/v1/equities/VALE3/chart.svg", ""); rec.Code != http.StatusNotFound {
		t.Errorf("single point chart: got %d, want 404", rec.Code)
	}
}

func TestNewsAndReportEndpoints(t *testing.T) {
	srv := testServer(t, seedStore(t), nil)

	var news NewsView
	decodeData(t, do(t, srv, http.MethodGet, "/api/v1/news", ""), &news)
	if len(news.Items) != 2 || news.Items[0].Title != "Selic sobe para 11% ao ano" {
		t.Errorf("news: %+v", news)
	}

	var rep ReportView
	decodeData(t, do(t, srv, http.MethodGet, "/api/v1/report", ""), &rep)
	if !strings.HasPrefix(rep.Markdown, "# Relatório") || rep.HTML == "" {
		t.Errorf("report: %+v", rep)
	}
}

func TestDashboardJSONSelectsFirst(t *testing.T) {
	srv := testServer(t, seedStore(t), nil)
	var v DashboardView
	decodeData(t, do(t, srv, http.MethodGet, "/api/v1/dashboard", ""), &v)
	if v.Ticker.Name != "PETR4" || v.Indicator.Name != "DÓLAR" {
		t.Errorf("default selection: ticker %q indicator %q", v.Ticker.Name, v.Indicator.Name)
	}
	if v.ChatEnabled || v.ChatWarning != agent.ChatDisabledMessage {
		t.Errorf("chat state: %v %q", v.ChatEnabled, v.ChatWarning)
	}
}

// ════════════════════════════════════════════════════════════════════
// Chat
// ════════════════════════════════════════════════════════════════════

func TestChatDisabled(t *testing.T) {
	srv := testServer(t, seedStore(t), nil)
	rec := do(t, srv, http.MethodPost, "/api/v1/chat", `{"pergunta":"Como está a Selic?"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want 503", rec.Code)
	}
	if resp := decodeResponse(t, rec); resp.Error != agent.ChatDisabledMessage {
		t.Errorf("error: got %q", resp.Error)
	}
}

func TestChatValidation(t *testing.T) {
	srv := testServer(t, seedStore(t), &mockProvider{})
	if rec := do(t, srv, http.MethodPost, "/api/v1/chat", `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad body: got %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodPost, "/api/v1/chat", `{"pergunta":"  "}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty question: got %d", rec.Code)
	}
}

func TestChatSessionHistory(t *testing.T) {
	provider := &mockProvider{}
	srv := testServer(t, seedStore(t), provider)

	rec := do(t, srv, http.MethodPost, "/api/v1/chat", `{"pergunta":"Como está a Selic?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d: %s", rec.Code, rec.Body.String())
	}
	cookie := sessionCookie(t, rec)
	var first ChatResponse
	decodeData(t, rec, &first)
	if first.Answer != "resposta-1" || len(first.History) != 1 {
		t.Errorf("first answer: %+v", first)
	}

	rec = do(t, srv, http.MethodPost, "/api/v1/chat", `{"pergunta":"E o IPCA?"}`, cookie)
	var second ChatResponse
	decodeData(t, rec, &second)
	if len(second.History) != 2 || second.History[0].Question != "Como está a Selic?" {
		t.Errorf("second history: %+v", second.History)
	}
	// system + prior pair + new question
	if got := len(provider.calls[1]); got != 4 {
		t.Errorf("replayed messages: got %d, want 4", got)
	}

	var hist []agent.Exchange
	decodeData(t, do(t, srv, http.MethodGet, "/api/v1/chat/history", "", cookie), &hist)
	if len(hist) != 2 {
		t.Errorf("history: got %d exchanges", len(hist))
	}

	do(t, srv, http.MethodDelete, "/api/v1/chat/history", "", cookie)
	decodeData(t, do(t, srv, http.MethodGet, "/api/v1/chat/history", "", cookie), &hist)
	if len(hist) != 0 {
		t.Errorf("after reset: got %d exchanges", len(hist))
	}
}

func TestChatFailureKeepsHistory(t *testing.T) {
	provider := &mockProvider{fail: errors.New("upstream down")}
	srv := testServer(t, seedStore(t), provider)
	rec := do(t, srv, http.MethodPost, "/api/v1/chat", `{"pergunta":"Como está a Selic?"}`)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status: got %d, want 502", rec.Code)
	}
	if h := srv.chat.History(sessionCookie(t, rec).Value); len(h) != 0 {
		t.Errorf("failed question must not be recorded: %+v", h)
	}
}

func TestChatForm(t *testing.T) {
	srv := testServer(t, seedStore(t), &mockProvider{})
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(url.Values{"pergunta": {"Como está a Selic?"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "Resposta do Agente") || !strings.Contains(body, "resposta-1") {
		t.Error("answer not rendered")
	}
	if !strings.Contains(body, "<strong>Você:</strong> Como está a Selic?") {
		t.Error("history not rendered")
	}
}

// ════════════════════════════════════════════════════════════════════
// WebSocket
// ════════════════════════════════════════════════════════════════════

func TestWebSocketChat(t *testing.T) {
	srv := testServer(t, seedStore(t), &mockProvider{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	header := http.Header{}
	header.Set("Cookie", SessionCookie+"=sessao-ws")
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/ws/chat", header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(WSMessage{Type: "chat", Data: "Como está a Selic?"}); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var reply struct {
		Type string       `json:"type"`
		Data ChatResponse `json:"data"`
	}
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	if reply.Type != "answer" || reply.Data.Answer != "resposta-1" {
		t.Errorf("reply: %+v", reply)
	}
	if h := srv.chat.History("sessao-ws"); len(h) != 1 {
		t.Errorf("session history: got %d", len(h))
	}
}

func TestWebSocketReadsWhileAnswering(t *testing.T) {
	provider := newBlockingProvider()
	srv := testServer(t, seedStore(t), provider)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	header := http.Header{}
	header.Set("Cookie", SessionCookie+"=sessao-lenta")
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/ws/chat", header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(WSMessage{Type: "chat", Data: "Vale comprar PETR4?"}); err != nil {
		t.Fatal(err)
	}
	select {
	case <-provider.started:
	case <-time.After(5 * time.Second):
		t.Fatal("question never reached the model")
	}

	if err := conn.WriteJSON(WSMessage{Type: "ping"}); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "pong" {
		t.Fatalf("got %q, want %q while the answer is pending", msg.Type, "pong")
	}

	close(provider.release)
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	var reply ChatResponse
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		t.Fatal(err)
	}
	if msg.Type != "answer" || reply.Answer != "liberada" {
		t.Errorf("got %q %q, want answer %q", msg.Type, reply.Answer, "liberada")
	}
}

func TestWSHubBroadcast(t *testing.T) {
	hub := NewWSHub(nil)
	go hub.Run()
	defer hub.Stop()

	client := &WSClient{hub: hub, send: make(chan WSMessage, 1)}
	hub.Register(client)
	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatal("client not registered")
	}

	hub.Broadcast(WSMessage{Type: "refresh", Data: "report"})
	select {
	case msg := <-client.send:
		if msg.Type != "refresh" {
			t.Errorf("type: got %q", msg.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("broadcast not delivered")
	}

	hub.Unregister(client)
	deadline = time.Now().Add(time.Second)
	for hub.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ClientCount() != 0 {
		t.Error("client not removed")
	}
}
