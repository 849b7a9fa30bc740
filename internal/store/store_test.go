package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/mercadobr/pkg/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ── Tables ──

func TestWriteTableHasBOM(t *testing.T) {
	s := New(t.TempDir())
	path, err := s.WriteTable("x.csv", []string{"a", "b"}, [][]string{{"1", "2"}})
	if err != nil {
		t.Fatalf("WriteTable: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}) {
		t.Errorf("missing UTF-8 BOM: % x", raw[:3])
	}
	if string(raw[3:]) != "a,b\n1,2\n" {
		t.Errorf("content: got %q", raw[3:])
	}
}

func TestReadTableErrors(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	if _, err := s.ReadTable("nope.csv"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing file: got %v, want ErrNotFound", err)
	}

	os.WriteFile(filepath.Join(dir, "empty.csv"), []byte("\ufeff  \n"), 0o644)
	if _, err := s.ReadTable("empty.csv"); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty file: got %v, want ErrEmpty", err)
	}

	os.WriteFile(filepath.Join(dir, "header.csv"), []byte("a,b\n"), 0o644)
	tbl, err := s.ReadTable("header.csv")
	if !errors.Is(err, ErrNoData) {
		t.Errorf("header only: got %v, want ErrNoData", err)
	}
	if tbl == nil || len(tbl.Header) != 2 {
		t.Errorf("header only should still return the header, got %+v", tbl)
	}
	if !IsMissingOrEmpty(err) {
		t.Error("IsMissingOrEmpty(ErrNoData) should be true")
	}
}

func TestMissing(t *testing.T) {
	s := New(t.TempDir())
	s.WriteReport("# r")
	got := s.Missing(FileIndicators, FileReport, FileNews)
	if len(got) != 2 || got[0] != FileIndicators || got[1] != FileNews {
		t.Errorf("Missing: got %v", got)
	}
}

// ── Indicators ──

func TestIndicatorsRoundTrip(t *testing.T) {
	s := New(t.TempDir())
	recs := []models.IndicatorRecord{
		{Date: day(2024, 1, 1), Value: decimal.RequireFromString("10.75"), Indicator: "SELIC", CollectedOn: day(2024, 5, 1)},
		{Date: day(2024, 2, 1), Value: decimal.RequireFromString("0.42"), Indicator: "IPCA", CollectedOn: day(2024, 5, 1)},
	}
	if _, err := s.WriteIndicators(recs); err != nil {
		t.Fatalf("WriteIndicators: %v", err)
	}
	got, err := s.ReadIndicators()
	if err != nil {
		t.Fatalf("ReadIndicators: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("rows: got %d, want 2", len(got))
	}
	if !got[0].Value.Equal(decimal.RequireFromString("10.75")) || got[0].Indicator != "SELIC" {
		t.Errorf("row 0: got %+v", got[0])
	}
	if !got[1].CollectedOn.Equal(day(2024, 5, 1)) {
		t.Errorf("CollectedOn: got %v", got[1].CollectedOn)
	}
}

func TestReadIndicatorsSkipsBadRows(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, FileIndicators),
		[]byte("data,valor,indicador,data_coleta\n01/03/2024,5.1,DÓLAR,2024-03-02\n2024-03-01,abc,IPCA,2024-03-02\nnot-a-date,1,PIB,2024-03-02\n"), 0o644)
	got, err := New(dir).ReadIndicators()
	if err != nil {
		t.Fatalf("ReadIndicators: %v", err)
	}
	if len(got) != 1 || got[0].Indicator != "DÓLAR" || !got[0].Date.Equal(day(2024, 3, 1)) {
		t.Errorf("got %+v", got)
	}
}

// ── Equities ──

func TestEquitiesRoundTrip(t *testing.T) {
	s := New(t.TempDir())
	bars := []models.EquityBar{{
		Date:   day(2024, 3, 1),
		Open:   decimal.RequireFromString("38.10"),
		High:   decimal.RequireFromString("38.90"),
		Low:    decimal.RequireFromString("37.95"),
		Close:  decimal.RequireFromString("38.47"),
		Volume: decimal.RequireFromString("41234500"),
		Ticker: "PETR4",
	}}
	if _, err := s.WriteEquities(bars); err != nil {
		t.Fatalf("WriteEquities: %v", err)
	}
	tbl, err := s.ReadTable(FileEquities)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Header[0] != "" || DateColumn(tbl) != 0 {
		t.Errorf("date index column: header %q", tbl.Header)
	}
	got, err := s.ReadEquities()
	if err != nil {
		t.Fatalf("ReadEquities: %v", err)
	}
	if len(got) != 1 || got[0].Ticker != "PETR4" || !got[0].Close.Equal(bars[0].Close) {
		t.Errorf("got %+v", got)
	}
}

func TestDateColumnFallbacks(t *testing.T) {
	for _, h := range []string{"Unnamed: 0", "data", "Data", "Date"} {
		tbl := &Table{Header: []string{"ticker", h, "fechamento"}}
		if DateColumn(tbl) != 1 {
			t.Errorf("DateColumn with header %q: got %d, want 1", h, DateColumn(tbl))
		}
	}
	if DateColumn(&Table{Header: []string{"ticker"}}) != -1 {
		t.Error("expected -1 without a date column")
	}
}

func TestDateColumnPrefersParseableValues(t *testing.T) {
	tbl := &Table{
		Header: []string{"", "Date", "fechamento"},
		Rows:   [][]string{{"0", "2024-05-02", "38.47"}, {"1", "2024-05-03", "38.90"}},
	}
	if got := DateColumn(tbl); got != 1 {
		t.Errorf("DateColumn: got %d, want 1", got)
	}
}

// ── News ──

func TestNewsRoundTrip(t *testing.T) {
	s := New(t.TempDir())
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	items := []models.NewsItem{
		{Title: "Selic sobe para 11%, diz Copom", Link: "https://g1.globo.com/a", Source: "G1 Economia", CollectedAt: at},
	}
	if _, err := s.WriteNews(items); err != nil {
		t.Fatalf("WriteNews: %v", err)
	}
	got, err := s.ReadNews()
	if err != nil {
		t.Fatalf("ReadNews: %v", err)
	}
	if len(got) != 1 || got[0].Title != items[0].Title || got[0].Source != "G1 Economia" {
		t.Errorf("got %+v", got)
	}
	if got[0].CollectedAt.Format(models.TimestampLayout) != "2024-03-01 09:30:00" {
		t.Errorf("CollectedAt: got %v", got[0].CollectedAt)
	}
}

// ── Report ──

func TestReport(t *testing.T) {
	s := New(t.TempDir())
	if _, err := s.ReadReport(); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing report: got %v", err)
	}
	if _, err := s.WriteReport("# Relatório\n"); err != nil {
		t.Fatal(err)
	}
	text, err := s.ReadReport()
	if err != nil || text != "# Relatório\n" {
		t.Errorf("ReadReport: got %q, %v", text, err)
	}
	if _, err := s.WriteReport("   "); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ReadReport(); !errors.Is(err, ErrEmpty) {
		t.Errorf("blank report: got %v, want ErrEmpty", err)
	}
}
