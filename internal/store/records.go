package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/mercadobr/pkg/models"
	"github.com/seenimoa/mercadobr/pkg/utils"
)

// ── Indicators ──

// WriteIndicators replaces the indicator table.
func (s *Store) WriteIndicators(recs []models.IndicatorRecord) (string, error) {
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []string{
			r.Date.Format(models.DateLayout),
			r.Value.String(),
			r.Indicator,
			r.CollectedOn.Format(models.DateLayout),
		})
	}
	return s.WriteTable(FileIndicators, IndicatorHeader, rows)
}

// ReadIndicators loads the indicator table. Rows with an unparseable date or
// value are skipped.
func (s *Store) ReadIndicators() ([]models.IndicatorRecord, error) {
	t, err := s.ReadTable(FileIndicators)
	if err != nil {
		return nil, err
	}
	cData, cValor, cInd, cColeta := t.Column("data"), t.Column("valor"), t.Column("indicador"), t.Column("data_coleta")
	if cData < 0 || cValor < 0 || cInd < 0 {
		return nil, fmt.Errorf("%s: missing columns in header %v", FileIndicators, t.Header)
	}

	out := make([]models.IndicatorRecord, 0, len(t.Rows))
	for _, row := range t.Rows {
		d, err := ParseDate(t.Cell(row, cData))
		if err != nil {
			continue
		}
		v, err := decimal.NewFromString(strings.TrimSpace(t.Cell(row, cValor)))
		if err != nil {
			continue
		}
		rec := models.IndicatorRecord{Date: d, Value: v, Indicator: t.Cell(row, cInd)}
		if c, err := ParseDate(t.Cell(row, cColeta)); err == nil {
			rec.CollectedOn = c
		}
		out = append(out, rec)
	}
	return out, nil
}

// ── Equities ──

// WriteEquities replaces the equity table. The first column is the
// unnamed date index.
func (s *Store) WriteEquities(bars []models.EquityBar) (string, error) {
	rows := make([][]string, 0, len(bars))
	for _, b := range bars {
		rows = append(rows, []string{
			b.Date.Format(models.DateLayout),
			b.Open.String(),
			b.High.String(),
			b.Low.String(),
			b.Close.String(),
			b.Volume.String(),
			b.Ticker,
		})
	}
	return s.WriteTable(FileEquities, EquityHeader, rows)
}

// DateColumnCandidates are the headers accepted as the date column of the
// equity table, in priority order.
var DateColumnCandidates = []string{"", "Unnamed: 0", "data", "Data", "Date", "date"}

// DateColumn returns the index of the first candidate column whose values
// parse as dates. When no candidate has a parseable value, the first
// candidate present wins; -1 means none is present.
func DateColumn(t *Table) int {
	first := -1
	for _, name := range DateColumnCandidates {
		i := t.Column(name)
		if i < 0 {
			continue
		}
		if first < 0 {
			first = i
		}
		for _, row := range t.Rows {
			if _, err := ParseDate(t.Cell(row, i)); err == nil {
				return i
			}
		}
	}
	return first
}

// ReadEquities loads the equity table. Rows with an unparseable date or
// price are skipped.
func (s *Store) ReadEquities() ([]models.EquityBar, error) {
	t, err := s.ReadTable(FileEquities)
	if err != nil {
		return nil, err
	}
	cDate := DateColumn(t)
	cols := []int{t.Column("abertura"), t.Column("alta"), t.Column("baixa"), t.Column("fechamento"), t.Column("volume")}
	cTicker := t.Column("ticker")
	if cDate < 0 || cTicker < 0 {
		return nil, fmt.Errorf("%s: missing date or ticker column in header %v", FileEquities, t.Header)
	}

	out := make([]models.EquityBar, 0, len(t.Rows))
rows:
	for _, row := range t.Rows {
		d, err := ParseDate(t.Cell(row, cDate))
		if err != nil {
			continue
		}
		var vals [5]decimal.Decimal
		for i, c := range cols {
			if c < 0 {
				continue
			}
			v, err := decimal.NewFromString(strings.TrimSpace(t.Cell(row, c)))
			if err != nil {
				continue rows
			}
			vals[i] = v
		}
		out = append(out, models.EquityBar{
			Date: d, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4],
			Ticker: t.Cell(row, cTicker),
		})
	}
	return out, nil
}

// ── News ──

// WriteNews replaces the news table.
func (s *Store) WriteNews(items []models.NewsItem) (string, error) {
	rows := make([][]string, 0, len(items))
	for _, n := range items {
		rows = append(rows, []string{n.Title, n.Link, n.Source, n.CollectedAt.Format(models.TimestampLayout)})
	}
	return s.WriteTable(FileNews, NewsHeader, rows)
}

// ReadNews loads the news table in file order.
func (s *Store) ReadNews() ([]models.NewsItem, error) {
	t, err := s.ReadTable(FileNews)
	if err != nil {
		return nil, err
	}
	cTitle, cLink, cSrc, cAt := t.Column("titulo"), t.Column("link"), t.Column("fonte"), t.Column("data_coleta")
	if cTitle < 0 {
		return nil, fmt.Errorf("%s: missing titulo column in header %v", FileNews, t.Header)
	}
	out := make([]models.NewsItem, 0, len(t.Rows))
	for _, row := range t.Rows {
		item := models.NewsItem{
			Title:  t.Cell(row, cTitle),
			Link:   t.Cell(row, cLink),
			Source: t.Cell(row, cSrc),
		}
		if at, err := time.ParseInLocation(models.TimestampLayout, t.Cell(row, cAt), utils.BRT); err == nil {
			item.CollectedAt = at
		}
		out = append(out, item)
	}
	return out, nil
}

// IsMissingOrEmpty reports whether err means the artifact has nothing to show.
func IsMissingOrEmpty(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrEmpty) || errors.Is(err, ErrNoData)
}

// ParseDate accepts ISO dates, ISO timestamps and dd/mm/yyyy.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{models.DateLayout, "2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return utils.ParseBRDate(s)
}
