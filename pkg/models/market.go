// Package models defines the records exchanged between the collectors, the
// flat-file store, the report generator and the dashboard.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Indicator names as they appear in the indicator table.
const (
	IndicatorIPCA        = "IPCA"
	IndicatorSELIC       = "SELIC"
	IndicatorPIB         = "PIB"
	IndicatorDolar       = "DÓLAR"
	IndicatorCommodities = "COMMODITIES"
	IndicatorIGPM        = "IGP-M"
)

// IndicatorRecord is one observation of a central-bank series.
type IndicatorRecord struct {
	Date        time.Time       `json:"data"`
	Value       decimal.Decimal `json:"valor"`
	Indicator   string          `json:"indicador"`
	CollectedOn time.Time       `json:"data_coleta"` // date only
}

// EquityBar is one daily OHLCV bar.
type EquityBar struct {
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"abertura"`
	High   decimal.Decimal `json:"alta"`
	Low    decimal.Decimal `json:"baixa"`
	Close  decimal.Decimal `json:"fechamento"`
	Volume decimal.Decimal `json:"volume"`
	Ticker string          `json:"ticker"` // without exchange suffix, e.g. "PETR4"
}

// NewsItem is a headline link that matched the keyword filter.
type NewsItem struct {
	Title       string    `json:"titulo"`
	Link        string    `json:"link"`
	Source      string    `json:"fonte"`
	CollectedAt time.Time `json:"data_coleta"`
}

// Key returns the (title, link) identity used for deduplication.
func (n NewsItem) Key() string {
	return n.Title + "\x00" + n.Link
}

// DateLayout is the ISO date layout used in every table.
const DateLayout = "2006-01-02"

// TimestampLayout is the collection timestamp layout of the news table.
const TimestampLayout = "2006-01-02 15:04:05"
