// Package utils provides time and number formatting helpers for the
// Brazilian market.
package utils

import (
	"fmt"
	"strings"
	"time"
)

// BRT is the São Paulo location used for collection dates and the
// dashboard clock.
var BRT *time.Location

func init() {
	var err error
	BRT, err = time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		// Fallback: fixed zone if the tz database is not available
		BRT = time.FixedZone("BRT", -3*60*60)
	}
}

// NowBRT returns the current time in São Paulo.
func NowBRT() time.Time {
	return time.Now().In(BRT)
}

// IsTradingDay reports whether B3 trades on t. Only weekends are excluded.
func IsTradingDay(t time.Time) bool {
	wd := t.In(BRT).Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// ParseBRDate parses a "dd/mm/yyyy" date as served by the central bank.
func ParseBRDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation("02/01/2006", strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// FormatBRDateTime formats t as "dd/mm/yyyy HH:MM:SS" in São Paulo time.
func FormatBRDateTime(t time.Time) string {
	return t.In(BRT).Format("02/01/2006 15:04:05")
}
