package alphavantage

import "encoding/json"

// Top-level keys of a TIME_SERIES_DAILY response.
const (
	keyTimeSeries  = "Time Series (Daily)"
	keyNote        = "Note"
	keyInformation = "Information"
)

// dailyEntry is one day of "Time Series (Daily)".
// Example: {"1. open": "38.10", "2. high": "38.90", "3. low": "37.95", "4. close": "38.47", "5. volume": "41234500"}
type dailyEntry struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// dailyResponse keeps every top-level key raw so soft errors can be told
// apart from a missing series.
type dailyResponse map[string]json.RawMessage
