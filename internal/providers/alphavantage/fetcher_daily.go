package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/seenimoa/mercadobr/internal/provider"
	"github.com/seenimoa/mercadobr/pkg/models"
)

// SoftError is an Alpha Vantage notice delivered with HTTP 200, such as the
// rate-limit "Note" or an "Information" message.
type SoftError struct {
	Key     string
	Message string
}

func (e *SoftError) Error() string {
	return fmt.Sprintf("alpha vantage %s: %s", strings.ToLower(e.Key), e.Message)
}

// MissingSeriesError reports a 200 response without the daily series. Body
// holds the raw response for diagnosis.
type MissingSeriesError struct {
	Body string
}

func (e *MissingSeriesError) Error() string {
	return fmt.Sprintf("response has no %q key", keyTimeSeries)
}

// HTTPError is a non-200 status after any retry.
type HTTPError struct {
	StatusCode int
	Retried    bool
}

func (e *HTTPError) Error() string {
	if e.Retried {
		return fmt.Sprintf("HTTP %d after retry", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Collect fetches the latest bars of every configured ticker, pausing
// between tickers. A ticker that fails is recorded as skipped.
func (p *Provider) Collect(ctx context.Context) ([]models.EquityBar, *models.CollectionReport) {
	report := models.NewCollectionReport(providerName)
	if p.apiKey == "" {
		err := &provider.ErrInvalidCredentials{Provider: providerName, Detail: "missing required credential: " + credAPIKey}
		p.log.Error().Err(err).Msg("cannot collect equities")
		report.Fail(err)
		return nil, report
	}

	var all []models.EquityBar
	for i, ticker := range p.tickers {
		if i > 0 {
			if err := p.sleep(ctx, p.pause); err != nil {
				for _, rest := range p.tickers[i:] {
					report.Skip(rest, err.Error())
				}
				break
			}
		}

		p.log.Info().Str("ticker", ticker).Str("symbol", p.Symbol(ticker)).Msg("collecting daily bars")
		bars, err := p.FetchDaily(ctx, ticker)
		if err != nil {
			ev := p.log.Warn().Err(err).Str("ticker", ticker)
			var ms *MissingSeriesError
			if errors.As(err, &ms) {
				ev = ev.Str("body", ms.Body)
			}
			ev.Msg("ticker skipped")
			report.Skip(ticker, err.Error())
			continue
		}
		if len(bars) == 0 {
			p.log.Warn().Str("ticker", ticker).Msg("empty series")
			report.Skip(ticker, "empty series")
			continue
		}
		p.log.Info().Str("ticker", ticker).Int("rows", len(bars)).Msg("ticker collected")
		all = append(all, bars...)
		report.OK(ticker, len(bars))
	}

	report.Finish()
	return all, report
}

// FetchDaily returns the latest N bars of one ticker in ascending date order.
func (p *Provider) FetchDaily(ctx context.Context, ticker string) ([]models.EquityBar, error) {
	resp, err := p.get(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusServiceUnavailable {
		p.log.Warn().Str("ticker", ticker).Dur("wait", p.retryAfter).Msg("service unavailable, retrying once")
		if err := p.sleep(ctx, p.retryAfter); err != nil {
			return nil, err
		}
		resp, err = p.get(ctx, ticker)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, &HTTPError{StatusCode: resp.StatusCode(), Retried: true}
		}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode()}
	}

	bars, err := parseDaily(resp.Body(), ticker)
	if err != nil {
		return nil, err
	}
	return LatestBars(bars, p.lastN), nil
}

func (p *Provider) get(ctx context.Context, ticker string) (*resty.Response, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"function":   "TIME_SERIES_DAILY",
			"symbol":     p.Symbol(ticker),
			"outputsize": "compact",
			"apikey":     p.apiKey,
		}).
		Get("/query")
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", p.Symbol(ticker), err)
	}
	return resp, nil
}

// parseDaily decodes a TIME_SERIES_DAILY body into bars (unsorted).
func parseDaily(body []byte, ticker string) ([]models.EquityBar, error) {
	var doc dailyResponse
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	for _, key := range []string{keyNote, keyInformation} {
		if raw, ok := doc[key]; ok {
			return nil, &SoftError{Key: key, Message: rawText(raw)}
		}
	}

	rawSeries, ok := doc[keyTimeSeries]
	if !ok {
		return nil, &MissingSeriesError{Body: string(body)}
	}
	var series map[string]dailyEntry
	if err := json.Unmarshal(rawSeries, &series); err != nil {
		return nil, fmt.Errorf("parse %q: %w", keyTimeSeries, err)
	}

	bars := make([]models.EquityBar, 0, len(series))
	for day, e := range series {
		d, err := time.Parse(models.DateLayout, day)
		if err != nil {
			return nil, fmt.Errorf("bad date %q: %w", day, err)
		}
		var vals [5]decimal.Decimal
		for i, s := range []string{e.Open, e.High, e.Low, e.Close, e.Volume} {
			v, err := decimal.NewFromString(strings.TrimSpace(s))
			if err != nil {
				return nil, fmt.Errorf("bad value %q on %s: %w", s, day, err)
			}
			vals[i] = v
		}
		bars = append(bars, models.EquityBar{
			Date: d, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4],
			Ticker: ticker,
		})
	}
	return bars, nil
}

// LatestBars sorts bars ascending by date and keeps the last n. The input
// slice is not modified.
func LatestBars(bars []models.EquityBar, n int) []models.EquityBar {
	out := append([]models.EquityBar(nil), bars...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

func rawText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
