package bcb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/mercadobr/internal/infra"
	"github.com/seenimoa/mercadobr/pkg/models"
	"github.com/seenimoa/mercadobr/pkg/utils"
)

// errNoData marks a series that answered with an empty array.
var errNoData = errors.New("no data returned")

// Collect fetches the last N observations of every configured series. A
// series that fails is recorded as skipped and the loop moves on.
func (p *Provider) Collect(ctx context.Context) ([]models.IndicatorRecord, *models.CollectionReport) {
	report := models.NewCollectionReport(providerName)
	var all []models.IndicatorRecord

	for _, s := range p.series {
		if err := ctx.Err(); err != nil {
			report.Skip(s.Name, err.Error())
			continue
		}
		p.log.Info().Str("indicator", s.Name).Int("code", s.Code).Msg("collecting series")

		recs, err := p.FetchSeries(ctx, s)
		if err != nil {
			p.log.Warn().Err(err).Str("indicator", s.Name).Int("code", s.Code).Msg("series skipped")
			report.Skip(s.Name, err.Error())
			continue
		}
		all = append(all, recs...)
		report.OK(s.Name, len(recs))
	}

	report.Finish()
	if report.Outcome == models.OutcomeEmpty {
		p.log.Warn().Msg("no indicator could be collected")
	}
	return all, report
}

// FetchSeries fetches one series and tags every surviving row with the
// indicator name and today's date.
func (p *Provider) FetchSeries(ctx context.Context, s Series) ([]models.IndicatorRecord, error) {
	body, err := infra.DoGet(ctx, p.client, p.seriesURL(s.Code, p.lastN), jsonHeaders())
	if err != nil {
		return nil, err
	}

	obs, err := decodeObservations(body)
	if err != nil {
		return nil, err
	}
	if len(obs) == 0 {
		return nil, errNoData
	}

	y, m, d := p.now().In(utils.BRT).Date()
	collectedOn := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	out := make([]models.IndicatorRecord, 0, len(obs))
	dropped := 0
	for _, o := range obs {
		v, err := NormalizeValue(o.Valor)
		if err != nil {
			dropped++
			continue
		}
		d, err := utils.ParseBRDate(o.Data)
		if err != nil {
			dropped++
			continue
		}
		out = append(out, models.IndicatorRecord{
			Date:        d,
			Value:       v,
			Indicator:   s.Name,
			CollectedOn: collectedOn,
		})
	}
	if dropped > 0 {
		p.log.Debug().Str("indicator", s.Name).Int("dropped", dropped).Msg("non-numeric rows dropped")
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no numeric values after conversion")
	}
	return out, nil
}

// NormalizeValue turns a decimal-comma string into a decimal.
func NormalizeValue(raw string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("value %q is not numeric", raw)
	}
	return v, nil
}

// decodeObservations parses the SGS array. Values may arrive as strings or
// numbers. Rows missing either field are dropped; the response is malformed
// only when no row carries both.
func decodeObservations(body []byte) ([]observation, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errNoData
	}

	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("parse SGS JSON: %w", err)
	}

	out := make([]observation, 0, len(raw))
	for _, r := range raw {
		d, okD := r["data"]
		v, okV := r["valor"]
		if !okD || !okV {
			continue
		}
		out = append(out, observation{Data: rawString(d), Valor: rawString(v)})
	}
	if len(raw) > 0 && len(out) == 0 {
		return nil, fmt.Errorf("unexpected structure: missing data/valor fields")
	}
	return out, nil
}

// rawString unquotes a JSON string or returns a literal as written.
func rawString(m json.RawMessage) string {
	var s string
	if err := json.Unmarshal(m, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(m))
}
