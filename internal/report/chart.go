package report

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/seenimoa/mercadobr/pkg/utils"
)

// ErrNotEnoughPoints is returned when a series has fewer than two points.
var ErrNotEnoughPoints = errors.New("report: need at least 2 points to draw a chart")

// Point is one (date, value) sample.
type Point struct {
	Date  time.Time
	Value float64
}

// ChartStyle selects how a series is drawn.
type ChartStyle int

const (
	StyleLine ChartStyle = iota
	StyleArea
)

// SortPoints orders pts by date, keeping the input order of equal dates.
func SortPoints(pts []Point) {
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Date.Before(pts[j].Date) })
}

// RenderChart draws pts as an SVG time series.
func RenderChart(title string, pts []Point, style ChartStyle) ([]byte, error) {
	if len(pts) < 2 {
		return nil, ErrNotEnoughPoints
	}

	xs := make([]time.Time, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		xs[i] = p.Date
		ys[i] = p.Value
	}

	seriesStyle := chart.Style{
		StrokeColor: drawing.ColorFromHex("2563eb"), // blue-600
		StrokeWidth: 2,
	}
	if style == StyleArea {
		seriesStyle.FillColor = drawing.ColorFromHex("2563eb").WithAlpha(64)
	}

	graph := chart.Chart{
		Title:  title,
		Width:  900,
		Height: 360,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return chart.TimeFromFloat64(f).Format("02/01")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return utils.FormatDecimalBR(f, 2)
				}
				return ""
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    title,
				Style:   seriesStyle,
				XValues: xs,
				YValues: ys,
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.SVG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}

// ClosingPriceTitle is the title of a ticker's closing-price chart.
func ClosingPriceTitle(ticker string) string {
	return "Preço de Fechamento — " + strings.ToUpper(ticker)
}

// IndicatorTitle is the title of an indicator's chart.
func IndicatorTitle(name string) string {
	return name + " — últimos registros"
}
