package export

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sig-0/ibkrrates/storage/types"
)

var ErrNoPoints = errors.New("no history points to chart")

//go:embed chart.svg.tmpl
var chartFS embed.FS

var chartTemplate = template.Must(
	template.New("chart.svg.tmpl").
		Funcs(template.FuncMap{
			"add": func(a, b int) int { return a + b },
		}).
		ParseFS(chartFS, "chart.svg.tmpl"),
)

// slugRegex matches the runs of characters replaced in chart file names
var slugRegex = regexp.MustCompile(`[^0-9a-zA-Z]+`)

const (
	DefaultChartWidth  = 900
	DefaultChartHeight = 460

	chartMarginLeft   = 90
	chartMarginRight  = 40
	chartMarginTop    = 50
	chartMarginBottom = 80
	chartYTicks       = 5
)

// Chart describes a rate history line chart
type Chart struct {
	Title      string
	YAxisLabel string
	Colour     string
	Width      int
	Height     int
}

// chartStyle is the per rate type look of the archive charts
type chartStyle struct {
	prefix string
	label  string
	colour string
}

var chartStyles = map[types.RateType]chartStyle{
	types.RateTypeInterest: {prefix: "interest", label: "Interest", colour: "#d62728"},
	types.RateTypeMargin:   {prefix: "margin", label: "Margin", colour: "#1f77b4"},
}

type chartPoint struct {
	X, Y float64
}

type chartTick struct {
	Pos      float64
	LabelPos float64
	Label    string
}

type chartView struct {
	Width, Height            int
	Left, Right, Top, Bottom int
	CenterX, CenterY         float64

	Title       string
	YAxisLabel  string
	Colour      string
	GeneratedOn string

	Polyline string
	Points   []chartPoint
	YTicks   []chartTick
	XTicks   []chartTick
}

// RenderChart writes the history points as a standalone SVG line chart.
// Points are placed evenly by distinct date, oldest first
func RenderChart(w io.Writer, chart Chart, points []*types.HistoryPoint, generatedOn time.Time) error {
	if len(points) == 0 {
		return ErrNoPoints
	}

	if chart.Width <= 0 {
		chart.Width = DefaultChartWidth
	}

	if chart.Height <= 0 {
		chart.Height = DefaultChartHeight
	}

	view := chartView{
		Width:       chart.Width,
		Height:      chart.Height,
		Left:        chartMarginLeft,
		Right:       chart.Width - chartMarginRight,
		Top:         chartMarginTop,
		Bottom:      chart.Height - chartMarginBottom,
		CenterX:     float64(chart.Width) / 2,
		CenterY:     float64(chart.Height) / 2,
		Title:       chart.Title,
		YAxisLabel:  chart.YAxisLabel,
		Colour:      chart.Colour,
		GeneratedOn: generatedOn.Format(types.DateFormat),
	}

	// Rate bounds, widened when the series is flat
	minRate, maxRate := math.Inf(1), math.Inf(-1)

	for _, point := range points {
		rate := point.Rate.InexactFloat64()

		minRate = math.Min(minRate, rate)
		maxRate = math.Max(maxRate, rate)
	}

	if minRate == maxRate {
		minRate -= 0.01
		maxRate += 0.01
	}

	dates := distinctDates(points)
	dateIndex := make(map[time.Time]int, len(dates))

	for i, date := range dates {
		dateIndex[date] = i
	}

	var (
		lastIndex = float64(max(len(dates)-1, 1))

		scaleX = func(date time.Time) float64 {
			return scale(float64(dateIndex[types.DateOf(date)]), 0, lastIndex, float64(view.Left), float64(view.Right))
		}

		scaleY = func(rate float64) float64 {
			return scale(rate, minRate, maxRate, float64(view.Bottom), float64(view.Top))
		}
	)

	coords := make([]string, 0, len(points))

	for _, point := range points {
		p := chartPoint{
			X: scaleX(point.Date),
			Y: scaleY(point.Rate.InexactFloat64()),
		}

		view.Points = append(view.Points, p)
		coords = append(coords, fmt.Sprintf("%.2f,%.2f", p.X, p.Y))
	}

	view.Polyline = strings.Join(coords, " ")

	for step := 0; step <= chartYTicks; step++ {
		value := minRate + (maxRate-minRate)*float64(step)/chartYTicks
		y := scaleY(value)

		view.YTicks = append(view.YTicks, chartTick{
			Pos:      y,
			LabelPos: y + 4,
			Label:    formatTick(value),
		})
	}

	for _, date := range dates {
		view.XTicks = append(view.XTicks, chartTick{
			Pos:   scaleX(date),
			Label: date.Format(types.DateFormat),
		})
	}

	if err := chartTemplate.Execute(w, view); err != nil {
		return fmt.Errorf("unable to render chart: %w", err)
	}

	return nil
}

// BuildCharts renders the history chart of every currency of the rate type
// into outputDir, and returns the written paths.
// Each chart follows the second tier of its currency, or its only tier
func (a *Archive) BuildCharts(outputDir string, rateType types.RateType, generatedOn time.Time) ([]string, error) {
	style, ok := chartStyles[rateType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errUnknownRateType, rateType)
	}

	snapshots, err := a.Snapshots(rateType)
	if err != nil {
		return nil, err
	}

	if err = os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create chart directory: %w", err)
	}

	var (
		p       = message.NewPrinter(language.English)
		written = make([]string, 0)
	)

	for _, currency := range currenciesOf(snapshots) {
		tierLow, err := secondTierLow(snapshots, currency)
		if err != nil {
			return nil, err
		}

		points := historyOf(snapshots, currency, tierLow)
		if len(points) == 0 {
			continue
		}

		chart := Chart{
			Title: p.Sprintf(
				"Historical %s %s Rate (Tier ≥ %s %d)",
				currency,
				style.label,
				currency,
				tierLow.IntPart(),
			),
			YAxisLabel: fmt.Sprintf("Annual %s Rate (%%)", style.label),
			Colour:     style.colour,
		}

		var buf bytes.Buffer

		if err = RenderChart(&buf, chart, points, generatedOn); err != nil {
			return nil, err
		}

		path := filepath.Join(outputDir, ChartFileName(rateType, currency, types.FormatDecimal(tierLow)))

		if err = os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return nil, fmt.Errorf("unable to write chart: %w", err)
		}

		a.logger.Info(
			"rendered rate chart",
			"type", rateType,
			"currency", currency,
			"path", path,
			"points", len(points),
		)

		written = append(written, path)
	}

	return written, nil
}

// ChartFileName returns the chart file name of a currency tier,
// as <interest|margin>-<currency>-<tier low>.svg
func ChartFileName(rateType types.RateType, currency types.Currency, tierLow string) string {
	prefix := rateType.String()
	if style, ok := chartStyles[rateType]; ok {
		prefix = style.prefix
	}

	slug := strings.ToLower(strings.Trim(slugRegex.ReplaceAllString(currency.String(), "-"), "-"))
	if slug == "" {
		slug = "unknown"
	}

	return fmt.Sprintf("%s-%s-%s.svg", prefix, slug, strings.ReplaceAll(tierLow, ".", "-"))
}

// distinctDates returns the distinct calendar dates of the points, oldest first
func distinctDates(points []*types.HistoryPoint) []time.Time {
	var (
		seen  = make(map[time.Time]struct{}, len(points))
		dates = make([]time.Time, 0, len(points))
	)

	for _, point := range points {
		date := types.DateOf(point.Date)
		if _, ok := seen[date]; ok {
			continue
		}

		seen[date] = struct{}{}
		dates = append(dates, date)
	}

	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Before(dates[j])
	})

	return dates
}

// scale maps the value from the [start, end] domain onto the [outStart, outEnd] range
func scale(value, start, end, outStart, outEnd float64) float64 {
	span := end - start
	if span == 0 {
		span = 1
	}

	return outStart + (value-start)/span*(outEnd-outStart)
}

// formatTick renders an axis rate, with an extra digit for small values
func formatTick(value float64) string {
	if math.Abs(value) < 0.1 {
		return fmt.Sprintf("%.3f", value)
	}

	return fmt.Sprintf("%.2f", value)
}
