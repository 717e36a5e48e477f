package http

import (
	"net/http"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/rtm-python/est/internal/domain"
	"go.uber.org/zap"
)

// Chart criteria, as offered by the chart page.
var chartCriteria = map[string]struct {
	title string
	value func(domain.ChartPoint) float64
}{
	"crammers":        {"Crammers", func(p domain.ChartPoint) float64 { return p.Crammers }},
	"passed-tests":    {"Passed tests", func(p domain.ChartPoint) float64 { return float64(p.Completed) }},
	"correct-answers": {"Correct answers", func(p domain.ChartPoint) float64 { return float64(p.CorrectCount) }},
}

const chartSeriesLimit = 5

// chartPage renders the trailing 30 day trend as an echarts page.
func (h *APIHandler) chartPage(w http.ResponseWriter, r *http.Request) {
	criteria := r.URL.Query().Get("criteria")
	if criteria == "" {
		criteria = "crammers"
	}
	if _, ok := chartCriteria[criteria]; !ok {
		http.Error(w, "unknown criteria", http.StatusBadRequest)
		return
	}
	points, window, err := h.chartPoints(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	line := buildTrendChart(points, window.Days(), criteria)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := line.Render(w); err != nil {
		h.log.Warn("chart render failed", zap.Error(err))
	}
}

// buildTrendChart plots one line per identity with days without activity at zero.
// Only the identities with the largest totals are drawn.
func buildTrendChart(points []domain.ChartPoint, days []string, criteria string) *charts.Line {
	crit := chartCriteria[criteria]

	type series struct {
		label  string
		total  float64
		values map[string]float64
	}
	byKey := make(map[string]*series)
	for _, p := range points {
		s, ok := byKey[p.Key]
		if !ok {
			s = &series{label: p.Label, values: make(map[string]float64)}
			byKey[p.Key] = s
		}
		v := crit.value(p)
		s.values[p.Day] += v
		s.total += v
	}
	keys := make([]string, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if byKey[keys[i]].total != byKey[keys[j]].total {
			return byKey[keys[i]].total > byKey[keys[j]].total
		}
		return keys[i] < keys[j]
	})
	if len(keys) > chartSeriesLimit {
		keys = keys[:chartSeriesLimit]
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Top Crammers",
			Subtitle: crit.title,
		}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(days)
	for _, key := range keys {
		s := byKey[key]
		items := make([]opts.LineData, 0, len(days))
		for _, day := range days {
			items = append(items, opts.LineData{Value: s.values[day]})
		}
		line.AddSeries(s.label, items)
	}
	line.SetSeriesOptions(charts.WithLineStyleOpts(opts.LineStyle{Width: 2}))
	return line
}
