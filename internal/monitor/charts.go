package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/otg/internal/httputil"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// echartsAssetsPrefix is where rendered chart pages load the echarts
// runtime from.
const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// handleRunChart renders a line chart (HTML) of one recorded run using
// go-echarts, one series per axis. Tracked runs get a dashed target
// overlay on the position field.
// Query params:
//   - id (required)
//   - field (optional; position, velocity, acceleration or jerk)
func (ws *WebServer) handleRunChart(w http.ResponseWriter, r *http.Request) {
	field, err := fieldParam(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	run, rec, ok := ws.loadRun(w, r)
	if !ok {
		return
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Trajectory Run", Theme: "dark", Width: "1200px", Height: "600px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Run %s", run.Name), Subtitle: fmt.Sprintf("id=%s dofs=%d cycle=%gs field=%s", run.ID, run.DOFs, run.Cycle, field)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: field, NameLocation: "middle", NameGap: 40}),
	)

	x := make([]string, len(rec.Samples))
	for k, sm := range rec.Samples {
		x[k] = strconv.FormatFloat(sm.Time, 'f', 3, 64)
	}
	line.SetXAxis(x)

	for axis := 0; axis < rec.DOFs; axis++ {
		series := make([]opts.LineData, len(rec.Samples))
		for k, sm := range rec.Samples {
			series[k] = opts.LineData{Value: sampleField(sm, field, axis)}
		}
		line.AddSeries(fmt.Sprintf("axis %d", axis), series,
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		)
	}

	// Tracked runs carry the commanded target alongside the response.
	if field == "position" && rec.Samples[0].TargetPosition != nil {
		for axis := 0; axis < rec.DOFs; axis++ {
			series := make([]opts.LineData, len(rec.Samples))
			for k, sm := range rec.Samples {
				series[k] = opts.LineData{Value: sm.TargetPosition[axis]}
			}
			line.AddSeries(fmt.Sprintf("target %d", axis), series,
				charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
				charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}),
			)
		}
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}