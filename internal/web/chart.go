package web

import (
	"bytes"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// handleHistory renders a scatter of recent transition positions over time
// using go-echarts, one series per event type. It reads straight from the
// transition log, so it works without the MQTT live feed.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.log == nil {
		http.Error(w, "transition history disabled", http.StatusNotFound)
		return
	}

	entries, err := s.log.Recent(historyLimit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	series := map[string][]opts.ScatterData{}
	// Recent returns newest first; plot oldest to newest.
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		name := string(e.Type)
		series[name] = append(series[name], opts.ScatterData{
			Value: []interface{}{e.Timestamp.UTC().Format("15:04:05"), e.Position},
		})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Scroll Transitions", Width: "1100px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Scroll Transitions", Subtitle: "position at each state change, oldest to newest"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "position"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	// Stable series order keeps legend colors consistent across reloads.
	for _, name := range []string{"PINNED", "UNPINNED", "TOP", "NOT_TOP", "BOTTOM", "NOT_BOTTOM"} {
		data, ok := series[name]
		if !ok {
			continue
		}
		scatter.AddSeries(name, data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	}

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		http.Error(w, "failed to render chart: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
