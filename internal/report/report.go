// Package report renders stored counting runs into standalone HTML
// documents using go-echarts.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/zzzrenn/HeadCountGuard/internal/store"
)

// Occupancy renders the report for one run: a line chart of cumulative
// entries, exits and net occupancy over frame index, followed by a bar
// chart of the final totals. The HTML is written to w only after the whole
// page has rendered cleanly.
func Occupancy(run *store.Run, samples []store.OccupancySample, events []*store.Event, w io.Writer) error {
	if run == nil {
		return errors.New("report requires a run")
	}

	x := make([]int, 0, len(samples))
	entries := make([]opts.LineData, 0, len(samples))
	exits := make([]opts.LineData, 0, len(samples))
	net := make([]opts.LineData, 0, len(samples))
	for _, s := range samples {
		x = append(x, s.FrameIndex)
		entries = append(entries, opts.LineData{Value: s.Entries})
		exits = append(exits, opts.LineData{Value: s.Exits})
		net = append(net, opts.LineData{Value: s.Entries - s.Exits})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1100px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Occupancy",
			Subtitle: fmt.Sprintf("run=%s source=%s started=%s", run.ID, run.Source, run.StartedAt.Format(time.RFC3339)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "people"}),
	)
	line.SetXAxis(x).
		AddSeries("entries", entries).
		AddSeries("exits", exits).
		AddSeries("net", net)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1100px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Totals",
			Subtitle: fmt.Sprintf("crossings=%d", len(events)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis([]string{"Entries", "Exits", "Net"}).
		AddSeries("totals", []opts.BarData{
			{Value: run.Entries},
			{Value: run.Exits},
			{Value: run.Entries - run.Exits},
		}, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))

	page := components.NewPage()
	page.PageTitle = "HeadCountGuard Report"
	page.AddCharts(line, bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	_, err := w.Write(buf.Bytes())
	return err
}
