package report

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	chartWidth  = "1100px"
	chartHeight = "480px"
	plotTitle   = "Benchmark Complexity"
)

// WritePlot renders an HTML page with one bar chart per metric, each
// comparing all benchmarks.
func WritePlot(w io.Writer, benchmarks []Benchmark) error {
	names := make([]string, len(benchmarks))
	for i, b := range benchmarks {
		names[i] = b.Name
	}

	page := components.NewPage()
	page.PageTitle = plotTitle

	page.AddCharts(
		newBar("Repository Size (Total LOC)", "LOC", names, []barSeries{
			{"Mean", func(b Benchmark) float64 { return b.RepoSize.Mean }},
			{"Median", func(b Benchmark) float64 { return b.RepoSize.Median }},
		}, benchmarks),
		newBar("Golden Patch Size", "Lines", names, []barSeries{
			{"Added (mean)", func(b Benchmark) float64 { return b.PatchOverall.Added.Mean }},
			{"Deleted (mean)", func(b Benchmark) float64 { return b.PatchOverall.Deleted.Mean }},
			{"Total (median)", func(b Benchmark) float64 { return b.PatchOverall.Total.Median }},
		}, benchmarks),
		newBar("Tasks", "Tasks", names, []barSeries{
			{"Tasks", func(b Benchmark) float64 { return float64(b.TaskCount) }},
			{"Repositories", func(b Benchmark) float64 { return float64(len(b.Repositories)) }},
		}, benchmarks),
	)

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render plot: %w", err)
	}

	return nil
}

type barSeries struct {
	name  string
	value func(Benchmark) float64
}

func newBar(title, yAxis string, names []string, series []barSeries, benchmarks []Benchmark) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithYAxisOpts(opts.YAxis{Name: yAxis}),
	)
	bar.SetXAxis(names)

	for _, s := range series {
		data := make([]opts.BarData, len(benchmarks))

		for i, b := range benchmarks {
			data[i] = opts.BarData{Value: plotValue(s.value(b))}
		}

		bar.AddSeries(s.name, data)
	}

	return bar
}

// plotValue rounds to one decimal. NaN is not valid JSON and plots as zero.
func plotValue(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}

	return math.Round(v*10) / 10
}
