// Package plot renders an HTML page of charts for one inspected table.
package plot

import (
	"cmp"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/deltascope/internal/timeline"
	"github.com/Sumatoshi-tech/deltascope/pkg/delta"
	"github.com/Sumatoshi-tech/deltascope/pkg/units"
)

const (
	chartWidth    = "100%"
	chartHeight   = "420px"
	xAxisRotate   = 45
	labelFontSize = 10
	barColor      = "#5470c6"
	histColor     = "#91cc75"
)

var pieRadius = []string{"35%", "65%"}

// sizeBucket is a half-open [lower, upper) file size range in MiB.
type sizeBucket struct {
	label string
	upper float64
}

// Buckets around the 128 MiB small-file threshold and the 1 GiB target size.
var sizeBuckets = []sizeBucket{
	{label: "< 1 MiB", upper: 1},
	{label: "1-16 MiB", upper: 16},
	{label: "16-64 MiB", upper: 64},
	{label: "64-128 MiB", upper: 128},
	{label: "128-512 MiB", upper: 512},
	{label: "512 MiB-1 GiB", upper: 1024},
	{label: ">= 1 GiB", upper: -1},
}

// Input is everything the page is built from.
type Input struct {
	Location string
	Version  int64
	Timeline *timeline.Report
	Files    []delta.FileInfo
}

// Build assembles the chart page.
func Build(in Input) *components.Page {
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("deltascope: %s @ v%d", in.Location, in.Version)
	page.SetLayout(components.PageFlexLayout)

	page.AddCharts(
		operationsPerDay(in.Timeline),
		operationsByType(in.Timeline),
		fileSizeHistogram(in.Files),
	)

	return page
}

// Render writes the chart page as a standalone HTML document.
func Render(w io.Writer, in Input) error {
	if err := Build(in).Render(w); err != nil {
		return fmt.Errorf("render chart page: %w", err)
	}

	return nil
}

func initOpts() opts.Initialization {
	return opts.Initialization{Width: chartWidth, Height: chartHeight}
}

func operationsPerDay(report *timeline.Report) *charts.Bar {
	days := []string{}
	counts := []opts.BarData{}

	if report != nil {
		for _, bucket := range report.OperationsByDay {
			days = append(days, bucket.Day)
			counts = append(counts, opts.BarData{Value: bucket.Count})
		}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts()),
		charts.WithTitleOpts(opts.Title{Title: "Operations per day", Subtitle: "Commits grouped by local calendar day"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{Rotate: xAxisRotate, FontSize: labelFontSize},
		}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)

	bar.SetXAxis(days).AddSeries("Commits", counts,
		charts.WithItemStyleOpts(opts.ItemStyle{Color: barColor}))

	return bar
}

func operationsByType(report *timeline.Report) *charts.Pie {
	data := []opts.PieData{}

	if report != nil {
		ops := slices.Collect(maps.Keys(report.OperationsByType))
		slices.SortFunc(ops, func(a, b delta.Operation) int {
			if c := cmp.Compare(report.OperationsByType[b], report.OperationsByType[a]); c != 0 {
				return c
			}

			return cmp.Compare(a, b)
		})

		for _, op := range ops {
			data = append(data, opts.PieData{Name: string(op), Value: report.OperationsByType[op]})
		}
	}

	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts()),
		charts.WithTitleOpts(opts.Title{Title: "Operations by type"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
	)

	pie.AddSeries("Operations", data).
		SetSeriesOptions(
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}: {c} ({d}%)"}),
			charts.WithPieChartOpts(opts.PieChart{Radius: pieRadius}),
		)

	return pie
}

func fileSizeHistogram(files []delta.FileInfo) *charts.Bar {
	counts := bucketSizes(files)
	labels := make([]string, len(sizeBuckets))
	data := make([]opts.BarData, len(sizeBuckets))

	for i, bucket := range sizeBuckets {
		labels[i] = bucket.label
		data[i] = opts.BarData{Value: counts[i]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts()),
		charts.WithTitleOpts(opts.Title{
			Title:    "File size distribution",
			Subtitle: fmt.Sprintf("%d active files", len(files)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)

	bar.SetXAxis(labels).AddSeries("Files", data,
		charts.WithItemStyleOpts(opts.ItemStyle{Color: histColor}),
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))

	return bar
}

// bucketSizes counts files per sizeBuckets entry.
func bucketSizes(files []delta.FileInfo) []int {
	counts := make([]int, len(sizeBuckets))

	for _, file := range files {
		mib := units.ToMiB(file.SizeBytes)

		for i, bucket := range sizeBuckets {
			if bucket.upper < 0 || mib < bucket.upper {
				counts[i]++

				break
			}
		}
	}

	return counts
}
