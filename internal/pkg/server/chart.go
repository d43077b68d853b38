package server

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/anicoll/eco-monitor/internal/pkg/model"
)

const (
	chartWidth     = 800
	chartHeight    = 320
	chartPadLeft   = 48
	chartPadRight  = 16
	chartPadTop    = 16
	chartPadBottom = 40
	chartMin       = 0.0
	chartMax       = 100.0
)

type point struct {
	X float64
	Y float64
}

type series struct {
	Name   string
	Color  string
	Points []point
}

// Polyline renders the points as an SVG points attribute.
func (s series) Polyline() string {
	return strings.Join(lo.Map(s.Points, func(p point, _ int) string {
		return fmt.Sprintf("%.1f,%.1f", p.X, p.Y)
	}), " ")
}

type axisLabel struct {
	Pos  float64
	Text string
}

type chart struct {
	Width   int
	Height  int
	Left    float64
	Right   float64
	Top     float64
	Bottom  float64
	Series  []series
	XLabels []axisLabel
	YLabels []axisLabel
}

var chartSeries = []struct {
	name  string
	color string
	value func(model.Reading) float64
}{
	{"Ambient Temp.", "#e53935", func(r model.Reading) float64 { return r.AmbientTemperature }},
	{"Ambient Humidity", "#1e88e5", func(r model.Reading) float64 { return r.AmbientHumidity }},
	{"Soil Humidity", "#8d6e63", func(r model.Reading) float64 { return r.SoilHumidity }},
}

// newChart lays the history out on a fixed 0-100 value axis, oldest reading
// on the left.
func newChart(h model.History) chart {
	c := chart{
		Width:  chartWidth,
		Height: chartHeight,
		Left:   chartPadLeft,
		Right:  chartWidth - chartPadRight,
		Top:    chartPadTop,
		Bottom: chartHeight - chartPadBottom,
	}

	x := func(i int) float64 {
		if len(h) < 2 {
			return (c.Left + c.Right) / 2
		}
		return c.Left + float64(i)*(c.Right-c.Left)/float64(len(h)-1)
	}
	y := func(v float64) float64 {
		return c.Bottom - (v-chartMin)/(chartMax-chartMin)*(c.Bottom-c.Top)
	}

	for _, cs := range chartSeries {
		c.Series = append(c.Series, series{
			Name:  cs.name,
			Color: cs.color,
			Points: lo.Map(h, func(row model.HistoryRow, i int) point {
				return point{X: x(i), Y: y(cs.value(row.Reading))}
			}),
		})
	}

	// every 4th timestamp keeps the axis readable
	for i, row := range h {
		if i%4 == 0 || i == len(h)-1 {
			c.XLabels = append(c.XLabels, axisLabel{Pos: x(i), Text: row.Timestamp.Format("15:04")})
		}
	}
	for v := chartMin; v <= chartMax; v += 20 {
		c.YLabels = append(c.YLabels, axisLabel{Pos: y(v), Text: fmt.Sprintf("%.0f", v)})
	}
	return c
}
