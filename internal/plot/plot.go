// SPDX-License-Identifier: AGPL-3.0-or-later

// Package plot defines the rendering boundary for metric series. The store
// itself only produces ordered (step, value) samples; anything that can
// consume them satisfies Renderer. The built-in implementation draws a plain
// ASCII chart so the CLI works without any external plotting tool.
package plot

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Sample is one (step, value) pair of a metric series.
type Sample struct {
	Step  int64
	Value float64
}

// Renderer consumes an ordered series and produces a chart.
type Renderer interface {
	Render(w io.Writer, title string, samples []Sample) error
}

const (
	defaultWidth  = 72
	defaultHeight = 20
)

// ASCII renders a series as a fixed-size text chart.
type ASCII struct {
	// Width and Height are the plot area dimensions in characters.
	// Zero uses defaults (72x20).
	Width  int
	Height int
}

// Render draws the samples onto a character grid, one column per scaled step
// position, with min/max axis labels.
func (r ASCII) Render(w io.Writer, title string, samples []Sample) error {
	if len(samples) == 0 {
		_, err := fmt.Fprintln(w, "(no data)")
		return err
	}

	width := r.Width
	if width <= 0 {
		width = defaultWidth
	}
	height := r.Height
	if height <= 0 {
		height = defaultHeight
	}

	minStep, maxStep := samples[0].Step, samples[0].Step
	minVal, maxVal := samples[0].Value, samples[0].Value
	for _, s := range samples[1:] {
		minStep = min(minStep, s.Step)
		maxStep = max(maxStep, s.Step)
		minVal = math.Min(minVal, s.Value)
		maxVal = math.Max(maxVal, s.Value)
	}
	stepSpan := float64(maxStep - minStep)
	valSpan := maxVal - minVal

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", width))
	}
	for _, s := range samples {
		col := 0
		if stepSpan > 0 {
			col = int(math.Round(float64(s.Step-minStep) / stepSpan * float64(width-1)))
		}
		row := height - 1
		if valSpan > 0 {
			row = height - 1 - int(math.Round((s.Value-minVal)/valSpan*float64(height-1)))
		}
		grid[row][col] = '*'
	}

	if title != "" {
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
	}
	yTop := strconv.FormatFloat(maxVal, 'g', 6, 64)
	yBottom := strconv.FormatFloat(minVal, 'g', 6, 64)
	labelWidth := max(len(yTop), len(yBottom))
	for i, line := range grid {
		label := strings.Repeat(" ", labelWidth)
		switch i {
		case 0:
			label = fmt.Sprintf("%*s", labelWidth, yTop)
		case height - 1:
			label = fmt.Sprintf("%*s", labelWidth, yBottom)
		}
		if _, err := fmt.Fprintf(w, "%s |%s\n", label, string(line)); err != nil {
			return err
		}
	}
	axis := strings.Repeat("-", width)
	if _, err := fmt.Fprintf(w, "%s +%s\n", strings.Repeat(" ", labelWidth), axis); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%s  %d%s%d\n",
		strings.Repeat(" ", labelWidth),
		minStep,
		strings.Repeat(" ", max(1, width-len(strconv.FormatInt(minStep, 10))-len(strconv.FormatInt(maxStep, 10)))),
		maxStep)
	return err
}

// SortBySteps returns a copy ordered by step ascending, preserving the
// incoming (wall clock) order for equal steps.
func SortBySteps(samples []Sample) []Sample {
	out := make([]Sample, len(samples))
	copy(out, samples)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out
}

// MovingAverage smooths the series with a trailing window. Window sizes of
// one or less return the series unchanged.
func MovingAverage(samples []Sample, window int) []Sample {
	if window <= 1 {
		out := make([]Sample, len(samples))
		copy(out, samples)
		return out
	}
	out := make([]Sample, 0, len(samples))
	for i := range samples {
		lo := max(0, i-window+1)
		sum := 0.0
		for _, s := range samples[lo : i+1] {
			sum += s.Value
		}
		out = append(out, Sample{Step: samples[i].Step, Value: sum / float64(i+1-lo)})
	}
	return out
}
