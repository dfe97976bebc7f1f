// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/AleutianAI/rebirthsim/pkg/ux"
	"github.com/AleutianAI/rebirthsim/services/simulator/datatypes"
)

const (
	chartHeight   = 10
	minChartWidth = 30
)

// series extracts one column of samples as float64s.
func series(data []datatypes.Sample, pick func(datatypes.Sample) int64) []float64 {
	out := make([]float64, len(data))
	for i, s := range data {
		out[i] = float64(pick(s))
	}
	return out
}

// renderCellChart plots healthy against damaged cells.
func renderCellChart(data []datatypes.Sample, width int) string {
	if len(data) == 0 {
		return ""
	}
	return asciigraph.PlotMany(
		[][]float64{
			series(data, func(s datatypes.Sample) int64 { return s.HealthyCells }),
			series(data, func(s datatypes.Sample) int64 { return s.DamagedCells }),
		},
		asciigraph.Height(chartHeight),
		asciigraph.Width(chartWidth(width)),
		asciigraph.SeriesColors(asciigraph.Green, asciigraph.Red),
		asciigraph.SeriesLegends("Healthy", "Damaged"),
		asciigraph.Caption("Cell populations"),
	)
}

// renderResourceChart plots chakra, enzymes and telomere stress.
func renderResourceChart(data []datatypes.Sample, width int) string {
	if len(data) == 0 {
		return ""
	}
	return asciigraph.PlotMany(
		[][]float64{
			series(data, func(s datatypes.Sample) int64 { return s.Chakra }),
			series(data, func(s datatypes.Sample) int64 { return s.ActiveEnzymes }),
			series(data, func(s datatypes.Sample) int64 { return s.TelomereStress }),
		},
		asciigraph.Height(chartHeight),
		asciigraph.Width(chartWidth(width)),
		asciigraph.SeriesColors(asciigraph.Cyan, asciigraph.Yellow, asciigraph.Magenta),
		asciigraph.SeriesLegends("Chakra", "Enzymes", "Stress"),
		asciigraph.Caption("Resources"),
	)
}

// chartWidth leaves room for the y-axis labels.
func chartWidth(termWidth int) int {
	return max(termWidth-14, minChartWidth)
}

// renderSummary draws the summary panel for resp.
func renderSummary(resp *datatypes.SimulateResponse) string {
	s := resp.Summary

	status := ux.Styles.Warning.Render(ux.StatusPartialRecovery)
	if s.Recovered {
		status = ux.Styles.Success.Render(ux.StatusCompleteRecovery)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %d\n", label("Final healthy"), s.FinalHealthy)
	fmt.Fprintf(&b, "%s %d\n", label("Final damaged"), s.FinalDamaged)
	fmt.Fprintf(&b, "%s %d\n", label("Telomere stress"), s.StressLevel)
	fmt.Fprintf(&b, "%s %s\n", label("Healthy tissue"),
		ux.ProgressBar(int(s.FinalHealthy), int(s.FinalHealthy+s.FinalDamaged), 20))
	b.WriteString(status)

	meta := fmt.Sprintf("solver %s · seed %d · trajectories %d", resp.Solver, resp.Seed, resp.Trajectories)
	if resp.Cached {
		meta += " · cached"
	}
	b.WriteString("\n" + ux.Styles.Muted.Render(meta))

	return ux.Styles.Box.Render(ux.Styles.Title.Render("Treatment summary") + "\n" + b.String())
}

var labelStyle = lipgloss.NewStyle().Width(16).Foreground(ux.ColorSlate)

func label(s string) string {
	return labelStyle.Render(s + ":")
}
