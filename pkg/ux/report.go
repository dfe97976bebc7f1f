// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/rebirthsim/services/simulator/datatypes"
)

const (
	ReportHeader           = "TREATMENT REPORT: PATIENT ZERO"
	StatusCompleteRecovery = "STATUS: COMPLETE RECOVERY"
	StatusPartialRecovery  = "STATUS: PARTIAL RECOVERY - INSUFFICIENT CHAKRA"
	RestNote               = "Note: Patient requires immediate rest. Life expectancy slightly reduced."
)

var reportRule = strings.Repeat("-", 40)

// WriteTreatmentReport writes the end-of-treatment report for s to w.
//
// The layout is fixed so scripts can grep it:
//
//	----------------------------------------
//	TREATMENT REPORT: PATIENT ZERO
//	----------------------------------------
//	Final Healthy Tissue Count: 1000
//	Remaining Damaged Tissue:   0
//	Telomere Stress Accumulated: 497
//
//	STATUS: COMPLETE RECOVERY
//	Note: Patient requires immediate rest. Life expectancy slightly reduced.
//
// Only the status line is colored, and only when colors are enabled.
func WriteTreatmentReport(w io.Writer, s datatypes.Summary) error {
	var b strings.Builder
	fmt.Fprintln(&b, reportRule)
	fmt.Fprintln(&b, ReportHeader)
	fmt.Fprintln(&b, reportRule)
	fmt.Fprintf(&b, "Final Healthy Tissue Count: %d\n", s.FinalHealthy)
	fmt.Fprintf(&b, "Remaining Damaged Tissue:   %d\n", s.FinalDamaged)
	fmt.Fprintf(&b, "Telomere Stress Accumulated: %d\n", s.StressLevel)
	b.WriteString("\n")

	if s.Recovered {
		fmt.Fprintln(&b, statusLine(StatusCompleteRecovery, Styles.Success))
		fmt.Fprintln(&b, RestNote)
	} else {
		fmt.Fprintln(&b, statusLine(StatusPartialRecovery, Styles.Warning))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func statusLine(text string, style lipgloss.Style) string {
	if !ShouldShowColors() {
		return text
	}
	return style.Render(text)
}
