// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"testing"
)

// =============================================================================
// GetPersonality / SetPersonality Tests
// =============================================================================

func TestSetPersonality_AndGet(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonality(Personality{Level: PersonalityMinimal})

	if got := GetPersonality().Level; got != PersonalityMinimal {
		t.Errorf("expected level %v, got %v", PersonalityMinimal, got)
	}
}

func TestSetPersonalityLevel(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	for _, level := range []PersonalityLevel{PersonalityFull, PersonalityStandard, PersonalityMinimal, PersonalityMachine} {
		SetPersonalityLevel(level)
		if got := GetPersonality().Level; got != level {
			t.Errorf("expected %v, got %v", level, got)
		}
	}
}

// =============================================================================
// ParsePersonalityLevel Tests
// =============================================================================

func TestParsePersonalityLevel(t *testing.T) {
	tests := []struct {
		in   string
		want PersonalityLevel
	}{
		{"full", PersonalityFull},
		{"F", PersonalityFull},
		{"standard", PersonalityStandard},
		{"std", PersonalityStandard},
		{"minimal", PersonalityMinimal},
		{" min ", PersonalityMinimal},
		{"machine", PersonalityMachine},
		{"quiet", PersonalityMachine},
		{"q", PersonalityMachine},
		{"", PersonalityStandard},
		{"nautical", PersonalityStandard},
	}
	for _, tt := range tests {
		if got := ParsePersonalityLevel(tt.in); got != tt.want {
			t.Errorf("ParsePersonalityLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// =============================================================================
// InitPersonality Tests
// =============================================================================

func TestInitPersonality_FromEnv(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	t.Setenv(PersonalityEnv, "minimal")
	InitPersonality()

	if got := GetPersonality().Level; got != PersonalityMinimal {
		t.Errorf("expected PersonalityMinimal from env, got %v", got)
	}
}

func TestInitPersonality_NoTerminal(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	t.Setenv(PersonalityEnv, "")
	InitPersonality()

	// go test never runs with a terminal on stdout.
	if isTerminal() {
		t.Skip("stdout is a terminal")
	}
	if got := GetPersonality().Level; got != PersonalityMachine {
		t.Errorf("expected PersonalityMachine without a terminal, got %v", got)
	}
	if IsInteractive() {
		t.Error("expected IsInteractive false without a terminal")
	}
}

func TestShouldShowColors(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMachine)
	if ShouldShowColors() {
		t.Error("machine mode must not show colors")
	}
	SetPersonalityLevel(PersonalityStandard)
	if !ShouldShowColors() {
		t.Error("standard mode should show colors")
	}
}

func TestDefaultPersonality(t *testing.T) {
	if got := DefaultPersonality().Level; got != PersonalityFull {
		t.Errorf("expected PersonalityFull, got %v", got)
	}
}
