// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kinetics

// DefaultRecoveryThreshold is the damaged-cell count below which a run
// counts as a recovery.
const DefaultRecoveryThreshold = 10

// Summary is the end state of a Creation Rebirth run.
type Summary struct {
	FinalHealthy int64
	FinalDamaged int64
	StressLevel  int64
	Recovered    bool
}

// Summarize reads the final healthy, damaged and stress counts from traj.
// Recovered is true iff the final damaged count is strictly below threshold.
func Summarize(traj *Trajectory, threshold int64) (Summary, error) {
	var s Summary
	var err error
	if s.FinalHealthy, err = traj.Final(HealthyCells); err != nil {
		return Summary{}, err
	}
	if s.FinalDamaged, err = traj.Final(DamagedCells); err != nil {
		return Summary{}, err
	}
	if s.StressLevel, err = traj.Final(TelomereStress); err != nil {
		return Summary{}, err
	}
	s.Recovered = s.FinalDamaged < threshold
	return s, nil
}
