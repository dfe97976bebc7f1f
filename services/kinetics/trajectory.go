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

import (
	"fmt"
	"math"
	"slices"
)

// Trajectory is the population of every species at every sample time.
//
// Counts is indexed [timepoint][species]; species order follows Species.
type Trajectory struct {
	Species []string
	Times   []float64
	Counts  [][]int64

	// Steps is the number of solver iterations (events or leaps) taken.
	Steps int
}

// Len returns the number of sample times.
func (t *Trajectory) Len() int { return len(t.Times) }

// Series returns the population of one species across all sample times.
func (t *Trajectory) Series(name string) ([]int64, error) {
	idx := slices.Index(t.Species, name)
	if idx < 0 {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownSpecies)
	}
	out := make([]int64, len(t.Counts))
	for i, row := range t.Counts {
		out[i] = row[idx]
	}
	return out, nil
}

// Final returns the population of one species at the last sample time.
func (t *Trajectory) Final(name string) (int64, error) {
	idx := slices.Index(t.Species, name)
	if idx < 0 {
		return 0, fmt.Errorf("%q: %w", name, ErrUnknownSpecies)
	}
	if len(t.Counts) == 0 {
		return 0, ErrEmptyTimespan
	}
	return t.Counts[len(t.Counts)-1][idx], nil
}

// MeanTrajectory averages trajectories sample by sample, rounding each mean
// to the nearest integer. All inputs must share species and times.
func MeanTrajectory(trajs []*Trajectory) (*Trajectory, error) {
	if len(trajs) == 0 {
		return nil, ErrEmptyEnsemble
	}
	if len(trajs) == 1 {
		return trajs[0], nil
	}

	first := trajs[0]
	sums := make([][]float64, first.Len())
	for i := range sums {
		sums[i] = make([]float64, len(first.Species))
	}
	steps := 0
	for _, tr := range trajs {
		if tr.Len() != first.Len() || !slices.Equal(tr.Species, first.Species) {
			return nil, fmt.Errorf("kinetics: ensemble trajectories have mismatched shapes")
		}
		for i, row := range tr.Counts {
			for s, v := range row {
				sums[i][s] += float64(v)
			}
		}
		steps += tr.Steps
	}

	n := float64(len(trajs))
	mean := &Trajectory{
		Species: slices.Clone(first.Species),
		Times:   slices.Clone(first.Times),
		Counts:  make([][]int64, first.Len()),
		Steps:   steps,
	}
	for i, row := range sums {
		mean.Counts[i] = make([]int64, len(row))
		for s, v := range row {
			mean.Counts[i][s] = int64(math.Round(v / n))
		}
	}
	return mean, nil
}

// recorder copies the current state into the trajectory whenever simulated
// time passes a sample point.
type recorder struct {
	traj *Trajectory
	next int
}

func newRecorder(n *network) *recorder {
	return &recorder{
		traj: &Trajectory{
			Species: slices.Clone(n.species),
			Times:   slices.Clone(n.timespan),
			Counts:  make([][]int64, len(n.timespan)),
		},
	}
}

// timeEps absorbs float drift when a leap is clamped to land on a sample time.
const timeEps = 1e-9

// record stores x for every sample time not after t.
func (r *recorder) record(t float64, x []int64) {
	for r.next < len(r.traj.Times) && r.traj.Times[r.next] <= t+timeEps {
		r.traj.Counts[r.next] = slices.Clone(x)
		r.next++
	}
}

// recordBefore stores x for every sample time strictly before t.
func (r *recorder) recordBefore(t float64, x []int64) {
	for r.next < len(r.traj.Times) && r.traj.Times[r.next] < t {
		r.traj.Counts[r.next] = slices.Clone(x)
		r.next++
	}
}

// fill stores x for every remaining sample time.
func (r *recorder) fill(x []int64) {
	r.record(math.Inf(1), x)
}

func (r *recorder) done() bool { return r.next >= len(r.traj.Times) }

// nextTime is the next unrecorded sample time.
func (r *recorder) nextTime() float64 { return r.traj.Times[r.next] }
