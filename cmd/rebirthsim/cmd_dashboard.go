// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"github.com/spf13/cobra"

	"github.com/AleutianAI/rebirthsim/pkg/client"
	"github.com/AleutianAI/rebirthsim/services/dashboard"
)

var _ dashboard.Connector = (*client.Client)(nil)

func newDashboardCmd(a *app) *cobra.Command {
	var (
		baseURL      string
		solver       string
		trajectories int
		seed         uint64
	)
	cmd := &cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"ui"},
		Short:   "Open the terminal dashboard against a running server",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("url") {
				a.cfg.Client.BaseURL = baseURL
			}
			opts := dashboard.Options{
				Solver:       solver,
				Trajectories: trajectories,
				Endpoint:     a.cfg.Client.BaseURL,
			}
			if cmd.Flags().Changed("seed") {
				opts.Seed = &seed
			}
			c := client.New(a.cfg.Client.BaseURL, a.cfg.Client.Timeout)
			return dashboard.Run(cmd.Context(), c, opts)
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "", "simulator base URL (overrides REBIRTH_API_URL and config)")
	cmd.Flags().StringVar(&solver, "solver", "", "solver: tau_leaping or ssa (default: server default)")
	cmd.Flags().IntVarP(&trajectories, "trajectories", "n", 0, "trajectories to average per run")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "fixed seed for every run")
	return cmd
}
