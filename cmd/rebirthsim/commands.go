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
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/rebirthsim/pkg/config"
	"github.com/AleutianAI/rebirthsim/pkg/logging"
	"github.com/AleutianAI/rebirthsim/pkg/ux"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// skipConfig marks commands that run without loading the config file.
const skipConfig = "skip_config"

// app carries the state shared by every subcommand.
type app struct {
	// Persistent flags
	configPath  string
	logLevel    string
	personality string

	cfg    config.RebirthConfig
	logger *logging.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "rebirthsim",
		Short: "Stochastic simulator of the Creation Rebirth healing model",
		Long: `rebirthsim simulates the Creation Rebirth reaction network
(activation, catalyzed repair, decay) with a tau-leaping or exact SSA solver.
It serves the simulation over HTTP, runs it from the command line and
charts it in a terminal dashboard.`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "",
		"config file (default ~/.rebirthsim/rebirthsim.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "",
		"log level: debug, info, warn, error (overrides config)")
	root.PersistentFlags().StringVar(&a.personality, "personality", "",
		"output style: full, standard, minimal, machine")

	root.AddCommand(
		newServeCmd(a),
		newRunCmd(a),
		newDashboardCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads the configuration and builds the logger.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if a.personality != "" {
		ux.SetPersonalityLevel(ux.ParsePersonalityLevel(a.personality))
	} else {
		ux.InitPersonality()
	}

	if cmd.Annotations[skipConfig] == "true" {
		return nil
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	a.cfg = cfg
	a.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: cfg.Telemetry.ServiceName,
		Format:  logging.Format(cfg.Logging.Format),
		Output:  cmd.ErrOrStderr(),
	})
	slog.SetDefault(a.logger.Slog())
	return nil
}

func (a *app) teardown(cmd *cobra.Command, args []string) error {
	if a.logger != nil {
		return a.logger.Close()
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the version",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rebirthsim %s\n", version)
		},
	}
}
