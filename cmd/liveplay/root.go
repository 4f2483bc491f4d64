// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ManuGH/liveplay/internal/config"
	"github.com/ManuGH/liveplay/internal/log"
	"github.com/ManuGH/liveplay/internal/version"
)

type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	rf := &rootFlags{}
	root := &cobra.Command{
		Use:           "liveplay",
		Short:         "Headless live stream player",
		Long:          "liveplay fetches a live stream, demuxes it and decodes it through a software, buffered or hardware backend.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			log.Configure(log.Config{
				Level:   rf.logLevel,
				Output:  cmd.ErrOrStderr(),
				Service: "liveplay",
				Version: version.Version,
			})
		},
	}
	root.PersistentFlags().StringVarP(&rf.configPath, "config", "c", "", "path to YAML options file")
	root.PersistentFlags().StringVar(&rf.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(newPlayCmd(rf), newProbeCmd(rf), newVersionCmd())

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w\n\n%s", err, cmd.UsageString())
	})
	return root
}

// loadOptions runs the loader and applies command-line overrides on top.
func loadOptions(rf *rootFlags, overrides config.Patch) (config.Options, *config.Loader, error) {
	path := strings.TrimSpace(rf.configPath)
	if path == "" {
		path = defaultConfigPath()
	}
	loader := config.NewLoader(path)
	opts, err := loader.Load()
	if err != nil {
		return opts, nil, err
	}
	opts = opts.Apply(overrides)
	if err := config.Validate(opts); err != nil {
		return opts, nil, err
	}
	return opts, loader, nil
}

// defaultConfigPath picks up ${LIVEPLAY_DATA}/liveplay.yaml when present.
func defaultConfigPath() string {
	dir := strings.TrimSpace(os.Getenv("LIVEPLAY_DATA"))
	if dir == "" {
		return ""
	}
	p := filepath.Join(dir, "liveplay.yaml")
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return err
		},
	}
}
