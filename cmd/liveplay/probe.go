package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ManuGH/liveplay/internal/capability"
	"github.com/ManuGH/liveplay/internal/config"
	"github.com/ManuGH/liveplay/internal/player"
	"github.com/ManuGH/liveplay/internal/recorder"
)

// probeReport is what probe prints.
type probeReport struct {
	Capabilities struct {
		HardwareDecode   bool `yaml:"hardwareDecode"`
		BufferedPlayback bool `yaml:"bufferedPlayback"`
		OffscreenRender  bool `yaml:"offscreenRender"`
	} `yaml:"capabilities"`
	Requested   capabilityFlags `yaml:"requested"`
	Resolved    capabilityFlags `yaml:"resolved"`
	Adjustments []string        `yaml:"adjustments,omitempty"`
	Backend     string          `yaml:"backend"`
	Gate        string          `yaml:"gate"`
	Catalog     *catalogReport  `yaml:"catalog,omitempty"`
}

type capabilityFlags struct {
	UseHardwareDecode      bool `yaml:"useHardwareDecode"`
	UseBufferedPlayback    bool `yaml:"useBufferedPlayback"`
	ForceNoOffscreenRender bool `yaml:"forceNoOffscreenRender"`
	UseOffscreenRender     bool `yaml:"useOffscreenRender"`
}

type catalogReport struct {
	Path       string   `yaml:"path"`
	Issues     []string `yaml:"issues,omitempty"`
	Recordings []string `yaml:"recordings,omitempty"`
}

func newProbeCmd(rf *rootFlags) *cobra.Command {
	var recent int
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Show host capabilities, the selected decode backend and the recordings catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, _, err := loadOptions(rf, config.Patch{})
			if err != nil {
				return err
			}
			probe := capability.NewHostProbe(opts.HWDevice, opts.FFmpegBin)
			report := buildProbeReport(opts, probe)
			report.Catalog = inspectCatalog(cmd.Context(), opts.RecordDir, recent, time.Now())
			return writeReport(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().IntVar(&recent, "recent", 5, "number of recent recordings to list")
	return cmd
}

func buildProbeReport(opts config.Options, probe capability.Probe) probeReport {
	caps := capability.Snapshot(probe)
	desired := capability.Flags{
		UseHardwareDecode:      opts.UseHardwareDecode,
		UseBufferedPlayback:    opts.UseBufferedPlayback,
		ForceNoOffscreenRender: opts.ForceNoOffscreenRender,
	}
	res := capability.Resolve(desired, caps)
	sel := player.SelectBackends(res.Flags)

	var r probeReport
	r.Capabilities.HardwareDecode = caps.HardwareDecode
	r.Capabilities.BufferedPlayback = caps.BufferedPlayback
	r.Capabilities.OffscreenRender = caps.OffscreenRender
	r.Requested = capabilityFlags(desired)
	r.Resolved = capabilityFlags(res.Flags)
	for _, adj := range res.Adjustments {
		r.Adjustments = append(r.Adjustments, adj.String())
	}
	r.Backend = sel.Primary.String()
	r.Gate = sel.Gate().String()
	return r
}

// inspectCatalog checks and lists the catalog if one exists. It never
// creates one.
func inspectCatalog(ctx context.Context, dir string, recent int, now time.Time) *catalogReport {
	path := filepath.Join(dir, catalogFile)
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	rep := &catalogReport{Path: path}
	cat, err := recorder.OpenCatalog(path)
	if err != nil {
		rep.Issues = []string{err.Error()}
		return rep
	}
	defer func() { _ = cat.Close() }()

	issues, err := cat.Check()
	if err != nil {
		rep.Issues = append(rep.Issues, err.Error())
	}
	rep.Issues = append(rep.Issues, issues...)

	entries, err := cat.List(ctx, recent)
	if err != nil {
		rep.Issues = append(rep.Issues, err.Error())
		return rep
	}
	for _, e := range entries {
		rep.Recordings = append(rep.Recordings, fmt.Sprintf("%s  %s  %s",
			e.Name, humanize.IBytes(uint64(e.SizeBytes)), humanize.RelTime(e.SavedAt, now, "ago", "from now")))
	}
	return rep
}

func writeReport(w io.Writer, r probeReport) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}
