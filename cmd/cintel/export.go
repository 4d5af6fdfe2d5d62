package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/katehuntsman/cintel-05-cintel/src/config"
	"github.com/katehuntsman/cintel-05-cintel/src/dashboard"
	"github.com/katehuntsman/cintel-05-cintel/src/monitor"
)

func newExportCmd(g *globalFlags) *cobra.Command {
	sf := &sourceFlags{}
	var outDir string
	var ticks int
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the dashboard as a static site (GitHub Pages)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, g, sf)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("out") {
				cfg.Export.Dir = outDir
			}
			written, err := exportSite(cfg, ticks, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d files to %s\n", len(written), cfg.Export.Dir)
			return nil
		},
	}
	sf.register(cmd)
	cmd.Flags().StringVarP(&outDir, "out", "o", config.DefaultExportDir, "Output directory")
	cmd.Flags().IntVar(&ticks, "ticks", 0, "Readings to generate before exporting (default: window size)")
	return cmd
}

// exportSite fills a fresh monitor with ticks readings spaced one interval
// apart, ending at now, and writes the static site.
func exportSite(cfg config.Config, ticks int, now time.Time) ([]string, error) {
	if ticks <= 0 {
		ticks = cfg.WindowSize
	}
	next := now.Add(-time.Duration(ticks-1) * cfg.Interval)
	clock := func() time.Time {
		ts := next
		next = next.Add(cfg.Interval)
		return ts
	}
	mon, err := newMonitor(cfg, monitor.WithClock(clock))
	if err != nil {
		return nil, err
	}
	defer mon.Close()
	for i := 0; i < ticks; i++ {
		mon.Tick()
	}
	srv := dashboard.NewServer(dashboard.SettingsFromConfig(&cfg), mon,
		dashboard.WithLogger(monitor.Printer{Level: monitor.LevelDebug}),
		dashboard.WithClock(func() time.Time { return now }))
	return srv.Export(cfg.Export.Dir)
}
