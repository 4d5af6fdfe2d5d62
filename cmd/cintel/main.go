// Command cintel runs the continuous-intelligence dashboard: a live web page
// (serve), a static GitHub Pages build (export), a terminal view (watch) and
// a config scaffold (init).
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/katehuntsman/cintel-05-cintel/src/config"
	"github.com/katehuntsman/cintel-05-cintel/src/monitor"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

// sourceFlags override the monitor part of the config.
type sourceFlags struct {
	source   string
	interval time.Duration
	window   int
	record   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "cintel",
		Short: "Live continuous-intelligence dashboard",
		Long: `cintel simulates a live data feed (environment readings or stock prices),
keeps the most recent readings, fits a linear trend and serves the result as a
reactive web dashboard. The same page can be exported as a static site.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", config.DefaultPath, "Config file (missing file = defaults)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	root.AddCommand(newServeCmd(g), newExportCmd(g), newWatchCmd(g), newInitCmd(g))
	return root
}

func (sf *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&sf.source, "source", "", "Data source: environment or stock")
	cmd.Flags().DurationVar(&sf.interval, "interval", 0, "Reading interval (default: source default)")
	cmd.Flags().IntVar(&sf.window, "window", 0, "Number of recent readings to keep")
	cmd.Flags().StringVar(&sf.record, "record", "", "Append every reading to this JSONL file")
}

// loadConfig reads the config file, then applies flags the user actually set.
func loadConfig(cmd *cobra.Command, g *globalFlags, sf *sourceFlags) (config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return cfg, err
	}
	if sf != nil {
		applySourceFlags(&cfg, cmd, sf)
	}
	if strings.TrimSpace(g.logLevel) != "" {
		cfg.LogLevel = g.logLevel
	}
	if !monitor.SetLogLevel(cfg.LogLevel) {
		monitor.Warnf("unknown log level %q; keeping %s", cfg.LogLevel, monitor.GetLogLevel())
	}
	return cfg, cfg.Validate()
}

func applySourceFlags(cfg *config.Config, cmd *cobra.Command, sf *sourceFlags) {
	changed := func(name string) bool { return cmd.Flags().Changed(name) }
	if changed("source") {
		prev := cfg.Source
		cfg.Source = strings.ToLower(strings.TrimSpace(sf.source))
		// a new source brings its own default pace unless the user set one
		if cfg.Source != prev && !changed("interval") {
			cfg.Interval = monitor.DefaultInterval(cfg.Source)
		}
	}
	if changed("interval") {
		cfg.Interval = sf.interval
	}
	if changed("window") {
		cfg.WindowSize = sf.window
	}
	if changed("record") {
		cfg.Record = sf.record
	}
}

// newMonitor builds the source, window and optional recorder described by cfg.
func newMonitor(cfg config.Config, opts ...monitor.Option) (*monitor.Monitor, error) {
	src, err := monitor.NewSource(cfg.Source, time.Now().UnixNano())
	if err != nil {
		return nil, err
	}
	all := []monitor.Option{monitor.WithInterval(cfg.Interval), monitor.WithWindowSize(cfg.WindowSize)}
	if strings.TrimSpace(cfg.Record) != "" {
		rec, err := monitor.NewRecorder(cfg.Record)
		if err != nil {
			return nil, err
		}
		all = append(all, monitor.WithRecorder(rec))
	}
	return monitor.New(src, append(all, opts...)...), nil
}

func newInitCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a commented default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteDefault(g.configPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", g.configPath)
			return nil
		},
	}
}
