package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/katehuntsman/cintel-05-cintel/src/config"
	"github.com/katehuntsman/cintel-05-cintel/src/dashboard"
	"github.com/katehuntsman/cintel-05-cintel/src/monitor"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(g *globalFlags) *cobra.Command {
	sf := &sourceFlags{}
	var host string
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the live dashboard over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, g, sf)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	sf.register(cmd)
	cmd.Flags().StringVar(&host, "host", "", "Bind host (default from config or 127.0.0.1)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Bind port (default from config or 8050)")
	return cmd
}

// serveSettings builds server settings from a config whose env and flag
// overrides have already been applied.
func serveSettings(cfg config.Config) dashboard.Settings {
	s := dashboard.SettingsFromConfig(&cfg)
	s.Host = cfg.Server.Host
	s.Port = cfg.Server.Port
	return s
}

// serve runs the monitor and the HTTP server until ctx is cancelled.
func serve(ctx context.Context, cfg config.Config) error {
	mon, err := newMonitor(cfg)
	if err != nil {
		return err
	}
	srv := dashboard.NewServer(serveSettings(cfg), mon,
		dashboard.WithLogger(monitor.Printer{Level: monitor.LevelInfo}))
	if err := srv.Start(ctx); err != nil {
		_ = mon.Close()
		return err
	}
	monitor.Infof("dashboard ready at %s (source=%s, every %s)", srv.BaseURL(), cfg.Source, mon.Interval())

	group, gctx := errgroup.WithContext(ctx)
	stopped := make(chan struct{})
	group.Go(func() error {
		defer close(stopped)
		err := mon.Run(gctx)
		// Close only once Run has returned; it ends open event streams so
		// Shutdown can drain.
		if cerr := mon.Close(); cerr != nil {
			monitor.Warnf("recorder: %v", cerr)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-stopped
		defer monitor.TimeTrack(time.Now(), "shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return group.Wait()
}
