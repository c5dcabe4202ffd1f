package cli

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ficojok/ZETdev/internal/logging"
	"github.com/ficojok/ZETdev/internal/watch"
)

const dbStatsInterval = 15 * time.Second

func watchCmd(o *rootOptions) *cobra.Command {
	var (
		addr     string
		interval time.Duration
	)

	c := &cobra.Command{
		Use:   "watch",
		Short: "Poll the realtime feed and serve /metrics and /healthz",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := o.openAt(cmd, slog.LevelInfo)
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("addr") {
				addr = a.Config.MetricsAddr
			}
			if !cmd.Flags().Changed("interval") {
				interval = a.Config.WatchInterval
			}
			if db := a.GtfsManager.GtfsDB; db != nil {
				a.Metrics.StartDBStatsCollector(db.DB, dbStatsInterval)
			}

			logging.LogOperation(a.Logger.With(slog.String("component", "cli")), "watch_starting",
				slog.String("addr", addr),
				slog.String("realtime_url", a.Config.RealtimeURL))
			return watch.NewServer(addr, a.GtfsManager, a.Metrics, interval).Run(ctx)
		},
	}

	c.Flags().StringVar(&addr, "addr", "", "listen address (default metrics_addr from config)")
	c.Flags().DurationVar(&interval, "interval", 0, "realtime poll interval (default watch_interval from config)")
	return c
}
