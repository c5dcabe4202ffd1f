// Package cli is the zet command tree: an interactive menu on the root command
// and one subcommand per search for scripting.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ficojok/ZETdev/internal/app"
	"github.com/ficojok/ZETdev/internal/appconf"
	"github.com/ficojok/ZETdev/internal/logging"
)

func Execute() {
	cmd := newRootCmd(os.Stdin, os.Stdout)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions holds the persistent flags and the dependencies every
// subcommand opens the application with.
type rootOptions struct {
	configPath  string
	dataDir     string
	dbPath      string
	realtimeURL string
	timezone    string
	verbose     bool
	logFormat   string

	in      io.Reader
	appOpts []app.Option
}

func newRootCmd(in io.Reader, out io.Writer, appOpts ...app.Option) *cobra.Command {
	o := &rootOptions{in: in, appOpts: appOpts}

	cmd := &cobra.Command{
		Use:          "zet",
		Short:        "ZET GTFS static + realtime analyzer",
		Long:         "zet searches the ZET (Zagreb) GTFS schedule, the live GTFS-Realtime feed and the vozni park fleet registry.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return newSession(a, o.in, cmd.OutOrStdout()).runMenu(cmd.Context())
		},
	}
	cmd.SetIn(in)
	cmd.SetOut(out)

	pf := cmd.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "YAML config file (default <data-dir>/zet.yml)")
	pf.StringVar(&o.dataDir, "data-dir", ".", "directory with the GTFS .txt files and voznipark.txt")
	pf.StringVar(&o.dbPath, "db", "", "SQLite schedule store path, or :memory:")
	pf.StringVar(&o.realtimeURL, "realtime-url", "", "GTFS-Realtime feed URL")
	pf.StringVar(&o.timezone, "timezone", "", "IANA time zone for schedule times")
	pf.BoolVar(&o.verbose, "verbose", false, "debug logging")
	pf.StringVar(&o.logFormat, "log-format", "text", "log format: text|json")

	cmd.AddCommand(
		routeCmd(o),
		vehicleCmd(o),
		stopCmd(o),
		stopSearchCmd(o),
		tripCmd(o),
		fleetCmd(o),
		feedCmd(o),
		infoCmd(o),
		watchCmd(o),
		versionCmd(),
	)
	return cmd
}

// config loads the YAML file and applies the flags the user set explicitly.
func (o *rootOptions) config(cmd *cobra.Command) (appconf.Config, error) {
	cfg, err := appconf.Load(o.configPath, o.dataDir, o.configPath != "")
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath = o.dbPath
	}
	if flags.Changed("realtime-url") {
		cfg.RealtimeURL = o.realtimeURL
	}
	if flags.Changed("timezone") {
		cfg.Timezone = o.timezone
	}
	if flags.Changed("verbose") {
		cfg.Verbose = o.verbose
	}
	return cfg, cfg.Validate()
}

// open sets up logging and loads the application for one command run.
// Interactive output only carries warnings and errors unless --verbose is set.
func (o *rootOptions) open(cmd *cobra.Command) (*app.Application, error) {
	return o.openAt(cmd, slog.LevelWarn)
}

func (o *rootOptions) openAt(cmd *cobra.Command, level slog.Level) (*app.Application, error) {
	cfg, err := o.config(cmd)
	if err != nil {
		return nil, err
	}

	logger := logging.NewLogger(logging.Options{
		Level:   level,
		Verbose: cfg.Verbose,
		Format:  o.logFormat,
		Output:  cmd.ErrOrStderr(),
	})
	slog.SetDefault(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	opts := append([]app.Option{app.WithLogger(logger)}, o.appOpts...)
	a, err := app.New(logging.WithLogger(ctx, logger), cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("cannot start zet: %w", err)
	}
	return a, nil
}
