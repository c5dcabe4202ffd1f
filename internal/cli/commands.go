package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/OneBusAway/go-gtfs"
	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/ficojok/ZETdev/internal/buildinfo"
	zetgtfs "github.com/ficojok/ZETdev/internal/gtfs"
	"github.com/ficojok/ZETdev/internal/report"
)

// whenFlags are the --date/--time pair of the schedule lookups.
type whenFlags struct {
	date string
	hm   string
}

func (w *whenFlags) register(c *cobra.Command) {
	c.Flags().StringVar(&w.date, "date", "", "service date YYYY-MM-DD (default today)")
	c.Flags().StringVar(&w.hm, "time", "", "time HH:MM (default now, or 00:00 with --date)")
}

// at is now when neither flag is set, otherwise the given date and time.
func (w *whenFlags) at(c *cobra.Command, now time.Time) (time.Time, error) {
	if !c.Flags().Changed("date") && !c.Flags().Changed("time") {
		return now, nil
	}
	return resolveAt(w.date, w.hm, now)
}

// withSession opens the application for one subcommand run.
func withSession(o *rootOptions, c *cobra.Command, fn func(s *session) error) error {
	a, err := o.open(c)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(newSession(a, o.in, c.OutOrStdout()))
}

func routeCmd(o *rootOptions) *cobra.Command {
	var (
		index  int
		source string
		shape  bool
		when   whenFlags
	)

	c := &cobra.Command{
		Use:   "route <line or route_id>",
		Short: "Static trips and realtime vehicles of a route",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := ParseSource(source)
			if err != nil {
				return err
			}
			return withSession(o, cmd, func(s *session) error {
				at, err := when.at(cmd, s.app.Now())
				if err != nil {
					return err
				}
				return s.searchRoute(cmd.Context(), routeQuery{Query: args[0], Source: src, At: at, Shape: shape}, fixedChoice(index))
			})
		},
	}

	c.Flags().IntVar(&index, "index", 0, "which match to use when several routes match")
	c.Flags().StringVar(&source, "source", "both", "data source: rt|static|both")
	c.Flags().BoolVar(&shape, "shape", false, "print the route shape as an encoded polyline")
	when.register(c)
	return c
}

func vehicleCmd(o *rootOptions) *cobra.Command {
	var source string

	c := &cobra.Command{
		Use:   "vehicle <garage number or registration>",
		Short: "Fleet record and realtime state of a vehicle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := ParseSource(source)
			if err != nil {
				return err
			}
			return withSession(o, cmd, func(s *session) error {
				return s.searchVehicle(cmd.Context(), args[0], src)
			})
		},
	}

	c.Flags().StringVar(&source, "source", "both", "data source: rt|static|both")
	return c
}

func stopCmd(o *rootOptions) *cobra.Command {
	var (
		source string
		limit  int
		when   whenFlags
	)

	c := &cobra.Command{
		Use:   "stop <stop_id>",
		Short: "Departures and realtime trips at a stop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := ParseSource(source)
			if err != nil {
				return err
			}
			return withSession(o, cmd, func(s *session) error {
				at, err := when.at(cmd, s.app.Now())
				if err != nil {
					return err
				}
				return s.searchStopID(cmd.Context(), stopQuery{StopID: args[0], Source: src, At: at, Limit: limit})
			})
		},
	}

	c.Flags().StringVar(&source, "source", "both", "data source: rt|static|both")
	c.Flags().IntVar(&limit, "limit", zetgtfs.DefaultDepartureLimit, "maximum departures")
	when.register(c)
	return c
}

func stopSearchCmd(o *rootOptions) *cobra.Command {
	var (
		index  int
		source string
		limit  int
		when   whenFlags
	)

	c := &cobra.Command{
		Use:   "stop-search <part of stop name>",
		Short: "Find a stop by name, then show it as the stop command does",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := ParseSource(source)
			if err != nil {
				return err
			}
			return withSession(o, cmd, func(s *session) error {
				at, err := when.at(cmd, s.app.Now())
				if err != nil {
					return err
				}
				return s.searchStopName(cmd.Context(), args[0], stopQuery{Source: src, At: at, Limit: limit}, fixedChoice(index))
			})
		},
	}

	c.Flags().IntVar(&index, "index", 0, "which match to use when several stops match")
	c.Flags().StringVar(&source, "source", "both", "data source: rt|static|both")
	c.Flags().IntVar(&limit, "limit", zetgtfs.DefaultDepartureLimit, "maximum departures")
	when.register(c)
	return c
}

func tripCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "trip <trip_id>",
		Short: "Every scheduled stop of a trip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(o, cmd, func(s *session) error {
				static := s.app.GtfsManager.Static()
				if static == nil {
					return fmt.Errorf("trip lookup needs static data: %w", s.app.GtfsManager.StaticErr())
				}
				trip, err := static.StaticTripByID(args[0])
				if err != nil {
					return err
				}
				s.p.TripStops(trip)
				return nil
			})
		},
	}
}

func fleetCmd(o *rootOptions) *cobra.Command {
	var limit int

	c := &cobra.Command{
		Use:   "fleet",
		Short: "Vozni park statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(o, cmd, func(s *session) error {
				s.fleetStats(limit)
				return nil
			})
		},
	}

	c.Flags().IntVar(&limit, "limit", report.DefaultFleetListLimit, "how many records to list")
	return c
}

func feedCmd(o *rootOptions) *cobra.Command {
	var (
		dump     bool
		asJSON   bool
		entities int
	)

	c := &cobra.Command{
		Use:   "feed",
		Short: "Realtime feed header and entity counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(o, cmd, func(s *session) error {
				manager := s.app.GtfsManager
				snap, err := manager.Realtime(cmd.Context())
				if err != nil {
					return err
				}
				s.p.Divider("Realtime feed")
				s.p.FeedSummary(snap, manager.Fetcher().URL())

				if dump {
					dumpRealtime(s.out, snap.Realtime, entities)
				}
				if asJSON {
					return printFeedJSON(s.out, snap.Raw, entities)
				}
				return nil
			})
		},
	}

	c.Flags().BoolVar(&dump, "dump", false, "dump the parsed trips and vehicles")
	c.Flags().BoolVar(&asJSON, "json", false, "print the decoded protobuf message as JSON")
	c.Flags().IntVar(&entities, "entities", 5, "trips, vehicles or entities to print, -1 for all")
	return c
}

func dumpRealtime(w io.Writer, rt *gtfs.Realtime, n int) {
	trips, vehicles := rt.Trips, rt.Vehicles
	if n >= 0 {
		trips = trips[:min(n, len(trips))]
		vehicles = vehicles[:min(n, len(vehicles))]
	}
	cfg := spew.ConfigState{
		Indent:                  "  ",
		DisablePointerAddresses: true,
		DisableCapacities:       true,
		SortKeys:                true,
		MaxDepth:                4,
	}
	for i := range trips {
		cfg.Fdump(w, trips[i])
	}
	for i := range vehicles {
		cfg.Fdump(w, vehicles[i])
	}
}

func printFeedJSON(w io.Writer, raw []byte, n int) error {
	msg, err := zetgtfs.DecodeFeed(raw)
	if err != nil {
		return err
	}
	if n >= 0 && len(msg.Entity) > n {
		msg.Entity = msg.Entity[:n]
	}
	b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(msg)
	if err != nil {
		return fmt.Errorf("cannot encode feed as JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func infoCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Summary of the loaded static feed and schedule store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(o, cmd, func(s *session) error {
				return printInfo(s)
			})
		},
	}
}

func printInfo(s *session) error {
	manager := s.app.GtfsManager
	s.p.Divider("GTFS statika")

	static := manager.Static()
	if static == nil {
		s.p.Printf("Statički podaci nisu učitani: %v\n", manager.StaticErr())
		s.p.Printf("Vozni park: %d zapisa\n", s.app.Fleet.Len())
		return nil
	}

	in := report.InfoInput{
		Static:    static,
		DBPath:    s.app.Config.DBPath,
		FleetSize: s.app.Fleet.Len(),
		Bounds:    manager.RegionBounds(),
	}
	if manager.GtfsDB != nil {
		counts, err := manager.GtfsDB.TableCounts()
		if err != nil {
			return err
		}
		in.TableCounts = counts
	}
	s.p.Info(in)
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
		},
	}
}
