package cli

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	optionRoute = iota + 1
	optionVehicle
	optionStopID
	optionStopName
	optionFleet
	optionExit
)

// runMenu is the interactive loop. It returns nil when the user exits or the
// input ends; per-action errors are printed and the menu continues.
func (s *session) runMenu(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		again, err := s.menuOnce(ctx)
		if errors.Is(err, errInputClosed) {
			s.p.Println("\nIzlaz.")
			return nil
		}
		if err != nil {
			return err
		}
		if !again {
			return nil
		}
	}
}

// menuOnce shows the menu and runs one action. again reports whether the menu
// should be shown again.
func (s *session) menuOnce(ctx context.Context) (again bool, err error) {
	s.p.Divider("Izbornik")
	s.p.Println("1) Pretraga po liniji")
	s.p.Println("2) Pretraga po vozilu (garažni broj ili registracija)")
	s.p.Println("3) Pretraga po ID stanice")
	s.p.Println("4) Pretraga po nazivu stanice")
	s.p.Println("5) Statistika voznog parka")
	s.p.Println("6) Izlaz")

	raw, err := s.prompt("Unesite broj opcije: ")
	if err != nil {
		return false, err
	}
	if raw == strconv.Itoa(optionExit) {
		s.p.Println("Kraj.")
		return false, nil
	}
	choice, err := strconv.Atoi(raw)
	if err != nil {
		s.p.Println("Nevažeći unos.")
		return true, nil
	}
	if choice < optionRoute || choice > optionFleet {
		s.p.Println("Nepoznata opcija.")
		return true, nil
	}

	src := SourceBoth
	at := s.app.Now()
	if choice != optionFleet {
		var ok bool
		src, at, ok, err = s.promptSource()
		if err != nil {
			return false, err
		}
		if !ok {
			return true, nil
		}
	}

	if err := s.runAction(ctx, choice, src, at); err != nil {
		if errors.Is(err, errInputClosed) {
			return false, err
		}
		s.p.Println("Neočekivana pogreška:", err)
	}

	answer, err := s.prompt("\nPritisnite Enter za nastavak ili unesite 'R' za povratak na izbornik: ")
	if err != nil {
		return false, err
	}
	return strings.EqualFold(answer, "R"), nil
}

// promptSource asks for the data source and, for static lookups, the date and
// time. ok is false when the input was rejected.
func (s *session) promptSource() (src Source, at time.Time, ok bool, err error) {
	s.p.Println("\nIzaberi izvor podataka:")
	s.p.Println("1) Realtime (trenutni GTFS-RT)")
	s.p.Println("2) Statika za određeni datum/vrijeme (GTFS datoteke)")
	s.p.Println("3) Oba")

	raw, err := s.prompt("Unesite 1/2/3: ")
	if err != nil {
		return 0, time.Time{}, false, err
	}
	if raw != "1" && raw != "2" && raw != "3" {
		s.p.Println("Nevažeći unos.")
		return 0, time.Time{}, false, nil
	}
	src, _ = ParseSource(raw)

	now := s.app.Now()
	if !src.Static() {
		return src, now, true, nil
	}

	date, err := s.prompt("Datum (YYYY-MM-DD, enter za danas): ")
	if err != nil {
		return 0, time.Time{}, false, err
	}
	hm, err := s.prompt("Vrijeme (HH:MM, enter za 00:00): ")
	if err != nil {
		return 0, time.Time{}, false, err
	}
	at, err = resolveAt(date, hm, now)
	if err != nil {
		s.p.Println("Neispravan datum/vrijeme.")
		return 0, time.Time{}, false, nil
	}
	return src, at, true, nil
}

func (s *session) runAction(ctx context.Context, choice int, src Source, at time.Time) error {
	switch choice {
	case optionRoute:
		q, err := s.prompt("Unesite broj linije ili route_id (npr. 109): ")
		if err != nil {
			return err
		}
		return s.searchRoute(ctx, routeQuery{Query: q, Source: src, At: at}, s.promptChoice)
	case optionVehicle:
		q, err := s.prompt("Unesite garažni broj ili registraciju (npr. 432 ili ZG-8801-GR): ")
		if err != nil {
			return err
		}
		return s.searchVehicle(ctx, q, src)
	case optionStopID:
		q, err := s.prompt("Unesite stop_id (ID stanice iz stops.txt): ")
		if err != nil {
			return err
		}
		return s.searchStopID(ctx, stopQuery{StopID: q, Source: src, At: at})
	case optionStopName:
		q, err := s.prompt("Unesite dio imena stanice (npr. 'Glavni kolodvor'): ")
		if err != nil {
			return err
		}
		return s.searchStopName(ctx, q, stopQuery{Source: src, At: at}, s.promptChoice)
	case optionFleet:
		s.fleetStats(0)
		return nil
	default:
		s.p.Println("Nepoznata opcija.")
		return nil
	}
}
