package report

import (
	"fmt"
	"strings"

	"github.com/ficojok/ZETdev/internal/fleet"
)

// DefaultFleetListLimit caps the fleet listing.
const DefaultFleetListLimit = 50

func (p *Printer) FleetRecords(vehicles []fleet.Vehicle) {
	if len(vehicles) == 0 {
		fmt.Fprintln(p.w, "Vozilo nije pronađeno u voznipark.txt.")
		return
	}
	for _, v := range vehicles {
		fmt.Fprintf(p.w, " Garažni broj: %s\n", orDash(v.Garage))
		fmt.Fprintf(p.w, " Registracija: %s\n", orDash(v.Registration))
		fmt.Fprintf(p.w, " Model: %s\n", orDash(v.Model))
		fmt.Fprintln(p.w, strings.Repeat("-", 40))
	}
}

// FleetStats prints the record count, the first limit records and the
// per-model breakdown.
func (p *Printer) FleetStats(registry *fleet.Registry, limit int) {
	if registry.Len() == 0 {
		fmt.Fprintln(p.w, "Datoteka voznipark.txt nije pronađena ili je prazna.")
		return
	}
	if limit <= 0 {
		limit = DefaultFleetListLimit
	}

	stats := registry.Stats()
	fmt.Fprintf(p.w, "Ukupno zapisa u voznipark.txt: %d\n", stats.Total)
	for i, v := range registry.All() {
		if i == limit {
			break
		}
		fmt.Fprintf(p.w, " %s / %s / %s\n", orDash(v.Garage), orDash(v.Registration), orDash(v.Model))
	}

	fmt.Fprintln(p.w, "\nPo modelu:")
	for _, mc := range stats.ByModel {
		fmt.Fprintf(p.w, "  %-32s %d\n", mc.Model, mc.Count)
	}
}
