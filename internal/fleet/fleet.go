// Package fleet reads the operator's vehicle registry ("vozni park"): one vehicle
// per line as "garage number / registration / model".
package fleet

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/ficojok/ZETdev/internal/logging"
)

var ErrNotFound = errors.New("vehicle not found in fleet registry")

// Vehicle is one registry line. Garage and Registration are empty when the line
// did not have three slash-separated parts; Model then holds the whole line.
type Vehicle struct {
	Garage       string
	Registration string
	Model        string
	Raw          string
}

// ModelCount is one row of the per-model breakdown.
type ModelCount struct {
	Model string
	Count int
}

type Stats struct {
	Total   int
	ByModel []ModelCount
}

// Registry is an immutable, ordered view of the fleet file.
type Registry struct {
	vehicles []Vehicle
	byGarage map[string]int
}

// Load reads the registry at path. A missing file yields an empty registry.
func Load(path string) (*Registry, error) {
	logger := slog.Default().With(slog.String("component", "fleet_loader"))

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		logging.LogOperation(logger, "fleet_file_missing", slog.String("path", path))
		return NewRegistry(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("error opening fleet file: %w", err)
	}
	defer logging.SafeCloseWithLogging(f, logger, "fleet_file")

	reg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("error reading fleet file %s: %w", path, err)
	}

	logging.LogOperation(logger, "fleet_loaded",
		slog.String("path", path),
		slog.Int("vehicles", reg.Len()))
	return reg, nil
}

// Parse reads registry lines from r.
func Parse(r io.Reader) (*Registry, error) {
	var vehicles []Vehicle

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		vehicles = append(vehicles, parseLine(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return NewRegistry(vehicles), nil
}

func parseLine(line string) Vehicle {
	parts := strings.Split(line, "/")
	if len(parts) < 3 {
		return Vehicle{Model: line, Raw: line}
	}
	return Vehicle{
		Garage:       strings.TrimSpace(parts[0]),
		Registration: strings.TrimSpace(parts[1]),
		Model:        strings.TrimSpace(strings.Join(parts[2:], "/")),
		Raw:          line,
	}
}

// NewRegistry indexes vehicles by garage number. The first line wins on duplicates.
func NewRegistry(vehicles []Vehicle) *Registry {
	byGarage := make(map[string]int, len(vehicles))
	for i, v := range vehicles {
		if v.Garage == "" {
			continue
		}
		if _, exists := byGarage[v.Garage]; !exists {
			byGarage[v.Garage] = i
		}
	}
	return &Registry{vehicles: vehicles, byGarage: byGarage}
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.vehicles)
}

// All returns the vehicles in file order.
func (r *Registry) All() []Vehicle {
	if r == nil {
		return nil
	}
	return r.vehicles
}

// ByGarage looks up the exact garage number, which is also the vehicle ID used
// by the realtime feed.
func (r *Registry) ByGarage(garage string) (Vehicle, bool) {
	if r == nil || garage == "" {
		return Vehicle{}, false
	}
	i, ok := r.byGarage[garage]
	if !ok {
		return Vehicle{}, false
	}
	return r.vehicles[i], true
}

// Search matches the garage number exactly, or the registration or raw line as a
// case-insensitive substring.
func (r *Registry) Search(query string) []Vehicle {
	q := strings.TrimSpace(query)
	if r == nil || q == "" {
		return nil
	}
	lower := strings.ToLower(q)

	var out []Vehicle
	for _, v := range r.vehicles {
		switch {
		case v.Garage != "" && v.Garage == q:
		case v.Registration != "" && strings.Contains(strings.ToLower(v.Registration), lower):
		case strings.Contains(strings.ToLower(v.Raw), lower):
		default:
			continue
		}
		out = append(out, v)
	}
	return out
}

// Lookup is Search that reports ErrNotFound for an empty result.
func (r *Registry) Lookup(query string) ([]Vehicle, error) {
	found := r.Search(query)
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, query)
	}
	return found, nil
}

// Stats counts vehicles per model, most common first.
func (r *Registry) Stats() Stats {
	counts := make(map[string]int)
	for _, v := range r.All() {
		counts[v.Model]++
	}

	byModel := make([]ModelCount, 0, len(counts))
	for model, n := range counts {
		byModel = append(byModel, ModelCount{Model: model, Count: n})
	}
	sort.Slice(byModel, func(i, j int) bool {
		if byModel[i].Count != byModel[j].Count {
			return byModel[i].Count > byModel[j].Count
		}
		return byModel[i].Model < byModel[j].Model
	})

	return Stats{Total: r.Len(), ByModel: byModel}
}
