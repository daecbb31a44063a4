// Package storage keeps finished runs on disk: a metadata.json with the run
// parameters and summary metrics, and a samples.csv with one row per
// recorded snapshot.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/demcontact/internal/config"
	"github.com/san-kum/demcontact/internal/metrics"
	"github.com/san-kum/demcontact/internal/sim"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Timestamp  time.Time          `json:"timestamp"`
	Dt         float64            `json:"dt"`
	Duration   float64            `json:"duration"`
	Integrator string             `json:"integrator"`
	Particles  int                `json:"particles"`
	Steps      int                `json:"steps"`
	Searches   int                `json:"searches"`
	Metrics    map[string]float64 `json:"metrics"`
}

type column struct {
	name string
	get  func(*metrics.Snapshot) float64
	set  func(*metrics.Snapshot, float64)
}

var columns = []column{
	{"time", func(s *metrics.Snapshot) float64 { return s.Time }, func(s *metrics.Snapshot, v float64) { s.Time = v }},
	{"step", func(s *metrics.Snapshot) float64 { return float64(s.Step) }, func(s *metrics.Snapshot, v float64) { s.Step = int(v) }},
	{"kinetic", func(s *metrics.Snapshot) float64 { return s.Kinetic }, func(s *metrics.Snapshot, v float64) { s.Kinetic = v }},
	{"rotational", func(s *metrics.Snapshot) float64 { return s.Rotational }, func(s *metrics.Snapshot, v float64) { s.Rotational = v }},
	{"gravitational", func(s *metrics.Snapshot) float64 { return s.Gravitational }, func(s *metrics.Snapshot, v float64) { s.Gravitational = v }},
	{"elastic", func(s *metrics.Snapshot) float64 { return s.Elastic }, func(s *metrics.Snapshot, v float64) { s.Elastic = v }},
	{"dissipated", func(s *metrics.Snapshot) float64 { return s.Dissipated }, func(s *metrics.Snapshot, v float64) { s.Dissipated = v }},
	{"max_indentation", func(s *metrics.Snapshot) float64 { return s.MaxIndentation }, func(s *metrics.Snapshot, v float64) { s.MaxIndentation = v }},
	{"max_wall_indentation", func(s *metrics.Snapshot) float64 { return s.MaxWallIndentation }, func(s *metrics.Snapshot, v float64) { s.MaxWallIndentation = v }},
	{"max_relative_indentation", func(s *metrics.Snapshot) float64 { return s.MaxRelativeIndentation }, func(s *metrics.Snapshot, v float64) { s.MaxRelativeIndentation = v }},
	{"contacts", func(s *metrics.Snapshot) float64 { return float64(s.Contacts) }, func(s *metrics.Snapshot, v float64) { s.Contacts = int(v) }},
	{"wall_contacts", func(s *metrics.Snapshot) float64 { return float64(s.WallContacts) }, func(s *metrics.Snapshot, v float64) { s.WallContacts = int(v) }},
	{"wall_load", func(s *metrics.Snapshot) float64 { return s.WallLoad }, func(s *metrics.Snapshot, v float64) { s.WallLoad = v }},
	{"wear", func(s *metrics.Snapshot) float64 { return s.Wear }, func(s *metrics.Snapshot, v float64) { s.Wear = v }},
}

// Columns returns the sample column names in file order.
func Columns() []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.name
	}
	return names
}

// Field returns the named column of every sample.
func Field(samples []metrics.Snapshot, name string) ([]float64, error) {
	for _, c := range columns {
		if c.name != name {
			continue
		}
		out := make([]float64, len(samples))
		for i := range samples {
			out[i] = c.get(&samples[i])
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown field %q (available: %v)", name, Columns())
}

// Save writes a finished run and returns its id.
func (s *Store) Save(cfg *config.Config, particles int, result *sim.Result) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", cfg.Name, now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Name:       cfg.Name,
		Timestamp:  now,
		Dt:         cfg.Dt,
		Duration:   cfg.Duration,
		Integrator: cfg.Integrator,
		Particles:  particles,
		Steps:      result.StepsTaken,
		Searches:   result.Searches,
		Metrics:    result.Metrics,
	}
	if err := writeJSON(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		return "", err
	}
	if err := writeSamples(filepath.Join(runDir, "samples.csv"), result.Samples); err != nil {
		return "", err
	}
	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeSamples(path string, samples []metrics.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Columns()); err != nil {
		return err
	}
	row := make([]string, len(columns))
	for i := range samples {
		for j, c := range columns {
			row[j] = strconv.FormatFloat(c.get(&samples[i]), 'g', -1, 64)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns the stored runs, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadSamples reads the recorded snapshots of a run. Columns are matched by
// header name; unknown columns are ignored.
func (s *Store) LoadSamples(runID string) ([]metrics.Snapshot, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "samples.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []metrics.Snapshot{}, nil
	}

	byName := make(map[string]column, len(columns))
	for _, c := range columns {
		byName[c.name] = c
	}
	header := records[0]

	samples := make([]metrics.Snapshot, 0, len(records)-1)
	for _, record := range records[1:] {
		var snap metrics.Snapshot
		for j, field := range record {
			if j >= len(header) {
				break
			}
			c, ok := byName[header[j]]
			if !ok {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: column %s: %w", runID, header[j], err)
			}
			c.set(&snap, v)
		}
		samples = append(samples, snap)
	}
	return samples, nil
}
