// Package storage persists cohort runs and their trajectories.
package storage

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/cohortsim/internal/cohort"
	"github.com/san-kum/cohortsim/internal/config"
	"github.com/san-kum/cohortsim/internal/dynamo"
)

// Columns names the stored state components, after time.
var Columns = []string{"biomass", "dead_wood"}

type RunMetadata struct {
	ID          string             `json:"id"`
	Species     string             `json:"species"`
	Timestamp   time.Time          `json:"timestamp"`
	Seed        int64              `json:"seed"`
	Dt          float64            `json:"dt"`
	Duration    float64            `json:"duration"`
	Integrator  string             `json:"integrator"`
	Adaptive    bool               `json:"adaptive"`
	Competition string             `json:"competition,omitempty"`
	Params      cohort.Parameters  `json:"params"`
	Steps       int                `json:"steps"`
	Clamped     int                `json:"clamped"`
	Metrics     map[string]float64 `json:"metrics"`
}

// Backend is a run store.
type Backend interface {
	Init() error
	Save(meta RunMetadata, result *dynamo.Result) (string, error)
	List() ([]RunMetadata, error)
	Load(runID string) (*RunMetadata, error)
	LoadStates(runID string) ([][]float64, []float64, error)
	Close() error
}

// Open returns the backend of the given kind rooted at path: a directory
// for "file", a database file for "sqlite".
func Open(kind, path string, log logrus.FieldLogger) (Backend, error) {
	if log == nil {
		log = discardLogger()
	}
	switch kind {
	case "", "file":
		return NewFileStore(path, log), nil
	case "sqlite":
		return OpenSQLite(path, log)
	default:
		return nil, fmt.Errorf("unknown store: %s", kind)
	}
}

// NewMetadata describes a finished run of cfg.
func NewMetadata(cfg *config.Config, result *dynamo.Result) (RunMetadata, error) {
	params, err := cfg.Parameters()
	if err != nil {
		return RunMetadata{}, err
	}
	now := time.Now().UTC()
	return RunMetadata{
		ID:          newRunID(cfg.Species, now),
		Species:     cfg.Species,
		Timestamp:   now,
		Seed:        cfg.Seed,
		Dt:          cfg.Dt,
		Duration:    cfg.Duration,
		Integrator:  cfg.Integrator,
		Adaptive:    cfg.Adaptive,
		Competition: cfg.Competition.Kind,
		Params:      params,
		Steps:       result.StepsTaken,
		Clamped:     result.Clamped,
		Metrics:     result.Metrics,
	}, nil
}

func newRunID(species string, ts time.Time) string {
	return fmt.Sprintf("%s_%d", species, ts.UnixNano())
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
