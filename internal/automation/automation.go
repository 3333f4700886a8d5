// Package automation runs batches of cohort simulations: scripted
// scenarios, parameter sweeps and Monte Carlo perturbation studies.
package automation

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/cohortsim/internal/cohort"
	"github.com/san-kum/cohortsim/internal/config"
	"github.com/san-kum/cohortsim/internal/dynamo"
	"github.com/san-kum/cohortsim/internal/experiment"
)

// Runner holds what every batch shares.
type Runner struct {
	Registry *experiment.Registry
	Log      logrus.FieldLogger
	Workers  int
	Recorder experiment.Recorder
}

func NewRunner(log logrus.FieldLogger) *Runner {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Runner{Registry: experiment.NewRegistry(), Log: log}
}

// Scenario defines a scripted sequence of runs
type Scenario struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Runs        []ScenarioRun `yaml:"runs"`
}

// ScenarioRun is one run of a scenario. Its keys overlay the named preset,
// or the default configuration when no preset is given.
type ScenarioRun struct {
	Name   string
	Preset string
	SaveAs string
	Config *config.Config
}

func (r *ScenarioRun) UnmarshalYAML(node *yaml.Node) error {
	var head struct {
		Name   string `yaml:"name"`
		Preset string `yaml:"preset"`
		SaveAs string `yaml:"save_as"`
	}
	if err := node.Decode(&head); err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	if head.Preset != "" {
		if cfg = config.GetPreset(head.Preset); cfg == nil {
			return fmt.Errorf("line %d: unknown preset %q", node.Line, head.Preset)
		}
	}
	if err := node.Decode(cfg); err != nil {
		return err
	}

	r.Name, r.Preset, r.SaveAs, r.Config = head.Name, head.Preset, head.SaveAs, cfg
	if r.Name == "" {
		r.Name = cfg.Species
	}
	return nil
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Runs) == 0 {
		return nil, fmt.Errorf("scenario %q has no runs", scenario.Name)
	}
	return &scenario, nil
}

// Outcome is one finished scenario run.
type Outcome struct {
	Run    ScenarioRun
	Result *dynamo.Result
}

// RunScenario executes the runs in order and stops at the first failure,
// returning the outcomes completed so far.
func (r *Runner) RunScenario(ctx context.Context, scenario *Scenario) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(scenario.Runs))
	log := r.Log.WithField("scenario", scenario.Name)

	for i, run := range scenario.Runs {
		log.WithFields(logrus.Fields{"run": run.Name, "step": i + 1, "of": len(scenario.Runs)}).Info("running")

		opts := []experiment.Option{experiment.WithRegistry(r.Registry), experiment.WithLogger(log)}
		if r.Recorder != nil {
			opts = append(opts, experiment.WithRecorder(r.Recorder))
		}
		exp, err := experiment.New(run.Config, opts...)
		if err != nil {
			return outcomes, fmt.Errorf("run %d (%s): %w", i+1, run.Name, err)
		}

		result, err := exp.Run(ctx)
		if err != nil {
			return outcomes, fmt.Errorf("run %d (%s): %w", i+1, run.Name, err)
		}

		outcomes = append(outcomes, Outcome{Run: run, Result: result})
	}

	return outcomes, nil
}

// ensemble runs one model per parameter set on the configured integrator.
func (r *Runner) ensemble(ctx context.Context, base *config.Config, params []cohort.Parameters, x0s []dynamo.State) ([]*dynamo.Result, error) {
	newIntegrator, err := r.Registry.IntegratorFactory(base.Integrator)
	if err != nil {
		return nil, err
	}
	comp, err := base.Competition.Build()
	if err != nil {
		return nil, err
	}

	runs := make([]dynamo.Run, len(params))
	for i, p := range params {
		var opts []cohort.Option
		if comp != nil {
			opts = append(opts, cohort.WithCompetition(comp))
		}
		m, err := cohort.NewModel(p, opts...)
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", i, err)
		}
		runs[i] = dynamo.Run{Name: base.Species, System: m, X0: x0s[i]}
	}

	return dynamo.NewEnsemble(newIntegrator, r.Workers).Run(ctx, runs, base.SimConfig())
}
