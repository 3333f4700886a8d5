package experiment_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/cohortsim/internal/cohort"
	"github.com/san-kum/cohortsim/internal/config"
	"github.com/san-kum/cohortsim/internal/dynamo"
	"github.com/san-kum/cohortsim/internal/experiment"
)

func run(cfg *config.Config, opts ...experiment.Option) *dynamo.Result {
	exp, err := experiment.New(cfg, opts...)
	Expect(err).NotTo(HaveOccurred())
	res, err := exp.Run(context.Background())
	Expect(err).NotTo(HaveOccurred())
	Expect(res.Errors).To(BeEmpty())
	return res
}

func at(res *dynamo.Result, t float64) dynamo.State {
	x, err := res.At(t)
	Expect(err).NotTo(HaveOccurred())
	return x
}

type countingRecorder struct {
	species string
	runs    int
}

func (c *countingRecorder) RecordRun(species string, res *dynamo.Result, elapsed time.Duration) {
	c.species = species
	c.runs++
}

var _ = Describe("Cohort scenarios", func() {
	Context("sugar maple from a seedling cohort", func() {
		var res *dynamo.Result

		BeforeEach(func() {
			res = run(config.GetPreset("canonical"))
		})

		It("levels off near the species asymptote", func() {
			peak := floats.Max(res.Series(cohort.Biomass))
			Expect(peak).To(BeNumerically(">=", 22))
			Expect(peak).To(BeNumerically("<=", 26))
		})

		It("keeps dead wood on a plateau after year 50", func() {
			ref := at(res, 50)[cohort.DeadWood]
			Expect(ref).To(BeNumerically("~", 2.5, 0.1))
			for i, t := range res.Times {
				if t < 50 {
					continue
				}
				// About a tenth of the living biomass.
				Expect(res.States[i][cohort.DeadWood]).To(BeNumerically("~", 2.5, 0.1), "t=%v", t)
				Expect(res.States[i][cohort.DeadWood]).To(BeNumerically("~", ref, 0.1), "t=%v", t)
			}
			Expect(res.Metrics["spread_dead_wood"]).To(BeNumerically("<", 1.0))
		})

		It("never leaves the non-negative orthant", func() {
			Expect(res.Metrics["non_negative"]).To(Equal(1.0))
		})
	})

	Context("short-lived versus long-lived species", func() {
		It("senesces early while sugar maple is still growing", func() {
			short := run(config.GetPreset("short_lived"))
			peak := floats.Max(short.Series(cohort.Biomass))
			Expect(at(short, 70)[cohort.Biomass]).To(BeNumerically("<", 0.5*peak))

			cfg := config.GetPreset("canonical")
			cfg.Duration = 100
			maple := run(cfg)
			Expect(at(maple, 70)[cohort.Biomass]).To(BeNumerically(">", at(maple, 30)[cohort.Biomass]))
		})
	})

	Context("competition for growing space", func() {
		It("lowers the peak when competitors exceed the free space", func() {
			alone := run(config.GetPreset("canonical"))
			crowded := run(config.GetPreset("competition"))

			Expect(floats.Max(crowded.Series(cohort.Biomass))).
				To(BeNumerically("<", floats.Max(alone.Series(cohort.Biomass))))
		})

		It("reads a ramping competitor at every step", func() {
			ramp := run(config.GetPreset("competition_ramp"))
			final, _ := ramp.Final()
			// b_other reaches 60 by t=300, leaving no room for the cohort.
			Expect(final[cohort.Biomass]).To(BeNumerically("<", 1))
		})
	})

	Context("long runs past maximum age", func() {
		It("stays non-negative with adaptive steps", func() {
			res := run(config.GetPreset("old_growth"))
			final, tEnd := res.Final()

			Expect(tEnd).To(BeNumerically("~", 600, 1e-6))
			Expect(final[cohort.Biomass]).To(BeZero())
			Expect(final[cohort.DeadWood]).To(BeNumerically(">=", 0))
			for _, x := range res.States {
				Expect(x[cohort.Biomass]).To(BeNumerically(">=", 0))
				Expect(x[cohort.DeadWood]).To(BeNumerically(">=", 0))
			}
		})

		It("runs every preset with adaptive steps", func() {
			for _, name := range config.ListPresets() {
				cfg := config.GetPreset(name)
				cfg.Integrator = "rk45"
				cfg.Adaptive = true
				// Later years of the ramp leave no free space at all.
				cfg.Duration = min(cfg.Duration, 100)

				exp, err := experiment.New(cfg)
				Expect(err).NotTo(HaveOccurred(), name)
				res, err := exp.Run(context.Background())
				Expect(err).NotTo(HaveOccurred(), name)
				Expect(res.Errors).To(BeEmpty(), name)

				_, tEnd := res.Final()
				Expect(tEnd).To(BeNumerically("~", cfg.Duration, 1e-6), name)
			}
		})

		It("agrees with fixed steps at the peak", func() {
			cfg := config.GetPreset("canonical")
			fixed := run(cfg)

			cfg.Integrator = "rk45"
			cfg.Adaptive = true
			adaptive := run(cfg)

			Expect(floats.Max(adaptive.Series(cohort.Biomass))).
				To(BeNumerically("~", floats.Max(fixed.Series(cohort.Biomass)), 0.01))
		})
	})

	Context("experiment wiring", func() {
		It("rejects unknown integrators", func() {
			cfg := config.DefaultConfig()
			cfg.Integrator = "leapfrog"
			_, err := experiment.New(cfg)
			Expect(err).To(MatchError(ContainSubstring("unknown integrator")))
		})

		It("rejects invalid parameters", func() {
			cfg := config.DefaultConfig()
			cfg.Params = map[string]float64{"b_max": -1}
			_, err := experiment.New(cfg)
			Expect(err).To(MatchError(cohort.ErrInvalidParameter))
		})

		It("reports finished runs to the recorder", func() {
			rec := &countingRecorder{}
			cfg := config.DefaultConfig()
			cfg.Duration = 10
			run(cfg, experiment.WithRecorder(rec))

			Expect(rec.runs).To(Equal(1))
			Expect(rec.species).To(Equal(config.DefaultSpecies))
		})
	})
})
