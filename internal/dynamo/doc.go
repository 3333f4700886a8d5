// Package dynamo provides the simulation primitives the cohort model is
// integrated with.
//
// The package defines the contract between a system of ordinary
// differential equations and the numerical machinery that advances it:
//
//   - [State]: vector representing system state
//   - [System]: interface for ODE systems (dX/dt = f(X, t))
//   - [Constrained]: optional post-step projection onto the admissible states
//   - [Integrator], [AdaptiveIntegrator]: numerical steppers
//   - [Simulator]: orchestrates a single run and records the trajectory
//   - [Ensemble]: runs many independent simulations in parallel
//
// # Example
//
//	model, _ := cohort.NewModel(cohort.AcerSaccharum())
//	sim := dynamo.New(model, integrators.NewRK4())
//	result, _ := sim.Run(ctx, dynamo.State{0.5, 0}, cfg)
//	b, _ := result.At(120)
//
// # Thread Safety
//
// Simulator and integrator instances are NOT thread-safe. For parallel
// simulations, use the [Ensemble] type which builds a fresh integrator
// for every run.
package dynamo
