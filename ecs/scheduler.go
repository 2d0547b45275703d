package ecs

import (
	"fmt"
	"time"

	"github.com/astraweave-go/astraweave/core"
)

// Stage is one phase of a tick. The default ordering is PreSimulation,
// Simulation, PostSimulation, Presentation; callers may register
// additional stages via Scheduler.AddStage for extensibility.
type Stage string

const (
	PreSimulation  Stage = "pre_simulation"
	Simulation     Stage = "simulation"
	PostSimulation Stage = "post_simulation"
	Presentation   Stage = "presentation"
)

// DefaultStages is the scheduler's default stage ordering.
var DefaultStages = []Stage{PreSimulation, Simulation, PostSimulation, Presentation}

// System is a unit of per-tick work. It may read/write the world and its
// resources/events freely. Systems within a stage run sequentially in
// registration order, so ordering between them is always well-defined.
type System func(w *World, r *Resources, e *Events, dt time.Duration) error

// Scheduler runs systems in stage order every tick. It owns no World
// itself (callers pass the World/Resources/Events to Tick), so the same
// Scheduler can drive a fixed-dt replay loop or a variable-dt live loop
// interchangeably, per the "dt is advisory" contract.
type Scheduler struct {
	order      []Stage
	systems    map[Stage][]namedSystem
	logger     core.Logger
	tainted    bool
	tickCount  uint64
}

type namedSystem struct {
	name string
	fn   System
}

// SchedulerOption configures a new Scheduler.
type SchedulerOption func(*Scheduler)

// WithStages overrides the default stage ordering.
func WithStages(stages ...Stage) SchedulerOption {
	return func(s *Scheduler) { s.order = stages }
}

// WithSchedulerLogger attaches a Logger for system-error reporting.
func WithSchedulerLogger(l core.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// NewScheduler creates a Scheduler with the default four stages.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		order:   append([]Stage{}, DefaultStages...),
		systems: make(map[Stage][]namedSystem),
		logger:  &core.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddStage appends a new stage to the end of the scheduler's ordering, if
// not already present.
func (s *Scheduler) AddStage(stage Stage) {
	for _, existing := range s.order {
		if existing == stage {
			return
		}
	}
	s.order = append(s.order, stage)
}

// AddSystem registers a named system to run during the given stage, in
// the order AddSystem calls were made for that stage.
func (s *Scheduler) AddSystem(stage Stage, name string, fn System) {
	s.systems[stage] = append(s.systems[stage], namedSystem{name: name, fn: fn})
}

// Tainted reports whether any system has panicked (and been recovered)
// in a prior tick, per the "panic marks the tick tainted" failure
// policy. Once set it stays set. The host may inspect this to decide
// whether to keep ticking.
func (s *Scheduler) Tainted() bool {
	return s.tainted
}

// TickCount returns how many ticks have completed.
func (s *Scheduler) TickCount() uint64 {
	return s.tickCount
}

// Tick runs every stage in order, each stage's systems sequentially. A
// system returning an error is logged and the scheduler proceeds to the
// next system: it never aborts a tick on a single system's error. A
// panicking system is recovered so it cannot corrupt the rest of the
// tick; the tick is marked tainted and execution continues to the next
// system, leaving the final disposition to the host.
func (s *Scheduler) Tick(w *World, r *Resources, ev *Events, dt time.Duration) {
	for _, stage := range s.order {
		for _, sys := range s.systems[stage] {
			s.runSystem(stage, sys, w, r, ev, dt)
		}
	}
	s.tickCount++
}

func (s *Scheduler) runSystem(stage Stage, sys namedSystem, w *World, r *Resources, ev *Events, dt time.Duration) {
	defer func() {
		if rec := recover(); rec != nil {
			s.tainted = true
			s.logger.Error("system panicked", map[string]interface{}{
				"stage":  string(stage),
				"system": sys.name,
				"panic":  fmt.Sprintf("%v", rec),
			})
		}
	}()
	if err := sys.fn(w, r, ev, dt); err != nil {
		s.logger.Warn("system returned error", map[string]interface{}{
			"stage":  string(stage),
			"system": sys.name,
			"error":  err.Error(),
		})
	}
}
