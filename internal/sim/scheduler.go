package sim

import (
	"math"

	"github.com/pkg/errors"
)

// StepContext is passed to the step callback for every executed step.
// It is derived only from the scheduler's own state and the Advance/CatchUp
// arguments, never from wall-clock reads, so identical call sequences
// replay to identical contexts.
type StepContext struct {
	Step           uint64
	IsCatchUp      bool
	IsFirstInBatch bool
	BacklogMs      float64 // accumulator remaining when this step executes
}

// StepFunc is invoked once per executed step. It must not panic; command
// level failures are already isolated at the dispatcher boundary.
type StepFunc func(StepContext)

// SchedulerConfig holds the fixed-timestep parameters. All step budgeting
// lives here: the host expresses its frame and offline limits, the
// scheduler enforces them.
type SchedulerConfig struct {
	StepSizeMs                 float64
	MaxForegroundStepsPerFrame int
	MaxBackgroundStepsPerFrame int
	MaxOfflineCatchUpMs        float64
	MaxOfflineBatchSteps       int
}

// CatchUpResult reports the outcome of an offline catch-up request.
type CatchUpResult struct {
	RequestedMs   float64 `json:"requestedMs"`
	SimulatedMs   float64 `json:"simulatedMs"`
	OverflowMs    float64 `json:"overflowMs"`
	ExecutedSteps int     `json:"executedSteps"`
	BacklogMs     float64 `json:"backlogMs"`
}

// Scheduler converts wall-clock elapsed milliseconds into discrete step
// executions through an accumulator. Unconsumed time is retained, never
// dropped, so no elapsed time is ever lost to rounding.
type Scheduler struct {
	cfg         SchedulerConfig
	fn          StepFunc
	accumulator float64
	step        uint64
	throttled   bool
}

// NewScheduler validates the configuration and returns a scheduler.
// Configuration errors are the only fatal errors in the core; everything
// after construction degrades to telemetry.
func NewScheduler(cfg SchedulerConfig, fn StepFunc) (*Scheduler, error) {
	if !(cfg.StepSizeMs > 0) || math.IsInf(cfg.StepSizeMs, 0) {
		return nil, errors.Errorf("scheduler: step size must be a positive finite ms value, got %v", cfg.StepSizeMs)
	}
	if cfg.MaxForegroundStepsPerFrame <= 0 {
		return nil, errors.Errorf("scheduler: max foreground steps per frame must be positive, got %d", cfg.MaxForegroundStepsPerFrame)
	}
	if cfg.MaxBackgroundStepsPerFrame <= 0 {
		return nil, errors.Errorf("scheduler: max background steps per frame must be positive, got %d", cfg.MaxBackgroundStepsPerFrame)
	}
	if cfg.MaxOfflineCatchUpMs < 0 || math.IsNaN(cfg.MaxOfflineCatchUpMs) {
		return nil, errors.Errorf("scheduler: max offline catch-up ms must be non-negative, got %v", cfg.MaxOfflineCatchUpMs)
	}
	if cfg.MaxOfflineBatchSteps <= 0 {
		return nil, errors.Errorf("scheduler: max offline batch steps must be positive, got %d", cfg.MaxOfflineBatchSteps)
	}
	if fn == nil {
		return nil, errors.New("scheduler: step callback is required")
	}
	return &Scheduler{cfg: cfg, fn: fn}, nil
}

// SetThrottled switches between the foreground and background per-frame
// step budgets. Hosts flip this when the window loses focus.
func (s *Scheduler) SetThrottled(throttled bool) {
	s.throttled = throttled
}

// Throttled reports whether the background budget is active.
func (s *Scheduler) Throttled() bool { return s.throttled }

// Step returns the next step number to execute.
func (s *Scheduler) Step() uint64 { return s.step }

// BacklogMs returns the unconsumed accumulated time.
func (s *Scheduler) BacklogMs() float64 { return s.accumulator }

// StepSizeMs returns the configured step size.
func (s *Scheduler) StepSizeMs() float64 { return s.cfg.StepSizeMs }

// validElapsed rejects NaN, Infinity and non-positive elapsed times.
// Invalid scheduler input is a no-op, not an exception.
func validElapsed(elapsedMs float64) bool {
	return elapsedMs > 0 && !math.IsInf(elapsedMs, 0) && !math.IsNaN(elapsedMs)
}

// Advance adds elapsed time to the accumulator and executes whole steps,
// capped per call by the active frame budget. Returns the number of steps
// executed.
func (s *Scheduler) Advance(elapsedMs float64) int {
	if !validElapsed(elapsedMs) {
		return 0
	}

	s.accumulator += elapsedMs

	budget := s.cfg.MaxForegroundStepsPerFrame
	if s.throttled {
		budget = s.cfg.MaxBackgroundStepsPerFrame
	}

	executed := 0
	for s.accumulator >= s.cfg.StepSizeMs && executed < budget {
		s.accumulator -= s.cfg.StepSizeMs
		s.fn(StepContext{
			Step:           s.step,
			IsCatchUp:      false,
			IsFirstInBatch: executed == 0,
			BacklogMs:      s.accumulator,
		})
		s.step++
		executed++
	}
	return executed
}

// CatchUp simulates offline elapsed time. Total simulated time is capped
// at MaxOfflineCatchUpMs; execution proceeds in batches of at most
// MaxOfflineBatchSteps steps (IsFirstInBatch marks each batch start) until
// the capped time is consumed. Time under one step size is retained in the
// accumulator.
func (s *Scheduler) CatchUp(elapsedMs float64) CatchUpResult {
	if !validElapsed(elapsedMs) {
		return CatchUpResult{}
	}

	simulated := elapsedMs
	if simulated > s.cfg.MaxOfflineCatchUpMs {
		simulated = s.cfg.MaxOfflineCatchUpMs
	}

	s.accumulator += simulated

	executed := 0
	for s.accumulator >= s.cfg.StepSizeMs {
		for batch := 0; batch < s.cfg.MaxOfflineBatchSteps && s.accumulator >= s.cfg.StepSizeMs; batch++ {
			s.accumulator -= s.cfg.StepSizeMs
			s.fn(StepContext{
				Step:           s.step,
				IsCatchUp:      true,
				IsFirstInBatch: batch == 0,
				BacklogMs:      s.accumulator,
			})
			s.step++
			executed++
		}
	}

	return CatchUpResult{
		RequestedMs:   elapsedMs,
		SimulatedMs:   simulated,
		OverflowMs:    elapsedMs - simulated,
		ExecutedSteps: executed,
		BacklogMs:     s.accumulator,
	}
}
