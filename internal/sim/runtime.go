package sim

import (
	"log"
	"sync"
	"time"

	"idleforge/internal/content"
)

// RuntimeConfig wires the scheduler and coordinator parameters with the
// host-side frame rate and journal output.
type RuntimeConfig struct {
	Scheduler   SchedulerConfig
	Coordinator CoordinatorConfig
	FrameMs     int    // wall-clock pump interval
	JournalPath string // empty disables the on-disk journal
}

// Runtime hosts one simulation instance behind a message-passing style
// boundary: commands are submitted from any goroutine, the step loop runs
// on the runtime's own goroutine, and consumers read lock-free snapshots.
// Inside the lock the core itself stays single-threaded and lock-free.
type Runtime struct {
	mu        sync.Mutex
	coord     *Coordinator
	sched     *Scheduler
	journal   *CommandJournal
	telemetry TelemetrySink

	frameInterval time.Duration
	running       bool
	ticker        *time.Ticker
	stopChan      chan struct{}
	lastTick      time.Time
}

// NewRuntime constructs the coordinator and scheduler from the content
// pack. Configuration errors are fatal here and only here.
func NewRuntime(pack *content.Pack, cfg RuntimeConfig, telemetry TelemetrySink) (*Runtime, error) {
	if telemetry == nil {
		telemetry = NopSink{}
	}
	cfg.Coordinator.StepSizeMs = cfg.Scheduler.StepSizeMs

	coord, err := NewCoordinator(pack, cfg.Coordinator, telemetry)
	if err != nil {
		return nil, err
	}
	sched, err := NewScheduler(cfg.Scheduler, coord.Step)
	if err != nil {
		return nil, err
	}

	frameMs := cfg.FrameMs
	if frameMs <= 0 {
		frameMs = 50
	}

	r := &Runtime{
		coord:         coord,
		sched:         sched,
		journal:       NewCommandJournal(),
		telemetry:     telemetry,
		frameInterval: time.Duration(frameMs) * time.Millisecond,
		stopChan:      make(chan struct{}),
	}
	if err := r.journal.Start(cfg.JournalPath); err != nil {
		return nil, err
	}
	return r, nil
}

// Coordinator returns the owned coordinator for direct wiring (replay,
// tests). Callers must not drive it concurrently with a started runtime.
func (r *Runtime) Coordinator() *Coordinator { return r.coord }

// Start begins the wall-clock pump that feeds measured elapsed time into
// the fixed-timestep scheduler.
func (r *Runtime) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.lastTick = time.Now()
	r.mu.Unlock()

	r.ticker = time.NewTicker(r.frameInterval)
	go func() {
		for {
			select {
			case <-r.ticker.C:
				r.pump()
			case <-r.stopChan:
				return
			}
		}
	}()

	log.Printf("sim: runtime started, step=%.0fms frame=%s", r.sched.StepSizeMs(), r.frameInterval)
}

// Stop halts the pump and flushes the journal.
func (r *Runtime) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	if r.ticker != nil {
		r.ticker.Stop()
	}
	close(r.stopChan)
	r.journal.Stop()
	log.Printf("sim: runtime stopped at step %d", r.coord.LastProcessedStep())
}

// pump converts measured wall-clock time into scheduler advances.
func (r *Runtime) pump() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(r.lastTick)
	r.lastTick = now
	r.sched.Advance(float64(elapsed) / float64(time.Millisecond))
}

// Submit queues a command for the next step, stamping it with the current
// step and step-derived timestamp when the producer left them zero.
// Accepted commands are journaled for replay.
func (r *Runtime) Submit(cmd Command) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cmd.Step == 0 && cmd.Timestamp == 0 {
		cmd.Step = r.sched.Step()
		cmd.Timestamp = float64(cmd.Step) * r.sched.StepSizeMs()
	}
	if !r.coord.EnqueueCommand(cmd) {
		return false
	}
	r.journal.Record(cmd)
	return true
}

// Advance drives the scheduler manually. Used by the replay tool and
// tests; a started runtime drives itself.
func (r *Runtime) Advance(elapsedMs float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sched.Advance(elapsedMs)
}

// CatchUp simulates offline time, typically from the save timestamp at
// boot. The capped result is recorded for observability.
func (r *Runtime) CatchUp(elapsedMs float64) CatchUpResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := r.sched.CatchUp(elapsedMs)
	if result.ExecutedSteps > 0 {
		r.telemetry.RecordProgress(KindOfflineCatchUp, map[string]any{
			"requestedMs": result.RequestedMs,
			"simulatedMs": result.SimulatedMs,
			"overflowMs":  result.OverflowMs,
			"steps":       result.ExecutedSteps,
		})
	}
	return result
}

// SetBackground switches the scheduler between foreground and background
// step budgets.
func (r *Runtime) SetBackground(background bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sched.SetThrottled(background)
}

// Snapshot returns the latest published immutable snapshot. Lock-free.
func (r *Runtime) Snapshot() *ProgressionSnapshot {
	return r.coord.Snapshot()
}

// BusSnapshot returns the event bus backpressure state.
func (r *Runtime) BusSnapshot() BackPressureSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.coord.Bus().Snapshot()
}

// DispatchStats returns the dispatcher counters.
func (r *Runtime) DispatchStats() DispatchStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.coord.DispatchStats()
}

// JournalStats returns the command journal counters.
func (r *Runtime) JournalStats() JournalStats {
	return r.journal.Stats()
}

// StateDigest returns the deterministic digest of the current state.
func (r *Runtime) StateDigest() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.coord.StateDigest()
}
