package sim

import (
	"testing"
	"time"
)

func newTestRuntime(t *testing.T) (*Runtime, *captureSink) {
	t.Helper()
	sink := &captureSink{}
	r, err := NewRuntime(testPack(t), RuntimeConfig{
		Scheduler: SchedulerConfig{
			StepSizeMs:                 100,
			MaxForegroundStepsPerFrame: 10,
			MaxBackgroundStepsPerFrame: 2,
			MaxOfflineCatchUpMs:        300,
			MaxOfflineBatchSteps:       2,
		},
		Coordinator: CoordinatorConfig{CommandQueueLimit: 16},
	}, sink)
	if err != nil {
		t.Fatalf("NewRuntime failed: %v", err)
	}
	t.Cleanup(func() { r.journal.Stop() })
	return r, sink
}

// TestRuntimeAdvance tests that manual advances drive whole steps and
// publish snapshots
func TestRuntimeAdvance(t *testing.T) {
	r, _ := newTestRuntime(t)

	if got := r.Advance(250); got != 2 {
		t.Errorf("Expected 2 steps from 250ms, got %d", got)
	}
	if snap := r.Snapshot(); snap.Step != 1 {
		t.Errorf("Expected snapshot at step 1, got %d", snap.Step)
	}
}

// TestRuntimeSubmitStampsStep tests that a zero-stamped command is
// assigned the next scheduler step and executes there
func TestRuntimeSubmitStampsStep(t *testing.T) {
	r, _ := newTestRuntime(t)
	r.Advance(250)

	ok := r.Submit(Command{
		Type:     CommandPurchaseGenerator,
		Priority: PriorityPlayer,
		Payload:  PurchaseGeneratorPayload{GeneratorID: "panel", Count: 1},
	})
	if !ok {
		t.Fatal("Expected Submit to succeed")
	}
	if stats := r.JournalStats(); stats.Total != 1 {
		t.Errorf("Expected 1 journaled command, got %+v", stats)
	}

	r.Advance(100)
	snap := r.Snapshot()
	if snap.Generators[0].Owned != 1 {
		t.Errorf("Expected purchase applied on the stamped step, got %d owned", snap.Generators[0].Owned)
	}
	if snap.Resources[0].Amount != 91 {
		t.Errorf("Expected 91 energy after purchase and income, got %v", snap.Resources[0].Amount)
	}
	if stats := r.DispatchStats(); stats.Executed != 1 {
		t.Errorf("Expected 1 executed command, got %+v", stats)
	}
}

// TestRuntimeBackgroundThrottle tests the background step budget
func TestRuntimeBackgroundThrottle(t *testing.T) {
	r, _ := newTestRuntime(t)

	r.SetBackground(true)
	if got := r.Advance(1000); got != 2 {
		t.Errorf("Expected background budget of 2 steps, got %d", got)
	}
	r.SetBackground(false)
	if got := r.Advance(0.5); got != 8 {
		t.Errorf("Expected 8 retained steps after unthrottling, got %d", got)
	}
}

// TestRuntimeCatchUp tests capped offline simulation and its telemetry
func TestRuntimeCatchUp(t *testing.T) {
	r, sink := newTestRuntime(t)

	result := r.CatchUp(550)
	if result.ExecutedSteps != 3 {
		t.Errorf("Expected 3 steps, got %d", result.ExecutedSteps)
	}
	if result.SimulatedMs != 300 || result.OverflowMs != 250 {
		t.Errorf("Expected 300 simulated / 250 overflow, got %v / %v", result.SimulatedMs, result.OverflowMs)
	}
	if sink.progressCount(KindOfflineCatchUp) != 1 {
		t.Errorf("Expected 1 catch-up progress event, got %d", sink.progressCount(KindOfflineCatchUp))
	}
}

// TestRuntimePumpConservesTime tests that the wall-clock pump hands
// fractional milliseconds to the scheduler instead of truncating them
func TestRuntimePumpConservesTime(t *testing.T) {
	r, _ := newTestRuntime(t)

	const pumps = 20
	offset := 10*time.Millisecond + 500*time.Microsecond
	for i := 0; i < pumps; i++ {
		r.lastTick = time.Now().Add(-offset)
		r.pump()
	}

	injected := float64(pumps) * float64(offset) / float64(time.Millisecond)
	accounted := float64(r.sched.Step())*r.sched.StepSizeMs() + r.sched.BacklogMs()
	if accounted < injected {
		t.Errorf("Expected at least %vms accounted for, got %vms", injected, accounted)
	}
}

// TestRuntimeDigestDeterminism tests that two runtimes fed the same
// advances and commands converge on the same digest
func TestRuntimeDigestDeterminism(t *testing.T) {
	run := func() uint64 {
		r, _ := newTestRuntime(t)
		r.Advance(300)
		r.Submit(Command{
			Type:      CommandPurchaseGenerator,
			Priority:  PriorityPlayer,
			Payload:   PurchaseGeneratorPayload{GeneratorID: "panel", Count: 2},
			Step:      3,
			Timestamp: 300,
		})
		r.Advance(500)
		return r.StateDigest()
	}

	first := run()
	second := run()
	if first != second {
		t.Errorf("Expected identical digests, got %016x and %016x", first, second)
	}
}
