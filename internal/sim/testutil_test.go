package sim

import (
	"sync"
	"testing"

	"idleforge/internal/content"
)

// captureSink records every telemetry event for assertions. Safe for
// concurrent use because async handler failures arrive on goroutines.
type captureSink struct {
	mu       sync.Mutex
	errors   []capturedEvent
	warnings []capturedEvent
	progress []capturedEvent
	ticks    int
}

type capturedEvent struct {
	kind EventKind
	data map[string]any
}

func (s *captureSink) RecordError(kind EventKind, data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, capturedEvent{kind: kind, data: data})
}

func (s *captureSink) RecordWarning(kind EventKind, data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, capturedEvent{kind: kind, data: data})
}

func (s *captureSink) RecordProgress(kind EventKind, data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, capturedEvent{kind: kind, data: data})
}

func (s *captureSink) RecordTick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks++
}

func (s *captureSink) errorCount(kind EventKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return countKind(s.errors, kind)
}

func (s *captureSink) warningCount(kind EventKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return countKind(s.warnings, kind)
}

func (s *captureSink) progressCount(kind EventKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return countKind(s.progress, kind)
}

func countKind(events []capturedEvent, kind EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.kind == kind {
			n++
		}
	}
	return n
}

func floatPtr(v float64) *float64 { return &v }

// testPack builds a small validated content pack covering every
// progression mechanic: income, cost curves, cooldowns, capacities,
// upgrade multipliers, automation grants and one prestige layer.
func testPack(t *testing.T) *content.Pack {
	t.Helper()
	pack := &content.Pack{
		Resources: []content.ResourceDef{
			{ID: "energy", Name: "Energy", StartAmount: 100, Unlocked: true, Visible: true},
			{ID: "ore", Name: "Ore"},
			{ID: "crystal", Name: "Crystal", Capacity: floatPtr(50)},
			{ID: "shards", Name: "Shards"},
		},
		Generators: []content.GeneratorDef{
			{
				ID: "panel", Name: "Panel",
				Produces: "energy", RatePerStep: 1,
				CostResource: "energy", Cost: content.CostCurve{Base: 10, Growth: 2},
				Enabled: true,
			},
			{
				ID: "drill", Name: "Drill",
				Produces: "ore", RatePerStep: 0.5,
				CostResource: "energy", Cost: content.CostCurve{Base: 50, Growth: 1.5},
				PurchaseCooldownSteps: 5,
				Enabled:               true,
			},
		},
		Upgrades: []content.UpgradeDef{
			{
				ID: "boost", Name: "Boost",
				CostResource: "energy", Cost: content.CostCurve{Base: 20, Growth: 2},
				MaxPurchases: 2, UnlockAmount: 15,
				RateMultiplier: 2,
			},
			{
				ID: "auto_panel", Name: "Panel Automation",
				CostResource: "ore", Cost: content.CostCurve{Base: 5, Growth: 1},
				MaxPurchases: 1, UnlockAmount: 5,
				GrantsAutomation: []string{"panel"},
			},
		},
		Layers: []content.PrestigeLayerDef{
			{
				ID: "ascend", Name: "Ascend",
				ResetTargets:     []string{"energy", "ore"},
				ResetGenerators:  []string{"panel", "drill"},
				ResetUpgrades:    []string{"boost"},
				RetentionTargets: []string{"shards"},
				Reward:           content.PrestigeReward{Resource: "shards", BaseAmount: 1},
				UnlockResource:   "ore",
				UnlockAmount:     10,
			},
		},
	}
	if err := pack.Validate(); err != nil {
		t.Fatalf("test pack failed validation: %v", err)
	}
	return pack
}

// newTestCoordinator builds a coordinator over testPack with a capture
// sink attached.
func newTestCoordinator(t *testing.T) (*Coordinator, *captureSink) {
	t.Helper()
	sink := &captureSink{}
	coord, err := NewCoordinator(testPack(t), CoordinatorConfig{
		StepSizeMs:        100,
		CommandQueueLimit: 16,
	}, sink)
	if err != nil {
		t.Fatalf("NewCoordinator failed: %v", err)
	}
	return coord, sink
}
