package sim

import (
	"testing"

	"idleforge/internal/content"
)

func newResetFixture() (*ResourceStore, *GeneratorStore, *UpgradeStore, *captureSink, *ResetEngine) {
	resources := NewResourceStore([]content.ResourceDef{
		{ID: "energy", StartAmount: 500, Unlocked: true, Visible: true},
		{ID: "shards", StartAmount: 2, Unlocked: true, Visible: true},
	})
	generators := NewGeneratorStore([]content.GeneratorDef{
		{ID: "panel", StartOwned: 7, Enabled: true},
	})
	upgrades := NewUpgradeStore([]content.UpgradeDef{
		{ID: "boost", MaxPurchases: 3},
	})
	sink := &captureSink{}
	engine := NewResetEngine(resources, generators, upgrades, sink)
	return resources, generators, upgrades, sink, engine
}

// TestResetRewardBeforeReset tests the reward-first phase ordering: the
// retained amount the caller computed survives the reset phases
func TestResetRewardBeforeReset(t *testing.T) {
	resources, generators, upgrades, _, engine := newResetFixture()
	ui, _ := upgrades.Index("boost")
	upgrades.IncrementPurchases(ui, 2)

	layer := content.PrestigeLayerDef{
		ID:               "ascend",
		ResetTargets:     []string{"energy"},
		ResetGenerators:  []string{"panel"},
		ResetUpgrades:    []string{"boost"},
		RetentionTargets: []string{"shards"},
		Reward:           content.PrestigeReward{Resource: "shards", BaseAmount: 1},
	}

	result := engine.Apply(PrestigeResetContext{
		Layer:           layer,
		RewardAmount:    3,
		RetainedAmounts: map[string]float64{"shards": 5}, // 2 held + 3 reward
		Step:            10,
	})

	if result.RewardGranted != 3 {
		t.Errorf("Expected reward 3, got %v", result.RewardGranted)
	}
	if result.ResourceResets != 1 || result.GeneratorResets != 1 || result.UpgradeResets != 1 || result.Retained != 1 {
		t.Errorf("Wrong phase counts: %+v", result)
	}

	ei, _ := resources.Index("energy")
	if got := resources.Record(ei).Amount; got != 0 {
		t.Errorf("Expected energy reset to 0, got %v", got)
	}
	si, _ := resources.Index("shards")
	if got := resources.Record(si).Amount; got != 5 {
		t.Errorf("Expected shards retained at 5, got %v", got)
	}
	gi, _ := generators.Index("panel")
	if got := generators.Record(gi).Owned; got != 0 {
		t.Errorf("Expected panel reset to 0 owned, got %d", got)
	}
	if got := upgrades.Record(ui).Purchases; got != 0 {
		t.Errorf("Expected boost purchases reset, got %d", got)
	}
}

// TestResetSkipsMissingIds tests that unknown ids in a layer produce
// named warnings while the rest of the batch still applies
func TestResetSkipsMissingIds(t *testing.T) {
	resources, generators, _, sink, engine := newResetFixture()

	layer := content.PrestigeLayerDef{
		ID:              "ascend",
		ResetTargets:    []string{"energy", "plasma"},
		ResetGenerators: []string{"reactor", "panel"},
		ResetUpgrades:   []string{"phantom"},
		Reward:          content.PrestigeReward{Resource: "shards", BaseAmount: 1},
	}

	result := engine.Apply(PrestigeResetContext{Layer: layer, RewardAmount: 1, Step: 4})

	if result.Skipped != 3 {
		t.Errorf("Expected 3 skips, got %d", result.Skipped)
	}
	if sink.warningCount(KindPrestigeResetResourceSkipped) != 1 {
		t.Errorf("Expected 1 resource skip warning, got %d", sink.warningCount(KindPrestigeResetResourceSkipped))
	}
	if sink.warningCount(KindPrestigeResetGeneratorSkipped) != 1 {
		t.Errorf("Expected 1 generator skip warning, got %d", sink.warningCount(KindPrestigeResetGeneratorSkipped))
	}
	if sink.warningCount(KindPrestigeResetUpgradeSkipped) != 1 {
		t.Errorf("Expected 1 upgrade skip warning, got %d", sink.warningCount(KindPrestigeResetUpgradeSkipped))
	}

	// The valid entries still applied.
	ei, _ := resources.Index("energy")
	if got := resources.Record(ei).Amount; got != 0 {
		t.Errorf("Valid reset target should still zero, got %v", got)
	}
	gi, _ := generators.Index("panel")
	if got := generators.Record(gi).Owned; got != 0 {
		t.Errorf("Valid reset generator should still zero, got %d", got)
	}
}

// TestResetRewardResourceMissing tests that an unknown reward resource
// skips the grant without aborting the reset
func TestResetRewardResourceMissing(t *testing.T) {
	resources, _, _, sink, engine := newResetFixture()

	layer := content.PrestigeLayerDef{
		ID:           "ascend",
		ResetTargets: []string{"energy"},
		Reward:       content.PrestigeReward{Resource: "void", BaseAmount: 1},
	}

	result := engine.Apply(PrestigeResetContext{Layer: layer, RewardAmount: 5, Step: 1})

	if result.RewardGranted != 0 {
		t.Errorf("Expected no reward granted, got %v", result.RewardGranted)
	}
	if sink.warningCount(KindPrestigeRewardSkipped) != 1 {
		t.Errorf("Expected 1 reward skip warning, got %d", sink.warningCount(KindPrestigeRewardSkipped))
	}
	ei, _ := resources.Index("energy")
	if got := resources.Record(ei).Amount; got != 0 {
		t.Errorf("Reset should still apply, got %v", got)
	}
}

// TestResetAmountNormalization tests flooring and negative clamping of
// caller-supplied amounts before privileged writes
func TestResetAmountNormalization(t *testing.T) {
	resources, _, _, _, engine := newResetFixture()

	layer := content.PrestigeLayerDef{
		ID:               "ascend",
		ResetTargets:     []string{"energy"},
		RetentionTargets: []string{"shards"},
		Reward:           content.PrestigeReward{Resource: "shards", BaseAmount: 0},
	}

	engine.Apply(PrestigeResetContext{
		Layer:           layer,
		ResetAmounts:    map[string]float64{"energy": 2.9},
		RetainedAmounts: map[string]float64{"shards": -4},
	})

	ei, _ := resources.Index("energy")
	if got := resources.Record(ei).Amount; got != 2 {
		t.Errorf("Expected fractional reset amount floored to 2, got %v", got)
	}
	si, _ := resources.Index("shards")
	if got := resources.Record(si).Amount; got != 0 {
		t.Errorf("Expected negative retained amount clamped to 0, got %v", got)
	}
}

// TestResetFullWipeRestoresFlags tests that a full wipe restores the
// content-default unlocked/visible flags
func TestResetFullWipeRestoresFlags(t *testing.T) {
	resources, _, _, sink, engine := newResetFixture()

	// Drift the flags away from their defaults first.
	ei, _ := resources.Index("energy")
	resources.setFlagsPrivileged(ei, false, false)

	layer := content.PrestigeLayerDef{
		ID:     "ascend",
		Reward: content.PrestigeReward{Resource: "shards", BaseAmount: 0},
	}
	engine.Apply(PrestigeResetContext{Layer: layer, FullWipe: true})

	if rec := resources.Record(ei); !rec.Unlocked || !rec.Visible {
		t.Errorf("Full wipe should restore default flags, got %+v", rec)
	}
	if sink.progressCount(KindPrestigeApplied) != 1 {
		t.Errorf("Expected 1 PrestigeApplied progress event, got %d", sink.progressCount(KindPrestigeApplied))
	}
}
