package sim

import (
	"math"

	"idleforge/internal/content"
)

// PrestigeResetContext carries one fully pre-computed reset transaction.
// The engine evaluates no formulas: callers must compute every numeric
// amount and validate layer eligibility before invoking Apply.
type PrestigeResetContext struct {
	Layer content.PrestigeLayerDef

	// RewardAmount is granted to the layer's reward resource via the safe
	// tier before any reset is applied.
	RewardAmount float64

	// ResetAmounts maps each reset target to its post-reset value.
	// Missing entries reset to zero.
	ResetAmounts map[string]float64

	// RetainedAmounts maps each retention target to its caller-computed
	// retained value.
	RetainedAmounts map[string]float64

	// FullWipe additionally restores resource unlocked/visible flags to
	// content defaults.
	FullWipe bool

	Step      uint64
	Timestamp float64
}

// PrestigeResetResult summarizes an applied reset.
type PrestigeResetResult struct {
	RewardGranted   float64
	ResourceResets  int
	GeneratorResets int
	UpgradeResets   int
	Retained        int
	Skipped         int
}

// ResetEngine applies prestige transactions against the state stores.
// Each phase is independently fault tolerant: a missing id is skipped
// with a named warning and the rest of the batch still applies.
type ResetEngine struct {
	resources  *ResourceStore
	generators *GeneratorStore
	upgrades   *UpgradeStore
	telemetry  TelemetrySink
}

// NewResetEngine wires the engine to the coordinator's stores.
func NewResetEngine(resources *ResourceStore, generators *GeneratorStore, upgrades *UpgradeStore, telemetry TelemetrySink) *ResetEngine {
	if telemetry == nil {
		telemetry = NopSink{}
	}
	return &ResetEngine{
		resources:  resources,
		generators: generators,
		upgrades:   upgrades,
		telemetry:  telemetry,
	}
}

// normalizeResetAmount floors and clamps a caller-supplied amount so a
// fractional or negative input can never leak into a privileged write.
func normalizeResetAmount(amount float64) float64 {
	if math.IsNaN(amount) || amount < 0 {
		return 0
	}
	return math.Floor(amount)
}

// Apply runs the fixed four-phase reset sequence. The reward lands first
// so a reward resource that also appears as a reset target reflects the
// fresh grant, not a stale zeroed value: its reset amount is expected to
// include the grant (callers pass the post-reset total they computed).
func (e *ResetEngine) Apply(ctx PrestigeResetContext) PrestigeResetResult {
	var result PrestigeResetResult
	layer := ctx.Layer

	// Phase 1: grant the reward through the safe tier.
	if i, ok := e.resources.Index(layer.Reward.Resource); ok {
		e.resources.ApplyIncome(i, ctx.RewardAmount)
		result.RewardGranted = ctx.RewardAmount
	} else {
		result.Skipped++
		e.telemetry.RecordWarning(KindPrestigeRewardSkipped, map[string]any{
			"layer":    layer.ID,
			"resource": layer.Reward.Resource,
			"step":     ctx.Step,
		})
	}

	// Phase 2: privileged-write every reset target.
	for _, id := range layer.ResetTargets {
		i, ok := e.resources.Index(id)
		if !ok {
			result.Skipped++
			e.telemetry.RecordWarning(KindPrestigeResetResourceSkipped, map[string]any{
				"layer":    layer.ID,
				"resource": id,
				"step":     ctx.Step,
			})
			continue
		}
		e.resources.setAmountPrivileged(i, normalizeResetAmount(ctx.ResetAmounts[id]))
		result.ResourceResets++
	}
	for _, id := range layer.ResetGenerators {
		i, ok := e.generators.Index(id)
		if !ok {
			result.Skipped++
			e.telemetry.RecordWarning(KindPrestigeResetGeneratorSkipped, map[string]any{
				"layer":     layer.ID,
				"generator": id,
				"step":      ctx.Step,
			})
			continue
		}
		e.generators.resetPrivileged(i, 0)
		result.GeneratorResets++
	}
	for _, id := range layer.ResetUpgrades {
		i, ok := e.upgrades.Index(id)
		if !ok {
			result.Skipped++
			e.telemetry.RecordWarning(KindPrestigeResetUpgradeSkipped, map[string]any{
				"layer":   layer.ID,
				"upgrade": id,
				"step":    ctx.Step,
			})
			continue
		}
		e.upgrades.resetPrivileged(i, 0)
		result.UpgradeResets++
	}

	// Phase 3: privileged-write the retained amounts.
	for _, id := range layer.RetentionTargets {
		i, ok := e.resources.Index(id)
		if !ok {
			result.Skipped++
			e.telemetry.RecordWarning(KindPrestigeResetResourceSkipped, map[string]any{
				"layer":    layer.ID,
				"resource": id,
				"step":     ctx.Step,
			})
			continue
		}
		e.resources.setAmountPrivileged(i, normalizeResetAmount(ctx.RetainedAmounts[id]))
		result.Retained++
	}

	// Phase 4: optional full wipe of resource flags.
	if ctx.FullWipe {
		for i := 0; i < e.resources.Len(); i++ {
			e.resources.restoreDefaultFlags(i)
		}
	}

	e.telemetry.RecordProgress(KindPrestigeApplied, map[string]any{
		"layer":   layer.ID,
		"reward":  result.RewardGranted,
		"skipped": result.Skipped,
		"step":    ctx.Step,
	})
	return result
}
