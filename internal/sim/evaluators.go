package sim

import (
	"math"

	"github.com/pkg/errors"
)

// GeneratorQuote prices a prospective generator purchase. Quoting is a
// pure function of current state and the content cost curve.
type GeneratorQuote struct {
	GeneratorID   string  `json:"generatorId"`
	Count         int     `json:"count"`
	CostResource  string  `json:"costResource"`
	TotalCost     float64 `json:"totalCost"`
	Affordable    bool    `json:"affordable"`
	PurchaseReady bool    `json:"purchaseReady"`
}

// GeneratorPurchaseEvaluator quotes and applies generator purchases.
// Application mutates only through the safe tier.
type GeneratorPurchaseEvaluator struct {
	c *Coordinator
}

// GeneratorEvaluator returns the generator purchase capability.
func (c *Coordinator) GeneratorEvaluator() GeneratorPurchaseEvaluator {
	return GeneratorPurchaseEvaluator{c: c}
}

// Quote prices count units of the generator at the current state and step.
func (e GeneratorPurchaseEvaluator) Quote(id string, count int, step uint64) (GeneratorQuote, error) {
	c := e.c
	gi, ok := c.generators.Index(id)
	if !ok {
		c.telemetry.RecordWarning(KindGeneratorNotFound, map[string]any{"generator": id, "source": "quote"})
		return GeneratorQuote{}, errors.Errorf("unknown generator %q", id)
	}
	if count <= 0 {
		return GeneratorQuote{}, errors.Errorf("generator %q: invalid purchase count %d", id, count)
	}
	def := c.pack.Generators[gi]
	rec := c.generators.Record(gi)

	quote := GeneratorQuote{
		GeneratorID:   id,
		Count:         count,
		CostResource:  def.CostResource,
		TotalCost:     def.Cost.TotalCost(rec.Owned, count),
		PurchaseReady: step >= rec.NextPurchaseReadyAtStep,
	}
	if ri, ok := c.resources.Index(def.CostResource); ok {
		quote.Affordable = c.resources.CanAfford(ri, quote.TotalCost)
	}
	return quote, nil
}

// Apply executes the purchase: debits the cost resource, increments the
// owned count, arms the purchase cooldown and publishes the event.
func (e GeneratorPurchaseEvaluator) Apply(id string, count int, step uint64, timestamp float64) (GeneratorQuote, error) {
	c := e.c
	quote, err := e.Quote(id, count, step)
	if err != nil {
		return quote, err
	}
	if !quote.PurchaseReady {
		return quote, errors.Errorf("generator %q: purchase cooldown active until step %d", id, mustGeneratorRecord(c, id).NextPurchaseReadyAtStep)
	}
	if !quote.Affordable {
		return quote, errors.Errorf("generator %q: cannot afford %v %s", id, quote.TotalCost, quote.CostResource)
	}

	gi, _ := c.generators.Index(id)
	def := c.pack.Generators[gi]
	ri, ok := c.resources.Index(def.CostResource)
	if !ok {
		return quote, errors.Errorf("generator %q: unknown cost resource %q", id, def.CostResource)
	}

	c.resources.ApplyExpense(ri, quote.TotalCost)
	owned := c.generators.IncrementOwned(gi, count)
	if def.PurchaseCooldownSteps > 0 {
		c.generators.MarkPurchased(gi, step+def.PurchaseCooldownSteps)
	}

	c.bus.Publish(Event{
		Type:      EventGeneratorPurchased,
		Step:      step,
		Timestamp: timestamp,
		Payload: GeneratorPurchasedPayload{
			GeneratorID: id,
			Count:       count,
			Owned:       owned,
			TotalCost:   quote.TotalCost,
		},
	})
	c.telemetry.RecordProgress(KindPurchaseApplied, map[string]any{
		"generator": id,
		"count":     count,
		"owned":     owned,
		"step":      step,
	})
	return quote, nil
}

func mustGeneratorRecord(c *Coordinator, id string) GeneratorRecord {
	i, _ := c.generators.Index(id)
	return c.generators.Record(i)
}

// UpgradeQuote prices the next purchase of an upgrade.
type UpgradeQuote struct {
	UpgradeID    string  `json:"upgradeId"`
	CostResource string  `json:"costResource"`
	Cost         float64 `json:"cost"`
	Affordable   bool    `json:"affordable"`
	Status       string  `json:"status"`
}

// UpgradePurchaseEvaluator quotes and applies upgrade purchases.
type UpgradePurchaseEvaluator struct {
	c *Coordinator
}

// UpgradeEvaluator returns the upgrade purchase capability.
func (c *Coordinator) UpgradeEvaluator() UpgradePurchaseEvaluator {
	return UpgradePurchaseEvaluator{c: c}
}

// Quote prices the next purchase of the upgrade at the current state.
func (e UpgradePurchaseEvaluator) Quote(id string) (UpgradeQuote, error) {
	c := e.c
	ui, ok := c.upgrades.Index(id)
	if !ok {
		c.telemetry.RecordWarning(KindUpgradeNotFound, map[string]any{"upgrade": id, "source": "quote"})
		return UpgradeQuote{}, errors.Errorf("unknown upgrade %q", id)
	}
	def := c.pack.Upgrades[ui]
	rec := c.upgrades.Record(ui)

	quote := UpgradeQuote{
		UpgradeID:    id,
		CostResource: def.CostResource,
		Cost:         def.Cost.UnitCost(rec.Purchases),
		Status:       rec.Status.String(),
	}
	if ri, ok := c.resources.Index(def.CostResource); ok {
		quote.Affordable = c.resources.CanAfford(ri, quote.Cost)
	}
	return quote, nil
}

// Apply executes one purchase of the upgrade and refreshes the derived
// multiplier and automation grants.
func (e UpgradePurchaseEvaluator) Apply(id string, step uint64, timestamp float64) (UpgradeQuote, error) {
	c := e.c
	quote, err := e.Quote(id)
	if err != nil {
		return quote, err
	}

	ui, _ := c.upgrades.Index(id)
	def := c.pack.Upgrades[ui]
	rec := c.upgrades.Record(ui)
	if def.MaxPurchases > 0 && rec.Purchases >= def.MaxPurchases {
		return quote, errors.Errorf("upgrade %q: already at max purchases (%d)", id, def.MaxPurchases)
	}
	if rec.Status == UpgradeLocked {
		return quote, errors.Errorf("upgrade %q: locked", id)
	}
	if !quote.Affordable {
		return quote, errors.Errorf("upgrade %q: cannot afford %v %s", id, quote.Cost, quote.CostResource)
	}

	ri, ok := c.resources.Index(def.CostResource)
	if !ok {
		return quote, errors.Errorf("upgrade %q: unknown cost resource %q", id, def.CostResource)
	}
	c.resources.ApplyExpense(ri, quote.Cost)
	purchases := c.upgrades.IncrementPurchases(ui, 1)
	c.recomputeDerived(step)

	c.bus.Publish(Event{
		Type:      EventUpgradePurchased,
		Step:      step,
		Timestamp: timestamp,
		Payload: UpgradePurchasedPayload{
			UpgradeID: id,
			Purchases: purchases,
			Cost:      quote.Cost,
		},
	})
	c.telemetry.RecordProgress(KindPurchaseApplied, map[string]any{
		"upgrade":   id,
		"purchases": purchases,
		"step":      step,
	})
	return quote, nil
}

// PrestigeQuote reports layer eligibility and the reward the layer would
// grant at the current state.
type PrestigeQuote struct {
	LayerID      string  `json:"layerId"`
	Eligible     bool    `json:"eligible"`
	RewardAmount float64 `json:"rewardAmount"`
}

// PrestigeSystemEvaluator quotes and applies prestige resets. All numeric
// amounts are computed here, before the reset engine is invoked.
type PrestigeSystemEvaluator struct {
	c *Coordinator
}

// PrestigeEvaluator returns the prestige capability.
func (c *Coordinator) PrestigeEvaluator() PrestigeSystemEvaluator {
	return PrestigeSystemEvaluator{c: c}
}

// Quote evaluates eligibility and the reward for the layer. The reward
// scales with how far past the unlock threshold the gating resource is.
func (e PrestigeSystemEvaluator) Quote(layerID string) (PrestigeQuote, error) {
	c := e.c
	layer, ok := c.pack.Layer(layerID)
	if !ok {
		c.telemetry.RecordWarning(KindPrestigeLayerNotFound, map[string]any{"layer": layerID})
		return PrestigeQuote{}, errors.Errorf("unknown prestige layer %q", layerID)
	}

	quote := PrestigeQuote{LayerID: layerID}
	if layer.UnlockResource == "" || layer.UnlockAmount <= 0 {
		quote.Eligible = true
		quote.RewardAmount = layer.Reward.BaseAmount
		return quote, nil
	}

	ri, ok := c.resources.Index(layer.UnlockResource)
	if !ok {
		return quote, nil // gate resource missing: never eligible
	}
	amount := c.resources.Record(ri).Amount
	if amount < layer.UnlockAmount {
		return quote, nil
	}
	quote.Eligible = true
	quote.RewardAmount = layer.Reward.BaseAmount * math.Floor(amount/layer.UnlockAmount)
	return quote, nil
}

// Apply validates eligibility, computes the transaction amounts and runs
// the reset engine. Retention targets keep their current amounts.
func (e PrestigeSystemEvaluator) Apply(layerID string, step uint64, timestamp float64) (PrestigeResetResult, error) {
	c := e.c
	quote, err := e.Quote(layerID)
	if err != nil {
		return PrestigeResetResult{}, err
	}
	if !quote.Eligible {
		return PrestigeResetResult{}, errors.Errorf("prestige layer %q: not eligible", layerID)
	}
	layer, _ := c.pack.Layer(layerID)

	// The reward lands before the resets, so when the reward resource also
	// appears in a target list its post-reset amount must carry the fresh
	// grant instead of being clobbered by a stale pre-grant value.
	resets := make(map[string]float64, 1)
	for _, id := range layer.ResetTargets {
		if id == layer.Reward.Resource {
			resets[id] = quote.RewardAmount
		}
	}
	retained := make(map[string]float64, len(layer.RetentionTargets))
	for _, id := range layer.RetentionTargets {
		if ri, ok := c.resources.Index(id); ok {
			retained[id] = c.resources.Record(ri).Amount
			if id == layer.Reward.Resource {
				retained[id] += quote.RewardAmount
			}
		}
	}

	result := c.reset.Apply(PrestigeResetContext{
		Layer:           layer,
		RewardAmount:    quote.RewardAmount,
		ResetAmounts:    resets, // unlisted reset targets zero out
		RetainedAmounts: retained,
		FullWipe:        layer.FullWipe,
		Step:            step,
		Timestamp:       timestamp,
	})
	c.prestigeCount++
	c.recomputeDerived(step)

	c.bus.Publish(Event{
		Type:      EventPrestigeApplied,
		Step:      step,
		Timestamp: timestamp,
		Payload: PrestigeAppliedPayload{
			LayerID:      layerID,
			RewardAmount: result.RewardGranted,
			Skipped:      result.Skipped,
		},
	})
	return result, nil
}
