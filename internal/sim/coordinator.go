package sim

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"

	"idleforge/internal/content"
	"idleforge/internal/save"
)

// CoordinatorConfig holds the construction-time parameters of a
// progression coordinator. Invalid values are fatal at construction;
// nothing after construction can abort the loop.
type CoordinatorConfig struct {
	StepSizeMs        float64
	CommandQueueLimit int
	Bus               BusConfig
	Policy            AuthorizationPolicy // nil installs DefaultPolicy()
}

// DefaultPolicy restricts prestige resets to player and system origins;
// automation may buy and toggle, but never reset.
func DefaultPolicy() AuthorizationPolicy {
	return AuthorizationPolicy{
		CommandPurchaseGenerator: AllowAll(),
		CommandPurchaseUpgrade:   AllowAll(),
		CommandToggleGenerator:   AllowAll(),
		CommandPrestigeReset:     Allow(PrioritySystem, PriorityPlayer),
	}
}

// Coordinator orchestrates the simulation per step: it drains the command
// queue through the dispatcher, applies generator income, recomputes
// derived views, delivers bus events and publishes an immutable snapshot.
// It exclusively owns its state stores; external consumers observe only
// through views and snapshots.
type Coordinator struct {
	pack      *content.Pack
	cfg       CoordinatorConfig
	telemetry TelemetrySink

	resources  *ResourceStore
	generators *GeneratorStore
	upgrades   *UpgradeStore

	dispatcher *Dispatcher
	reset      *ResetEngine
	bus        *Bus
	queue      *CommandQueue
	pool       *SnapshotPool

	drain []Command // reused scratch for queue draining

	lastProcessedStep uint64
	processedAny      bool
	started           bool
	hydrated          bool

	rateMultiplier    float64
	grantedAutomation map[string]bool
	prestigeCount     uint64
	stepsExecuted     uint64
}

// NewCoordinator builds the stores from the content pack, wires the
// dispatcher, reset engine and bus, and registers the built-in command
// handlers. The pack must already be validated.
func NewCoordinator(pack *content.Pack, cfg CoordinatorConfig, telemetry TelemetrySink) (*Coordinator, error) {
	if pack == nil {
		return nil, errors.New("coordinator: content pack is required")
	}
	if !(cfg.StepSizeMs > 0) {
		return nil, errors.Errorf("coordinator: step size must be positive, got %v", cfg.StepSizeMs)
	}
	if telemetry == nil {
		telemetry = NopSink{}
	}
	policy := cfg.Policy
	if policy == nil {
		policy = DefaultPolicy()
	}

	c := &Coordinator{
		pack:              pack,
		cfg:               cfg,
		telemetry:         telemetry,
		resources:         NewResourceStore(pack.Resources),
		generators:        NewGeneratorStore(pack.Generators),
		upgrades:          NewUpgradeStore(pack.Upgrades),
		dispatcher:        NewDispatcher(policy, telemetry),
		queue:             NewCommandQueue(cfg.CommandQueueLimit),
		bus:               NewBus(cfg.Bus, cfg.StepSizeMs, telemetry),
		rateMultiplier:    1,
		grantedAutomation: make(map[string]bool),
	}
	c.reset = NewResetEngine(c.resources, c.generators, c.upgrades, telemetry)
	c.pool = NewSnapshotPool(c.resources.Len(), c.generators.Len(), c.upgrades.Len())
	c.registerHandlers()
	c.recomputeDerived(0)
	return c, nil
}

// Stores, exposed read-only.

// Resources returns the immutable resource projection.
func (c *Coordinator) Resources() ResourceView { return c.resources.View() }

// Generators returns the immutable generator projection.
func (c *Coordinator) Generators() GeneratorView { return c.generators.View() }

// Upgrades returns the immutable upgrade projection.
func (c *Coordinator) Upgrades() UpgradeView { return c.upgrades.View() }

// Bus returns the event bus for subscriptions and observability.
func (c *Coordinator) Bus() *Bus { return c.bus }

// DispatchStats returns the dispatcher counters.
func (c *Coordinator) DispatchStats() DispatchStats { return c.dispatcher.Stats() }

// LastProcessedStep returns the most recently processed step.
func (c *Coordinator) LastProcessedStep() uint64 { return c.lastProcessedStep }

// EnqueueCommand queues a command for the next step. Returns false when
// the command is invalid or the queue is full; the rejection is recorded,
// never thrown.
func (c *Coordinator) EnqueueCommand(cmd Command) bool {
	if !cmd.Priority.Valid() {
		c.telemetry.RecordError(KindCommandPriorityViolation, map[string]any{
			"commandType": cmd.Type,
			"priority":    int(cmd.Priority),
			"requestId":   cmd.RequestID,
		})
		return false
	}
	if !c.queue.Enqueue(cmd) {
		c.telemetry.RecordWarning(KindCommandQueueOverflow, map[string]any{
			"commandType": cmd.Type,
			"requestId":   cmd.RequestID,
		})
		return false
	}
	return true
}

// Step is the scheduler callback: one full deterministic simulation step.
func (c *Coordinator) Step(ctx StepContext) {
	c.started = true
	c.stepsExecuted++

	c.drain = c.queue.Drain(c.drain)
	for _, cmd := range c.drain {
		c.dispatcher.Execute(cmd)
	}

	c.applyGeneratorIncome()
	c.UpdateForStep(ctx.Step)
	c.bus.DispatchPending(ctx.Step)
	c.produceSnapshot(ctx.Step)
	c.telemetry.RecordTick()
}

// applyGeneratorIncome credits each enabled generator's production for one
// step through the safe tier. Iteration is index-ordered for determinism.
func (c *Coordinator) applyGeneratorIncome() {
	for i := 0; i < c.generators.Len(); i++ {
		rec := c.generators.Record(i)
		if !rec.Enabled || rec.Owned == 0 {
			continue
		}
		def := c.pack.Generators[i]
		out, ok := c.resources.Index(def.Produces)
		if !ok {
			continue
		}
		c.resources.ApplyIncome(out, def.RatePerStep*float64(rec.Owned)*c.rateMultiplier)
	}
}

// UpdateForStep recomputes every derived field from current state. It is
// idempotent for repeated calls at the same step; calls for an older step
// are rejected with a warning and perform no mutation.
func (c *Coordinator) UpdateForStep(step uint64) {
	if c.processedAny && step < c.lastProcessedStep {
		c.telemetry.RecordWarning(KindStepRegression, map[string]any{
			"step":              step,
			"lastProcessedStep": c.lastProcessedStep,
		})
		return
	}

	c.recomputeDerived(step)
	c.lastProcessedStep = step
	c.processedAny = true
}

// recomputeDerived refreshes unlock flags, upgrade statuses, the global
// rate multiplier and automation grants. Pure function of current state,
// so repeated calls converge after the first.
func (c *Coordinator) recomputeDerived(step uint64) {
	// Resources unlock (and become visible) once any amount exists.
	for i := 0; i < c.resources.Len(); i++ {
		rec := c.resources.Record(i)
		if !rec.Unlocked && rec.Amount > 0 {
			c.resources.SetUnlocked(i, true)
			c.resources.SetVisible(i, true)
			c.bus.Publish(Event{
				Type:      EventResourceUnlocked,
				Step:      step,
				Timestamp: float64(step) * c.cfg.StepSizeMs,
				Payload:   ResourceUnlockedPayload{ResourceID: rec.ID},
			})
		}
	}

	// Upgrade lifecycle status from purchases and the cost resource.
	for i := 0; i < c.upgrades.Len(); i++ {
		def := c.pack.Upgrades[i]
		rec := c.upgrades.Record(i)
		status := UpgradeLocked
		switch {
		case def.MaxPurchases > 0 && rec.Purchases >= def.MaxPurchases:
			status = UpgradeExhausted
		case rec.Purchases > 0:
			status = UpgradePurchased
		default:
			if ri, ok := c.resources.Index(def.CostResource); ok {
				if c.resources.Record(ri).Amount >= def.UnlockAmount {
					status = UpgradeAvailable
				}
			}
		}
		c.upgrades.SetStatus(i, status)
	}

	// Global production multiplier and automation grants from purchases.
	multiplier := 1.0
	for k := range c.grantedAutomation {
		delete(c.grantedAutomation, k)
	}
	for i := 0; i < c.upgrades.Len(); i++ {
		def := c.pack.Upgrades[i]
		rec := c.upgrades.Record(i)
		if rec.Purchases == 0 {
			continue
		}
		if def.RateMultiplier > 0 {
			for p := 0; p < rec.Purchases; p++ {
				multiplier *= def.RateMultiplier
			}
		}
		for _, id := range def.GrantsAutomation {
			c.grantedAutomation[id] = true
		}
	}
	c.rateMultiplier = multiplier
}

// HydrateResources is the one-time privileged rehydration path. It must
// run strictly before any step processing; afterwards it is rejected.
func (c *Coordinator) HydrateResources(pr save.PersistedResources) error {
	if c.started {
		c.telemetry.RecordError(KindHydrateAfterStart, map[string]any{
			"lastProcessedStep": c.lastProcessedStep,
		})
		return errors.New("coordinator: hydration after step processing started")
	}
	if err := pr.Validate(); err != nil {
		return err
	}

	applied, skipped := 0, 0
	for pos, id := range pr.IDs {
		i, ok := c.resources.Index(id)
		if !ok {
			skipped++
			c.telemetry.RecordWarning(KindResourceNotFound, map[string]any{
				"resource": id,
				"source":   "hydrate",
			})
			continue
		}
		c.resources.setAmountPrivileged(i, pr.Amounts[pos])
		c.resources.setFlagsPrivileged(i, pr.Unlocked[pos], pr.Visible[pos])
		applied++
	}

	c.hydrated = true
	c.recomputeDerived(c.lastProcessedStep)
	c.telemetry.RecordProgress(KindResourcesHydrated, map[string]any{
		"applied": applied,
		"skipped": skipped,
	})
	return nil
}

// ExportResources serializes the current resource state into the
// index-aligned persisted format.
func (c *Coordinator) ExportResources() save.PersistedResources {
	n := c.resources.Len()
	pr := save.PersistedResources{
		IDs:        make([]string, n),
		Amounts:    make([]float64, n),
		Capacities: make([]*float64, n),
		Unlocked:   make([]bool, n),
		Visible:    make([]bool, n),
		Flags:      make([]uint32, n),
	}
	for i := 0; i < n; i++ {
		rec := c.resources.Record(i)
		pr.IDs[i] = rec.ID
		pr.Amounts[i] = rec.Amount
		if rec.Capped {
			capacity := rec.Capacity
			pr.Capacities[i] = &capacity
		}
		pr.Unlocked[i] = rec.Unlocked
		pr.Visible[i] = rec.Visible
	}
	return pr
}

// ConditionContext exposes a flat read-only numeric view for external
// condition-evaluation collaborators.
func (c *Coordinator) ConditionContext() map[string]float64 {
	ctx := make(map[string]float64, c.resources.Len()+c.generators.Len()+c.upgrades.Len())
	for i := 0; i < c.resources.Len(); i++ {
		rec := c.resources.Record(i)
		ctx["resources."+rec.ID] = rec.Amount
	}
	for i := 0; i < c.generators.Len(); i++ {
		rec := c.generators.Record(i)
		ctx["generators."+rec.ID+".owned"] = float64(rec.Owned)
	}
	for i := 0; i < c.upgrades.Len(); i++ {
		rec := c.upgrades.Record(i)
		ctx["upgrades."+rec.ID+".purchases"] = float64(rec.Purchases)
	}
	return ctx
}

// GrantedAutomationIds returns the sorted automation capability ids
// granted by purchased upgrades.
func (c *Coordinator) GrantedAutomationIds() []string {
	ids := make([]string, 0, len(c.grantedAutomation))
	for id := range c.grantedAutomation {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns the latest published immutable snapshot.
func (c *Coordinator) Snapshot() *ProgressionSnapshot {
	return c.pool.AcquireRead()
}

// produceSnapshot fills and publishes the next snapshot buffer.
func (c *Coordinator) produceSnapshot(step uint64) {
	snap := c.pool.AcquireWrite()
	snap.Step = step
	snap.Timestamp = float64(step) * c.cfg.StepSizeMs

	for i := 0; i < c.resources.Len(); i++ {
		rec := c.resources.Record(i)
		snap.Resources = append(snap.Resources, ResourceSnapshot{
			ID:       rec.ID,
			Amount:   rec.Amount,
			Capacity: rec.Capacity,
			Capped:   rec.Capped,
			Unlocked: rec.Unlocked,
			Visible:  rec.Visible,
		})
	}
	for i := 0; i < c.generators.Len(); i++ {
		rec := c.generators.Record(i)
		def := c.pack.Generators[i]
		cost := def.Cost.UnitCost(rec.Owned)
		affordable := false
		if ri, ok := c.resources.Index(def.CostResource); ok {
			affordable = c.resources.CanAfford(ri, cost)
		}
		snap.Generators = append(snap.Generators, GeneratorSnapshot{
			ID:                      rec.ID,
			Owned:                   rec.Owned,
			Enabled:                 rec.Enabled,
			NextPurchaseReadyAtStep: rec.NextPurchaseReadyAtStep,
			NextCost:                cost,
			Affordable:              affordable,
			PurchaseReady:           step >= rec.NextPurchaseReadyAtStep,
		})
	}
	for i := 0; i < c.upgrades.Len(); i++ {
		rec := c.upgrades.Record(i)
		def := c.pack.Upgrades[i]
		cost := def.Cost.UnitCost(rec.Purchases)
		affordable := false
		if ri, ok := c.resources.Index(def.CostResource); ok {
			affordable = c.resources.CanAfford(ri, cost)
		}
		snap.Upgrades = append(snap.Upgrades, UpgradeSnapshot{
			ID:         rec.ID,
			Purchases:  rec.Purchases,
			Status:     rec.Status.String(),
			NextCost:   cost,
			Affordable: affordable,
		})
	}

	stats := c.dispatcher.Stats()
	snap.Metrics = append(snap.Metrics,
		Metric{Name: "steps.executed", Value: float64(c.stepsExecuted)},
		Metric{Name: "commands.executed", Value: float64(stats.Executed)},
		Metric{Name: "commands.dropped", Value: float64(stats.Dropped)},
		Metric{Name: "events.published", Value: float64(c.bus.published)},
		Metric{Name: "events.overflowed", Value: float64(c.bus.overflowed)},
		Metric{Name: "prestige.count", Value: float64(c.prestigeCount)},
	)

	c.pool.PublishWrite()
}

// registerHandlers binds the built-in command handlers.
func (c *Coordinator) registerHandlers() {
	c.dispatcher.Register(CommandPurchaseGenerator, func(ctx ExecContext, payload any) (<-chan error, error) {
		var p PurchaseGeneratorPayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		if p.Count <= 0 {
			p.Count = 1
		}
		_, err := c.GeneratorEvaluator().Apply(p.GeneratorID, p.Count, ctx.Step, ctx.Timestamp)
		return nil, err
	})

	c.dispatcher.Register(CommandToggleGenerator, func(ctx ExecContext, payload any) (<-chan error, error) {
		var p ToggleGeneratorPayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		i, ok := c.generators.Index(p.GeneratorID)
		if !ok {
			c.telemetry.RecordWarning(KindGeneratorNotFound, map[string]any{
				"generator": p.GeneratorID,
				"source":    "toggle",
			})
			return nil, nil
		}
		c.generators.SetEnabled(i, p.Enabled)
		c.bus.Publish(Event{
			Type:      EventGeneratorToggled,
			Step:      ctx.Step,
			Timestamp: ctx.Timestamp,
			Payload:   GeneratorToggledPayload{GeneratorID: p.GeneratorID, Enabled: p.Enabled},
		})
		return nil, nil
	})

	c.dispatcher.Register(CommandPurchaseUpgrade, func(ctx ExecContext, payload any) (<-chan error, error) {
		var p PurchaseUpgradePayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		_, err := c.UpgradeEvaluator().Apply(p.UpgradeID, ctx.Step, ctx.Timestamp)
		return nil, err
	})

	c.dispatcher.Register(CommandPrestigeReset, func(ctx ExecContext, payload any) (<-chan error, error) {
		var p PrestigeResetPayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		_, err := c.PrestigeEvaluator().Apply(p.LayerID, ctx.Step, ctx.Timestamp)
		return nil, err
	})
}

// Command payloads for the built-in handlers.

// PurchaseGeneratorPayload requests count units of a generator.
type PurchaseGeneratorPayload struct {
	GeneratorID string `json:"generatorId"`
	Count       int    `json:"count"`
}

// ToggleGeneratorPayload enables or disables a generator.
type ToggleGeneratorPayload struct {
	GeneratorID string `json:"generatorId"`
	Enabled     bool   `json:"enabled"`
}

// PurchaseUpgradePayload requests one purchase of an upgrade.
type PurchaseUpgradePayload struct {
	UpgradeID string `json:"upgradeId"`
}

// PrestigeResetPayload requests a prestige layer reset.
type PrestigeResetPayload struct {
	LayerID string `json:"layerId"`
}

// decodePayload accepts either the typed payload struct or the generic
// map shape a JSON boundary produces, converting through json in the
// latter case.
func decodePayload(payload any, dst any) error {
	switch v := payload.(type) {
	case nil:
		return errors.New("missing payload")
	case json.RawMessage:
		return errors.Wrap(json.Unmarshal(v, dst), "decode payload")
	case []byte:
		return errors.Wrap(json.Unmarshal(v, dst), "decode payload")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "decode payload")
	}
	return errors.Wrap(json.Unmarshal(data, dst), "decode payload")
}
