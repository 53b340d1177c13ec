package sim

import (
	"math"

	"idleforge/internal/content"
)

// ResourceRecord is one authoritative resource row. Records are dense and
// index-addressed; indexes are assigned once at construction and stay
// stable for the store's lifetime.
type ResourceRecord struct {
	ID       string
	Amount   float64
	Capacity float64 // only meaningful when Capped
	Capped   bool
	Unlocked bool
	Visible  bool
}

// ResourceStore owns the authoritative resource rows. Safe-tier methods
// clamp into valid domains and can be called by any component that holds
// the store; privileged writes are unexported and reachable only from the
// reset engine and the hydration path inside this package.
type ResourceStore struct {
	records  []ResourceRecord
	index    map[string]int
	defaults []resourceDefaults
}

// resourceDefaults captures the content-pack flags restored on full wipe.
type resourceDefaults struct {
	unlocked bool
	visible  bool
}

// NewResourceStore builds the store from normalized content definitions.
// Built once at coordinator construction; never rebuilt, only mutated.
func NewResourceStore(defs []content.ResourceDef) *ResourceStore {
	s := &ResourceStore{
		records:  make([]ResourceRecord, 0, len(defs)),
		index:    make(map[string]int, len(defs)),
		defaults: make([]resourceDefaults, 0, len(defs)),
	}
	for _, def := range defs {
		rec := ResourceRecord{
			ID:       def.ID,
			Amount:   clampAmount(def.StartAmount, def.Capacity),
			Unlocked: def.Unlocked,
			Visible:  def.Visible,
		}
		if def.Capacity != nil {
			rec.Capacity = *def.Capacity
			rec.Capped = true
		}
		s.index[def.ID] = len(s.records)
		s.records = append(s.records, rec)
		s.defaults = append(s.defaults, resourceDefaults{unlocked: def.Unlocked, visible: def.Visible})
	}
	return s
}

func clampAmount(amount float64, capacity *float64) float64 {
	if amount < 0 || math.IsNaN(amount) {
		return 0
	}
	if capacity != nil && amount > *capacity {
		return *capacity
	}
	return amount
}

// Index returns the stable index for id. Callers must treat a miss as
// skip-with-warning, never as fatal.
func (s *ResourceStore) Index(id string) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}

// Len returns the number of resource rows.
func (s *ResourceStore) Len() int { return len(s.records) }

// Record returns a copy of the row at index i.
func (s *ResourceStore) Record(i int) ResourceRecord { return s.records[i] }

// AddAmount applies a signed delta, clamping to [0, capacity]. Returns the
// resulting amount. Safe tier.
func (s *ResourceStore) AddAmount(i int, delta float64) float64 {
	rec := &s.records[i]
	next := rec.Amount + delta
	if next < 0 || math.IsNaN(next) {
		next = 0
	}
	if rec.Capped && next > rec.Capacity {
		next = rec.Capacity
	}
	rec.Amount = next
	return next
}

// ApplyIncome credits a non-negative amount. Safe tier.
func (s *ResourceStore) ApplyIncome(i int, amount float64) float64 {
	if amount < 0 || math.IsNaN(amount) {
		return s.records[i].Amount
	}
	return s.AddAmount(i, amount)
}

// ApplyExpense debits a non-negative amount, clamping at zero. Safe tier.
func (s *ResourceStore) ApplyExpense(i int, amount float64) float64 {
	if amount < 0 || math.IsNaN(amount) {
		return s.records[i].Amount
	}
	return s.AddAmount(i, -amount)
}

// CanAfford reports whether the row holds at least amount.
func (s *ResourceStore) CanAfford(i int, amount float64) bool {
	return s.records[i].Amount >= amount
}

// SetUnlocked flips the unlocked flag. Safe tier: flags have no numeric
// domain to corrupt.
func (s *ResourceStore) SetUnlocked(i int, unlocked bool) {
	s.records[i].Unlocked = unlocked
}

// SetVisible flips the visible flag. Safe tier.
func (s *ResourceStore) SetVisible(i int, visible bool) {
	s.records[i].Visible = visible
}

// setAmountPrivileged writes an exact amount, bypassing accumulation.
// Reserved for the reset engine and save hydration; unexported so the
// compile-time package boundary is the privilege boundary.
func (s *ResourceStore) setAmountPrivileged(i int, amount float64) {
	rec := &s.records[i]
	if amount < 0 || math.IsNaN(amount) {
		amount = 0
	}
	if rec.Capped && amount > rec.Capacity {
		amount = rec.Capacity
	}
	rec.Amount = amount
}

// setFlagsPrivileged writes exact unlocked/visible flags (hydration).
func (s *ResourceStore) setFlagsPrivileged(i int, unlocked, visible bool) {
	s.records[i].Unlocked = unlocked
	s.records[i].Visible = visible
}

// restoreDefaultFlags resets unlocked/visible to content defaults for a
// full-wipe prestige reset.
func (s *ResourceStore) restoreDefaultFlags(i int) {
	s.records[i].Unlocked = s.defaults[i].unlocked
	s.records[i].Visible = s.defaults[i].visible
}

// View returns a read-only projection over the live rows. Every accessor
// returns value copies, so external readers cannot mutate store state;
// all mutation flows through the command queue.
func (s *ResourceStore) View() ResourceView {
	return ResourceView{store: s}
}

// ResourceView is an immutable projection of a ResourceStore.
type ResourceView struct {
	store *ResourceStore
}

// Len returns the number of resource rows.
func (v ResourceView) Len() int { return v.store.Len() }

// At returns a copy of the row at index i.
func (v ResourceView) At(i int) ResourceRecord { return v.store.records[i] }

// ByID returns a copy of the row for id.
func (v ResourceView) ByID(id string) (ResourceRecord, bool) {
	i, ok := v.store.index[id]
	if !ok {
		return ResourceRecord{}, false
	}
	return v.store.records[i], true
}
