package sim

import "idleforge/internal/content"

// GeneratorRecord is one authoritative generator row.
type GeneratorRecord struct {
	ID                      string
	Owned                   int
	Enabled                 bool
	NextPurchaseReadyAtStep uint64
}

// GeneratorStore owns the authoritative generator rows with the same
// two-tier mutation model as ResourceStore.
type GeneratorStore struct {
	records  []GeneratorRecord
	index    map[string]int
	defaults []generatorDefaults
}

type generatorDefaults struct {
	enabled bool
}

// NewGeneratorStore builds the store from normalized content definitions.
func NewGeneratorStore(defs []content.GeneratorDef) *GeneratorStore {
	s := &GeneratorStore{
		records:  make([]GeneratorRecord, 0, len(defs)),
		index:    make(map[string]int, len(defs)),
		defaults: make([]generatorDefaults, 0, len(defs)),
	}
	for _, def := range defs {
		owned := def.StartOwned
		if owned < 0 {
			owned = 0
		}
		s.index[def.ID] = len(s.records)
		s.records = append(s.records, GeneratorRecord{
			ID:      def.ID,
			Owned:   owned,
			Enabled: def.Enabled,
		})
		s.defaults = append(s.defaults, generatorDefaults{enabled: def.Enabled})
	}
	return s
}

// Index returns the stable index for id.
func (s *GeneratorStore) Index(id string) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}

// Len returns the number of generator rows.
func (s *GeneratorStore) Len() int { return len(s.records) }

// Record returns a copy of the row at index i.
func (s *GeneratorStore) Record(i int) GeneratorRecord { return s.records[i] }

// IncrementOwned adds count purchases, clamping at zero. Safe tier.
func (s *GeneratorStore) IncrementOwned(i int, count int) int {
	rec := &s.records[i]
	next := rec.Owned + count
	if next < 0 {
		next = 0
	}
	rec.Owned = next
	return next
}

// SetEnabled toggles automation of the generator. Safe tier.
func (s *GeneratorStore) SetEnabled(i int, enabled bool) {
	s.records[i].Enabled = enabled
}

// MarkPurchased records the step at which the next purchase becomes
// available again. Safe tier.
func (s *GeneratorStore) MarkPurchased(i int, readyAtStep uint64) {
	s.records[i].NextPurchaseReadyAtStep = readyAtStep
}

// PurchaseReady reports whether step has reached the purchase cooldown.
func (s *GeneratorStore) PurchaseReady(i int, step uint64) bool {
	return step >= s.records[i].NextPurchaseReadyAtStep
}

// resetPrivileged writes the exact post-reset state for a prestige wipe.
func (s *GeneratorStore) resetPrivileged(i int, owned int) {
	rec := &s.records[i]
	if owned < 0 {
		owned = 0
	}
	rec.Owned = owned
	rec.Enabled = s.defaults[i].enabled
	rec.NextPurchaseReadyAtStep = 0
}

// View returns a read-only projection over the live rows.
func (s *GeneratorStore) View() GeneratorView {
	return GeneratorView{store: s}
}

// GeneratorView is an immutable projection of a GeneratorStore.
type GeneratorView struct {
	store *GeneratorStore
}

// Len returns the number of generator rows.
func (v GeneratorView) Len() int { return v.store.Len() }

// At returns a copy of the row at index i.
func (v GeneratorView) At(i int) GeneratorRecord { return v.store.records[i] }

// ByID returns a copy of the row for id.
func (v GeneratorView) ByID(id string) (GeneratorRecord, bool) {
	i, ok := v.store.index[id]
	if !ok {
		return GeneratorRecord{}, false
	}
	return v.store.records[i], true
}
