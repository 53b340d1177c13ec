package sim

import "idleforge/internal/content"

// UpgradeStatus is the derived lifecycle state of an upgrade.
type UpgradeStatus uint8

const (
	UpgradeLocked UpgradeStatus = iota
	UpgradeAvailable
	UpgradePurchased // at least one purchase, more remain
	UpgradeExhausted // max purchases reached
)

// String returns a human-readable status name.
func (s UpgradeStatus) String() string {
	switch s {
	case UpgradeLocked:
		return "locked"
	case UpgradeAvailable:
		return "available"
	case UpgradePurchased:
		return "purchased"
	case UpgradeExhausted:
		return "exhausted"
	default:
		return "invalid"
	}
}

// UpgradeRecord is one authoritative upgrade row.
type UpgradeRecord struct {
	ID        string
	Purchases int
	Status    UpgradeStatus
}

// UpgradeStore owns the authoritative upgrade rows.
type UpgradeStore struct {
	records []UpgradeRecord
	index   map[string]int
}

// NewUpgradeStore builds the store from normalized content definitions.
func NewUpgradeStore(defs []content.UpgradeDef) *UpgradeStore {
	s := &UpgradeStore{
		records: make([]UpgradeRecord, 0, len(defs)),
		index:   make(map[string]int, len(defs)),
	}
	for _, def := range defs {
		s.index[def.ID] = len(s.records)
		s.records = append(s.records, UpgradeRecord{ID: def.ID, Status: UpgradeLocked})
	}
	return s
}

// Index returns the stable index for id.
func (s *UpgradeStore) Index(id string) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}

// Len returns the number of upgrade rows.
func (s *UpgradeStore) Len() int { return len(s.records) }

// Record returns a copy of the row at index i.
func (s *UpgradeStore) Record(i int) UpgradeRecord { return s.records[i] }

// IncrementPurchases adds count purchases, clamping at zero. Safe tier.
func (s *UpgradeStore) IncrementPurchases(i int, count int) int {
	rec := &s.records[i]
	next := rec.Purchases + count
	if next < 0 {
		next = 0
	}
	rec.Purchases = next
	return next
}

// SetStatus writes the derived status. Safe tier: status is recomputed
// from state, not accumulated.
func (s *UpgradeStore) SetStatus(i int, status UpgradeStatus) {
	s.records[i].Status = status
}

// resetPrivileged writes the exact post-reset state for a prestige wipe.
func (s *UpgradeStore) resetPrivileged(i int, purchases int) {
	rec := &s.records[i]
	if purchases < 0 {
		purchases = 0
	}
	rec.Purchases = purchases
	rec.Status = UpgradeLocked
}

// View returns a read-only projection over the live rows.
func (s *UpgradeStore) View() UpgradeView {
	return UpgradeView{store: s}
}

// UpgradeView is an immutable projection of an UpgradeStore.
type UpgradeView struct {
	store *UpgradeStore
}

// Len returns the number of upgrade rows.
func (v UpgradeView) Len() int { return v.store.Len() }

// At returns a copy of the row at index i.
func (v UpgradeView) At(i int) UpgradeRecord { return v.store.records[i] }

// ByID returns a copy of the row for id.
func (v UpgradeView) ByID(id string) (UpgradeRecord, bool) {
	i, ok := v.store.index[id]
	if !ok {
		return UpgradeRecord{}, false
	}
	return v.store.records[i], true
}
