package sim

import "sync/atomic"

// ResourceSnapshot is an immutable copy of one resource row plus derived
// display state. Value types only, so a published snapshot can never leak
// a mutation path.
type ResourceSnapshot struct {
	ID       string  `json:"id"`
	Amount   float64 `json:"amount"`
	Capacity float64 `json:"capacity,omitempty"`
	Capped   bool    `json:"capped,omitempty"`
	Unlocked bool    `json:"unlocked"`
	Visible  bool    `json:"visible"`
}

// GeneratorSnapshot is an immutable copy of one generator row plus the
// derived purchase view.
type GeneratorSnapshot struct {
	ID                      string  `json:"id"`
	Owned                   int     `json:"owned"`
	Enabled                 bool    `json:"enabled"`
	NextPurchaseReadyAtStep uint64  `json:"nextPurchaseReadyAtStep"`
	NextCost                float64 `json:"nextCost"`
	Affordable              bool    `json:"affordable"`
	PurchaseReady           bool    `json:"purchaseReady"`
}

// UpgradeSnapshot is an immutable copy of one upgrade row plus the derived
// purchase view.
type UpgradeSnapshot struct {
	ID         string  `json:"id"`
	Purchases  int     `json:"purchases"`
	Status     string  `json:"status"`
	NextCost   float64 `json:"nextCost"`
	Affordable bool    `json:"affordable"`
}

// Metric is one named aggregate value carried on the snapshot.
type Metric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// ProgressionSnapshot is the complete immutable state published after each
// step for external renderers and shells. Serializable as-is.
type ProgressionSnapshot struct {
	Sequence   uint64              `json:"sequence"`
	Step       uint64              `json:"step"`
	Timestamp  float64             `json:"timestamp"`
	Resources  []ResourceSnapshot  `json:"resources"`
	Generators []GeneratorSnapshot `json:"generators"`
	Upgrades   []UpgradeSnapshot   `json:"upgrades"`
	Metrics    []Metric            `json:"metrics"`
}

// SnapshotPool triple-buffers snapshots so the simulation goroutine can
// publish without blocking readers on another goroutine, and readers never
// observe a half-written snapshot.
type SnapshotPool struct {
	snapshots [3]ProgressionSnapshot
	writeIdx  uint32 // atomic, producer only
	readIdx   uint32 // atomic
	sequence  uint64 // atomic
}

// NewSnapshotPool pre-allocates the buffers for the given store sizes.
func NewSnapshotPool(resources, generators, upgrades int) *SnapshotPool {
	pool := &SnapshotPool{}
	for i := range pool.snapshots {
		pool.snapshots[i] = ProgressionSnapshot{
			Resources:  make([]ResourceSnapshot, 0, resources),
			Generators: make([]GeneratorSnapshot, 0, generators),
			Upgrades:   make([]UpgradeSnapshot, 0, upgrades),
			Metrics:    make([]Metric, 0, 8),
		}
	}
	return pool
}

// AcquireWrite returns the next write slot with slices reset but capacity
// preserved. Producer only.
func (p *SnapshotPool) AcquireWrite() *ProgressionSnapshot {
	idx := atomic.AddUint32(&p.writeIdx, 1) % 3
	snap := &p.snapshots[idx]
	snap.Resources = snap.Resources[:0]
	snap.Generators = snap.Generators[:0]
	snap.Upgrades = snap.Upgrades[:0]
	snap.Metrics = snap.Metrics[:0]
	snap.Sequence = atomic.AddUint64(&p.sequence, 1)
	return snap
}

// PublishWrite makes the populated write slot visible to readers.
func (p *SnapshotPool) PublishWrite() {
	atomic.StoreUint32(&p.readIdx, atomic.LoadUint32(&p.writeIdx))
}

// AcquireRead returns the latest published snapshot.
func (p *SnapshotPool) AcquireRead() *ProgressionSnapshot {
	idx := atomic.LoadUint32(&p.readIdx) % 3
	return &p.snapshots[idx]
}
