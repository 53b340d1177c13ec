package sim

// Domain event types published on the bus. Each type gets its own bounded
// channel; renderers and shells subscribe per type.
const (
	EventResourceUnlocked   = "resource.unlocked"
	EventGeneratorPurchased = "generator.purchased"
	EventGeneratorToggled   = "generator.toggled"
	EventUpgradePurchased   = "upgrade.purchased"
	EventPrestigeApplied    = "prestige.applied"
	EventSnapshotPublished  = "snapshot.published"
)

// Event is one domain occurrence, stamped with the deterministic step and
// step-derived timestamp it happened at.
type Event struct {
	Type      string  `json:"type"`
	Step      uint64  `json:"step"`
	Timestamp float64 `json:"timestamp"`
	Payload   any     `json:"payload,omitempty"`
}

// Typed payloads for the domain events.

// ResourceUnlockedPayload announces a resource becoming active.
type ResourceUnlockedPayload struct {
	ResourceID string `json:"resourceId"`
}

// GeneratorPurchasedPayload carries the applied purchase.
type GeneratorPurchasedPayload struct {
	GeneratorID string  `json:"generatorId"`
	Count       int     `json:"count"`
	Owned       int     `json:"owned"`
	TotalCost   float64 `json:"totalCost"`
}

// GeneratorToggledPayload carries an automation toggle.
type GeneratorToggledPayload struct {
	GeneratorID string `json:"generatorId"`
	Enabled     bool   `json:"enabled"`
}

// UpgradePurchasedPayload carries the applied upgrade purchase.
type UpgradePurchasedPayload struct {
	UpgradeID string  `json:"upgradeId"`
	Purchases int     `json:"purchases"`
	Cost      float64 `json:"cost"`
}

// PrestigeAppliedPayload summarizes a completed reset.
type PrestigeAppliedPayload struct {
	LayerID      string  `json:"layerId"`
	RewardAmount float64 `json:"rewardAmount"`
	Skipped      int     `json:"skipped"`
}
