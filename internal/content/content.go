// Package content holds the immutable normalized game definitions the
// simulation core is built from. A Pack is indexed once at coordinator
// construction and never mutated afterwards.
package content

import "github.com/pkg/errors"

// ResourceDef describes a currency or material.
type ResourceDef struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	StartAmount float64  `yaml:"startAmount"`
	Capacity    *float64 `yaml:"capacity"` // nil means uncapped
	Unlocked    bool     `yaml:"unlocked"`
	Visible     bool     `yaml:"visible"`
}

// GeneratorDef describes a producer purchased with a resource.
type GeneratorDef struct {
	ID                    string    `yaml:"id"`
	Name                  string    `yaml:"name"`
	Produces              string    `yaml:"produces"`
	RatePerStep           float64   `yaml:"ratePerStep"` // per owned unit
	CostResource          string    `yaml:"costResource"`
	Cost                  CostCurve `yaml:"cost"`
	PurchaseCooldownSteps uint64    `yaml:"purchaseCooldownSteps"`
	StartOwned            int       `yaml:"startOwned"`
	Enabled               bool      `yaml:"enabled"`
	UnlockThreshold       float64   `yaml:"unlockThreshold"` // produced-resource amount that reveals it
}

// UpgradeDef describes a repeatable or one-shot upgrade.
type UpgradeDef struct {
	ID               string    `yaml:"id"`
	Name             string    `yaml:"name"`
	CostResource     string    `yaml:"costResource"`
	Cost             CostCurve `yaml:"cost"`
	MaxPurchases     int       `yaml:"maxPurchases"` // 0 means unlimited
	UnlockAmount     float64   `yaml:"unlockAmount"` // cost-resource amount that unlocks it
	GrantsAutomation []string  `yaml:"grantsAutomation"`
	RateMultiplier   float64   `yaml:"rateMultiplier"` // applied per purchase to all generators
}

// PrestigeReward describes the durable grant of a prestige layer.
type PrestigeReward struct {
	Resource   string  `yaml:"resource"`
	BaseAmount float64 `yaml:"baseAmount"`
}

// PrestigeLayerDef describes a reset layer: what is zeroed, what is kept
// and what is granted in exchange.
type PrestigeLayerDef struct {
	ID               string         `yaml:"id"`
	Name             string         `yaml:"name"`
	ResetTargets     []string       `yaml:"resetTargets"`
	ResetGenerators  []string       `yaml:"resetGenerators"`
	ResetUpgrades    []string       `yaml:"resetUpgrades"`
	RetentionTargets []string       `yaml:"retentionTargets"`
	Reward           PrestigeReward `yaml:"reward"`
	FullWipe         bool           `yaml:"fullWipe"`
	// UnlockResource/UnlockAmount gate layer eligibility.
	UnlockResource string  `yaml:"unlockResource"`
	UnlockAmount   float64 `yaml:"unlockAmount"`
}

// Pack is the complete normalized content set.
type Pack struct {
	Resources  []ResourceDef      `yaml:"resources"`
	Generators []GeneratorDef     `yaml:"generators"`
	Upgrades   []UpgradeDef       `yaml:"upgrades"`
	Layers     []PrestigeLayerDef `yaml:"prestigeLayers"`

	resourceIdx  map[string]int
	generatorIdx map[string]int
	upgradeIdx   map[string]int
	layerIdx     map[string]int
}

// buildIndexes prepares the id lookups. Called by Validate.
func (p *Pack) buildIndexes() error {
	p.resourceIdx = make(map[string]int, len(p.Resources))
	for i, r := range p.Resources {
		if r.ID == "" {
			return errors.Errorf("resource %d: missing id", i)
		}
		if _, dup := p.resourceIdx[r.ID]; dup {
			return errors.Errorf("duplicate resource id %q", r.ID)
		}
		p.resourceIdx[r.ID] = i
	}
	p.generatorIdx = make(map[string]int, len(p.Generators))
	for i, g := range p.Generators {
		if g.ID == "" {
			return errors.Errorf("generator %d: missing id", i)
		}
		if _, dup := p.generatorIdx[g.ID]; dup {
			return errors.Errorf("duplicate generator id %q", g.ID)
		}
		p.generatorIdx[g.ID] = i
	}
	p.upgradeIdx = make(map[string]int, len(p.Upgrades))
	for i, u := range p.Upgrades {
		if u.ID == "" {
			return errors.Errorf("upgrade %d: missing id", i)
		}
		if _, dup := p.upgradeIdx[u.ID]; dup {
			return errors.Errorf("duplicate upgrade id %q", u.ID)
		}
		p.upgradeIdx[u.ID] = i
	}
	p.layerIdx = make(map[string]int, len(p.Layers))
	for i, l := range p.Layers {
		if l.ID == "" {
			return errors.Errorf("prestige layer %d: missing id", i)
		}
		if _, dup := p.layerIdx[l.ID]; dup {
			return errors.Errorf("duplicate prestige layer id %q", l.ID)
		}
		p.layerIdx[l.ID] = i
	}
	return nil
}

// Validate checks referential integrity and numeric domains, then builds
// the id indexes. A Pack must be validated before use.
func (p *Pack) Validate() error {
	if err := p.buildIndexes(); err != nil {
		return err
	}
	for _, r := range p.Resources {
		if r.StartAmount < 0 {
			return errors.Errorf("resource %q: negative start amount", r.ID)
		}
		if r.Capacity != nil && *r.Capacity < 0 {
			return errors.Errorf("resource %q: negative capacity", r.ID)
		}
	}
	for _, g := range p.Generators {
		if _, ok := p.resourceIdx[g.Produces]; !ok {
			return errors.Errorf("generator %q: unknown produced resource %q", g.ID, g.Produces)
		}
		if _, ok := p.resourceIdx[g.CostResource]; !ok {
			return errors.Errorf("generator %q: unknown cost resource %q", g.ID, g.CostResource)
		}
		if g.RatePerStep < 0 {
			return errors.Errorf("generator %q: negative rate", g.ID)
		}
		if err := g.Cost.validate(); err != nil {
			return errors.Wrapf(err, "generator %q", g.ID)
		}
	}
	for _, u := range p.Upgrades {
		if _, ok := p.resourceIdx[u.CostResource]; !ok {
			return errors.Errorf("upgrade %q: unknown cost resource %q", u.ID, u.CostResource)
		}
		if u.MaxPurchases < 0 {
			return errors.Errorf("upgrade %q: negative max purchases", u.ID)
		}
		if err := u.Cost.validate(); err != nil {
			return errors.Wrapf(err, "upgrade %q", u.ID)
		}
	}
	for _, l := range p.Layers {
		if _, ok := p.resourceIdx[l.Reward.Resource]; !ok {
			return errors.Errorf("prestige layer %q: unknown reward resource %q", l.ID, l.Reward.Resource)
		}
		if l.Reward.BaseAmount < 0 {
			return errors.Errorf("prestige layer %q: negative reward", l.ID)
		}
		if l.UnlockResource != "" {
			if _, ok := p.resourceIdx[l.UnlockResource]; !ok {
				return errors.Errorf("prestige layer %q: unknown unlock resource %q", l.ID, l.UnlockResource)
			}
		}
		// Reset/retention targets referencing unknown ids are allowed here:
		// the runtime treats them as skip-with-warning so packs can carry
		// forward ids from older versions.
	}
	return nil
}

// Resource returns the definition for id.
func (p *Pack) Resource(id string) (ResourceDef, bool) {
	i, ok := p.resourceIdx[id]
	if !ok {
		return ResourceDef{}, false
	}
	return p.Resources[i], true
}

// Generator returns the definition for id.
func (p *Pack) Generator(id string) (GeneratorDef, bool) {
	i, ok := p.generatorIdx[id]
	if !ok {
		return GeneratorDef{}, false
	}
	return p.Generators[i], true
}

// Upgrade returns the definition for id.
func (p *Pack) Upgrade(id string) (UpgradeDef, bool) {
	i, ok := p.upgradeIdx[id]
	if !ok {
		return UpgradeDef{}, false
	}
	return p.Upgrades[i], true
}

// Layer returns the prestige layer definition for id.
func (p *Pack) Layer(id string) (PrestigeLayerDef, bool) {
	i, ok := p.layerIdx[id]
	if !ok {
		return PrestigeLayerDef{}, false
	}
	return p.Layers[i], true
}
