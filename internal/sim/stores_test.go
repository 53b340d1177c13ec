package sim

import (
	"math"
	"testing"

	"idleforge/internal/content"
)

// TestResourceStoreClamping tests the safe-tier amount domain
func TestResourceStoreClamping(t *testing.T) {
	s := NewResourceStore([]content.ResourceDef{
		{ID: "energy", StartAmount: 10, Unlocked: true, Visible: true},
		{ID: "crystal", StartAmount: 10, Capacity: floatPtr(25)},
	})

	ei, _ := s.Index("energy")
	ci, _ := s.Index("crystal")

	if got := s.AddAmount(ei, -50); got != 0 {
		t.Errorf("Underflow should clamp to 0, got %v", got)
	}
	if got := s.AddAmount(ci, 100); got != 25 {
		t.Errorf("Overflow should clamp to capacity 25, got %v", got)
	}
	if got := s.AddAmount(ei, math.NaN()); got != 0 {
		t.Errorf("NaN delta should clamp to 0, got %v", got)
	}
}

// TestResourceStoreIncomeExpense tests the signed helpers reject bad input
func TestResourceStoreIncomeExpense(t *testing.T) {
	s := NewResourceStore([]content.ResourceDef{
		{ID: "energy", StartAmount: 10},
	})
	i, _ := s.Index("energy")

	if got := s.ApplyIncome(i, -5); got != 10 {
		t.Errorf("Negative income should be a no-op, got %v", got)
	}
	if got := s.ApplyExpense(i, -5); got != 10 {
		t.Errorf("Negative expense should be a no-op, got %v", got)
	}
	if got := s.ApplyExpense(i, 25); got != 0 {
		t.Errorf("Over-spend should clamp at 0, got %v", got)
	}
	if got := s.ApplyIncome(i, 7); got != 7 {
		t.Errorf("Expected 7 after income, got %v", got)
	}
	if !s.CanAfford(i, 7) || s.CanAfford(i, 7.01) {
		t.Error("CanAfford boundary is wrong")
	}
}

// TestResourceStoreStartAmountClamped tests that content start amounts
// respect the capacity
func TestResourceStoreStartAmountClamped(t *testing.T) {
	s := NewResourceStore([]content.ResourceDef{
		{ID: "crystal", StartAmount: 200, Capacity: floatPtr(50)},
	})
	i, _ := s.Index("crystal")
	if got := s.Record(i).Amount; got != 50 {
		t.Errorf("Start amount should clamp to capacity, got %v", got)
	}
}

// TestResourceViewIsCopy tests that view reads cannot mutate store state
func TestResourceViewIsCopy(t *testing.T) {
	s := NewResourceStore([]content.ResourceDef{
		{ID: "energy", StartAmount: 10, Unlocked: true},
	})
	v := s.View()

	rec := v.At(0)
	rec.Amount = 9999
	rec.Unlocked = false

	if got := s.Record(0).Amount; got != 10 {
		t.Errorf("View mutation leaked into store: %v", got)
	}
	if rec2, ok := v.ByID("energy"); !ok || rec2.Amount != 10 {
		t.Errorf("ByID returned wrong record: %+v ok=%v", rec2, ok)
	}
	if _, ok := v.ByID("missing"); ok {
		t.Error("ByID should miss unknown ids")
	}
}

// TestResourcePrivilegedWrites tests the exact-write paths used by reset
// and hydration
func TestResourcePrivilegedWrites(t *testing.T) {
	s := NewResourceStore([]content.ResourceDef{
		{ID: "crystal", StartAmount: 10, Capacity: floatPtr(25), Unlocked: true, Visible: true},
	})

	s.setAmountPrivileged(0, 100)
	if got := s.Record(0).Amount; got != 25 {
		t.Errorf("Privileged write should still respect capacity, got %v", got)
	}
	s.setAmountPrivileged(0, -3)
	if got := s.Record(0).Amount; got != 0 {
		t.Errorf("Privileged write should clamp negatives to 0, got %v", got)
	}

	s.setFlagsPrivileged(0, false, false)
	if rec := s.Record(0); rec.Unlocked || rec.Visible {
		t.Error("setFlagsPrivileged did not apply")
	}
	s.restoreDefaultFlags(0)
	if rec := s.Record(0); !rec.Unlocked || !rec.Visible {
		t.Error("restoreDefaultFlags did not restore content defaults")
	}
}

// TestGeneratorStoreLifecycle tests ownership, toggling and cooldowns
func TestGeneratorStoreLifecycle(t *testing.T) {
	s := NewGeneratorStore([]content.GeneratorDef{
		{ID: "panel", Enabled: true, StartOwned: 2},
	})
	i, ok := s.Index("panel")
	if !ok {
		t.Fatal("panel not indexed")
	}

	if got := s.Record(i).Owned; got != 2 {
		t.Errorf("Expected start owned 2, got %d", got)
	}
	if got := s.IncrementOwned(i, 3); got != 5 {
		t.Errorf("Expected owned 5, got %d", got)
	}

	s.SetEnabled(i, false)
	if s.Record(i).Enabled {
		t.Error("SetEnabled(false) did not apply")
	}

	s.MarkPurchased(i, 10)
	if s.PurchaseReady(i, 9) {
		t.Error("Purchase should not be ready before the cooldown expires")
	}
	if !s.PurchaseReady(i, 10) {
		t.Error("Purchase should be ready at the cooldown step")
	}

	s.resetPrivileged(i, 0)
	rec := s.Record(i)
	if rec.Owned != 0 || !rec.Enabled || rec.NextPurchaseReadyAtStep != 0 {
		t.Errorf("Reset should zero ownership and restore defaults, got %+v", rec)
	}
}

// TestUpgradeStoreLifecycle tests purchases and status transitions
func TestUpgradeStoreLifecycle(t *testing.T) {
	s := NewUpgradeStore([]content.UpgradeDef{
		{ID: "boost", MaxPurchases: 2},
	})
	i, _ := s.Index("boost")

	if got := s.Record(i).Status; got != UpgradeLocked {
		t.Errorf("Expected initial status Locked, got %v", got)
	}

	s.SetStatus(i, UpgradeAvailable)
	if got := s.Record(i).Status; got != UpgradeAvailable {
		t.Errorf("Expected Available, got %v", got)
	}

	if got := s.IncrementPurchases(i, 1); got != 1 {
		t.Errorf("Expected 1 purchase, got %d", got)
	}

	s.resetPrivileged(i, 0)
	rec := s.Record(i)
	if rec.Purchases != 0 || rec.Status != UpgradeLocked {
		t.Errorf("Reset should zero purchases and relock, got %+v", rec)
	}
}

// TestUpgradeStatusString tests the status names used in snapshots
func TestUpgradeStatusString(t *testing.T) {
	cases := map[UpgradeStatus]string{
		UpgradeLocked:    "locked",
		UpgradeAvailable: "available",
		UpgradePurchased: "purchased",
		UpgradeExhausted: "exhausted",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("UpgradeStatus(%d).String() = %q, want %q", status, got, want)
		}
	}
}
