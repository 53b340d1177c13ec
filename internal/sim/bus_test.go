package sim

import "testing"

func newTestBus(sink *captureSink) *Bus {
	return NewBus(BusConfig{
		ChannelCapacity: 4,
		SoftLimit:       3,
		CooldownSteps:   2,
		WindowSteps:     10,
	}, 100, sink)
}

// TestBusDeliveryOrder tests that events reach subscribers in publication
// order and queues are freed after dispatch
func TestBusDeliveryOrder(t *testing.T) {
	b := newTestBus(&captureSink{})

	var got []string
	b.Subscribe("a", func(ev Event) { got = append(got, ev.Payload.(string)) })

	b.Publish(Event{Type: "a", Payload: "one"})
	b.Publish(Event{Type: "a", Payload: "two"})
	b.DispatchPending(1)

	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Errorf("Expected [one two], got %v", got)
	}

	// Queue must be empty after dispatch; nothing redelivered.
	b.DispatchPending(2)
	if len(got) != 2 {
		t.Errorf("Events redelivered: %v", got)
	}
}

// TestBusSoftLimit tests the soft-limit breach, its cooldown decay and
// the session counters
func TestBusSoftLimit(t *testing.T) {
	sink := &captureSink{}
	b := newTestBus(sink)

	b.Publish(Event{Type: "a"})
	b.Publish(Event{Type: "a"})
	if sink.warningCount(KindChannelSoftLimit) != 0 {
		t.Fatal("Soft limit breached too early")
	}

	// Third event reaches the soft limit: accepted, but flagged.
	if !b.Publish(Event{Type: "a"}) {
		t.Error("Soft-limited event should still be accepted")
	}
	if sink.warningCount(KindChannelSoftLimit) != 1 {
		t.Errorf("Expected 1 soft-limit warning, got %d", sink.warningCount(KindChannelSoftLimit))
	}

	snap := b.Snapshot()
	if snap.SoftLimited != 1 {
		t.Errorf("Expected softLimited=1, got %d", snap.SoftLimited)
	}
	if !snap.Channels[0].SoftLimitActive || snap.Channels[0].CooldownRemaining != 2 {
		t.Errorf("Expected active soft limit with cooldown 2, got %+v", snap.Channels[0])
	}

	// Cooldown decays one per dispatched step.
	b.DispatchPending(1)
	if got := b.Snapshot().Channels[0].CooldownRemaining; got != 1 {
		t.Errorf("Expected cooldown 1 after one step, got %d", got)
	}
	b.DispatchPending(2)
	ch := b.Snapshot().Channels[0]
	if ch.SoftLimitActive || ch.CooldownRemaining != 0 {
		t.Errorf("Expected soft limit cleared, got %+v", ch)
	}
}

// TestBusOverflow tests the hard drop at channel capacity
func TestBusOverflow(t *testing.T) {
	sink := &captureSink{}
	b := newTestBus(sink)

	for i := 0; i < 4; i++ {
		if !b.Publish(Event{Type: "a"}) {
			t.Fatalf("Event %d should fit within capacity", i)
		}
	}
	if b.Publish(Event{Type: "a"}) {
		t.Error("Event past capacity should be dropped")
	}

	if sink.warningCount(KindChannelOverflow) != 1 {
		t.Errorf("Expected 1 overflow warning, got %d", sink.warningCount(KindChannelOverflow))
	}
	snap := b.Snapshot()
	if snap.Overflowed != 1 || snap.Published != 4 {
		t.Errorf("Expected overflowed=1 published=4, got %+v", snap)
	}

	// Other channels are unaffected by one channel's saturation.
	if !b.Publish(Event{Type: "b"}) {
		t.Error("Independent channel should accept events")
	}
}

// TestBusSnapshotChannelOrder tests first-publication channel ordering
func TestBusSnapshotChannelOrder(t *testing.T) {
	b := newTestBus(&captureSink{})

	b.Publish(Event{Type: "zeta"})
	b.Publish(Event{Type: "alpha"})
	b.Publish(Event{Type: "zeta"})

	snap := b.Snapshot()
	if len(snap.Channels) != 2 {
		t.Fatalf("Expected 2 channels, got %d", len(snap.Channels))
	}
	if snap.Channels[0].Type != "zeta" || snap.Channels[1].Type != "alpha" {
		t.Errorf("Expected first-publication order [zeta alpha], got %v %v",
			snap.Channels[0].Type, snap.Channels[1].Type)
	}
	if snap.Channels[0].InUse != 2 || snap.Channels[1].InUse != 1 {
		t.Errorf("Wrong InUse counts: %+v", snap.Channels)
	}
}

// TestBusEventsPerSecondWindow tests the step-window rate computation
func TestBusEventsPerSecondWindow(t *testing.T) {
	// 10-step window at 100ms/step is a 1-second window.
	b := NewBus(BusConfig{
		ChannelCapacity: 64,
		SoftLimit:       48,
		CooldownSteps:   2,
		WindowSteps:     10,
	}, 100, nil)

	for step := uint64(1); step <= 10; step++ {
		b.Publish(Event{Type: "a", Step: step})
		b.DispatchPending(step)
	}

	if got := b.Snapshot().Channels[0].EventsPerSecond; got != 10 {
		t.Errorf("Expected 10 events/sec, got %v", got)
	}
}

// TestBusSubscriberCount tests the subscriber counter
func TestBusSubscriberCount(t *testing.T) {
	b := newTestBus(&captureSink{})
	b.Subscribe("a", func(Event) {})
	b.Subscribe("a", func(Event) {})
	b.Subscribe("b", func(Event) {})

	if got := b.Snapshot().Subscribers; got != 3 {
		t.Errorf("Expected 3 subscribers, got %d", got)
	}
}
