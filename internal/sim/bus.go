package sim

// BusConfig bounds every channel of the event bus. Crossing the soft
// limit starts a cooldown; reaching capacity hard-drops.
type BusConfig struct {
	ChannelCapacity int
	SoftLimit       int // must be < ChannelCapacity
	CooldownSteps   int // soft-limit cooldown, decays one per step
	WindowSteps     int // events/sec measurement window
}

// DefaultBusConfig returns bounds suitable for a UI consumer.
func DefaultBusConfig() BusConfig {
	return BusConfig{
		ChannelCapacity: 64,
		SoftLimit:       48,
		CooldownSteps:   10,
		WindowSteps:     10,
	}
}

// Subscriber receives delivered events. Delivery happens inside the step,
// so subscribers must be fast and must not call back into mutation paths.
type Subscriber func(Event)

// channel is the per-event-type bounded publication lane.
type channel struct {
	eventType         string
	queue             []Event
	softLimitActive   bool
	cooldownRemaining int
	softLimitBreaches uint64

	windowStart     uint64
	windowPublished uint64
	eventsPerSecond float64

	subscribers []Subscriber
}

// Bus is the bounded, backpressure-aware event bus. Single-threaded like
// the rest of the core; all calls happen on the simulation goroutine.
type Bus struct {
	cfg       BusConfig
	stepSize  float64
	channels  map[string]*channel
	order     []string
	telemetry TelemetrySink

	published   uint64
	softLimited uint64
	overflowed  uint64
	subscribers uint64
}

// NewBus creates a bus. stepSizeMs is used only to convert the window
// step count into an events/sec figure.
func NewBus(cfg BusConfig, stepSizeMs float64, telemetry TelemetrySink) *Bus {
	if cfg.ChannelCapacity <= 0 {
		cfg.ChannelCapacity = DefaultBusConfig().ChannelCapacity
	}
	if cfg.SoftLimit <= 0 || cfg.SoftLimit >= cfg.ChannelCapacity {
		cfg.SoftLimit = cfg.ChannelCapacity * 3 / 4
	}
	if cfg.CooldownSteps <= 0 {
		cfg.CooldownSteps = DefaultBusConfig().CooldownSteps
	}
	if cfg.WindowSteps <= 0 {
		cfg.WindowSteps = DefaultBusConfig().WindowSteps
	}
	if telemetry == nil {
		telemetry = NopSink{}
	}
	return &Bus{
		cfg:       cfg,
		stepSize:  stepSizeMs,
		channels:  make(map[string]*channel),
		telemetry: telemetry,
	}
}

func (b *Bus) channelFor(eventType string) *channel {
	ch, ok := b.channels[eventType]
	if !ok {
		ch = &channel{
			eventType: eventType,
			queue:     make([]Event, 0, b.cfg.ChannelCapacity),
		}
		b.channels[eventType] = ch
		b.order = append(b.order, eventType)
	}
	return ch
}

// Subscribe attaches fn to the channel for eventType.
func (b *Bus) Subscribe(eventType string, fn Subscriber) {
	ch := b.channelFor(eventType)
	ch.subscribers = append(ch.subscribers, fn)
	b.subscribers++
}

// Publish enqueues an event on its channel. Past the soft limit the event
// is still accepted while the breach is counted; at capacity it overflows
// and is dropped. Returns false for dropped events.
func (b *Bus) Publish(ev Event) bool {
	ch := b.channelFor(ev.Type)

	if len(ch.queue) >= b.cfg.ChannelCapacity {
		b.overflowed++
		b.telemetry.RecordWarning(KindChannelOverflow, map[string]any{
			"channel": ev.Type,
			"step":    ev.Step,
		})
		return false
	}

	ch.queue = append(ch.queue, ev)
	ch.windowPublished++
	b.published++

	if len(ch.queue) >= b.cfg.SoftLimit && !ch.softLimitActive {
		ch.softLimitActive = true
		ch.cooldownRemaining = b.cfg.CooldownSteps
		ch.softLimitBreaches++
		b.softLimited++
		b.telemetry.RecordWarning(KindChannelSoftLimit, map[string]any{
			"channel": ev.Type,
			"inUse":   len(ch.queue),
			"step":    ev.Step,
		})
	}
	return true
}

// DispatchPending delivers every queued event to its subscribers, frees the
// channels, decays soft-limit cooldowns and refreshes the events/sec
// windows. Called once at the end of each step.
func (b *Bus) DispatchPending(step uint64) {
	for _, eventType := range b.order {
		ch := b.channels[eventType]

		for _, ev := range ch.queue {
			for _, fn := range ch.subscribers {
				fn(ev)
			}
		}
		ch.queue = ch.queue[:0]

		if ch.softLimitActive {
			ch.cooldownRemaining--
			if ch.cooldownRemaining <= 0 {
				ch.softLimitActive = false
				ch.cooldownRemaining = 0
			}
		}

		if step-ch.windowStart >= uint64(b.cfg.WindowSteps) {
			windowMs := float64(b.cfg.WindowSteps) * b.stepSize
			ch.eventsPerSecond = float64(ch.windowPublished) * 1000 / windowMs
			ch.windowPublished = 0
			ch.windowStart = step
		}
	}
}

// ChannelSnapshot is the observable state of one channel.
type ChannelSnapshot struct {
	Type              string  `json:"type"`
	Capacity          int     `json:"capacity"`
	InUse             int     `json:"inUse"`
	SoftLimitActive   bool    `json:"softLimitActive"`
	CooldownRemaining int     `json:"cooldownTicksRemaining"`
	SoftLimitBreaches uint64  `json:"softLimitBreaches"`
	EventsPerSecond   float64 `json:"eventsPerSecond"`
}

// BackPressureSnapshot exposes the monotonic session counters and the
// per-channel state for observability.
type BackPressureSnapshot struct {
	Published   uint64            `json:"published"`
	SoftLimited uint64            `json:"softLimited"`
	Overflowed  uint64            `json:"overflowed"`
	Subscribers uint64            `json:"subscribers"`
	Channels    []ChannelSnapshot `json:"channels"`
}

// Snapshot captures the bus state. Channels appear in first-publication
// order so repeated snapshots diff cleanly.
func (b *Bus) Snapshot() BackPressureSnapshot {
	snap := BackPressureSnapshot{
		Published:   b.published,
		SoftLimited: b.softLimited,
		Overflowed:  b.overflowed,
		Subscribers: b.subscribers,
		Channels:    make([]ChannelSnapshot, 0, len(b.order)),
	}
	for _, eventType := range b.order {
		ch := b.channels[eventType]
		snap.Channels = append(snap.Channels, ChannelSnapshot{
			Type:              ch.eventType,
			Capacity:          b.cfg.ChannelCapacity,
			InUse:             len(ch.queue),
			SoftLimitActive:   ch.softLimitActive,
			CooldownRemaining: ch.cooldownRemaining,
			SoftLimitBreaches: ch.softLimitBreaches,
			EventsPerSecond:   ch.eventsPerSecond,
		})
	}
	return snap
}
