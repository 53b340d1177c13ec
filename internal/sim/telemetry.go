package sim

// TelemetrySink receives every non-fatal failure and progress signal the
// core produces. The core never inspects results; sinks must not block.
// Each simulation instance gets its own sink so tests stay isolated.
type TelemetrySink interface {
	RecordError(kind EventKind, data map[string]any)
	RecordWarning(kind EventKind, data map[string]any)
	RecordProgress(kind EventKind, data map[string]any)
	RecordTick()
}

// NopSink discards all telemetry. Used as the default when no sink is wired.
type NopSink struct{}

func (NopSink) RecordError(EventKind, map[string]any)    {}
func (NopSink) RecordWarning(EventKind, map[string]any)  {}
func (NopSink) RecordProgress(EventKind, map[string]any) {}
func (NopSink) RecordTick()                              {}
