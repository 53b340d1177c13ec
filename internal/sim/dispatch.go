package sim

import "fmt"

// ExecContext carries the deterministic execution environment for a
// command handler. It is derived from the command itself, never from
// wall-clock reads.
type ExecContext struct {
	Step      uint64
	Timestamp float64
	Priority  Priority
	RequestID string
}

// Handler executes one command. A handler may finish its work on another
// goroutine; in that case it returns a non-nil done channel and the
// dispatcher records any eventual error without blocking step progression.
// Ordering between that resolution and later steps is unspecified.
type Handler func(ctx ExecContext, payload any) (done <-chan error, err error)

// AuthorizationRule states which priorities may execute a command type and
// which telemetry kind is recorded on violation.
type AuthorizationRule struct {
	AllowedPriorities map[Priority]bool
	ViolationKind     EventKind // zero value falls back to CommandPriorityViolation
}

// AllowAll returns a rule permitting every priority.
func AllowAll() AuthorizationRule {
	return AuthorizationRule{AllowedPriorities: map[Priority]bool{
		PrioritySystem:     true,
		PriorityPlayer:     true,
		PriorityAutomation: true,
	}}
}

// Allow returns a rule permitting only the listed priorities.
func Allow(priorities ...Priority) AuthorizationRule {
	set := make(map[Priority]bool, len(priorities))
	for _, p := range priorities {
		set[p] = true
	}
	return AuthorizationRule{AllowedPriorities: set}
}

// AuthorizationPolicy maps command types to their rules. Types without a
// rule default to allow-all: authorization is an opt-in restriction.
type AuthorizationPolicy map[string]AuthorizationRule

// Dispatcher routes commands to registered handlers behind the
// authorization policy, isolating every failure so a single bad command
// can never abort the step loop.
type Dispatcher struct {
	handlers  map[string]Handler
	policy    AuthorizationPolicy
	telemetry TelemetrySink

	executed   uint64
	dropped    uint64
	failures   uint64
	violations uint64
}

// NewDispatcher creates a dispatcher. A nil policy means every command
// type is open to every priority.
func NewDispatcher(policy AuthorizationPolicy, telemetry TelemetrySink) *Dispatcher {
	if telemetry == nil {
		telemetry = NopSink{}
	}
	return &Dispatcher{
		handlers:  make(map[string]Handler),
		policy:    policy,
		telemetry: telemetry,
	}
}

// Register binds a handler to a command type. Re-registering a type
// overwrites the previous handler; the replacement is recorded so a
// misconfigured host shows up in telemetry rather than silently losing
// a handler.
func (d *Dispatcher) Register(commandType string, handler Handler) {
	if _, exists := d.handlers[commandType]; exists {
		d.telemetry.RecordWarning(KindHandlerReplaced, map[string]any{
			"commandType": commandType,
		})
	}
	d.handlers[commandType] = handler
}

// authorize checks the policy for cmd. Returns false and records the
// rule's violation kind when the priority is not allowed.
func (d *Dispatcher) authorize(cmd Command) bool {
	rule, ok := d.policy[cmd.Type]
	if !ok {
		return true
	}
	if rule.AllowedPriorities[cmd.Priority] {
		return true
	}
	kind := rule.ViolationKind
	if kind == KindUnknown {
		kind = KindCommandPriorityViolation
	}
	d.violations++
	d.telemetry.RecordError(kind, map[string]any{
		"commandType": cmd.Type,
		"priority":    cmd.Priority.String(),
		"step":        cmd.Step,
		"requestId":   cmd.RequestID,
	})
	return false
}

// Execute runs one command through the full pipeline: handler lookup,
// authorization, then the failure boundary. Returns true when the handler
// ran (successfully or not).
func (d *Dispatcher) Execute(cmd Command) bool {
	handler, ok := d.handlers[cmd.Type]
	if !ok {
		d.dropped++
		d.telemetry.RecordError(KindUnknownCommandType, map[string]any{
			"commandType": cmd.Type,
			"step":        cmd.Step,
			"requestId":   cmd.RequestID,
		})
		return false
	}

	if !d.authorize(cmd) {
		d.dropped++
		return false
	}

	ctx := ExecContext{
		Step:      cmd.Step,
		Timestamp: cmd.Timestamp,
		Priority:  cmd.Priority,
		RequestID: cmd.RequestID,
	}

	done, err := d.runIsolated(handler, ctx, cmd.Payload)
	if err != nil {
		d.failures++
		d.recordFailure(ctx, cmd.Type, err)
	} else {
		d.executed++
	}

	if done != nil {
		// Async completion is attributed to the originating step captured
		// in ctx, regardless of how many steps have advanced by the time
		// the handler resolves.
		go func() {
			if asyncErr := <-done; asyncErr != nil {
				d.recordFailure(ctx, cmd.Type, asyncErr)
			}
		}()
	}
	return true
}

// runIsolated invokes the handler inside a recover boundary so a panicking
// handler is recorded, not propagated.
func (d *Dispatcher) runIsolated(handler Handler, ctx ExecContext, payload any) (done <-chan error, err error) {
	defer func() {
		if r := recover(); r != nil {
			done = nil
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, payload)
}

func (d *Dispatcher) recordFailure(ctx ExecContext, commandType string, err error) {
	d.telemetry.RecordError(KindCommandExecutionFailed, map[string]any{
		"commandType": commandType,
		"step":        ctx.Step,
		"requestId":   ctx.RequestID,
		"error":       err.Error(),
	})
}

// Stats reports dispatcher counters for observability.
func (d *Dispatcher) Stats() DispatchStats {
	return DispatchStats{
		Executed:   d.executed,
		Dropped:    d.dropped,
		Failures:   d.failures,
		Violations: d.violations,
	}
}

// DispatchStats are monotonic dispatcher counters.
type DispatchStats struct {
	Executed   uint64 `json:"executed"`
	Dropped    uint64 `json:"dropped"`
	Failures   uint64 `json:"failures"`
	Violations uint64 `json:"violations"`
}
