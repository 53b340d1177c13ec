package sim

// Priority ranks who issued a command. The authorization policy decides
// which priorities may execute each command type.
type Priority uint8

const (
	PrioritySystem Priority = iota
	PriorityPlayer
	PriorityAutomation
)

// String returns a human-readable priority name.
func (p Priority) String() string {
	switch p {
	case PrioritySystem:
		return "system"
	case PriorityPlayer:
		return "player"
	case PriorityAutomation:
		return "automation"
	default:
		return "invalid"
	}
}

// Valid reports whether p is one of the three defined priorities.
func (p Priority) Valid() bool {
	return p <= PriorityAutomation
}

// Well-known command types handled by the coordinator.
const (
	CommandPurchaseGenerator = "PurchaseGenerator"
	CommandPurchaseUpgrade   = "PurchaseUpgrade"
	CommandToggleGenerator   = "ToggleGenerator"
	CommandPrestigeReset     = "PrestigeReset"
)

// Command represents an intent captured for processing on a step.
// Commands are consumed exactly once: dequeued, dispatched, discarded.
type Command struct {
	Type      string   `json:"type"`
	Payload   any      `json:"payload,omitempty"`
	Priority  Priority `json:"priority"`
	Step      uint64   `json:"step"`
	Timestamp float64  `json:"timestamp"`
	RequestID string   `json:"requestId,omitempty"`
}

// CommandQueue is a bounded FIFO of pending commands. Enqueue is safe for
// a single external producer behind the runtime's lock; the coordinator
// drains it at the start of each step.
type CommandQueue struct {
	pending []Command
	limit   int
	dropped uint64
}

// NewCommandQueue creates a queue that holds at most limit commands.
func NewCommandQueue(limit int) *CommandQueue {
	if limit <= 0 {
		limit = 1024
	}
	return &CommandQueue{
		pending: make([]Command, 0, limit),
		limit:   limit,
	}
}

// Enqueue appends a command, returning false when the queue is full.
func (q *CommandQueue) Enqueue(cmd Command) bool {
	if len(q.pending) >= q.limit {
		q.dropped++
		return false
	}
	q.pending = append(q.pending, cmd)
	return true
}

// Drain moves all pending commands into dst and empties the queue.
// The returned slice is only valid until the next Drain call.
func (q *CommandQueue) Drain(dst []Command) []Command {
	dst = append(dst[:0], q.pending...)
	q.pending = q.pending[:0]
	return dst
}

// Len returns the number of pending commands.
func (q *CommandQueue) Len() int { return len(q.pending) }

// Dropped returns how many commands were rejected because the queue was full.
func (q *CommandQueue) Dropped() uint64 { return q.dropped }
