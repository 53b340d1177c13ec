package sim

// EventKind classifies every telemetry event the core can emit.
// A closed enum (instead of free-form strings) makes handling exhaustive
// and keeps prometheus label cardinality bounded.
type EventKind uint8

const (
	KindUnknown EventKind = iota

	// Command pipeline
	KindUnknownCommandType
	KindCommandPriorityViolation
	KindCommandExecutionFailed
	KindCommandQueueOverflow
	KindHandlerReplaced

	// Prestige reset
	KindPrestigeRewardSkipped
	KindPrestigeResetResourceSkipped
	KindPrestigeResetGeneratorSkipped
	KindPrestigeResetUpgradeSkipped
	KindPrestigeApplied

	// Coordinator
	KindStepRegression
	KindHydrateAfterStart
	KindResourcesHydrated
	KindOfflineCatchUp
	KindPurchaseApplied

	// Lookup misses
	KindResourceNotFound
	KindGeneratorNotFound
	KindUpgradeNotFound
	KindPrestigeLayerNotFound

	// Event bus
	KindChannelSoftLimit
	KindChannelOverflow

	// Journal
	KindJournalDropped
)

// String returns the stable name recorded by telemetry sinks.
func (k EventKind) String() string {
	switch k {
	case KindUnknownCommandType:
		return "UnknownCommandType"
	case KindCommandPriorityViolation:
		return "CommandPriorityViolation"
	case KindCommandExecutionFailed:
		return "CommandExecutionFailed"
	case KindCommandQueueOverflow:
		return "CommandQueueOverflow"
	case KindHandlerReplaced:
		return "HandlerReplaced"
	case KindPrestigeRewardSkipped:
		return "PrestigeRewardSkipped"
	case KindPrestigeResetResourceSkipped:
		return "PrestigeResetResourceSkipped"
	case KindPrestigeResetGeneratorSkipped:
		return "PrestigeResetGeneratorSkipped"
	case KindPrestigeResetUpgradeSkipped:
		return "PrestigeResetUpgradeSkipped"
	case KindPrestigeApplied:
		return "PrestigeApplied"
	case KindStepRegression:
		return "StepRegression"
	case KindHydrateAfterStart:
		return "HydrateAfterStart"
	case KindResourcesHydrated:
		return "ResourcesHydrated"
	case KindOfflineCatchUp:
		return "OfflineCatchUp"
	case KindPurchaseApplied:
		return "PurchaseApplied"
	case KindResourceNotFound:
		return "ResourceNotFound"
	case KindGeneratorNotFound:
		return "GeneratorNotFound"
	case KindUpgradeNotFound:
		return "UpgradeNotFound"
	case KindPrestigeLayerNotFound:
		return "PrestigeLayerNotFound"
	case KindChannelSoftLimit:
		return "ChannelSoftLimit"
	case KindChannelOverflow:
		return "ChannelOverflow"
	case KindJournalDropped:
		return "JournalDropped"
	default:
		return "Unknown"
	}
}
