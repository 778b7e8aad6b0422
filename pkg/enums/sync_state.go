package enums

// SyncState is the coordinator's position in its sync cycle. Idle moves to
// Syncing on a trigger; Syncing ends in Idle or, on a transient failure,
// Backoff; Backoff returns to Idle after the retry delay.
type SyncState int32

const (
	SyncStateIdle SyncState = iota
	SyncStateSyncing
	SyncStateBackoff
)

func (s SyncState) String() string {
	switch s {
	case SyncStateIdle:
		return "idle"
	case SyncStateSyncing:
		return "syncing"
	case SyncStateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// SyncTrigger names what started a sync run.
type SyncTrigger string

const (
	SyncTriggerConnectivity SyncTrigger = "connectivity"
	SyncTriggerManual       SyncTrigger = "manual"
	SyncTriggerPeriodic     SyncTrigger = "periodic"
	SyncTriggerBackoff      SyncTrigger = "backoff"
	SyncTriggerCheckout     SyncTrigger = "checkout"
)
