package enum

type SyncMode string

const (
	SyncModeBackfill    SyncMode = "backfill"
	SyncModeIncremental SyncMode = "incremental"
)

func (t SyncMode) String() string {
	return string(t)
}

type SyncTrigger string

const (
	SyncTriggerScheduled SyncTrigger = "scheduled"
	SyncTriggerManual    SyncTrigger = "manual"
	SyncTriggerCLI       SyncTrigger = "cli"
)

func (t SyncTrigger) String() string {
	return string(t)
}

type SyncRunStatus string

const (
	SyncRunRunning   SyncRunStatus = "running"
	SyncRunCompleted SyncRunStatus = "completed"
	SyncRunAborted   SyncRunStatus = "aborted"
)

func (t SyncRunStatus) String() string {
	return string(t)
}
