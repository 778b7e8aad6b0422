package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/posterminal/pkg/enums"
)

const syncJobName = "sale-sync-trigger"

type pendingCounter interface {
	PendingCount(ctx context.Context) (int64, error)
}

type syncTrigger interface {
	Online() bool
	Trigger(trigger enums.SyncTrigger)
}

// SyncJob nudges the coordinator while the backend is reachable and sales
// are waiting.
type SyncJob struct {
	queue pendingCounter
	sync  syncTrigger
}

func NewSyncJob(queue pendingCounter, sync syncTrigger) (*SyncJob, error) {
	if queue == nil {
		return nil, fmt.Errorf("sale queue required")
	}
	if sync == nil {
		return nil, fmt.Errorf("sync coordinator required")
	}
	return &SyncJob{queue: queue, sync: sync}, nil
}

func (j *SyncJob) Name() string { return syncJobName }

func (j *SyncJob) Run(ctx context.Context) error {
	if !j.sync.Online() {
		return nil
	}
	pending, err := j.queue.PendingCount(ctx)
	if err != nil {
		return fmt.Errorf("count pending sales: %w", err)
	}
	if pending > 0 {
		j.sync.Trigger(enums.SyncTriggerPeriodic)
	}
	return nil
}
