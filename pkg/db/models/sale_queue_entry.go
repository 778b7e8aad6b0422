package models

import (
	"time"

	"github.com/angelmondragon/posterminal/pkg/enums"
)

// SaleQueueEntry is a sale held locally until the backend acknowledges it.
// Seq is the FIFO key and never changes once assigned.
type SaleQueueEntry struct {
	Seq            int64            `gorm:"column:seq;primaryKey;autoIncrement"`
	IdempotencyKey string           `gorm:"column:idempotency_key;not null;uniqueIndex:idx_sale_queue_entries_key"`
	Payload        string           `gorm:"column:payload;type:text;not null"`
	SyncStatus     enums.SyncStatus `gorm:"column:sync_status;not null;default:'pending';index"`
	EnqueuedAt     time.Time        `gorm:"column:enqueued_at;not null"`
	AttemptCount   int              `gorm:"column:attempt_count;not null;default:0"`
	LastError      *string          `gorm:"column:last_error"`
	LastAttemptAt  *time.Time       `gorm:"column:last_attempt_at"`
	SyncedAt       *time.Time       `gorm:"column:synced_at"`
	RemoteSaleID   *string          `gorm:"column:remote_sale_id"`
	ReceiptNumber  *string          `gorm:"column:receipt_number"`
}

func (SaleQueueEntry) TableName() string {
	return "sale_queue_entries"
}
