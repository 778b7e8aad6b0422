package salequeue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/posterminal/pkg/db/models"
	"github.com/angelmondragon/posterminal/pkg/enums"
	"github.com/angelmondragon/posterminal/pkg/types"
)

// Entry is a queued sale together with its delivery bookkeeping.
type Entry struct {
	Seq           int64
	Sale          types.Sale
	Status        enums.SyncStatus
	EnqueuedAt    time.Time
	AttemptCount  int
	LastError     string
	LastAttemptAt *time.Time
	SyncedAt      *time.Time
}

// Key is the sale's idempotency key.
func (e Entry) Key() string {
	return e.Sale.IdempotencyKey
}

func toRow(sale types.Sale, now time.Time) (models.SaleQueueEntry, error) {
	sale.SyncStatus = enums.SyncStatusPending
	payload, err := json.Marshal(sale)
	if err != nil {
		return models.SaleQueueEntry{}, fmt.Errorf("encode sale payload: %w", err)
	}
	return models.SaleQueueEntry{
		IdempotencyKey: sale.IdempotencyKey,
		Payload:        string(payload),
		SyncStatus:     enums.SyncStatusPending,
		EnqueuedAt:     now,
	}, nil
}

func fromRow(row models.SaleQueueEntry) (Entry, error) {
	var sale types.Sale
	if err := json.Unmarshal([]byte(row.Payload), &sale); err != nil {
		return Entry{}, fmt.Errorf("decode sale payload seq=%d: %w", row.Seq, err)
	}
	sale.SyncStatus = row.SyncStatus
	if row.RemoteSaleID != nil {
		sale.RemoteSaleID = *row.RemoteSaleID
	}
	if row.ReceiptNumber != nil {
		sale.ReceiptNumber = *row.ReceiptNumber
	}
	entry := Entry{
		Seq:           row.Seq,
		Sale:          sale,
		Status:        row.SyncStatus,
		EnqueuedAt:    row.EnqueuedAt,
		AttemptCount:  row.AttemptCount,
		LastAttemptAt: row.LastAttemptAt,
		SyncedAt:      row.SyncedAt,
	}
	if row.LastError != nil {
		entry.LastError = *row.LastError
	}
	return entry, nil
}

func fromRows(rows []models.SaleQueueEntry) ([]Entry, error) {
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entry, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}
