package salequeue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/angelmondragon/posterminal/internal/repo"
	"github.com/angelmondragon/posterminal/pkg/db"
	"github.com/angelmondragon/posterminal/pkg/db/models"
	"github.com/angelmondragon/posterminal/pkg/enums"
	pkgerrors "github.com/angelmondragon/posterminal/pkg/errors"
	"github.com/angelmondragon/posterminal/pkg/pagination"
	"github.com/angelmondragon/posterminal/pkg/types"
	"gorm.io/gorm"
)

const maxErrorLen = 1024

// Queue is the durable FIFO of sales awaiting backend acknowledgement.
type Queue interface {
	// Enqueue commits the sale before returning. A key already queued is a no-op.
	Enqueue(ctx context.Context, sale types.Sale) error
	// ListPending returns pending entries in enqueue order.
	ListPending(ctx context.Context) ([]Entry, error)
	PendingCount(ctx context.Context) (int64, error)
	MarkSynced(ctx context.Context, key string, ack types.SaleAck) error
	// DeleteSynced removes the given keys, but only once they are synced.
	DeleteSynced(ctx context.Context, keys ...string) error
	// RecordAttempt notes a transient failure; the entry stays pending.
	RecordAttempt(ctx context.Context, key string, cause error) error
	// MarkFailed parks an entry the backend rejected.
	MarkFailed(ctx context.Context, key string, cause error) error
	ListFailed(ctx context.Context) ([]Entry, error)
	// Requeue moves a failed entry back to pending at its original position.
	Requeue(ctx context.Context, key string) error
	ListSyncedKeys(ctx context.Context) ([]string, error)
}

// Repository is the gorm Queue.
type Repository struct {
	repo.Base
	now func() time.Time
}

// NewRepository returns a Queue over the local gorm store.
func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(conn), now: time.Now}
}

func (r *Repository) Enqueue(ctx context.Context, sale types.Sale) error {
	if strings.TrimSpace(sale.IdempotencyKey) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "sale idempotency key is required")
	}
	row, err := toRow(sale, r.now().UTC())
	if err != nil {
		return err
	}
	if err := r.DB(ctx).Create(&row).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil
		}
		return fmt.Errorf("enqueue sale %s: %w", sale.IdempotencyKey, err)
	}
	return nil
}

func (r *Repository) ListPending(ctx context.Context) ([]Entry, error) {
	return r.list(ctx, enums.SyncStatusPending)
}

func (r *Repository) ListFailed(ctx context.Context) ([]Entry, error) {
	return r.list(ctx, enums.SyncStatusFailed)
}

// Page is one slice of a cursor-paged listing.
type Page struct {
	Entries    []Entry
	NextCursor string
}

// ListFailedPage pages through failed entries in enqueue order.
func (r *Repository) ListFailedPage(ctx context.Context, params pagination.Params) (Page, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return Page{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	q := r.DB(ctx).Where("sync_status = ?", enums.SyncStatusFailed)
	if cursor != nil {
		q = q.Where("seq > ?", cursor.Seq)
	}
	var rows []models.SaleQueueEntry
	if err := q.Order("seq ASC").Limit(pagination.LimitWithBuffer(params.Limit)).Find(&rows).Error; err != nil {
		return Page{}, fmt.Errorf("list failed sales page: %w", err)
	}

	rows, more := pagination.Trim(rows, params.Limit)
	entries, err := fromRows(rows)
	if err != nil {
		return Page{}, err
	}
	page := Page{Entries: entries}
	if more && len(rows) > 0 {
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{Seq: rows[len(rows)-1].Seq})
	}
	return page, nil
}

func (r *Repository) list(ctx context.Context, status enums.SyncStatus) ([]Entry, error) {
	var rows []models.SaleQueueEntry
	err := r.DB(ctx).
		Where("sync_status = ?", status).
		Order("seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list %s sales: %w", status, err)
	}
	return fromRows(rows)
}

func (r *Repository) PendingCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&models.SaleQueueEntry{}).
		Where("sync_status = ?", enums.SyncStatusPending).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count pending sales: %w", err)
	}
	return count, nil
}

// MarkSynced records the backend acknowledgement. A synced entry is never
// rewritten; marking it again is a no-op.
func (r *Repository) MarkSynced(ctx context.Context, key string, ack types.SaleAck) error {
	now := r.now().UTC()
	updates := map[string]any{
		"sync_status":     enums.SyncStatusSynced,
		"synced_at":       now,
		"last_attempt_at": now,
		"attempt_count":   gorm.Expr("attempt_count + 1"),
		"last_error":      nil,
	}
	if ack.SaleID != "" {
		updates["remote_sale_id"] = ack.SaleID
	}
	if ack.ReceiptNumber != "" {
		updates["receipt_number"] = ack.ReceiptNumber
	}
	err := r.update(ctx, key, updates)
	if errors.Is(err, errAlreadySynced) {
		return nil
	}
	return err
}

func (r *Repository) DeleteSynced(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	err := r.DB(ctx).
		Where("idempotency_key IN ? AND sync_status = ?", keys, enums.SyncStatusSynced).
		Delete(&models.SaleQueueEntry{}).Error
	if err != nil {
		return fmt.Errorf("delete synced sales: %w", err)
	}
	return nil
}

func (r *Repository) RecordAttempt(ctx context.Context, key string, cause error) error {
	return r.update(ctx, key, map[string]any{
		"last_error":      errorText(cause),
		"last_attempt_at": r.now().UTC(),
		"attempt_count":   gorm.Expr("attempt_count + 1"),
	})
}

func (r *Repository) MarkFailed(ctx context.Context, key string, cause error) error {
	return r.update(ctx, key, map[string]any{
		"sync_status":     enums.SyncStatusFailed,
		"last_error":      errorText(cause),
		"last_attempt_at": r.now().UTC(),
		"attempt_count":   gorm.Expr("attempt_count + 1"),
	})
}

func (r *Repository) Requeue(ctx context.Context, key string) error {
	res := r.DB(ctx).Model(&models.SaleQueueEntry{}).
		Where("idempotency_key = ? AND sync_status = ?", key, enums.SyncStatusFailed).
		Updates(map[string]any{
			"sync_status": enums.SyncStatusPending,
			"last_error":  nil,
		})
	if res.Error != nil {
		return fmt.Errorf("requeue sale %s: %w", key, res.Error)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "no failed sale with that key")
	}
	return nil
}

func (r *Repository) ListSyncedKeys(ctx context.Context) ([]string, error) {
	var keys []string
	err := r.DB(ctx).Model(&models.SaleQueueEntry{}).
		Where("sync_status = ?", enums.SyncStatusSynced).
		Order("seq ASC").
		Pluck("idempotency_key", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("list synced keys: %w", err)
	}
	return keys, nil
}

var errAlreadySynced = pkgerrors.New(pkgerrors.CodeStateConflict, "sale already synced")

// update applies updates to the entry unless it is already synced.
func (r *Repository) update(ctx context.Context, key string, updates map[string]any) error {
	res := r.DB(ctx).Model(&models.SaleQueueEntry{}).
		Where("idempotency_key = ? AND sync_status <> ?", key, enums.SyncStatusSynced).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update sale %s: %w", key, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	err := r.DB(ctx).Model(&models.SaleQueueEntry{}).
		Where("idempotency_key = ?", key).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("lookup sale %s: %w", key, err)
	}
	if count > 0 {
		return errAlreadySynced
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "queued sale not found")
}

func errorText(err error) string {
	if err == nil {
		err = errors.New("unknown error")
	}
	msg := err.Error()
	if len(msg) <= maxErrorLen {
		return msg
	}
	cut := maxErrorLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
