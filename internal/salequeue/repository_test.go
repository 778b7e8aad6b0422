package salequeue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/angelmondragon/posterminal/pkg/db/models"
	"github.com/angelmondragon/posterminal/pkg/enums"
	pkgerrors "github.com/angelmondragon/posterminal/pkg/errors"
	"github.com/angelmondragon/posterminal/pkg/pagination"
	"github.com/angelmondragon/posterminal/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.SaleQueueEntry{}))
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	r := NewRepository(conn)
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return r
}

func testSale(key string, total int64) types.Sale {
	amount := decimal.NewFromInt(total)
	return types.Sale{
		IdempotencyKey: key,
		Items: []types.SaleItem{
			{ProductID: "p1", Name: "Bolt", Code: "B-1", UnitPrice: amount, Quantity: 1},
		},
		Total:         amount,
		CashAmount:    amount,
		CardAmount:    decimal.Zero,
		PaidAmount:    amount,
		DebtAmount:    decimal.Zero,
		PaymentMethod: enums.PaymentMethodCash,
		SyncStatus:    enums.SyncStatusPending,
		CreatedAt:     time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
	}
}

func keys(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Key())
	}
	return out
}

func TestEnqueuePreservesFIFOOrder(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, r.Enqueue(ctx, testSale(fmt.Sprintf("k%d", i), int64(i+1))))
	}

	pending, err := r.ListPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"k0", "k1", "k2", "k3", "k4"}, keys(pending))
	assert.True(t, pending[2].Sale.Total.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, enums.SyncStatusPending, pending[0].Status)
	assert.Less(t, pending[0].Seq, pending[1].Seq)
}

func TestEnqueueSameKeyIsNoop(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, r.Enqueue(ctx, testSale("dup", 10)))
	require.NoError(t, r.Enqueue(ctx, testSale("dup", 99)))

	count, err := r.PendingCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	pending, err := r.ListPending(ctx)
	require.NoError(t, err)
	assert.True(t, pending[0].Sale.Total.Equal(decimal.NewFromInt(10)))
}

func TestEnqueueRequiresKey(t *testing.T) {
	r := newTestRepository(t)
	err := r.Enqueue(context.Background(), testSale(" ", 1))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestMarkSyncedThenDelete(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	require.NoError(t, r.Enqueue(ctx, testSale("a", 1)))
	require.NoError(t, r.Enqueue(ctx, testSale("b", 2)))

	require.NoError(t, r.MarkSynced(ctx, "a", types.SaleAck{SaleID: "S-1", ReceiptNumber: "R-100"}))

	pending, err := r.ListPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys(pending))

	synced, err := r.ListSyncedKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, synced)

	// pending rows survive a delete request
	require.NoError(t, r.DeleteSynced(ctx, "a", "b"))
	synced, err = r.ListSyncedKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, synced)
	count, err := r.PendingCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestMarkSyncedUnknownKey(t *testing.T) {
	r := newTestRepository(t)
	err := r.MarkSynced(context.Background(), "ghost", types.SaleAck{})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestRecordAttemptKeepsEntryPending(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	require.NoError(t, r.Enqueue(ctx, testSale("a", 1)))

	require.NoError(t, r.RecordAttempt(ctx, "a", errors.New("dial tcp: timeout")))
	require.NoError(t, r.RecordAttempt(ctx, "a", errors.New("dial tcp: refused")))

	pending, err := r.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].AttemptCount)
	assert.Equal(t, "dial tcp: refused", pending[0].LastError)
	assert.NotNil(t, pending[0].LastAttemptAt)
}

func TestMarkFailedAndRequeueKeepsPosition(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, r.Enqueue(ctx, testSale(k, 1)))
	}

	require.NoError(t, r.MarkFailed(ctx, "a", errors.New("422 invalid items")))

	pending, err := r.ListPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, keys(pending))

	failed, err := r.ListFailed(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "422 invalid items", failed[0].LastError)
	assert.Equal(t, enums.SyncStatusFailed, failed[0].Sale.SyncStatus)

	require.NoError(t, r.Requeue(ctx, "a"))
	pending, err = r.ListPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, keys(pending))

	err = r.Requeue(ctx, "a")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestSyncedEntryCarriesRemoteIDs(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	require.NoError(t, r.Enqueue(ctx, testSale("a", 1)))
	require.NoError(t, r.MarkSynced(ctx, "a", types.SaleAck{SaleID: "S-9", ReceiptNumber: "R-9"}))

	var row models.SaleQueueEntry
	require.NoError(t, r.DB(ctx).Where("idempotency_key = ?", "a").First(&row).Error)
	entry, err := fromRow(row)
	require.NoError(t, err)
	assert.Equal(t, "S-9", entry.Sale.RemoteSaleID)
	assert.Equal(t, "R-9", entry.Sale.ReceiptNumber)
	assert.Equal(t, enums.SyncStatusSynced, entry.Status)
	assert.NotNil(t, entry.SyncedAt)
}

func TestListFailedPageWalksCursor(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("k%d", i)
		require.NoError(t, r.Enqueue(ctx, testSale(key, 1)))
		if i != 2 {
			require.NoError(t, r.MarkFailed(ctx, key, errors.New("409 duplicate")))
		}
	}

	first, err := r.ListFailedPage(ctx, pagination.Params{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"k0", "k1"}, keys(first.Entries))
	require.NotEmpty(t, first.NextCursor)

	second, err := r.ListFailedPage(ctx, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	assert.Equal(t, []string{"k3", "k4"}, keys(second.Entries))
	assert.Empty(t, second.NextCursor)
}

func TestListFailedPageRejectsBadCursor(t *testing.T) {
	r := newTestRepository(t)
	_, err := r.ListFailedPage(context.Background(), pagination.Params{Cursor: "not-a-cursor!"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestMarkFailedStoresValidUTF8ForLongMessages(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	require.NoError(t, r.Enqueue(ctx, testSale("a", 1)))

	cause := errors.New(strings.Repeat("x", maxErrorLen-1) + "€ rechazado")
	require.NoError(t, r.MarkFailed(ctx, "a", cause))

	failed, err := r.ListFailed(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.True(t, utf8.ValidString(failed[0].LastError))
	assert.Len(t, failed[0].LastError, maxErrorLen-1)
}

func TestSyncedEntryIsNeverRewritten(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	require.NoError(t, r.Enqueue(ctx, testSale("a", 1)))
	require.NoError(t, r.MarkSynced(ctx, "a", types.SaleAck{SaleID: "S-1", ReceiptNumber: "R-1"}))

	var before models.SaleQueueEntry
	require.NoError(t, r.DB(ctx).Where("idempotency_key = ?", "a").First(&before).Error)

	require.NoError(t, r.MarkSynced(ctx, "a", types.SaleAck{SaleID: "S-2", ReceiptNumber: "R-2"}))
	err := r.MarkFailed(ctx, "a", errors.New("late rejection"))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
	err = r.RecordAttempt(ctx, "a", errors.New("timeout"))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	var after models.SaleQueueEntry
	require.NoError(t, r.DB(ctx).Where("idempotency_key = ?", "a").First(&after).Error)
	assert.Equal(t, before.AttemptCount, after.AttemptCount)
	require.NotNil(t, after.SyncedAt)
	assert.True(t, before.SyncedAt.Equal(*after.SyncedAt))
	require.NotNil(t, after.RemoteSaleID)
	assert.Equal(t, "S-1", *after.RemoteSaleID)
	assert.Equal(t, enums.SyncStatusSynced, after.SyncStatus)
	assert.Nil(t, after.LastError)
}
