package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/posterminal/api/responses"
	"github.com/angelmondragon/posterminal/api/validators"
	"github.com/angelmondragon/posterminal/internal/salequeue"
	"github.com/angelmondragon/posterminal/internal/salesync"
	"github.com/angelmondragon/posterminal/pkg/enums"
	pkgerrors "github.com/angelmondragon/posterminal/pkg/errors"
	"github.com/angelmondragon/posterminal/pkg/logger"
	"github.com/angelmondragon/posterminal/pkg/pagination"
	"github.com/angelmondragon/posterminal/pkg/types"
)

// SyncController exposes the coordinator to the register.
type SyncController interface {
	Status(ctx context.Context) (salesync.Status, error)
	Trigger(trigger enums.SyncTrigger)
}

// FailedSales is the dead-letter side of the offline queue.
type FailedSales interface {
	ListFailedPage(ctx context.Context, params pagination.Params) (salequeue.Page, error)
	Requeue(ctx context.Context, key string) error
}

type failedSaleResponse struct {
	Key           string     `json:"key"`
	Seq           int64      `json:"seq"`
	EnqueuedAt    time.Time  `json:"enqueuedAt"`
	AttemptCount  int        `json:"attemptCount"`
	LastError     string     `json:"lastError,omitempty"`
	LastAttemptAt *time.Time `json:"lastAttemptAt,omitempty"`
	Sale          types.Sale `json:"sale"`
}

type failedSalesPage struct {
	Entries    []failedSaleResponse `json:"entries"`
	NextCursor string               `json:"nextCursor,omitempty"`
}

func newFailedSaleResponse(entry salequeue.Entry) failedSaleResponse {
	return failedSaleResponse{
		Key:           entry.Key(),
		Seq:           entry.Seq,
		EnqueuedAt:    entry.EnqueuedAt,
		AttemptCount:  entry.AttemptCount,
		LastError:     entry.LastError,
		LastAttemptAt: entry.LastAttemptAt,
		Sale:          entry.Sale,
	}
}

func SyncStatus(coordinator SyncController, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := coordinator.Status(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

// SyncTrigger asks for a manual drain. The run happens in the background;
// the response carries the status at the time of the request.
func SyncTrigger(coordinator SyncController, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		coordinator.Trigger(enums.SyncTriggerManual)
		status, err := coordinator.Status(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, status)
	}
}

// SyncFailedList returns sales the backend rejected, oldest first, one
// cursor page at a time.
func SyncFailedList(queue FailedSales, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := queue.ListFailedPage(r.Context(), pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := failedSalesPage{
			Entries:    make([]failedSaleResponse, 0, len(page.Entries)),
			NextCursor: page.NextCursor,
		}
		for _, entry := range page.Entries {
			out.Entries = append(out.Entries, newFailedSaleResponse(entry))
		}
		responses.WriteSuccess(w, out)
	}
}

// SyncRequeue moves a failed sale back to the pending queue and asks for a
// drain.
func SyncRequeue(queue FailedSales, coordinator SyncController, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(chi.URLParam(r, "key"))
		if key == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "sale key is required"))
			return
		}

		if err := queue.Requeue(r.Context(), key); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		coordinator.Trigger(enums.SyncTriggerManual)

		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{
			"key":    key,
			"status": string(enums.SyncStatusPending),
		})
	}
}
