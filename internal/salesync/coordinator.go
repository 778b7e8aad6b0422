package salesync

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/posterminal/internal/remote"
	"github.com/angelmondragon/posterminal/internal/salequeue"
	"github.com/angelmondragon/posterminal/pkg/enums"
	"github.com/angelmondragon/posterminal/pkg/logger"
	"github.com/angelmondragon/posterminal/pkg/metrics"
	"github.com/angelmondragon/posterminal/pkg/types"
)

const (
	defaultBackoffBase   = 2 * time.Second
	defaultBackoffMax    = 5 * time.Minute
	defaultSubmitTimeout = 15 * time.Second
	jitterWindow         = 250 * time.Millisecond
	lockReleaseTimeout   = 5 * time.Second
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))
var jitterMu sync.Mutex

// Submitter delivers one sale to the backend.
type Submitter interface {
	SubmitSale(ctx context.Context, sale types.Sale) (types.SaleAck, error)
}

// Lock keeps drain runs exclusive across processes sharing a device.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type CoordinatorParams struct {
	Queue         salequeue.Queue
	Submitter     Submitter
	Lock          Lock
	Logger        *logger.Logger
	Metrics       *metrics.SyncMetrics
	BackoffBase   time.Duration
	BackoffMax    time.Duration
	SubmitTimeout time.Duration
}

// Status is a point-in-time view of the coordinator.
type Status struct {
	State       string     `json:"state"`
	Online      bool       `json:"online"`
	Pending     int64      `json:"pending"`
	LastError   string     `json:"lastError,omitempty"`
	LastRunAt   *time.Time `json:"lastRunAt,omitempty"`
	LastTrigger string     `json:"lastTrigger,omitempty"`
	NextRetryAt *time.Time `json:"nextRetryAt,omitempty"`
}

// RunResult summarizes one drain run. Err is set when a transient failure
// stopped the drain; the remaining entries keep their order.
type RunResult struct {
	Trigger    enums.SyncTrigger `json:"trigger"`
	Skipped    bool              `json:"skipped"`
	Synced     int               `json:"synced"`
	Duplicates int               `json:"duplicates"`
	Rejected   int               `json:"rejected"`
	Remaining  int64             `json:"remaining"`
	Err        error             `json:"-"`
}

// Coordinator drains the offline sale queue to the backend. At most one
// drain runs at a time; a run is never interrupted mid-entry.
type Coordinator struct {
	queue         salequeue.Queue
	submitter     Submitter
	lock          Lock
	logg          *logger.Logger
	metrics       *metrics.SyncMetrics
	backoffBase   time.Duration
	backoffMax    time.Duration
	submitTimeout time.Duration

	state    atomic.Int32
	online   atomic.Bool
	triggers chan enums.SyncTrigger
	jitter   func(time.Duration) time.Duration
	now      func() time.Time

	mu          sync.Mutex
	lastErr     string
	lastRunAt   time.Time
	lastTrigger enums.SyncTrigger
	nextRetryAt time.Time
}

func NewCoordinator(params CoordinatorParams) (*Coordinator, error) {
	if params.Queue == nil {
		return nil, errors.New("sale queue is required")
	}
	if params.Submitter == nil {
		return nil, errors.New("sale submitter is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	base := params.BackoffBase
	if base <= 0 {
		base = defaultBackoffBase
	}
	max := params.BackoffMax
	if max < base {
		max = defaultBackoffMax
		if max < base {
			max = base
		}
	}
	timeout := params.SubmitTimeout
	if timeout <= 0 {
		timeout = defaultSubmitTimeout
	}
	return &Coordinator{
		queue:         params.Queue,
		submitter:     params.Submitter,
		lock:          params.Lock,
		logg:          params.Logger,
		metrics:       params.Metrics,
		backoffBase:   base,
		backoffMax:    max,
		submitTimeout: timeout,
		triggers:      make(chan enums.SyncTrigger, 1),
		jitter:        withJitter,
		now:           time.Now,
	}, nil
}

// State returns the current state.
func (c *Coordinator) State() enums.SyncState {
	return enums.SyncState(c.state.Load())
}

// Online reports the last known backend reachability.
func (c *Coordinator) Online() bool {
	return c.online.Load()
}

// SetOnline records reachability. Going online triggers a drain.
func (c *Coordinator) SetOnline(online bool) {
	was := c.online.Swap(online)
	c.metrics.SetOnline(online)
	if online && !was {
		c.Trigger(enums.SyncTriggerConnectivity)
	}
}

// Trigger asks the Run loop for a drain. Triggers arriving while one is
// already queued are coalesced.
func (c *Coordinator) Trigger(trigger enums.SyncTrigger) {
	select {
	case c.triggers <- trigger:
	default:
	}
}

// Status reports state, queue depth and the outcome of the last run.
func (c *Coordinator) Status(ctx context.Context) (Status, error) {
	pending, err := c.queue.PendingCount(ctx)
	if err != nil {
		return Status{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	status := Status{
		State:       c.State().String(),
		Online:      c.Online(),
		Pending:     pending,
		LastError:   c.lastErr,
		LastTrigger: string(c.lastTrigger),
	}
	if !c.lastRunAt.IsZero() {
		at := c.lastRunAt
		status.LastRunAt = &at
	}
	if c.State() == enums.SyncStateBackoff && !c.nextRetryAt.IsZero() {
		at := c.nextRetryAt
		status.NextRetryAt = &at
	}
	return status, nil
}

// Cleanup deletes entries that were acknowledged but never removed, which
// happens when the process stops between MarkSynced and DeleteSynced.
func (c *Coordinator) Cleanup(ctx context.Context) error {
	keys, err := c.queue.ListSyncedKeys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.queue.DeleteSynced(ctx, keys...); err != nil {
		return err
	}
	c.logg.Info(c.logg.WithField(ctx, "count", len(keys)), "removed synced sales left from a previous run")
	return nil
}

// Run processes triggers until ctx is canceled. A drain stopped by a
// transient failure is retried with exponential backoff: the coordinator
// returns to Idle once the delay elapses and then drains again. A manual or
// connectivity trigger cuts the wait short.
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.Cleanup(ctx); err != nil {
		c.logg.Error(ctx, "sale queue cleanup failed", err)
	}
	c.refreshPending(ctx)

	for {
		var trigger enums.SyncTrigger
		select {
		case <-ctx.Done():
			return ctx.Err()
		case trigger = <-c.triggers:
		}

		if !c.Online() && trigger != enums.SyncTriggerManual {
			c.logg.Debug(c.logg.WithField(ctx, "trigger", trigger), "sync trigger ignored while offline")
			continue
		}

		result := c.Drain(ctx, trigger)
		var backoff time.Duration
		for result.Err != nil {
			backoff = nextBackoff(backoff, c.backoffBase, c.backoffMax)
			if err := c.waitBackoff(ctx, c.jitter(backoff)); err != nil {
				return err
			}
			c.leaveBackoff()
			result = c.Drain(ctx, enums.SyncTriggerBackoff)
		}
	}
}

// Drain submits pending sales in FIFO order. A rejected sale is parked as
// failed and the drain continues; a transient failure stops it and leaves
// the coordinator in Backoff. Drain only starts from Idle.
func (c *Coordinator) Drain(ctx context.Context, trigger enums.SyncTrigger) RunResult {
	result := RunResult{Trigger: trigger}
	if !c.state.CompareAndSwap(int32(enums.SyncStateIdle), int32(enums.SyncStateSyncing)) {
		result.Skipped = true
		return result
	}
	c.metrics.SetState(int32(enums.SyncStateSyncing))
	started := c.now()
	runCtx := c.logg.WithField(ctx, "trigger", trigger)

	if c.lock != nil {
		acquired, err := c.lock.Acquire(runCtx)
		if err != nil || !acquired {
			if err != nil {
				c.logg.Error(runCtx, "sync lock acquire failed", err)
			} else {
				c.logg.Info(runCtx, "sync skipped; another process holds the lock")
			}
			c.finish(enums.SyncStateIdle, trigger, started, nil)
			result.Skipped = true
			return result
		}
		defer c.releaseLock(runCtx)
	}

	err := c.drainEntries(runCtx, &result)
	result.Err = err
	result.Remaining = c.refreshPending(runCtx)

	next := enums.SyncStateIdle
	if err != nil {
		next = enums.SyncStateBackoff
	}
	c.finish(next, trigger, started, err)
	c.metrics.ObserveRun(string(trigger), c.now().Sub(started))

	fields := map[string]any{
		"synced":     result.Synced,
		"duplicates": result.Duplicates,
		"rejected":   result.Rejected,
		"remaining":  result.Remaining,
	}
	if err != nil {
		c.logg.Warn(c.logg.WithFields(c.logg.WithField(runCtx, "error", err.Error()), fields), "sync stopped; backing off")
	} else if result.Synced+result.Rejected > 0 {
		c.logg.Info(c.logg.WithFields(runCtx, fields), "sync run complete")
	}
	return result
}

func (c *Coordinator) drainEntries(ctx context.Context, result *RunResult) error {
	entries, err := c.queue.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("list pending sales: %w", err)
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.submit(ctx, entry, result); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) submit(ctx context.Context, entry salequeue.Entry, result *RunResult) error {
	entryCtx := c.logg.WithSaleKey(ctx, entry.Key())
	// a started entry runs to completion even if the caller goes away
	submitCtx, cancel := context.WithTimeout(context.WithoutCancel(entryCtx), c.submitTimeout)
	defer cancel()

	ack, err := c.submitter.SubmitSale(submitCtx, entry.Sale)
	if err != nil {
		if remote.IsRejected(err) {
			c.metrics.IncSubmission(metrics.OutcomeRejected)
			c.logg.Warn(c.logg.WithField(entryCtx, "error", err.Error()), "backend rejected queued sale")
			if markErr := c.queue.MarkFailed(submitCtx, entry.Key(), err); markErr != nil {
				return fmt.Errorf("mark failed %s: %w", entry.Key(), markErr)
			}
			result.Rejected++
			return nil
		}
		outcome := metrics.OutcomeError
		if remote.IsNetwork(err) {
			outcome = metrics.OutcomeNetwork
		}
		c.metrics.IncSubmission(outcome)
		if recErr := c.queue.RecordAttempt(submitCtx, entry.Key(), err); recErr != nil {
			c.logg.Error(entryCtx, "record sync attempt failed", recErr)
		}
		return fmt.Errorf("submit sale %s: %w", entry.Key(), err)
	}

	if err := c.queue.MarkSynced(submitCtx, entry.Key(), ack); err != nil {
		return fmt.Errorf("mark synced %s: %w", entry.Key(), err)
	}
	if err := c.queue.DeleteSynced(submitCtx, entry.Key()); err != nil {
		// startup cleanup removes it later
		c.logg.Error(entryCtx, "delete synced sale failed", err)
	}
	if ack.Duplicate {
		result.Duplicates++
		c.metrics.IncSubmission(metrics.OutcomeDuplicate)
	} else {
		c.metrics.IncSubmission(metrics.OutcomeSynced)
	}
	result.Synced++
	return nil
}

func (c *Coordinator) finish(next enums.SyncState, trigger enums.SyncTrigger, started time.Time, err error) {
	c.mu.Lock()
	c.lastRunAt = started
	c.lastTrigger = trigger
	if err != nil {
		c.lastErr = err.Error()
	} else if next == enums.SyncStateIdle {
		c.lastErr = ""
	}
	c.mu.Unlock()
	c.state.Store(int32(next))
	c.metrics.SetState(int32(next))
}

// leaveBackoff moves Backoff to Idle once the retry delay is over.
func (c *Coordinator) leaveBackoff() {
	if c.state.CompareAndSwap(int32(enums.SyncStateBackoff), int32(enums.SyncStateIdle)) {
		c.metrics.SetState(int32(enums.SyncStateIdle))
	}
}

func (c *Coordinator) releaseLock(ctx context.Context) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseTimeout)
	defer cancel()
	if err := c.lock.Release(releaseCtx); err != nil {
		c.logg.Error(ctx, "sync lock release failed", err)
	}
}

func (c *Coordinator) refreshPending(ctx context.Context) int64 {
	count, err := c.queue.PendingCount(context.WithoutCancel(ctx))
	if err != nil {
		c.logg.Error(ctx, "count pending sales failed", err)
		return 0
	}
	c.metrics.SetPending(count)
	return count
}

// waitBackoff sleeps for d while in Backoff. Manual and connectivity
// triggers end the wait early; others are absorbed.
func (c *Coordinator) waitBackoff(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.nextRetryAt = c.now().Add(d)
	c.mu.Unlock()

	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case trigger := <-c.triggers:
			if trigger == enums.SyncTriggerManual || trigger == enums.SyncTriggerConnectivity {
				return nil
			}
		}
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		return base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitterMu.Lock()
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	jitterMu.Unlock()
	return d + jitter
}
