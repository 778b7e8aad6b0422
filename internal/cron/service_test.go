package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/posterminal/pkg/logger"
	"github.com/angelmondragon/posterminal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeLock struct {
	acquired bool
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.acquired = false; return nil }

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	registry := NewRegistry(
		Schedule{Job: success, Every: time.Minute},
		Schedule{Job: failure, Every: time.Minute},
	)
	reg := prometheus.NewRegistry()
	m := metrics.NewCronJobMetrics(reg)
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: registry,
		Lock:     &fakeLock{},
		Metrics:  m,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if success.runs != 1 || failure.runs != 1 {
		t.Fatalf("expected both jobs to run once, got %d and %d", success.runs, failure.runs)
	}
	if n, err := testutil.GatherAndCount(reg, "pos_terminal_job_failure_total"); err != nil || n != 1 {
		t.Fatalf("expected one failure series, got %d (%v)", n, err)
	}
}

func TestServiceHonorsPerJobCadence(t *testing.T) {
	fast := &testJob{name: "fast"}
	slow := &testJob{name: "slow"}
	registry := NewRegistry(
		Schedule{Job: fast, Every: time.Second},
		Schedule{Job: slow, Every: 10 * time.Second},
	)
	service, err := NewService(ServiceParams{Logger: logger.Nop(), Registry: registry})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if service.tick != time.Second {
		t.Fatalf("expected tick to follow shortest interval, got %s", service.tick)
	}

	clock := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return clock }
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		if err := service.runCycle(ctx); err != nil {
			t.Fatalf("run cycle: %v", err)
		}
		clock = clock.Add(time.Second)
	}
	if fast.runs != 12 {
		t.Fatalf("expected fast job every tick, got %d", fast.runs)
	}
	if slow.runs != 2 {
		t.Fatalf("expected slow job at t=0 and t=10s, got %d", slow.runs)
	}
}

func TestServiceSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "job"}
	lock := &fakeLock{acquired: true}
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(Schedule{Job: job, Every: time.Minute}),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected job skipped while lock is held")
	}
	lock.acquired = false
	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 1 {
		t.Fatalf("expected skipped job to run on the next cycle")
	}
}

func TestNewServiceRequiresLogger(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatalf("expected logger error")
	}
}
