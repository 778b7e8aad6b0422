package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angelmondragon/posterminal/internal/catalog"
	pkgerrors "github.com/angelmondragon/posterminal/pkg/errors"
	"github.com/angelmondragon/posterminal/pkg/logger"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type stubLoader struct {
	calls atomic.Int32
	err   error
}

func (s *stubLoader) Load(context.Context) (catalog.Source, error) {
	s.calls.Add(1)
	if s.err != nil {
		return catalog.SourceNone, s.err
	}
	return catalog.SourceCache, nil
}

func newTestService(t *testing.T, db pinger, loader catalogLoader, runners ...runner) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:  logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard}),
		DB:      db,
		Server:  &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()},
		Catalog: loader,
		Runners: runners,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestServiceStopsOnCancel(t *testing.T) {
	var started atomic.Int32
	blocking := runner{name: "blocking", run: func(ctx context.Context) error {
		started.Add(1)
		<-ctx.Done()
		return ctx.Err()
	}}
	loader := &stubLoader{}
	svc := newTestService(t, stubPinger{}, loader, blocking, blocking)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for started.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("service did not stop")
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected catalog load on start")
	}
}

func TestServiceReturnsComponentFailure(t *testing.T) {
	boom := errors.New("boom")
	failing := runner{name: "cron", run: func(context.Context) error { return boom }}
	svc := newTestService(t, stubPinger{}, &stubLoader{}, failing)

	err := svc.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected component error, got %v", err)
	}
}

func TestServiceStartsWithoutCatalog(t *testing.T) {
	loader := &stubLoader{err: pkgerrors.Wrap(pkgerrors.CodeNoCatalogData, catalog.ErrNoCatalogData, "no data")}
	stopAfterStart := runner{name: "once", run: func(context.Context) error { return errors.New("stop") }}
	svc := newTestService(t, stubPinger{}, loader, stopAfterStart)

	if err := svc.Run(context.Background()); err == nil || err.Error() == "" {
		t.Fatalf("expected runner error to end the run")
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected catalog load attempt")
	}
}

func TestServiceFailsReadiness(t *testing.T) {
	svc := newTestService(t, stubPinger{err: errors.New("disk full")}, &stubLoader{})
	if err := svc.Run(context.Background()); err == nil {
		t.Fatalf("expected readiness failure")
	}
}
