package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/posterminal/internal/catalog"
	"github.com/angelmondragon/posterminal/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

type pinger interface {
	Ping(context.Context) error
}

type catalogLoader interface {
	Load(ctx context.Context) (catalog.Source, error)
}

// runner is a long-lived component of the daemon.
type runner struct {
	name string
	run  func(context.Context) error
}

type ServiceParams struct {
	Logger  *logger.Logger
	DB      pinger
	Redis   pinger
	Server  *http.Server
	Catalog catalogLoader
	Runners []runner
}

// Service runs the HTTP surface and the background components until the
// context is canceled or one of them fails.
type Service struct {
	logg    *logger.Logger
	db      pinger
	redis   pinger
	server  *http.Server
	catalog catalogLoader
	runners []runner
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Server == nil {
		return nil, errors.New("http server is required")
	}
	if params.Catalog == nil {
		return nil, errors.New("catalog service is required")
	}
	return &Service{
		logg:    params.Logger,
		db:      params.DB,
		redis:   params.Redis,
		server:  params.Server,
		catalog: params.Catalog,
		runners: params.Runners,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if s.redis != nil {
		if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
			return err
		}
	}
	s.logg.Info(ctx, "terminal dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

// loadCatalog fills the snapshot before the register can search. Starting
// without any catalog is allowed; searches fail until a refresh succeeds.
func (s *Service) loadCatalog(ctx context.Context) {
	source, err := s.catalog.Load(ctx)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "starting without catalog data")
		return
	}
	s.logg.Info(s.logg.WithField(ctx, "source", string(source)), "catalog loaded")
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}
	s.loadCatalog(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(s.runners)+1)
	for _, r := range s.runners {
		go func() {
			err := r.run(runCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				err = fmt.Errorf("%s: %w", r.name, err)
			}
			errCh <- err
		}()
	}
	go func() {
		s.logg.Info(s.logg.WithField(ctx, "addr", s.server.Addr), "local api listening")
		err := s.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			err = fmt.Errorf("http server: %w", err)
		}
		errCh <- err
	}()

	var runErr error
	pending := len(s.runners) + 1
	select {
	case <-ctx.Done():
		s.logg.Info(ctx, "terminal context canceled")
	case err := <-errCh:
		pending--
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logg.Error(ctx, "component stopped unexpectedly", err)
			runErr = err
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer shutdownCancel()
	runErr = multierr.Append(runErr, s.server.Shutdown(shutdownCtx))

	for ; pending > 0; pending-- {
		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				runErr = multierr.Append(runErr, err)
			}
		case <-shutdownCtx.Done():
			return multierr.Append(runErr, fmt.Errorf("%d components did not stop: %w", pending, shutdownCtx.Err()))
		}
	}
	return runErr
}
