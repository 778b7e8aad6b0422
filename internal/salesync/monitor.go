package salesync

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/posterminal/pkg/logger"
)

const (
	defaultPingInterval = 15 * time.Second
	defaultPingTimeout  = 5 * time.Second
)

// Pinger checks backend liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Reachability receives the outcome of every check.
type Reachability interface {
	SetOnline(online bool)
}

// ConnectivityMonitor polls the backend and reports reachability changes.
type ConnectivityMonitor struct {
	pinger   Pinger
	target   Reachability
	logg     *logger.Logger
	interval time.Duration
	timeout  time.Duration
	online   bool
	checked  bool
}

func NewConnectivityMonitor(pinger Pinger, target Reachability, logg *logger.Logger, interval time.Duration) (*ConnectivityMonitor, error) {
	if pinger == nil {
		return nil, errors.New("pinger is required")
	}
	if target == nil {
		return nil, errors.New("reachability target is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	if interval <= 0 {
		interval = defaultPingInterval
	}
	timeout := defaultPingTimeout
	if interval < timeout {
		timeout = interval
	}
	return &ConnectivityMonitor{
		pinger:   pinger,
		target:   target,
		logg:     logg,
		interval: interval,
		timeout:  timeout,
	}, nil
}

// Run checks immediately, then on every interval until ctx is canceled.
func (m *ConnectivityMonitor) Run(ctx context.Context) error {
	m.Check(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check pings once and forwards the result.
func (m *ConnectivityMonitor) Check(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.pinger.Ping(pingCtx)
	cancel()

	online := err == nil
	if !m.checked || online != m.online {
		if online {
			m.logg.Info(ctx, "remote backend reachable")
		} else {
			m.logg.Warn(m.logg.WithField(ctx, "error", err.Error()), "remote backend unreachable")
		}
	}
	m.checked = true
	m.online = online
	m.target.SetOnline(online)
	return online
}
