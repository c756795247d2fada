package scheduler

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/thejerf/suture/v4"
	"go.uber.org/zap"
)

// NewSupervisor returns the supervisor that restarts background jobs when they fail
func NewSupervisor(log *zap.Logger, shutdownTimeout time.Duration) *suture.Supervisor {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("supervisor")
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return suture.New("click-sentinel", suture.Spec{
		EventHook: func(e suture.Event) {
			log.Warn("Supervisor event", zap.String("event", e.String()), zap.Any("details", e.Map()))
		},
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          shutdownTimeout,
	})
}

// CacheHealthMonitor periodically pings Redis to surface connectivity issues
type CacheHealthMonitor struct {
	client   *redis.Client
	interval time.Duration
	log      *zap.Logger
}

func NewCacheHealthMonitor(client *redis.Client, interval time.Duration, log *zap.Logger) *CacheHealthMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CacheHealthMonitor{
		client:   client,
		interval: interval,
		log:      log.Named("cache_health"),
	}
}

// Serve pings Redis every interval until ctx is cancelled
func (m *CacheHealthMonitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			if err := m.client.Ping(pingCtx).Err(); err != nil && ctx.Err() == nil {
				m.log.Warn("Redis healthcheck failed", zap.Error(err))
			}
			cancel()
		}
	}
}

func (m *CacheHealthMonitor) String() string {
	return "cache-health-monitor"
}
