// Package scheduler runs the periodic maintenance jobs of the service
package scheduler

import (
	"context"
	"time"

	"github.com/amirphl/click-sentinel/repository"
	"github.com/amirphl/click-sentinel/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var reservationsReapedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "click_sentinel_reservations_reaped_total",
		Help: "Pending block reservations removed after outliving the reservation TTL",
	},
)

// ReservationReaper deletes pending reservations left behind by a process that died
// between reserving a source and confirming or discarding it. Until removed, such a
// row makes every later attempt for the same source report AlreadyBlocked.
type ReservationReaper struct {
	repo     repository.BlockedIPRepository
	log      *zap.Logger
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

func NewReservationReaper(repo repository.BlockedIPRepository, log *zap.Logger, ttl, interval time.Duration) *ReservationReaper {
	if ttl <= 0 {
		ttl = utils.DefaultReservationTTL
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReservationReaper{
		repo:     repo,
		log:      log.Named("reservation_reaper"),
		ttl:      ttl,
		interval: interval,
		now:      utils.UTCNowMicro,
	}
}

// Serve runs the reaper loop until ctx is cancelled
func (r *ReservationReaper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

func (r *ReservationReaper) String() string {
	return "reservation-reaper"
}

// Start launches the reaper loop in a background goroutine and returns a stop function
func (r *ReservationReaper) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)
		_ = r.Serve(ctx)
	}()

	return func() {
		cancel()
		<-done
	}
}

// RunOnce removes every pending reservation older than the TTL
func (r *ReservationReaper) RunOnce(ctx context.Context) int64 {
	cutoff := r.now().Add(-r.ttl)
	removed, err := r.repo.DeleteStalePending(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			r.log.Error("Failed to delete stale reservations", zap.Time("cutoff", cutoff), zap.Error(err))
		}
		return 0
	}
	if removed > 0 {
		reservationsReapedTotal.Add(float64(removed))
		r.log.Warn("Deleted stale reservations", zap.Int64("count", removed), zap.Time("cutoff", cutoff))
	}
	return removed
}
