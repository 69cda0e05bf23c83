package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/CommonsHub/community_layer/internal/app/system"
	"github.com/CommonsHub/community_layer/pkg/logger"
)

var _ system.Service = (*Refresher)(nil)

// Refresher periodically re-polls the registered providers so the last-known
// cache stays warm and snapshot reads rarely hit a cold provider.
type Refresher struct {
	service  *Service
	log      *logger.Logger
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewRefresher constructs a lifecycle-managed provider refresher. schedule is
// a cron descriptor such as "@every 1m".
func NewRefresher(service *Service, schedule string, log *logger.Logger) (*Refresher, error) {
	if log == nil {
		log = logger.NewDefault("dashboard-refresher")
	}
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("parse refresh schedule %q: %w", schedule, err)
	}
	now := time.Now()
	interval := sched.Next(now).Sub(now)
	if interval <= 0 {
		interval = time.Minute
	}
	return &Refresher{
		service:  service,
		log:      log,
		interval: interval,
	}, nil
}

func (r *Refresher) Name() string { return "dashboard-refresher" }

func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				r.service.CollectStats(runCtx)
			}
		}
	}()

	r.log.WithField("interval", r.interval.String()).Info("dashboard refresher started")
	return nil
}

func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.log.Info("dashboard refresher stopped")
	return nil
}
