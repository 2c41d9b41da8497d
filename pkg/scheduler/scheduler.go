// Package scheduler drives the periodic poll of a single device.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultInterval is the default time between device polls.
const DefaultInterval = 30 * time.Second

// PollFunc performs one end-to-end poll: query the device, map the
// reading, publish to the registry. Errors are logged and never stop
// the schedule; the registry records them for the health metric.
type PollFunc func(ctx context.Context) error

// Scheduler fires a poll at a fixed wall-clock interval. Poll duration
// does not shift subsequent fires, but two polls never run at once: a
// tick arriving while a poll is in flight is skipped, not queued.
type Scheduler struct {
	interval time.Duration
	poll     PollFunc

	inFlight atomic.Bool
	wg       sync.WaitGroup
}

func New(interval time.Duration, poll PollFunc) *Scheduler {
	return &Scheduler{interval: interval, poll: poll}
}

// Run polls immediately, then once per interval until ctx is
// cancelled. It returns only after any in-flight poll has settled, so
// callers can tear down the device client safely.
func (s *Scheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	s.fire(ctx)
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return
		case <-t.C:
			s.fire(ctx)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		log.Ctx(ctx).Warn().
			Dur("interval", s.interval).
			Msg("previous poll still in flight, skipping tick")
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Store(false)
		start := time.Now()
		if err := s.poll(ctx); err != nil {
			log.Ctx(ctx).Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("poll failed")
			return
		}
		log.Ctx(ctx).Debug().Dur("elapsed", time.Since(start)).Msg("poll complete")
	}()
}
