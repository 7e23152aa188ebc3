package logging

import (
	"sync"
	"sync/atomic"
	"time"

	clog "github.com/charmbracelet/log"
)

// CleanupScheduler runs a Cleaner on a fixed interval.
type CleanupScheduler struct {
	cleaner  *Cleaner
	interval time.Duration
	log      *clog.Logger
	stop     chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
}

func NewCleanupScheduler(cleaner *Cleaner, interval time.Duration) *CleanupScheduler {
	return &CleanupScheduler{
		cleaner:  cleaner,
		interval: interval,
		log:      clog.Default().WithPrefix("logging"),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs a cleanup immediately and then once per interval until Stop.
func (s *CleanupScheduler) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runCleanup()
		for {
			select {
			case <-ticker.C:
				s.runCleanup()
			case <-s.stop:
				return
			}
		}
	}()
}

func (s *CleanupScheduler) runCleanup() {
	deleted, err := s.cleaner.Cleanup()
	if err != nil {
		s.log.Error("Check log cleanup failed", "dir", s.cleaner.baseDir, "error", err)
	} else if deleted > 0 {
		s.log.Info("Cleaned up old check logs", "deleted", deleted)
	}
}

// Stop ends the schedule and waits for a running cleanup to finish. It is
// safe to call more than once.
func (s *CleanupScheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	if s.started.Load() {
		<-s.done
	}
}
