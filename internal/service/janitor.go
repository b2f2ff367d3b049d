package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Purger is the one job the janitor runs. SessionService implements it.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Janitor periodically removes sessions nobody can use any more.
type Janitor struct {
	purger   Purger
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	done     chan struct{}
	wg       sync.WaitGroup
	start    sync.Once
	stop     sync.Once
}

// NewJanitor creates a janitor that runs every interval.
func NewJanitor(purger Purger, interval time.Duration, logger *slog.Logger) *Janitor {
	return &Janitor{
		purger:   purger,
		interval: interval,
		timeout:  30 * time.Second,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start runs one purge immediately, then one per interval, in the background.
func (j *Janitor) Start() {
	j.start.Do(func() {
		j.logger.Info("starting session janitor", slog.Duration("interval", j.interval))
		j.wg.Add(1)
		go j.loop()
	})
}

// Stop ends the loop and waits for a purge in progress to finish.
func (j *Janitor) Stop() {
	j.stop.Do(func() {
		j.logger.Info("stopping session janitor")
		close(j.done)
		j.wg.Wait()
	})
}

func (j *Janitor) loop() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.runOnce()
	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.runOnce()
		}
	}
}

func (j *Janitor) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		j.logger.Error("purging expired sessions", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		j.logger.Info("purged expired sessions", slog.Int64("count", n))
	}
}
