// Package worker applies redirect clicks in the background.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/shortlink/internal/metrics"
)

const (
	DefaultBatchSize     = 25
	DefaultFlushInterval = 10 * time.Second

	queueSize    = 256
	flushTimeout = 3 * time.Second
)

type Repo interface {
	IncrementClicks(context.Context, string) error
}

// ClickWorker buffers click events and applies them when the batch is full or
// on every flush interval. Each event is one atomic increment in the store.
type ClickWorker struct {
	in        chan string
	logger    *zap.Logger
	repo      Repo
	batchSize int
	interval  time.Duration
}

func NewClickWorker(logger *zap.Logger, repo Repo, interval time.Duration) *ClickWorker {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}

	return &ClickWorker{
		in:        make(chan string, queueSize),
		logger:    logger,
		repo:      repo,
		batchSize: DefaultBatchSize,
		interval:  interval,
	}
}

func (w *ClickWorker) GetInChannel() chan<- string {
	return w.in
}

// Run consumes events until ctx is cancelled, then applies whatever is still
// queued and returns.
func (w *ClickWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	codes := make([]string, 0, w.batchSize)

	flush := func() {
		if len(codes) == 0 {
			return
		}
		w.logger.Debug("flushing clicks", zap.Int("count", len(codes)))
		metrics.ClickBatchSize.Observe(float64(len(codes)))

		fctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()

		for _, code := range codes {
			if err := w.repo.IncrementClicks(fctx, code); err != nil {
				w.logger.Error("cannot record click", zap.String("short", code), zap.Error(err))
			}
		}
		codes = codes[:0]
	}

	for {
		select {
		case code := <-w.in:
			codes = append(codes, code)
			if len(codes) >= w.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case code := <-w.in:
					codes = append(codes, code)
				default:
					flush()
					w.logger.Info("click worker stopped")
					return nil
				}
			}
		}
	}
}
