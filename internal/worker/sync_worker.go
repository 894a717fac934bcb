package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lexiconlabs/ankibridge/internal/domain"
	"github.com/lexiconlabs/ankibridge/internal/platform/ankiconnect"
	"github.com/lexiconlabs/ankibridge/internal/store"
)

// DeliveryClient sends a single card to Anki. Errors are classified with
// ankiconnect.IsTransient and ankiconnect.IsPermanent; an unclassified
// error is treated as transient.
type DeliveryClient interface {
	Deliver(ctx context.Context, card *domain.Card) error
}

// SyncWorkerConfig holds configuration for the sync worker.
type SyncWorkerConfig struct {
	// PollInterval is the delay between sync cycles when Anki is healthy.
	PollInterval time.Duration

	// BatchSize caps how many pending cards one cycle attempts.
	BatchSize int

	// MaxBackoff caps the stretched delay between cycles while Anki is
	// unreachable.
	MaxBackoff time.Duration
}

// DefaultSyncWorkerConfig returns a SyncWorkerConfig with reasonable defaults.
func DefaultSyncWorkerConfig() SyncWorkerConfig {
	return SyncWorkerConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    25,
		MaxBackoff:   10 * time.Minute,
	}
}

// SyncWorker periodically delivers pending cards to Anki in the background.
type SyncWorker struct {
	cardStore  store.CardStore
	client     DeliveryClient
	config     SyncWorkerConfig
	logger     *slog.Logger
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewSyncWorker creates a new SyncWorker.
func NewSyncWorker(
	cardStore store.CardStore,
	client DeliveryClient,
	config SyncWorkerConfig,
	logger *slog.Logger,
) *SyncWorker {
	if config.PollInterval <= 0 {
		config.PollInterval = 30 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 25
	}
	if config.MaxBackoff < config.PollInterval {
		config.MaxBackoff = config.PollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &SyncWorker{
		cardStore:  cardStore,
		client:     client,
		config:     config,
		logger:     logger.With(slog.String("component", "sync_worker")),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the background sync loop. It returns immediately.
func (w *SyncWorker) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop cancels the sync loop and waits for the current cycle to finish.
func (w *SyncWorker) Stop() {
	w.cancelFunc()
	w.wg.Wait()
}

// run executes sync cycles until the worker is stopped. The delay between
// cycles doubles while Anki is unreachable, capped at MaxBackoff, and snaps
// back to the poll interval on the first cycle without transient failures.
func (w *SyncWorker) run() {
	defer w.wg.Done()

	w.logger.Info("sync worker started",
		slog.Duration("poll_interval", w.config.PollInterval),
		slog.Int("batch_size", w.config.BatchSize))

	delay := w.config.PollInterval
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Info("sync worker stopped")
			return
		case <-timer.C:
		}

		transient := w.runCycle(w.ctx)

		if transient {
			delay *= 2
			if delay > w.config.MaxBackoff {
				delay = w.config.MaxBackoff
			}
			w.logger.Warn("anki unreachable, backing off",
				slog.Duration("next_attempt_in", delay))
		} else {
			delay = w.config.PollInterval
		}

		timer.Reset(delay)
	}
}

// runCycle attempts one batch of pending cards, oldest first. It reports
// whether any attempt failed transiently, which drives the backoff.
func (w *SyncWorker) runCycle(ctx context.Context) bool {
	cards, err := w.cardStore.ListPending(ctx, w.config.BatchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		w.logger.Error("failed to list pending cards",
			slog.String("error", err.Error()))
		return true
	}

	if len(cards) == 0 {
		return false
	}

	w.logger.Debug("sync cycle started", slog.Int("pending", len(cards)))

	sawTransient := false
	for _, card := range cards {
		if ctx.Err() != nil {
			return sawTransient
		}
		if w.deliverOne(ctx, card) {
			sawTransient = true
		}
	}

	return sawTransient
}

// deliverOne runs one delivery attempt and records the outcome. It reports
// whether the attempt failed transiently. A failed bookkeeping update means
// another process settled the card first; the outcome is dropped and the
// card is left as the winner recorded it.
func (w *SyncWorker) deliverOne(ctx context.Context, card *domain.Card) bool {
	log := w.logger.With(
		slog.String("card_id", card.ID.String()),
		slog.String("card_front", card.Front))

	err := w.client.Deliver(ctx, card)

	switch {
	case err == nil:
		if markErr := w.cardStore.MarkDelivered(ctx, card.ID); markErr != nil {
			if errors.Is(markErr, store.ErrUpdateFailed) {
				log.Debug("card already settled elsewhere, skipping")
				return false
			}
			log.Error("failed to mark card delivered",
				slog.String("error", markErr.Error()))
			return false
		}
		log.Info("card delivered to anki")
		return false

	case ankiconnect.IsPermanent(err):
		log.Warn("anki rejected card",
			slog.String("error", err.Error()))
		if markErr := w.cardStore.MarkFailed(ctx, card.ID); markErr != nil && !errors.Is(markErr, store.ErrUpdateFailed) {
			log.Error("failed to mark card failed",
				slog.String("error", markErr.Error()))
		}
		return false

	default:
		// Transient or unclassified: leave the card pending so a later
		// cycle retries it.
		log.Debug("delivery attempt failed transiently",
			slog.String("error", err.Error()))
		return true
	}
}
