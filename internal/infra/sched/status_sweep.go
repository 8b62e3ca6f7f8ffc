package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"coaching-subscription/internal/domain/model"
	"coaching-subscription/internal/domain/ports/repository"
	"coaching-subscription/internal/infra/metrics"
	red "coaching-subscription/internal/infra/redis"
	"coaching-subscription/internal/usecase"
)

const sweepLockKey = "lock:status_sweep"

// ProofCounter is satisfied by the payment proof repository.
type ProofCounter interface {
	CountByStatus(ctx context.Context, tx repository.Tx) (map[model.PaymentStatus]int, error)
}

// PoolStats reports connection pool gauges; nil skips them.
type PoolStats func() (total, idle, inUse int32)

// StatusSweep periodically resolves every tenant and publishes the counts as
// gauges. It never writes: effective status is always computed on read.
type StatusSweep struct {
	interval time.Duration
	monitor  usecase.MonitorUseCase
	proofs   ProofCounter
	locker   red.Locker
	pool     PoolStats
	log      *zerolog.Logger
}

// NewStatusSweep builds the worker. locker may be nil for single-instance
// deployments.
func NewStatusSweep(interval time.Duration, monitor usecase.MonitorUseCase, proofs ProofCounter, locker red.Locker, pool PoolStats, logger *zerolog.Logger) *StatusSweep {
	l := logger.With().Str("component", "StatusSweep").Logger()
	return &StatusSweep{
		interval: interval,
		monitor:  monitor,
		proofs:   proofs,
		locker:   locker,
		pool:     pool,
		log:      &l,
	}
}

func (w *StatusSweep) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting status sweep")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping status sweep")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *StatusSweep) tick(ctx context.Context) {
	if err := w.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		w.log.Error().Err(err).Msg("status sweep failed")
	}
}

// RunOnce performs one sweep. Losing the lock to another instance is not an error.
func (w *StatusSweep) RunOnce(ctx context.Context) error {
	start := time.Now()

	if w.locker != nil {
		// the lock outlives a slow sweep only until the next tick
		token, err := w.locker.TryLock(ctx, sweepLockKey, w.interval)
		if errors.Is(err, red.ErrLockHeld) {
			metrics.ObserveSweep("skipped", 0)
			return nil
		}
		if err != nil {
			w.log.Warn().Err(err).Msg("sweep lock unavailable, sweeping without it")
		} else {
			defer func() {
				if err := w.locker.Unlock(context.WithoutCancel(ctx), sweepLockKey, token); err != nil {
					w.log.Warn().Err(err).Msg("sweep unlock failed")
				}
			}()
		}
	}

	if w.pool != nil {
		metrics.SetDBPoolStats(w.pool())
	}

	snaps, err := w.monitor.GetMonitorAll(ctx)
	if err != nil {
		metrics.ObserveSweep("error", time.Since(start))
		return err
	}
	sum := usecase.Summarize(snaps)
	byStatus := make(map[string]int, len(sum.ByStatus))
	for s, n := range sum.ByStatus {
		byStatus[string(s)] = n
	}
	metrics.SetTenantsByStatus(byStatus, sum.ExpiringSoon)

	counts, err := w.proofs.CountByStatus(ctx, repository.NoTX)
	if err != nil {
		metrics.ObserveSweep("error", time.Since(start))
		return err
	}
	proofs := make(map[string]int, len(counts))
	for s, n := range counts {
		proofs[string(s)] = n
	}
	metrics.SetProofsByStatus(proofs)

	took := time.Since(start)
	metrics.ObserveSweep("ok", took)
	w.log.Debug().
		Int("tenants", sum.Total).
		Int("expiring_soon", sum.ExpiringSoon).
		Int("pending_proofs", proofs[string(model.PaymentStatusPending)]).
		Dur("duration", took).
		Msg("status sweep done")
	return nil
}
