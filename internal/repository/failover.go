package repository

import (
	"context"
	"sync/atomic"
	"time"

	"rezervacia/internal/domain"
	"rezervacia/internal/wizard"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverSessionRepository uses primary (Redis) until it fails, then serves
// from fallback (memory) and retries primary once per recoveryInterval.
type FailoverSessionRepository struct {
	primary   domain.SessionRepository
	fallback  domain.SessionRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64 // unix nanos
	now       func() time.Time
}

func NewFailoverSessionRepository(primary, fallback domain.SessionRepository, logger *zerolog.Logger) *FailoverSessionRepository {
	return &FailoverSessionRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

func (r *FailoverSessionRepository) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("primary session repository failed, falling back to memory")
	}
	r.lastCheck.Store(r.now().UnixNano())
}

// usePrimary reports whether the next call should go to primary.
func (r *FailoverSessionRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	last := time.Unix(0, r.lastCheck.Load())
	return r.now().Sub(last) > recoveryInterval
}

func (r *FailoverSessionRepository) recovered() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("primary session repository recovered")
	}
}

func (r *FailoverSessionRepository) GetSession(ctx context.Context, sessionID string) (*wizard.Wizard, error) {
	if r.usePrimary() {
		w, err := r.primary.GetSession(ctx, sessionID)
		if err == nil {
			r.recovered()
			if w != nil {
				return w, nil
			}
			// may have been created while primary was down
			return r.fallback.GetSession(ctx, sessionID)
		}
		r.markDown(err)
	}

	return r.fallback.GetSession(ctx, sessionID)
}

func (r *FailoverSessionRepository) SaveSession(ctx context.Context, w *wizard.Wizard) error {
	if r.usePrimary() {
		err := r.primary.SaveSession(ctx, w)
		if err == nil {
			r.recovered()
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.SaveSession(ctx, w)
}

func (r *FailoverSessionRepository) DeleteSession(ctx context.Context, sessionID string) error {
	// fallback may hold a copy written during an outage
	_ = r.fallback.DeleteSession(ctx, sessionID)

	if r.usePrimary() {
		err := r.primary.DeleteSession(ctx, sessionID)
		if err == nil {
			r.recovered()
			return nil
		}
		r.markDown(err)
	}
	return nil
}

func (r *FailoverSessionRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.recovered()
			return allowed, nil
		}
		r.markDown(err)
	}

	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}

// IsDegraded reports whether calls are currently served by the fallback.
func (r *FailoverSessionRepository) IsDegraded() bool {
	return r.isDown.Load()
}
