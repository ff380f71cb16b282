package bot

import (
	"context"
	"strconv"
	"time"

	"rezervacia/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// withRecovery keeps one bad update from stopping the polling loop.
func (b *Bot) withRecovery(update tgbotapi.Update, handler func()) {
	defer func() {
		if r := recover(); r != nil {
			if b.metrics != nil {
				b.metrics.ErrorsTotal.Inc()
			}
			b.logger.Error().
				Interface("panic", r).
				Int("update_id", update.UpdateID).
				Msg("recovered from panic in update handler")
		}
	}()
	handler()
}

// allow applies the per-user message limit. A failing limiter lets the
// update through.
func (b *Bot) allow(ctx context.Context, userID int64) bool {
	if b.limiter == nil {
		return true
	}
	allowed, err := b.limiter.CheckRateLimit(ctx, "tg:"+strconv.FormatInt(userID, 10),
		models.RateLimitMessages, models.RateLimitWindow*time.Second)
	if err != nil {
		b.log(ctx).Error().Err(err).Int64("user_id", userID).Msg("rate limit check failed")
		return true
	}
	if !allowed {
		b.log(ctx).Warn().Int64("user_id", userID).Msg("rate limit exceeded")
	}
	return allowed
}
