// Package bot is the Telegram front end of the booking wizard. Each Telegram
// user drives one wizard session named after their user id.
package bot

import (
	"context"
	"strconv"
	"time"

	"rezervacia/internal/domain"
	"rezervacia/internal/logging"
	"rezervacia/internal/wizard"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const updateTimeout = 30 * time.Second

// WizardService is the part of service.WizardService the bot drives.
type WizardService interface {
	Start(ctx context.Context, sessionID, preselectedServiceID string) (*wizard.Wizard, error)
	Get(ctx context.Context, sessionID string) (*wizard.Wizard, error)
	Retry(ctx context.Context, sessionID string) (*wizard.Wizard, error)
	SelectService(ctx context.Context, sessionID, serviceID string) (*wizard.Wizard, error)
	Back(ctx context.Context, sessionID string) (*wizard.Wizard, error)
	PickStaff(ctx context.Context, sessionID, staffID string) (*wizard.Wizard, error)
	PickDate(ctx context.Context, sessionID, date string) (*wizard.Wizard, error)
	PickTime(ctx context.Context, sessionID, t string) (*wizard.Wizard, error)
	Continue(ctx context.Context, sessionID string) (*wizard.Wizard, error)
	Submit(ctx context.Context, sessionID string, form wizard.ContactForm, channel string) (*wizard.Wizard, error)
	Delete(ctx context.Context, sessionID string) error
	DateWindow() []wizard.DateCell
}

// Messenger sends and edits chat messages. service.TelegramService
// implements it.
type Messenger interface {
	SendHTML(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	EditHTML(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	AnswerCallback(callbackID, text string) error
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Bot struct {
	tg       Messenger
	wizard   WizardService
	limiter  domain.RateLimiter
	contacts *stateStore
	channel  string
	metrics  *Metrics
	logger   *zerolog.Logger
}

func NewBot(
	tg Messenger,
	wizardService WizardService,
	limiter domain.RateLimiter,
	channel string,
	metrics *Metrics,
	logger *zerolog.Logger,
) *Bot {
	return &Bot{
		tg:       tg,
		wizard:   wizardService,
		limiter:  limiter,
		contacts: newStateStore(),
		channel:  channel,
		metrics:  metrics,
		logger:   logger,
	}
}

// Start polls for updates until ctx is done or the channel closes.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info().Msg("bot started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("bot stopping")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

func (b *Bot) Stop() {
	b.tg.StopReceivingUpdates()
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	start := time.Now()
	defer func() {
		if b.metrics != nil {
			b.metrics.UpdateProcessingTime.Observe(time.Since(start).Seconds())
		}
	}()

	updateCtx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()
	l := b.logger.With().Str("request_id", uuid.New().String()).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(update, func() {
		var userID int64
		switch {
		case update.Message != nil && update.Message.From != nil:
			userID = update.Message.From.ID
		case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
			userID = update.CallbackQuery.From.ID
		}
		if userID == 0 {
			return
		}

		if !b.allow(updateCtx, userID) {
			if update.CallbackQuery != nil {
				b.answer(update.CallbackQuery.ID, msgRateLimited)
			} else {
				b.send(update.Message.Chat.ID, msgRateLimited, nil)
			}
			return
		}

		if update.CallbackQuery != nil {
			b.countUpdate("callback")
			b.handleCallback(updateCtx, update.CallbackQuery)
			return
		}
		if update.Message != nil {
			b.countUpdate("message")
			b.handleMessage(updateCtx, update.Message)
		}
	})
}

func (b *Bot) countUpdate(kind string) {
	if b.metrics != nil {
		b.metrics.UpdatesTotal.WithLabelValues(kind).Inc()
	}
}

func (b *Bot) log(ctx context.Context) *zerolog.Logger {
	return logging.FromContext(ctx, b.logger)
}

func sessionID(userID int64) string {
	return "tg-" + strconv.FormatInt(userID, 10)
}
