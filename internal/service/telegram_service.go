package service

import (
	"encoding/json"
	"fmt"

	"rezervacia/internal/domain"
	"rezervacia/internal/events"
	"rezervacia/internal/models"
	"rezervacia/internal/wizard"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

type TelegramService struct {
	bot domain.TelegramSender
}

func NewTelegramService(bot domain.TelegramSender) *TelegramService {
	return &TelegramService{
		bot: bot,
	}
}

func (s *TelegramService) SendMessage(chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	return s.bot.Send(msg)
}

func (s *TelegramService) SendHTML(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = models.ParseModeHTML
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	return s.bot.Send(msg)
}

// EditHTML replaces the text and keyboard of an earlier bot message.
func (s *TelegramService) EditHTML(
	chatID int64,
	messageID int,
	text string,
	keyboard *tgbotapi.InlineKeyboardMarkup,
) (tgbotapi.Message, error) {
	if keyboard != nil {
		msg := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *keyboard)
		msg.ParseMode = models.ParseModeHTML
		return s.bot.Send(msg)
	}
	msg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	msg.ParseMode = models.ParseModeHTML
	return s.bot.Send(msg)
}

func (s *TelegramService) AnswerCallback(callbackID, text string) error {
	callback := tgbotapi.NewCallback(callbackID, text)
	_, err := s.bot.Request(callback)
	return err
}

func (s *TelegramService) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return s.bot.GetUpdatesChan(config)
}

func (s *TelegramService) StopReceivingUpdates() {
	s.bot.StopReceivingUpdates()
}

// BookingNotifier returns an event handler that tells the salon chats about
// new bookings.
func (s *TelegramService) BookingNotifier(chatIDs []int64, logger *zerolog.Logger) events.EventHandler {
	return func(event *events.Event) error {
		var p events.BookingEventPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return fmt.Errorf("decode booking event: %w", err)
		}

		text := fmt.Sprintf("Nová rezervácia #%d\n%s, %s\n%s\nKlient: %s",
			p.BookingID, p.ServiceName, p.StaffName, formatEventDateTime(p.DateTime), p.ClientName)

		for _, chatID := range chatIDs {
			if _, err := s.SendMessage(chatID, text); err != nil {
				logger.Error().Err(err).Int64("chat_id", chatID).Int64("booking_id", p.BookingID).Msg("failed to notify chat")
			}
		}
		return nil
	}
}

func formatEventDateTime(dateTime string) string {
	if len(dateTime) < len("2006-01-02T15:04") {
		return dateTime
	}
	formatted, err := wizard.FormatDateTimeSK(dateTime[:10], dateTime[11:16])
	if err != nil {
		return dateTime
	}
	return formatted
}
