package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"rezervacia/internal/service"
	"rezervacia/internal/wizard"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	userID := msg.From.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.send(chatID, msgWelcome, nil)
		case "help":
			b.send(chatID, msgHelp, nil)
		case "book":
			b.startBooking(ctx, chatID, userID, strings.TrimSpace(msg.CommandArguments()))
		case "cancel":
			b.contacts.reset(userID)
			if err := b.wizard.Delete(ctx, sessionID(userID)); err != nil {
				b.log(ctx).Error().Err(err).Int64("user_id", userID).Msg("failed to delete session")
			}
			b.send(chatID, msgCancelled, nil)
		default:
			b.send(chatID, msgUnknownCommand, nil)
		}
		return
	}

	st := b.contacts.get(userID)
	if st.Step == stepNone || st.Step == stepConsent {
		b.send(chatID, msgUseButtons, nil)
		return
	}
	b.handleContactText(chatID, userID, st, msg.Text)
}

func (b *Bot) startBooking(ctx context.Context, chatID, userID int64, serviceID string) {
	b.contacts.reset(userID)

	w, err := b.wizard.Start(ctx, sessionID(userID), serviceID)
	if err != nil {
		b.log(ctx).Error().Err(err).Int64("user_id", userID).Msg("failed to start wizard")
		b.send(chatID, errorText(err), nil)
		return
	}

	text, kb := renderWizard(w, b.wizard.DateWindow())
	b.send(chatID, text, kb)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		b.answer(cb.ID, "")
		return
	}
	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID
	userID := cb.From.ID
	sid := sessionID(userID)
	data := cb.Data

	var (
		w   *wizard.Wizard
		err error
	)

	switch {
	case data == cbNoop:
		b.answer(cb.ID, "")
		return
	case data == cbNew:
		b.answer(cb.ID, "")
		b.startBooking(ctx, chatID, userID, "")
		return
	case data == cbConsent, data == cbSubmit:
		st := b.contacts.get(userID)
		if st.Step != stepConsent {
			b.answer(cb.ID, msgUseButtons)
			return
		}
		st.Form.Consent = true
		b.contacts.set(userID, st)
		b.submit(ctx, cb, userID, st.Form)
		return
	case data == cbContinue:
		w, err = b.wizard.Continue(ctx, sid)
		if err == nil {
			st := b.contacts.get(userID)
			st.seedFromDraft(w.Draft)
			st.advance(st.resume())
			b.contacts.set(userID, st)
		}
	case data == cbBack:
		w, err = b.wizard.Back(ctx, sid)
		if err == nil {
			st := b.contacts.get(userID)
			st.Step = stepNone
			b.contacts.set(userID, st)
		}
	case data == cbRetry:
		w, err = b.wizard.Retry(ctx, sid)
	case strings.HasPrefix(data, cbService):
		w, err = b.wizard.SelectService(ctx, sid, strings.TrimPrefix(data, cbService))
	case strings.HasPrefix(data, cbStaff):
		w, err = b.wizard.PickStaff(ctx, sid, strings.TrimPrefix(data, cbStaff))
	case strings.HasPrefix(data, cbDate):
		w, err = b.wizard.PickDate(ctx, sid, strings.TrimPrefix(data, cbDate))
	case strings.HasPrefix(data, cbTime):
		w, err = b.wizard.PickTime(ctx, sid, strings.TrimPrefix(data, cbTime))
	default:
		b.log(ctx).Warn().Str("data", data).Msg("unknown callback")
		b.answer(cb.ID, "")
		return
	}

	if err != nil {
		b.log(ctx).Warn().Err(err).Str("data", data).Int64("user_id", userID).Msg("callback failed")
		b.answer(cb.ID, errorText(err))
		if w == nil {
			return
		}
	} else {
		b.answer(cb.ID, "")
	}

	text, kb := renderWizard(w, b.wizard.DateWindow())
	b.edit(chatID, messageID, text, kb)

	if err == nil && data == cbContinue {
		b.promptContact(chatID, b.contacts.get(userID))
	}
}

// promptContact asks for the current contact field, or shows the summary
// with the consent button once all fields are answered.
func (b *Bot) promptContact(chatID int64, st contactState) {
	if st.Step == stepConsent {
		kb := consentKeyboard()
		b.send(chatID, contactSummary(st.Form), &kb)
		return
	}
	b.send(chatID, prompts[st.Step], nil)
}

// handleContactText stores one answer of the contact dialog and asks for
// the next field.
func (b *Bot) handleContactText(chatID, userID int64, st contactState, text string) {
	value := strings.TrimSpace(text)
	if st.Step == stepNotes && value == "-" {
		value = ""
	}
	setField(&st.Form, st.Step, value)

	if msg := st.Form.Validate()[fieldKeys[st.Step]]; msg != "" {
		b.send(chatID, html.EscapeString(msg)+"\n"+prompts[st.Step], nil)
		return
	}

	if st.Step.index() < st.Reached.index() {
		st.advance(st.resume())
	} else {
		st.advance(st.Step.next())
	}
	b.contacts.set(userID, st)
	b.promptContact(chatID, st)
}

func (b *Bot) submit(ctx context.Context, cb *tgbotapi.CallbackQuery, userID int64, form wizard.ContactForm) {
	chatID := cb.Message.Chat.ID

	w, err := b.wizard.Submit(ctx, sessionID(userID), form, b.channel)
	switch {
	case err == nil:
		b.contacts.reset(userID)
		b.answer(cb.ID, "")
		text, kb := renderWizard(w, nil)
		b.edit(chatID, cb.Message.MessageID, text, kb)

	case errors.Is(err, wizard.ErrValidation) && w != nil:
		b.answer(cb.ID, "")
		step, msg := firstInvalid(w.FieldErrors)
		b.contacts.set(userID, contactState{Step: step, Reached: stepConsent, Form: form})
		if step == stepConsent {
			kb := consentKeyboard()
			b.send(chatID, html.EscapeString(msg), &kb)
			return
		}
		b.send(chatID, html.EscapeString(msg)+"\n"+prompts[step], nil)

	case errors.Is(err, service.ErrSubmissionFailed):
		b.answer(cb.ID, "")
		kb := resubmitKeyboard()
		b.send(chatID, service.MsgSubmitFailed, &kb)

	default:
		b.log(ctx).Warn().Err(err).Int64("user_id", userID).Msg("submit failed")
		b.answer(cb.ID, errorText(err))
	}
}

func firstInvalid(fieldErrors map[string]string) (contactStep, string) {
	for _, step := range contactOrder {
		if msg, ok := fieldErrors[fieldKeys[step]]; ok {
			return step, msg
		}
	}
	return stepFirstName, msgInternal
}

func setField(f *wizard.ContactForm, step contactStep, value string) {
	switch step {
	case stepFirstName:
		f.FirstName = value
	case stepLastName:
		f.LastName = value
	case stepEmail:
		f.Email = value
	case stepPhone:
		f.Phone = value
	case stepNotes:
		f.Notes = value
	}
}

func contactSummary(f wizard.ContactForm) string {
	var sb strings.Builder
	sb.WriteString("<b>Krok 4/4: Kontrola údajov</b>\n")
	fmt.Fprintf(&sb, "Meno: %s %s\n", html.EscapeString(f.FirstName), html.EscapeString(f.LastName))
	fmt.Fprintf(&sb, "E-mail: %s\n", html.EscapeString(f.Email))
	fmt.Fprintf(&sb, "Telefón: %s\n", html.EscapeString(f.Phone))
	if f.Notes != "" {
		fmt.Fprintf(&sb, "Poznámka: %s\n", html.EscapeString(f.Notes))
	}
	return sb.String()
}

func (b *Bot) send(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	if _, err := b.tg.SendHTML(chatID, text, kb); err != nil {
		b.sendFailed(err, chatID)
	}
}

func (b *Bot) edit(chatID int64, messageID int, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	if _, err := b.tg.EditHTML(chatID, messageID, text, kb); err != nil {
		b.sendFailed(err, chatID)
	}
}

func (b *Bot) answer(callbackID, text string) {
	if err := b.tg.AnswerCallback(callbackID, text); err != nil {
		b.logger.Warn().Err(err).Msg("failed to answer callback")
	}
}

func (b *Bot) sendFailed(err error, chatID int64) {
	if b.metrics != nil {
		b.metrics.ErrorsTotal.Inc()
	}
	b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send message")
}
