package bot

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"rezervacia/internal/models"
	"rezervacia/internal/repository"
	"rezervacia/internal/service"
	"rezervacia/internal/slots"
	"rezervacia/internal/wizard"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testChatID = int64(100)
	testUserID = int64(42)
	testMsgID  = 7
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

// Monday 2026-10-19 08:00
var monday = time.Date(2026, 10, 19, 8, 0, 0, 0, time.FixedZone("CEST", 2*60*60))

type fakeCatalog struct{}

func (fakeCatalog) ListServices(ctx context.Context) ([]models.Service, error) {
	return []models.Service{
		{ID: "1", Name: "Dámsky strih", Duration: 45, Price: 35},
		{ID: "3", Name: "Manikúra", Duration: 60, Price: 28},
	}, nil
}

func (fakeCatalog) ListStaff(ctx context.Context) ([]models.StaffMember, error) {
	return []models.StaffMember{
		{ID: "1", Name: "Petra Kováčová"},
		{ID: "2", Name: "Lucia Horváthová"},
	}, nil
}

type fakeSink struct {
	mu       sync.Mutex
	err      error
	payloads []models.BookingPayload
}

func (s *fakeSink) CreateBooking(ctx context.Context, p models.BookingPayload) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.payloads = append(s.payloads, p)
	return &models.Booking{ID: int64(len(s.payloads)), BookingPayload: p}, nil
}

type sentMessage struct {
	chatID    int64
	messageID int
	text      string
	keyboard  *tgbotapi.InlineKeyboardMarkup
}

type fakeMessenger struct {
	mu      sync.Mutex
	sent    []sentMessage
	edited  []sentMessage
	answers []string
}

func (m *fakeMessenger) SendHTML(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{chatID: chatID, text: text, keyboard: kb})
	return tgbotapi.Message{MessageID: len(m.sent)}, nil
}

func (m *fakeMessenger) EditHTML(chatID int64, messageID int, text string, kb *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edited = append(m.edited, sentMessage{chatID: chatID, messageID: messageID, text: text, keyboard: kb})
	return tgbotapi.Message{MessageID: messageID}, nil
}

func (m *fakeMessenger) AnswerCallback(callbackID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = append(m.answers, text)
	return nil
}

func (m *fakeMessenger) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (m *fakeMessenger) StopReceivingUpdates() {}

func (m *fakeMessenger) lastSent(t *testing.T) sentMessage {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}

func (m *fakeMessenger) lastEdited(t *testing.T) sentMessage {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.edited)
	return m.edited[len(m.edited)-1]
}

func (m *fakeMessenger) lastAnswer(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.answers)
	return m.answers[len(m.answers)-1]
}

type denyLimiter struct{}

func (denyLimiter) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return false, nil
}

type testBot struct {
	bot  *Bot
	tg   *fakeMessenger
	sink *fakeSink
}

func newTestBot(t *testing.T) *testBot {
	t.Helper()
	logger := zerolog.New(io.Discard)
	clock := fixedClock{now: monday}

	rule, err := slots.NewRuleProvider(slots.DefaultRuleConfig(), clock)
	require.NoError(t, err)

	sessions := repository.NewMemorySessionRepository(time.Hour)
	sink := &fakeSink{}
	svc := service.NewWizardService(fakeCatalog{}, rule, sink, sessions, nil, clock, service.WizardConfig{}, &logger)

	tg := &fakeMessenger{}
	b := NewBot(tg, svc, sessions, service.ChannelTelegram, NewMetrics(prometheus.NewRegistry()), &logger)
	return &testBot{bot: b, tg: tg, sink: sink}
}

func (tb *testBot) message(text string) {
	msg := &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: testUserID},
		Chat:      &tgbotapi.Chat{ID: testChatID},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		cmd := strings.SplitN(text, " ", 2)[0]
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	tb.bot.processUpdate(context.Background(), tgbotapi.Update{Message: msg})
}

func (tb *testBot) callback(data string) {
	tb.bot.processUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb-" + data,
		From: &tgbotapi.User{ID: testUserID},
		Data: data,
		Message: &tgbotapi.Message{
			MessageID: testMsgID,
			Chat:      &tgbotapi.Chat{ID: testChatID},
		},
	}})
}

func callbackData(kb *tgbotapi.InlineKeyboardMarkup) []string {
	if kb == nil {
		return nil
	}
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData != nil {
				out = append(out, *btn.CallbackData)
			}
		}
	}
	return out
}

func buttonTexts(kb *tgbotapi.InlineKeyboardMarkup) []string {
	if kb == nil {
		return nil
	}
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			out = append(out, btn.Text)
		}
	}
	return out
}

func TestBookingDialog(t *testing.T) {
	tb := newTestBot(t)

	tb.message("/book")
	first := tb.tg.lastSent(t)
	assert.Equal(t, testChatID, first.chatID)
	assert.Contains(t, first.text, "Krok 1/4")
	assert.Equal(t, []string{"svc:1", "svc:3"}, callbackData(first.keyboard))
	assert.Contains(t, buttonTexts(first.keyboard), "Manikúra · 60 min · 28,00 €")

	tb.callback("svc:3")
	edited := tb.tg.lastEdited(t)
	assert.Equal(t, testMsgID, edited.messageID)
	assert.Contains(t, edited.text, "Krok 2/4")
	assert.Contains(t, edited.text, "Manikúra (60 min)")
	data := callbackData(edited.keyboard)
	assert.Contains(t, data, "staff:1")
	assert.Contains(t, data, "date:2026-10-19")
	assert.NotContains(t, data, "continue")

	tb.callback("staff:2")
	tb.callback("date:2026-10-20")
	edited = tb.tg.lastEdited(t)
	data = callbackData(edited.keyboard)
	assert.Contains(t, data, "time:09:00")
	assert.NotContains(t, data, "time:10:00")
	assert.Contains(t, buttonTexts(edited.keyboard), "· 10:00")
	assert.Contains(t, buttonTexts(edited.keyboard), "✓ Lucia Horváthová")

	tb.callback("time:09:00")
	edited = tb.tg.lastEdited(t)
	assert.Contains(t, callbackData(edited.keyboard), "continue")
	assert.Contains(t, buttonTexts(edited.keyboard), "✓ 09:00")

	tb.callback("continue")
	assert.Contains(t, tb.tg.lastEdited(t).text, "Krok 3/4")
	assert.Equal(t, prompts[stepFirstName], tb.tg.lastSent(t).text)

	tb.message("Jana")
	assert.Equal(t, prompts[stepLastName], tb.tg.lastSent(t).text)
	tb.message("Nováková")
	assert.Equal(t, prompts[stepEmail], tb.tg.lastSent(t).text)

	tb.message("jana@")
	assert.Contains(t, tb.tg.lastSent(t).text, "Zadajte platnú e-mailovú adresu.")
	assert.Contains(t, tb.tg.lastSent(t).text, prompts[stepEmail])

	tb.message("jana@example.com")
	tb.message("+421900000000")
	assert.Equal(t, prompts[stepNotes], tb.tg.lastSent(t).text)
	tb.message("-")

	review := tb.tg.lastSent(t)
	assert.Contains(t, review.text, "Krok 4/4")
	assert.Contains(t, review.text, "jana@example.com")
	assert.NotContains(t, review.text, "Poznámka")
	assert.Equal(t, []string{"consent", "back"}, callbackData(review.keyboard))

	tb.callback("consent")
	done := tb.tg.lastEdited(t)
	assert.Contains(t, done.text, "Rezervácia potvrdená!")
	assert.Contains(t, done.text, "utorok 20. októbra 2026 o 09:00")
	assert.Equal(t, []string{"new"}, callbackData(done.keyboard))

	require.Len(t, tb.sink.payloads, 1)
	p := tb.sink.payloads[0]
	assert.Equal(t, "3", p.ServiceID)
	assert.Equal(t, "2", p.StaffID)
	assert.Equal(t, "2026-10-20T09:00:00", p.DateTime)
	assert.Equal(t, "Jana Nováková", p.ClientName)
	assert.Empty(t, p.Notes)

	assert.Equal(t, stepNone, tb.bot.contacts.get(testUserID).Step)
}

func TestBookWithPreselectedService(t *testing.T) {
	tb := newTestBot(t)

	tb.message("/book 1")
	msg := tb.tg.lastSent(t)
	assert.Contains(t, msg.text, "Krok 2/4")
	assert.Contains(t, msg.text, "Dámsky strih")
}

func TestSlotUnavailableIsReported(t *testing.T) {
	tb := newTestBot(t)

	tb.message("/book 1")
	tb.callback("staff:1")
	tb.callback("date:2026-10-20")
	tb.callback("time:10:00")

	assert.Equal(t, msgSlotTaken, tb.tg.lastAnswer(t))
}

func TestBackKeepsContactAnswers(t *testing.T) {
	tb := newTestBot(t)

	tb.message("/book 1")
	tb.callback("staff:1")
	tb.callback("date:2026-10-20")
	tb.callback("time:09:00")
	tb.callback("continue")
	tb.message("Jana")
	tb.message("Nováková")

	tb.callback("back")
	assert.Contains(t, tb.tg.lastEdited(t).text, "Krok 2/4")
	st := tb.bot.contacts.get(testUserID)
	assert.Equal(t, stepNone, st.Step)
	assert.Equal(t, "Jana", st.Form.FirstName)

	tb.message("jana@example.com")
	assert.Equal(t, msgUseButtons, tb.tg.lastSent(t).text)

	tb.callback("continue")
	st = tb.bot.contacts.get(testUserID)
	assert.Equal(t, stepEmail, st.Step)
	assert.Equal(t, "Nováková", st.Form.LastName)
	assert.Equal(t, prompts[stepEmail], tb.tg.lastSent(t).text)
}

func TestBackAfterFailedSubmissionResumesAtConsent(t *testing.T) {
	tb := newTestBot(t)
	tb.sink.err = errors.New("backend down")

	tb.message("/book 1")
	tb.callback("staff:1")
	tb.callback("date:2026-10-20")
	tb.callback("time:09:00")
	tb.callback("continue")
	for _, text := range []string{"Jana", "Nováková", "jana@example.com", "+421900000000", "pozn"} {
		tb.message(text)
	}
	tb.callback("consent")
	require.Equal(t, service.MsgSubmitFailed, tb.tg.lastSent(t).text)

	tb.callback("back")
	tb.callback("continue")

	st := tb.bot.contacts.get(testUserID)
	assert.Equal(t, stepConsent, st.Step)
	assert.Equal(t, "Jana", st.Form.FirstName)
	assert.Equal(t, "pozn", st.Form.Notes)

	summary := tb.tg.lastSent(t)
	assert.Contains(t, summary.text, "Krok 4/4")
	assert.Contains(t, summary.text, "jana@example.com")
	assert.Equal(t, []string{"consent", "back"}, callbackData(summary.keyboard))
}

func TestContactStateResume(t *testing.T) {
	assert.Equal(t, stepFirstName, contactState{}.resume())

	st := contactState{Reached: stepPhone, Form: wizard.ContactForm{FirstName: "Jana", LastName: "N", Email: "jana@example.com"}}
	assert.Equal(t, stepLastName, st.resume())

	st.Form.LastName = "Nováková"
	assert.Equal(t, stepPhone, st.resume())

	st = contactState{Reached: stepFirstName}
	st.seedFromDraft(models.BookingDraft{FirstName: "Jana", LastName: "Nováková", Email: "jana@example.com", Phone: "+421900000000"})
	assert.Equal(t, stepConsent, st.Reached)
	assert.Equal(t, stepConsent, st.resume())
}

func TestSubmissionFailureOffersResubmit(t *testing.T) {
	tb := newTestBot(t)
	tb.sink.err = errors.New("backend down")

	tb.message("/book 1")
	tb.callback("staff:1")
	tb.callback("date:2026-10-20")
	tb.callback("time:09:00")
	tb.callback("continue")
	for _, text := range []string{"Jana", "Nováková", "jana@example.com", "+421900000000", "-"} {
		tb.message(text)
	}

	tb.callback("consent")
	failed := tb.tg.lastSent(t)
	assert.Equal(t, service.MsgSubmitFailed, failed.text)
	assert.Equal(t, []string{"submit", "back"}, callbackData(failed.keyboard))

	tb.sink.mu.Lock()
	tb.sink.err = nil
	tb.sink.mu.Unlock()

	tb.callback("submit")
	assert.Contains(t, tb.tg.lastEdited(t).text, "Rezervácia potvrdená!")
	assert.Len(t, tb.sink.payloads, 1)
}

func TestCallbackWithoutSession(t *testing.T) {
	tb := newTestBot(t)

	tb.callback("svc:1")
	assert.Equal(t, msgNoSession, tb.tg.lastAnswer(t))
}

func TestCommands(t *testing.T) {
	tb := newTestBot(t)

	tb.message("/start")
	assert.Equal(t, msgWelcome, tb.tg.lastSent(t).text)

	tb.message("/help")
	assert.Equal(t, msgHelp, tb.tg.lastSent(t).text)

	tb.message("/nope")
	assert.Equal(t, msgUnknownCommand, tb.tg.lastSent(t).text)

	tb.message("/book")
	tb.message("/cancel")
	assert.Equal(t, msgCancelled, tb.tg.lastSent(t).text)

	tb.callback("svc:1")
	assert.Equal(t, msgNoSession, tb.tg.lastAnswer(t))
}

func TestRateLimitedUser(t *testing.T) {
	tb := newTestBot(t)
	tb.bot.limiter = denyLimiter{}

	tb.message("/book")
	assert.Equal(t, msgRateLimited, tb.tg.lastSent(t).text)

	tb.callback("svc:1")
	assert.Equal(t, msgRateLimited, tb.tg.lastAnswer(t))
}

func TestRecoveryCountsPanics(t *testing.T) {
	tb := newTestBot(t)

	assert.NotPanics(t, func() {
		tb.bot.withRecovery(tgbotapi.Update{UpdateID: 1}, func() { panic("boom") })
	})
}

func TestSlotButtons(t *testing.T) {
	buttons := slotButtons([]models.TimeSlot{
		{Time: "09:00", Available: true},
		{Time: "09:30", Available: false},
	}, "09:00")

	require.Len(t, buttons, 2)
	assert.Equal(t, "✓ 09:00", buttons[0].Text)
	assert.Equal(t, "time:09:00", *buttons[0].CallbackData)
	assert.Equal(t, "· 09:30", buttons[1].Text)
	assert.Equal(t, cbNoop, *buttons[1].CallbackData)
}

func TestChunk(t *testing.T) {
	var buttons []tgbotapi.InlineKeyboardButton
	for i := 0; i < 10; i++ {
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData("x", cbNoop))
	}

	rows := chunk(buttons, 4)
	require.Len(t, rows, 3)
	assert.Len(t, rows[2], 2)
}

func TestContactStepOrder(t *testing.T) {
	assert.Equal(t, stepLastName, stepFirstName.next())
	assert.Equal(t, stepConsent, stepNotes.next())
	assert.Equal(t, stepConsent, stepConsent.next())
}
