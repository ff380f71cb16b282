package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// InitialBookingStatus is the status every wizard booking is created with.
const InitialBookingStatus = StatusConfirmed

const (
	DateLayout     = "2006-01-02"
	TimeLayout     = "15:04"
	DateTimeLayout = "2006-01-02T15:04:05"
)

const (
	ParseModeMarkdown = "Markdown"
	ParseModeHTML     = "HTML"
)

const (
	// DefaultWindowDays количество дней, доступных для выбора даты (включая сегодня)
	DefaultWindowDays = 14

	// DefaultSlotStepMinutes шаг сетки слотов
	DefaultSlotStepMinutes = 30

	DefaultWeekdayOpen  = "09:00"
	DefaultWeekdayClose = "18:00"
	DefaultWeekendOpen  = "10:00"
	DefaultWeekendClose = "15:00"

	// DefaultSessionTTL время жизни сессии мастера в минутах
	DefaultSessionTTL = 120

	// DefaultSubmitTimeout таймаут отправки бронирования в секундах
	DefaultSubmitTimeout = 15

	// DefaultSubmitRateLimit количество попыток отправки в окне
	DefaultSubmitRateLimit = 5

	// DefaultSubmitRateWindow окно ограничения отправок в секундах
	DefaultSubmitRateWindow = 60

	// RateLimitMessages количество сообщений бота в окне
	RateLimitMessages = 20

	// RateLimitWindow окно ограничения частоты сообщений бота
	RateLimitWindow = 60

	DefaultTimezone = "Europe/Bratislava"
)

// DefaultBlockedTimes are always offered as unavailable.
var DefaultBlockedTimes = []string{"10:00", "11:30", "14:00", "16:30"}
