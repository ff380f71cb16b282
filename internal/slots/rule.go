// Package slots produces time slot candidates for a staff member and a day.
package slots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rezervacia/internal/domain"
	"rezervacia/internal/models"
	"rezervacia/internal/wizard"
)

// RuleConfig describes the opening hours grid.
type RuleConfig struct {
	Step         time.Duration
	WeekdayOpen  string // HH:MM, inclusive
	WeekdayClose string // HH:MM, exclusive
	WeekendOpen  string
	WeekendClose string
	Blocked      []string
	// Delay simulates a slow backend.
	Delay time.Duration
}

// DefaultRuleConfig returns the salon's standard grid.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		Step:         models.DefaultSlotStepMinutes * time.Minute,
		WeekdayOpen:  models.DefaultWeekdayOpen,
		WeekdayClose: models.DefaultWeekdayClose,
		WeekendOpen:  models.DefaultWeekendOpen,
		WeekendClose: models.DefaultWeekendClose,
		Blocked:      append([]string(nil), models.DefaultBlockedTimes...),
	}
}

type hours struct {
	open, close int // minutes since midnight
}

// RuleProvider is the deterministic slot rule: a half-hour grid over the
// opening hours, a fixed block list, and no past slots for today.
type RuleProvider struct {
	step    int
	weekday hours
	weekend hours
	blocked map[string]bool
	delay   time.Duration
	clock   domain.TimeProvider
}

func NewRuleProvider(cfg RuleConfig, clock domain.TimeProvider) (*RuleProvider, error) {
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	step := int(cfg.Step / time.Minute)
	if step <= 0 {
		return nil, fmt.Errorf("slot step must be positive, got %s", cfg.Step)
	}

	weekday, err := parseHours(cfg.WeekdayOpen, cfg.WeekdayClose)
	if err != nil {
		return nil, fmt.Errorf("weekday hours: %w", err)
	}
	weekend, err := parseHours(cfg.WeekendOpen, cfg.WeekendClose)
	if err != nil {
		return nil, fmt.Errorf("weekend hours: %w", err)
	}

	blocked := make(map[string]bool, len(cfg.Blocked))
	for _, b := range cfg.Blocked {
		if _, err := ParseClock(b); err != nil {
			return nil, fmt.Errorf("blocked time: %w", err)
		}
		blocked[b] = true
	}

	return &RuleProvider{
		step:    step,
		weekday: weekday,
		weekend: weekend,
		blocked: blocked,
		delay:   cfg.Delay,
		clock:   clock,
	}, nil
}

func parseHours(open, close string) (hours, error) {
	o, err := ParseClock(open)
	if err != nil {
		return hours{}, err
	}
	c, err := ParseClock(close)
	if err != nil {
		return hours{}, err
	}
	if c <= o {
		return hours{}, fmt.Errorf("close %s must be after open %s", close, open)
	}
	return hours{open: o, close: c}, nil
}

// ParseClock converts HH:MM to minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse(models.TimeLayout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock converts minutes since midnight to HH:MM.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// GetSlots returns the slot sequence for date (YYYY-MM-DD). The staff member
// does not influence the rule.
func (p *RuleProvider) GetSlots(ctx context.Context, date, _ string) ([]models.TimeSlot, error) {
	now := p.clock.Now()
	day, err := time.ParseInLocation(models.DateLayout, date, now.Location())
	if err != nil {
		return nil, fmt.Errorf("%w: %s", wizard.ErrInvalidDate, date)
	}

	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	h := p.weekday
	if wizard.IsWeekend(day) {
		h = p.weekend
	}

	today := now.Format(models.DateLayout) == date
	nowMinutes := now.Hour()*60 + now.Minute()

	out := make([]models.TimeSlot, 0, (h.close-h.open)/p.step+1)
	for m := h.open; m < h.close; m += p.step {
		if today && m < nowMinutes {
			continue
		}
		label := FormatClock(m)
		out = append(out, models.TimeSlot{Time: label, Available: !p.blocked[label]})
	}
	return out, nil
}
