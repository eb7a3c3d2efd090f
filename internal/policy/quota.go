package policy

import (
	"time"

	"github.com/magabrotheeeer/carwash-booking/internal/lib/week"
	"github.com/magabrotheeeer/carwash-booking/internal/models"
)

// State - что показать пользователю на главной странице.
type State string

const (
	// StateAlreadyScheduled - у пользователя уже есть запись на эту неделю.
	StateAlreadyScheduled State = "already_scheduled"
	// StateMonthlyCapped - в этом месяце пользователь уже мыл машину.
	StateMonthlyCapped State = "monthly_limit_reached"
	// StateWeeklyFull - места на неделю закончились.
	StateWeeklyFull State = "slots_full"
	// StateWindowClosed - запись ещё не открыта.
	StateWindowClosed State = "awaiting_window"
	// StateEligible - можно показывать форму записи.
	StateEligible State = "booking_form"
)

// Quota - факты о квотах пользователя в текущей неделе и месяце.
type Quota struct {
	HasRegisteredThisWeek  bool
	HasRegisteredThisMonth bool
	WeeklyCapacity         int
	WeeklyTaken            int
	// WeeklyRemaining = WeeklyCapacity - WeeklyTaken, может быть отрицательным
	// при перебронировании.
	WeeklyRemaining int
	// Current - запись пользователя на текущую неделю, если есть.
	Current *models.Registration
}

// WeeklyFull сообщает, что свободных мест в неделе нет.
func (q Quota) WeeklyFull() bool {
	return q.WeeklyRemaining <= 0
}

// EvaluateQuota считает квоты пользователя userID относительно момента now.
func EvaluateQuota(regs []models.Registration, userID string, s models.AppSettings, now time.Time) Quota {
	current := week.Of(now)
	q := Quota{WeeklyCapacity: s.WeeklyCapacity}

	for i := range regs {
		r := regs[i]
		inWeek := current.SameWeek(week.Key{Week: r.WeekNumber, WeekYear: r.WeekYear})
		if inWeek {
			q.WeeklyTaken++
		}
		if r.UserID != userID {
			continue
		}
		if inWeek && q.Current == nil {
			q.HasRegisteredThisWeek = true
			q.Current = &r
		}
		if r.Month == current.Month && r.Year == current.Year {
			q.HasRegisteredThisMonth = true
		}
	}

	q.WeeklyRemaining = q.WeeklyCapacity - q.WeeklyTaken
	return q
}

// Classify выбирает состояние экрана. Приоритет:
// запись на неделе, месячный лимит, нет мест, окно закрыто, форма.
func Classify(q Quota, open bool) State {
	switch {
	case q.HasRegisteredThisWeek:
		return StateAlreadyScheduled
	case q.HasRegisteredThisMonth:
		return StateMonthlyCapped
	case q.WeeklyFull():
		return StateWeeklyFull
	case !open:
		return StateWindowClosed
	default:
		return StateEligible
	}
}

// Decision объединяет квоты, окно и итоговое состояние для одного пользователя.
type Decision struct {
	Quota
	Week  week.Key
	Open  bool
	State State
}

// Eligible сообщает, может ли пользователь создать новую запись.
func (d Decision) Eligible() bool {
	return d.State == StateEligible
}

// Evaluate применяет окно и квоты к пользователю userID в момент now.
func Evaluate(regs []models.Registration, userID string, s models.AppSettings, now time.Time) Decision {
	q := EvaluateQuota(regs, userID, s, now)
	open := IsBookingOpen(s, now)
	return Decision{
		Quota: q,
		Week:  week.Of(now),
		Open:  open,
		State: Classify(q, open),
	}
}
