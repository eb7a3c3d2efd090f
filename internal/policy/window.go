// Package policy решает, открыта ли запись на мойку и может ли конкретный
// пользователь записаться в текущую неделю.
//
// Все функции чистые: настройки и текущее время передаются явно.
package policy

import (
	"time"

	"github.com/magabrotheeeer/carwash-booking/internal/lib/week"
	"github.com/magabrotheeeer/carwash-booking/internal/models"
)

const (
	// AutoOpenWeekday - день, с которого открывается автоматическое окно.
	AutoOpenWeekday = time.Thursday
	// AutoOpenHour - час (локальный), с которого открывается автоматическое окно.
	AutoOpenHour = 8
)

// IsBookingOpen сообщает, разрешена ли запись в момент now.
//
// Порядок правил важен, срабатывает первое подходящее:
//  1. администратор закрыл текущую неделю - закрыто;
//  2. администратор открыл текущую неделю - открыто;
//  3. включено автоматическое расписание - открыто с четверга 08:00 до конца субботы;
//  4. иначе закрыто.
//
// now должен быть уже переведён в локацию, по которой считается 08:00.
func IsBookingOpen(s models.AppSettings, now time.Time) bool {
	current := week.Of(now)

	if sameWeek(s.ManualCloseWeek, s.ManualCloseYear, current) {
		return false
	}
	if sameWeek(s.ManualOpenWeek, s.ManualOpenYear, current) {
		return true
	}
	if s.AutoOpenEnabled {
		return inAutoWindow(now)
	}
	return false
}

func sameWeek(w, y *int, k week.Key) bool {
	return w != nil && y != nil && *w == k.Week && *y == k.WeekYear
}

func inAutoWindow(now time.Time) bool {
	switch now.Weekday() {
	case AutoOpenWeekday:
		return now.Hour() >= AutoOpenHour
	case time.Friday, time.Saturday:
		return true
	default:
		return false
	}
}
