// Package week переводит момент времени в номер недели по ISO-8601.
//
// Неделя начинается в понедельник, первая неделя года - та, в которую
// попадает первый четверг. Считается по календарной дате в локации t,
// поэтому время суток на результат не влияет.
package week

import "time"

// Number возвращает номер недели ISO-8601 (1..53) для даты t.
func Number(t time.Time) int {
	_, w := t.ISOWeek()
	return w
}

// Key - неделя и месяц момента времени.
//
// Неделю определяет пара (Week, WeekYear), где WeekYear - год по ISO-8601:
// 30 декабря 2024 относится к неделе 1 года 2025. Месяц определяет пара
// (Month, Year) с обычным календарным годом.
type Key struct {
	Week     int
	WeekYear int
	Month    int
	Year     int
}

// Of возвращает Key для момента t в его локации.
func Of(t time.Time) Key {
	wy, w := t.ISOWeek()
	return Key{
		Week:     w,
		WeekYear: wy,
		Month:    int(t.Month()),
		Year:     t.Year(),
	}
}

// SameWeek сообщает, что k и other - одна и та же неделя.
func (k Key) SameWeek(other Key) bool {
	return k.Week == other.Week && k.WeekYear == other.WeekYear
}
