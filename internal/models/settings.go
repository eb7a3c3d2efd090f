package models

// DefaultWeeklyCapacity - количество мест в неделю, пока администратор не задал другое.
const DefaultWeeklyCapacity = 10

// DefaultLoginImageURL - картинка на странице входа по умолчанию.
const DefaultLoginImageURL = "https://images.unsplash.com/photo-1520333789090-1afc82db536a?auto=format&fit=crop&q=80&w=1200"

// AppSettings - единственная строка глобальных настроек.
//
// Пары ManualOpen*/ManualClose* задают неделю, которую администратор явно
// открыл или закрыл; nil означает отсутствие переопределения. Год здесь -
// год недели по ISO-8601, а не календарный.
type AppSettings struct {
	WeeklyCapacity  int     `json:"weekly_capacity"`
	ManualOpenWeek  *int    `json:"manual_open_week"`
	ManualOpenYear  *int    `json:"manual_open_year"`
	ManualCloseWeek *int    `json:"manual_close_week"`
	ManualCloseYear *int    `json:"manual_close_year"`
	LoginImageURL   *string `json:"login_image_url"`
	AutoOpenEnabled bool    `json:"auto_open_enabled"`
}

// DefaultSettings возвращает настройки, с которыми система стартует впервые.
func DefaultSettings() AppSettings {
	img := DefaultLoginImageURL
	return AppSettings{
		WeeklyCapacity: DefaultWeeklyCapacity,
		LoginImageURL:  &img,
	}
}

// SettingsUpdate - частичное изменение настроек администратором.
type SettingsUpdate struct {
	WeeklyCapacity  *int    `json:"weekly_capacity,omitempty" validate:"omitempty,gt=0"`
	LoginImageURL   *string `json:"login_image_url,omitempty" validate:"omitempty,url"`
	AutoOpenEnabled *bool   `json:"auto_open_enabled,omitempty"`
}
