package models

import "time"

// Registration - запись одного автомобиля пользователя на мойку в конкретную неделю.
//
// UserName и CarDetails - копии на момент создания: история не должна
// меняться, если пользователь переименуется или удалит автомобиль.
//
// Неделю записи задают WeekNumber и WeekYear (год по ISO-8601), месяц - Month и Year.
// На стыке лет они расходятся: 30.12.2024 это неделя 1 года 2025, но декабрь 2024.
type Registration struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	CarID       string    `json:"car_id"`
	UserName    string    `json:"user_name"`
	CarDetails  string    `json:"car_details"`
	Date        time.Time `json:"date"`
	WeekNumber  int       `json:"week_number"`
	WeekYear    int       `json:"week_year"`
	Month       int       `json:"month"`
	Year        int       `json:"year"`
	ParkingSpot string    `json:"parking_spot,omitempty"`
}

// RegistrationRequest - данные формы записи.
type RegistrationRequest struct {
	CarID       string `json:"car_id" validate:"required"`
	ParkingSpot string `json:"parking_spot" validate:"max=120"`
}

// ParkingSpotRequest - изменение места парковки у существующей записи.
type ParkingSpotRequest struct {
	ParkingSpot string `json:"parking_spot" validate:"max=120"`
}

// WeekLoad - количество записей в одной неделе. Year - год недели по ISO-8601.
type WeekLoad struct {
	WeekNumber int `json:"week_number"`
	Year       int `json:"year"`
	Count      int `json:"count"`
}

// OverbookingAlert - сообщение администратору о неделе, где записей больше, чем мест.
// Year - год недели по ISO-8601.
type OverbookingAlert struct {
	WeekNumber int       `json:"week_number"`
	Year       int       `json:"year"`
	Count      int       `json:"count"`
	Capacity   int       `json:"capacity"`
	Excess     int       `json:"excess"`
	DetectedAt time.Time `json:"detected_at"`
}
