// Package models содержит доменные структуры сервиса записи на мойку:
// пользователей с их автомобилями, записи на неделю и глобальные настройки.
package models

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// RoleAdmin - администратор, управляет окном записи и пользователями.
	RoleAdmin = "admin"
	// RoleUser - обычный сотрудник.
	RoleUser = "user"
)

// Car - автомобиль, принадлежащий пользователю. Живёт только внутри User.Cars.
type Car struct {
	ID           string `json:"id"`
	Brand        string `json:"brand" validate:"required"`
	Model        string `json:"model" validate:"required"`
	LicensePlate string `json:"license_plate" validate:"required"`
}

// Details возвращает текстовое описание автомобиля, которое копируется в запись.
func (c Car) Details() string {
	return fmt.Sprintf("%s %s (%s)", c.Brand, c.Model, c.LicensePlate)
}

// User представляет сотрудника или администратора.
// Email используется как логин; уникальность не проверяется на этом уровне.
type User struct {
	ID           string `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
	Cars         []Car  `json:"cars"`
}

// FullName возвращает имя и фамилию через пробел.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// IsAdmin сообщает, является ли пользователь администратором.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// FindCar ищет автомобиль пользователя по ID.
func (u User) FindCar(id string) (Car, bool) {
	for _, c := range u.Cars {
		if c.ID == id {
			return c, true
		}
	}
	return Car{}, false
}

// UserInput - данные пользователя, которые администратор передаёт при создании и редактировании.
type UserInput struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Phone     string `json:"phone" validate:"max=30"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password,omitempty" validate:"omitempty,min=6"`
	Role      string `json:"role" validate:"omitempty,oneof=admin user"`
	Cars      []Car  `json:"cars" validate:"dive"`
}

// ProfileInput - данные, которые пользователь может менять в своём профиле.
type ProfileInput struct {
	FirstName   string `json:"first_name" validate:"required,max=100"`
	LastName    string `json:"last_name" validate:"required,max=100"`
	Phone       string `json:"phone" validate:"max=30"`
	Email       string `json:"email" validate:"required,email"`
	NewPassword string `json:"new_password,omitempty" validate:"omitempty,min=6"`
	Cars        []Car  `json:"cars" validate:"dive"`
}

// Actor - тот, кто выполняет запрос: идентификатор пользователя и его роль.
type Actor struct {
	UserID string
	Role   string
}

// IsAdmin сообщает, действует ли запрос от имени администратора.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

var plateJunk = regexp.MustCompile(`[^A-Z0-9]`)

// FormatPlate приводит номер к верхнему регистру и убирает всё, кроме латинских букв и цифр.
func FormatPlate(plate string) string {
	return plateJunk.ReplaceAllString(strings.ToUpper(plate), "")
}
