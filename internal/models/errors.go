package models

import "errors"

var (
	// ErrNotFound - запись не найдена в хранилище.
	ErrNotFound = errors.New("not found")
	// ErrValidation - некорректные входные данные, до хранилища не доходит.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden - у пользователя нет прав на операцию.
	ErrForbidden = errors.New("forbidden")
	// ErrCapacityExhausted - в неделе не осталось мест на момент записи.
	ErrCapacityExhausted = errors.New("weekly capacity exhausted")
	// ErrAlreadyRegistered - у пользователя уже есть запись в этой неделе или месяце.
	ErrAlreadyRegistered = errors.New("already registered")
	// ErrInvalidCredentials - неверный email или пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
