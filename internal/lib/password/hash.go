// Package password хранит и проверяет пароли пользователей через bcrypt.
//
// Пароли никогда не сравниваются в открытом виде: в базе лежит только хэш,
// а проверка идёт через Verifier.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/magabrotheeeer/carwash-booking/internal/models"
)

// Verifier хэширует пароли и сверяет введённый пароль с хэшем.
type Verifier interface {
	Hash(raw string) (string, error)
	Compare(hash, raw string) error
}

// Bcrypt реализует Verifier. Нулевое значение использует bcrypt.DefaultCost.
type Bcrypt struct {
	Cost int
}

// Hash возвращает bcrypt-хэш пароля.
func (b Bcrypt) Hash(raw string) (string, error) {
	const op = "password.Hash"
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(raw), cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashed), nil
}

// Compare возвращает nil, если пароль соответствует хэшу.
// При несовпадении ошибка оборачивает models.ErrInvalidCredentials.
func (b Bcrypt) Compare(hash, raw string) error {
	const op = "password.Compare"
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return fmt.Errorf("%s: %w", op, models.ErrInvalidCredentials)
	default:
		return fmt.Errorf("%s: %w: %w", op, models.ErrInvalidCredentials, err)
	}
}

// GetHash хэширует пароль с параметрами по умолчанию.
func GetHash(raw string) (string, error) {
	return Bcrypt{}.Hash(raw)
}

// CompareHash сверяет пароль с хэшем с параметрами по умолчанию.
func CompareHash(hash, raw string) error {
	return Bcrypt{}.Compare(hash, raw)
}
