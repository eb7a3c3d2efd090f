// Package auth отвечает за вход по email и паролю и проверку JWT.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/carwash-booking/internal/lib/jwt"
	"github.com/magabrotheeeer/carwash-booking/internal/lib/password"
	"github.com/magabrotheeeer/carwash-booking/internal/models"
)

// UserRepository описывает поиск пользователя по логину.
type UserRepository interface {
	// GetUserByEmail возвращает пользователя по email без учёта регистра или models.ErrNotFound.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Service отвечает за авторизацию и валидацию JWT.
type Service struct {
	users    UserRepository
	hasher   password.Verifier
	jwtMaker jwt.Maker
	log      *slog.Logger
}

// NewAuthService создает новый экземпляр Service.
func NewAuthService(users UserRepository, hasher password.Verifier, jwtMaker jwt.Maker, log *slog.Logger) *Service {
	return &Service{
		users:    users,
		hasher:   hasher,
		jwtMaker: jwtMaker,
		log:      log,
	}
}

// Login проверяет пароль пользователя и выпускает JWT.
// Неизвестный email и неверный пароль неразличимы для вызывающего: оба дают models.ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, rawPassword string) (string, *models.User, error) {
	const op = "auth.Login"
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, models.ErrNotFound) {
		s.log.Info("login with unknown email")
		return "", nil, fmt.Errorf("%s: %w", op, models.ErrInvalidCredentials)
	}
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.hasher.Compare(user.PasswordHash, rawPassword); err != nil {
		s.log.Info("login with wrong password", slog.String("user_id", user.ID))
		return "", nil, fmt.Errorf("%s: %w", op, models.ErrInvalidCredentials)
	}

	token, err := s.jwtMaker.GenerateToken(user.ID, user.Role)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	return token, user, nil
}

// ValidateToken проверяет JWT и возвращает того, от чьего имени выполняется запрос.
func (s *Service) ValidateToken(token string) (models.Actor, error) {
	const op = "auth.ValidateToken"
	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return models.Actor{}, fmt.Errorf("%s: %w: %w", op, models.ErrInvalidCredentials, err)
	}
	return models.Actor{UserID: claims.UserID, Role: claims.Role}, nil
}
