// Package users содержит управление пользователями: действия администратора,
// редактирование собственного профиля и создание первого администратора.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/carwash-booking/internal/lib/password"
	"github.com/magabrotheeeer/carwash-booking/internal/models"
)

// Repository описывает хранилище пользователей.
type Repository interface {
	ListUsers(ctx context.Context) ([]*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpsertUser(ctx context.Context, u models.User) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	DeleteUser(ctx context.Context, id string) (int, error)
	CountUsers(ctx context.Context) (int, error)
}

// Bootstrap - администратор, которого создают, пока в системе нет пользователей.
type Bootstrap struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Service реализует операции над пользователями.
type Service struct {
	repo            Repository
	hasher          password.Verifier
	log             *slog.Logger
	defaultPassword string
	storeTimeout    time.Duration
	newID           func() string
}

// NewUserService создает новый экземпляр Service.
// defaultPassword выдаётся при сбросе пароля и при создании пользователя без пароля.
func NewUserService(repo Repository, hasher password.Verifier, log *slog.Logger,
	defaultPassword string, storeTimeout time.Duration) *Service {
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &Service{
		repo:            repo,
		hasher:          hasher,
		log:             log,
		defaultPassword: defaultPassword,
		storeTimeout:    storeTimeout,
		newID:           uuid.NewString,
	}
}

// List возвращает всех пользователей.
func (s *Service) List(ctx context.Context) ([]*models.User, error) {
	const op = "users.List"
	tctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	res, err := s.repo.ListUsers(tctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// Get возвращает пользователя по ID.
func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	const op = "users.Get"
	tctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	res, err := s.repo.GetUser(tctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// Create создаёт пользователя. Без пароля выдаётся пароль по умолчанию, без роли - роль user.
func (s *Service) Create(ctx context.Context, in models.UserInput) (*models.User, error) {
	const op = "users.Create"
	tctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.ensureEmailFree(tctx, in.Email, ""); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	raw := in.Password
	if raw == "" {
		raw = s.defaultPassword
	}
	hash, err := s.hasher.Hash(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	id := s.newID()
	cars, err := s.normalizeCars(in.Cars)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	u := models.User{
		ID:           id,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: hash,
		Role:         roleOrDefault(in.Role),
		Cars:         cars,
	}
	if err := s.repo.UpsertUser(tctx, u); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("user created", slog.String("user_id", u.ID), slog.String("role", u.Role))
	return &u, nil
}

// Update меняет данные пользователя от имени администратора actor.
// Пароль и роль меняются, только если они переданы. Снять роль admin с самого себя
// или с последнего администратора нельзя.
func (s *Service) Update(ctx context.Context, actor models.Actor, id string, in models.UserInput) (*models.User, error) {
	const op = "users.Update"
	tctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	u, err := s.repo.GetUser(tctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.ensureEmailFree(tctx, in.Email, id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	u.FirstName = strings.TrimSpace(in.FirstName)
	u.LastName = strings.TrimSpace(in.LastName)
	u.Phone = strings.TrimSpace(in.Phone)
	u.Email = strings.TrimSpace(in.Email)
	if in.Role != "" {
		role := roleOrDefault(in.Role)
		if u.Role == models.RoleAdmin && role != models.RoleAdmin {
			if err := s.ensureCanDemote(tctx, actor, u.ID); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}
		u.Role = role
	}
	if u.Cars, err = s.normalizeCars(in.Cars); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if in.Password != "" {
		if u.PasswordHash, err = s.hasher.Hash(in.Password); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := s.repo.UpsertUser(tctx, *u); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// UpdateProfile меняет профиль самого actor. Роль через профиль не меняется.
func (s *Service) UpdateProfile(ctx context.Context, actor models.Actor, in models.ProfileInput) (*models.User, error) {
	const op = "users.UpdateProfile"
	tctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	u, err := s.repo.GetUser(tctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.ensureEmailFree(tctx, in.Email, u.ID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	u.FirstName = strings.TrimSpace(in.FirstName)
	u.LastName = strings.TrimSpace(in.LastName)
	u.Phone = strings.TrimSpace(in.Phone)
	u.Email = strings.TrimSpace(in.Email)
	if u.Cars, err = s.normalizeCars(in.Cars); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if in.NewPassword != "" {
		if u.PasswordHash, err = s.hasher.Hash(in.NewPassword); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := s.repo.UpsertUser(tctx, *u); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// Delete удаляет пользователя. Администратор не может удалить сам себя.
func (s *Service) Delete(ctx context.Context, actor models.Actor, id string) error {
	const op = "users.Delete"
	if actor.UserID == id {
		return fmt.Errorf("%s: cannot delete yourself: %w", op, models.ErrForbidden)
	}
	tctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	n, err := s.repo.DeleteUser(tctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	s.log.Info("user deleted", slog.String("user_id", id), slog.String("by", actor.UserID))
	return nil
}

// ResetPassword выставляет пользователю пароль по умолчанию.
func (s *Service) ResetPassword(ctx context.Context, id string) error {
	const op = "users.ResetPassword"
	hash, err := s.hasher.Hash(s.defaultPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	if err := s.repo.UpdatePasswordHash(tctx, id, hash); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("password reset to default", slog.String("user_id", id))
	return nil
}

// EnsureAdmin создаёт администратора b, если в системе нет ни одного пользователя.
// Возвращает true, если администратор был создан.
func (s *Service) EnsureAdmin(ctx context.Context, b Bootstrap) (bool, error) {
	const op = "users.EnsureAdmin"
	tctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	n, err := s.repo.CountUsers(tctx)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if n > 0 {
		return false, nil
	}

	_, err = s.Create(ctx, models.UserInput{
		FirstName: b.FirstName,
		LastName:  b.LastName,
		Email:     b.Email,
		Password:  b.Password,
		Role:      models.RoleAdmin,
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

func (s *Service) ensureEmailFree(ctx context.Context, email, ownerID string) error {
	existing, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(email))
	switch {
	case errors.Is(err, models.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != ownerID:
		return fmt.Errorf("email %s already in use: %w", email, models.ErrValidation)
	default:
		return nil
	}
}

func (s *Service) ensureCanDemote(ctx context.Context, actor models.Actor, id string) error {
	if actor.UserID == id {
		return fmt.Errorf("cannot remove your own admin role: %w", models.ErrForbidden)
	}
	all, err := s.repo.ListUsers(ctx)
	if err != nil {
		return err
	}
	admins := 0
	for _, u := range all {
		if u.Role == models.RoleAdmin {
			admins++
		}
	}
	if admins <= 1 {
		return fmt.Errorf("cannot demote the last admin: %w", models.ErrForbidden)
	}
	return nil
}

// normalizeCars выдаёт ID новым автомобилям и приводит номера к единому виду.
// Номер, в котором после очистки не осталось букв и цифр, отклоняется.
func (s *Service) normalizeCars(cars []models.Car) ([]models.Car, error) {
	res := make([]models.Car, 0, len(cars))
	for _, c := range cars {
		plate := models.FormatPlate(c.LicensePlate)
		if plate == "" {
			return nil, fmt.Errorf("license plate %q has no letters or digits: %w", c.LicensePlate, models.ErrValidation)
		}
		if c.ID == "" {
			c.ID = s.newID()
		}
		c.Brand = strings.TrimSpace(c.Brand)
		c.Model = strings.TrimSpace(c.Model)
		c.LicensePlate = plate
		res = append(res, c)
	}
	return res, nil
}

func roleOrDefault(role string) string {
	if role == models.RoleAdmin {
		return models.RoleAdmin
	}
	return models.RoleUser
}
