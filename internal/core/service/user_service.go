package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/librarydesk/lending-api/internal/core/domain"
	"github.com/librarydesk/lending-api/internal/core/ports"
)

// UserService owns the user directory.
type UserService struct {
	uow    ports.UnitOfWork
	guard  *Guard
	ids    IDGenerator
	logger zerolog.Logger
}

func NewUserService(uow ports.UnitOfWork, guard *Guard, logger zerolog.Logger) *UserService {
	return &UserService{uow: uow, guard: guard, ids: uuidGenerator{}, logger: logger}
}

func (s *UserService) ListUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := s.uow.ReadOnly(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		users, err = tx.Users().List(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var user *domain.User
	err := s.uow.ReadOnly(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		user, err = tx.Users().FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *UserService) CreateUser(ctx context.Context, input ports.UserInput) (*domain.User, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	id, err := s.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	user := domain.User{ID: id, Name: input.Name, Email: input.Email, Phone: input.Phone}

	err = s.uow.Do(ctx, func(ctx context.Context, tx ports.Tx) error {
		exists, err := s.guard.EmailExists(ctx, tx, user.Email, "")
		if err != nil {
			return err
		}
		if exists {
			return domain.ErrDuplicateEmail
		}
		return tx.Users().Insert(ctx, &user)
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID).Msg("user created")
	return &user, nil
}

func (s *UserService) UpdateUser(ctx context.Context, id string, input ports.UserInput) (*domain.User, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	user := domain.User{ID: id, Name: input.Name, Email: input.Email, Phone: input.Phone}
	err := s.uow.Do(ctx, func(ctx context.Context, tx ports.Tx) error {
		if _, err := tx.Users().FindByID(ctx, id); err != nil {
			return err
		}
		return tx.Users().Replace(ctx, &user)
	})
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.logger.Info().Str("user_id", id).Msg("user updated")
	return &user, nil
}

// DeleteUser removes a user unless a loan blocks it under the guard's policy.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	err := s.uow.Do(ctx, func(ctx context.Context, tx ports.Tx) error {
		if _, err := tx.Users().Lock(ctx, id); err != nil {
			return err
		}
		blocked, err := s.guard.UserHasBlockingLoan(ctx, tx, id)
		if err != nil {
			return err
		}
		if blocked {
			return domain.ErrUserHasLoans
		}
		if err := tx.Loans().DeleteByUser(ctx, id); err != nil {
			return err
		}
		return tx.Users().Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	s.logger.Info().Str("user_id", id).Str("policy", string(s.guard.Policy())).Msg("user deleted")
	return nil
}
