package ports

import (
	"context"

	"github.com/librarydesk/lending-api/internal/core/domain"
)

// UserInput carries the writable fields of a user. Updates replace all of them.
type UserInput struct {
	Name  string `json:"name" validate:"required,notblank"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required,notblank"`
}

// UserService is the user directory use-case boundary.
type UserService interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	CreateUser(ctx context.Context, input UserInput) (*domain.User, error)
	UpdateUser(ctx context.Context, id string, input UserInput) (*domain.User, error)
	DeleteUser(ctx context.Context, id string) error
}
