package ports

import (
	"context"

	"github.com/librarydesk/lending-api/internal/core/domain"
)

// BookInput carries the writable fields of a book. Updates replace all of them.
type BookInput struct {
	Title           string `json:"title" validate:"required,notblank"`
	Author          string `json:"author" validate:"required,notblank"`
	ISBN            string `json:"isbn" validate:"required,notblank"`
	PublicationYear int    `json:"publicationYear" validate:"min=1000,max=2100"`
	AvailableUnits  int    `json:"availableUnits" validate:"min=0"`
}

// BookService is the catalog use-case boundary.
type BookService interface {
	ListBooks(ctx context.Context) ([]domain.Book, error)
	GetBook(ctx context.Context, id string) (*domain.Book, error)
	CreateBook(ctx context.Context, input BookInput) (*domain.Book, error)
	UpdateBook(ctx context.Context, id string, input BookInput) (*domain.Book, error)
	DeleteBook(ctx context.Context, id string) error
}
