package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/librarydesk/lending-api/internal/core/domain"
	"github.com/librarydesk/lending-api/internal/core/ports"
)

// BookService owns the catalog: book records and their availability counters.
type BookService struct {
	uow    ports.UnitOfWork
	guard  *Guard
	ids    IDGenerator
	logger zerolog.Logger
}

func NewBookService(uow ports.UnitOfWork, guard *Guard, logger zerolog.Logger) *BookService {
	return &BookService{uow: uow, guard: guard, ids: uuidGenerator{}, logger: logger}
}

func (s *BookService) ListBooks(ctx context.Context) ([]domain.Book, error) {
	var books []domain.Book
	err := s.uow.ReadOnly(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		books, err = tx.Books().List(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

func (s *BookService) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	var book *domain.Book
	err := s.uow.ReadOnly(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		book, err = tx.Books().FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// CreateBook checks isbn uniqueness and inserts in the same transaction, so
// two simultaneous creates with one isbn cannot both pass the check.
func (s *BookService) CreateBook(ctx context.Context, input ports.BookInput) (*domain.Book, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	id, err := s.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}
	book := bookFromInput(id, input)

	err = s.uow.Do(ctx, func(ctx context.Context, tx ports.Tx) error {
		exists, err := s.guard.ISBNExists(ctx, tx, book.ISBN, "")
		if err != nil {
			return err
		}
		if exists {
			return domain.ErrDuplicateISBN
		}
		return tx.Books().Insert(ctx, &book)
	})
	if err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}

	s.logger.Info().Str("book_id", book.ID).Str("isbn", book.ISBN).Msg("book created")
	return &book, nil
}

// UpdateBook replaces every writable field. Isbn uniqueness is not re-checked
// here; the store's unique constraint is the only line of defence on update.
func (s *BookService) UpdateBook(ctx context.Context, id string, input ports.BookInput) (*domain.Book, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	book := bookFromInput(id, input)
	err := s.uow.Do(ctx, func(ctx context.Context, tx ports.Tx) error {
		if _, err := tx.Books().FindByID(ctx, id); err != nil {
			return err
		}
		return tx.Books().Replace(ctx, &book)
	})
	if err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}

	s.logger.Info().Str("book_id", id).Msg("book updated")
	return &book, nil
}

// DeleteBook removes a book that no open loan references, together with its
// returned loans.
func (s *BookService) DeleteBook(ctx context.Context, id string) error {
	err := s.uow.Do(ctx, func(ctx context.Context, tx ports.Tx) error {
		if _, err := tx.Books().Lock(ctx, id); err != nil {
			return err
		}
		onLoan, err := s.guard.BookHasOpenLoan(ctx, tx, id)
		if err != nil {
			return err
		}
		if onLoan {
			return domain.ErrBookOnLoan
		}
		if err := tx.Loans().DeleteByBook(ctx, id); err != nil {
			return err
		}
		return tx.Books().Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}

	s.logger.Info().Str("book_id", id).Msg("book deleted")
	return nil
}

func bookFromInput(id string, in ports.BookInput) domain.Book {
	return domain.Book{
		ID:              id,
		Title:           in.Title,
		Author:          in.Author,
		ISBN:            in.ISBN,
		PublicationYear: in.PublicationYear,
		AvailableUnits:  in.AvailableUnits,
	}
}
