package ports

import (
	"context"
	"time"

	"github.com/librarydesk/lending-api/internal/core/domain"
)

// UnitOfWork opens transactions against the backing store. Every repository
// call made through the Tx handed to fn, using the ctx handed to fn, belongs
// to that transaction: it commits when fn returns nil and rolls back otherwise.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// ReadOnly runs fn against a consistent read view. Implementations may
	// reject writes made through tx.
	ReadOnly(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx exposes the repositories bound to one transaction.
type Tx interface {
	Books() BookRepository
	Users() UserRepository
	Loans() LoanRepository
}

// BookRepository persists books and their availability counters.
type BookRepository interface {
	List(ctx context.Context) ([]domain.Book, error)
	// FindByID returns domain.ErrBookNotFound when no book has the id.
	FindByID(ctx context.Context, id string) (*domain.Book, error)
	// Lock loads the book and holds a write lock on it until the transaction ends.
	Lock(ctx context.Context, id string) (*domain.Book, error)
	// ExistsByISBN ignores the book identified by excludeID when it is non-empty.
	ExistsByISBN(ctx context.Context, isbn, excludeID string) (bool, error)
	// Insert returns domain.ErrDuplicateISBN when the store's unique constraint fires.
	Insert(ctx context.Context, b *domain.Book) error
	// Replace overwrites every field but the id. domain.ErrBookNotFound when absent.
	Replace(ctx context.Context, b *domain.Book) error
	Delete(ctx context.Context, id string) error
	// DecrementIfAvailable takes one unit away only while available_units > 0,
	// as a single step evaluated by the store. It reports whether a unit was taken.
	DecrementIfAvailable(ctx context.Context, id string) (bool, error)
	// Increment gives one unit back.
	Increment(ctx context.Context, id string) error
}

// UserRepository persists users.
type UserRepository interface {
	List(ctx context.Context) ([]domain.User, error)
	// FindByID returns domain.ErrUserNotFound when no user has the id.
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// Lock loads the user and holds a write lock on it until the transaction ends.
	Lock(ctx context.Context, id string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	// Insert returns domain.ErrDuplicateEmail when the store's unique constraint fires.
	Insert(ctx context.Context, u *domain.User) error
	Replace(ctx context.Context, u *domain.User) error
	Delete(ctx context.Context, id string) error
}

// LoanRepository persists loans.
type LoanRepository interface {
	List(ctx context.Context) ([]domain.Loan, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Loan, error)
	// FindByID returns domain.ErrLoanNotFound when no loan has the id.
	FindByID(ctx context.Context, id string) (*domain.Loan, error)
	Insert(ctx context.Context, l *domain.Loan) error
	// MarkReturned sets returned_at only while it is still unset and reports
	// whether the loan changed.
	MarkReturned(ctx context.Context, id string, at time.Time) (bool, error)
	HasOpenForBook(ctx context.Context, bookID string) (bool, error)
	HasOpenForUser(ctx context.Context, userID string) (bool, error)
	HasAnyForUser(ctx context.Context, userID string) (bool, error)
	DeleteByBook(ctx context.Context, bookID string) error
	DeleteByUser(ctx context.Context, userID string) error
}
