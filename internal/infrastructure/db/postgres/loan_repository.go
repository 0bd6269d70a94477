package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/librarydesk/lending-api/internal/core/domain"
	"github.com/librarydesk/lending-api/internal/core/ports"
)

var _ ports.LoanRepository = (*LoanRepository)(nil)

type LoanRepository struct {
	q querier
}

type loanRow struct {
	ID         string     `db:"id"`
	BookID     string     `db:"book_id"`
	UserID     string     `db:"user_id"`
	LoanedAt   time.Time  `db:"loaned_at"`
	ReturnedAt *time.Time `db:"returned_at"`
}

func (r loanRow) toDomain() domain.Loan {
	l := domain.Loan{ID: r.ID, BookID: r.BookID, UserID: r.UserID, LoanedAt: r.LoanedAt.UTC()}
	if r.ReturnedAt != nil {
		at := r.ReturnedAt.UTC()
		l.ReturnedAt = &at
	}
	return l
}

var loanColumns = []interface{}{"id", "book_id", "user_id", "loaned_at", "returned_at"}

var isOpen = goqu.C("returned_at").IsNull()

func (r *LoanRepository) list(ctx context.Context, where ...goqu.Expression) ([]domain.Loan, error) {
	ds := dialect.From(tableLoans).Select(loanColumns...).Prepared(true).
		Where(where...).
		Order(goqu.C("id").Asc())
	rows, err := selectAll[loanRow](ctx, r.q, ds)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	loans := make([]domain.Loan, 0, len(rows))
	for _, row := range rows {
		loans = append(loans, row.toDomain())
	}
	return loans, nil
}

func (r *LoanRepository) List(ctx context.Context) ([]domain.Loan, error) {
	return r.list(ctx)
}

func (r *LoanRepository) ListByUser(ctx context.Context, userID string) ([]domain.Loan, error) {
	return r.list(ctx, goqu.C("user_id").Eq(userID))
}

func (r *LoanRepository) FindByID(ctx context.Context, id string) (*domain.Loan, error) {
	ds := dialect.From(tableLoans).Select(loanColumns...).Prepared(true).Where(goqu.C("id").Eq(id))
	row, err := selectOne[loanRow](ctx, r.q, ds, domain.ErrLoanNotFound)
	if err != nil {
		return nil, err
	}
	l := row.toDomain()
	return &l, nil
}

// Insert maps a missing book or user, caught by the foreign keys, to the
// matching not-found error.
func (r *LoanRepository) Insert(ctx context.Context, l *domain.Loan) error {
	rec := goqu.Record{
		"id":        l.ID,
		"book_id":   l.BookID,
		"user_id":   l.UserID,
		"loaned_at": l.LoanedAt,
	}
	if l.ReturnedAt != nil {
		rec["returned_at"] = *l.ReturnedAt
	}
	if _, err := exec(ctx, r.q, dialect.Insert(tableLoans).Prepared(true).Rows(rec)); err != nil {
		return fmt.Errorf("insert loan: %w", err)
	}
	return nil
}

func (r *LoanRepository) MarkReturned(ctx context.Context, id string, at time.Time) (bool, error) {
	ds := dialect.Update(tableLoans).Prepared(true).
		Set(goqu.Record{"returned_at": at}).
		Where(goqu.C("id").Eq(id), isOpen)
	n, err := exec(ctx, r.q, ds)
	if err != nil {
		return false, fmt.Errorf("mark loan returned: %w", err)
	}
	return n == 1, nil
}

func (r *LoanRepository) HasOpenForBook(ctx context.Context, bookID string) (bool, error) {
	return exists(ctx, r.q, dialect.From(tableLoans).Where(goqu.C("book_id").Eq(bookID), isOpen))
}

func (r *LoanRepository) HasOpenForUser(ctx context.Context, userID string) (bool, error) {
	return exists(ctx, r.q, dialect.From(tableLoans).Where(goqu.C("user_id").Eq(userID), isOpen))
}

func (r *LoanRepository) HasAnyForUser(ctx context.Context, userID string) (bool, error) {
	return exists(ctx, r.q, dialect.From(tableLoans).Where(goqu.C("user_id").Eq(userID)))
}

func (r *LoanRepository) DeleteByBook(ctx context.Context, bookID string) error {
	if _, err := exec(ctx, r.q, dialect.Delete(tableLoans).Prepared(true).Where(goqu.C("book_id").Eq(bookID))); err != nil {
		return fmt.Errorf("delete loans by book: %w", err)
	}
	return nil
}

func (r *LoanRepository) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := exec(ctx, r.q, dialect.Delete(tableLoans).Prepared(true).Where(goqu.C("user_id").Eq(userID))); err != nil {
		return fmt.Errorf("delete loans by user: %w", err)
	}
	return nil
}
