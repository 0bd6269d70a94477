package ports

import (
	"context"

	"github.com/librarydesk/lending-api/internal/core/domain"
)

// CreateLoanInput is the DTO passed from the transport layer to LoanService.
type CreateLoanInput struct {
	BookID string `json:"bookId" validate:"required"`
	UserID string `json:"userId" validate:"required"`
	// IdempotencyKey is optional. A repeated key returns the loan created by
	// the first request instead of lending another copy.
	IdempotencyKey string `json:"-"`
}

// LoanResult is returned by CreateLoan.
type LoanResult struct {
	Loan domain.Loan
	// Replayed is true when the Idempotency-Key matched an earlier loan.
	Replayed bool
}

// LoanService is the lending ledger use-case boundary.
type LoanService interface {
	CreateLoan(ctx context.Context, input CreateLoanInput) (*LoanResult, error)
	ReturnLoan(ctx context.Context, id string) (*domain.Loan, error)
	GetLoan(ctx context.Context, id string) (*domain.Loan, error)
	ListLoans(ctx context.Context) ([]domain.Loan, error)
	ListLoansByUser(ctx context.Context, userID string) ([]domain.Loan, error)
}
