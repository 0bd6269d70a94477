package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/librarydesk/lending-api/internal/core/domain"
	"github.com/librarydesk/lending-api/internal/core/ports"
)

// LedgerMetrics receives the outcome of ledger operations.
type LedgerMetrics interface {
	LoanCreated()
	LoanReturned()
	LoanRejected(reason string)
	IdempotentReplay()
}

type nopMetrics struct{}

func (nopMetrics) LoanCreated()        {}
func (nopMetrics) LoanReturned()       {}
func (nopMetrics) LoanRejected(string) {}
func (nopMetrics) IdempotentReplay()   {}

// LoanService is the lending ledger. It owns loan records and is the only
// writer of book availability counters after a book is created.
type LoanService struct {
	uow     ports.UnitOfWork
	idem    ports.IdempotencyStore
	metrics LedgerMetrics
	clock   Clock
	ids     IDGenerator
	logger  zerolog.Logger
}

// LoanOption customises a LoanService.
type LoanOption func(*LoanService)

// WithIdempotencyStore enables Idempotency-Key replay for CreateLoan.
func WithIdempotencyStore(store ports.IdempotencyStore) LoanOption {
	return func(s *LoanService) { s.idem = store }
}

// WithMetrics reports ledger outcomes to m.
func WithMetrics(m LedgerMetrics) LoanOption {
	return func(s *LoanService) { s.metrics = m }
}

// WithClock overrides the time source used for loan timestamps.
func WithClock(c Clock) LoanOption {
	return func(s *LoanService) { s.clock = c }
}

func NewLoanService(uow ports.UnitOfWork, logger zerolog.Logger, opts ...LoanOption) *LoanService {
	s := &LoanService{
		uow:     uow,
		metrics: nopMetrics{},
		clock:   systemClock{},
		ids:     uuidGenerator{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateLoan lends one copy of a book to a user. The availability check and
// the decrement are one conditional write evaluated by the store; the user
// lookup and the loan insert share its transaction, so a missing user rolls
// the decrement back.
func (s *LoanService) CreateLoan(ctx context.Context, input ports.CreateLoanInput) (*ports.LoanResult, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	key := input.IdempotencyKey
	claimed, replay, err := s.claim(ctx, key)
	if err != nil {
		s.reject(err)
		return nil, fmt.Errorf("create loan: %w", err)
	}
	if replay != nil {
		return replay, nil
	}

	loan, err := s.lend(ctx, input)
	if err != nil {
		if claimed {
			s.settle(ctx, key, func(ctx context.Context) error { return s.idem.Release(ctx, key) })
		}
		s.reject(err)
		return nil, fmt.Errorf("create loan: %w", err)
	}
	if claimed {
		s.settle(ctx, key, func(ctx context.Context) error { return s.idem.Complete(ctx, key, loan.ID) })
	}

	s.metrics.LoanCreated()
	s.logger.Info().
		Str("loan_id", loan.ID).
		Str("book_id", loan.BookID).
		Str("user_id", loan.UserID).
		Msg("loan created")

	return &ports.LoanResult{Loan: *loan}, nil
}

func (s *LoanService) lend(ctx context.Context, input ports.CreateLoanInput) (*domain.Loan, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return nil, err
	}

	var loan domain.Loan
	err = s.uow.Do(ctx, func(ctx context.Context, tx ports.Tx) error {
		if _, err := tx.Books().FindByID(ctx, input.BookID); err != nil {
			return err
		}

		taken, err := tx.Books().DecrementIfAvailable(ctx, input.BookID)
		if err != nil {
			return err
		}
		if !taken {
			return domain.ErrBookUnavailable
		}

		if _, err := tx.Users().Lock(ctx, input.UserID); err != nil {
			return err
		}

		loan = domain.Loan{
			ID:       id,
			BookID:   input.BookID,
			UserID:   input.UserID,
			LoanedAt: s.clock.Now(),
		}
		return tx.Loans().Insert(ctx, &loan)
	})
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// claim reserves the idempotency key before any write. It returns the
// earlier loan when the key was already completed, and ErrIdempotencyKeyBusy
// while another request holds it. A cache failure proceeds unprotected.
func (s *LoanService) claim(ctx context.Context, key string) (bool, *ports.LoanResult, error) {
	if key == "" || s.idem == nil {
		return false, nil, nil
	}

	loanID, claimed, err := s.idem.Claim(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("idempotency_key", key).Msg("idempotency claim failed, processing anyway")
		return false, nil, nil
	}
	if claimed {
		return true, nil, nil
	}
	if loanID == "" {
		return false, nil, domain.ErrIdempotencyKeyBusy
	}

	loan, err := s.GetLoan(ctx, loanID)
	if err != nil {
		// The loan went away with its book or user; the key is rebound to
		// whatever this request produces.
		s.logger.Warn().Err(err).Str("idempotency_key", key).Str("loan_id", loanID).Msg("idempotency key points at a missing loan")
		return true, nil, nil
	}

	s.metrics.IdempotentReplay()
	s.logger.Info().Str("idempotency_key", key).Str("loan_id", loan.ID).Msg("idempotent replay")
	return false, &ports.LoanResult{Loan: *loan, Replayed: true}, nil
}

// settle finishes a claim even when the request context is already done.
func (s *LoanService) settle(ctx context.Context, key string, fn func(context.Context) error) {
	if err := fn(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn().Err(err).Str("idempotency_key", key).Msg("failed to settle idempotency key")
	}
}

// ReturnLoan closes an open loan and gives its unit back to the book. The
// returned_at write is conditional on the loan still being open, so two
// concurrent returns cannot both increment the counter.
func (s *LoanService) ReturnLoan(ctx context.Context, id string) (*domain.Loan, error) {
	var loan *domain.Loan
	err := s.uow.Do(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		loan, err = tx.Loans().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !loan.IsOpen() {
			return domain.ErrLoanAlreadyReturned
		}

		if _, err := tx.Books().FindByID(ctx, loan.BookID); err != nil {
			return err
		}

		now := s.clock.Now()
		changed, err := tx.Loans().MarkReturned(ctx, id, now)
		if err != nil {
			return err
		}
		if !changed {
			return domain.ErrLoanAlreadyReturned
		}
		loan.ReturnedAt = &now

		return tx.Books().Increment(ctx, loan.BookID)
	})
	if err != nil {
		s.reject(err)
		return nil, fmt.Errorf("return loan: %w", err)
	}

	s.metrics.LoanReturned()
	s.logger.Info().Str("loan_id", loan.ID).Str("book_id", loan.BookID).Msg("loan returned")
	return loan, nil
}

func (s *LoanService) GetLoan(ctx context.Context, id string) (*domain.Loan, error) {
	var loan *domain.Loan
	err := s.uow.ReadOnly(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		loan, err = tx.Loans().FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get loan: %w", err)
	}
	return loan, nil
}

func (s *LoanService) ListLoans(ctx context.Context) ([]domain.Loan, error) {
	var loans []domain.Loan
	err := s.uow.ReadOnly(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		loans, err = tx.Loans().List(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	return loans, nil
}

// ListLoansByUser does not check that the user exists; an unknown user simply
// has no loans.
func (s *LoanService) ListLoansByUser(ctx context.Context, userID string) ([]domain.Loan, error) {
	var loans []domain.Loan
	err := s.uow.ReadOnly(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		loans, err = tx.Loans().ListByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list loans by user: %w", err)
	}
	return loans, nil
}

func (s *LoanService) reject(err error) {
	switch {
	case errors.Is(err, domain.ErrBookUnavailable):
		s.metrics.LoanRejected("book_unavailable")
	case errors.Is(err, domain.ErrLoanAlreadyReturned):
		s.metrics.LoanRejected("already_returned")
	case errors.Is(err, domain.ErrBookNotFound):
		s.metrics.LoanRejected("book_not_found")
	case errors.Is(err, domain.ErrUserNotFound):
		s.metrics.LoanRejected("user_not_found")
	case errors.Is(err, domain.ErrLoanNotFound):
		s.metrics.LoanRejected("loan_not_found")
	case errors.Is(err, domain.ErrIdempotencyKeyBusy):
		s.metrics.LoanRejected("idempotency_key_busy")
	default:
		s.metrics.LoanRejected("store_error")
	}
}
