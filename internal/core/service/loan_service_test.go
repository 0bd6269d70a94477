package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarydesk/lending-api/internal/core/domain"
	"github.com/librarydesk/lending-api/internal/core/ports"
)

func TestLoanService_Create_DecrementsAvailability(t *testing.T) {
	lib := newLibrary(t, domain.DeleteBlockedByAnyLoan)
	book := lib.addBook(t, "978-0134190440", 2)
	user := lib.addUser(t, "ada@example.com")

	loan := lib.lend(t, book.ID, user.ID)

	assert.NotEmpty(t, loan.ID)
	assert.Equal(t, book.ID, loan.BookID)
	assert.Equal(t, user.ID, loan.UserID)
	assert.Equal(t, refTime, loan.LoanedAt)
	assert.Nil(t, loan.ReturnedAt)
	assert.Equal(t, domain.LoanOpen, loan.Status())
	assert.Equal(t, 1, lib.units(t, book.ID))
}

func TestLoanService_Create_GetReturnsSameRecord(t *testing.T) {
	lib := newLibrary(t, domain.DeleteBlockedByAnyLoan)
	book := lib.addBook(t, "978-0134190440", 1)
	user := lib.addUser(t, "ada@example.com")

	created := lib.lend(t, book.ID, user.ID)
	got, err := lib.loans.GetLoan(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, *created, *got)
}

func TestLoanService_Create_Unavailable(t *testing.T) {
	lib := newLibrary(t, domain.DeleteBlockedByAnyLoan)
	book := lib.addBook(t, "978-0134190440", 0)
	user := lib.addUser(t, "ada@example.com")

	_, err := lib.loans.CreateLoan(context.Background(), ports.CreateLoanInput{BookID: book.ID, UserID: user.ID})
	require.ErrorIs(t, err, domain.ErrBookUnavailable)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 0, lib.units(t, book.ID))

	loans, err := lib.loans.ListLoans(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loans)
}

func TestLoanService_Create_BookNotFound(t *testing.T) {
	lib := newLibrary(t, domain.DeleteBlockedByAnyLoan)
	user := lib.addUser(t, "ada@example.com")

	_, err := lib.loans.CreateLoan(context.Background(), ports.CreateLoanInput{BookID: "missing", UserID: user.ID})
	assert.ErrorIs(t, err, domain.ErrBookNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLoanService_Create_UserNotFoundRollsBackDecrement(t *testing.T) {
	lib := newLibrary(t, domain.DeleteBlockedByAnyLoan)
	book := lib.addBook(t, "978-0134190440", 1)

	_, err := lib.loans.CreateLoan(context.Background(), ports.CreateLoanInput{BookID: book.ID, UserID: "missing"})
	require.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.Equal(t, 1, lib.units(t, book.ID))
}

func TestLoanService_Create_Validation(t *testing.T) {
	lib := newLibrary(t, domain.DeleteBlockedByAnyLoan)

	_, err := lib.loans.CreateLoan(context.Background(), ports.CreateLoanInput{})
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Violations, 2)
	assert.Equal(t, "bookId", ve.Violations[0].Field)
	assert.Equal(t, "userId", ve.Violations[1].Field)
}

func TestLoanService_Create_ConcurrentLastUnit(t *testing.T) {
	lib := newLibrary(t, domain.DeleteBlockedByAnyLoan)
	book := lib.addBook(t, "978-0134190440", 1)
	alice := lib.addUser(t, "alice@example.com")
	bob := lib.addUser(t, "bob@example.com")

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i, userID := range []string{alice.ID, bob.ID} {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			_, errs[i] = lib.loans.CreateLoan(context.Background(), ports.CreateLoanInput{BookID: book.ID, UserID: userID})
		}(i, userID)
	}
	wg.Wait()

	var ok, unavailable int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrBookUnavailable):
			unavailable++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, unavailable)
	assert.Equal(t, 0, lib.units(t, book.ID))

	loans, err := lib.loans.ListLoans(context.Background())
	require.NoError(t, err)
	assert.Len(t, loans, 1)
}

func TestLoanService_Create_ManyConcurrentNeverOverlends(t *testing.T) {
	lib := newLibrary(t, domain.DeleteBlockedByAnyLoan)
	book := lib.addBook(t, "978-0134190440", 3)
	user := lib.addUser(t, "ada@example.com")

	const attempts = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := lib.loans.CreateLoan(context.Background(), ports.CreateLoanInput{BookID: book.ID, UserID: user.ID})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, success)
	assert.Equal(t, 0, lib.units(t, book.ID))
}

func TestLoanService_Return_RestoresAvailability(t *testing.T) {
	lib := newLibrary(t, domain.DeleteBlockedByAnyLoan)
	book := lib.addBook(t, "978-0134190440", 2)
	user := lib.addUser(t, "ada@example.com")
	loan := lib.lend(t, book.ID, user.ID)

	returned, err := lib.loans.ReturnLoan(context.Background(), loan.ID)
	require.NoError(t, err)
	require.NotNil(t, returned.ReturnedAt)
	assert.Equal(t, refTime, *returned.ReturnedAt)
	assert.Equal(t, domain.LoanReturned, returned.Status())
	assert.Equal(t, 2, lib.units(t, book.ID))
}

func TestLoanService_Return_Twice(t *testing.T) {
	lib := newLibrary(t, domain.DeleteBlockedByAnyLoan)
	book := lib.addBook(t, "978-0134190440", 1)
	user := lib.addUser(t, "ada@example.com")
	loan := lib.lend(t, book.ID, user.ID)

	_, err := lib.loans.ReturnLoan(context.Background(), loan.ID)
	require.NoError(t, err)

	_, err = lib.loans.ReturnLoan(context.Background(), loan.ID)
	require.ErrorIs(t, err, domain.ErrLoanAlreadyReturned)
	assert.Equal(t, 1, lib.units(t, book.ID))
}

func TestLoanService_Return_ConcurrentIncrementsOnce(t *testing.T) {
	lib := newLibrary(t, domain.DeleteBlockedByAnyLoan)
	book := lib.addBook(t, "978-0134190440", 1)
	user := lib.addUser(t, "ada@example.com")
	loan := lib.lend(t, book.ID, user.ID)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = lib.loans.ReturnLoan(context.Background(), loan.ID)
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrLoanAlreadyReturned)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, lib.units(t, book.ID))
}

func TestLoanService_Return_NotFound(t *testing.T) {
	lib := newLibrary(t, domain.DeleteBlockedByAnyLoan)

	_, err := lib.loans.ReturnLoan(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrLoanNotFound)
}

func TestLoanService_ListByUser(t *testing.T) {
	lib := newLibrary(t, domain.DeleteBlockedByAnyLoan)
	book := lib.addBook(t, "978-0134190440", 5)
	alice := lib.addUser(t, "alice@example.com")
	bob := lib.addUser(t, "bob@example.com")

	first := lib.lend(t, book.ID, alice.ID)
	second := lib.lend(t, book.ID, alice.ID)
	lib.lend(t, book.ID, bob.ID)
	_, err := lib.loans.ReturnLoan(context.Background(), first.ID)
	require.NoError(t, err)

	loans, err := lib.loans.ListLoansByUser(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Len(t, loans, 2)
	ids := []string{loans[0].ID, loans[1].ID}
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)

	none, err := lib.loans.ListLoansByUser(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLoanService_IdempotentReplay(t *testing.T) {
	idem := newStubIdempotency()
	metrics := newCountingMetrics()
	lib := newLibrary(t, domain.DeleteBlockedByAnyLoan, WithIdempotencyStore(idem), WithMetrics(metrics))
	book := lib.addBook(t, "978-0134190440", 2)
	user := lib.addUser(t, "ada@example.com")

	in := ports.CreateLoanInput{BookID: book.ID, UserID: user.ID, IdempotencyKey: "req-1"}
	first, err := lib.loans.CreateLoan(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := lib.loans.CreateLoan(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Loan.ID, second.Loan.ID)

	assert.Equal(t, 1, lib.units(t, book.ID))
	assert.Equal(t, 1, metrics.created)
	assert.Equal(t, 1, metrics.replays)
}

func TestLoanService_IdempotencyClaimFailureStillCreates(t *testing.T) {
	idem := newStubIdempotency()
	idem.claimErr = errors.New("redis down")
	lib := newLibrary(t, domain.DeleteBlockedByAnyLoan, WithIdempotencyStore(idem))
	book := lib.addBook(t, "978-0134190440", 2)
	user := lib.addUser(t, "ada@example.com")

	res, err := lib.loans.CreateLoan(context.Background(), ports.CreateLoanInput{BookID: book.ID, UserID: user.ID, IdempotencyKey: "req-1"})
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, 1, lib.units(t, book.ID))
}

func TestLoanService_IdempotentConcurrentSameKeyLendsOnce(t *testing.T) {
	idem := newStubIdempotency()
	idem.claimDelay = 20 * time.Millisecond
	lib := newLibrary(t, domain.DeleteBlockedByAnyLoan, WithIdempotencyStore(idem))
	book := lib.addBook(t, "978-0134190440", 10)
	user := lib.addUser(t, "ada@example.com")

	const callers = 10
	var (
		wg      sync.WaitGroup
		results = make([]*ports.LoanResult, callers)
		errs    = make([]error, callers)
	)
	in := ports.CreateLoanInput{BookID: book.ID, UserID: user.ID, IdempotencyKey: "same"}
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = lib.loans.CreateLoan(context.Background(), in)
		}(i)
	}
	wg.Wait()

	var loanID string
	for i, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, domain.ErrIdempotencyKeyBusy)
			continue
		}
		if loanID == "" {
			loanID = results[i].Loan.ID
		}
		assert.Equal(t, loanID, results[i].Loan.ID)
	}
	require.NotEmpty(t, loanID)

	loans, err := lib.loans.ListLoansByUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Len(t, loans, 1)
	assert.Equal(t, 9, lib.units(t, book.ID))

	again, err := lib.loans.CreateLoan(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, loanID, again.Loan.ID)
}

func TestLoanService_IdempotencyFailedCreateReleasesKey(t *testing.T) {
	idem := newStubIdempotency()
	lib := newLibrary(t, domain.DeleteBlockedByAnyLoan, WithIdempotencyStore(idem))
	book := lib.addBook(t, "978-0134190440", 0)
	user := lib.addUser(t, "ada@example.com")

	in := ports.CreateLoanInput{BookID: book.ID, UserID: user.ID, IdempotencyKey: "req-1"}
	_, err := lib.loans.CreateLoan(context.Background(), in)
	require.ErrorIs(t, err, domain.ErrBookUnavailable)
	assert.Equal(t, 1, idem.released)

	_, err = lib.books.UpdateBook(context.Background(), book.ID, ports.BookInput{
		Title: book.Title, Author: book.Author, ISBN: book.ISBN,
		PublicationYear: book.PublicationYear, AvailableUnits: 1,
	})
	require.NoError(t, err)

	res, err := lib.loans.CreateLoan(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, 0, lib.units(t, book.ID))
}

func TestLoanService_IdempotencyBusyKeyIsConflict(t *testing.T) {
	idem := newStubIdempotency()
	idem.keys["req-1"] = stubPending
	lib := newLibrary(t, domain.DeleteBlockedByAnyLoan, WithIdempotencyStore(idem))
	book := lib.addBook(t, "978-0134190440", 1)
	user := lib.addUser(t, "ada@example.com")

	_, err := lib.loans.CreateLoan(context.Background(), ports.CreateLoanInput{BookID: book.ID, UserID: user.ID, IdempotencyKey: "req-1"})
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyBusy)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 1, lib.units(t, book.ID))
}

func TestLoanService_RejectionMetrics(t *testing.T) {
	metrics := newCountingMetrics()
	lib := newLibrary(t, domain.DeleteBlockedByAnyLoan, WithMetrics(metrics))
	book := lib.addBook(t, "978-0134190440", 0)
	user := lib.addUser(t, "ada@example.com")

	_, _ = lib.loans.CreateLoan(context.Background(), ports.CreateLoanInput{BookID: book.ID, UserID: user.ID})
	_, _ = lib.loans.CreateLoan(context.Background(), ports.CreateLoanInput{BookID: "missing", UserID: user.ID})
	_, _ = lib.loans.ReturnLoan(context.Background(), "missing")

	assert.Equal(t, map[string]int{
		"book_unavailable": 1,
		"book_not_found":   1,
		"loan_not_found":   1,
	}, metrics.rejected)
}

// The walk-through below exercises the lending cycle end to end: one unit,
// two readers, a refused loan, a return and a successful retry.
func TestLoanService_LendingCycle(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t, domain.DeleteBlockedByAnyLoan)
	book := lib.addBook(t, "978-0262033848", 1)
	alice := lib.addUser(t, "alice@example.com")
	bob := lib.addUser(t, "bob@example.com")

	aliceLoan := lib.lend(t, book.ID, alice.ID)
	assert.Equal(t, 0, lib.units(t, book.ID))

	_, err := lib.loans.CreateLoan(ctx, ports.CreateLoanInput{BookID: book.ID, UserID: bob.ID})
	require.ErrorIs(t, err, domain.ErrBookUnavailable)

	err = lib.books.DeleteBook(ctx, book.ID)
	require.ErrorIs(t, err, domain.ErrBookOnLoan)

	_, err = lib.loans.ReturnLoan(ctx, aliceLoan.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, lib.units(t, book.ID))

	bobLoan := lib.lend(t, book.ID, bob.ID)
	assert.Equal(t, 0, lib.units(t, book.ID))

	_, err = lib.loans.ReturnLoan(ctx, bobLoan.ID)
	require.NoError(t, err)

	require.NoError(t, lib.books.DeleteBook(ctx, book.ID))
	loans, err := lib.loans.ListLoans(ctx)
	require.NoError(t, err)
	assert.Empty(t, loans)
}

func TestLoanService_TwoUnitScenario(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t, domain.DeleteBlockedByAnyLoan)
	book := lib.addBook(t, "978-0201633610", 2)
	u1 := lib.addUser(t, "u1@example.com")
	u2 := lib.addUser(t, "u2@example.com")
	u3 := lib.addUser(t, "u3@example.com")

	l1 := lib.lend(t, book.ID, u1.ID)
	l2 := lib.lend(t, book.ID, u2.ID)
	assert.Equal(t, 0, lib.units(t, book.ID))

	_, err := lib.loans.CreateLoan(ctx, ports.CreateLoanInput{BookID: book.ID, UserID: u3.ID})
	require.ErrorIs(t, err, domain.ErrBookUnavailable)

	_, err = lib.loans.ReturnLoan(ctx, l1.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, lib.units(t, book.ID))

	require.ErrorIs(t, lib.books.DeleteBook(ctx, book.ID), domain.ErrBookOnLoan)

	_, err = lib.loans.ReturnLoan(ctx, l2.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, lib.units(t, book.ID))

	require.NoError(t, lib.books.DeleteBook(ctx, book.ID))
}
