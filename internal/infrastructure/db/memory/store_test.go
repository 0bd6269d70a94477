package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarydesk/lending-api/internal/core/domain"
	"github.com/librarydesk/lending-api/internal/core/ports"
)

func seedBook(t *testing.T, s *Store, id, isbn string, units int) {
	t.Helper()
	err := s.Do(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		return tx.Books().Insert(ctx, &domain.Book{ID: id, Title: "t", Author: "a", ISBN: isbn, PublicationYear: 2000, AvailableUnits: units})
	})
	require.NoError(t, err)
}

func TestStore_Do_RollsBackOnError(t *testing.T) {
	s := NewStore()
	seedBook(t, s, "b1", "isbn-1", 1)

	boom := errors.New("boom")
	err := s.Do(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		ok, err := tx.Books().DecrementIfAvailable(ctx, "b1")
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_ = s.ReadOnly(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		b, err := tx.Books().FindByID(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, 1, b.AvailableUnits)
		return nil
	})
}

func TestStore_ReadOnly_RejectsWrites(t *testing.T) {
	s := NewStore()

	err := s.ReadOnly(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		return tx.Books().Insert(ctx, &domain.Book{ID: "b1", ISBN: "isbn-1"})
	})
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestStore_Do_CancelledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Do(ctx, func(context.Context, ports.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestBookRepo_DecrementStopsAtZero(t *testing.T) {
	s := NewStore()
	seedBook(t, s, "b1", "isbn-1", 1)

	err := s.Do(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		first, err := tx.Books().DecrementIfAvailable(ctx, "b1")
		require.NoError(t, err)
		second, err := tx.Books().DecrementIfAvailable(ctx, "b1")
		require.NoError(t, err)
		assert.True(t, first)
		assert.False(t, second)
		return nil
	})
	require.NoError(t, err)
}

func TestBookRepo_UniqueISBN(t *testing.T) {
	s := NewStore()
	seedBook(t, s, "b1", "isbn-1", 1)
	seedBook(t, s, "b2", "isbn-2", 1)

	err := s.Do(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		return tx.Books().Insert(ctx, &domain.Book{ID: "b3", ISBN: "isbn-1"})
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateISBN)

	err = s.Do(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		return tx.Books().Replace(ctx, &domain.Book{ID: "b2", ISBN: "isbn-1"})
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateISBN)

	err = s.Do(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		exists, err := tx.Books().ExistsByISBN(ctx, "isbn-1", "b1")
		assert.False(t, exists)
		return err
	})
	require.NoError(t, err)
}

func TestUserRepo_UniqueEmail(t *testing.T) {
	s := NewStore()
	err := s.Do(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		if err := tx.Users().Insert(ctx, &domain.User{ID: "u1", Email: "a@example.com"}); err != nil {
			return err
		}
		return tx.Users().Insert(ctx, &domain.User{ID: "u2", Email: "a@example.com"})
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)

	_ = s.ReadOnly(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		users, err := tx.Users().List(ctx)
		require.NoError(t, err)
		assert.Empty(t, users)
		return nil
	})
}

func TestLoanRepo_MarkReturnedOnce(t *testing.T) {
	s := NewStore()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	err := s.Do(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		require.NoError(t, tx.Loans().Insert(ctx, &domain.Loan{ID: "l1", BookID: "b1", UserID: "u1", LoanedAt: at}))

		first, err := tx.Loans().MarkReturned(ctx, "l1", at.Add(time.Hour))
		require.NoError(t, err)
		second, err := tx.Loans().MarkReturned(ctx, "l1", at.Add(2*time.Hour))
		require.NoError(t, err)
		assert.True(t, first)
		assert.False(t, second)

		l, err := tx.Loans().FindByID(ctx, "l1")
		require.NoError(t, err)
		require.NotNil(t, l.ReturnedAt)
		assert.Equal(t, at.Add(time.Hour), *l.ReturnedAt)
		return nil
	})
	require.NoError(t, err)
}

func TestLoanRepo_Queries(t *testing.T) {
	s := NewStore()
	at := time.Now().UTC()
	returned := at.Add(time.Minute)

	err := s.Do(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		loans := tx.Loans()
		require.NoError(t, loans.Insert(ctx, &domain.Loan{ID: "l1", BookID: "b1", UserID: "u1", LoanedAt: at}))
		require.NoError(t, loans.Insert(ctx, &domain.Loan{ID: "l2", BookID: "b2", UserID: "u1", LoanedAt: at, ReturnedAt: &returned}))
		require.NoError(t, loans.Insert(ctx, &domain.Loan{ID: "l3", BookID: "b2", UserID: "u2", LoanedAt: at, ReturnedAt: &returned}))

		open, _ := loans.HasOpenForBook(ctx, "b1")
		assert.True(t, open)
		open, _ = loans.HasOpenForBook(ctx, "b2")
		assert.False(t, open)
		open, _ = loans.HasOpenForUser(ctx, "u2")
		assert.False(t, open)
		anyLoan, _ := loans.HasAnyForUser(ctx, "u2")
		assert.True(t, anyLoan)

		byUser, _ := loans.ListByUser(ctx, "u1")
		assert.Len(t, byUser, 2)

		require.NoError(t, loans.DeleteByBook(ctx, "b2"))
		all, _ := loans.List(ctx)
		require.Len(t, all, 1)
		assert.Equal(t, "l1", all[0].ID)

		require.NoError(t, loans.DeleteByUser(ctx, "u1"))
		all, _ = loans.List(ctx)
		assert.Empty(t, all)
		return nil
	})
	require.NoError(t, err)
}
