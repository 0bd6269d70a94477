package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/librarydesk/lending-api/internal/core/domain"
	"github.com/librarydesk/lending-api/internal/core/ports"
	"github.com/librarydesk/lending-api/internal/infrastructure/db/memory"
)

// ---------------------------------------------------------------------------
// Fixtures shared by the service tests. They run against the in-memory store
// so the transaction boundaries are real.
// ---------------------------------------------------------------------------

var discardLogger = zerolog.Nop()

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var refTime = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

type library struct {
	store *memory.Store
	books *BookService
	users *UserService
	loans *LoanService
}

func newLibrary(t *testing.T, policy domain.UserDeletePolicy, opts ...LoanOption) *library {
	t.Helper()
	store := memory.NewStore()
	guard := NewGuard(policy)
	opts = append([]LoanOption{WithClock(fixedClock{refTime})}, opts...)
	return &library{
		store: store,
		books: NewBookService(store, guard, discardLogger),
		users: NewUserService(store, guard, discardLogger),
		loans: NewLoanService(store, discardLogger, opts...),
	}
}

func (l *library) addBook(t *testing.T, isbn string, units int) *domain.Book {
	t.Helper()
	b, err := l.books.CreateBook(context.Background(), ports.BookInput{
		Title:           "The Go Programming Language",
		Author:          "Donovan & Kernighan",
		ISBN:            isbn,
		PublicationYear: 2015,
		AvailableUnits:  units,
	})
	require.NoError(t, err)
	return b
}

func (l *library) addUser(t *testing.T, email string) *domain.User {
	t.Helper()
	u, err := l.users.CreateUser(context.Background(), ports.UserInput{
		Name:  "Ada Lovelace",
		Email: email,
		Phone: "+44 20 7946 0000",
	})
	require.NoError(t, err)
	return u
}

func (l *library) lend(t *testing.T, bookID, userID string) *domain.Loan {
	t.Helper()
	res, err := l.loans.CreateLoan(context.Background(), ports.CreateLoanInput{BookID: bookID, UserID: userID})
	require.NoError(t, err)
	return &res.Loan
}

func (l *library) units(t *testing.T, bookID string) int {
	t.Helper()
	b, err := l.books.GetBook(context.Background(), bookID)
	require.NoError(t, err)
	return b.AvailableUnits
}

// stubIdempotency is an in-memory ports.IdempotencyStore with the same
// claim semantics as the Redis adapter. claimDelay widens the window between
// concurrent claims.
type stubIdempotency struct {
	mu         sync.Mutex
	keys       map[string]string
	claimErr   error
	claimDelay time.Duration
	released   int
}

const stubPending = "pending"

func newStubIdempotency() *stubIdempotency {
	return &stubIdempotency{keys: make(map[string]string)}
}

func (s *stubIdempotency) Claim(_ context.Context, key string) (string, bool, error) {
	time.Sleep(s.claimDelay)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimErr != nil {
		return "", false, s.claimErr
	}
	id, ok := s.keys[key]
	if !ok {
		s.keys[key] = stubPending
		return "", true, nil
	}
	if id == stubPending {
		return "", false, nil
	}
	return id, false, nil
}

func (s *stubIdempotency) Complete(_ context.Context, key, loanID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = loanID
	return nil
}

func (s *stubIdempotency) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	s.released++
	return nil
}

// countingMetrics records LedgerMetrics calls.
type countingMetrics struct {
	mu       sync.Mutex
	created  int
	returned int
	replays  int
	rejected map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{rejected: make(map[string]int)}
}

func (m *countingMetrics) LoanCreated()  { m.mu.Lock(); m.created++; m.mu.Unlock() }
func (m *countingMetrics) LoanReturned() { m.mu.Lock(); m.returned++; m.mu.Unlock() }
func (m *countingMetrics) IdempotentReplay() {
	m.mu.Lock()
	m.replays++
	m.mu.Unlock()
}
func (m *countingMetrics) LoanRejected(reason string) {
	m.mu.Lock()
	m.rejected[reason]++
	m.mu.Unlock()
}
