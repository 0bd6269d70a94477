// Package memory provides an in-memory implementation of the transactional
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/librarydesk/lending-api/internal/core/domain"
	"github.com/librarydesk/lending-api/internal/core/ports"
)

// Compile-time contract assertions.
var (
	_ ports.UnitOfWork     = (*Store)(nil)
	_ ports.BookRepository = (*bookRepo)(nil)
	_ ports.UserRepository = (*userRepo)(nil)
	_ ports.LoanRepository = (*loanRepo)(nil)
)

// ErrReadOnly is returned by writes attempted inside ReadOnly.
var ErrReadOnly = errors.New("memory store: write in read-only transaction")

type state struct {
	books map[string]domain.Book
	users map[string]domain.User
	loans map[string]domain.Loan
}

func newState() state {
	return state{
		books: make(map[string]domain.Book),
		users: make(map[string]domain.User),
		loans: make(map[string]domain.Loan),
	}
}

func (s state) clone() state {
	cloned := newState()
	for k, v := range s.books {
		cloned.books[k] = v
	}
	for k, v := range s.users {
		cloned.users[k] = v
	}
	for k, v := range s.loans {
		cloned.loans[k] = v
	}
	return cloned
}

// Store serialises transactions with a single lock. A transaction works on a
// clone of the state which replaces the live state only when fn succeeds.
type Store struct {
	mu    sync.RWMutex
	state state
}

func NewStore() *Store {
	return &Store{state: newState()}
}

// Do runs fn in a serialisable transaction.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	t := &txn{state: s.state.clone()}
	if err := fn(ctx, t); err != nil {
		return err
	}
	s.state = t.state
	return nil
}

// ReadOnly runs fn against the live state under a shared lock.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, &txn{state: s.state, readOnly: true})
}

// Ping always succeeds; it lets the store back a readiness check.
func (s *Store) Ping(context.Context) error { return nil }

type txn struct {
	state    state
	readOnly bool
}

func (t *txn) Books() ports.BookRepository { return &bookRepo{t} }
func (t *txn) Users() ports.UserRepository { return &userRepo{t} }
func (t *txn) Loans() ports.LoanRepository { return &loanRepo{t} }

func (t *txn) writable() error {
	if t.readOnly {
		return ErrReadOnly
	}
	return nil
}

// --- books ---

type bookRepo struct{ t *txn }

func (r *bookRepo) List(context.Context) ([]domain.Book, error) {
	out := make([]domain.Book, 0, len(r.t.state.books))
	for _, b := range r.t.state.books {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *bookRepo) FindByID(_ context.Context, id string) (*domain.Book, error) {
	b, ok := r.t.state.books[id]
	if !ok {
		return nil, domain.ErrBookNotFound
	}
	return &b, nil
}

// Lock is FindByID: the store lock already serialises every transaction.
func (r *bookRepo) Lock(ctx context.Context, id string) (*domain.Book, error) {
	return r.FindByID(ctx, id)
}

func (r *bookRepo) ExistsByISBN(_ context.Context, isbn, excludeID string) (bool, error) {
	for id, b := range r.t.state.books {
		if b.ISBN == isbn && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *bookRepo) Insert(ctx context.Context, b *domain.Book) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if dup, _ := r.ExistsByISBN(ctx, b.ISBN, ""); dup {
		return domain.ErrDuplicateISBN
	}
	r.t.state.books[b.ID] = *b
	return nil
}

func (r *bookRepo) Replace(ctx context.Context, b *domain.Book) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if _, ok := r.t.state.books[b.ID]; !ok {
		return domain.ErrBookNotFound
	}
	if dup, _ := r.ExistsByISBN(ctx, b.ISBN, b.ID); dup {
		return domain.ErrDuplicateISBN
	}
	r.t.state.books[b.ID] = *b
	return nil
}

func (r *bookRepo) Delete(_ context.Context, id string) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if _, ok := r.t.state.books[id]; !ok {
		return domain.ErrBookNotFound
	}
	delete(r.t.state.books, id)
	return nil
}

func (r *bookRepo) DecrementIfAvailable(_ context.Context, id string) (bool, error) {
	if err := r.t.writable(); err != nil {
		return false, err
	}
	b, ok := r.t.state.books[id]
	if !ok || b.AvailableUnits <= 0 {
		return false, nil
	}
	b.AvailableUnits--
	r.t.state.books[id] = b
	return true, nil
}

func (r *bookRepo) Increment(_ context.Context, id string) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	b, ok := r.t.state.books[id]
	if !ok {
		return domain.ErrBookNotFound
	}
	b.AvailableUnits++
	r.t.state.books[id] = b
	return nil
}

// --- users ---

type userRepo struct{ t *txn }

func (r *userRepo) List(context.Context) ([]domain.User, error) {
	out := make([]domain.User, 0, len(r.t.state.users))
	for _, u := range r.t.state.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *userRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := r.t.state.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (r *userRepo) Lock(ctx context.Context, id string) (*domain.User, error) {
	return r.FindByID(ctx, id)
}

func (r *userRepo) ExistsByEmail(_ context.Context, email, excludeID string) (bool, error) {
	for id, u := range r.t.state.users {
		if u.Email == email && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *userRepo) Insert(ctx context.Context, u *domain.User) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if dup, _ := r.ExistsByEmail(ctx, u.Email, ""); dup {
		return domain.ErrDuplicateEmail
	}
	r.t.state.users[u.ID] = *u
	return nil
}

func (r *userRepo) Replace(ctx context.Context, u *domain.User) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if _, ok := r.t.state.users[u.ID]; !ok {
		return domain.ErrUserNotFound
	}
	if dup, _ := r.ExistsByEmail(ctx, u.Email, u.ID); dup {
		return domain.ErrDuplicateEmail
	}
	r.t.state.users[u.ID] = *u
	return nil
}

func (r *userRepo) Delete(_ context.Context, id string) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if _, ok := r.t.state.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.t.state.users, id)
	return nil
}

// --- loans ---

type loanRepo struct{ t *txn }

func (r *loanRepo) List(context.Context) ([]domain.Loan, error) {
	return r.filter(func(domain.Loan) bool { return true }), nil
}

func (r *loanRepo) ListByUser(_ context.Context, userID string) ([]domain.Loan, error) {
	return r.filter(func(l domain.Loan) bool { return l.UserID == userID }), nil
}

func (r *loanRepo) FindByID(_ context.Context, id string) (*domain.Loan, error) {
	l, ok := r.t.state.loans[id]
	if !ok {
		return nil, domain.ErrLoanNotFound
	}
	return &l, nil
}

func (r *loanRepo) Insert(_ context.Context, l *domain.Loan) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	r.t.state.loans[l.ID] = *l
	return nil
}

func (r *loanRepo) MarkReturned(_ context.Context, id string, at time.Time) (bool, error) {
	if err := r.t.writable(); err != nil {
		return false, err
	}
	l, ok := r.t.state.loans[id]
	if !ok || !l.IsOpen() {
		return false, nil
	}
	returned := at
	l.ReturnedAt = &returned
	r.t.state.loans[id] = l
	return true, nil
}

func (r *loanRepo) HasOpenForBook(_ context.Context, bookID string) (bool, error) {
	return r.exists(func(l domain.Loan) bool { return l.BookID == bookID && l.IsOpen() }), nil
}

func (r *loanRepo) HasOpenForUser(_ context.Context, userID string) (bool, error) {
	return r.exists(func(l domain.Loan) bool { return l.UserID == userID && l.IsOpen() }), nil
}

func (r *loanRepo) HasAnyForUser(_ context.Context, userID string) (bool, error) {
	return r.exists(func(l domain.Loan) bool { return l.UserID == userID }), nil
}

func (r *loanRepo) DeleteByBook(_ context.Context, bookID string) error {
	return r.deleteWhere(func(l domain.Loan) bool { return l.BookID == bookID })
}

func (r *loanRepo) DeleteByUser(_ context.Context, userID string) error {
	return r.deleteWhere(func(l domain.Loan) bool { return l.UserID == userID })
}

func (r *loanRepo) filter(keep func(domain.Loan) bool) []domain.Loan {
	out := make([]domain.Loan, 0)
	for _, l := range r.t.state.loans {
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *loanRepo) exists(match func(domain.Loan) bool) bool {
	for _, l := range r.t.state.loans {
		if match(l) {
			return true
		}
	}
	return false
}

func (r *loanRepo) deleteWhere(match func(domain.Loan) bool) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	for id, l := range r.t.state.loans {
		if match(l) {
			delete(r.t.state.loans, id)
		}
	}
	return nil
}
