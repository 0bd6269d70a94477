package service

import (
	"context"

	"github.com/librarydesk/lending-api/internal/core/domain"
	"github.com/librarydesk/lending-api/internal/core/ports"
)

// Guard answers uniqueness and referential questions from inside the caller's
// transaction. It never opens one of its own, so a check and the write it
// gates always commit or roll back together.
type Guard struct {
	userPolicy domain.UserDeletePolicy
}

// NewGuard returns a Guard applying policy to user deletions. An unknown
// policy falls back to blocking on any loan.
func NewGuard(policy domain.UserDeletePolicy) *Guard {
	if !policy.Valid() {
		policy = domain.DeleteBlockedByAnyLoan
	}
	return &Guard{userPolicy: policy}
}

// ISBNExists reports whether another book already uses isbn.
func (g *Guard) ISBNExists(ctx context.Context, tx ports.Tx, isbn, excludingID string) (bool, error) {
	return tx.Books().ExistsByISBN(ctx, isbn, excludingID)
}

// EmailExists reports whether another user already uses email.
func (g *Guard) EmailExists(ctx context.Context, tx ports.Tx, email, excludingID string) (bool, error) {
	return tx.Users().ExistsByEmail(ctx, email, excludingID)
}

// BookHasOpenLoan reports whether the book is currently lent out.
func (g *Guard) BookHasOpenLoan(ctx context.Context, tx ports.Tx, bookID string) (bool, error) {
	return tx.Loans().HasOpenForBook(ctx, bookID)
}

// UserHasBlockingLoan reports whether a loan prevents deleting the user.
func (g *Guard) UserHasBlockingLoan(ctx context.Context, tx ports.Tx, userID string) (bool, error) {
	if g.userPolicy == domain.DeleteBlockedByOpenLoan {
		return tx.Loans().HasOpenForUser(ctx, userID)
	}
	return tx.Loans().HasAnyForUser(ctx, userID)
}

// Policy returns the user deletion policy in force.
func (g *Guard) Policy() domain.UserDeletePolicy {
	return g.userPolicy
}
