package domain

import "time"

// LoanStatus is the derived lifecycle state of a loan.
type LoanStatus string

const (
	LoanOpen     LoanStatus = "open"
	LoanReturned LoanStatus = "returned"
)

// Loan links one copy of a book to a user. Book and user are referenced by
// identifier only; the ledger resolves them through their repositories.
type Loan struct {
	ID       string    `json:"id" bson:"_id"`
	BookID   string    `json:"bookId" bson:"book_id"`
	UserID   string    `json:"userId" bson:"user_id"`
	LoanedAt time.Time `json:"loanedAt" bson:"loaned_at"`
	// ReturnedAt is nil while the loan is open. Once set it never changes.
	ReturnedAt *time.Time `json:"returnedAt,omitempty" bson:"returned_at,omitempty"`
}

// IsOpen reports whether the loan still holds a copy of the book.
func (l Loan) IsOpen() bool {
	return l.ReturnedAt == nil
}

// Status returns the loan's state. Open is the only non-terminal state.
func (l Loan) Status() LoanStatus {
	if l.IsOpen() {
		return LoanOpen
	}
	return LoanReturned
}
