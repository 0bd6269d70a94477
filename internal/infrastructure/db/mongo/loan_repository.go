package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/librarydesk/lending-api/internal/core/domain"
	"github.com/librarydesk/lending-api/internal/core/ports"
)

var _ ports.LoanRepository = (*LoanRepository)(nil)

type LoanRepository struct {
	col      *mongo.Collection
	readOnly bool
}

type mongoLoan struct {
	ID         string     `bson:"_id"`
	BookID     string     `bson:"book_id"`
	UserID     string     `bson:"user_id"`
	LoanedAt   time.Time  `bson:"loaned_at"`
	ReturnedAt *time.Time `bson:"returned_at,omitempty"`
}

func (m mongoLoan) toDomain() *domain.Loan {
	l := &domain.Loan{
		ID:       m.ID,
		BookID:   m.BookID,
		UserID:   m.UserID,
		LoanedAt: m.LoanedAt.UTC(),
	}
	if m.ReturnedAt != nil {
		at := m.ReturnedAt.UTC()
		l.ReturnedAt = &at
	}
	return l
}

func (r *LoanRepository) find(ctx context.Context, filter bson.M) ([]domain.Loan, error) {
	cur, err := r.col.Find(ctx, filter, sortByID)
	if err != nil {
		return nil, fmt.Errorf("find loans: %w", err)
	}
	var docs []mongoLoan
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode loans: %w", err)
	}
	loans := make([]domain.Loan, 0, len(docs))
	for _, d := range docs {
		loans = append(loans, *d.toDomain())
	}
	return loans, nil
}

func (r *LoanRepository) exists(ctx context.Context, filter bson.M) (bool, error) {
	n, err := r.col.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count loans: %w", err)
	}
	return n > 0, nil
}

func (r *LoanRepository) List(ctx context.Context) ([]domain.Loan, error) {
	return r.find(ctx, bson.M{})
}

func (r *LoanRepository) ListByUser(ctx context.Context, userID string) ([]domain.Loan, error) {
	return r.find(ctx, bson.M{"user_id": userID})
}

func (r *LoanRepository) FindByID(ctx context.Context, id string) (*domain.Loan, error) {
	var doc mongoLoan
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, fmt.Errorf("find loan: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *LoanRepository) Insert(ctx context.Context, l *domain.Loan) error {
	if err := writable(r.readOnly); err != nil {
		return err
	}
	doc := mongoLoan{ID: l.ID, BookID: l.BookID, UserID: l.UserID, LoanedAt: l.LoanedAt, ReturnedAt: l.ReturnedAt}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert loan: %w", err)
	}
	return nil
}

// MarkReturned sets returned_at only on a loan that is still open.
func (r *LoanRepository) MarkReturned(ctx context.Context, id string, at time.Time) (bool, error) {
	if err := writable(r.readOnly); err != nil {
		return false, err
	}
	res, err := r.col.UpdateOne(ctx, openLoan(id), markReturned(at))
	if err != nil {
		return false, fmt.Errorf("mark loan returned: %w", err)
	}
	return applied(res), nil
}

func (r *LoanRepository) HasOpenForBook(ctx context.Context, bookID string) (bool, error) {
	return r.exists(ctx, openLoansBy("book_id", bookID))
}

func (r *LoanRepository) HasOpenForUser(ctx context.Context, userID string) (bool, error) {
	return r.exists(ctx, openLoansBy("user_id", userID))
}

func (r *LoanRepository) HasAnyForUser(ctx context.Context, userID string) (bool, error) {
	return r.exists(ctx, bson.M{"user_id": userID})
}

func (r *LoanRepository) DeleteByBook(ctx context.Context, bookID string) error {
	if err := writable(r.readOnly); err != nil {
		return err
	}
	if _, err := r.col.DeleteMany(ctx, bson.M{"book_id": bookID}); err != nil {
		return fmt.Errorf("delete loans by book: %w", err)
	}
	return nil
}

func (r *LoanRepository) DeleteByUser(ctx context.Context, userID string) error {
	if err := writable(r.readOnly); err != nil {
		return err
	}
	if _, err := r.col.DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("delete loans by user: %w", err)
	}
	return nil
}
