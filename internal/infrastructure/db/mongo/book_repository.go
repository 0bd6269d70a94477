package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/librarydesk/lending-api/internal/core/domain"
	"github.com/librarydesk/lending-api/internal/core/ports"
)

var _ ports.BookRepository = (*BookRepository)(nil)

type BookRepository struct {
	col      *mongo.Collection
	readOnly bool
}

type mongoBook struct {
	ID              string `bson:"_id"`
	Title           string `bson:"title"`
	Author          string `bson:"author"`
	ISBN            string `bson:"isbn"`
	PublicationYear int    `bson:"publication_year"`
	AvailableUnits  int    `bson:"available_units"`
	Revision        int64  `bson:"revision"`
}

func toMongoBook(b *domain.Book) mongoBook {
	return mongoBook{
		ID:              b.ID,
		Title:           b.Title,
		Author:          b.Author,
		ISBN:            b.ISBN,
		PublicationYear: b.PublicationYear,
		AvailableUnits:  b.AvailableUnits,
	}
}

func (m mongoBook) toDomain() *domain.Book {
	return &domain.Book{
		ID:              m.ID,
		Title:           m.Title,
		Author:          m.Author,
		ISBN:            m.ISBN,
		PublicationYear: m.PublicationYear,
		AvailableUnits:  m.AvailableUnits,
	}
}

func (r *BookRepository) List(ctx context.Context) ([]domain.Book, error) {
	cur, err := r.col.Find(ctx, bson.M{}, sortByID)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	var docs []mongoBook
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode books: %w", err)
	}
	books := make([]domain.Book, 0, len(docs))
	for _, d := range docs {
		books = append(books, *d.toDomain())
	}
	return books, nil
}

func (r *BookRepository) FindByID(ctx context.Context, id string) (*domain.Book, error) {
	var doc mongoBook
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrBookNotFound
		}
		return nil, fmt.Errorf("find book: %w", err)
	}
	return doc.toDomain(), nil
}

// Lock bumps the book's revision so that any concurrent transaction writing
// the same book conflicts with this one.
func (r *BookRepository) Lock(ctx context.Context, id string) (*domain.Book, error) {
	if err := writable(r.readOnly); err != nil {
		return nil, err
	}
	var doc mongoBook
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bumpRevision, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrBookNotFound
		}
		return nil, fmt.Errorf("lock book: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *BookRepository) ExistsByISBN(ctx context.Context, isbn, excludeID string) (bool, error) {
	filter := bson.M{"isbn": isbn}
	if excludeID != "" {
		filter["_id"] = bson.M{"$ne": excludeID}
	}
	n, err := r.col.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count books by isbn: %w", err)
	}
	return n > 0, nil
}

func (r *BookRepository) Insert(ctx context.Context, b *domain.Book) error {
	if err := writable(r.readOnly); err != nil {
		return err
	}
	if _, err := r.col.InsertOne(ctx, toMongoBook(b)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateISBN
		}
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

func (r *BookRepository) Replace(ctx context.Context, b *domain.Book) error {
	if err := writable(r.readOnly); err != nil {
		return err
	}
	update := bson.M{
		"$set": bson.M{
			"title":            b.Title,
			"author":           b.Author,
			"isbn":             b.ISBN,
			"publication_year": b.PublicationYear,
			"available_units":  b.AvailableUnits,
		},
		"$inc": bson.M{"revision": 1},
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": b.ID}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateISBN
		}
		return fmt.Errorf("replace book: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrBookNotFound
	}
	return nil
}

func (r *BookRepository) Delete(ctx context.Context, id string) error {
	if err := writable(r.readOnly); err != nil {
		return err
	}
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrBookNotFound
	}
	return nil
}

// DecrementIfAvailable takes one unit only while the stored counter is
// positive. The filter and the $inc are applied atomically by the server.
func (r *BookRepository) DecrementIfAvailable(ctx context.Context, id string) (bool, error) {
	if err := writable(r.readOnly); err != nil {
		return false, err
	}
	res, err := r.col.UpdateOne(ctx, availableBook(id), shiftUnits(-1))
	if err != nil {
		return false, fmt.Errorf("decrement book units: %w", err)
	}
	return applied(res), nil
}

func (r *BookRepository) Increment(ctx context.Context, id string) error {
	if err := writable(r.readOnly); err != nil {
		return err
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, shiftUnits(1))
	if err != nil {
		return fmt.Errorf("increment book units: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrBookNotFound
	}
	return nil
}
