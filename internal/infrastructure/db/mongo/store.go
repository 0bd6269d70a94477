package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/librarydesk/lending-api/internal/core/ports"
)

const (
	collectionBooks = "books"
	collectionUsers = "users"
	collectionLoans = "loans"
)

// ErrReadOnly is returned by writes attempted inside ReadOnly.
var ErrReadOnly = errors.New("mongo store: write in read-only transaction")

var _ ports.UnitOfWork = (*Store)(nil)

// Store runs ledger transactions as MongoDB multi-document transactions.
//
// Every write that another transaction's decision depends on touches the same
// document the other transaction touches (the conditional decrement, or the
// revision bump done by Lock). The server then aborts one of the two with a
// write conflict and the driver retries it against the committed state.
type Store struct {
	client *mongo.Client
	books  *mongo.Collection
	users  *mongo.Collection
	loans  *mongo.Collection
}

func NewStore(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{
		client: client,
		books:  db.Collection(collectionBooks),
		users:  db.Collection(collectionUsers),
		loans:  db.Collection(collectionLoans),
	}
}

// Do runs fn inside a session transaction with majority read and write
// concerns. Transient transaction errors are retried by the driver.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("mongo start session: %w", err)
	}
	defer sess.EndSession(ctx)

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority()).
		SetReadPreference(readpref.Primary())

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, &txn{store: s})
	}, txOpts)
	return err
}

// ReadOnly runs fn outside a transaction. Writes fail with ErrReadOnly.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	return fn(ctx, &txn{store: s, readOnly: true})
}

// Ping checks that the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// EnsureIndexes creates the unique and lookup indexes the repositories rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := s.books.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "isbn", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("books indexes: %w", err)
	}

	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}

	if _, err := s.loans.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "book_id", Value: 1}, {Key: "returned_at", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("loans indexes: %w", err)
	}
	return nil
}

type txn struct {
	store    *Store
	readOnly bool
}

func (t *txn) Books() ports.BookRepository { return &BookRepository{col: t.store.books, readOnly: t.readOnly} }
func (t *txn) Users() ports.UserRepository { return &UserRepository{col: t.store.users, readOnly: t.readOnly} }
func (t *txn) Loans() ports.LoanRepository { return &LoanRepository{col: t.store.loans, readOnly: t.readOnly} }

func writable(readOnly bool) error {
	if readOnly {
		return ErrReadOnly
	}
	return nil
}

var sortByID = options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

// bumpRevision is the update Lock applies so that concurrent transactions
// reading the same document conflict on write.
var bumpRevision = bson.M{"$inc": bson.M{"revision": 1}}
