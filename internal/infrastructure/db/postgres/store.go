package postgres

import (
	"context"
	"errors"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // registers the dialect
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/librarydesk/lending-api/internal/core/domain"
	"github.com/librarydesk/lending-api/internal/core/ports"
)

const dialectPostgres = "postgres"

var dialect = goqu.Dialect(dialectPostgres)

var _ ports.UnitOfWork = (*Store)(nil)

// Store runs ledger transactions on PostgreSQL at READ COMMITTED. Counter
// changes are single conditional UPDATE statements and Lock takes a row lock
// with SELECT ... FOR UPDATE, which is enough to keep the invariants without
// serialisable isolation.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &txn{q: tx})
	})
}

// ReadOnly runs fn in a READ ONLY transaction.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		return fn(ctx, &txn{q: tx})
	})
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// querier is the subset of pgx.Tx the repositories use.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txn struct {
	q querier
}

func (t *txn) Books() ports.BookRepository { return &BookRepository{q: t.q} }
func (t *txn) Users() ports.UserRepository { return &UserRepository{q: t.q} }
func (t *txn) Loans() ports.LoanRepository { return &LoanRepository{q: t.q} }

// sqlBuilder is satisfied by every goqu dataset.
type sqlBuilder interface {
	ToSQL() (string, []interface{}, error)
}

func exec(ctx context.Context, q querier, b sqlBuilder) (int64, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return 0, err
	}
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}

func selectAll[T any](ctx context.Context, q querier, b sqlBuilder) ([]T, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[T])
}

// selectOne returns notFound when the query yields no row.
func selectOne[T any](ctx context.Context, q querier, b sqlBuilder, notFound error) (*T, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[T])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound
	}
	if err != nil {
		return nil, mapError(err)
	}
	return row, nil
}

func exists(ctx context.Context, q querier, ds *goqu.SelectDataset) (bool, error) {
	query, args, err := ds.Select(goqu.L("1")).Limit(1).Prepared(true).ToSQL()
	if err != nil {
		return false, err
	}
	var one int
	err = q.QueryRow(ctx, query, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapError(err)
	}
	return true, nil
}

// mapError translates constraint violations into domain errors.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505": // unique_violation
		switch pgErr.ConstraintName {
		case constraintBooksISBN:
			return domain.ErrDuplicateISBN
		case constraintUsersEmail:
			return domain.ErrDuplicateEmail
		}
	case "23503": // foreign_key_violation
		switch pgErr.ConstraintName {
		case constraintLoansBook:
			return domain.ErrBookNotFound
		case constraintLoansUser:
			return domain.ErrUserNotFound
		}
	}
	return err
}
