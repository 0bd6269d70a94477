package postgres

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/librarydesk/lending-api/internal/core/domain"
	"github.com/librarydesk/lending-api/internal/core/ports"
)

var _ ports.BookRepository = (*BookRepository)(nil)

type BookRepository struct {
	q querier
}

type bookRow struct {
	ID              string `db:"id"`
	Title           string `db:"title"`
	Author          string `db:"author"`
	ISBN            string `db:"isbn"`
	PublicationYear int    `db:"publication_year"`
	AvailableUnits  int    `db:"available_units"`
}

func (r bookRow) toDomain() domain.Book {
	return domain.Book(r)
}

var bookColumns = []interface{}{"id", "title", "author", "isbn", "publication_year", "available_units"}

func selectBooks() *goqu.SelectDataset {
	return dialect.From(tableBooks).Select(bookColumns...).Prepared(true)
}

func (r *BookRepository) List(ctx context.Context) ([]domain.Book, error) {
	rows, err := selectAll[bookRow](ctx, r.q, selectBooks().Order(goqu.C("id").Asc()))
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	books := make([]domain.Book, 0, len(rows))
	for _, row := range rows {
		books = append(books, row.toDomain())
	}
	return books, nil
}

func (r *BookRepository) FindByID(ctx context.Context, id string) (*domain.Book, error) {
	return r.findOne(ctx, selectBooks().Where(goqu.C("id").Eq(id)))
}

// Lock reads the book with a row lock held until the transaction ends.
func (r *BookRepository) Lock(ctx context.Context, id string) (*domain.Book, error) {
	return r.findOne(ctx, selectBooks().Where(goqu.C("id").Eq(id)).ForUpdate(exp.Wait))
}

func (r *BookRepository) findOne(ctx context.Context, ds *goqu.SelectDataset) (*domain.Book, error) {
	row, err := selectOne[bookRow](ctx, r.q, ds, domain.ErrBookNotFound)
	if err != nil {
		return nil, err
	}
	b := row.toDomain()
	return &b, nil
}

func (r *BookRepository) ExistsByISBN(ctx context.Context, isbn, excludeID string) (bool, error) {
	ds := dialect.From(tableBooks).Where(goqu.C("isbn").Eq(isbn))
	if excludeID != "" {
		ds = ds.Where(goqu.C("id").Neq(excludeID))
	}
	return exists(ctx, r.q, ds)
}

func (r *BookRepository) Insert(ctx context.Context, b *domain.Book) error {
	ds := dialect.Insert(tableBooks).Prepared(true).Rows(goqu.Record{
		"id":               b.ID,
		"title":            b.Title,
		"author":           b.Author,
		"isbn":             b.ISBN,
		"publication_year": b.PublicationYear,
		"available_units":  b.AvailableUnits,
	})
	if _, err := exec(ctx, r.q, ds); err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

func (r *BookRepository) Replace(ctx context.Context, b *domain.Book) error {
	ds := dialect.Update(tableBooks).Prepared(true).
		Set(goqu.Record{
			"title":            b.Title,
			"author":           b.Author,
			"isbn":             b.ISBN,
			"publication_year": b.PublicationYear,
			"available_units":  b.AvailableUnits,
		}).
		Where(goqu.C("id").Eq(b.ID))
	n, err := exec(ctx, r.q, ds)
	if err != nil {
		return fmt.Errorf("replace book: %w", err)
	}
	if n == 0 {
		return domain.ErrBookNotFound
	}
	return nil
}

func (r *BookRepository) Delete(ctx context.Context, id string) error {
	n, err := exec(ctx, r.q, dialect.Delete(tableBooks).Prepared(true).Where(goqu.C("id").Eq(id)))
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if n == 0 {
		return domain.ErrBookNotFound
	}
	return nil
}

// DecrementIfAvailable is a single UPDATE guarded by available_units > 0.
// Concurrent callers queue on the row lock and re-evaluate the guard.
func (r *BookRepository) DecrementIfAvailable(ctx context.Context, id string) (bool, error) {
	ds := dialect.Update(tableBooks).Prepared(true).
		Set(goqu.Record{"available_units": goqu.L("available_units - 1")}).
		Where(goqu.C("id").Eq(id), goqu.C("available_units").Gt(0))
	n, err := exec(ctx, r.q, ds)
	if err != nil {
		return false, fmt.Errorf("decrement book units: %w", err)
	}
	return n == 1, nil
}

func (r *BookRepository) Increment(ctx context.Context, id string) error {
	ds := dialect.Update(tableBooks).Prepared(true).
		Set(goqu.Record{"available_units": goqu.L("available_units + 1")}).
		Where(goqu.C("id").Eq(id))
	n, err := exec(ctx, r.q, ds)
	if err != nil {
		return fmt.Errorf("increment book units: %w", err)
	}
	if n == 0 {
		return domain.ErrBookNotFound
	}
	return nil
}
