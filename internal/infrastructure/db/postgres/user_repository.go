package postgres

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/librarydesk/lending-api/internal/core/domain"
	"github.com/librarydesk/lending-api/internal/core/ports"
)

var _ ports.UserRepository = (*UserRepository)(nil)

type UserRepository struct {
	q querier
}

type userRow struct {
	ID    string `db:"id"`
	Name  string `db:"name"`
	Email string `db:"email"`
	Phone string `db:"phone"`
}

var userColumns = []interface{}{"id", "name", "email", "phone"}

func selectUsers() *goqu.SelectDataset {
	return dialect.From(tableUsers).Select(userColumns...).Prepared(true)
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := selectAll[userRow](ctx, r.q, selectUsers().Order(goqu.C("id").Asc()))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, domain.User(row))
	}
	return users, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, selectUsers().Where(goqu.C("id").Eq(id)))
}

// Lock reads the user with a row lock. Loan creation takes the same lock, so
// a delete cannot miss a loan inserted concurrently.
func (r *UserRepository) Lock(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, selectUsers().Where(goqu.C("id").Eq(id)).ForUpdate(exp.Wait))
}

func (r *UserRepository) findOne(ctx context.Context, ds *goqu.SelectDataset) (*domain.User, error) {
	row, err := selectOne[userRow](ctx, r.q, ds, domain.ErrUserNotFound)
	if err != nil {
		return nil, err
	}
	u := domain.User(*row)
	return &u, nil
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	ds := dialect.From(tableUsers).Where(goqu.C("email").Eq(email))
	if excludeID != "" {
		ds = ds.Where(goqu.C("id").Neq(excludeID))
	}
	return exists(ctx, r.q, ds)
}

func (r *UserRepository) Insert(ctx context.Context, u *domain.User) error {
	ds := dialect.Insert(tableUsers).Prepared(true).Rows(goqu.Record{
		"id":    u.ID,
		"name":  u.Name,
		"email": u.Email,
		"phone": u.Phone,
	})
	if _, err := exec(ctx, r.q, ds); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) Replace(ctx context.Context, u *domain.User) error {
	ds := dialect.Update(tableUsers).Prepared(true).
		Set(goqu.Record{"name": u.Name, "email": u.Email, "phone": u.Phone}).
		Where(goqu.C("id").Eq(u.ID))
	n, err := exec(ctx, r.q, ds)
	if err != nil {
		return fmt.Errorf("replace user: %w", err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	n, err := exec(ctx, r.q, dialect.Delete(tableUsers).Prepared(true).Where(goqu.C("id").Eq(id)))
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
