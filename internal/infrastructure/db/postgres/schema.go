package postgres

import (
	"context"
	"fmt"
)

const (
	tableBooks = "books"
	tableUsers = "users"
	tableLoans = "loans"

	constraintBooksISBN  = "books_isbn_key"
	constraintUsersEmail = "users_email_key"
	constraintLoansBook  = "loans_book_id_fkey"
	constraintLoansUser  = "loans_user_id_fkey"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id               TEXT PRIMARY KEY,
		title            TEXT NOT NULL,
		author           TEXT NOT NULL,
		isbn             TEXT NOT NULL,
		publication_year INTEGER NOT NULL CHECK (publication_year BETWEEN 1000 AND 2100),
		available_units  INTEGER NOT NULL CHECK (available_units >= 0),
		CONSTRAINT books_isbn_key UNIQUE (isbn)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id    TEXT PRIMARY KEY,
		name  TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL,
		CONSTRAINT users_email_key UNIQUE (email)
	)`,
	`CREATE TABLE IF NOT EXISTS loans (
		id          TEXT PRIMARY KEY,
		book_id     TEXT NOT NULL,
		user_id     TEXT NOT NULL,
		loaned_at   TIMESTAMPTZ NOT NULL,
		returned_at TIMESTAMPTZ,
		CONSTRAINT loans_book_id_fkey FOREIGN KEY (book_id) REFERENCES books (id) ON DELETE CASCADE,
		CONSTRAINT loans_user_id_fkey FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS loans_open_book_idx ON loans (book_id) WHERE returned_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS loans_user_idx ON loans (user_id)`,
}

// EnsureSchema creates the ledger tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
