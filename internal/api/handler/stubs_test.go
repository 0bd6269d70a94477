package handler

import (
	"context"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/librarydesk/lending-api/internal/core/domain"
	"github.com/librarydesk/lending-api/internal/core/ports"
)

type stubBookService struct {
	listFn   func(ctx context.Context) ([]domain.Book, error)
	getFn    func(ctx context.Context, id string) (*domain.Book, error)
	createFn func(ctx context.Context, in ports.BookInput) (*domain.Book, error)
	updateFn func(ctx context.Context, id string, in ports.BookInput) (*domain.Book, error)
	deleteFn func(ctx context.Context, id string) error
}

func (s *stubBookService) ListBooks(ctx context.Context) ([]domain.Book, error) { return s.listFn(ctx) }
func (s *stubBookService) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	return s.getFn(ctx, id)
}
func (s *stubBookService) CreateBook(ctx context.Context, in ports.BookInput) (*domain.Book, error) {
	return s.createFn(ctx, in)
}
func (s *stubBookService) UpdateBook(ctx context.Context, id string, in ports.BookInput) (*domain.Book, error) {
	return s.updateFn(ctx, id, in)
}
func (s *stubBookService) DeleteBook(ctx context.Context, id string) error { return s.deleteFn(ctx, id) }

type stubUserService struct {
	listFn   func(ctx context.Context) ([]domain.User, error)
	getFn    func(ctx context.Context, id string) (*domain.User, error)
	createFn func(ctx context.Context, in ports.UserInput) (*domain.User, error)
	updateFn func(ctx context.Context, id string, in ports.UserInput) (*domain.User, error)
	deleteFn func(ctx context.Context, id string) error
}

func (s *stubUserService) ListUsers(ctx context.Context) ([]domain.User, error) { return s.listFn(ctx) }
func (s *stubUserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.getFn(ctx, id)
}
func (s *stubUserService) CreateUser(ctx context.Context, in ports.UserInput) (*domain.User, error) {
	return s.createFn(ctx, in)
}
func (s *stubUserService) UpdateUser(ctx context.Context, id string, in ports.UserInput) (*domain.User, error) {
	return s.updateFn(ctx, id, in)
}
func (s *stubUserService) DeleteUser(ctx context.Context, id string) error { return s.deleteFn(ctx, id) }

type stubLoanService struct {
	createFn     func(ctx context.Context, in ports.CreateLoanInput) (*ports.LoanResult, error)
	returnFn     func(ctx context.Context, id string) (*domain.Loan, error)
	getFn        func(ctx context.Context, id string) (*domain.Loan, error)
	listFn       func(ctx context.Context) ([]domain.Loan, error)
	listByUserFn func(ctx context.Context, userID string) ([]domain.Loan, error)
}

func (s *stubLoanService) CreateLoan(ctx context.Context, in ports.CreateLoanInput) (*ports.LoanResult, error) {
	return s.createFn(ctx, in)
}
func (s *stubLoanService) ReturnLoan(ctx context.Context, id string) (*domain.Loan, error) {
	return s.returnFn(ctx, id)
}
func (s *stubLoanService) GetLoan(ctx context.Context, id string) (*domain.Loan, error) {
	return s.getFn(ctx, id)
}
func (s *stubLoanService) ListLoans(ctx context.Context) ([]domain.Loan, error) { return s.listFn(ctx) }
func (s *stubLoanService) ListLoansByUser(ctx context.Context, userID string) ([]domain.Loan, error) {
	return s.listByUserFn(ctx, userID)
}

// newContext builds an echo context for method/path with an optional JSON
// body and path params given as name, value pairs.
func newContext(method, path, body string, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var names, values []string
	for i := 0; i+1 < len(params); i += 2 {
		names = append(names, params[i])
		values = append(values, params[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	return c, rec
}
