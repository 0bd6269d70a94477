package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/librarydesk/lending-api/internal/core/domain"
	"github.com/librarydesk/lending-api/internal/core/ports"
)

func TestUserHandler_Create_Success(t *testing.T) {
	stub := &stubUserService{
		createFn: func(_ context.Context, in ports.UserInput) (*domain.User, error) {
			return &domain.User{ID: "u1", Name: in.Name, Email: in.Email, Phone: in.Phone}, nil
		},
	}
	c, rec := newContext(http.MethodPost, "/users", `{"name":"Ada","email":"ada@example.com","phone":"555-0100"}`)

	if err := NewUserHandler(stub).Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if loc := rec.Header().Get(echo.HeaderLocation); loc != "/users/u1" {
		t.Fatalf("unexpected Location %q", loc)
	}

	var resp userResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Email != "ada@example.com" || resp.Phone != "555-0100" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestUserHandler_Create_InvalidEmail(t *testing.T) {
	stub := &stubUserService{
		createFn: func(context.Context, ports.UserInput) (*domain.User, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	c, _ := newContext(http.MethodPost, "/users", `{"name":"Ada","email":"nope","phone":"555-0100"}`)

	err := NewUserHandler(stub).Create(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 HTTPError, got %v", err)
	}
	if he.Message != "email must be a valid email" {
		t.Fatalf("unexpected message %v", he.Message)
	}
}

func TestUserHandler_Create_BlankName(t *testing.T) {
	stub := &stubUserService{
		createFn: func(context.Context, ports.UserInput) (*domain.User, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	c, _ := newContext(http.MethodPost, "/users", `{"name":"   ","email":"ada@example.com","phone":"555-0100"}`)

	err := NewUserHandler(stub).Create(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 HTTPError, got %v", err)
	}
	if he.Message != "name must not be blank" {
		t.Fatalf("unexpected message %v", he.Message)
	}
}

func TestUserHandler_Update_IDMismatch(t *testing.T) {
	stub := &stubUserService{
		updateFn: func(context.Context, string, ports.UserInput) (*domain.User, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	c, _ := newContext(http.MethodPut, "/users/u1", `{"id":"u2","name":"Ada","email":"ada@example.com","phone":"1"}`, "id", "u1")

	err := NewUserHandler(stub).Update(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 HTTPError, got %v", err)
	}
}

func TestUserHandler_Delete_Blocked(t *testing.T) {
	stub := &stubUserService{
		deleteFn: func(context.Context, string) error { return domain.ErrUserHasLoans },
	}
	c, _ := newContext(http.MethodDelete, "/users/u1", "", "id", "u1")

	if err := NewUserHandler(stub).Delete(c); !errors.Is(err, domain.ErrUserHasLoans) {
		t.Fatalf("expected ErrUserHasLoans, got %v", err)
	}
}

func TestUserHandler_List(t *testing.T) {
	stub := &stubUserService{
		listFn: func(context.Context) ([]domain.User, error) {
			return []domain.User{{ID: "u1"}, {ID: "u2"}}, nil
		},
	}
	c, rec := newContext(http.MethodGet, "/users", "")

	if err := NewUserHandler(stub).List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp []userResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || len(resp) != 2 {
		t.Fatalf("unexpected payload %s (%v)", rec.Body.String(), err)
	}
}
