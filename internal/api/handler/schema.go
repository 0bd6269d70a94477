package handler

import "time"

// --- Books ---

type bookRequest struct {
	// ID is optional on update; when present it must match the path id.
	ID              string `json:"id,omitempty"`
	Title           string `json:"title"           validate:"required,notblank"`
	Author          string `json:"author"          validate:"required,notblank"`
	ISBN            string `json:"isbn"            validate:"required,notblank"`
	PublicationYear int    `json:"publicationYear" validate:"min=1000,max=2100"`
	AvailableUnits  int    `json:"availableUnits"  validate:"min=0"`
}

type bookResponse struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	ISBN            string `json:"isbn"`
	PublicationYear int    `json:"publicationYear"`
	AvailableUnits  int    `json:"availableUnits"`
	IsAvailable     bool   `json:"isAvailable"`
}

// --- Users ---

type userRequest struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"  validate:"required,notblank"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required,notblank"`
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// --- Loans ---

type createLoanRequest struct {
	BookID string `json:"bookId" validate:"required"`
	UserID string `json:"userId" validate:"required"`
}

type loanResponse struct {
	ID         string     `json:"id"`
	BookID     string     `json:"bookId"`
	UserID     string     `json:"userId"`
	LoanedAt   time.Time  `json:"loanedAt"`
	ReturnedAt *time.Time `json:"returnedAt,omitempty"`
	Status     string     `json:"status"`
}

// errorResponse documents the envelope rendered by the API error handler.
type errorResponse struct {
	Error string `json:"error"`
}
