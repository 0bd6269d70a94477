package handler

import (
	"github.com/librarydesk/lending-api/internal/core/domain"
	"github.com/librarydesk/lending-api/internal/core/ports"
)

// --- Request → Service input ---

func toBookInput(req bookRequest) ports.BookInput {
	return ports.BookInput{
		Title:           req.Title,
		Author:          req.Author,
		ISBN:            req.ISBN,
		PublicationYear: req.PublicationYear,
		AvailableUnits:  req.AvailableUnits,
	}
}

func toUserInput(req userRequest) ports.UserInput {
	return ports.UserInput{Name: req.Name, Email: req.Email, Phone: req.Phone}
}

// --- Domain → Response ---

func toBookResponse(b domain.Book) bookResponse {
	return bookResponse{
		ID:              b.ID,
		Title:           b.Title,
		Author:          b.Author,
		ISBN:            b.ISBN,
		PublicationYear: b.PublicationYear,
		AvailableUnits:  b.AvailableUnits,
		IsAvailable:     b.IsAvailable(),
	}
}

func toBookResponses(books []domain.Book) []bookResponse {
	out := make([]bookResponse, 0, len(books))
	for _, b := range books {
		out = append(out, toBookResponse(b))
	}
	return out
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone}
}

func toUserResponses(users []domain.User) []userResponse {
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out
}

func toLoanResponse(l domain.Loan) loanResponse {
	return loanResponse{
		ID:         l.ID,
		BookID:     l.BookID,
		UserID:     l.UserID,
		LoanedAt:   l.LoanedAt,
		ReturnedAt: l.ReturnedAt,
		Status:     string(l.Status()),
	}
}

func toLoanResponses(loans []domain.Loan) []loanResponse {
	out := make([]loanResponse, 0, len(loans))
	for _, l := range loans {
		out = append(out, toLoanResponse(l))
	}
	return out
}
