package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/librarydesk/lending-api/internal/core/ports"
)

// HeaderIdempotencyKey lets a client retry POST /loans without lending twice.
const HeaderIdempotencyKey = "Idempotency-Key"

// LoanHandler handles HTTP requests for the lending ledger.
type LoanHandler struct {
	service ports.LoanService
}

func NewLoanHandler(service ports.LoanService) *LoanHandler {
	return &LoanHandler{service: service}
}

// List handles GET /loans.
//
// @Summary      List loans
// @Tags         loans
// @Produce      json
// @Success      200  {array}   loanResponse
// @Failure      500  {object}  errorResponse
// @Router       /loans [get]
func (h *LoanHandler) List(c echo.Context) error {
	loans, err := h.service.ListLoans(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toLoanResponses(loans))
}

// ListByUser handles GET /loans/user/:userId. An unknown user has no loans.
//
// @Summary      List the loans of a user
// @Tags         loans
// @Produce      json
// @Param        userId  path      string  true  "User id"
// @Success      200     {array}   loanResponse
// @Failure      500     {object}  errorResponse
// @Router       /loans/user/{userId} [get]
func (h *LoanHandler) ListByUser(c echo.Context) error {
	loans, err := h.service.ListLoansByUser(c.Request().Context(), c.Param("userId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toLoanResponses(loans))
}

// Get handles GET /loans/:id.
//
// @Summary      Get a loan
// @Tags         loans
// @Produce      json
// @Param        id   path      string  true  "Loan id"
// @Success      200  {object}  loanResponse
// @Failure      404  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /loans/{id} [get]
func (h *LoanHandler) Get(c echo.Context) error {
	loan, err := h.service.GetLoan(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toLoanResponse(*loan))
}

// Create handles POST /loans. A replayed Idempotency-Key answers 200 with
// the loan the first request created.
//
// @Summary      Lend a book to a user
// @Tags         loans
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header    string             false  "Idempotency key to prevent duplicate loans"
// @Param        body             body      createLoanRequest  true   "Book and user"
// @Success      200              {object}  loanResponse
// @Success      201              {object}  loanResponse
// @Header       201              {string}  Location  "/loans/{id}"
// @Failure      400              {object}  errorResponse
// @Failure      404              {object}  errorResponse
// @Failure      409              {object}  errorResponse
// @Failure      500              {object}  errorResponse
// @Router       /loans [post]
func (h *LoanHandler) Create(c echo.Context) error {
	var req createLoanRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.service.CreateLoan(c.Request().Context(), ports.CreateLoanInput{
		BookID:         req.BookID,
		UserID:         req.UserID,
		IdempotencyKey: c.Request().Header.Get(HeaderIdempotencyKey),
	})
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderLocation, "/loans/"+result.Loan.ID)
	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	return c.JSON(status, toLoanResponse(result.Loan))
}

// Return handles POST /loans/:id/return.
//
// @Summary      Return a loaned book
// @Tags         loans
// @Produce      json
// @Param        id   path      string  true  "Loan id"
// @Success      200  {object}  loanResponse
// @Failure      404  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /loans/{id}/return [post]
func (h *LoanHandler) Return(c echo.Context) error {
	loan, err := h.service.ReturnLoan(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toLoanResponse(*loan))
}
