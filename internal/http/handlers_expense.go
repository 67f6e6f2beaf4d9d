package http

import (
	"errors"
	"net/http"

	"dividi/internal/log"
	"dividi/internal/services"
	"dividi/internal/storage"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.ledger.ListExpenses(r.Context())
	if err != nil {
		s.writeError(w, r, err, log.OpList)
		return
	}

	data := make([]expenseJSON, 0, len(expenses))
	for _, e := range expenses {
		data = append(data, toExpenseJSON(e))
	}
	NewResponse().Data(data).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	e, err := req.toExpense()
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	created, err := s.ledger.AddExpense(r.Context(), e)
	if err != nil {
		s.writeError(w, r, err, log.OpCreate)
		return
	}

	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/expenses/"+created.ID).
		Data(toExpenseJSON(created)).
		Message("Expense added successfully").
		Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.ledger.GetExpense(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err, log.OpRead)
		return
	}
	NewResponse().Data(toExpenseJSON(e)).Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req updateExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	updated, err := s.ledger.UpdateExpense(r.Context(), r.PathValue("id"), req.toUpdate())
	if err != nil {
		s.writeError(w, r, err, log.OpUpdate)
		return
	}
	NewResponse().Data(toExpenseJSON(updated)).Message("Expense updated").Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteExpense(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err, log.OpDelete)
		return
	}
	NewResponse().Message("Expense deleted").Write(w)
}

// writeError maps service errors onto the envelope: validation is 400,
// unknown ids are 404 and anything else is logged and hidden behind a 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case errors.Is(err, services.ErrInvalidExpense):
		BadRequestError(err.Error()).Write(w)
	case errors.Is(err, storage.ErrNotFound):
		NotFoundError("Expense not found").Write(w)
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldError, err, log.FieldOperation, op, log.FieldPath, r.URL.Path)
		InternalServerError().Write(w)
	}
}
