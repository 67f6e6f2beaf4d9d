package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"dividi/internal/core"
	"dividi/internal/services"
)

const maxBodyBytes = 1 << 20

// amountField accepts a JSON number or a decimal string such as "12,50".
type amountField struct {
	value float64
}

func (a *amountField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := core.ParseAmount(s)
		if err != nil {
			return err
		}
		a.value = v
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("amount must be a number")
	}
	a.value = v
	return nil
}

type createExpenseRequest struct {
	Amount       *amountField `json:"amount"`
	Description  string       `json:"description"`
	PaidBy       string       `json:"paid_by"`
	Participants []string     `json:"participants"`
}

type updateExpenseRequest struct {
	Amount       *amountField `json:"amount"`
	Description  *string      `json:"description"`
	PaidBy       *string      `json:"paid_by"`
	Participants []string     `json:"participants"`
}

// decodeJSON reads one JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return errors.New("request body is empty")
		case errors.As(err, &maxErr):
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		default:
			return fmt.Errorf("invalid JSON: %w", err)
		}
	}
	return nil
}

// toExpense converts a create request, sanitising names and text.
func (req createExpenseRequest) toExpense() (core.Expense, error) {
	if req.Amount == nil {
		return core.Expense{}, errors.New("missing required field: amount")
	}
	return core.Expense{
		Amount:       req.Amount.value,
		Description:  sanitizeInput(req.Description),
		PaidBy:       sanitizeInput(req.PaidBy),
		Participants: sanitizeNames(req.Participants),
	}, nil
}

func (req updateExpenseRequest) toUpdate() services.ExpenseUpdate {
	var u services.ExpenseUpdate
	if req.Amount != nil {
		v := req.Amount.value
		u.Amount = &v
	}
	if req.Description != nil {
		v := sanitizeInput(*req.Description)
		u.Description = &v
	}
	if req.PaidBy != nil {
		v := sanitizeInput(*req.PaidBy)
		u.PaidBy = &v
	}
	if req.Participants != nil {
		u.Participants = sanitizeNames(req.Participants)
	}
	return u
}

func sanitizeNames(names []string) []string {
	if names == nil {
		return nil
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = sanitizeInput(n)
	}
	return out
}
