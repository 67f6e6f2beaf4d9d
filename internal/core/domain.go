package core

import (
	"errors"
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

type (
	// Expense is a single shared cost. The engine only reads Amount, PaidBy
	// and Participants; the rest is carried through for callers.
	Expense struct {
		ID           string
		Amount       float64
		Description  string
		PaidBy       string
		Participants []string
		CreatedAt    time.Time
	}

	// Settlement instructs From to transfer Amount to To.
	Settlement struct {
		From   string
		To     string
		Amount float64
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyParticipants = errors.New("empty participants")
	ErrEmptyParticipant  = errors.New("empty participant name")
	ErrEmptyDescription  = errors.New("empty description")
	ErrEmptyPayer        = errors.New("empty paid_by")
	ErrDescriptionLength = errors.New("description too long (max 200 characters)")
)

const maxDescriptionLen = 200

// Validate reports the first precondition violation, if any.
func (e Expense) Validate() error {
	if math.IsNaN(e.Amount) || math.IsInf(e.Amount, 0) || e.Amount <= 0 {
		return ErrInvalidAmount
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(e.Description) > maxDescriptionLen {
		return ErrDescriptionLength
	}
	if strings.TrimSpace(e.PaidBy) == "" {
		return ErrEmptyPayer
	}
	if len(e.Participants) == 0 {
		return ErrEmptyParticipants
	}
	for _, p := range e.Participants {
		if strings.TrimSpace(p) == "" {
			return ErrEmptyParticipant
		}
	}
	return nil
}

// Share is the amount each participant occurrence is charged.
func (e Expense) Share() float64 {
	return e.Amount / float64(len(e.Participants))
}

// Clone returns a copy that shares no memory with e.
func (e Expense) Clone() Expense {
	e.Participants = append([]string(nil), e.Participants...)
	return e
}
