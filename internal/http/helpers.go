package http

import (
	"strings"
	"time"

	"dividi/internal/core"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// formatSettlement renders "{debtor} pays {symbol}{amount} to {creditor}".
func formatSettlement(s core.Settlement, symbol string) string {
	return s.From + " pays " + symbol + core.FormatAmount(s.Amount) + " to " + s.To
}

type expenseJSON struct {
	ID           string    `json:"id"`
	Amount       float64   `json:"amount"`
	Description  string    `json:"description"`
	PaidBy       string    `json:"paid_by"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
}

func toExpenseJSON(e core.Expense) expenseJSON {
	participants := e.Participants
	if participants == nil {
		participants = []string{}
	}
	return expenseJSON{
		ID:           e.ID,
		Amount:       e.Amount,
		Description:  e.Description,
		PaidBy:       e.PaidBy,
		Participants: participants,
		CreatedAt:    e.CreatedAt,
	}
}

type settlementJSON struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
	Text   string  `json:"text"`
}

type balanceJSON struct {
	Person  string  `json:"person"`
	Balance float64 `json:"balance"`
	Raw     float64 `json:"raw"`
}

// roundedBalances maps each person to their balance rounded to cents.
func roundedBalances(b core.Balances) map[string]float64 {
	out := make(map[string]float64, b.Len())
	b.Each(func(p string, v float64) {
		out[p] = core.Round2(v)
	})
	return out
}

func balanceRows(b core.Balances) []balanceJSON {
	rows := make([]balanceJSON, 0, b.Len())
	b.Each(func(p string, v float64) {
		rows = append(rows, balanceJSON{Person: p, Balance: core.Round2(v), Raw: v})
	})
	return rows
}
