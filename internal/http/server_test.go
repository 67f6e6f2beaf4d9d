package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dividi/internal/core"
	"dividi/internal/log"
	"dividi/internal/metrics"
	"dividi/internal/services"
	"dividi/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Level: slog.LevelError, Format: "json", Output: &bytes.Buffer{}})
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = quietLogger()
	}
	ledger := services.NewLedgerService(memory.NewStore(), services.WithLogger(cfg.Logger))
	srv := NewServer(cfg, ledger)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	var resp response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	}
	return rec, resp
}

func createExpense(t *testing.T, srv *Server, body string) expenseJSON {
	t.Helper()
	rec, resp := do(t, srv, http.MethodPost, "/expenses", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var e expenseJSON
	require.NoError(t, json.Unmarshal(resp.Data, &e))
	return e
}

func TestCreateAndListExpenses(t *testing.T) {
	srv := newTestServer(t, Config{})

	rec, resp := do(t, srv, http.MethodPost, "/expenses",
		`{"amount": 90, "description": "Dinner", "paid_by": "A", "participants": ["A","B","C"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "Expense added successfully", resp.Message)

	var created expenseJSON
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "/expenses/"+created.ID, rec.Header().Get("Location"))

	rec, resp = do(t, srv, http.MethodGet, "/expenses", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []expenseJSON
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, []string{"A", "B", "C"}, list[0].Participants)
}

func TestCreateExpense_DefaultsAndStringAmount(t *testing.T) {
	srv := newTestServer(t, Config{})

	e := createExpense(t, srv, `{"amount": "12,50", "description": "Coffee", "paid_by": "A"}`)
	assert.Equal(t, 12.5, e.Amount)
	assert.Equal(t, []string{"A"}, e.Participants)
}

func TestCreateExpense_Rejects(t *testing.T) {
	srv := newTestServer(t, Config{})

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"malformed json", `{"amount":`},
		{"missing amount", `{"description": "x", "paid_by": "A"}`},
		{"zero amount", `{"amount": 0, "description": "x", "paid_by": "A"}`},
		{"negative string amount", `{"amount": "-5", "description": "x", "paid_by": "A"}`},
		{"non-numeric amount", `{"amount": true, "description": "x", "paid_by": "A"}`},
		{"missing description", `{"amount": 5, "paid_by": "A"}`},
		{"missing payer", `{"amount": 5, "description": "x"}`},
		{"blank participant", `{"amount": 5, "description": "x", "paid_by": "A", "participants": ["B", "  "]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := do(t, srv, http.MethodPost, "/expenses", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestGetUpdateDeleteExpense(t *testing.T) {
	srv := newTestServer(t, Config{})
	e := createExpense(t, srv, `{"amount": 30, "description": "Taxi", "paid_by": "A", "participants": ["A","B"]}`)

	rec, resp := do(t, srv, http.MethodGet, "/expenses/"+e.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp = do(t, srv, http.MethodPut, "/expenses/"+e.ID, `{"amount": 40}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Expense updated", resp.Message)
	var updated expenseJSON
	require.NoError(t, json.Unmarshal(resp.Data, &updated))
	assert.Equal(t, 40.0, updated.Amount)
	assert.Equal(t, "Taxi", updated.Description)
	assert.Equal(t, []string{"A", "B"}, updated.Participants)

	rec, _ = do(t, srv, http.MethodPut, "/expenses/"+e.ID, `{"participants": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = do(t, srv, http.MethodDelete, "/expenses/"+e.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Expense deleted", resp.Message)

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec, resp = do(t, srv, method, "/expenses/"+e.ID, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Expense not found", resp.Message)
	}
	rec, _ = do(t, srv, http.MethodPut, "/expenses/"+e.ID, `{"amount": 1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPeopleBalancesSettlements(t *testing.T) {
	srv := newTestServer(t, Config{})
	createExpense(t, srv, `{"amount": 90, "description": "Dinner", "paid_by": "A", "participants": ["A","B","C"]}`)
	createExpense(t, srv, `{"amount": 30, "description": "Taxi", "paid_by": "B", "participants": ["A","B","C"]}`)

	_, resp := do(t, srv, http.MethodGet, "/people", "")
	var people []string
	require.NoError(t, json.Unmarshal(resp.Data, &people))
	assert.Equal(t, []string{"A", "B", "C"}, people)

	rec, resp := do(t, srv, http.MethodGet, "/balances", "")
	assert.Equal(t, "2", rec.Header().Get("X-Ledger-Version"))
	var balances struct {
		Balances map[string]float64 `json:"balances"`
		Details  []balanceJSON      `json:"details"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &balances))
	assert.Equal(t, map[string]float64{"A": 50, "B": -10, "C": -40}, balances.Balances)
	require.Len(t, balances.Details, 3)
	assert.Equal(t, "A", balances.Details[0].Person)

	_, resp = do(t, srv, http.MethodGet, "/settlements", "")
	var settlements []settlementJSON
	require.NoError(t, json.Unmarshal(resp.Data, &settlements))
	require.Len(t, settlements, 2)
	assert.Equal(t, "C pays ₹40.00 to A", settlements[0].Text)
	assert.Equal(t, "B pays ₹10.00 to A", settlements[1].Text)

	_, resp = do(t, srv, http.MethodGet, "/settlements/preview", "")
	var preview struct {
		After   map[string]float64 `json:"after"`
		Moved   float64            `json:"moved"`
		Settled bool               `json:"settled"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &preview))
	assert.True(t, preview.Settled)
	assert.Equal(t, 50.0, preview.Moved)
	assert.Equal(t, 0.0, preview.After["C"])
}

func TestSettlements_EmptyAndCurrency(t *testing.T) {
	srv := newTestServer(t, Config{CurrencySymbol: "€"})

	_, resp := do(t, srv, http.MethodGet, "/settlements", "")
	assert.JSONEq(t, `[]`, string(resp.Data))

	createExpense(t, srv, `{"amount": 100, "description": "Hotel", "paid_by": "A", "participants": ["A","B","C"]}`)
	_, resp = do(t, srv, http.MethodGet, "/settlements", "")
	var settlements []settlementJSON
	require.NoError(t, json.Unmarshal(resp.Data, &settlements))
	require.Len(t, settlements, 2)
	assert.Equal(t, "B pays €33.33 to A", settlements[0].Text)
	assert.Equal(t, 33.33, settlements[1].Amount)
}

func TestHealthReadyAndMetrics(t *testing.T) {
	ready := errors.New("db locked")
	srv := newTestServer(t, Config{
		Metrics: metrics.New(),
		Ready:   func(context.Context) error { return ready },
	})

	rec, _ := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp := do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, resp.Success)

	ready = nil
	rec, _ = do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `dividi_http_requests_total{code="200",method="GET",route="GET /healthz"} 1`)
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	srv := newTestServer(t, Config{})
	rec, _ := do(t, srv, http.MethodGet, "/people", "")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, Config{RateLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		rec, _ := do(t, srv, http.MethodGet, "/people", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, resp := do(t, srv, http.MethodGet, "/people", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec, _ = do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code, "probes are never throttled")
}

type brokenLedger struct{ Ledger }

func (brokenLedger) ListExpenses(context.Context) ([]core.Expense, error) {
	return nil, errors.New("disk on fire")
}

func TestInternalErrorsAreHidden(t *testing.T) {
	srv := NewServer(Config{Logger: quietLogger()}, brokenLedger{})
	defer srv.Shutdown(context.Background())

	rec, resp := do(t, srv, http.MethodGet, "/expenses", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", resp.Message)
	assert.NotContains(t, rec.Body.String(), "disk on fire")
}
