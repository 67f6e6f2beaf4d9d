package http

import (
	"net/http"
	"strconv"

	"dividi/internal/core"
	"dividi/internal/log"
)

func (s *Server) handlePeople(w http.ResponseWriter, r *http.Request) {
	people, err := s.ledger.People(r.Context())
	if err != nil {
		s.writeError(w, r, err, log.OpList)
		return
	}
	if people == nil {
		people = []string{}
	}
	NewResponse().Data(people).Write(w)
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	plan, err := s.ledger.Plan(r.Context())
	if err != nil {
		s.writeError(w, r, err, log.OpBalances)
		return
	}

	NewResponse().
		Header("X-Ledger-Version", strconv.FormatUint(plan.Version, 10)).
		Data(map[string]any{
			"balances": roundedBalances(plan.Balances),
			"details":  balanceRows(plan.Balances),
		}).
		Write(w)
}

func (s *Server) handleSettlements(w http.ResponseWriter, r *http.Request) {
	plan, err := s.ledger.Plan(r.Context())
	if err != nil {
		s.writeError(w, r, err, log.OpSettle)
		return
	}

	data := make([]settlementJSON, 0, len(plan.Settlements))
	for _, st := range plan.Settlements {
		data = append(data, settlementJSON{
			From:   st.From,
			To:     st.To,
			Amount: st.Amount,
			Text:   formatSettlement(st, s.currency),
		})
	}
	NewResponse().
		Header("X-Ledger-Version", strconv.FormatUint(plan.Version, 10)).
		Data(data).
		Write(w)
}

// handleSettlementPreview shows balances before and after the plan is paid.
func (s *Server) handleSettlementPreview(w http.ResponseWriter, r *http.Request) {
	plan, err := s.ledger.Plan(r.Context())
	if err != nil {
		s.writeError(w, r, err, log.OpSettle)
		return
	}

	after := core.Apply(plan.Balances, plan.Settlements)
	settled := true
	after.Each(func(_ string, v float64) {
		if v > core.SettledTolerance || v < -core.SettledTolerance {
			settled = false
		}
	})

	NewResponse().
		Header("X-Ledger-Version", strconv.FormatUint(plan.Version, 10)).
		Data(map[string]any{
			"before":      roundedBalances(plan.Balances),
			"after":       roundedBalances(after),
			"settlements": len(plan.Settlements),
			"moved":       plan.Moved(),
			"settled":     settled,
		}).
		Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().Data(map[string]string{
		"status": "ok",
		"uptime": s.uptime().String(),
	}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			ServiceUnavailableError("storage not ready").Write(w)
			return
		}
	}
	NewResponse().Data(map[string]string{"status": "ready"}).Write(w)
}
