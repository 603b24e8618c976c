package http

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/services"
)

type createGoalRequest struct {
	AccountID    string  `json:"account_id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	TargetAmount Amount  `json:"target_amount"`
	TargetDate   *string `json:"target_date"`
	Status       string  `json:"status"`
}

// updateGoalRequest has no saved_amount field; funds move through allocate and withdraw.
type updateGoalRequest struct {
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	TargetAmount    Amount  `json:"target_amount"`
	TargetDate      *string `json:"target_date"`
	ClearTargetDate bool    `json:"clear_target_date"`
	Status          *string `json:"status"`
}

type fundsRequest struct {
	Amount            Amount `json:"amount"`
	RecordTransaction bool   `json:"record_transaction"`
	Note              string `json:"note"`
}

func (req createGoalRequest) toInput() (services.NewGoal, error) {
	in := services.NewGoal{
		AccountID:    sanitizeInput(req.AccountID),
		Title:        sanitizeInput(req.Title),
		Description:  sanitizeInput(req.Description),
		TargetAmount: decimal.Zero,
	}
	if req.TargetAmount.IsSet() {
		target, err := req.TargetAmount.parseNonNegative("target_amount")
		if err != nil {
			return in, err
		}
		in.TargetAmount = target
	}
	if req.TargetDate != nil && *req.TargetDate != "" {
		d, err := parseDate("target_date", *req.TargetDate)
		if err != nil {
			return in, err
		}
		in.TargetDate = &d
	}
	if req.Status != "" {
		st, err := parseStatus("status", req.Status)
		if err != nil {
			return in, err
		}
		in.Status = st
	}
	return in, nil
}

func (req updateGoalRequest) toChanges() (services.GoalChanges, error) {
	c := services.GoalChanges{
		Title:           sanitizePtr(req.Title),
		Description:     sanitizePtr(req.Description),
		ClearTargetDate: req.ClearTargetDate,
	}
	if req.TargetAmount.IsSet() {
		target, err := req.TargetAmount.parseNonNegative("target_amount")
		if err != nil {
			return c, err
		}
		c.TargetAmount = &target
	}
	if req.TargetDate != nil {
		if *req.TargetDate == "" {
			c.ClearTargetDate = true
		} else {
			d, err := parseDate("target_date", *req.TargetDate)
			if err != nil {
				return c, err
			}
			c.TargetDate = &d
		}
	}
	if req.Status != nil {
		st, err := parseStatus("status", *req.Status)
		if err != nil {
			return c, err
		}
		c.Status = &st
	}
	return c, nil
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.goals.List(r.Context(), sanitizeInput(r.URL.Query().Get("account_id")))
	if err != nil {
		writeError(w, r, "List goals", err)
		return
	}
	writeJSON(w, http.StatusOK, newList(mapAll(goals, toGoalJSON)))
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	g, err := s.goals.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, "Get goal", err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalJSON(g))
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req createGoalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, "Create goal", err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, "Create goal", err)
		return
	}
	g, err := s.goals.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, "Create goal", err)
		return
	}
	s.summaries.Invalidate(g.AccountID)
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/goals/"+g.ID).
		Body(toGoalJSON(g)).
		Write(w)
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	var req updateGoalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, "Update goal", err)
		return
	}
	changes, err := req.toChanges()
	if err != nil {
		writeError(w, r, "Update goal", err)
		return
	}
	g, err := s.goals.Update(r.Context(), r.PathValue("id"), changes)
	if err != nil {
		writeError(w, r, "Update goal", err)
		return
	}
	s.summaries.Invalidate(g.AccountID)
	writeJSON(w, http.StatusOK, toGoalJSON(g))
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var owner string
	if g, err := s.goals.Get(r.Context(), id); err == nil {
		owner = g.AccountID
	}
	if err := s.goals.Delete(r.Context(), id); err != nil {
		writeError(w, r, "Delete goal", err)
		return
	}
	s.summaries.Invalidate(owner)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleGoalSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.summaries.GoalSummary(r.Context(), r.PathValue("id"), s.goals.Summary)
	if err != nil {
		writeError(w, r, "Goal summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalSummaryJSON(sum))
}

func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	s.moveFunds(w, r, "Allocate funds", s.ledger.AllocateFunds)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.moveFunds(w, r, "Withdraw funds", s.ledger.WithdrawFunds)
}

type fundsFunc func(ctx context.Context, goalID string, amount decimal.Decimal, opts services.FundsOptions) (core.Goal, error)

func (s *Server) moveFunds(w http.ResponseWriter, r *http.Request, msg string, move fundsFunc) {
	var req fundsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, msg, err)
		return
	}
	amount, err := req.Amount.parse("amount")
	if err != nil {
		writeError(w, r, msg, err)
		return
	}
	g, err := move(r.Context(), r.PathValue("id"), amount, services.FundsOptions{
		RecordTransaction: req.RecordTransaction,
		Note:              sanitizeInput(req.Note),
	})
	if err != nil {
		writeError(w, r, msg, err)
		return
	}
	s.summaries.Invalidate(g.AccountID)
	writeJSON(w, http.StatusOK, toGoalJSON(g))
}
