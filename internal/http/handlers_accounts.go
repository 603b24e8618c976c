package http

import (
	"net/http"

	"saldo/internal/services"
)

type createAccountRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"is_admin"`
}

// updateAccountRequest has no balance field; balances only move through transactions.
type updateAccountRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	IsAdmin  *bool   `json:"is_admin"`
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.accounts.List(r.Context())
	if err != nil {
		writeError(w, r, "List accounts", err)
		return
	}
	writeJSON(w, http.StatusOK, newList(mapAll(accounts, toAccountJSON)))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	a, err := s.accounts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, "Get account", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountJSON(a))
}

func (s *Server) handleAccountBalance(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	balance, err := s.accounts.Balance(r.Context(), id)
	if err != nil {
		writeError(w, r, "Account balance", err)
		return
	}
	writeJSON(w, http.StatusOK, balanceJSON{AccountID: id, Balance: balance.String()})
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, "Create account", err)
		return
	}
	a, err := s.accounts.Create(r.Context(), services.NewAccount{
		Username: sanitizeInput(req.Username),
		Email:    sanitizeInput(req.Email),
		IsAdmin:  req.IsAdmin,
	})
	if err != nil {
		writeError(w, r, "Create account", err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/accounts/"+a.ID).
		Body(toAccountJSON(a)).
		Write(w)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req updateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, "Update account", err)
		return
	}
	a, err := s.accounts.Update(r.Context(), r.PathValue("id"), services.AccountChanges{
		Username: sanitizePtr(req.Username),
		Email:    sanitizePtr(req.Email),
		IsAdmin:  req.IsAdmin,
	})
	if err != nil {
		writeError(w, r, "Update account", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountJSON(a))
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.accounts.Delete(r.Context(), id); err != nil {
		writeError(w, r, "Delete account", err)
		return
	}
	s.summaries.Invalidate(id)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
