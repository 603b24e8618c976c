package http

import (
	"net/http"

	"saldo/internal/services"
	"saldo/internal/storage"
)

type createTransactionRequest struct {
	AccountID   string   `json:"account_id"`
	Kind        string   `json:"kind"`
	Amount      Amount   `json:"amount"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
}

type updateTransactionRequest struct {
	Kind        *string   `json:"kind"`
	Amount      Amount    `json:"amount"`
	Description *string   `json:"description"`
	Category    *string   `json:"category"`
	Tags        *[]string `json:"tags"`
}

func (req createTransactionRequest) toInput() (services.NewTransaction, error) {
	kind, err := parseKind("kind", req.Kind)
	if err != nil {
		return services.NewTransaction{}, err
	}
	amount, err := req.Amount.parse("amount")
	if err != nil {
		return services.NewTransaction{}, err
	}
	return services.NewTransaction{
		AccountID:   sanitizeInput(req.AccountID),
		Kind:        kind,
		Amount:      amount,
		Description: sanitizeInput(req.Description),
		Category:    sanitizeInput(req.Category),
		Tags:        sanitizeAll(req.Tags),
	}, nil
}

func (req updateTransactionRequest) toChanges() (services.TransactionChanges, error) {
	var c services.TransactionChanges
	if req.Kind != nil {
		kind, err := parseKind("kind", *req.Kind)
		if err != nil {
			return c, err
		}
		c.Kind = &kind
	}
	if req.Amount.IsSet() {
		amount, err := req.Amount.parse("amount")
		if err != nil {
			return c, err
		}
		c.Amount = &amount
	}
	c.Description = sanitizePtr(req.Description)
	c.Category = sanitizePtr(req.Category)
	if req.Tags != nil {
		tags := sanitizeAll(*req.Tags)
		if tags == nil {
			tags = []string{}
		}
		c.Tags = &tags
	}
	return c, nil
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := ParseTransactionFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, "List transactions", err)
		return
	}
	f.AccountID = sanitizeInput(r.URL.Query().Get("account_id"))
	s.listTransactions(w, r, f)
}

func (s *Server) handleAccountTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := ParseTransactionFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, "List account transactions", err)
		return
	}
	f.AccountID = r.PathValue("id")
	s.listTransactions(w, r, f)
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request, f storage.TransactionFilter) {
	txs, err := s.ledger.ListTransactions(r.Context(), f)
	if err != nil {
		writeError(w, r, "List transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, newList(mapAll(txs, toTransactionJSON)))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.ledger.GetTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, "Get transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionJSON(tx))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, "Create transaction", err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, "Create transaction", err)
		return
	}
	tx, err := s.ledger.CreateTransaction(r.Context(), in)
	if err != nil {
		writeError(w, r, "Create transaction", err)
		return
	}
	s.summaries.Invalidate(tx.AccountID)
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+tx.ID).
		Body(toTransactionJSON(tx)).
		Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req updateTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, "Update transaction", err)
		return
	}
	changes, err := req.toChanges()
	if err != nil {
		writeError(w, r, "Update transaction", err)
		return
	}
	tx, err := s.ledger.UpdateTransaction(r.Context(), r.PathValue("id"), changes)
	if err != nil {
		writeError(w, r, "Update transaction", err)
		return
	}
	s.summaries.Invalidate(tx.AccountID)
	writeJSON(w, http.StatusOK, toTransactionJSON(tx))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	owner := s.transactionOwner(r, id)
	if err := s.ledger.DeleteTransaction(r.Context(), id); err != nil {
		writeError(w, r, "Delete transaction", err)
		return
	}
	s.summaries.Invalidate(owner)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// transactionOwner returns the account of id, or "" when it cannot be read.
func (s *Server) transactionOwner(r *http.Request, id string) string {
	tx, err := s.ledger.GetTransaction(r.Context(), id)
	if err != nil {
		return ""
	}
	return tx.AccountID
}
