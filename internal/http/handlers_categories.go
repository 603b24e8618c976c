package http

import (
	"net/http"

	"saldo/internal/services"
)

type createCategoryRequest struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
}

// updateCategoryRequest has no balance field; balances are rebuilt from transactions.
type updateCategoryRequest struct {
	Name *string `json:"name"`
	Kind *string `json:"kind"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.categories.List(r.Context(), sanitizeInput(r.URL.Query().Get("account_id")))
	if err != nil {
		writeError(w, r, "List categories", err)
		return
	}
	writeJSON(w, http.StatusOK, newList(mapAll(cats, toCategoryJSON)))
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	c, err := s.categories.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, "Get category", err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryJSON(c))
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, "Create category", err)
		return
	}
	kind, err := parseKind("kind", req.Kind)
	if err != nil {
		writeError(w, r, "Create category", err)
		return
	}
	c, err := s.categories.Create(r.Context(), services.NewCategory{
		AccountID: sanitizeInput(req.AccountID),
		Name:      sanitizeInput(req.Name),
		Kind:      kind,
	})
	if err != nil {
		writeError(w, r, "Create category", err)
		return
	}
	s.summaries.Invalidate(c.AccountID)
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/categories/"+c.ID).
		Body(toCategoryJSON(c)).
		Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req updateCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, "Update category", err)
		return
	}
	changes := services.CategoryChanges{Name: sanitizePtr(req.Name)}
	if req.Kind != nil {
		kind, err := parseKind("kind", *req.Kind)
		if err != nil {
			writeError(w, r, "Update category", err)
			return
		}
		changes.Kind = &kind
	}
	c, err := s.categories.Update(r.Context(), r.PathValue("id"), changes)
	if err != nil {
		writeError(w, r, "Update category", err)
		return
	}
	s.summaries.Invalidate(c.AccountID)
	writeJSON(w, http.StatusOK, toCategoryJSON(c))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var owner string
	if c, err := s.categories.Get(r.Context(), id); err == nil {
		owner = c.AccountID
	}
	if err := s.categories.Delete(r.Context(), id); err != nil {
		writeError(w, r, "Delete category", err)
		return
	}
	s.summaries.Invalidate(owner)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleCategorySummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.summaries.CategorySummary(r.Context(), r.PathValue("id"), s.categories.Summary)
	if err != nil {
		writeError(w, r, "Category summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toCategorySummaryJSON(sum))
}

func (s *Server) handleRegenerateCategories(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	cats, err := s.categories.Regenerate(r.Context(), id)
	if err != nil {
		writeError(w, r, "Regenerate categories", err)
		return
	}
	s.summaries.Invalidate(id)
	writeJSON(w, http.StatusOK, newList(mapAll(cats, toCategoryJSON)))
}

func (s *Server) handleCategorizedTransactions(w http.ResponseWriter, r *http.Request) {
	groups, err := s.categories.Categorized(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, "Categorized transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, newList(mapAll(groups, toCategorizedJSON)))
}
