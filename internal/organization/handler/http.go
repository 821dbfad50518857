// Package handler exposes organization management over HTTP.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"quizdeck/internal/organization/domain"
	"quizdeck/internal/organization/service"
	"quizdeck/internal/platform/httpx"
	"quizdeck/internal/server/middleware"
)

// Handler serves the /api/v1/organizations endpoints. All routes require an
// authenticated caller.
type Handler struct {
	orgs *service.Service
}

func New(orgs *service.Service) *Handler {
	return &Handler{orgs: orgs}
}

// Mount registers the organization routes on an authenticated router.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/organizations", h.Create)
	r.Get("/organizations", h.List)
	r.Get("/organizations/{orgID}", h.Get)
	r.Put("/organizations/{orgID}", h.Update)
	r.Delete("/organizations/{orgID}", h.Delete)
}

type orgResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	AuthorID    string    `json:"authorId"`
	AuthorName  string    `json:"authorName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toOrgResponse(o *domain.Org) orgResponse {
	return orgResponse{
		ID:          o.ID,
		Title:       o.Title,
		Description: o.Description,
		Color:       o.Color,
		AuthorID:    o.AuthorID,
		AuthorName:  o.AuthorName,
		CreatedAt:   o.CreatedAt,
	}
}

type orgRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

// Create handles POST /api/v1/organizations.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	var req orgRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeBadRequest, "invalid JSON body")
		return
	}
	o, err := h.orgs.Create(r.Context(), id.UserID, req.Title, req.Description, req.Color)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toOrgResponse(o))
}

// List handles GET /api/v1/organizations: the caller's organizations.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	orgs, err := h.orgs.ListForUser(r.Context(), id.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]orgResponse, 0, len(orgs))
	for _, o := range orgs {
		out = append(out, toOrgResponse(o))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// Get handles GET /api/v1/organizations/{orgID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	o, err := h.orgs.Get(r.Context(), id.UserID, chi.URLParam(r, "orgID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toOrgResponse(o))
}

// Update handles PUT /api/v1/organizations/{orgID}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	var req orgRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeBadRequest, "invalid JSON body")
		return
	}
	o, err := h.orgs.Update(r.Context(), id.UserID, chi.URLParam(r, "orgID"), req.Title, req.Description, req.Color)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toOrgResponse(o))
}

// Delete handles DELETE /api/v1/organizations/{orgID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	if err := h.orgs.Delete(r.Context(), id.UserID, chi.URLParam(r, "orgID")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, httpx.CodeForbidden, service.ErrForbidden.Error())
	case errors.Is(err, service.ErrInvalidInput):
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeBadRequest, err.Error())
	case errors.Is(err, service.ErrOrgNotFound):
		httpx.WriteError(w, http.StatusNotFound, httpx.CodeNotFound, service.ErrOrgNotFound.Error())
	default:
		slog.Error("organization request failed", "error", err)
		httpx.WriteError(w, http.StatusServiceUnavailable, httpx.CodeDependencyFailure, "service temporarily unavailable")
	}
}
