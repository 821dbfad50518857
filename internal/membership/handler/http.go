// Package handler exposes organization membership management over HTTP.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"quizdeck/internal/membership/domain"
	"quizdeck/internal/membership/service"
	"quizdeck/internal/platform/httpx"
	"quizdeck/internal/server/middleware"
)

// Handler serves membership routes nested under an organization. All routes
// require an authenticated caller.
type Handler struct {
	memberships *service.Service
}

func New(memberships *service.Service) *Handler {
	return &Handler{memberships: memberships}
}

// Mount registers the membership routes on an authenticated router.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/organizations/{orgID}/members", func(mr chi.Router) {
		mr.Get("/", h.List)
		mr.Post("/", h.Invite)
		mr.Post("/respond", h.Respond)
		mr.Delete("/{userID}", h.Remove)
	})
}

type membershipResponse struct {
	UserID      string    `json:"userId"`
	OrgID       string    `json:"organizationId"`
	Permission  string    `json:"permission"`
	Approvement string    `json:"approvement"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toMembershipResponse(m *domain.Membership) membershipResponse {
	return membershipResponse{
		UserID:      m.UserID,
		OrgID:       m.OrgID,
		Permission:  string(m.Permission),
		Approvement: string(m.Approvement),
		CreatedAt:   m.CreatedAt,
	}
}

// List handles GET /api/v1/organizations/{orgID}/members.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	list, err := h.memberships.List(r.Context(), id.UserID, chi.URLParam(r, "orgID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]membershipResponse, 0, len(list))
	for _, m := range list {
		out = append(out, toMembershipResponse(m))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// Invite handles POST /api/v1/organizations/{orgID}/members: create a pending
// invite for the user identified by email.
func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	var req struct {
		Email      string `json:"email"`
		Permission string `json:"permission"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeBadRequest, "invalid JSON body")
		return
	}
	m, err := h.memberships.Invite(r.Context(), id.UserID, chi.URLParam(r, "orgID"),
		req.Email, domain.Permission(req.Permission))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toMembershipResponse(m))
}

// Respond handles POST /api/v1/organizations/{orgID}/members/respond: the
// caller accepts or declines their own pending invite.
func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	var req struct {
		Decision string `json:"decision"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeBadRequest, "invalid JSON body")
		return
	}
	err := h.memberships.Respond(r.Context(), id.UserID, chi.URLParam(r, "orgID"),
		domain.Approvement(req.Decision))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Remove handles DELETE /api/v1/organizations/{orgID}/members/{userID}.
// Members may remove themselves; removing others needs write access.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	err := h.memberships.Remove(r.Context(), id.UserID, chi.URLParam(r, "orgID"),
		chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, httpx.CodeForbidden, service.ErrForbidden.Error())
	case errors.Is(err, service.ErrAlreadyMember),
		errors.Is(err, service.ErrAlreadyResolved):
		httpx.WriteError(w, http.StatusConflict, httpx.CodeConflict, err.Error())
	case errors.Is(err, service.ErrMembershipMissing),
		errors.Is(err, service.ErrUserMissing):
		httpx.WriteError(w, http.StatusNotFound, httpx.CodeNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidPermission):
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeBadRequest, service.ErrInvalidPermission.Error())
	case errors.Is(err, service.ErrInvalidDecision):
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeBadRequest, service.ErrInvalidDecision.Error())
	default:
		slog.Error("membership request failed", "error", err)
		httpx.WriteError(w, http.StatusServiceUnavailable, httpx.CodeDependencyFailure, "service temporarily unavailable")
	}
}
