// Package handler exposes the authentication and account endpoints over HTTP.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"quizdeck/internal/identity/service"
	"quizdeck/internal/metrics"
	"quizdeck/internal/platform/httpx"
	"quizdeck/internal/server/middleware"
)

// Handler serves the /api/v1/auth endpoints.
type Handler struct {
	auth    *service.AuthService
	metrics *metrics.Metrics
}

func New(auth *service.AuthService, m *metrics.Metrics) *Handler {
	return &Handler{auth: auth, metrics: m}
}

// MountPublic registers the unauthenticated auth routes.
func (h *Handler) MountPublic(r chi.Router) {
	r.Post("/auth/signup", h.SignUp)
	r.Post("/auth/signin", h.SignIn)
	r.Post("/auth/signin/code", h.SignInWithCode)
	r.Post("/auth/refresh", h.Refresh)
	r.Post("/auth/recovery/request", h.RequestRecovery)
	r.Post("/auth/recovery/verify", h.VerifyRecoveryCode)
	r.Post("/auth/recovery/restore", h.RestorePassword)
}

// MountProtected registers the routes that require a valid access token.
func (h *Handler) MountProtected(r chi.Router) {
	r.Get("/users/me", h.Me)
	r.Delete("/users/me", h.DeleteAccount)
}

// MountReset registers the forced password reset route. Mounted behind
// AuthenticateRestricted so restricted tokens can reach it; it is the only
// route they are good for.
func (h *Handler) MountReset(r chi.Router) {
	r.Put("/auth/password", h.ChangePassword)
}

type authResponse struct {
	AccessToken           string    `json:"accessToken"`
	RefreshToken          string    `json:"refreshToken"`
	ExpiresAt             time.Time `json:"expiresAt"`
	UserID                string    `json:"userId"`
	Email                 string    `json:"email"`
	PasswordResetRequired bool      `json:"passwordResetRequired"`
}

func toAuthResponse(res *service.AuthResult) authResponse {
	out := authResponse{
		UserID:                res.UserID,
		Email:                 res.Email,
		PasswordResetRequired: res.PasswordResetRequired,
	}
	if res.Tokens != nil {
		out.AccessToken = res.Tokens.AccessToken
		out.RefreshToken = res.Tokens.RefreshToken
		out.ExpiresAt = res.Tokens.ExpiresAt
	}
	return out
}

// SignUp handles POST /api/v1/auth/signup.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeBadRequest, "invalid JSON body")
		return
	}
	res, err := h.auth.SignUp(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toAuthResponse(res))
}

// SignIn handles POST /api/v1/auth/signin.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeBadRequest, "invalid JSON body")
		return
	}
	res, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.metrics.SignInsTotal.WithLabelValues("failure").Inc()
		h.writeServiceError(w, err)
		return
	}
	h.metrics.SignInsTotal.WithLabelValues("success").Inc()
	httpx.WriteJSON(w, http.StatusOK, toAuthResponse(res))
}

// SignInWithCode handles POST /api/v1/auth/signin/code. Covers both the
// one-time-code challenge during sign-in and the forgot-password code step.
func (h *Handler) SignInWithCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email          string `json:"email"`
		Password       string `json:"password"`
		Code           string `json:"code"`
		ForgotPassword bool   `json:"forgotPassword"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeBadRequest, "invalid JSON body")
		return
	}
	res, err := h.auth.SignInWithCode(r.Context(), req.Email, req.Password, req.Code, req.ForgotPassword)
	if err != nil {
		h.metrics.SignInsTotal.WithLabelValues("failure").Inc()
		h.writeServiceError(w, err)
		return
	}
	h.metrics.SignInsTotal.WithLabelValues("success").Inc()
	httpx.WriteJSON(w, http.StatusOK, toAuthResponse(res))
}

// Refresh handles POST /api/v1/auth/refresh. The refresh token travels in the
// Refresh header, never in the body or the Authorization header.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(middleware.RefreshHeader)
	res, err := h.auth.Refresh(r.Context(), token)
	if err != nil {
		h.metrics.TokenRefreshesTotal.WithLabelValues("failure").Inc()
		h.writeServiceError(w, err)
		return
	}
	h.metrics.TokenRefreshesTotal.WithLabelValues("success").Inc()
	httpx.WriteJSON(w, http.StatusOK, toAuthResponse(res))
}

// RequestRecovery handles POST /api/v1/auth/recovery/request. Responds 202 for
// unknown emails as well, so the endpoint cannot be used to probe accounts.
func (h *Handler) RequestRecovery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.auth.RequestPasswordRecovery(r.Context(), req.Email); err != nil {
		h.writeServiceError(w, err)
		return
	}
	// RecoveryCodesSentTotal is counted by the sender, not here: a 202 is also
	// returned for unknown emails where nothing was delivered.
	w.WriteHeader(http.StatusAccepted)
}

// VerifyRecoveryCode handles POST /api/v1/auth/recovery/verify. Checks the
// code without consuming it.
func (h *Handler) VerifyRecoveryCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeBadRequest, "invalid JSON body")
		return
	}
	resetRequired, err := h.auth.VerifyRecoveryCode(r.Context(), req.Email, req.Code)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"passwordResetRequired": resetRequired})
}

// RestorePassword handles POST /api/v1/auth/recovery/restore. Consumes the
// code, installs the new password, and signs the user in.
func (h *Handler) RestorePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		Code        string `json:"code"`
		NewPassword string `json:"newPassword"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeBadRequest, "invalid JSON body")
		return
	}
	res, err := h.auth.RestorePassword(r.Context(), req.Email, req.Code, req.NewPassword)
	if err != nil {
		h.metrics.PasswordRestoresTotal.WithLabelValues("failure").Inc()
		h.writeServiceError(w, err)
		return
	}
	h.metrics.PasswordRestoresTotal.WithLabelValues("success").Inc()
	httpx.WriteJSON(w, http.StatusOK, toAuthResponse(res))
}

// ChangePassword handles PUT /api/v1/auth/password: an authenticated user
// replaces their password without an emailed code. Completes a forced reset;
// the fresh tokens in the response are unrestricted.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	if id == nil {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "authentication required")
		return
	}
	var req struct {
		NewPassword string `json:"newPassword"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeBadRequest, "invalid JSON body")
		return
	}
	res, err := h.auth.ChangePassword(r.Context(), id.UserID, req.NewPassword)
	if err != nil {
		h.metrics.PasswordRestoresTotal.WithLabelValues("failure").Inc()
		h.writeServiceError(w, err)
		return
	}
	h.metrics.PasswordRestoresTotal.WithLabelValues("success").Inc()
	httpx.WriteJSON(w, http.StatusOK, toAuthResponse(res))
}

// Me handles GET /api/v1/users/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	if id == nil {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "authentication required")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"userId": id.UserID,
		"email":  id.Email,
	})
}

// DeleteAccount handles DELETE /api/v1/users/me. Memberships and credentials
// cascade with the user row.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	if id == nil {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "authentication required")
		return
	}
	if err := h.auth.DeleteAccount(r.Context(), id.UserID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidRefreshToken):
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "invalid credentials")
	case errors.Is(err, service.ErrInvalidRestoreCode):
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidCode, "invalid or expired restoration code")
	case errors.Is(err, service.ErrWeakPassword):
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeWeakPassword, service.ErrWeakPassword.Error())
	case errors.Is(err, service.ErrInvalidEmail):
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeBadRequest, service.ErrInvalidEmail.Error())
	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		httpx.WriteError(w, http.StatusConflict, httpx.CodeConflict, service.ErrEmailAlreadyRegistered.Error())
	case errors.Is(err, service.ErrUserNotFound):
		httpx.WriteError(w, http.StatusNotFound, httpx.CodeNotFound, service.ErrUserNotFound.Error())
	case errors.Is(err, service.ErrCodeDelivery):
		slog.Error("restoration code delivery failed", "error", err)
		httpx.WriteError(w, http.StatusServiceUnavailable, httpx.CodeDependencyFailure, "could not deliver the restoration code")
	default:
		// anything unclassified at this point is a failed dependency (storage)
		slog.Error("auth request failed", "error", err)
		httpx.WriteError(w, http.StatusServiceUnavailable, httpx.CodeDependencyFailure, "service temporarily unavailable")
	}
}
