package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"notehub/internal/contextutil"
	"notehub/internal/identity"
	"notehub/internal/service"
)

// SessionCookie carries the session token for browser clients.
const SessionCookie = "notehub_session"

// TokenFromRequest reads the session token from the Authorization header,
// then the session cookie, then the access_token query parameter. The query
// form exists for websocket clients that cannot set headers.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("access_token")
}

// AuthHandler serves sign-up, sign-in and profile routes.
type AuthHandler struct {
	identity   identity.Service
	inviteCode string
}

// NewAuthHandler creates a new AuthHandler. An empty invite code disables
// admin self-registration.
func NewAuthHandler(svc identity.Service, adminInviteCode string) *AuthHandler {
	return &AuthHandler{
		identity:   svc,
		inviteCode: adminInviteCode,
	}
}

// RegisterRequest is the sign-up form.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	InviteCode  string `json:"inviteCode,omitempty"`
}

// LoginRequest is the password sign-in form.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// FederatedLoginRequest carries an identity provider assertion.
type FederatedLoginRequest struct {
	Provider  string `json:"provider"`
	Assertion string `json:"assertion"`
}

// SessionResponse is returned by every successful sign-in.
type SessionResponse struct {
	Token string          `json:"token"`
	User  *identity.Actor `json:"user"`
}

// MessageResponse acknowledges an action with a user-facing message.
type MessageResponse struct {
	Message string `json:"message"`
}

// Register creates a password account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.register(w, r, req, "")
}

// AdminRegister creates an admin account when the invite code matches.
func (h *AuthHandler) AdminRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if h.inviteCode == "" ||
		subtle.ConstantTimeCompare([]byte(req.InviteCode), []byte(h.inviteCode)) != 1 {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "admin registration with bad invite code")
		handleServiceError(w, ctx, service.ErrForbidden)
		return
	}
	h.register(w, r, req, identity.RoleAdmin)
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request, req RegisterRequest, role string) {
	ctx := r.Context()
	actor, err := h.identity.Register(ctx, identity.RegisterRequest{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Role:        role,
	})
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, struct {
		User    *identity.Actor `json:"user"`
		Message string          `json:"message"`
	}{actor, "Account created. Check your inbox to verify your email."})
}

// Login signs in with email and password.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token, actor, err := h.identity.SignInPassword(r.Context(), req.Email, req.Password)
	h.signedIn(w, r, token, actor, err)
}

// AdminLogin signs in and requires a verified admin account.
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token, actor, err := h.identity.SignInAdmin(r.Context(), req.Email, req.Password)
	h.signedIn(w, r, token, actor, err)
}

// LoginFederated signs in with an identity provider assertion.
func (h *AuthHandler) LoginFederated(w http.ResponseWriter, r *http.Request) {
	var req FederatedLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token, actor, err := h.identity.SignInFederated(r.Context(), req.Provider, req.Assertion)
	h.signedIn(w, r, token, actor, err)
}

func (h *AuthHandler) signedIn(w http.ResponseWriter, r *http.Request, token string, actor *identity.Actor, err error) {
	ctx := r.Context()
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(ctx, w, http.StatusOK, SessionResponse{Token: token, User: actor})
}

// Logout revokes the current session. It succeeds without a session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if token := TokenFromRequest(r); token != "" {
		if err := h.identity.SignOut(ctx, token); err != nil {
			contextutil.LoggerFromContext(ctx).InfoContext(ctx, "sign-out of unknown session", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

// RequestPasswordReset mails a reset token.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.identity.SendPasswordReset(ctx, req.Email); err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	writeJSON(ctx, w, http.StatusAccepted, MessageResponse{Message: "Password reset email sent."})
}

// ConfirmPasswordReset sets a new password from a reset token.
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.identity.ConfirmPasswordReset(ctx, req.Token, req.Password); err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, MessageResponse{Message: "Password updated. Please log in."})
}

// VerifyEmail consumes a verification token.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		Token string `json:"token"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.identity.VerifyEmail(ctx, req.Token); err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, MessageResponse{Message: "Email verified."})
}

// ChangePassword changes the signed-in actor's password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.identity.ChangePassword(ctx, identity.ActorFromContext(ctx), req.OldPassword, req.NewPassword); err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, MessageResponse{Message: "Password updated."})
}

// Me returns the signed-in actor.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := identity.ActorFromContext(ctx)
	if actor == nil {
		handleServiceError(w, ctx, service.ErrUnauthenticated)
		return
	}
	writeJSON(ctx, w, http.StatusOK, actor)
}

// UpdateMe changes the signed-in actor's display name and photo.
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		DisplayName string `json:"displayName"`
		PhotoURL    string `json:"photoUrl"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	actor, err := h.identity.UpdateProfile(ctx, identity.ActorFromContext(ctx), req.DisplayName, req.PhotoURL)
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, actor)
}
