package api

import (
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/alicelabs/alice-chat/internal/authflow"
	"github.com/alicelabs/alice-chat/internal/identity"
)

// AuthHandler handles authentication and password-reset endpoints.
type AuthHandler struct {
	*Handler
	provider identity.Provider

	// views holds one auth view (and its reset flow) per client identity.
	views sync.Map // client ID -> *authflow.ViewState
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(base *Handler, provider identity.Provider) *AuthHandler {
	return &AuthHandler{Handler: base, provider: provider}
}

// RegisterRoutes registers auth routes.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", h.SignUp)
		r.Post("/signin", h.SignIn)
		r.Post("/signout", h.SignOut)
		r.Post("/guest", h.Guest)

		r.Get("/view", h.GetView)
		r.Post("/view/toggle", h.ToggleView)

		r.Route("/reset", func(r chi.Router) {
			r.Post("/start", h.StartReset)
			r.Post("/request", h.RequestCode)
			r.Post("/verify", h.VerifyCode)
			r.Post("/password", h.SetNewPassword)
			r.Post("/cancel", h.CancelReset)
		})
	})
}

// viewFor returns the auth view owned by the client, creating it on first
// use. The reset flow's completion callback feeds back into the view so a
// successful password update hides the reset UI.
func (h *AuthHandler) viewFor(clientID string) *authflow.ViewState {
	if v, ok := h.views.Load(clientID); ok {
		return v.(*authflow.ViewState)
	}

	var view *authflow.ViewState
	flow := authflow.NewResetFlow(h.provider, func() {
		view.CompletePasswordReset()
	})
	view = authflow.NewViewState(flow, nil)

	actual, _ := h.views.LoadOrStore(clientID, view)
	return actual.(*authflow.ViewState)
}

func (h *AuthHandler) clientView(w http.ResponseWriter, r *http.Request) (*authflow.ViewState, bool) {
	owner, ok := OwnerFromContext(r.Context())
	if !ok {
		Error(w, http.StatusInternalServerError, "client identity missing")
		return nil, false
	}
	return h.viewFor(owner.UserID), true
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp registers a new account with the identity provider.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	session, err := h.provider.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		writeProviderError(w, err)
		return
	}
	JSON(w, http.StatusOK, session)
}

// SignIn exchanges credentials for a session.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	session, err := h.provider.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeProviderError(w, err)
		return
	}
	JSON(w, http.StatusOK, session)
}

// SignOut revokes the caller's session.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		Error(w, http.StatusUnauthorized, "missing session token")
		return
	}
	if err := h.provider.SignOut(r.Context(), token); err != nil {
		writeProviderError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"signed_out": true})
}

// Guest establishes an anonymous guest identity. The middleware has already
// issued the cookie; this endpoint just reports the assigned ID.
func (h *AuthHandler) Guest(w http.ResponseWriter, r *http.Request) {
	owner, ok := OwnerFromContext(r.Context())
	if !ok || !owner.IsGuest() {
		Error(w, http.StatusBadRequest, "already signed in")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"guest_id": owner.UserID})
}

// GetView returns the auth screen's current presentation state.
func (h *AuthHandler) GetView(w http.ResponseWriter, r *http.Request) {
	view, ok := h.clientView(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, view.View())
}

// ToggleView flips between the sign-in and sign-up forms, cancelling the
// reset flow if it was visible.
func (h *AuthHandler) ToggleView(w http.ResponseWriter, r *http.Request) {
	view, ok := h.clientView(w, r)
	if !ok {
		return
	}
	view.ToggleSignInUp()
	JSON(w, http.StatusOK, view.View())
}

// StartReset shows the password reset flow.
func (h *AuthHandler) StartReset(w http.ResponseWriter, r *http.Request) {
	view, ok := h.clientView(w, r)
	if !ok {
		return
	}
	view.StartPasswordReset()
	JSON(w, http.StatusOK, view.View())
}

// CancelReset hides the reset flow and returns to the sign-in form.
func (h *AuthHandler) CancelReset(w http.ResponseWriter, r *http.Request) {
	view, ok := h.clientView(w, r)
	if !ok {
		return
	}
	view.BackToLogin()
	JSON(w, http.StatusOK, view.View())
}

// RequestCode runs the first reset step: check the email is registered and
// dispatch a one-time code to it.
func (h *AuthHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	view, ok := h.clientView(w, r)
	if !ok {
		return
	}
	if err := view.Flow().RequestCode(r.Context(), req.Email); err != nil {
		writeFlowError(w, err)
		return
	}
	JSON(w, http.StatusOK, view.View())
}

// VerifyCode runs the second reset step: validate the one-time code.
func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	view, ok := h.clientView(w, r)
	if !ok {
		return
	}
	if err := view.Flow().VerifyCode(r.Context(), req.Code); err != nil {
		writeFlowError(w, err)
		return
	}
	JSON(w, http.StatusOK, view.View())
}

// SetNewPassword runs the final reset step: update the password.
func (h *AuthHandler) SetNewPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	view, ok := h.clientView(w, r)
	if !ok {
		return
	}
	if err := view.Flow().SetNewPassword(r.Context(), req.Password); err != nil {
		writeFlowError(w, err)
		return
	}
	JSON(w, http.StatusOK, view.View())
}

// writeProviderError maps identity provider failures onto HTTP responses,
// passing the provider's human-readable message through to the user.
func writeProviderError(w http.ResponseWriter, err error) {
	var apiErr *identity.APIError
	if errors.As(err, &apiErr) {
		status := http.StatusBadGateway
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			status = apiErr.Status
		}
		Error(w, status, apiErr.Message)
		return
	}
	Error(w, http.StatusBadGateway, "identity provider unavailable")
}

// writeFlowError maps reset-flow failures onto HTTP responses.
func writeFlowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authflow.ErrEmailRequired),
		errors.Is(err, authflow.ErrCodeFormat),
		errors.Is(err, authflow.ErrPasswordRequired),
		errors.Is(err, authflow.ErrNotRegistered):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, authflow.ErrInFlight),
		errors.Is(err, authflow.ErrWrongStep):
		Error(w, http.StatusConflict, err.Error())
	default:
		writeProviderError(w, err)
	}
}
