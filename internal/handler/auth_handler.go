package handler

import (
	"net/http"
	"time"

	"go-token-gate/internal/model"
	"go-token-gate/internal/service"
	"go-token-gate/pkg/apierror"
)

const refreshCookieName = "refreshToken"

type AuthHandler struct {
	auth         *service.AuthService
	tokens       *service.TokenService
	cookieSecure bool
}

func NewAuthHandler(auth *service.AuthService, tokens *service.TokenService, cookieSecure bool) *AuthHandler {
	return &AuthHandler{auth: auth, tokens: tokens, cookieSecure: cookieSecure}
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="token-gate"`)
		writeError(w, apierror.Wrap(model.ErrCredentialInvalid, "INVALID_CREDENTIALS", "basic credentials are required", http.StatusUnauthorized))
		return
	}

	session, err := h.auth.SignIn(username, password)
	if err != nil {
		w.Header().Set("WWW-Authenticate", `Basic realm="token-gate"`)
		writeError(w, err)
		return
	}

	http.SetCookie(w, h.refreshCookie(session.RefreshToken, h.tokens.RefreshTTL()))
	writeSuccess(w, http.StatusOK, model.SignInResponse{
		AccessToken: session.AccessToken,
		User:        session.User,
	})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	accessToken, err := h.tokens.RefreshSession(refreshTokenFromCookie(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.RefreshResponse{AccessToken: accessToken})
}

// Logout always succeeds and always clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.tokens.EndSession(refreshTokenFromCookie(r))

	http.SetCookie(w, h.refreshCookie("", -1))
	writeSuccess(w, http.StatusOK, model.MessageResponse{Message: "Successfully logged out."})
}

// refreshCookie builds the refresh cookie; a negative maxAge deletes it.
func (h *AuthHandler) refreshCookie(value string, maxAge time.Duration) *http.Cookie {
	cookie := &http.Cookie{
		Name:     refreshCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}

	if maxAge < 0 {
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
	} else {
		cookie.MaxAge = int(maxAge.Seconds())
		cookie.Expires = time.Now().Add(maxAge)
	}

	return cookie
}

func refreshTokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
