package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.readiness != nil {
		if err := h.readiness(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", "dependencies unavailable")
			return
		}
	}
	writeMessage(w, http.StatusOK, "ready")
}

// login starts the authorization-code flow by redirecting the user agent to
// the provider's authorize endpoint.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	redirect, err := h.service.Login(r.Context())
	if err != nil {
		status, code, msg := mapDomainError(err)
		logHTTPOperationError(r.Context(), "login", status, code, msg, err)
		writeError(w, status, code, msg)
		return
	}
	http.Redirect(w, r, redirect.RedirectURL, http.StatusFound)
}

// callback finishes the flow: trade the code for internal tokens, set the
// token cookies, and send the browser back to the client application.
func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	pair, err := h.service.Callback(r.Context(), code, state)
	if err != nil {
		status, errCode, msg := mapDomainError(err)
		logHTTPOperationError(r.Context(), "callback", status, errCode, msg, err)
		writeError(w, status, errCode, msg)
		return
	}

	h.setAuthCookies(w, pair.AccessToken, pair.RefreshToken)
	http.Redirect(w, r, h.cfg.ClientAppURL, http.StatusFound)
}

// refresh rotates the token pair. The refresh token arrives in the HttpOnly
// cookie; a bearer header or JSON body field is accepted as a fallback for
// non-browser callers.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := cookieValue(r, refreshTokenCookie)
	if refreshToken == "" {
		refreshToken, _ = bearerTokenFromHeader(r.Header.Get("Authorization"))
	}
	if refreshToken == "" {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := decodeBody(r, &body); err == nil {
			refreshToken = strings.TrimSpace(body.RefreshToken)
		}
	}
	if refreshToken == "" {
		writeError(w, http.StatusUnauthorized, "REFRESH_FAILED", "missing refresh token")
		return
	}

	pair, err := h.service.Refresh(r.Context(), refreshToken)
	if err != nil {
		status, code, msg := mapDomainError(err)
		logHTTPOperationError(r.Context(), "refresh", status, code, msg, err)
		writeError(w, status, code, msg)
		return
	}

	h.setAuthCookies(w, pair.AccessToken, pair.RefreshToken)
	writeSuccess(w, http.StatusOK, map[string]any{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

// logout clears the token cookies and hands the client the provider logout
// URL it must visit to end the provider-side session.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	instruction, err := h.service.Logout(r.Context())
	if err != nil {
		status, code, msg := mapDomainError(err)
		logHTTPOperationError(r.Context(), "logout", status, code, msg, err)
		writeError(w, status, code, msg)
		return
	}

	h.clearAuthCookies(w)
	writeSuccess(w, http.StatusOK, map[string]any{
		"message":    instruction.Message,
		"logout_url": instruction.LogoutURL,
	})
}

// me resolves the caller's profile from the access token, taken from the
// Authorization header or the access token cookie.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	accessToken, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
	if err != nil {
		accessToken = cookieValue(r, accessTokenCookie)
	}
	if accessToken == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing access token")
		return
	}

	user, err := h.service.GetAuthenticatedUser(r.Context(), accessToken)
	if err != nil {
		status, code, msg := mapDomainError(err)
		logHTTPOperationError(r.Context(), "me", status, code, msg, err)
		writeError(w, status, code, msg)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"name":    user.Name,
		"picture": user.Picture,
	})
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}
