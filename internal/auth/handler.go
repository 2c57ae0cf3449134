package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
)

const maxJSONBodyBytes = 1 << 20

// Handler exposes the login and refresh endpoints.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Login handles POST /auth/token. Credentials arrive form-encoded per the
// OAuth2 password flow.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")

	pair, err := h.service.Authenticate(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeUnauthorized(w, "Incorrect username or password")
			return
		}

		sentry.CaptureException(err)
		writeDetail(w, http.StatusInternalServerError, "Failed to issue tokens")
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// Refresh handles POST /auth/token/refresh. The route sits behind the access
// token middleware; the refresh token itself travels in the JSON body.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body refreshRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	pair, err := h.service.Rotate(r.Context(), strings.TrimSpace(body.RefreshToken))
	if err != nil {
		writeRefreshError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// writeRefreshError maps rotation failures: 401 for signature/claims-level
// problems, 400 for request-level ones (missing token, missing jti, revoked
// or unknown record).
func writeRefreshError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidOrMissingToken):
		writeDetail(w, http.StatusBadRequest, "Invalid or missing refresh token")
	case errors.Is(err, ErrTokenExpired):
		writeUnauthorized(w, "Token has expired")
	case errors.Is(err, ErrTokenMalformed):
		writeUnauthorized(w, "Invalid token")
	case errors.Is(err, ErrWrongTokenType):
		writeUnauthorized(w, "Invalid token type")
	case errors.Is(err, ErrMissingSubject):
		writeUnauthorized(w, "User not found in refresh token")
	case errors.Is(err, ErrMissingJTI):
		writeDetail(w, http.StatusBadRequest, "JTI not found in token")
	case errors.Is(err, ErrRefreshNotFound), errors.Is(err, ErrRefreshAlreadyInvalid):
		writeDetail(w, http.StatusBadRequest, "Refresh token is invalid or expired")
	default:
		sentry.CaptureException(err)
		writeDetail(w, http.StatusInternalServerError, "Failed to refresh token")
	}
}

// writeAccessTokenError maps Authorize failures for protected routes.
func writeAccessTokenError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidOrMissingToken):
		writeUnauthorized(w, "Invalid or missing access token")
	case errors.Is(err, ErrTokenExpired):
		writeUnauthorized(w, "Token has expired")
	case errors.Is(err, ErrTokenMalformed):
		writeUnauthorized(w, "Invalid token")
	case errors.Is(err, ErrWrongTokenType):
		writeUnauthorized(w, "Invalid token type")
	case errors.Is(err, ErrMissingSubject):
		writeUnauthorized(w, "User ID not found in token")
	case errors.Is(err, ErrUserNotFound):
		writeUnauthorized(w, "User not found")
	default:
		sentry.CaptureException(err)
		writeDetail(w, http.StatusInternalServerError, "Failed to verify token")
	}
}

func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeDetail(w, http.StatusUnauthorized, detail)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
