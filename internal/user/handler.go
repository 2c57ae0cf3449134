package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/getsentry/sentry-go"

	"user-management/internal/audit"
	"user-management/internal/auth"
)

const maxJSONBodyBytes = 1 << 20

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

var (
	usernameRegex = regexp.MustCompile(`^[a-z0-9_.-]{3,32}$`)
	emailRegex    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// Store is what the handlers need from the repository.
type Store interface {
	GetByID(ctx context.Context, id int64) (User, error)
	List(ctx context.Context, params ListParams) ([]User, int64, error)
	Create(ctx context.Context, params CreateUserParams) (User, error)
	Update(ctx context.Context, id int64, params UpdateUserParams) (User, error)
	CredentialByUserID(ctx context.Context, userID int64) (auth.Credential, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
}

type Handler struct {
	store Store
	audit audit.Recorder
}

func NewHandler(store Store, recorder audit.Recorder) *Handler {
	return &Handler{store: store, audit: recorder}
}

// userView is the wire shape of a user, with the computed complete name.
type userView struct {
	User
	CompleteName string `json:"completeName"`
}

type pageResponse struct {
	TotalCount int64      `json:"totalCount"`
	Offset     int        `json:"offset"`
	Limit      int        `json:"limit"`
	Data       []userView `json:"data"`
}

// List handles GET /users with optional status filter and pagination.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	params := ListParams{Limit: defaultListLimit}

	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			writeDetail(w, http.StatusBadRequest, "Invalid offset")
			return
		}
		params.Offset = offset
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxListLimit {
			writeDetail(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		params.Limit = limit
	}
	if status := r.URL.Query().Get("status"); status != "" {
		if status != StatusActive && status != StatusInactive {
			writeDetail(w, http.StatusBadRequest, "Invalid status filter")
			return
		}
		params.Status = status
	}

	users, total, err := h.store.List(r.Context(), params)
	if err != nil {
		sentry.CaptureException(err)
		writeDetail(w, http.StatusInternalServerError, "Failed to list users")
		return
	}

	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, userView{User: u, CompleteName: u.CompleteName()})
	}

	writeJSON(w, http.StatusOK, pageResponse{
		TotalCount: total,
		Offset:     params.Offset,
		Limit:      params.Limit,
		Data:       views,
	})
}

// Get handles GET /users/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	u, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeDetail(w, http.StatusNotFound, "User not found")
			return
		}
		sentry.CaptureException(err)
		writeDetail(w, http.StatusInternalServerError, "Failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, userView{User: u, CompleteName: u.CompleteName()})
}

type registerRequest struct {
	Email      string `json:"email"`
	Mobile     string `json:"mobile"`
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName"`
	LastName   string `json:"lastName"`
	Role       string `json:"role"`
	Status     string `json:"status"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

// Register handles POST /users/register: profile plus credential in one shot.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body registerRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	body.Username = strings.ToLower(strings.TrimSpace(body.Username))
	if detail := validateRegistration(&body); detail != "" {
		writeDetail(w, http.StatusBadRequest, detail)
		return
	}
	if body.Status == "" {
		body.Status = StatusActive
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		sentry.CaptureException(err)
		writeDetail(w, http.StatusInternalServerError, "Failed to register user")
		return
	}

	_, err = h.store.Create(r.Context(), CreateUserParams{
		Email:        strings.TrimSpace(body.Email),
		Mobile:       strings.TrimSpace(body.Mobile),
		FirstName:    strings.TrimSpace(body.FirstName),
		MiddleName:   strings.TrimSpace(body.MiddleName),
		LastName:     strings.TrimSpace(body.LastName),
		Role:         strings.TrimSpace(body.Role),
		Status:       body.Status,
		Username:     body.Username,
		PasswordHash: hash,
	})
	if err != nil {
		h.audit.Record(r.Context(), audit.Entry{Username: body.Username, Action: audit.ActionRegisterUser, Outcome: audit.OutcomeFailed})
		if errors.Is(err, ErrDuplicate) {
			writeDetail(w, http.StatusBadRequest, "Email or username already registered")
			return
		}
		sentry.CaptureException(err)
		writeDetail(w, http.StatusInternalServerError, "Failed to register user")
		return
	}

	h.audit.Record(r.Context(), audit.Entry{Username: body.Username, Action: audit.ActionRegisterUser, Outcome: audit.OutcomeSuccess})
	writeJSON(w, http.StatusCreated, map[string]string{"message": "User created successfully"})
}

type updateRequest struct {
	Email      string `json:"email"`
	Mobile     string `json:"mobile"`
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName"`
	LastName   string `json:"lastName"`
	Role       string `json:"role"`
	Status     string `json:"status"`
}

// Update handles PUT /users/{id}: full profile replacement.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body updateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if detail := validateProfile(body.Email, body.Mobile, body.FirstName, body.LastName, body.Role, body.Status); detail != "" {
		writeDetail(w, http.StatusBadRequest, detail)
		return
	}

	u, err := h.store.Update(r.Context(), id, UpdateUserParams{
		Email:      strings.TrimSpace(body.Email),
		Mobile:     strings.TrimSpace(body.Mobile),
		FirstName:  strings.TrimSpace(body.FirstName),
		MiddleName: strings.TrimSpace(body.MiddleName),
		LastName:   strings.TrimSpace(body.LastName),
		Role:       strings.TrimSpace(body.Role),
		Status:     body.Status,
	})
	if err != nil {
		h.audit.Record(r.Context(), audit.Entry{UserID: &id, Action: audit.ActionUpdateUser, Outcome: audit.OutcomeFailed})
		switch {
		case errors.Is(err, ErrNotFound):
			writeDetail(w, http.StatusNotFound, "User not found")
		case errors.Is(err, ErrDuplicate):
			writeDetail(w, http.StatusBadRequest, "Email already registered")
		default:
			sentry.CaptureException(err)
			writeDetail(w, http.StatusInternalServerError, "Failed to update user")
		}
		return
	}

	h.audit.Record(r.Context(), audit.Entry{UserID: &id, Action: audit.ActionUpdateUser, Outcome: audit.OutcomeSuccess})
	writeJSON(w, http.StatusOK, userView{User: u, CompleteName: u.CompleteName()})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword handles POST /users/{id}/password. The current password
// must verify against the stored hash; on mismatch the hash stays untouched.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body changePasswordRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(body.NewPassword) < 8 {
		writeDetail(w, http.StatusBadRequest, "New password is too short")
		return
	}

	cred, err := h.store.CredentialByUserID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeDetail(w, http.StatusNotFound, "User not found")
			return
		}
		sentry.CaptureException(err)
		writeDetail(w, http.StatusInternalServerError, "Failed to change password")
		return
	}

	if !auth.CheckPassword(body.CurrentPassword, cred.PasswordHash) {
		h.audit.Record(r.Context(), audit.Entry{UserID: &id, Action: audit.ActionChangePassword, Outcome: audit.OutcomeFailed})
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeDetail(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}

	hash, err := auth.HashPassword(body.NewPassword)
	if err != nil {
		sentry.CaptureException(err)
		writeDetail(w, http.StatusInternalServerError, "Failed to change password")
		return
	}

	if err := h.store.UpdatePassword(r.Context(), id, hash); err != nil {
		h.audit.Record(r.Context(), audit.Entry{UserID: &id, Action: audit.ActionChangePassword, Outcome: audit.OutcomeFailed})
		sentry.CaptureException(err)
		writeDetail(w, http.StatusInternalServerError, "Failed to change password")
		return
	}

	h.audit.Record(r.Context(), audit.Entry{UserID: &id, Action: audit.ActionChangePassword, Outcome: audit.OutcomeSuccess})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

func validateRegistration(body *registerRequest) string {
	if detail := validateProfile(body.Email, body.Mobile, body.FirstName, body.LastName, body.Role, body.Status); detail != "" {
		return detail
	}
	if !usernameRegex.MatchString(body.Username) {
		return "Username format is invalid"
	}
	if len(body.Password) < 8 || len(body.Password) > 200 {
		return "Password format is invalid"
	}
	return ""
}

func validateProfile(email, mobile, firstName, lastName, role, status string) string {
	if !emailRegex.MatchString(strings.TrimSpace(email)) {
		return "Email format is invalid"
	}
	if n := len(strings.TrimSpace(mobile)); n < 10 || n > 11 {
		return "Mobile number format is invalid"
	}
	if strings.TrimSpace(firstName) == "" || strings.TrimSpace(lastName) == "" {
		return "First and last name are required"
	}
	if strings.TrimSpace(role) == "" {
		return "Role is required"
	}
	if status != "" && status != StatusActive && status != StatusInactive {
		return "Status must be active or inactive"
	}
	return ""
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		writeDetail(w, http.StatusBadRequest, "Invalid user id")
		return 0, false
	}
	return id, true
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
