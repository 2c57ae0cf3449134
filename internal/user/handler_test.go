package user

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"user-management/internal/audit"
	"user-management/internal/auth"
)

type fakeStore struct {
	users       map[int64]User
	creds       map[int64]auth.Credential
	createErr   error
	createdWith *CreateUserParams
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: make(map[int64]User),
		creds: make(map[int64]auth.Credential),
	}
}

func (s *fakeStore) GetByID(_ context.Context, id int64) (User, error) {
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *fakeStore) List(_ context.Context, params ListParams) ([]User, int64, error) {
	users := make([]User, 0, len(s.users))
	for _, u := range s.users {
		if params.Status == "" || u.Status == params.Status {
			users = append(users, u)
		}
	}
	return users, int64(len(users)), nil
}

func (s *fakeStore) Create(_ context.Context, params CreateUserParams) (User, error) {
	if s.createErr != nil {
		return User{}, s.createErr
	}
	s.createdWith = &params
	id := int64(len(s.users) + 1)
	u := User{
		ID:        id,
		Email:     params.Email,
		Mobile:    params.Mobile,
		FirstName: params.FirstName,
		LastName:  params.LastName,
		Role:      params.Role,
		Status:    params.Status,
		CreatedAt: time.Now().UTC(),
	}
	s.users[id] = u
	s.creds[id] = auth.Credential{UserID: id, Username: params.Username, PasswordHash: params.PasswordHash}
	return u, nil
}

func (s *fakeStore) Update(_ context.Context, id int64, params UpdateUserParams) (User, error) {
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	u.Email = params.Email
	u.Mobile = params.Mobile
	u.FirstName = params.FirstName
	u.MiddleName = params.MiddleName
	u.LastName = params.LastName
	u.Role = params.Role
	u.Status = params.Status
	s.users[id] = u
	return u, nil
}

func (s *fakeStore) CredentialByUserID(_ context.Context, userID int64) (auth.Credential, error) {
	cred, ok := s.creds[userID]
	if !ok {
		return auth.Credential{}, ErrNotFound
	}
	return cred, nil
}

func (s *fakeStore) UpdatePassword(_ context.Context, userID int64, passwordHash string) error {
	cred, ok := s.creds[userID]
	if !ok {
		return ErrNotFound
	}
	cred.PasswordHash = passwordHash
	s.creds[userID] = cred
	return nil
}

type fakeRecorder struct {
	entries []audit.Entry
}

func (r *fakeRecorder) Record(_ context.Context, entry audit.Entry) {
	r.entries = append(r.entries, entry)
}

func newTestRouter(store *fakeStore, recorder *fakeRecorder) *http.ServeMux {
	handler := NewHandler(store, recorder)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /users", handler.List)
	mux.HandleFunc("GET /users/{id}", handler.Get)
	mux.HandleFunc("POST /users/register", handler.Register)
	mux.HandleFunc("PUT /users/{id}", handler.Update)
	mux.HandleFunc("POST /users/{id}/password", handler.ChangePassword)
	return mux
}

func postJSON(t *testing.T, mux *http.ServeMux, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func seedUser(t *testing.T, store *fakeStore, password string) User {
	t.Helper()

	hash, err := auth.HashPassword(password)
	require.NoError(t, err)

	u := User{ID: 1, Email: "call@example.com", Mobile: "0923111189", FirstName: "Call", MiddleName: "Me", LastName: "Maybe", Role: "HR", Status: StatusActive, CreatedAt: time.Now().UTC()}
	store.users[u.ID] = u
	store.creds[u.ID] = auth.Credential{UserID: u.ID, Username: "testuser", PasswordHash: hash}
	return u
}

func TestRegister_Success(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	recorder := &fakeRecorder{}
	mux := newTestRouter(store, recorder)

	rec := postJSON(t, mux, "/users/register", map[string]string{
		"email":     "new@example.com",
		"mobile":    "0912345678",
		"firstName": "New",
		"lastName":  "Person",
		"role":      "HR",
		"username":  "newperson",
		"password":  "longenoughpass",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, store.createdWith)
	assert.Equal(t, StatusActive, store.createdWith.Status)
	assert.True(t, auth.CheckPassword("longenoughpass", store.createdWith.PasswordHash))

	require.Len(t, recorder.entries, 1)
	assert.Equal(t, audit.ActionRegisterUser, recorder.entries[0].Action)
	assert.Equal(t, audit.OutcomeSuccess, recorder.entries[0].Outcome)
}

func TestRegister_Duplicate(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	store.createErr = ErrDuplicate
	recorder := &fakeRecorder{}
	mux := newTestRouter(store, recorder)

	rec := postJSON(t, mux, "/users/register", map[string]string{
		"email":     "dup@example.com",
		"mobile":    "0912345678",
		"firstName": "Dup",
		"lastName":  "User",
		"role":      "HR",
		"username":  "dupuser",
		"password":  "longenoughpass",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, recorder.entries, 1)
	assert.Equal(t, audit.OutcomeFailed, recorder.entries[0].Outcome)
}

func TestRegister_InvalidEmail(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	mux := newTestRouter(store, &fakeRecorder{})

	rec := postJSON(t, mux, "/users/register", map[string]string{
		"email":     "not-an-email",
		"mobile":    "0912345678",
		"firstName": "New",
		"lastName":  "Person",
		"role":      "HR",
		"username":  "newperson",
		"password":  "longenoughpass",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, store.createdWith)
}

func TestGetUser_NotFound(t *testing.T) {
	t.Parallel()
	mux := newTestRouter(newFakeStore(), &fakeRecorder{})

	req := httptest.NewRequest(http.MethodGet, "/users/42", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "User not found", body["detail"])
}

func TestGetUser_IncludesCompleteName(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	seedUser(t, store, "testpass")
	mux := newTestRouter(store, &fakeRecorder{})

	req := httptest.NewRequest(http.MethodGet, "/users/1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Call Me Maybe", body["completeName"])
}

func TestList_InvalidStatusFilter(t *testing.T) {
	t.Parallel()
	mux := newTestRouter(newFakeStore(), &fakeRecorder{})

	req := httptest.NewRequest(http.MethodGet, "/users?status=frozen", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChangePassword_WrongCurrentPassword(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	seedUser(t, store, "oldpassword")
	recorder := &fakeRecorder{}
	mux := newTestRouter(store, recorder)

	rec := postJSON(t, mux, "/users/1/password", map[string]string{
		"current_password": "wrongpassword",
		"new_password":     "brandnewpassword",
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The stored hash must be untouched.
	cred, err := store.CredentialByUserID(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword("oldpassword", cred.PasswordHash))

	require.Len(t, recorder.entries, 1)
	assert.Equal(t, audit.ActionChangePassword, recorder.entries[0].Action)
	assert.Equal(t, audit.OutcomeFailed, recorder.entries[0].Outcome)
}

func TestChangePassword_Success(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	seedUser(t, store, "oldpassword")
	recorder := &fakeRecorder{}
	mux := newTestRouter(store, recorder)

	rec := postJSON(t, mux, "/users/1/password", map[string]string{
		"current_password": "oldpassword",
		"new_password":     "brandnewpassword",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	cred, err := store.CredentialByUserID(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword("brandnewpassword", cred.PasswordHash))
	assert.False(t, auth.CheckPassword("oldpassword", cred.PasswordHash))

	require.Len(t, recorder.entries, 1)
	assert.Equal(t, audit.OutcomeSuccess, recorder.entries[0].Outcome)
}

func TestUpdateUser_Success(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	seedUser(t, store, "testpass")
	recorder := &fakeRecorder{}
	handler := NewHandler(store, recorder)

	mux := http.NewServeMux()
	mux.HandleFunc("PUT /users/{id}", handler.Update)

	payload, err := json.Marshal(map[string]string{
		"email":     "updated@example.com",
		"mobile":    "0912345678",
		"firstName": "Updated",
		"lastName":  "Name",
		"role":      "Admin",
		"status":    StatusInactive,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/users/1", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "updated@example.com", store.users[1].Email)
	assert.Equal(t, StatusInactive, store.users[1].Status)

	require.Len(t, recorder.entries, 1)
	assert.Equal(t, audit.ActionUpdateUser, recorder.entries[0].Action)
}
