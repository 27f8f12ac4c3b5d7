package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bus-boarding/internal/domain/user"
	"bus-boarding/internal/general/jwt"
	"bus-boarding/internal/general/logger"
	"bus-boarding/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userID = "0b6c1f7e-2d4a-4c9b-8e1f-3a5b7c9d1e2f"

type stubAccounts struct {
	registered []ports.RegisterInput
	err        error
}

func (s *stubAccounts) Register(_ context.Context, in ports.RegisterInput) (ports.AuthResult, error) {
	s.registered = append(s.registered, in)
	if s.err != nil {
		return ports.AuthResult{}, s.err
	}
	return ports.AuthResult{UserID: userID, Token: "tok", Role: in.Role}, nil
}

func (s *stubAccounts) Login(_ context.Context, in ports.LoginInput) (ports.AuthResult, error) {
	if in.Password != "secret" {
		return ports.AuthResult{}, ports.ErrUnauthenticated
	}
	return ports.AuthResult{UserID: userID, Token: "tok", Role: user.RoleRider}, nil
}

func (s *stubAccounts) Profile(_ context.Context, id string) (ports.ProfileView, error) {
	if id != userID {
		return ports.ProfileView{}, ports.ErrNotFound
	}
	return ports.ProfileView{ID: id, Name: "Ana", Email: "ana@example.com", Role: user.RoleRider}, nil
}

func setup(t *testing.T) (*stubAccounts, *jwt.Manager, *http.ServeMux) {
	t.Helper()
	svc := &stubAccounts{}
	mgr := jwt.NewManager("test-secret", time.Hour)
	mux := http.NewServeMux()
	NewAccountHTTPHandler(svc, logger.NewWithWriter("test", io.Discard), mgr).RegisterRoutes(mux)
	return svc, mgr, mux
}

func serve(mux *http.ServeMux, method, target, token, body string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestRegister(t *testing.T) {
	svc, _, mux := setup(t)

	rec := serve(mux, http.MethodPost, "/register", "", `{"name":"Ana","email":"ana@example.com","password":"secret","role":"DEVICE"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res ports.AuthResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "tok", res.Token)
	assert.Equal(t, user.RoleDevice, svc.registered[0].Role)

	rec = serve(mux, http.MethodPost, "/register", "", `{"name":"Bo","email":"bo@example.com","password":"secret"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, user.Role(""), svc.registered[1].Role, "the service picks the default role")
}

func TestRegisterErrors(t *testing.T) {
	svc, _, mux := setup(t)

	assert.Equal(t, http.StatusBadRequest, serve(mux, http.MethodPost, "/register", "", `{"email":"a@b.c","extra":1}`).Code)
	assert.Equal(t, http.StatusBadRequest, serve(mux, http.MethodPost, "/register", "", `{"email":"a@b.c","role":"PILOT"}`).Code)
	assert.Empty(t, svc.registered)

	svc.err = ports.ErrEmailTaken
	assert.Equal(t, http.StatusConflict, serve(mux, http.MethodPost, "/register", "", `{"email":"a@b.c","password":"x"}`).Code)

	svc.err = ports.ErrInvalidInput
	assert.Equal(t, http.StatusBadRequest, serve(mux, http.MethodPost, "/register", "", `{"email":"a@b.c","password":"x"}`).Code)

	svc.err = errors.New("db down")
	assert.Equal(t, http.StatusInternalServerError, serve(mux, http.MethodPost, "/register", "", `{"email":"a@b.c","password":"x"}`).Code)
}

func TestLogin(t *testing.T) {
	_, _, mux := setup(t)

	assert.Equal(t, http.StatusOK, serve(mux, http.MethodPost, "/login", "", `{"email":"ana@example.com","password":"secret"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(mux, http.MethodPost, "/login", "", `{"email":"ana@example.com","password":"guess"}`).Code)
	assert.Equal(t, http.StatusBadRequest, serve(mux, http.MethodPost, "/login", "", `{"email":"ana@example.com"}`).Code)
}

func TestProfile(t *testing.T) {
	_, mgr, mux := setup(t)

	assert.Equal(t, http.StatusUnauthorized, serve(mux, http.MethodGet, "/user", "", "").Code)

	token, _, err := mgr.IssueUserToken(userID, "ana@example.com", user.RoleRider)
	require.NoError(t, err)
	rec := serve(mux, http.MethodGet, "/user", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var profile ports.ProfileView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, "Ana", profile.Name)

	stranger, _, err := mgr.IssueUserToken("5e5e5e5e-0000-4000-8000-000000000000", "", user.RoleRider)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, serve(mux, http.MethodGet, "/user", stranger, "").Code)
}
