package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"bus-boarding/internal/domain/user"
	"bus-boarding/internal/general/jwt"
	"bus-boarding/internal/general/logger"
	"bus-boarding/internal/ports"

	"github.com/google/uuid"
)

// AccountHTTPHandler adapts HTTP requests to the AccountService.
type AccountHTTPHandler struct {
	svc    ports.AccountService
	logger *logger.Logger
	auth   *jwt.Manager
}

// NewAccountHTTPHandler wires an HTTP handler around the AccountService.
func NewAccountHTTPHandler(svc ports.AccountService, logger *logger.Logger, auth *jwt.Manager) *AccountHTTPHandler {
	return &AccountHTTPHandler{svc: svc, logger: logger, auth: auth}
}

// RegisterRoutes mounts account endpoints on the provided mux.
func (handler *AccountHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /register", handler.handleRegister)
	mux.HandleFunc("POST /login", handler.handleLogin)
	mux.HandleFunc("GET /user", jwt.AuthMiddlewareFunc(handler.auth)(handler.handleProfile))
}

// --- Request DTOs (HTTP boundary) ---

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ----- Handler: POST /register -----

func (handler *AccountHTTPHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req registerRequest
	if err := decodeStrict(w, r, &req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid JSON: "+err.Error(), err)
		return
	}

	in := ports.RegisterInput{Name: req.Name, Email: req.Email, Password: req.Password}
	if strings.TrimSpace(req.Role) != "" {
		role, err := user.ParseRole(req.Role)
		if err != nil {
			handler.httpError(ctx, w, http.StatusBadRequest, "role must be one of: RIDER, DEVICE", err)
			return
		}
		in.Role = role
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.Register(ctxWithTimeout, in)
	if err != nil {
		switch {
		case errors.Is(err, ports.ErrInvalidInput):
			handler.httpError(ctxWithTimeout, w, http.StatusBadRequest, err.Error(), err)
		case errors.Is(err, ports.ErrEmailTaken):
			handler.httpError(ctxWithTimeout, w, http.StatusConflict, "email already registered", err)
		default:
			handler.httpError(ctxWithTimeout, w, http.StatusInternalServerError, "failed to register", err)
		}
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusCreated, res)
}

// ----- Handler: POST /login -----

func (handler *AccountHTTPHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req loginRequest
	if err := decodeStrict(w, r, &req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid JSON: "+err.Error(), err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "email and password are required", nil)
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.Login(ctxWithTimeout, ports.LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		if errors.Is(err, ports.ErrUnauthenticated) {
			handler.httpError(ctxWithTimeout, w, http.StatusUnauthorized, "invalid email or password", err)
			return
		}
		handler.httpError(ctxWithTimeout, w, http.StatusInternalServerError, "failed to log in", err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}

// ----- Handler: GET /user -----

func (handler *AccountHTTPHandler) handleProfile(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	profile, err := handler.svc.Profile(ctxWithTimeout, claims.Subject)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			handler.httpError(ctxWithTimeout, w, http.StatusNotFound, "user not found", err)
			return
		}
		handler.httpError(ctxWithTimeout, w, http.StatusInternalServerError, "failed to load profile", err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, profile)
}

// ----- general helpers -----

func decodeStrict(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (handler *AccountHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	buf, err := json.Marshal(data)
	if err != nil {
		handler.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

func (handler *AccountHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	if status >= 500 {
		action = "http_internal_error"
	}
	handler.logger.Error(ctx, action, msg, err, nil)

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

func (handler *AccountHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		reqID = uuid.NewString()
	}
	return handler.logger.WithRequestID(ctx, reqID)
}
