package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"bus-boarding/internal/domain/user"
	"bus-boarding/internal/general/jwt"
	"bus-boarding/internal/general/logger"
	"bus-boarding/internal/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pinger reports database reachability. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BoardingHTTPHandler adapts HTTP requests to the BoardingService.
type BoardingHTTPHandler struct {
	svc    ports.BoardingService
	logger *logger.Logger
	auth   *jwt.Manager
	db     Pinger
}

// NewBoardingHTTPHandler wires an HTTP handler around the BoardingService.
func NewBoardingHTTPHandler(svc ports.BoardingService, logger *logger.Logger, auth *jwt.Manager, db Pinger) *BoardingHTTPHandler {
	return &BoardingHTTPHandler{svc: svc, logger: logger, auth: auth, db: db}
}

// RegisterRoutes mounts boarding endpoints on the provided mux.
func (handler *BoardingHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /requests",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleRider)(handler.handleCreateRequest),
	)
	mux.HandleFunc("GET /requests/current",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleRider)(handler.handleGetCurrent),
	)
	mux.HandleFunc("PUT /requests/current",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleRider)(handler.handleConfirm),
	)
	mux.HandleFunc("GET /lines/{line_id}/demand",
		jwt.AuthMiddlewareFunc(handler.auth)(handler.handleDemand),
	)

	mux.HandleFunc("GET /health", handler.handleHealth)
}

// ----- general helpers -----

// jsonResponse encodes data as the JSON body of the response.
func (handler *BoardingHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	// encode to buffer first so we can control status on failure
	buf := []byte("{}")
	if data != nil {
		var err error
		buf, err = json.Marshal(data)
		if err != nil {
			handler.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

// httpError sends a JSON error response with a message.
func (handler *BoardingHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	if status >= 500 {
		action = "http_internal_error"
	} else if status == http.StatusBadRequest {
		action = "validation_failed"
	} else if status == http.StatusUnsupportedMediaType {
		action = "unsupported_media_type"
	}
	if status >= 500 || (err != nil && status != http.StatusNotFound) {
		handler.logger.Error(ctx, action, msg, err, nil)
	}

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// serviceError maps a service error onto an HTTP status.
func (handler *BoardingHTTPHandler) serviceError(ctx context.Context, w http.ResponseWriter, err error) {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, ports.ErrInvalidInput):
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, ports.ErrNoActiveRequest):
		handler.httpError(ctx, w, http.StatusNotFound, "no active boarding request", nil)
	case errors.Is(err, ports.ErrNotFound):
		handler.httpError(ctx, w, http.StatusNotFound, "not found", nil)
	case errors.Is(err, ports.ErrConflict):
		handler.httpError(ctx, w, http.StatusConflict, "concurrent update, try again", err)
	case errors.Is(err, context.DeadlineExceeded):
		handler.httpError(ctx, w, http.StatusServiceUnavailable, "request timed out", err)
	case errors.As(err, &pgErr):
		handler.httpError(ctx, w, http.StatusInternalServerError, "database error", err)
	default:
		handler.httpError(ctx, w, http.StatusInternalServerError, "internal error", err)
	}
}

// decodeStrict reads a JSON body of at most 1 MiB, rejecting unknown fields.
// It writes the error response itself and reports whether decoding succeeded.
func (handler *BoardingHTTPHandler) decodeStrict(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	// check the content type
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		handler.httpError(ctx, w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			handler.httpError(ctx, w, http.StatusRequestEntityTooLarge, "request body too large", err)
			return false
		}
		handler.httpError(ctx, w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err), err)
		return false
	}
	return true
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *BoardingHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		reqID = uuid.NewString()
	}
	return handler.logger.WithRequestID(ctx, reqID)
}

// subject returns the authenticated user id and tags ctx with it.
func (handler *BoardingHTTPHandler) subject(ctx context.Context, r *http.Request) (context.Context, string, bool) {
	claims := jwt.RequireClaims(r)
	if claims == nil || strings.TrimSpace(claims.Subject) == "" {
		return ctx, "", false
	}
	sub := strings.TrimSpace(claims.Subject)
	return handler.logger.WithUserID(ctx, sub), sub, true
}
