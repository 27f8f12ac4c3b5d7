package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bus-boarding/internal/domain/user"
	"bus-boarding/internal/general/jwt"
	"bus-boarding/internal/general/logger"
	"bus-boarding/internal/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// serviceTimeout bounds every service call made by a handler.
const serviceTimeout = 5 * time.Second

// VehicleHTTPHandler adapts HTTP requests to the VehicleService.
type VehicleHTTPHandler struct {
	svc    ports.VehicleService
	logger *logger.Logger
	auth   *jwt.Manager
}

// NewVehicleHTTPHandler wires an HTTP handler around the VehicleService.
func NewVehicleHTTPHandler(svc ports.VehicleService, logger *logger.Logger, auth *jwt.Manager) *VehicleHTTPHandler {
	return &VehicleHTTPHandler{svc: svc, logger: logger, auth: auth}
}

// RegisterRoutes mounts vehicle endpoints on the provided mux.
func (handler *VehicleHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /vehicles/update",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleDevice, user.RoleAdmin)(handler.handleUpdate),
	)
	mux.HandleFunc("GET /vehicles/nearby",
		jwt.AuthMiddlewareFunc(handler.auth)(handler.handleNearby),
	)
	mux.HandleFunc("GET /vehicles/{vehicle_id}/history",
		jwt.AuthMiddlewareFunc(handler.auth)(handler.handleHistory),
	)
}

// ----- general helpers -----

// jsonResponse encodes data as the JSON body of the response.
func (handler *VehicleHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
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

// httpError sends a JSON error response with a message.
func (handler *VehicleHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	if status >= 500 {
		action = "http_internal_error"
	} else if status == http.StatusBadRequest {
		action = "validation_failed"
	}
	handler.logger.Error(ctx, action, msg, err, nil)

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// serviceError maps a service error onto an HTTP status.
func (handler *VehicleHTTPHandler) serviceError(ctx context.Context, w http.ResponseWriter, err error) {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, ports.ErrInvalidInput):
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, ports.ErrNotFound):
		handler.httpError(ctx, w, http.StatusNotFound, "not found", err)
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

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *VehicleHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		reqID = uuid.NewString()
	}
	return handler.logger.WithRequestID(ctx, reqID)
}

// badParam reports an unparsable query parameter.
func badParam(name string, err error) error {
	return fmt.Errorf("%w: %s: %w", ports.ErrInvalidInput, name, err)
}
