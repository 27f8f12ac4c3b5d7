package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"bus-boarding/internal/ports"
)

// serviceTimeout bounds every service call made by a handler.
const serviceTimeout = 5 * time.Second

// --- Request DTOs (HTTP boundary) ---

type createRequestRequest struct {
	Origin      string     `json:"origin"`
	Destination string     `json:"destination"` // line the rider waits for
	LineID      string     `json:"line_id"`     // alias of destination
	Requested   *bool      `json:"requested"`
	Timestamp   *time.Time `json:"timestamp"` // accepted, server time wins
}

type confirmRequest struct {
	LineID       string `json:"line_id"`
	TripHeadsign string `json:"trip_headsign"` // alias of line_id
}

// ----- Handler: POST /requests -----

func (handler *BoardingHTTPHandler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req createRequestRequest
	if !handler.decodeStrict(ctx, w, r, &req) {
		return
	}

	ctx, sub, ok := handler.subject(ctx, r)
	if !ok {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	// validate the body
	line := strings.TrimSpace(req.Destination)
	if line == "" {
		line = strings.TrimSpace(req.LineID)
	}
	switch {
	case strings.TrimSpace(req.Origin) == "":
		handler.httpError(ctx, w, http.StatusBadRequest, "origin is required", nil)
		return
	case line == "":
		handler.httpError(ctx, w, http.StatusBadRequest, "destination is required", nil)
		return
	case req.Requested == nil || !*req.Requested:
		handler.httpError(ctx, w, http.StatusBadRequest, "requested must be true", nil)
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	res, err := handler.svc.CreateOrReplace(ctxWithTimeout, ports.CreateRequestInput{
		UserID: sub,
		Origin: req.Origin,
		LineID: line,
	})
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusCreated, res)
}

// ----- Handler: GET /requests/current -----

func (handler *BoardingHTTPHandler) handleGetCurrent(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	ctx, sub, ok := handler.subject(ctx, r)
	if !ok {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	req, err := handler.svc.Current(ctxWithTimeout, sub)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			handler.httpError(ctxWithTimeout, w, http.StatusNotFound, "no boarding request", nil)
			return
		}
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, ports.NewRequestView(req))
}

// ----- Handler: PUT /requests/current -----

func (handler *BoardingHTTPHandler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req confirmRequest
	if !handler.decodeStrict(ctx, w, r, &req) {
		return
	}

	ctx, sub, ok := handler.subject(ctx, r)
	if !ok {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	line := strings.TrimSpace(req.LineID)
	if line == "" {
		line = strings.TrimSpace(req.TripHeadsign)
	}
	if line == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "line_id is required", nil)
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	res, err := handler.svc.Confirm(ctxWithTimeout, ports.ConfirmInput{UserID: sub, LineID: line})
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}

// ----- Handler: GET /lines/{line_id}/demand -----

func (handler *BoardingHTTPHandler) handleDemand(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	d, err := handler.svc.Demand(ctxWithTimeout, r.PathValue("line_id"))
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, d)
}

// ----- Handler: GET /health -----

func (handler *BoardingHTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	type resp struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := handler.db.Ping(ctx); err != nil {
		handler.logger.Error(ctx, "health_check_failed", "Database ping failed", err, nil)
		handler.jsonResponse(ctx, w, http.StatusServiceUnavailable, resp{Status: "degraded", Database: "unreachable"})
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, resp{Status: "ok", Database: "ok"})
}
