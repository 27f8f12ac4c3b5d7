package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// --- Handler: GET /admin/overview ---

func (handler *AdminHTTPHandler) handleOverview(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	overview, err := handler.svc.Overview(ctxWithTimeout)
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, "failed to fetch overview", err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, overview)
}

// --- Handler: GET /admin/requests/active?page=X&page_size=Y ---

func (handler *AdminHTTPHandler) handleActiveRequests(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	query := r.URL.Query()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	page, err := handler.svc.ActiveRequests(ctxWithTimeout, query.Get("page"), query.Get("page_size"))
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, "failed to fetch active requests", err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, page)
}

// serviceError separates database failures from timeouts and everything else.
func (handler *AdminHTTPHandler) serviceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr):
		handler.httpError(ctx, w, http.StatusInternalServerError, "database error", err)
	case errors.Is(err, context.DeadlineExceeded):
		handler.httpError(ctx, w, http.StatusServiceUnavailable, "request timed out", err)
	default:
		handler.httpError(ctx, w, http.StatusInternalServerError, msg, err)
	}
}
