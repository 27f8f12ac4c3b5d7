package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bus-boarding/internal/domain/geo"
	"bus-boarding/internal/ports"
)

// defaultRadiusKM applies when a nearby query names no radius.
const defaultRadiusKM = 2.0

// --- Request DTOs (HTTP boundary) ---

type updateRequest struct {
	VehicleID  string     `json:"vehicle_id"`
	Latitude   *float64   `json:"latitude"`
	Longitude  *float64   `json:"longitude"`
	Speed      *float64   `json:"speed"` // m/s
	LineID     *string    `json:"line_id"`
	RecordedAt *time.Time `json:"recorded_at"`
}

type updateResponse struct {
	Bus ports.PositionView `json:"bus"`
}

type historyResponse struct {
	VehicleID string               `json:"vehicle_id"`
	Positions []ports.PositionView `json:"positions"`
}

// ----- Handler: POST /vehicles/update -----

func (handler *VehicleHTTPHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		handler.httpError(ctx, w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
		return
	}

	// limit body size
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
	defer r.Body.Close()

	// decode strictly
	var req updateRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			handler.httpError(ctx, w, http.StatusRequestEntityTooLarge, "request body too large", err)
			return
		}
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid JSON: "+err.Error(), err)
		return
	}

	// required fields
	if strings.TrimSpace(req.VehicleID) == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "vehicle_id is required", nil)
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "latitude and longitude are required", nil)
		return
	}

	in := ports.IngestInput{
		VehicleID: req.VehicleID,
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		SpeedMPS:  req.Speed,
		LineID:    req.LineID,
		Source:    "http",
	}
	if req.RecordedAt != nil {
		in.RecordedAt = *req.RecordedAt
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	p, err := handler.svc.Ingest(ctxWithTimeout, in)
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusCreated, updateResponse{Bus: ports.NewPositionView(*p)})
}

// ----- Handler: GET /vehicles/nearby -----

func (handler *VehicleHTTPHandler) handleNearby(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	in, err := parseNearby(r)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	res, err := handler.svc.Nearby(ctxWithTimeout, in)
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}

// parseNearby reads latitude, longitude, radius_km (or radius) and line from the query string.
func parseNearby(r *http.Request) (ports.NearbyInput, error) {
	q := r.URL.Query()

	lat, err := strconv.ParseFloat(strings.TrimSpace(q.Get("latitude")), 64)
	if err != nil {
		return ports.NearbyInput{}, badParam("latitude", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(q.Get("longitude")), 64)
	if err != nil {
		return ports.NearbyInput{}, badParam("longitude", err)
	}
	center, err := geo.NewPoint(lat, lon)
	if err != nil {
		return ports.NearbyInput{}, badParam("center", err)
	}

	radiusKM := defaultRadiusKM
	raw := q.Get("radius_km")
	if raw == "" {
		raw = q.Get("radius")
	}
	if raw = strings.TrimSpace(raw); raw != "" {
		radiusKM, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return ports.NearbyInput{}, badParam("radius_km", err)
		}
		if radiusKM < 0 {
			return ports.NearbyInput{}, badParam("radius_km", geo.ErrNegativeRadius)
		}
	}

	return ports.NearbyInput{
		Center:       center,
		RadiusMeters: radiusKM * 1000,
		LineFilter:   q.Get("line"),
	}, nil
}

// ----- Handler: GET /vehicles/{vehicle_id}/history -----

func (handler *VehicleHTTPHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	vehicleID := strings.TrimSpace(r.PathValue("vehicle_id"))

	var since time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("since")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			handler.httpError(ctx, w, http.StatusBadRequest, "since must be an RFC3339 timestamp", err)
			return
		}
		since = t
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	positions, err := handler.svc.History(ctxWithTimeout, vehicleID, since)
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	out := historyResponse{VehicleID: vehicleID, Positions: make([]ports.PositionView, 0, len(positions))}
	for _, p := range positions {
		out.Positions = append(out.Positions, ports.NewPositionView(p))
	}
	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, out)
}
