package ports

import (
	"context"
	"time"

	"bus-boarding/internal/domain/boarding"
	"bus-boarding/internal/domain/eta"
	"bus-boarding/internal/domain/geo"
	"bus-boarding/internal/domain/user"
	"bus-boarding/internal/domain/vehicle"
)

// ----- DTOs for Vehicle Service -----

// IngestInput is one raw telemetry sample from any source (HTTP, NATS, GTFS-RT).
type IngestInput struct {
	VehicleID  string
	Latitude   float64
	Longitude  float64
	SpeedMPS   *float64
	LineID     *string
	RecordedAt time.Time // zero means "now"
	Source     string
}

// NearbyInput is the validated input for a nearby query.
type NearbyInput struct {
	Center       geo.Point
	RadiusMeters float64
	LineFilter   string
}

// ETAView is the wire form of an arrival estimate.
type ETAView struct {
	Seconds       *float64 `json:"seconds"`
	Display       string   `json:"display"`
	Indeterminate bool     `json:"indeterminate"`
}

// BusView is one vehicle in a nearby result.
type BusView struct {
	BusID          string    `json:"bus_id"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	SpeedMPS       *float64  `json:"speed"`
	LineID         *string   `json:"line_id"`
	RecordedAt     time.Time `json:"recorded_at"`
	DistanceMeters float64   `json:"distance_m"`
	ETA            ETAView   `json:"eta"`
}

// NearbyResult is returned by VehicleService.Nearby.
type NearbyResult struct {
	Buses      []BusView `json:"buses"`
	LastUpdate time.Time `json:"lastUpdate"`
}

// PositionView is the wire form of a stored sample.
type PositionView struct {
	ID         int64     `json:"id"`
	VehicleID  string    `json:"vehicle_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	SpeedMPS   *float64  `json:"speed"`
	LineID     *string   `json:"line_id"`
	RecordedAt time.Time `json:"recorded_at"`
}

// NewPositionView maps a domain sample to its wire form.
func NewPositionView(p vehicle.Position) PositionView {
	return PositionView{
		ID:         p.ID,
		VehicleID:  p.VehicleID,
		Latitude:   p.Point.Latitude,
		Longitude:  p.Point.Longitude,
		SpeedMPS:   p.SpeedMPS,
		LineID:     p.LineID,
		RecordedAt: p.RecordedAt,
	}
}

// NewBusView maps a ranked sample to its wire form, attaching the arrival estimate.
func NewBusView(n vehicle.Nearby) BusView {
	d := n.DistanceMeters
	e := eta.Compute(&d, n.SpeedMPS)
	view := ETAView{Display: e.Display(), Indeterminate: e.Indeterminate}
	if !e.Indeterminate {
		s := e.Seconds
		view.Seconds = &s
	}
	return BusView{
		BusID:          n.VehicleID,
		Latitude:       n.Point.Latitude,
		Longitude:      n.Point.Longitude,
		SpeedMPS:       n.SpeedMPS,
		LineID:         n.LineID,
		RecordedAt:     n.RecordedAt,
		DistanceMeters: n.DistanceMeters,
		ETA:            view,
	}
}

// ----- Vehicle Service Interface -----

// VehicleService exposes the position store and the nearest-vehicle query engine.
type VehicleService interface {
	Ingest(ctx context.Context, in IngestInput) (*vehicle.Position, error)
	Nearby(ctx context.Context, in NearbyInput) (NearbyResult, error)
	History(ctx context.Context, vehicleID string, since time.Time) ([]vehicle.Position, error)
}

// ---------------------------------------------------------------------------------------------------------------

// ----- DTOs for Boarding Service -----

// CreateRequestInput is the validated input for POST /requests.
type CreateRequestInput struct {
	UserID string
	Origin string
	LineID string
}

// CreateRequestResult is returned by BoardingService.CreateOrReplace.
type CreateRequestResult struct {
	ID       int64  `json:"id"`
	Message  string `json:"message"`
	Replaced bool   `json:"-"`
}

// ConfirmInput is the validated input for PUT /requests/current.
type ConfirmInput struct {
	UserID string
	LineID string
}

// RequestView is the wire form of a boarding request.
type RequestView struct {
	ID          int64      `json:"id"`
	UserID      string     `json:"user_id"`
	Origin      string     `json:"origin"`
	LineID      string     `json:"line_id"`
	State       string     `json:"state"`
	Requested   bool       `json:"requested"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// NewRequestView maps a domain request to its wire form.
func NewRequestView(r *boarding.Request) RequestView {
	return RequestView{
		ID:          r.ID,
		UserID:      r.UserID,
		Origin:      r.Origin,
		LineID:      r.LineID,
		State:       r.State.String(),
		Requested:   r.Requested(),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		ConfirmedAt: r.ConfirmedAt,
	}
}

// ConfirmResult is returned by BoardingService.Confirm.
type ConfirmResult struct {
	Message   string      `json:"message"`
	Request   RequestView `json:"request"`
	Duplicate bool        `json:"duplicate"`
}

// ----- Boarding Service Interface -----

// BoardingService exposes the request lifecycle manager and the demand counter.
type BoardingService interface {
	CreateOrReplace(ctx context.Context, in CreateRequestInput) (CreateRequestResult, error)
	Current(ctx context.Context, userID string) (*boarding.Request, error)
	Confirm(ctx context.Context, in ConfirmInput) (ConfirmResult, error)
	Demand(ctx context.Context, lineID string) (*boarding.LineDemand, error)
}

// ---------------------------------------------------------------------------------------------------------------

// ----- DTOs for Account Service -----

// RegisterInput is the validated input for POST /register.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     user.Role
}

// LoginInput is the validated input for POST /login.
type LoginInput struct {
	Email    string
	Password string
}

// AuthResult carries an issued bearer token.
type AuthResult struct {
	UserID    string    `json:"id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Role      user.Role `json:"role"`
}

// ProfileView is the wire form of GET /user.
type ProfileView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      user.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ----- Account Service Interface -----

// AccountService issues and describes bearer credentials.
type AccountService interface {
	Register(ctx context.Context, in RegisterInput) (AuthResult, error)
	Login(ctx context.Context, in LoginInput) (AuthResult, error)
	Profile(ctx context.Context, userID string) (ProfileView, error)
}

// ---------------------------------------------------------------------------------------------------------------

// EventPublisher publishes a pre-encoded message to a broker exchange.
type EventPublisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// ---------------------------------------------------------------------------------------------------------------

// ----- DTOs for the operations board -----

// OverviewResult is the payload of GET /admin/overview.
type OverviewResult struct {
	Timestamp time.Time `json:"timestamp"`
	Metrics   struct {
		ActiveRequests     int `json:"active_requests"`
		RequestsToday      int `json:"requests_today"`
		ConfirmationsToday int `json:"confirmations_today"`
		ReportingVehicles  int `json:"reporting_vehicles"`
	} `json:"metrics"`
	TopLines []LineActivityView `json:"top_lines"`
}

// LineActivityView is the wire form of LineActivity.
type LineActivityView struct {
	LineID             string `json:"line_id"`
	PendingRequests    int    `json:"pending_requests"`
	TotalConfirmations uint64 `json:"total_confirmations"`
}

// ActiveRequestsResult is one page of GET /admin/requests/active.
type ActiveRequestsResult struct {
	Requests   []RequestView `json:"requests"`
	TotalCount int           `json:"total_count"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
}

// ----- Admin Service Interface -----

// AdminService exposes the operations board.
type AdminService interface {
	Overview(ctx context.Context) (OverviewResult, error)
	ActiveRequests(ctx context.Context, page, pageSize string) (ActiveRequestsResult, error)
}
