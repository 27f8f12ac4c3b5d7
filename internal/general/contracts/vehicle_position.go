package contracts

import "time"

// VehiclePositionMessage is broadcast after every stored telemetry sample.
// Exchange: ExchangeVehicleFanout (fanout, no routing key).
type VehiclePositionMessage struct {
	VehicleID  string    `json:"vehicle_id"`
	LineID     *string   `json:"line_id,omitempty"`
	Location   GeoPoint  `json:"location"`
	SpeedMPS   *float64  `json:"speed_mps,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
	Source     string    `json:"source,omitempty"`
	Envelope
}
