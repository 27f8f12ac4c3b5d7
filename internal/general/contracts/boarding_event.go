package contracts

import "time"

// BoardingConfirmedMessage is published once per successful (non-duplicate) confirmation.
// Exchange: ExchangeBoardingTopic, routing key RouteBoardingConfirmedPrefix + {line_id}.
type BoardingConfirmedMessage struct {
	RequestID          int64     `json:"request_id"`
	UserID             string    `json:"user_id"`
	LineID             string    `json:"line_id"`
	TotalConfirmations uint64    `json:"total_confirmations"`
	ConfirmedAt        time.Time `json:"confirmed_at"`
	Envelope
}

// BoardingRequestedMessage is published when a user files or replaces a request.
// Exchange: ExchangeBoardingTopic, routing key RouteBoardingRequestedPrefix + {line_id}.
type BoardingRequestedMessage struct {
	RequestID int64     `json:"request_id"`
	UserID    string    `json:"user_id"`
	LineID    string    `json:"line_id"`
	Origin    string    `json:"origin"`
	CreatedAt time.Time `json:"created_at"`
	Envelope
}
