package websocket

import (
	"context"
	"encoding/json"
	"time"

	"bus-boarding/internal/domain/vehicle"
	"bus-boarding/internal/general/contracts"
	"bus-boarding/internal/general/rabbitmq"

	"github.com/gorilla/websocket"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Event is the frame pushed to live feed clients.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type authReply struct {
	Type      string `json:"type"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	LineID    string `json:"line_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

func authError(msg string) authReply {
	return authReply{Type: "auth_error", Error: msg}
}

func authSuccess(userID, line string) authReply {
	return authReply{
		Type:      "auth_success",
		Success:   true,
		UserID:    userID,
		LineID:    line,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// writeDirect writes one JSON frame before the writer goroutine exists.
func (feed *LineFeed) writeDirect(conn *websocket.Conn, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// Broadcast queues an event for every subscriber of line (case-insensitive). Slow subscribers miss
// frames instead of blocking the others. It returns the number of subscribers reached.
func (feed *LineFeed) Broadcast(line string, ev Event) int {
	payload, err := json.Marshal(ev)
	if err != nil {
		feed.logger.Error(context.Background(), "ws_event_encode_failed", "Failed to encode live feed event", err, nil)
		return 0
	}

	feed.mu.RLock()
	defer feed.mu.RUnlock()

	sent := 0
	for sub := range feed.subs[vehicle.NormalizeLine(line)] {
		select {
		case sub.send <- payload:
			sent++
		case <-sub.done:
		default:
		}
	}
	return sent
}

// HandleVehiclePosition is a rabbitmq.Handler for the live feed queue.
// Samples without a line reach nobody and are acked.
func (feed *LineFeed) HandleVehiclePosition(ctx context.Context, d amqp.Delivery) error {
	msg, err := rabbitmq.DecodeJSON[contracts.VehiclePositionMessage](d)
	if err != nil {
		feed.logger.Error(ctx, "ws_feed_decode_failed", "Dropping malformed vehicle position message", err, nil)
		return err
	}

	line := lineOf(msg.LineID)
	if line == "" {
		return nil
	}
	feed.Broadcast(line, Event{Type: "vehicle_update", Data: msg})
	return nil
}

// HandleBoardingConfirmed is a rabbitmq.Handler for the confirmation queue. It pushes
// the new confirmation total to the subscribers of the line.
func (feed *LineFeed) HandleBoardingConfirmed(ctx context.Context, d amqp.Delivery) error {
	msg, err := rabbitmq.DecodeJSON[contracts.BoardingConfirmedMessage](d)
	if err != nil {
		feed.logger.Error(ctx, "ws_feed_decode_failed", "Dropping malformed boarding confirmation", err, nil)
		return err
	}

	feed.Broadcast(msg.LineID, Event{Type: "demand_update", Data: map[string]any{
		"line_id":             msg.LineID,
		"total_confirmations": msg.TotalConfirmations,
		"confirmed_at":        msg.ConfirmedAt,
	}})
	return nil
}
