package websocket

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"bus-boarding/internal/domain/vehicle"
	"bus-boarding/internal/general/jwt"
	"bus-boarding/internal/general/logger"
	"bus-boarding/internal/general/metrics"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout   = 5 * time.Second
	wsCloseAckWindow = 2 * time.Second
	authTimeout      = 10 * time.Second
	pongWait         = 60 * time.Second
	pingEvery        = 30 * time.Second
	sendBuffer       = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// LineFeed pushes vehicle updates to websocket clients subscribed to one line.
type LineFeed struct {
	logger  *logger.Logger
	jwtMgr  *jwt.Manager
	metrics *metrics.Collector

	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{} // normalized line -> subscribers
}

// subscriber is one authenticated connection. Only its writer goroutine writes to conn.
type subscriber struct {
	conn *websocket.Conn
	line string
	send chan []byte
	once sync.Once
	done chan struct{}
}

// NewLineFeed creates a LineFeed that authenticates clients with jwtMgr.
func NewLineFeed(logger *logger.Logger, jwtMgr *jwt.Manager, metrics *metrics.Collector) *LineFeed {
	return &LineFeed{
		logger:  logger,
		jwtMgr:  jwtMgr,
		metrics: metrics,
		subs:    make(map[string]map[*subscriber]struct{}),
	}
}

// ConnectLine handles GET /ws/lines/{line_id}. The first frame must be
// {"type":"auth","token":"Bearer <jwt>"} and arrive within authTimeout.
func (feed *LineFeed) ConnectLine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	line := vehicle.NormalizeLine(r.PathValue("line_id"))
	if line == "" {
		http.Error(w, `{"error":"line_id is required"}`, http.StatusBadRequest)
		return
	}

	// 1) upgrade HTTP -> WS
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		feed.logger.Error(ctx, "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return
	}
	defer conn.Close()

	// 2) authenticate the first frame
	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(authTimeout))
	mt, first, err := conn.ReadMessage()
	if err != nil {
		feed.logger.Error(ctx, "ws_auth_read_failed", "Failed to read auth message", err, nil)
		feed.writeDirect(conn, authError("authentication timeout"))
		return
	}
	if mt != websocket.TextMessage {
		feed.writeDirect(conn, authError("auth message must be in text format"))
		return
	}
	res, err := jwt.ValidateWSAuth(first, feed.jwtMgr)
	if err != nil {
		feed.logger.Error(ctx, "ws_auth_failed", "Invalid auth message or token", err, nil)
		feed.writeDirect(conn, authError("authentication failed: invalid token"))
		return
	}
	if err := feed.writeDirect(conn, authSuccess(res.Claims.Subject, line)); err != nil {
		return
	}

	// 3) register and start the writer
	sub := &subscriber{conn: conn, line: line, send: make(chan []byte, sendBuffer), done: make(chan struct{})}
	feed.add(sub)
	defer feed.remove(sub)

	feed.logger.Info(ctx, "ws_connected", "Live line feed connected", map[string]any{
		"user_id": res.Claims.Subject,
		"line_id": line,
	})

	go feed.writeLoop(sub)

	// 4) read loop only detects close and keeps pongs flowing
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				feed.logger.Error(ctx, "ws_unexpected_close", "Live feed connection closed unexpectedly", err, map[string]any{
					"line_id": line,
				})
			}
			return
		}
	}
}

// Subscribers returns the number of open connections for line.
func (feed *LineFeed) Subscribers(line string) int {
	feed.mu.RLock()
	defer feed.mu.RUnlock()
	return len(feed.subs[vehicle.NormalizeLine(line)])
}

func (feed *LineFeed) add(sub *subscriber) {
	feed.mu.Lock()
	set, ok := feed.subs[sub.line]
	if !ok {
		set = make(map[*subscriber]struct{})
		feed.subs[sub.line] = set
	}
	set[sub] = struct{}{}
	feed.mu.Unlock()
	feed.metrics.LiveSubscribers.Inc()
}

func (feed *LineFeed) remove(sub *subscriber) {
	feed.mu.Lock()
	if set, ok := feed.subs[sub.line]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(feed.subs, sub.line)
		}
	}
	feed.mu.Unlock()
	sub.once.Do(func() { close(sub.done) })
	feed.metrics.LiveSubscribers.Dec()
}

// writeLoop drains sub.send and pings until the subscriber is removed.
func (feed *LineFeed) writeLoop(sub *subscriber) {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-sub.done:
			_ = sub.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
				time.Now().Add(wsCloseAckWindow),
			)
			return
		case payload := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := sub.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				_ = sub.conn.Close()
				return
			}
		case <-ticker.C:
			if err := sub.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				_ = sub.conn.Close()
				return
			}
		}
	}
}

// lineOf normalizes an optional line id.
func lineOf(line *string) string {
	if line == nil {
		return ""
	}
	return vehicle.NormalizeLine(strings.TrimSpace(*line))
}
