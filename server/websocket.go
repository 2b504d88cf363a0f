package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"smwall/models"
)

const (
	wsPath            = "/wall/feed/ws"
	wsReadBufferSize  = 1024
	wsWriteBufferSize = 64 * 1024
	wsReadTimeout     = 60 * time.Second
	wsWriteTimeout    = 10 * time.Second
	wsPingInterval    = 30 * time.Second
)

// wsMessage is the envelope of every message sent to WebSocket subscribers
type wsMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// WebSocketHandler serves the wall feed to WebSocket subscribers registered
// with the same broadcaster as the SSE clients
func WebSocketHandler(bc *Broadcaster, allowOrigins string) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  wsReadBufferSize,
		WriteBufferSize: wsWriteBufferSize,
		CheckOrigin:     originChecker(allowOrigins),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(wsPath, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warnf("WebSocket upgrade failed: %v", err)
			return
		}

		key := uuid.New().String()
		batches, ok := bc.AddClient(key)
		if !ok {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(wsWriteTimeout))
			conn.Close()
			return
		}

		go serveWebSocket(conn, key, bc, batches)
	})
	return mux
}

func serveWebSocket(conn *websocket.Conn, key string, bc *Broadcaster, batches <-chan models.MediaBatch) {
	defer conn.Close()
	defer bc.RemoveClient(key)

	gone := make(chan struct{})
	go readUntilClosed(conn, key, gone)

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	if err := writeMessage(conn, wsMessage{Event: "init", Data: key}); err != nil {
		log.Errorf("Failed to send init message: %v", err)
		return
	}

	for {
		select {
		case <-gone:
			return

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(wsWriteTimeout)); err != nil {
				log.Warnf("Ping failed for client %s: %v", key, err)
				return
			}

		case batch, ok := <-batches:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(wsWriteTimeout))
				return
			}
			if err := writeMessage(conn, wsMessage{Event: "youtube-media", Data: batch}); err != nil {
				log.Warnf("Failed to send youtube-media message to client %s: %v", key, err)
				return
			}
		}
	}
}

// readUntilClosed drains client frames so control messages are processed,
// and closes gone once the connection fails
func readUntilClosed(conn *websocket.Conn, key string, gone chan<- struct{}) {
	defer close(gone)

	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(appData string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("Unexpected websocket close for client %s: %v", key, err)
			}
			return
		}
	}
}

func writeMessage(conn *websocket.Conn, msg wsMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

func originChecker(allowOrigins string) func(r *http.Request) bool {
	origins := lo.Compact(lo.Map(strings.Split(allowOrigins, ","), func(origin string, _ int) string {
		return strings.TrimSpace(origin)
	}))
	allowed := lo.Associate(origins, func(origin string) (string, bool) {
		return origin, true
	})

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 || allowed["*"] {
			return true
		}
		return allowed[origin]
	}
}
