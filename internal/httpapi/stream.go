package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/kode4food/txsaga/pkg/saga"
	"github.com/kode4food/txsaga/pkg/slogx"
)

// Client relays one model's lifecycle events to a WebSocket subscriber,
// grounded on the teacher's server.Client/HandleWebSocket pair, adapted
// from the teacher's subscribe-by-aggregate-id protocol to a simpler
// subscribe-by-model-and-optional-transaction filter since this module's
// event bus has no per-event sequence number to resume from.
type Client struct {
	conn   *websocket.Conn
	unsub  func()
	events chan saga.Event
	log    *slog.Logger
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	eventBuffer    = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleWebSocket implements GET /models/:model/events?transaction_id=,
// upgrading to a WebSocket that streams that model's (optionally one
// transaction's) lifecycle events as they're emitted.
func (s *Server) handleWebSocket(c *gin.Context) {
	model := saga.ModelID(c.Param("model"))
	tx := saga.TransactionID(c.Query("transaction_id"))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", slogx.Error(err))
		return
	}

	cl := &Client{conn: conn, events: make(chan saga.Event, eventBuffer), log: s.log}
	cl.unsub = s.bus.OnAny(func(ev saga.Event) {
		if ev.ModelID != model {
			return
		}
		if tx != "" && ev.TransactionID != tx {
			return
		}
		select {
		case cl.events <- ev:
		default:
			s.log.Warn("dropping event for slow websocket client",
				slogx.ModelID(model), slogx.TxID(ev.TransactionID))
		}
	})

	s.registerSocket(cl)
	go cl.run(s, cl)
}

func (cl *Client) run(s *Server, self *Client) {
	defer func() {
		self.unsub()
		s.unregisterSocket(self)
		_ = self.conn.Close()
	}()

	self.conn.SetReadLimit(maxMessageSize)
	_ = self.conn.SetReadDeadline(time.Now().Add(pongWait))
	self.conn.SetPongHandler(func(string) error {
		_ = self.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go self.drainIncoming()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-self.events:
			if !ok {
				return
			}
			_ = self.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := self.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = self.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := self.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drainIncoming discards client messages (this stream is write-only) but
// must keep reading so gorilla/websocket's pong handler fires and a
// closed connection is detected.
func (cl *Client) drainIncoming() {
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Close forcibly closes the underlying connection, used when the server
// shuts down with clients still attached.
func (cl *Client) Close() {
	_ = cl.conn.Close()
}
