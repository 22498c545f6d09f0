package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"go-insights-pipeline/internal/cache"
	"go-insights-pipeline/internal/dispatch"
)

// Message types streamed on /ws
const (
	MessageCache  = "cache"
	MessageSignal = "signal"
	MessageNotice = "notice"
)

const (
	clientBuffer = 64
	writeWait    = 10 * time.Second
)

// Message is one event pushed to websocket clients
type Message struct {
	Type   string           `json:"type"`
	Event  *cache.Event     `json:"event,omitempty"`
	Signal string           `json:"signal,omitempty"`
	Notice *dispatch.Notice `json:"notice,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans cache writes, completion signals and notices out to websocket
// clients. A client that falls behind misses messages.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	log     *zap.Logger
	wg      sync.WaitGroup
}

// NewHub creates an empty hub
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{clients: make(map[*client]struct{}), log: log.Named("ws")}
}

// Notify implements dispatch.Notifier
func (h *Hub) Notify(n dispatch.Notice) {
	h.Broadcast(Message{Type: MessageNotice, Notice: &n})
}

// Forward subscribes to cache writes and completion signals and streams
// them to clients until stop is called. Subscriptions are in place when
// Forward returns.
func (h *Hub) Forward(c *cache.Cache, s *dispatch.Signals) (stop func()) {
	events, stopEvents := c.Subscribe()
	signals, stopSignals := s.Observe()
	quit := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-quit:
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				h.Broadcast(Message{Type: MessageCache, Event: &ev})
			case name, ok := <-signals:
				if !ok {
					return
				}
				h.Broadcast(Message{Type: MessageSignal, Signal: name})
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(quit)
			<-done
			stopEvents()
			stopSignals()
		})
	}
}

// Broadcast sends msg to every connected client
func (h *Hub) Broadcast(msg Message) {
	data, err := sonic.Marshal(msg)
	if err != nil {
		h.log.Warn("failed to encode message", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Debug("client behind, message dropped", zap.String("type", msg.Type))
		}
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams messages until the client leaves
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("client connected", zap.String("remote", r.RemoteAddr))

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.writePump(c)
	}()
	h.readPump(c)
}

// readPump discards client input and unregisters the client on close
func (h *Hub) readPump(c *client) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[c]; ok {
			delete(h.clients, c)
			close(c.send)
		}
		h.mu.Unlock()
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket closed", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Close disconnects every client and waits for their writers to stop
func (h *Hub) Close() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		c.conn.Close()
	}
	h.mu.Unlock()
	h.wg.Wait()
}
