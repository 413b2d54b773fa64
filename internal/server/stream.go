package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Veraticus/fraudwatch/internal/feed"
	"github.com/Veraticus/fraudwatch/internal/metrics"
)

const (
	streamBuffer = 64
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 30 * time.Second
)

var normalCloseCodes = []int{
	websocket.CloseNormalClosure,
	websocket.CloseGoingAway,
	websocket.CloseNoStatusReceived,
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS is open for the API, so the stream is too.
	CheckOrigin: func(*http.Request) bool { return true },
}

// streamer forwards feed events to websocket clients. Each client has its own
// feed subscription, so a slow client only loses its own events.
type streamer struct {
	feed    *feed.Feed
	logger  *slog.Logger
	clients map[*streamClient]struct{}
	mu      sync.Mutex
}

type streamClient struct {
	conn   *websocket.Conn
	events <-chan feed.Event
	cancel func()
	done   chan struct{}
	once   sync.Once
}

func newStreamer(f *feed.Feed, logger *slog.Logger) *streamer {
	return &streamer{
		feed:    f,
		logger:  logger,
		clients: make(map[*streamClient]struct{}),
	}
}

func (s *streamer) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}

	events, cancel := s.feed.Subscribe(streamBuffer)
	client := &streamClient{
		conn:   conn,
		events: events,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()
	metrics.ActiveStreamClients.Set(float64(n))
	s.logger.Debug("Stream client connected", "total", n)

	go s.writePump(client)
	go s.readPump(client)
}

func (s *streamer) remove(c *streamClient) {
	c.once.Do(func() {
		close(c.done)
		c.cancel()
		_ = c.conn.Close()

		s.mu.Lock()
		delete(s.clients, c)
		n := len(s.clients)
		s.mu.Unlock()
		metrics.ActiveStreamClients.Set(float64(n))
		s.logger.Debug("Stream client disconnected", "total", n)
	})
}

func (s *streamer) closeAll() {
	s.mu.Lock()
	clients := make([]*streamClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		s.remove(c)
	}
}

// readPump only watches for the client going away; clients send nothing.
func (s *streamer) readPump(c *streamClient) {
	defer s.remove(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, normalCloseCodes...) {
				s.logger.Debug("Websocket read error", "error", err)
			}
			return
		}
	}
}

func (s *streamer) writePump(c *streamClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.remove(c)
	}()

	for {
		select {
		case <-c.done:
			return

		case ev, ok := <-c.events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("Failed to encode feed event", "error", err)
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug("Websocket write error", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
