package network

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-world/internal/logger"
	"github.com/Faultbox/midgard-world/internal/metrics"
	"github.com/Faultbox/midgard-world/internal/network/packets"
)

var errSubscriberClosed = errors.New("subscriber closed")

type subscriber struct {
	id     uuid.UUID
	conn   *websocket.Conn
	mu     sync.Mutex
	closed bool
}

// write sends one binary frame guarded by the subscriber's mutex and write deadline.
func (s *subscriber) write(data []byte, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSubscriberClosed
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.conn.Close()
	}
}

// Hub accepts websocket subscribers and fans replication frames out to them.
type Hub struct {
	upgrader     websocket.Upgrader
	writeTimeout time.Duration

	mu          sync.Mutex
	subscribers map[uuid.UUID]*subscriber
	joined      []uuid.UUID
}

// NewHub creates a hub whose writes give up after writeTimeout.
func NewHub(writeTimeout time.Duration) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		writeTimeout: writeTimeout,
		subscribers:  make(map[uuid.UUID]*subscriber),
	}
}

// ServeHTTP upgrades the request and registers the connection as a subscriber.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Named("network").Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sub := &subscriber{id: uuid.New(), conn: conn}
	h.mu.Lock()
	h.subscribers[sub.id] = sub
	h.joined = append(h.joined, sub.id)
	h.mu.Unlock()
	metrics.Subscribers.Inc()

	logger.Named("network").Info("subscriber joined",
		zap.Stringer("id", sub.id),
		zap.String("remote", r.RemoteAddr))

	// Subscribers never send; reading keeps control frames flowing and
	// notices the close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(sub.id, err)
				return
			}
		}
	}()
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Joined returns subscribers that connected since the last call.
func (h *Hub) Joined() []uuid.UUID {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.joined
	h.joined = nil
	return out
}

// Broadcast encodes msgs into one frame and writes it to every subscriber.
// Subscribers whose write fails are dropped. Returns the number of
// successful deliveries.
func (h *Hub) Broadcast(msgs ...packets.Message) int {
	if len(msgs) == 0 {
		return 0
	}
	data := packets.EncodeAll(msgs...)

	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	sent := 0
	for _, sub := range subs {
		if err := sub.write(data, h.writeTimeout); err != nil {
			h.drop(sub.id, err)
			continue
		}
		sent++
	}
	if sent > 0 {
		countPackets("out", msgs, sent)
	}
	return sent
}

// SendTo writes msgs to a single subscriber.
func (h *Hub) SendTo(id uuid.UUID, msgs ...packets.Message) error {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	h.mu.Unlock()
	if !ok {
		return errSubscriberClosed
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := sub.write(packets.EncodeAll(msgs...), h.writeTimeout); err != nil {
		h.drop(id, err)
		return err
	}
	countPackets("out", msgs, 1)
	return nil
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	ids := make([]uuid.UUID, 0, len(h.subscribers))
	for id := range h.subscribers {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	for _, id := range ids {
		h.drop(id, nil)
	}
}

func (h *Hub) drop(id uuid.UUID, cause error) {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	delete(h.subscribers, id)
	h.mu.Unlock()
	if !ok {
		return
	}

	sub.close()
	metrics.Subscribers.Dec()

	fields := []zap.Field{zap.Stringer("id", id)}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	logger.Named("network").Info("subscriber dropped", fields...)
}

func countPackets(direction string, msgs []packets.Message, times int) {
	for _, m := range msgs {
		metrics.Packets.WithLabelValues(direction, packets.TypeName(m.ID())).Add(float64(times))
	}
}
