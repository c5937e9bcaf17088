package realtime

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/logger"
)

type controlMessage struct {
	Action  string   `json:"action"`
	Streams []string `json:"streams"`
}

// Hub pushes per-user stream events to connected sockets.
type Hub struct {
	mu            sync.RWMutex
	subscriptions map[string]map[string]map[*Socket]struct{}
	streams       map[*Socket]map[string]struct{}
	log           *zap.Logger
}

// NewHub constructs a realtime hub.
func NewHub() *Hub {
	return &Hub{
		subscriptions: make(map[string]map[string]map[*Socket]struct{}),
		streams:       make(map[*Socket]map[string]struct{}),
		log:           logger.WithModule("realtime"),
	}
}

// Serve upgrades the HTTP connection, subscribes it to streams and blocks until the
// client disconnects. Clients may send {"action":"subscribe"|"unsubscribe"|"ping"}.
func (h *Hub) Serve(userID string, streams []string, w http.ResponseWriter, r *http.Request) {
	socket, err := Upgrade(w, r, userID, h.log)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}
	h.Attach(socket, streams...)
	socket.ReadLoop(func(payload []byte) {
		h.HandleControl(socket, payload)
	})
}

// Attach registers an already upgraded socket on streams. The socket is detached
// automatically when it closes.
func (h *Hub) Attach(socket *Socket, streams ...string) {
	socket.OnClose(func() { h.detach(socket) })
	h.subscribe(socket, streams)
	select {
	case <-socket.Done():
		h.detach(socket)
	default:
	}
}

// BroadcastToUser delivers a message to all connections for the supplied user on a stream.
func (h *Hub) BroadcastToUser(stream, userID string, message Message) {
	if h == nil {
		return
	}
	stream = normalizeStream(stream)
	userID = strings.TrimSpace(userID)
	if stream == "" || userID == "" {
		return
	}

	h.mu.RLock()
	targets := make([]*Socket, 0, len(h.subscriptions[stream][userID]))
	for socket := range h.subscriptions[stream][userID] {
		targets = append(targets, socket)
	}
	h.mu.RUnlock()

	message.Stream = stream
	for _, socket := range targets {
		socket.Send(message)
	}
}

// BroadcastToUsers delivers a message to each of the supplied user IDs on the provided stream.
func (h *Hub) BroadcastToUsers(stream string, userIDs []string, message Message) {
	for _, userID := range userIDs {
		h.BroadcastToUser(stream, userID, message)
	}
}

// ConnectionCount reports how many sockets of userID listen on stream.
func (h *Hub) ConnectionCount(stream, userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[normalizeStream(stream)][userID])
}

// HandleControl applies a client control frame to socket.
func (h *Hub) HandleControl(socket *Socket, payload []byte) {
	var ctrl controlMessage
	if err := json.Unmarshal(payload, &ctrl); err != nil {
		h.log.Debug("invalid control payload", zap.String("user_id", socket.userID), zap.Error(err))
		return
	}

	switch strings.ToLower(strings.TrimSpace(ctrl.Action)) {
	case "subscribe":
		h.subscribe(socket, ctrl.Streams)
	case "unsubscribe":
		h.unsubscribe(socket, ctrl.Streams)
	case "ping":
		socket.Send(Message{Event: EventPong})
	default:
		h.log.Debug("unsupported control action", zap.String("action", ctrl.Action), zap.String("user_id", socket.userID))
	}
}

func (h *Hub) subscribe(socket *Socket, streams []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, stream := range uniqueStreams(streams) {
		if h.streams[socket] == nil {
			h.streams[socket] = make(map[string]struct{})
		}
		if h.subscriptions[stream] == nil {
			h.subscriptions[stream] = make(map[string]map[*Socket]struct{})
		}
		if h.subscriptions[stream][socket.userID] == nil {
			h.subscriptions[stream][socket.userID] = make(map[*Socket]struct{})
		}
		h.streams[socket][stream] = struct{}{}
		h.subscriptions[stream][socket.userID][socket] = struct{}{}
	}
}

func (h *Hub) unsubscribe(socket *Socket, streams []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, stream := range uniqueStreams(streams) {
		h.removeLocked(socket, stream)
	}
}

func (h *Hub) detach(socket *Socket) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for stream := range h.streams[socket] {
		h.removeLocked(socket, stream)
	}
	delete(h.streams, socket)
}

func (h *Hub) removeLocked(socket *Socket, stream string) {
	if subs := h.streams[socket]; subs != nil {
		delete(subs, stream)
	}
	byUser := h.subscriptions[stream]
	if byUser == nil {
		return
	}
	if sockets := byUser[socket.userID]; sockets != nil {
		delete(sockets, socket)
		if len(sockets) == 0 {
			delete(byUser, socket.userID)
		}
	}
	if len(byUser) == 0 {
		delete(h.subscriptions, stream)
	}
}

func normalizeStream(stream string) string {
	return strings.ToLower(strings.TrimSpace(stream))
}

func uniqueStreams(streams []string) []string {
	unique := make(map[string]struct{}, len(streams))
	var result []string
	for _, stream := range streams {
		if stream = normalizeStream(stream); stream != "" {
			if _, exists := unique[stream]; !exists {
				unique[stream] = struct{}{}
				result = append(result, stream)
			}
		}
	}
	return result
}
