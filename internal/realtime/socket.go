package realtime

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10

	defaultBufferSize = 64
)

// Message represents a JSON payload delivered to realtime subscribers.
type Message struct {
	Stream string         `json:"stream"`
	Event  string         `json:"event"`
	Data   any            `json:"data,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// Socket is one upgraded websocket with a buffered writer and keepalive pings.
type Socket struct {
	conn   *websocket.Conn
	userID string
	send   chan Message
	done   chan struct{}
	once   sync.Once
	log    *zap.Logger

	mu      sync.Mutex
	onClose func()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     sameOriginOrLoopback,
}

// Upgrade upgrades the HTTP connection and starts the write loop.
func Upgrade(w http.ResponseWriter, r *http.Request, userID string, log *zap.Logger) (*Socket, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	socket := &Socket{
		conn:   conn,
		userID: userID,
		send:   make(chan Message, defaultBufferSize),
		done:   make(chan struct{}),
		log:    log.With(zap.String("user_id", userID)),
	}
	go socket.writeLoop()
	return socket, nil
}

// UserID returns the authenticated owner of the socket.
func (s *Socket) UserID() string {
	return s.userID
}

// Done is closed once the socket has been closed.
func (s *Socket) Done() <-chan struct{} {
	return s.done
}

// Send queues message for delivery. A client that cannot keep up is disconnected.
func (s *Socket) Send(message Message) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- message:
		return true
	case <-s.done:
		return false
	default:
		s.log.Warn("dropping backpressure client")
		s.Close()
		return false
	}
}

// ReadLoop delivers every inbound text frame to handle until the peer disconnects.
func (s *Socket) ReadLoop(handle func(payload []byte)) {
	defer s.Close()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Debug("unexpected websocket close", zap.Error(err))
			}
			return
		}
		if len(payload) == 0 {
			continue
		}
		handle(payload)
	}
}

// Close shuts the socket down. It is safe to call repeatedly.
func (s *Socket) Close() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		onClose := s.onClose
		s.mu.Unlock()
		if onClose != nil {
			onClose()
		}
	})
}

// OnClose registers fn to run once when the socket closes.
func (s *Socket) OnClose(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClose = fn
}

func (s *Socket) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case message := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(message); err != nil {
				s.Close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func sameOriginOrLoopback(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originHost := hostWithoutPort(origin)
	requestHost := hostWithoutPort(r.Host)
	return originHost == requestHost || isLoopback(originHost)
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}

	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		parsed, err := http.NewRequest(http.MethodGet, host, nil)
		if err == nil {
			return hostWithoutPort(parsed.URL.Host)
		}
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	ip := net.ParseIP(host)
	if ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
