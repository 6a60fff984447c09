package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/termbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/termbridge/internal/surface"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 8192,
	CheckOrigin: func(r *http.Request) bool {
		return true // the webview origin is checked by CORS middleware
	},
}

// Surface is one websocket client acting as the display surface.
type Surface struct {
	id   string
	conn *websocket.Conn

	writeMu sync.Mutex
	events  chan surface.Event
	stop    chan struct{}
	once    sync.Once

	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// Upgrade accepts a websocket connection and starts reading from it.
func Upgrade(w http.ResponseWriter, r *http.Request, logger *zap.Logger, metrics *monitoring.Metrics) (*Surface, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return New(conn, logger, metrics), nil
}

// New wraps an established connection.
func New(conn *websocket.Conn, logger *zap.Logger, metrics *monitoring.Metrics) *Surface {
	connID := uuid.New().String()
	s := &Surface{
		id:      connID,
		conn:    conn,
		events:  make(chan surface.Event, 64),
		stop:    make(chan struct{}),
		logger:  logger.Named("ws").With(zap.String("conn_id", connID)),
		metrics: metrics,
	}
	conn.SetReadLimit(maxMessageSize)
	metrics.IncWSConnections()

	go s.readLoop()
	return s
}

// ID returns the connection id.
func (s *Surface) ID() string {
	return s.id
}

// Events returns the event stream. It closes when the client disconnects.
func (s *Surface) Events() <-chan surface.Event {
	return s.events
}

// Write sends p as one binary frame.
func (s *Surface) Write(p []byte) (int, error) {
	if err := s.write(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	s.metrics.RecordWSMessage("out", "output")
	return len(p), nil
}

// SendExit sends the final exit frame.
func (s *Surface) SendExit(msg ExitMessage) error {
	if err := s.sendJSON(msg); err != nil {
		return err
	}
	s.metrics.RecordWSMessage("out", TypeExit)
	return nil
}

// Close sends a normal close frame and drops the connection.
func (s *Surface) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		_ = s.write(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
		err = s.conn.Close()
		s.metrics.DecWSConnections()
		s.logger.Debug("websocket closed")
	})
	return err
}

func (s *Surface) write(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(messageType, data)
}

func (s *Surface) sendJSON(v interface{}) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	return s.write(websocket.TextMessage, data)
}

func (s *Surface) sendError(msg string) {
	if err := s.sendJSON(errorMessage{Type: TypeError, Message: msg, Timestamp: time.Now().Unix()}); err != nil {
		s.logger.Debug("error frame not sent", zap.Error(err))
	}
}

func (s *Surface) emit(ev surface.Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.stop:
		return false
	}
}

func (s *Surface) readLoop() {
	defer close(s.events)

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read error", zap.Error(err))
			}
			s.emit(surface.Quit("connection closed"))
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			s.metrics.RecordWSMessage("in", TypeInput)
			if !s.emit(surface.Input(data)) {
				return
			}
		case websocket.TextMessage:
			if !s.handleControl(data) {
				return
			}
		}
	}
}

// inboundLabel keeps client-chosen type strings out of metric labels.
func inboundLabel(msgType string) string {
	switch msgType {
	case TypeInput, TypeResize, TypeQuit, TypePing:
		return msgType
	default:
		return "unknown"
	}
}

func (s *Surface) handleControl(data []byte) bool {
	var msg ControlMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		s.sendError("malformed control message")
		return true
	}
	s.metrics.RecordWSMessage("in", inboundLabel(msg.Type))

	switch msg.Type {
	case TypeInput:
		return s.emit(surface.Input([]byte(msg.Data)))
	case TypeResize:
		return s.emit(surface.Resize(msg.Cols, msg.Rows))
	case TypeQuit:
		return s.emit(surface.Quit("client quit"))
	case TypePing:
		if err := s.sendJSON(pongMessage{Type: TypePong, Timestamp: time.Now().Unix()}); err != nil {
			s.logger.Debug("pong not sent", zap.Error(err))
		}
	default:
		s.sendError("unknown message type")
	}
	return true
}
