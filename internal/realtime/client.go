package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	maxMsgSize   = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message is the wire envelope for every realtime event, both directions.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client-sent event names.
const (
	EventSessionJoin  = "session:join"
	EventSessionLeave = "session:leave"
	EventChatSend     = "chat:send"
	EventQuizAnswer   = "quiz:answer"
)

// JoinPayload is the data for session:join and session:leave.
type JoinPayload struct {
	SessionID uuid.UUID `json:"session_id"`
}

// ChatPayload is the data for chat:send (inbound) and chat:message (outbound).
type ChatPayload struct {
	SessionID uuid.UUID `json:"session_id"`
	UserID    uuid.UUID `json:"user_id,omitempty"`
	UserName  string    `json:"user_name,omitempty"`
	Text      string    `json:"text"`
	SentAt    time.Time `json:"sent_at,omitempty"`
}

// QuizAnswerPayload is the data for quiz:answer.
type QuizAnswerPayload struct {
	QuizID uuid.UUID `json:"quiz_id"`
	Answer int       `json:"answer"`
}

// ViewerCountPayload is pushed whenever a session room's audience changes.
type ViewerCountPayload struct {
	SessionID uuid.UUID `json:"session_id"`
	Count     int       `json:"count"`
}

// QuizSink receives quiz answers submitted over the realtime channel.
type QuizSink interface {
	SubmitAnswer(ctx context.Context, quizID, userID uuid.UUID, answer int) error
}

// Client is one websocket connection.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	userID    uuid.UUID
	userName  string
	room      string
	closeOnce sync.Once
}

// ServeWs upgrades the HTTP request to a websocket and runs the client pumps.
// The caller must have authenticated the user already.
func ServeWs(hub *Hub, c *gin.Context, userID uuid.UUID, userName string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.logger.Warn("websocket upgrade", zap.Error(err))
		return
	}
	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, 64),
		userID:   userID,
		userName: userName,
	}
	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read", zap.Error(err))
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg Message) {
	switch msg.Event {
	case EventSessionJoin:
		var p JoinPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil || p.SessionID == uuid.Nil {
			return
		}
		c.hub.Join(c, p.SessionID)

	case EventSessionLeave:
		c.hub.Leave(c)

	case EventChatSend:
		var p ChatPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil || p.Text == "" || p.SessionID == uuid.Nil {
			return
		}
		p.UserID = c.userID
		p.UserName = c.userName
		p.SentAt = time.Now().UTC()
		c.hub.BroadcastAndPublish(p.SessionID, "chat:message", p)

	case EventQuizAnswer:
		var p QuizAnswerPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil || p.QuizID == uuid.Nil {
			return
		}
		if c.hub.quizzes == nil {
			return
		}
		if err := c.hub.quizzes.SubmitAnswer(context.Background(), p.QuizID, c.userID, p.Answer); err != nil {
			c.hub.logger.Warn("quiz answer", zap.Error(err), zap.String("quiz_id", p.QuizID.String()))
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case raw, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
