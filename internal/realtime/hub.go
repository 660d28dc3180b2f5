package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnlive/backend/pkg/redis"
)

// AttendanceLogger records viewer join/leave for session analytics.
// Implementations must be safe for concurrent use.
type AttendanceLogger interface {
	LogJoin(ctx context.Context, sessionID, userID uuid.UUID) error
	LogLeave(ctx context.Context, sessionID, userID uuid.UUID) error
}

// Hub routes realtime events between clients grouped by class session.
// Cross-instance fanout goes through Redis pub/sub so any number of server
// replicas can share a session room.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]bool
	subs  map[string]func() // per-room redis subscription cancel

	id         string // this instance, used to skip pubsub echo
	rdb        *redis.Client
	attendance AttendanceLogger
	quizzes    QuizSink
	logger     *zap.Logger
}

// SetQuizSink wires the quiz answer handler. Set once at startup, before
// any client connects.
func (h *Hub) SetQuizSink(sink QuizSink) {
	h.quizzes = sink
}

// NewHub creates a Hub.
func NewHub(rdb *redis.Client, attendance AttendanceLogger, logger *zap.Logger) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		subs:       make(map[string]func()),
		id:         uuid.NewString(),
		rdb:        rdb,
		attendance: attendance,
		logger:     logger,
	}
}

// Join adds a client to a session room, subscribing the hub to the room's
// Redis channel on first join, and logs attendance.
func (h *Hub) Join(client *Client, sessionID uuid.UUID) {
	room := sessionID.String()

	h.mu.Lock()
	if client.room != "" && client.room != room {
		h.leaveLocked(client)
	}
	clients, ok := h.rooms[room]
	if !ok {
		clients = make(map[*Client]bool)
		h.rooms[room] = clients
		cancel := SubscribeSession(context.Background(), h.rdb, h.id, sessionID, h.deliverLocal, h.logger)
		h.subs[room] = cancel
	}
	clients[client] = true
	client.room = room
	h.mu.Unlock()

	if h.attendance != nil {
		if err := h.attendance.LogJoin(context.Background(), sessionID, client.userID); err != nil {
			h.logger.Warn("log join", zap.Error(err), zap.String("session_id", room))
		}
	}

	h.BroadcastAndPublish(sessionID, "viewer_count", ViewerCountPayload{SessionID: sessionID, Count: h.AudienceCount(sessionID)})
}

// Leave removes a client from its room and logs attendance.
func (h *Hub) Leave(client *Client) {
	h.mu.Lock()
	room := client.room
	h.leaveLocked(client)
	h.mu.Unlock()

	if room == "" {
		return
	}
	sessionID, err := uuid.Parse(room)
	if err != nil {
		return
	}
	if h.attendance != nil {
		if err := h.attendance.LogLeave(context.Background(), sessionID, client.userID); err != nil {
			h.logger.Warn("log leave", zap.Error(err), zap.String("session_id", room))
		}
	}
	h.BroadcastAndPublish(sessionID, "viewer_count", ViewerCountPayload{SessionID: sessionID, Count: h.AudienceCount(sessionID)})
}

// leaveLocked removes the client from its current room. Caller holds h.mu.
func (h *Hub) leaveLocked(client *Client) {
	room := client.room
	if room == "" {
		return
	}
	if clients, ok := h.rooms[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, room)
			if cancel, ok := h.subs[room]; ok {
				cancel()
				delete(h.subs, room)
			}
		}
	}
	client.room = ""
}

// Unregister drops a disconnecting client, leaving its room first.
func (h *Hub) Unregister(client *Client) {
	h.Leave(client)
	client.closeOnce.Do(func() { close(client.send) })
}

// AudienceCount returns the number of local clients in a session room.
func (h *Hub) AudienceCount(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID.String()])
}

// Broadcast sends an event to all local clients in a session room.
func (h *Hub) Broadcast(sessionID uuid.UUID, event string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("marshal event", zap.Error(err), zap.String("event", event))
		return
	}
	h.deliverLocal(sessionID.String(), Message{Event: event, Data: payload})
}

// BroadcastAndPublish sends an event locally and publishes it on Redis so
// other server instances deliver it to their clients too.
func (h *Hub) BroadcastAndPublish(sessionID uuid.UUID, event string, data interface{}) {
	h.Broadcast(sessionID, event, data)
	if err := PublishSession(context.Background(), h.rdb, h.id, sessionID, event, data); err != nil {
		h.logger.Error("publish event", zap.Error(err), zap.String("event", event))
	}
}

// deliverLocal fans a message out to local clients in a room. Slow clients
// are dropped rather than allowed to block the hub.
func (h *Hub) deliverLocal(room string, msg Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.RLock()
	var stale []*Client
	for client := range h.rooms[room] {
		select {
		case client.send <- raw:
		default:
			stale = append(stale, client)
		}
	}
	h.mu.RUnlock()
	for _, client := range stale {
		h.Unregister(client)
	}
}
