package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Events that change who may stay connected to a project room.
const (
	eventMemberRemoved  = "member_removed"
	eventProjectDeleted = "project_deleted"
)

// Hub maintains project_id -> set of connections and broadcasts project events.
// With Redis configured, events go through the project channel so every instance delivers them once.
type Hub struct {
	// projectID -> map[clientID]*Client
	projects map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per project
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher publishes project events for cross-instance delivery.
type RedisPublisher interface {
	PublishProject(projectID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to project channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeProject(projectID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. redisPub and redisSub may be nil for a single instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	return &Hub{
		projects: make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to a project room. The first client of a room starts the project's Redis
// subscription; the subscribe round-trip runs without the hub lock held.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	room, ok := h.projects[c.ProjectID]
	if !ok {
		room = make(map[string]*Client)
		h.projects[c.ProjectID] = room
	}
	room[c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined project", zap.String("client_id", c.ID), zap.String("project_id", c.ProjectID.String()))

	if !ok && h.redisSub != nil {
		h.subscribe(c.ProjectID)
	}
}

func (h *Hub) subscribe(projectID uuid.UUID) {
	cancel, err := h.redisSub.SubscribeProject(projectID, func(event string, payload []byte) {
		h.deliver(projectID, event, payload)
	})
	if err != nil {
		h.logger.Warn("redis subscribe failed", zap.String("project_id", projectID.String()), zap.Error(err))
		return
	}

	h.mu.Lock()
	_, open := h.projects[projectID]
	_, held := h.subs[projectID]
	if open && !held {
		h.subs[projectID] = cancel
		cancel = nil
	}
	h.mu.Unlock()
	// The room emptied or another registration won while subscribing.
	if cancel != nil {
		cancel()
	}
}

// Unregister removes a client from its project room. Cancels the Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.projects[c.ProjectID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.projects, c.ProjectID)
			if cancel, ok := h.subs[c.ProjectID]; ok {
				cancel()
				delete(h.subs, c.ProjectID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left project", zap.String("client_id", c.ID), zap.String("project_id", c.ProjectID.String()))
}

// PublishProjectEvent delivers an event to every client of the project on every instance.
func (h *Hub) PublishProjectEvent(projectID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("marshal project event", zap.String("event", event), zap.Error(err))
		return
	}
	if h.redis != nil {
		err := h.redis.PublishProject(projectID, event, data)
		if err == nil {
			return
		}
		h.logger.Warn("redis publish failed, delivering locally", zap.String("event", event), zap.Error(err))
	}
	h.deliver(projectID, event, data)
}

// BroadcastToProject sends a message to the project's clients on this instance only.
func (h *Hub) BroadcastToProject(projectID uuid.UUID, event string, data json.RawMessage) {
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.projects[projectID] {
		select {
		case c.send <- msg:
		default:
			h.logger.Debug("client buffer full, dropping event", zap.String("client_id", c.ID), zap.String("event", event))
		}
	}
}

// ConnectedCount returns the number of clients connected to a project on this instance.
func (h *Hub) ConnectedCount(projectID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.projects[projectID])
}

func (h *Hub) deliver(projectID uuid.UUID, event string, data []byte) {
	h.BroadcastToProject(projectID, event, data)
	switch event {
	case eventMemberRemoved:
		var p struct {
			UserID uuid.UUID `json:"user_id"`
		}
		if json.Unmarshal(data, &p) == nil && p.UserID != uuid.Nil {
			h.evict(projectID, func(c *Client) bool { return c.UserID == p.UserID })
		}
	case eventProjectDeleted:
		h.evict(projectID, func(*Client) bool { return true })
	}
}

// evict closes the connections of matching clients; their read loops unregister them.
func (h *Hub) evict(projectID uuid.UUID, match func(*Client) bool) {
	h.mu.RLock()
	var targets []*Client
	for _, c := range h.projects[projectID] {
		if match(c) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range targets {
		h.logger.Debug("evicting client", zap.String("client_id", c.ID), zap.String("project_id", projectID.String()))
		c.close()
	}
}
