package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/taskboard/backend/internal/access"
	"github.com/taskboard/backend/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client represents a single WebSocket connection subscribed to a project.
type Client struct {
	ID        string
	ProjectID uuid.UUID
	UserID    uuid.UUID
	Role      models.ProjectRole
	hub       *Hub
	conn      *websocket.Conn
	send      chan WSMessage
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

// TokenValidator resolves a session token to a user id.
type TokenValidator func(token string) (uuid.UUID, error)

// ServeWs handles GET /ws?project_id=&token=. The caller must be a member of the project.
func ServeWs(hub *Hub, guard *access.Guard, validate TokenValidator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectIDStr := c.Query("project_id")
		token := c.Query("token")
		if projectIDStr == "" || token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "project_id and token required"})
			return
		}
		projectID, err := uuid.Parse(projectIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project_id"})
			return
		}
		userID, err := validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		role, err := guard.Check(c.Request.Context(), access.OpProjectStream, userID, projectID)
		if err != nil {
			if errors.Is(err, access.ErrForbidden) {
				c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this project"})
				return
			}
			logger.Error("websocket access check failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check project access"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := newClient(hub, conn, projectID, userID, role, logger)
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

func newClient(hub *Hub, conn *websocket.Conn, projectID, userID uuid.UUID, role models.ProjectRole, logger *zap.Logger) *Client {
	return &Client{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
		hub:       hub,
		conn:      conn,
		send:      make(chan WSMessage, 256),
		done:      make(chan struct{}),
		logger:    logger,
	}
}

// Clients only listen; the one inbound event answered is "ping".
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		if msg.Event == "ping" {
			select {
			case c.send <- WSMessage{Event: "pong"}:
			default:
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}
