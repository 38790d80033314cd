package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"

	"tournament-scheduler/backend/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// AllowedOrigins holds the origins accepted for websocket upgrades
var AllowedOrigins = getAllowedOrigins()

// getAllowedOrigins reads ALLOWED_ORIGINS as a comma-separated list.
// Without it, only local development origins are accepted.
func getAllowedOrigins() []string {
	raw := os.Getenv("ALLOWED_ORIGINS")
	if raw == "" {
		return []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// checkOrigin matches the Origin header exactly against AllowedOrigins
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}
	for _, a := range AllowedOrigins {
		if origin == a {
			return true
		}
	}
	return false
}

// Upgrader configures the WebSocket upgrader
var Upgrader = websocket.Upgrader{
	CheckOrigin: checkOrigin,
}

// Hub tracks connected schedule clients per tournament
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]bool)}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.Send)
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients (for monitoring)
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastToTournament sends a message to every client watching the
// tournament. Slow clients are dropped rather than blocking the broadcast.
func (h *Hub) BroadcastToTournament(tournamentID string, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[WS] Failed to marshal %s message: %v", msg.Type, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if client.TournamentID != tournamentID {
			continue
		}
		select {
		case client.Send <- data:
		default:
			delete(h.clients, client)
			close(client.Send)
		}
	}
}

// NotifyVersionEvent broadcasts one schedule version lifecycle event
// (build_completed, version_finalized, version_reset) to the tournament's
// connected planners.
func (h *Hub) NotifyVersionEvent(eventType, tournamentID, versionID string) {
	h.BroadcastToTournament(tournamentID, WSMessage{
		Type: eventType,
		Payload: map[string]interface{}{
			"tournament_id":       tournamentID,
			"schedule_version_id": versionID,
		},
	})
}

// HandleScheduleWS upgrades the connection and subscribes the planner to a
// tournament's schedule feed. Auth runs on the token query parameter.
func HandleScheduleWS(c *gin.Context, authService *auth.Service, hub *Hub) {
	token := c.Query("token")
	userID, err := authService.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	tournamentID := c.Query("tournament_id")
	if tournamentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tournament_id is required"})
		return
	}

	conn, err := Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("[WS] WebSocket upgrade error:", err)
		return
	}

	client := &Client{
		UserID:       userID,
		TournamentID: tournamentID,
		Conn:         conn,
		Send:         make(chan []byte, 256),
	}
	hub.register(client)

	go client.WritePump()
	go client.ReadPump(hub)
}
