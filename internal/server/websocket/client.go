package websocket

import (
	"github.com/gorilla/websocket"
)

// Client is one connected planner watching a tournament's schedule
type Client struct {
	UserID       string
	TournamentID string
	Conn         *websocket.Conn
	Send         chan []byte
}

// ReadPump drains inbound frames until the connection closes. The schedule
// feed is one-way; inbound payloads are discarded.
func (c *Client) ReadPump(hub *Hub) {
	defer func() {
		hub.unregister(c)
		c.Conn.Close()
	}()

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			break
		}
	}
}

// WritePump forwards queued messages to the connection
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}
