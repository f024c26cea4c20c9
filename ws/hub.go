// Package ws pushes VRF request progress and round results to WebSocket
// subscribers.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"vrfGameServer/config"
	"vrfGameServer/state"
	"vrfGameServer/vrf"
)

// Channels a client can subscribe to.
const (
	ChannelVRF         = "vrf"          // every request transition
	ChannelVRFUser     = "vrf:"         // vrf:<requester>
	ChannelLeaderboard = "leaderboard:" // leaderboard:<gameType>
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ClientConnection represents a connected client with their subscriptions
type ClientConnection struct {
	ID            string
	Conn          *websocket.Conn
	Subscriptions map[string]bool
	mu            sync.RWMutex
	Send          chan []byte
}

// Message types from client
type ClientMessage struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// broadcast goes to a channel's subscribers, or to client alone when set.
type broadcast struct {
	channel string
	client  *ClientConnection
	message any
}

// Hub fans messages out to subscribed clients.
type Hub struct {
	clients    map[*ClientConnection]bool
	clientsMu  sync.RWMutex
	register   chan *ClientConnection
	unregister chan *ClientConnection
	events     chan broadcast
	done       chan struct{}

	orch     *vrf.Orchestrator // nil off chain
	state    *state.ServerState
	clientID atomic.Int64
}

func NewHub(st *state.ServerState, orch *vrf.Orchestrator) *Hub {
	if st == nil {
		st = state.NewServerState()
	}
	return &Hub{
		clients:    make(map[*ClientConnection]bool),
		register:   make(chan *ClientConnection),
		unregister: make(chan *ClientConnection),
		events:     make(chan broadcast, 100),
		done:       make(chan struct{}),
		orch:       orch,
		state:      st,
	}
}

/* =========================
   EVENT HUB
========================= */

// Run is the central message dispatcher. It returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	log.Println("🚀 Event hub started")
	defer close(h.done)

	// Only this goroutine sends on or closes a client's Send channel.
	for {
		select {
		case <-ctx.Done():
			h.clientsMu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.Send)
			}
			h.clientsMu.Unlock()
			return

		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			h.clientsMu.Unlock()
			n := h.state.TotalConnections.Add(1)
			log.Printf("✅ Client registered: %s (Total: %d)", client.ID, n)

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.state.TotalConnections.Add(-1)
			}
			h.clientsMu.Unlock()
			log.Printf("👋 Client unregistered: %s", client.ID)

		case ev := <-h.events:
			if ev.client != nil {
				h.deliver(ev.client, ev.message)
			} else {
				h.broadcastToSubscribers(ev.channel, ev.message)
			}
		}
	}
}

// Publish queues message for channel subscribers. Drops the message when
// the hub is backed up.
func (h *Hub) Publish(channel string, message any) {
	select {
	case h.events <- broadcast{channel: channel, message: message}:
	default:
		log.Printf("⚠️  Event queue full, dropping %s message", channel)
	}
}

// FeedVRF forwards orchestrator transitions until ctx is done.
func (h *Hub) FeedVRF(ctx context.Context) {
	if h.orch == nil {
		return
	}
	updates, cancel := h.orch.Subscribe(config.WSSendBuffer)
	defer cancel()

	log.Println("📡 VRF status feed started")
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-updates:
			if !ok {
				return
			}
			msg := map[string]any{"type": "vrf_status", "request": r}
			h.Publish(ChannelVRF, msg)
			h.Publish(ChannelVRFUser+r.Requester, msg)
		}
	}
}

// broadcastToSubscribers sends message to all clients subscribed to a channel
func (h *Hub) broadcastToSubscribers(channel string, message any) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("❌ Failed to marshal message for %s: %v", channel, err)
		return
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	for client := range h.clients {
		client.mu.RLock()
		subscribed := client.Subscriptions[channel]
		client.mu.RUnlock()

		if subscribed {
			select {
			case client.Send <- data:
			default:
				log.Printf("⚠️  Client %s send buffer full, skipping message", client.ID)
			}
		}
	}
}

/* =========================
   CONNECTIONS
========================= */

// ServeHTTP upgrades the request and starts the client's pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log.Println("📥 WebSocket connection from:", r.RemoteAddr)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("❌ WebSocket upgrade failed:", err)
		return
	}

	client := &ClientConnection{
		ID:            fmt.Sprintf("client_%d", h.clientID.Add(1)),
		Conn:          conn,
		Subscriptions: make(map[string]bool),
		Send:          make(chan []byte, config.WSSendBuffer),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go h.readPump(client)
}

// writePump sends messages from the Send channel to the WebSocket
func (c *ClientConnection) writePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		c.Conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("❌ Write error for client %s: %v", c.ID, err)
			return
		}
	}
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump reads subscription requests until the connection drops.
func (h *Hub) readPump(c *ClientConnection) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.Conn.Close()
	}()

	for {
		_, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("❌ Read error for client %s: %v", c.ID, err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			log.Printf("❌ Failed to parse message from client %s: %v", c.ID, err)
			continue
		}

		h.handleMessage(c, msg)
	}
}

func (h *Hub) handleMessage(c *ClientConnection, msg ClientMessage) {
	channel, _ := msg.Data["channel"].(string)

	switch msg.Type {
	case "subscribe":
		if !validChannel(channel) {
			h.reply(c, map[string]any{"type": "error", "error": "unknown channel " + channel})
			return
		}
		c.mu.Lock()
		c.Subscriptions[channel] = true
		c.mu.Unlock()
		log.Printf("📡 Client %s subscribed to: %s", c.ID, channel)

		h.reply(c, map[string]any{"type": "subscribed", "channel": channel})
		h.sendInitialData(c, channel)

	case "unsubscribe":
		c.mu.Lock()
		delete(c.Subscriptions, channel)
		c.mu.Unlock()
		log.Printf("📴 Client %s unsubscribed from: %s", c.ID, channel)

	default:
		log.Printf("⚠️  Unknown message type from client %s: %s", c.ID, msg.Type)
	}
}

func validChannel(channel string) bool {
	switch {
	case channel == ChannelVRF:
		return true
	case strings.HasPrefix(channel, ChannelVRFUser):
		return len(channel) > len(ChannelVRFUser)
	case strings.HasPrefix(channel, ChannelLeaderboard):
		return len(channel) > len(ChannelLeaderboard)
	}
	return false
}

// sendInitialData sends a requester's pending VRF requests on subscribe.
func (h *Hub) sendInitialData(c *ClientConnection, channel string) {
	if h.orch == nil || !strings.HasPrefix(channel, ChannelVRFUser) {
		return
	}
	requester := strings.TrimPrefix(channel, ChannelVRFUser)
	pending := h.orch.PendingRequests(requester)
	h.reply(c, map[string]any{"type": "vrf_pending", "requests": pending, "count": len(pending)})
}

// reply queues a direct message to one client.
func (h *Hub) reply(c *ClientConnection, message any) {
	select {
	case h.events <- broadcast{client: c, message: message}:
	case <-h.done:
	}
}

func (h *Hub) deliver(c *ClientConnection, message any) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("❌ Failed to marshal reply for %s: %v", c.ID, err)
		return
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	if !h.clients[c] {
		return
	}
	select {
	case c.Send <- data:
	default:
		log.Printf("⚠️  Client %s send buffer full, skipping reply", c.ID)
	}
}
