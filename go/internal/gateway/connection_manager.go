package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/quizparty/go/internal/protocol"
	"github.com/rs/zerolog/log"
)

// MessageHandler receives inbound frames and disconnects.
type MessageHandler interface {
	HandleMessage(connID string, data []byte)
	HandleDisconnect(connID string)
}

// ConnectionManager owns every websocket connection and fans room events out
// to them. Outbound traffic goes through one channel so per-connection order
// matches emit order.
type ConnectionManager struct {
	connections     map[string]*Connection
	roomConnections map[string]map[*Connection]bool
	mu              sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	handler  MessageHandler

	broadcastCh chan outbound
}

// Connection is one websocket client: a host, display or player tab.
type Connection struct {
	ID       string
	RoomCode string // guarded by Manager.mu
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	ConnectedAt time.Time

	sendMu sync.Mutex
	closed bool
}

// ConnectionConfig holds configuration for websocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool

	// QueueSize bounds the shared outbound queue. When it is full, emitters
	// wait up to EnqueueTimeout before the event is dropped.
	QueueSize      int
	EnqueueTimeout time.Duration
}

// outbound is a queued delivery: a room broadcast, a single send or a close.
type outbound struct {
	RoomCode string
	ConnID   string
	Event    *protocol.Event
	Close    bool
}

// Stats is a point-in-time view of connection counts.
type Stats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveRooms      int            `json:"active_rooms"`
	RoomConnections  map[string]int `json:"room_connections"`
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    25 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
		QueueSize:      1000,
		EnqueueTimeout: 2 * time.Second,
	}
}

func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	if config.QueueSize <= 0 {
		config.QueueSize = 1000
	}
	if config.EnqueueTimeout <= 0 {
		config.EnqueueTimeout = 2 * time.Second
	}
	return &ConnectionManager{
		connections:     make(map[string]*Connection),
		roomConnections: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan outbound, config.QueueSize),
	}
}

// SetHandler must be called before the first connection is accepted.
func (cm *ConnectionManager) SetHandler(h MessageHandler) {
	cm.handler = h
}

// Start delivers queued events until ctx is done.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case message := <-cm.broadcastCh:
			cm.handleOutbound(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP request and starts the pumps.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.NewString(),
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}
	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("websocket connection established")
	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[conn.ID] = conn
}

// unregisterConnection removes conn and reports the disconnect once.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	if _, ok := cm.connections[conn.ID]; !ok {
		cm.mu.Unlock()
		return
	}
	delete(cm.connections, conn.ID)
	cm.leaveRoomLocked(conn)
	cm.mu.Unlock()

	conn.closeSend()
	log.Info().Str("connection_id", conn.ID).Msg("connection unregistered")

	// Off the delivery goroutine: the handler takes room locks whose holders
	// may be waiting on the outbound queue.
	if cm.handler != nil {
		go cm.handler.HandleDisconnect(conn.ID)
	}
}

// JoinRoom subscribes connID to the broadcasts of roomCode, leaving any
// previous room.
func (cm *ConnectionManager) JoinRoom(connID, roomCode string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	conn, ok := cm.connections[connID]
	if !ok {
		return
	}
	cm.leaveRoomLocked(conn)
	if cm.roomConnections[roomCode] == nil {
		cm.roomConnections[roomCode] = make(map[*Connection]bool)
	}
	cm.roomConnections[roomCode][conn] = true
	conn.RoomCode = roomCode

	log.Debug().
		Str("connection_id", connID).
		Str("room_code", roomCode).
		Int("room_connections", len(cm.roomConnections[roomCode])).
		Msg("connection joined room")
}

func (cm *ConnectionManager) LeaveRoom(connID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if conn, ok := cm.connections[connID]; ok {
		cm.leaveRoomLocked(conn)
	}
}

func (cm *ConnectionManager) leaveRoomLocked(conn *Connection) {
	if conn.RoomCode == "" {
		return
	}
	if members, ok := cm.roomConnections[conn.RoomCode]; ok {
		delete(members, conn)
		if len(members) == 0 {
			delete(cm.roomConnections, conn.RoomCode)
		}
	}
	conn.RoomCode = ""
}

// Broadcast queues an event for every connection in a room.
func (cm *ConnectionManager) Broadcast(roomCode string, t protocol.EventType, payload any) {
	event, err := protocol.NewEvent(roomCode, t, payload)
	if err != nil {
		log.Error().Err(err).Str("room_code", roomCode).Msg("failed to build event")
		return
	}
	cm.enqueue(outbound{RoomCode: roomCode, Event: event})
}

// Send queues an event for one connection.
func (cm *ConnectionManager) Send(connID string, t protocol.EventType, payload any) {
	event, err := protocol.NewEvent("", t, payload)
	if err != nil {
		log.Error().Err(err).Str("connection_id", connID).Msg("failed to build event")
		return
	}
	cm.enqueue(outbound{ConnID: connID, Event: event})
}

// Close severs a connection after everything already queued for it.
func (cm *ConnectionManager) Close(connID string) {
	cm.enqueue(outbound{ConnID: connID, Close: true})
}

// enqueue waits for queue space up to EnqueueTimeout and reports whether the
// message was queued.
func (cm *ConnectionManager) enqueue(message outbound) bool {
	select {
	case cm.broadcastCh <- message:
		return true
	default:
	}

	timer := time.NewTimer(cm.config.EnqueueTimeout)
	defer timer.Stop()
	select {
	case cm.broadcastCh <- message:
		return true
	case <-timer.C:
		log.Warn().
			Str("room_code", message.RoomCode).
			Str("connection_id", message.ConnID).
			Dur("waited", cm.config.EnqueueTimeout).
			Msg("broadcast channel full, dropping message")
		return false
	}
}

func (cm *ConnectionManager) handleOutbound(message outbound) {
	var targets []*Connection

	cm.mu.RLock()
	switch {
	case message.ConnID != "":
		if conn, ok := cm.connections[message.ConnID]; ok {
			targets = append(targets, conn)
		}
	case message.RoomCode != "":
		for conn := range cm.roomConnections[message.RoomCode] {
			targets = append(targets, conn)
		}
	}
	cm.mu.RUnlock()

	if message.Close {
		for _, conn := range targets {
			cm.unregisterConnection(conn)
		}
		return
	}

	data, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event")
		return
	}

	for _, conn := range targets {
		if !conn.enqueue(data) {
			log.Warn().
				Str("connection_id", conn.ID).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("event_type", string(message.Event.Type)).
		Str("room_code", message.RoomCode).
		Int("connections", len(targets)).
		Msg("event delivered")
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for _, c := range cm.connections {
		conns = append(conns, c)
	}
	cm.mu.RUnlock()

	for _, c := range conns {
		cm.unregisterConnection(c)
	}
}

func (cm *ConnectionManager) Stats() Stats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	rooms := make(map[string]int, len(cm.roomConnections))
	for code, members := range cm.roomConnections {
		rooms[code] = len(members)
	}
	return Stats{
		TotalConnections: len(cm.connections),
		ActiveRooms:      len(cm.roomConnections),
		RoomConnections:  rooms,
	}
}

func (c *Connection) enqueue(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return true
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Connection) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write message")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("failed to send ping")
				return
			}
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("connection_id", c.ID).Msg("unexpected websocket close")
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))

		if c.Manager.handler != nil {
			c.Manager.handler.HandleMessage(c.ID, message)
		}
	}
}
