package live

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mzhirov/quizhall/internal/models"
)

// Registry tracks the live channels of every game, tagged by role and team
// identity, and fans outbound messages out to them. Delivery is best
// effort: a channel that disconnects mid-broadcast simply does not receive
// it. All sends for one game flow through a single consumer goroutine, so
// clients observe broadcasts in the order the commands were applied.
type Registry struct {
	gameConns map[uuid.UUID]map[*Conn]bool
	mu        sync.RWMutex

	upgrader websocket.Upgrader
	config   RegistryConfig
	sendCh   chan outboundMessage
}

// Conn is one live channel into a game.
type Conn struct {
	ID     string
	GameID uuid.UUID
	Role   models.Role
	TeamID uuid.UUID // zero unless Role is team

	ws       *websocket.Conn
	send     chan []byte
	done     chan struct{}
	registry *Registry

	closeMu sync.Mutex
	closed  bool

	ConnectedAt time.Time
	LastPing    time.Time

	// OnMessage receives raw inbound frames from the read pump.
	OnMessage func(conn *Conn, raw []byte)
}

// RegistryConfig holds transport settings for live channels.
type RegistryConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultRegistryConfig returns the observed transport defaults: clients
// ping every 30s and two missed pings close the channel.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// outboundMessage is a queued broadcast or targeted send.
type outboundMessage struct {
	GameID uuid.UUID
	// TargetRole limits delivery to one role; RoleAny delivers to all.
	TargetRole models.Role
	// TargetTeam limits delivery to one team when non-zero.
	TargetTeam uuid.UUID
	Payload    any
}

// NewRegistry creates a connection registry.
func NewRegistry(config RegistryConfig) *Registry {
	return &Registry{
		gameConns: make(map[uuid.UUID]map[*Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
		sendCh: make(chan outboundMessage, 1000),
	}
}

// Run consumes queued messages until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	log.Info().Msg("connection registry started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection registry shutting down")
			return
		case msg := <-r.sendCh:
			r.deliver(msg)
		}
	}
}

// Upgrade turns an authenticated HTTP request into a registered live
// channel and starts its pumps.
func (r *Registry) Upgrade(w http.ResponseWriter, req *http.Request, gameID uuid.UUID, role models.Role, teamID uuid.UUID, onMessage func(*Conn, []byte)) (*Conn, error) {
	ws, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade connection: %w", err)
	}

	conn := &Conn{
		ID:          uuid.New().String(),
		GameID:      gameID,
		Role:        role,
		TeamID:      teamID,
		ws:          ws,
		send:        make(chan []byte, 256),
		done:        make(chan struct{}),
		registry:    r,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
		OnMessage:   onMessage,
	}

	r.register(conn)

	go conn.writePump()
	go conn.readPump()

	log.Info().
		Str("connection_id", conn.ID).
		Str("game_id", gameID.String()).
		Str("role", string(role)).
		Msg("live channel established")

	return conn, nil
}

func (r *Registry) register(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.gameConns[conn.GameID] == nil {
		r.gameConns[conn.GameID] = make(map[*Conn]bool)
	}
	r.gameConns[conn.GameID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("game_id", conn.GameID.String()).
		Int("total_connections", len(r.gameConns[conn.GameID])).
		Msg("channel registered")
}

func (r *Registry) unregister(conn *Conn) {
	r.mu.Lock()
	found := false
	if conns, exists := r.gameConns[conn.GameID]; exists {
		if _, exists := conns[conn]; exists {
			delete(conns, conn)
			found = true
			if len(conns) == 0 {
				delete(r.gameConns, conn.GameID)
			}
		}
	}
	r.mu.Unlock()

	if !found {
		return
	}

	// The send channel is never closed: the read pump or a late broadcast
	// may still attempt a send after teardown, and those must be silent
	// drops, not panics. The closed flag stops new sends and done tells
	// the write pump to drain out.
	conn.closeMu.Lock()
	if !conn.closed {
		conn.closed = true
		close(conn.done)
	}
	conn.closeMu.Unlock()

	log.Info().
		Str("connection_id", conn.ID).
		Str("game_id", conn.GameID.String()).
		Str("role", string(conn.Role)).
		Msg("channel unregistered")
}

// Broadcast queues payload for every channel of a game.
func (r *Registry) Broadcast(gameID uuid.UUID, payload any) {
	r.enqueue(outboundMessage{GameID: gameID, Payload: payload})
}

// SendToOperator queues payload for the operator channels of a game only.
func (r *Registry) SendToOperator(gameID uuid.UUID, payload any) {
	r.enqueue(outboundMessage{GameID: gameID, TargetRole: models.RoleOperator, Payload: payload})
}

// SendToTeam queues payload for one team's channels only.
func (r *Registry) SendToTeam(gameID, teamID uuid.UUID, payload any) {
	r.enqueue(outboundMessage{GameID: gameID, TargetRole: models.RoleTeam, TargetTeam: teamID, Payload: payload})
}

// Send delivers payload to a single channel. It writes straight to the
// channel's buffer, bypassing the per-game queue, so a reply can overtake
// a broadcast that was enqueued just before it.
func (r *Registry) Send(conn *Conn, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("marshal targeted message")
		return
	}
	conn.trySend(data)
}

func (r *Registry) enqueue(msg outboundMessage) {
	select {
	case r.sendCh <- msg:
	default:
		log.Warn().Str("game_id", msg.GameID.String()).Msg("send channel full, dropping message")
	}
}

func (r *Registry) deliver(msg outboundMessage) {
	r.mu.RLock()
	conns, exists := r.gameConns[msg.GameID]
	if !exists {
		r.mu.RUnlock()
		return
	}

	// Snapshot under the read lock; the actual writes happen outside it.
	var targets []*Conn
	for conn := range conns {
		if msg.TargetRole != models.RoleAny && conn.Role != msg.TargetRole {
			continue
		}
		if msg.TargetTeam != uuid.Nil && conn.TeamID != msg.TargetTeam {
			continue
		}
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	data, err := json.Marshal(msg.Payload)
	if err != nil {
		log.Error().Err(err).Msg("marshal outbound message")
		return
	}

	for _, conn := range targets {
		conn.trySend(data)
	}
}

func (c *Conn) trySend(data []byte) {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return
	}
	select {
	case c.send <- data:
		c.closeMu.Unlock()
	default:
		c.closeMu.Unlock()
		// Slow or dead channel; drop it rather than block the game.
		log.Warn().
			Str("connection_id", c.ID).
			Str("game_id", c.GameID.String()).
			Msg("send buffer full, closing channel")
		c.registry.unregister(c)
		c.ws.Close()
	}
}

// OperatorsOf returns the connected operator channels of a game.
func (r *Registry) OperatorsOf(gameID uuid.UUID) []*Conn {
	return r.connsOf(gameID, models.RoleOperator)
}

// TeamsOf returns the connected team channels of a game.
func (r *Registry) TeamsOf(gameID uuid.UUID) []*Conn {
	return r.connsOf(gameID, models.RoleTeam)
}

func (r *Registry) connsOf(gameID uuid.UUID, role models.Role) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Conn
	for conn := range r.gameConns[gameID] {
		if conn.Role == role {
			out = append(out, conn)
		}
	}
	return out
}

// HasConnections reports whether any channel of a game is still live.
func (r *Registry) HasConnections(gameID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.gameConns[gameID]) > 0
}

// Stats returns connection counts per game for the health endpoint.
func (r *Registry) Stats() (total int, perGame map[string]int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	perGame = make(map[string]int)
	for gameID, conns := range r.gameConns {
		perGame[gameID.String()] = len(conns)
		total += len(conns)
	}
	return total, perGame
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.registry.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
		c.registry.unregister(c)
	}()

	for {
		select {
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(c.registry.config.WriteTimeout))
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.registry.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("write message to channel")
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.registry.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.LastPing = time.Now()
		}
	}
}

func (c *Conn) readPump() {
	defer func() {
		c.registry.unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(c.registry.config.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.registry.config.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.registry.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected channel close")
			}
			break
		}

		if c.OnMessage != nil {
			c.OnMessage(c, message)
		}
		c.ws.SetReadDeadline(time.Now().Add(c.registry.config.ReadTimeout))
	}
}
