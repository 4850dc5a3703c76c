package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/mcdev12/quizparty/go/internal/models"
	"github.com/mcdev12/quizparty/go/internal/protocol"
	"github.com/mcdev12/quizparty/go/internal/questions"
	"github.com/mcdev12/quizparty/go/internal/room"
	"github.com/mcdev12/quizparty/go/internal/session"
	"github.com/mcdev12/quizparty/go/internal/snapshot"
	"github.com/rs/zerolog/log"
)

const (
	msgRoomNotFound   = "Room not found"
	msgRoomGone       = "Room no longer exists"
	msgSessionExpired = "Session expired"
	msgSaveNotFound   = "Save file not found"
	msgListFailed     = "Failed to list saves"
	msgCreateFailed   = "Failed to create room"

	storeTimeout = 5 * time.Second
)

// Transport is the connection side the router drives.
type Transport interface {
	Send(connID string, t protocol.EventType, payload any)
	JoinRoom(connID, roomCode string)
	LeaveRoom(connID string)
	Close(connID string)
}

// Role is what a connection declared itself as.
type Role string

const (
	RoleHost    Role = "host"
	RoleDisplay Role = "display"
	RolePlayer  Role = "player"
)

// binding records what a connection currently is.
type binding struct {
	RoomCode string
	Role     Role
	Token    string
}

// Router maps inbound wire events onto room operations.
type Router struct {
	rooms     *room.Directory
	sessions  *session.Registry
	saves     snapshot.Store
	transport Transport
	questions *questions.Set

	mu       sync.Mutex
	bindings map[string]binding
}

// NewRouter builds a router with no bound connections.
func NewRouter(rooms *room.Directory, sessions *session.Registry, saves snapshot.Store, transport Transport, qs *questions.Set) *Router {
	return &Router{
		rooms:     rooms,
		sessions:  sessions,
		saves:     saves,
		transport: transport,
		questions: qs,
		bindings:  make(map[string]binding),
	}
}

// HandleMessage decodes one frame and dispatches it. Malformed frames and
// requests that make no sense in the current phase are dropped.
func (rt *Router) HandleMessage(connID string, data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warn().Err(err).Str("connection_id", connID).Msg("malformed message")
		return
	}

	log.Debug().
		Str("connection_id", connID).
		Str("event_type", string(msg.Type)).
		Msg("inbound message")

	var err error
	switch msg.Type {
	case protocol.Ping:
		rt.transport.Send(connID, protocol.Pong, struct{}{})
	case protocol.HostCreate:
		rt.hostCreate(connID)
	case protocol.HostListSaves:
		rt.hostListSaves(connID)
	case protocol.HostLoadSave:
		err = rt.withPin(msg, func(pin string) { rt.hostLoadSave(connID, pin) })
	case protocol.HostReconnect:
		err = rt.withPin(msg, func(pin string) { rt.hostReconnect(connID, pin) })
	case protocol.HostKick:
		var req protocol.KickRequest
		if err = msg.Decode(&req); err == nil && rt.isHost(connID, req.Pin) {
			rt.hostKick(req.Pin, req.Name)
		}
	case protocol.HostStart:
		err = rt.withHostRoom(connID, msg, (*room.Room).Start)
	case protocol.HostNext:
		err = rt.withHostRoom(connID, msg, (*room.Room).ForceEnd)
	case protocol.HostNextQuestion:
		err = rt.withHostRoom(connID, msg, (*room.Room).AdvanceToNext)
	case protocol.DisplayJoin:
		err = rt.withPin(msg, func(pin string) { rt.displayJoin(connID, pin) })
	case protocol.DisplayAudioEnded:
		err = rt.withRoom(msg, (*room.Room).AckReveal)
	case protocol.DisplayTriggerReveal:
		err = rt.withRoom(msg, (*room.Room).ResendFeedback)
	case protocol.PlayerJoin:
		var req protocol.JoinRequest
		if err = msg.Decode(&req); err == nil {
			rt.playerJoin(connID, req.Pin, req.Name)
		}
	case protocol.PlayerReconnect:
		var req protocol.ReconnectRequest
		if err = msg.Decode(&req); err == nil {
			rt.playerReconnect(connID, req.SessionID)
		}
	case protocol.PlayerGetDisconnectedProfiles:
		err = rt.withPin(msg, func(pin string) { rt.disconnectedProfiles(connID, pin) })
	case protocol.PlayerAnswer:
		var req protocol.AnswerRequest
		if err = msg.Decode(&req); err == nil {
			rt.playerAnswer(connID, req)
		}
	default:
		log.Debug().Str("event_type", string(msg.Type)).Msg("unknown event type")
	}

	if err != nil {
		log.Warn().Err(err).Str("connection_id", connID).Msg("bad request payload")
	}
}

// HandleDisconnect releases whatever the connection was bound to.
func (rt *Router) HandleDisconnect(connID string) {
	rt.release(connID)
}

func (rt *Router) withPin(msg protocol.Message, fn func(pin string)) error {
	var req protocol.PinRequest
	if err := msg.Decode(&req); err != nil {
		return err
	}
	fn(req.Pin)
	return nil
}

// withRoom runs op on the room named by the request; unknown rooms are ignored.
func (rt *Router) withRoom(msg protocol.Message, op func(*room.Room)) error {
	return rt.withPin(msg, func(pin string) {
		r, err := rt.rooms.Get(pin)
		if err != nil {
			log.Debug().Str("room_code", pin).Str("event_type", string(msg.Type)).Msg("room not found")
			return
		}
		op(r)
	})
}

// withHostRoom is withRoom restricted to the connection hosting that room.
func (rt *Router) withHostRoom(connID string, msg protocol.Message, op func(*room.Room)) error {
	var req protocol.PinRequest
	if err := msg.Decode(&req); err != nil {
		return err
	}
	if !rt.isHost(connID, req.Pin) {
		log.Debug().Str("connection_id", connID).Str("event_type", string(msg.Type)).Msg("not the room host")
		return nil
	}
	return rt.withRoom(msg, op)
}

// isHost requires both the host binding and the room still naming connID as
// its host; a reconnect elsewhere strips the old connection.
func (rt *Router) isHost(connID, pin string) bool {
	b, ok := rt.binding(connID)
	if !ok || b.Role != RoleHost || b.RoomCode != pin {
		return false
	}
	r, err := rt.rooms.Get(pin)
	return err == nil && r.IsHost(connID)
}

func (rt *Router) hostCreate(connID string) {
	r, err := rt.rooms.Create(connID)
	if err != nil {
		log.Error().Err(err).Msg("failed to create room")
		rt.fail(connID, protocol.HostError, msgCreateFailed)
		return
	}
	rt.bind(connID, binding{RoomCode: r.Code(), Role: RoleHost})
	rt.transport.Send(connID, protocol.HostCreated, protocol.HostCreatedPayload{
		Pin:          r.Code(),
		AllQuestions: rt.questions.Questions,
	})
}

func (rt *Router) hostListSaves(connID string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	metas, err := rt.saves.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list saves")
		rt.fail(connID, protocol.HostError, msgListFailed)
		return
	}
	if metas == nil {
		metas = []models.SnapshotMeta{}
	}
	rt.transport.Send(connID, protocol.HostSavesList, metas)
}

func (rt *Router) hostLoadSave(connID, pin string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	snap, err := rt.saves.Load(ctx, pin)
	if err != nil {
		if !errors.Is(err, snapshot.ErrNotFound) {
			log.Error().Err(err).Str("room_code", pin).Msg("failed to load save")
		}
		rt.fail(connID, protocol.HostError, msgSaveNotFound)
		return
	}

	rt.sessions.RevokeRoom(snap.RoomCode)
	r := rt.rooms.Restore(snap, connID)
	rt.bind(connID, binding{RoomCode: r.Code(), Role: RoleHost})
	r.AttachHost(connID)
}

func (rt *Router) hostReconnect(connID, pin string) {
	r, err := rt.rooms.Get(pin)
	if err != nil {
		rt.fail(connID, protocol.HostError, msgRoomGone)
		return
	}
	rt.bind(connID, binding{RoomCode: pin, Role: RoleHost})
	r.AttachHost(connID)
}

func (rt *Router) hostKick(pin, name string) {
	r, err := rt.rooms.Get(pin)
	if err != nil {
		return
	}
	for _, conn := range r.Kick(name) {
		rt.unbind(conn)
		rt.transport.LeaveRoom(conn)
		rt.transport.Close(conn)
	}
}

func (rt *Router) displayJoin(connID, pin string) {
	r, err := rt.rooms.Get(pin)
	if err != nil {
		rt.fail(connID, protocol.DisplayError, msgRoomNotFound)
		return
	}
	rt.bind(connID, binding{RoomCode: pin, Role: RoleDisplay})
	r.JoinDisplay(connID)
}

func (rt *Router) playerJoin(connID, pin, name string) {
	r, err := rt.rooms.Get(pin)
	if err != nil {
		rt.fail(connID, protocol.PlayerError, msgRoomNotFound)
		return
	}

	rt.release(connID)
	rt.transport.JoinRoom(connID, pin)
	token, err := r.Join(name, connID)
	if err != nil {
		rt.transport.LeaveRoom(connID)
		rt.fail(connID, protocol.PlayerError, joinErrorMessage(err))
		return
	}
	rt.setBinding(connID, binding{RoomCode: pin, Role: RolePlayer, Token: token})
}

func (rt *Router) playerReconnect(connID, token string) {
	s, err := rt.sessions.Get(token)
	if err != nil {
		rt.fail(connID, protocol.PlayerError, msgSessionExpired)
		return
	}
	r, err := rt.rooms.Get(s.RoomCode)
	if err != nil {
		rt.fail(connID, protocol.PlayerError, msgRoomGone)
		return
	}

	rt.release(connID)
	rt.transport.JoinRoom(connID, s.RoomCode)
	if err := r.Reconnect(token, connID); err != nil {
		rt.transport.LeaveRoom(connID)
		rt.fail(connID, protocol.PlayerError, msgRoomGone)
		return
	}
	rt.setBinding(connID, binding{RoomCode: s.RoomCode, Role: RolePlayer, Token: token})
}

func (rt *Router) disconnectedProfiles(connID, pin string) {
	r, err := rt.rooms.Get(pin)
	if err != nil {
		rt.fail(connID, protocol.PlayerError, msgRoomNotFound)
		return
	}
	rt.transport.Send(connID, protocol.PlayerDisconnectedProfiles, r.DisconnectedProfiles())
}

// playerAnswer uses the session bound to the connection, never a client supplied one.
func (rt *Router) playerAnswer(connID string, req protocol.AnswerRequest) {
	b, ok := rt.binding(connID)
	if !ok || b.Role != RolePlayer || (req.Pin != "" && req.Pin != b.RoomCode) {
		return
	}
	r, err := rt.rooms.Get(b.RoomCode)
	if err != nil {
		return
	}
	r.SubmitAnswer(b.Token, req.Answer)
}

func joinErrorMessage(err error) string {
	switch {
	case errors.Is(err, room.ErrNameTaken):
		return "Name already in use"
	case errors.Is(err, room.ErrInvalidName):
		return "Name is required"
	default:
		return msgRoomNotFound
	}
}

func (rt *Router) fail(connID string, t protocol.EventType, message string) {
	rt.transport.Send(connID, t, protocol.ErrorPayload{Message: message})
}

// bind releases the previous role of connID, then subscribes it to the room.
func (rt *Router) bind(connID string, b binding) {
	rt.release(connID)
	rt.transport.JoinRoom(connID, b.RoomCode)
	rt.setBinding(connID, b)
}

func (rt *Router) setBinding(connID string, b binding) {
	rt.mu.Lock()
	rt.bindings[connID] = b
	rt.mu.Unlock()
}

func (rt *Router) binding(connID string) (binding, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	b, ok := rt.bindings[connID]
	return b, ok
}

func (rt *Router) unbind(connID string) (binding, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	b, ok := rt.bindings[connID]
	delete(rt.bindings, connID)
	return b, ok
}

func (rt *Router) release(connID string) {
	b, ok := rt.unbind(connID)
	if !ok {
		return
	}
	r, err := rt.rooms.Get(b.RoomCode)
	if err != nil {
		return
	}
	switch b.Role {
	case RoleHost:
		r.DetachHost(connID)
	case RolePlayer:
		if r.MarkDisconnected(b.Token, connID) {
			log.Info().Str("room_code", b.RoomCode).Str("session", b.Token).Msg("player disconnected")
		}
	}
}
