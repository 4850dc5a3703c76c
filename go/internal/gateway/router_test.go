package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/quizparty/go/internal/models"
	"github.com/mcdev12/quizparty/go/internal/protocol"
	"github.com/mcdev12/quizparty/go/internal/questions"
	"github.com/mcdev12/quizparty/go/internal/room"
	"github.com/mcdev12/quizparty/go/internal/session"
	"github.com/mcdev12/quizparty/go/internal/snapshot"
)

type sent struct {
	conn    string
	typ     protocol.EventType
	payload any
}

// fakeTransport is both the router's transport and the rooms' notifier.
type fakeTransport struct {
	mu      sync.Mutex
	out     []sent
	members map[string]string
	closed  []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{members: make(map[string]string)}
}

func (f *fakeTransport) Send(connID string, t protocol.EventType, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, sent{conn: connID, typ: t, payload: payload})
}

func (f *fakeTransport) Broadcast(roomCode string, t protocol.EventType, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for conn, code := range f.members {
		if code == roomCode {
			f.out = append(f.out, sent{conn: conn, typ: t, payload: payload})
		}
	}
}

func (f *fakeTransport) JoinRoom(connID, roomCode string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[connID] = roomCode
}

func (f *fakeTransport) LeaveRoom(connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members, connID)
}

func (f *fakeTransport) Close(connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, connID)
}

func (f *fakeTransport) last(conn string, t protocol.EventType) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.out) - 1; i >= 0; i-- {
		if f.out[i].conn == conn && f.out[i].typ == t {
			return f.out[i].payload, true
		}
	}
	return nil, false
}

func (f *fakeTransport) roomOf(conn string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[conn]
}

type memSaves struct {
	mu    sync.Mutex
	snaps map[string]models.Snapshot
}

func (m *memSaves) Save(_ context.Context, snap models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[snap.RoomCode] = snap
	return nil
}

func (m *memSaves) Load(_ context.Context, code string) (models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[code]
	if !ok {
		return models.Snapshot{}, snapshot.ErrNotFound
	}
	return snap, nil
}

func (m *memSaves) List(_ context.Context) ([]models.SnapshotMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var metas []models.SnapshotMeta
	for _, s := range m.snaps {
		metas = append(metas, s.Meta())
	}
	models.SortMetas(metas)
	return metas, nil
}

type routerEnv struct {
	transport *fakeTransport
	sessions  *session.Registry
	rooms     *room.Directory
	saves     *memSaves
	router    *Router
}

func newRouterEnv(t *testing.T) *routerEnv {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC))
	env := &routerEnv{
		transport: newFakeTransport(),
		sessions:  session.NewRegistry(clock),
		saves:     &memSaves{snaps: make(map[string]models.Snapshot)},
	}
	qs := questions.Default()
	env.rooms = room.NewDirectory(room.Deps{
		Clock:     clock,
		Questions: qs,
		Notifier:  env.transport,
		Sessions:  env.sessions,
		Snapshots: env.saves,
	})
	env.router = NewRouter(env.rooms, env.sessions, env.saves, env.transport, qs)
	return env
}

func (e *routerEnv) send(t *testing.T, conn string, typ protocol.EventType, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", typ, err)
	}
	frame, err := json.Marshal(protocol.Message{Type: typ, Data: raw})
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	e.router.HandleMessage(conn, frame)
}

func (e *routerEnv) createRoom(t *testing.T, hostConn string) string {
	t.Helper()
	e.send(t, hostConn, protocol.HostCreate, struct{}{})
	got, ok := e.transport.last(hostConn, protocol.HostCreated)
	if !ok {
		t.Fatal("expected host:created")
	}
	return got.(protocol.HostCreatedPayload).Pin
}

func (e *routerEnv) joinPlayer(t *testing.T, pin, name, conn string) string {
	t.Helper()
	e.send(t, conn, protocol.PlayerJoin, protocol.JoinRequest{Pin: pin, Name: name})
	got, ok := e.transport.last(conn, protocol.PlayerJoined)
	if !ok {
		t.Fatalf("expected player:joined for %s", name)
	}
	return got.(protocol.PlayerJoinedPayload).SessionID
}

func errorMessage(t *testing.T, f *fakeTransport, conn string, typ protocol.EventType) string {
	t.Helper()
	got, ok := f.last(conn, typ)
	if !ok {
		t.Fatalf("expected %s on %s", typ, conn)
	}
	return got.(protocol.ErrorPayload).Message
}

func TestRouterPing(t *testing.T) {
	env := newRouterEnv(t)
	env.send(t, "c1", protocol.Ping, struct{}{})
	if _, ok := env.transport.last("c1", protocol.Pong); !ok {
		t.Error("expected pong")
	}
}

func TestRouterIgnoresMalformedFrames(t *testing.T) {
	env := newRouterEnv(t)
	env.router.HandleMessage("c1", []byte("{not json"))
	env.router.HandleMessage("c1", []byte(`{"type":"player:join","data":"oops"}`))
	env.router.HandleMessage("c1", []byte(`{"type":"nobody:knows"}`))

	if len(env.transport.out) != 0 {
		t.Errorf("expected no output, got %d events", len(env.transport.out))
	}
}

func TestRouterHostCreate(t *testing.T) {
	env := newRouterEnv(t)
	pin := env.createRoom(t, "host")

	if len(pin) != 6 {
		t.Errorf("pin = %q, want six digits", pin)
	}
	if env.transport.roomOf("host") != pin {
		t.Error("host should be subscribed to its room")
	}
	got, _ := env.transport.last("host", protocol.HostCreated)
	if n := len(got.(protocol.HostCreatedPayload).AllQuestions); n != 5 {
		t.Errorf("allQuestions = %d, want 5", n)
	}
}

func TestRouterPlayerJoinErrors(t *testing.T) {
	env := newRouterEnv(t)
	env.send(t, "p1", protocol.PlayerJoin, protocol.JoinRequest{Pin: "999999", Name: "Alice"})
	if msg := errorMessage(t, env.transport, "p1", protocol.PlayerError); msg != msgRoomNotFound {
		t.Errorf("message = %q, want %q", msg, msgRoomNotFound)
	}

	pin := env.createRoom(t, "host")
	env.joinPlayer(t, pin, "Alice", "p1")
	env.send(t, "p2", protocol.PlayerJoin, protocol.JoinRequest{Pin: pin, Name: "Alice"})
	if msg := errorMessage(t, env.transport, "p2", protocol.PlayerError); msg != "Name already in use" {
		t.Errorf("message = %q", msg)
	}
	if env.transport.roomOf("p2") != "" {
		t.Error("rejected join should not stay subscribed")
	}
}

func TestRouterAnswerUsesBoundSession(t *testing.T) {
	env := newRouterEnv(t)
	pin := env.createRoom(t, "host")
	token := env.joinPlayer(t, pin, "Alice", "p1")

	env.send(t, "host", protocol.HostStart, protocol.PinRequest{Pin: pin})
	r, _ := env.rooms.Get(pin)
	if r.Phase() != room.PhaseQuestion {
		t.Fatalf("phase = %s, want question", r.Phase())
	}

	// an unbound connection cannot answer for anyone
	env.send(t, "stranger", protocol.PlayerAnswer, protocol.AnswerRequest{Pin: pin, Answer: 0})
	if _, ok := r.AnswerOf(token); ok {
		t.Fatal("stranger answer should be ignored")
	}

	env.send(t, "p1", protocol.PlayerAnswer, protocol.AnswerRequest{Pin: pin, Answer: 2})
	a, ok := r.AnswerOf(token)
	if !ok {
		t.Fatal("expected recorded answer")
	}
	if !a.Correct || a.Points != 1000 {
		t.Errorf("answer = %+v, want correct for 1000", a)
	}
}

func TestRouterDisconnectAndReconnect(t *testing.T) {
	env := newRouterEnv(t)
	pin := env.createRoom(t, "host")
	token := env.joinPlayer(t, pin, "Alice", "p1")
	r, _ := env.rooms.Get(pin)

	env.router.HandleDisconnect("p1")
	if r.Players()[token].Connected {
		t.Fatal("player should be disconnected")
	}

	env.send(t, "p1b", protocol.PlayerReconnect, protocol.ReconnectRequest{SessionID: token})
	got, ok := env.transport.last("p1b", protocol.PlayerReconnected)
	if !ok {
		t.Fatal("expected player:reconnected")
	}
	if name := got.(protocol.PlayerReconnectedPayload).Name; name != "Alice" {
		t.Errorf("name = %q", name)
	}
	if !r.Players()[token].Connected {
		t.Error("player should be connected again")
	}

	// the old connection closing late must not flip the player offline
	env.router.HandleDisconnect("p1")
	if !r.Players()[token].Connected {
		t.Error("stale disconnect should be ignored")
	}
}

func TestRouterReconnectErrors(t *testing.T) {
	env := newRouterEnv(t)
	env.send(t, "p1", protocol.PlayerReconnect, protocol.ReconnectRequest{SessionID: "nope"})
	if msg := errorMessage(t, env.transport, "p1", protocol.PlayerError); msg != msgSessionExpired {
		t.Errorf("message = %q, want %q", msg, msgSessionExpired)
	}

	token := env.sessions.Issue("123456", "Ghost", "old")
	env.send(t, "p2", protocol.PlayerReconnect, protocol.ReconnectRequest{SessionID: token})
	if msg := errorMessage(t, env.transport, "p2", protocol.PlayerError); msg != msgRoomGone {
		t.Errorf("message = %q, want %q", msg, msgRoomGone)
	}
}

func TestRouterKick(t *testing.T) {
	env := newRouterEnv(t)
	pin := env.createRoom(t, "host")
	token := env.joinPlayer(t, pin, "Alice", "p1")

	env.send(t, "host", protocol.HostKick, protocol.KickRequest{Pin: pin, Name: "Alice"})

	r, _ := env.rooms.Get(pin)
	if _, ok := r.Players()[token]; ok {
		t.Error("kicked player should be removed")
	}
	if len(env.transport.closed) != 1 || env.transport.closed[0] != "p1" {
		t.Errorf("closed = %v, want [p1]", env.transport.closed)
	}
	if _, ok := env.router.binding("p1"); ok {
		t.Error("kicked connection should be unbound")
	}
	if _, err := env.sessions.Get(token); err == nil {
		t.Error("kicked session should be revoked")
	}
}

func TestRouterLoadSave(t *testing.T) {
	env := newRouterEnv(t)
	env.send(t, "host", protocol.HostLoadSave, protocol.PinRequest{Pin: "482913"})
	if msg := errorMessage(t, env.transport, "host", protocol.HostError); msg != msgSaveNotFound {
		t.Errorf("message = %q, want %q", msg, msgSaveNotFound)
	}

	env.saves.snaps["482913"] = models.Snapshot{
		RoomCode:        "482913",
		UpdatedAt:       time.Date(2025, 5, 30, 20, 0, 0, 0, time.UTC),
		CurrentQuestion: 2,
		TotalQuestions:  5,
		Scores:          []models.ScoreEntry{{Name: "Alice", Score: 1800}, {Name: "Bob", Score: 700}},
	}
	env.send(t, "host", protocol.HostLoadSave, protocol.PinRequest{Pin: "482913"})

	got, ok := env.transport.last("host", protocol.HostReconnected)
	if !ok {
		t.Fatal("expected host:reconnected")
	}
	view := got.(protocol.HostReconnectedPayload)
	if !view.IsRestored || view.CurrentQuestion != 1 || len(view.Ranking) != 2 {
		t.Errorf("view = %+v", view)
	}

	// a returning player gets the saved score back
	token := env.joinPlayer(t, "482913", "Alice", "p1")
	r, _ := env.rooms.Get("482913")
	if score := r.Players()[token].Score; score != 1800 {
		t.Errorf("score = %d, want 1800", score)
	}
}

func TestRouterListSaves(t *testing.T) {
	env := newRouterEnv(t)
	env.send(t, "host", protocol.HostListSaves, struct{}{})
	got, ok := env.transport.last("host", protocol.HostSavesList)
	if !ok {
		t.Fatal("expected host:savesList")
	}
	if metas := got.([]models.SnapshotMeta); len(metas) != 0 {
		t.Errorf("metas = %v, want empty", metas)
	}
}

func TestRouterDisplayJoin(t *testing.T) {
	env := newRouterEnv(t)
	env.send(t, "tv", protocol.DisplayJoin, protocol.PinRequest{Pin: "111111"})
	if msg := errorMessage(t, env.transport, "tv", protocol.DisplayError); msg != msgRoomNotFound {
		t.Errorf("message = %q", msg)
	}

	pin := env.createRoom(t, "host")
	env.send(t, "tv", protocol.DisplayJoin, protocol.PinRequest{Pin: pin})
	if _, ok := env.transport.last("tv", protocol.DisplayJoined); !ok {
		t.Error("expected display:joined")
	}
	if env.transport.roomOf("tv") != pin {
		t.Error("display should receive room broadcasts")
	}
}

func TestRouterHostReconnect(t *testing.T) {
	env := newRouterEnv(t)
	env.send(t, "h2", protocol.HostReconnect, protocol.PinRequest{Pin: "222222"})
	if msg := errorMessage(t, env.transport, "h2", protocol.HostError); msg != msgRoomGone {
		t.Errorf("message = %q", msg)
	}

	pin := env.createRoom(t, "host")
	env.router.HandleDisconnect("host")
	env.send(t, "h2", protocol.HostReconnect, protocol.PinRequest{Pin: pin})
	if _, ok := env.transport.last("h2", protocol.HostReconnected); !ok {
		t.Error("expected host:reconnected")
	}
}

func TestRouterHostCommandsNeedHost(t *testing.T) {
	env := newRouterEnv(t)
	pin := env.createRoom(t, "host")
	env.joinPlayer(t, pin, "Alice", "p1")

	env.send(t, "p1", protocol.HostStart, protocol.PinRequest{Pin: pin})
	env.send(t, "p1", protocol.HostKick, protocol.KickRequest{Pin: pin, Name: "Alice"})

	r, _ := env.rooms.Get(pin)
	if r.Phase() != room.PhaseLobby {
		t.Errorf("phase = %s, a player must not start the game", r.Phase())
	}
	if len(r.Players()) != 1 {
		t.Error("a player must not kick")
	}
}

func TestRouterSupersededHostLosesRights(t *testing.T) {
	env := newRouterEnv(t)
	pin := env.createRoom(t, "hostA")
	env.joinPlayer(t, pin, "Alice", "p1")

	env.send(t, "hostB", protocol.HostReconnect, protocol.PinRequest{Pin: pin})
	if _, ok := env.transport.last("hostB", protocol.HostReconnected); !ok {
		t.Fatal("expected host:reconnected on the new connection")
	}

	env.send(t, "hostA", protocol.HostStart, protocol.PinRequest{Pin: pin})
	env.send(t, "hostA", protocol.HostKick, protocol.KickRequest{Pin: pin, Name: "Alice"})

	r, _ := env.rooms.Get(pin)
	if r.Phase() != room.PhaseLobby {
		t.Errorf("phase = %s, the replaced host must not start the game", r.Phase())
	}
	if len(r.Players()) != 1 {
		t.Errorf("players = %d, the replaced host must not kick", len(r.Players()))
	}

	env.send(t, "hostB", protocol.HostStart, protocol.PinRequest{Pin: pin})
	if r.Phase() != room.PhaseQuestion {
		t.Errorf("phase = %s, the current host should start the game", r.Phase())
	}
}
