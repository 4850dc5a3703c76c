package room

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/quizparty/go/internal/models"
	"github.com/mcdev12/quizparty/go/internal/protocol"
	"github.com/mcdev12/quizparty/go/internal/questions"
	"github.com/mcdev12/quizparty/go/internal/session"
)

type delivery struct {
	target    string
	broadcast bool
	typ       protocol.EventType
	payload   any
}

// recorder captures everything a room emits.
type recorder struct {
	mu  sync.Mutex
	out []delivery
}

func (r *recorder) Broadcast(code string, t protocol.EventType, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, delivery{target: code, broadcast: true, typ: t, payload: payload})
}

func (r *recorder) Send(connID string, t protocol.EventType, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, delivery{target: connID, typ: t, payload: payload})
}

// all returns payloads of type t delivered to target, in order.
func (r *recorder) all(target string, t protocol.EventType) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var got []any
	for _, d := range r.out {
		if d.target == target && d.typ == t {
			got = append(got, d.payload)
		}
	}
	return got
}

func (r *recorder) last(target string, t protocol.EventType) (any, bool) {
	got := r.all(target, t)
	if len(got) == 0 {
		return nil, false
	}
	return got[len(got)-1], true
}

type memStore struct {
	mu    sync.Mutex
	saves []models.Snapshot
}

func (m *memStore) Save(_ context.Context, snap models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves = append(m.saves, snap)
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saves)
}

func (m *memStore) latest() models.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves[len(m.saves)-1]
}

type testEnv struct {
	clock    *clockwork.FakeClock
	notes    *recorder
	sessions *session.Registry
	store    *memStore
	dir      *Directory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC))
	env := &testEnv{
		clock:    clock,
		notes:    &recorder{},
		sessions: session.NewRegistry(clock),
		store:    &memStore{},
	}
	env.dir = NewDirectory(Deps{
		Clock:     clock,
		Questions: questions.Default(),
		Notifier:  env.notes,
		Sessions:  env.sessions,
		Snapshots: env.store,
	})
	return env
}

func (e *testEnv) newRoom(t *testing.T) *Room {
	t.Helper()
	r, err := e.dir.Create("host")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return r
}

func (e *testEnv) join(t *testing.T, r *Room, name, conn string) string {
	t.Helper()
	token, err := r.Join(name, conn)
	if err != nil {
		t.Fatalf("Join(%q) error = %v", name, err)
	}
	return token
}

// waitUntil polls cond; fake clock callbacks run on their own goroutines.
func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func waitPhase(t *testing.T, r *Room, want Phase) {
	t.Helper()
	waitUntil(t, "phase "+string(want), func() bool { return r.Phase() == want })
}

// correctChoice returns the answer index of the room's current question.
func correctChoice(r *Room) int {
	q, _ := r.deps.Questions.At(r.CurrentIndex())
	return q.Correct
}

// gatedStore holds the first save of currentQuestion gateAt until release is
// closed, so a later snapshot is queued behind a slow write.
type gatedStore struct {
	memStore
	gateAt  int
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedStore(gateAt int) *gatedStore {
	return &gatedStore{
		gateAt:  gateAt,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedStore) Save(ctx context.Context, snap models.Snapshot) error {
	if snap.CurrentQuestion == g.gateAt {
		g.once.Do(func() { close(g.entered) })
		<-g.release
	}
	return g.memStore.Save(ctx, snap)
}
