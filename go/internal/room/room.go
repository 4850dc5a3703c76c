package room

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/quizparty/go/internal/events"
	"github.com/mcdev12/quizparty/go/internal/models"
	"github.com/mcdev12/quizparty/go/internal/protocol"
	"github.com/mcdev12/quizparty/go/internal/questions"
	"github.com/rs/zerolog/log"
)

// Phase is the stage of a room's game loop.
type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseQuestion Phase = "question"
	PhaseReveal   Phase = "reveal"
	PhaseRanking  Phase = "ranking"
	PhaseFinal    Phase = "final"
)

const (
	answerAllGrace  = time.Second
	timeoutBuffer   = 500 * time.Millisecond
	lateAnswerGrace = 2 * time.Second
	revealCeiling   = 12 * time.Second

	persistTimeout = 10 * time.Second
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrPlayerGone   = errors.New("room no longer exists")
	ErrNameTaken    = errors.New("name already in use")
	ErrInvalidName  = errors.New("name is required")
)

// Notifier delivers outbound events. Implementations must not block.
type Notifier interface {
	Broadcast(roomCode string, t protocol.EventType, payload any)
	Send(connID string, t protocol.EventType, payload any)
}

// SessionStore is the subset of the session registry a room mutates.
type SessionStore interface {
	Issue(roomCode, name, connID string) string
	Rebind(token, connID string) bool
	Revoke(token string)
	ConnectionFor(token string) (string, bool)
}

// SnapshotSaver persists the scoreboard at every reveal.
type SnapshotSaver interface {
	Save(ctx context.Context, snap models.Snapshot) error
}

// Deps are shared by every room of a directory. Snapshots and Events are optional.
type Deps struct {
	Clock     clockwork.Clock
	Questions *questions.Set
	Notifier  Notifier
	Sessions  SessionStore
	Snapshots SnapshotSaver
	Events    events.Publisher
}

// Player is one roster entry. Connected is false while the player is away.
type Player struct {
	Name      string
	Score     int
	Connected bool
}

// Answer is immutable once recorded.
type Answer struct {
	Choice  int
	Correct bool
	Points  int
}

// Room owns one game. Every exported method runs to completion under mu,
// timer callbacks included.
type Room struct {
	mu   sync.Mutex
	code string
	deps Deps

	hostConn string
	phase    Phase
	index    int

	// keyed by session token, or "restored:<name>" for entries loaded from a save
	players     map[string]*Player
	answers     map[string]Answer
	savedScores map[string]int

	activeTimer       *deferred
	rankingTimer      *deferred
	questionStartedAt time.Time

	// bumped on every transition; timer callbacks from an older generation are dropped
	generation uint64
	closed     bool

	// saveSeq numbers snapshots under mu; savedSeq is the newest one written,
	// guarded by saveMu, so a save never lands on top of a newer one.
	saveSeq  uint64
	saveMu   sync.Mutex
	savedSeq uint64
}

func newRoom(code, hostConn string, deps Deps) *Room {
	return &Room{
		code:        code,
		deps:        deps,
		hostConn:    hostConn,
		phase:       PhaseLobby,
		index:       -1,
		players:     make(map[string]*Player),
		answers:     make(map[string]Answer),
		savedScores: make(map[string]int),
	}
}

// Code is the room's join code.
func (r *Room) Code() string { return r.code }

func (r *Room) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

func (r *Room) CurrentIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index
}

// Restored reports whether the room is paused between a save and a resume:
// no pending timer and no live question.
func (r *Room) Restored() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.restored()
}

func (r *Room) restored() bool {
	return r.index >= -1 &&
		r.activeTimer == nil &&
		r.rankingTimer == nil &&
		r.questionStartedAt.IsZero()
}

// Players returns a copy of the roster keyed by session token.
func (r *Room) Players() map[string]Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Player, len(r.players))
	for k, p := range r.players {
		out[k] = *p
	}
	return out
}

// AnswerOf returns the answer recorded for token in the current question.
func (r *Room) AnswerOf(token string) (Answer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.answers[token]
	return a, ok
}

// Start begins the first question, or the one after the last completed
// question when the room was restored or is showing the ranking.
func (r *Room) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || (r.phase != PhaseLobby && r.phase != PhaseRanking) {
		log.Debug().Str("room_code", r.code).Str("phase", string(r.phase)).Msg("start ignored")
		return
	}
	r.advance()
}

// AdvanceToNext moves from the ranking to the next question, or to the final
// leaderboard after the last one.
func (r *Room) AdvanceToNext() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.phase != PhaseRanking {
		log.Debug().Str("room_code", r.code).Str("phase", string(r.phase)).Msg("next ignored")
		return
	}
	r.advance()
}

// caller holds r.mu
func (r *Room) advance() {
	if r.index+1 > r.deps.Questions.LastIndex() {
		r.finish()
		return
	}
	r.index++
	r.startQuestion()
}

// ForceEnd reveals the current question immediately.
func (r *Room) ForceEnd() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.phase != PhaseQuestion {
		return
	}
	r.endQuestion("host")
}

// AckReveal is the display's signal that the reveal animation finished.
func (r *Room) AckReveal() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.phase != PhaseReveal {
		return
	}
	r.cancelRankingTimer()
	r.enterRanking()
}

// SubmitAnswer records the first in-window answer of token for the current
// question. The second return value is false when the answer was dropped.
func (r *Room) SubmitAnswer(token string, choice int) (Answer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.phase != PhaseQuestion {
		return Answer{}, false
	}
	p, ok := r.players[token]
	if !ok {
		return Answer{}, false
	}
	if _, dup := r.answers[token]; dup {
		return Answer{}, false
	}

	limit := r.deps.Questions.TimeLimit
	elapsed := r.deps.Clock.Now().Sub(r.questionStartedAt)
	if elapsed > limit+lateAnswerGrace {
		log.Debug().Str("room_code", r.code).Dur("elapsed", elapsed).Msg("late answer dropped")
		return Answer{}, false
	}
	remaining := limit - elapsed
	if remaining < 0 {
		remaining = 0
	}

	q, _ := r.deps.Questions.At(r.index)
	a := Answer{Choice: choice}
	if choice == q.Correct && remaining > 0 {
		a.Correct = true
		a.Points = Points(remaining, limit)
		p.Score += a.Points
	}
	r.answers[token] = a

	if conn, ok := r.deps.Sessions.ConnectionFor(token); ok {
		r.deps.Notifier.Send(conn, protocol.PlayerAnswered, struct{}{})
	}
	count := r.answerCount()
	r.sendHost(protocol.HostAnswerCount, count)
	r.broadcast(protocol.GameAnswerCount, count)
	r.sendHost(protocol.HostPlayerAnswered, protocol.PlayerAnsweredPayload{PlayerName: p.Name})

	r.checkAllAnswered()
	return a, true
}

// Close cancels timers. Pending callbacks become no-ops.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	r.generation++
	r.cancelTimers()
}

// caller holds r.mu
func (r *Room) startQuestion() {
	r.cancelTimers()
	r.generation++
	r.phase = PhaseQuestion
	r.answers = make(map[string]Answer)

	now := r.deps.Clock.Now()
	r.questionStartedAt = now
	limit := r.deps.Questions.TimeLimit

	r.broadcast(protocol.GameAnswerCount, protocol.AnswerCountPayload{Count: 0, Total: len(r.players)})
	r.broadcast(protocol.GameQuestion, r.questionPayload(limit.Seconds()))

	gen := r.generation
	r.activeTimer = schedule(r.deps.Clock, limit+timeoutBuffer, func() {
		r.onQuestionTimer(gen, "timeout")
	})

	log.Info().
		Str("room_code", r.code).
		Int("question_index", r.index).
		Int("players", len(r.players)).
		Msg("question started")

	r.publish(events.EventTypeQuestionStarted, events.QuestionStartedPayload{
		QuestionIndex:  r.index,
		TotalQuestions: r.deps.Questions.Len(),
		PlayerCount:    len(r.players),
		TimeLimitSec:   limit.Seconds(),
		StartedAt:      now,
	})
}

// checkAllAnswered brings the reveal forward once every known player answered.
// caller holds r.mu
func (r *Room) checkAllAnswered() {
	if r.phase != PhaseQuestion || len(r.players) == 0 || len(r.answers) < len(r.players) {
		return
	}
	deadline := r.deps.Clock.Now().Add(answerAllGrace)
	if r.activeTimer != nil && !r.activeTimer.deadline.After(deadline) {
		return
	}
	gen := r.generation
	r.replaceActiveTimer(schedule(r.deps.Clock, answerAllGrace, func() {
		r.onQuestionTimer(gen, "all answered")
	}))
}

func (r *Room) onQuestionTimer(gen uint64, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || gen != r.generation || r.phase != PhaseQuestion {
		log.Debug().Str("room_code", r.code).Str("reason", reason).Msg("stale question timer")
		return
	}
	r.activeTimer = nil
	r.endQuestion(reason)
}

// endQuestion broadcasts the reveal first, then persists the scoreboard in
// the background.
// caller holds r.mu
func (r *Room) endQuestion(reason string) {
	r.cancelActiveTimer()
	r.generation++
	r.phase = PhaseReveal
	r.questionStartedAt = time.Time{}

	q, _ := r.deps.Questions.At(r.index)
	r.broadcast(protocol.GameReveal, protocol.RevealPayload{Correct: q.Correct})
	r.sendFeedback()

	gen := r.generation
	r.rankingTimer = schedule(r.deps.Clock, revealCeiling, func() {
		r.onRankingTimer(gen)
	})

	now := r.deps.Clock.Now()
	correct := 0
	for _, a := range r.answers {
		if a.Correct {
			correct++
		}
	}
	log.Info().
		Str("room_code", r.code).
		Int("question_index", r.index).
		Str("reason", reason).
		Int("answers", len(r.answers)).
		Msg("question revealed")

	r.persist(r.snapshot(now))
	r.publish(events.EventTypeQuestionRevealed, events.QuestionRevealedPayload{
		QuestionIndex: r.index,
		CorrectIndex:  q.Correct,
		AnswerCount:   len(r.answers),
		CorrectCount:  correct,
		PlayerCount:   len(r.players),
		RevealedAt:    now,
	})
}

func (r *Room) onRankingTimer(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || gen != r.generation || r.phase != PhaseReveal {
		return
	}
	r.rankingTimer = nil
	log.Debug().Str("room_code", r.code).Msg("reveal not acknowledged, advancing")
	r.enterRanking()
}

// caller holds r.mu
func (r *Room) enterRanking() {
	if r.index >= r.deps.Questions.LastIndex() {
		r.finish()
		return
	}
	r.generation++
	r.phase = PhaseRanking
	r.broadcast(protocol.GameRanking, protocol.RankingPayload{Ranking: r.ranking()})
}

// caller holds r.mu
func (r *Room) finish() {
	r.cancelTimers()
	r.generation++
	r.phase = PhaseFinal
	r.questionStartedAt = time.Time{}

	ranking := r.ranking()
	r.broadcast(protocol.GameFinal, protocol.RankingPayload{Ranking: ranking})
	log.Info().Str("room_code", r.code).Int("players", len(r.players)).Msg("game finished")

	scores := make([]models.ScoreEntry, len(ranking))
	for i, e := range ranking {
		scores[i] = models.ScoreEntry{Name: e.Name, Score: e.Score}
	}
	r.publish(events.EventTypeGameFinished, events.GameFinishedPayload{
		TotalQuestions: r.deps.Questions.Len(),
		Ranking:        scores,
		FinishedAt:     r.deps.Clock.Now(),
	})
}

// caller holds r.mu
func (r *Room) snapshot(now time.Time) models.Snapshot {
	scores := make([]models.ScoreEntry, 0, len(r.players))
	for _, p := range r.players {
		scores = append(scores, models.ScoreEntry{Name: p.Name, Score: p.Score})
	}
	models.SortScores(scores)
	return models.Snapshot{
		RoomCode:        r.code,
		UpdatedAt:       now.UTC(),
		CurrentQuestion: r.index + 1,
		TotalQuestions:  r.deps.Questions.Len(),
		Scores:          scores,
	}
}

// persist writes snap in the background. Saves of one room are serialized and
// a snapshot older than the last one written is skipped.
// caller holds r.mu
func (r *Room) persist(snap models.Snapshot) {
	if r.deps.Snapshots == nil {
		return
	}
	r.saveSeq++
	seq := r.saveSeq
	go r.writeSnapshot(seq, snap)
}

func (r *Room) writeSnapshot(seq uint64, snap models.Snapshot) {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	if seq <= r.savedSeq {
		log.Debug().
			Str("room_code", snap.RoomCode).
			Int("current_question", snap.CurrentQuestion).
			Msg("stale snapshot skipped")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := r.deps.Snapshots.Save(ctx, snap); err != nil {
		log.Error().Err(err).Str("room_code", snap.RoomCode).Msg("failed to save snapshot")
		return
	}
	r.savedSeq = seq
}

func (r *Room) publish(t events.EventType, payload any) {
	if r.deps.Events == nil {
		return
	}
	ev, err := events.NewEvent(r.code, t, payload, r.deps.Clock.Now())
	if err != nil {
		log.Error().Err(err).Str("room_code", r.code).Msg("failed to build domain event")
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := r.deps.Events.Publish(ctx, ev); err != nil {
			log.Error().Err(err).
				Str("room_code", ev.RoomCode).
				Str("event_type", string(ev.EventType)).
				Msg("failed to publish domain event")
		}
	}()
}
