package room

import (
	"sort"
	"time"

	"github.com/mcdev12/quizparty/go/internal/models"
	"github.com/mcdev12/quizparty/go/internal/protocol"
)

// AttachHost makes connID the room's host and sends it the current state.
func (r *Room) AttachHost(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.hostConn = connID
	r.deps.Notifier.Send(connID, protocol.HostReconnected, r.hostView())
}

// DetachHost clears the host binding if connID still holds it.
func (r *Room) DetachHost(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hostConn == connID {
		r.hostConn = ""
	}
}

// IsHost reports whether connID is the room's current host connection.
func (r *Room) IsHost(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return connID != "" && r.hostConn == connID
}

// JoinDisplay sends a display its starting view.
func (r *Room) JoinDisplay(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	restored := r.restored()
	ranking := []protocol.RankEntry{}
	if restored && r.index >= 0 {
		ranking = r.ranking()
	}
	r.deps.Notifier.Send(connID, protocol.DisplayJoined, protocol.DisplayJoinedPayload{
		Pin:             r.code,
		Players:         r.playerNames(),
		IsRestored:      restored,
		Ranking:         ranking,
		CurrentQuestion: r.index,
	})

	switch r.phase {
	case PhaseQuestion:
		r.deps.Notifier.Send(connID, protocol.GameQuestion, r.questionPayload(r.remaining().Seconds()))
	case PhaseReveal:
		q, _ := r.deps.Questions.At(r.index)
		r.deps.Notifier.Send(connID, protocol.GameQuestion, r.questionPayload(0))
		r.deps.Notifier.Send(connID, protocol.GameReveal, protocol.RevealPayload{Correct: q.Correct})
	}
}

// caller holds r.mu
func (r *Room) hostView() protocol.HostReconnectedPayload {
	var data *models.QuestionData
	if r.phase == PhaseQuestion || r.phase == PhaseReveal {
		q, _ := r.deps.Questions.At(r.index)
		pub := q.Public()
		data = &pub
	}
	return protocol.HostReconnectedPayload{
		Pin:             r.code,
		Players:         r.playerNames(),
		CurrentQuestion: r.index,
		TotalQuestions:  r.deps.Questions.Len(),
		AnswerCount:     len(r.answers),
		Ranking:         r.ranking(),
		QuestionData:    data,
		AllQuestions:    r.deps.Questions.Questions,
		IsRestored:      r.restored(),
	}
}

// caller holds r.mu
func (r *Room) ranking() []protocol.RankEntry {
	out := make([]protocol.RankEntry, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, protocol.RankEntry{Name: p.Name, Score: p.Score, Connected: p.Connected})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (r *Room) playerNames() []string {
	names := make([]string, 0, len(r.players))
	for _, p := range r.players {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

func (r *Room) answerCount() protocol.AnswerCountPayload {
	return protocol.AnswerCountPayload{Count: len(r.answers), Total: len(r.players)}
}

// remaining is the unused part of the answer window, never negative.
func (r *Room) remaining() time.Duration {
	if r.questionStartedAt.IsZero() {
		return 0
	}
	left := r.deps.Questions.TimeLimit - r.deps.Clock.Now().Sub(r.questionStartedAt)
	if left < 0 {
		return 0
	}
	return left
}

func (r *Room) questionPayload(timeLimit float64) protocol.QuestionPayload {
	q, _ := r.deps.Questions.At(r.index)
	return protocol.QuestionPayload{
		Index:     r.index,
		Total:     r.deps.Questions.Len(),
		Question:  q.Question,
		Options:   q.Options,
		TimeLimit: timeLimit,
	}
}

func (r *Room) sendPlayersUpdate() {
	r.sendHost(protocol.HostPlayersUpdate, protocol.PlayersUpdatePayload{Players: r.ranking()})
}

func (r *Room) sendHost(t protocol.EventType, payload any) {
	if r.hostConn == "" {
		return
	}
	r.deps.Notifier.Send(r.hostConn, t, payload)
}

func (r *Room) broadcast(t protocol.EventType, payload any) {
	r.deps.Notifier.Broadcast(r.code, t, payload)
}
