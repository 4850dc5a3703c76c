package room

import (
	"sort"
	"strings"

	"github.com/mcdev12/quizparty/go/internal/protocol"
	"github.com/rs/zerolog/log"
)

const (
	restoredKeyPrefix = "restored:"
	kickedMessage     = "You were removed from the room by the host."
)

// Join admits name into the room under a fresh session token.
//
// A disconnected entry with the same name is reclaimed with its score (and
// any answer it already gave this question). Otherwise a score recorded in
// the loaded save is used, else zero. A name held by a connected player is
// rejected.
func (r *Room) Join(name, connID string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return "", ErrRoomNotFound
	}

	score := 0
	var carried *Answer
	staleKey, stale := "", (*Player)(nil)
	for key, p := range r.players {
		if p.Name != name {
			continue
		}
		if p.Connected {
			return "", ErrNameTaken
		}
		staleKey, stale = key, p
	}

	switch {
	case stale != nil:
		score = stale.Score
		if a, ok := r.answers[staleKey]; ok {
			carried = &a
			delete(r.answers, staleKey)
		}
		delete(r.players, staleKey)
		r.deps.Sessions.Revoke(staleKey)
	default:
		if saved, ok := r.savedScores[name]; ok {
			score = saved
		}
	}

	token := r.deps.Sessions.Issue(r.code, name, connID)
	r.players[token] = &Player{Name: name, Score: score, Connected: true}
	if carried != nil {
		r.answers[token] = *carried
	}

	log.Info().
		Str("room_code", r.code).
		Str("session", token).
		Bool("reclaimed", stale != nil).
		Int("score", score).
		Msg("player joined")

	r.deps.Notifier.Send(connID, protocol.PlayerJoined, protocol.PlayerJoinedPayload{Name: name, SessionID: token})
	r.sendPlayersUpdate()
	if r.phase == PhaseQuestion {
		r.broadcast(protocol.GameAnswerCount, r.answerCount())
	}
	r.sendPlayerView(token, connID, false)
	return token, nil
}

// Reconnect rebinds an existing session to connID. It never creates a player.
func (r *Room) Reconnect(token, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[token]
	if r.closed || !ok {
		return ErrPlayerGone
	}
	p.Connected = true
	r.deps.Sessions.Rebind(token, connID)

	log.Info().Str("room_code", r.code).Str("session", token).Msg("player reconnected")

	r.sendPlayersUpdate()
	r.sendPlayerView(token, connID, true)
	return nil
}

// MarkDisconnected flags the player offline if connID is still its current
// connection. Scores and answers are kept.
func (r *Room) MarkDisconnected(token, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[token]
	if !ok {
		return false
	}
	if current, ok := r.deps.Sessions.ConnectionFor(token); ok && current != connID {
		return false
	}
	p.Connected = false
	r.sendPlayersUpdate()
	return true
}

// Kick removes every entry named name and returns the connections to sever.
// Each one is told before it is dropped.
func (r *Room) Kick(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var conns []string
	removed := 0
	for key, p := range r.players {
		if p.Name != name {
			continue
		}
		if conn, ok := r.deps.Sessions.ConnectionFor(key); ok && p.Connected {
			r.deps.Notifier.Send(conn, protocol.PlayerError, protocol.ErrorPayload{Message: kickedMessage})
			conns = append(conns, conn)
		}
		delete(r.players, key)
		delete(r.answers, key)
		r.deps.Sessions.Revoke(key)
		removed++
	}

	log.Info().Str("room_code", r.code).Int("removed", removed).Msg("player kicked")

	r.sendPlayersUpdate()
	if r.phase == PhaseQuestion && removed > 0 {
		r.broadcast(protocol.GameAnswerCount, r.answerCount())
		r.checkAllAnswered()
	}
	return conns
}

// DisconnectedProfiles lists offline players, highest score first.
func (r *Room) DisconnectedProfiles() []protocol.Profile {
	r.mu.Lock()
	defer r.mu.Unlock()

	profiles := make([]protocol.Profile, 0)
	for _, p := range r.players {
		if !p.Connected {
			profiles = append(profiles, protocol.Profile{Name: p.Name, Score: p.Score})
		}
	}
	sort.SliceStable(profiles, func(i, j int) bool {
		if profiles[i].Score != profiles[j].Score {
			return profiles[i].Score > profiles[j].Score
		}
		return profiles[i].Name < profiles[j].Name
	})
	return profiles
}

// ResendFeedback repeats each player's feedback for the question just revealed.
func (r *Room) ResendFeedback() {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.phase {
	case PhaseReveal, PhaseRanking, PhaseFinal:
		if r.index >= 0 {
			r.sendFeedback()
		}
	}
}

// caller holds r.mu
func (r *Room) sendFeedback() {
	for token, p := range r.players {
		if !p.Connected {
			continue
		}
		conn, ok := r.deps.Sessions.ConnectionFor(token)
		if !ok {
			continue
		}
		r.deps.Notifier.Send(conn, protocol.PlayerFeedback, r.feedbackFor(token))
	}
}

func (r *Room) feedbackFor(token string) protocol.FeedbackPayload {
	if a, ok := r.answers[token]; ok {
		return protocol.FeedbackPayload{Correct: a.Correct, Points: a.Points}
	}
	return protocol.FeedbackPayload{TimeUp: true}
}

// sendPlayerView brings a joining or reconnecting player up to date. A paused
// room always gets the paused view; live phases add their current payload.
// caller holds r.mu
func (r *Room) sendPlayerView(token, connID string, reconnect bool) {
	p := r.players[token]
	restored := r.restored()
	_, answered := r.answers[token]

	if reconnect || restored {
		r.deps.Notifier.Send(connID, protocol.PlayerReconnected, protocol.PlayerReconnectedPayload{
			Name:            p.Name,
			Score:           p.Score,
			GameStarted:     r.index >= 0,
			CurrentQuestion: r.index,
			HasAnswered:     answered,
			IsRestored:      restored,
		})
	}

	switch r.phase {
	case PhaseQuestion:
		if !answered {
			r.deps.Notifier.Send(connID, protocol.GameQuestion, r.questionPayload(r.remaining().Seconds()))
		}
	case PhaseReveal:
		q, _ := r.deps.Questions.At(r.index)
		r.deps.Notifier.Send(connID, protocol.GameReveal, protocol.RevealPayload{Correct: q.Correct})
		r.deps.Notifier.Send(connID, protocol.PlayerFeedback, r.feedbackFor(token))
	case PhaseRanking:
		r.deps.Notifier.Send(connID, protocol.GameRanking, protocol.RankingPayload{Ranking: r.ranking()})
	case PhaseFinal:
		r.deps.Notifier.Send(connID, protocol.GameFinal, protocol.RankingPayload{Ranking: r.ranking()})
	}
}
