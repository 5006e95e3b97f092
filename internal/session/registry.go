package session

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mwhitten/bomb-arena-backend/internal/types"
)

var (
	ErrSessionFull   = errors.New("session is full")
	ErrAlreadyJoined = errors.New("connection already joined")
	ErrNicknameTaken = errors.New("nickname already taken")
	ErrBadNickname   = errors.New("nickname must be 1-20 characters")
)

const maxNickname = 20

// Registry tracks the players bound to open connections. Pure
// bookkeeping: only the session loop touches it, so it needs no locks.
type Registry struct {
	max     int
	players map[string]*types.Player // keyed by connection id
	order   []string                 // connection ids in join order
}

func NewRegistry(max int) *Registry {
	return &Registry{max: max, players: make(map[string]*types.Player)}
}

// Join validates the nickname and binds a fresh player to the
// connection. The caller checks match phase; Join only enforces
// capacity and nickname rules.
func (r *Registry) Join(connID, nickname, character string) (*types.Player, error) {
	if r.players[connID] != nil {
		return nil, ErrAlreadyJoined
	}
	nickname = strings.TrimSpace(nickname)
	if nickname == "" || utf8.RuneCountInString(nickname) > maxNickname {
		return nil, ErrBadNickname
	}
	if len(r.players) >= r.max {
		return nil, ErrSessionFull
	}
	for _, p := range r.players {
		if strings.EqualFold(p.Nickname, nickname) {
			return nil, ErrNicknameTaken
		}
	}

	p := &types.Player{
		ID:        uuid.NewString(),
		Nickname:  nickname,
		Character: character,
	}
	r.players[connID] = p
	r.order = append(r.order, connID)
	return p, nil
}

// Remove unbinds the player from the connection. Idempotent; returns
// nil when the connection never joined.
func (r *Registry) Remove(connID string) *types.Player {
	p := r.players[connID]
	if p == nil {
		return nil
	}
	delete(r.players, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return p
}

// Player returns the player bound to connID, or nil.
func (r *Registry) Player(connID string) *types.Player { return r.players[connID] }

// ByPlayerID returns the player with the given player id, or nil.
func (r *Registry) ByPlayerID(id string) *types.Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Count returns the number of joined players.
func (r *Registry) Count() int { return len(r.players) }

// Players returns all joined players in join order.
func (r *Registry) Players() []types.Player {
	out := make([]types.Player, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.players[id])
	}
	return out
}

// PlayerIDs returns joined player ids in join order, used to seat
// players at spawn corners.
func (r *Registry) PlayerIDs() []string {
	out := make([]string, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.players[id].ID)
	}
	return out
}

// AllReady reports whether every joined player has flagged ready.
func (r *Registry) AllReady() bool {
	for _, p := range r.players {
		if !p.Ready {
			return false
		}
	}
	return len(r.players) > 0
}

// ClearReady resets every ready flag, used when the session falls back
// to the lobby.
func (r *Registry) ClearReady() {
	for _, p := range r.players {
		p.Ready = false
	}
}
