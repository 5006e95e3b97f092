package game

import (
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
)

// World is the authoritative state of one active match. It is owned by
// the session loop; nothing else may mutate it.
type World struct {
	Board Board

	rules    Rules
	bombs    []*Bomb // placement order
	powerUps []*PowerUp
	players  map[string]*CombatState
	rng      *rand.Rand
	now      func() time.Time
}

// NewWorld creates the match world, seating players at the corner
// spawns in the given order.
func NewWorld(rules Rules, playerIDs []string, rng *rand.Rand, now func() time.Time) *World {
	if now == nil {
		now = time.Now
	}
	w := &World{
		Board:   NewBoard(rules.Size, rng),
		rules:   rules,
		players: make(map[string]*CombatState, len(playerIDs)),
		rng:     rng,
		now:     now,
	}
	spawns := SpawnPositions(rules.Size)
	for i, id := range playerIDs {
		sp := spawns[i%len(spawns)]
		w.players[id] = &CombatState{
			PlayerID:       id,
			X:              sp.X,
			Y:              sp.Y,
			Lives:          rules.Lives,
			MaxBombs:       rules.MaxBombs,
			ExplosionRange: 1,
			Speed:          1.0,
		}
	}
	return w
}

// Player returns the combat state for id, or nil if eliminated/unknown.
func (w *World) Player(id string) *CombatState { return w.players[id] }

// RemovePlayer drops a combat state outside the normal damage path,
// e.g. when a player disconnects mid-match.
func (w *World) RemovePlayer(id string) { delete(w.players, id) }

// AlivePlayers returns the ids of players with lives remaining.
func (w *World) AlivePlayers() []string {
	alive := make([]string, 0, len(w.players))
	for id, p := range w.players {
		if p.Lives > 0 {
			alive = append(alive, id)
		}
	}
	sort.Strings(alive)
	return alive
}

// MovePlayer validates and applies a one-cell move. Illegal moves are
// rejected silently; the client already validated locally.
func (w *World) MovePlayer(id string, x, y int) MoveResult {
	p := w.players[id]
	if p == nil || p.Lives <= 0 {
		return MoveResult{}
	}
	if !w.Board.InBounds(x, y) || w.Board.At(x, y) != Empty {
		return MoveResult{}
	}
	dx, dy := x-p.X, y-p.Y
	if dx*dx+dy*dy != 1 {
		return MoveResult{}
	}
	for _, b := range w.bombs {
		if b.X == x && b.Y == y {
			return MoveResult{}
		}
	}
	now := w.now()
	delay := time.Duration(float64(w.rules.MoveDelay) / p.Speed)
	if !p.lastMove.IsZero() && now.Sub(p.lastMove) < delay {
		return MoveResult{}
	}

	p.X, p.Y = x, y
	p.lastMove = now
	return MoveResult{Moved: true, Collected: w.collectPowerUp(p)}
}

// collectPowerUp applies and removes any power-up under the player.
func (w *World) collectPowerUp(p *CombatState) *PowerUp {
	for i, pu := range w.powerUps {
		if pu.X != p.X || pu.Y != p.Y {
			continue
		}
		switch pu.Type {
		case ExtraBomb:
			p.MaxBombs++
		case ExtraRange:
			p.ExplosionRange++
		case ExtraSpeed:
			p.Speed += 0.5
		}
		w.powerUps = append(w.powerUps[:i], w.powerUps[i+1:]...)
		return pu
	}
	return nil
}

// PlaceBomb arms a bomb at the owner's cell, subject to the owner's
// concurrent-bomb limit. The reported (x, y) must match the server's
// view of the player's position.
func (w *World) PlaceBomb(id string, x, y int) (*Bomb, bool) {
	p := w.players[id]
	if p == nil || p.Lives <= 0 || p.X != x || p.Y != y {
		return nil, false
	}
	active := 0
	for _, b := range w.bombs {
		if b.X == x && b.Y == y {
			return nil, false
		}
		if b.Owner == id {
			active++
		}
	}
	if active >= p.MaxBombs {
		return nil, false
	}

	b := &Bomb{
		ID:       uuid.NewString(),
		Owner:    id,
		X:        x,
		Y:        y,
		Radius:   p.ExplosionRange,
		PlacedAt: w.now(),
	}
	w.bombs = append(w.bombs, b)
	return b, true
}

// BombByID looks up a live bomb, used to re-verify chain detonations
// at fire time.
func (w *World) BombByID(id string) (*Bomb, bool) {
	for _, b := range w.bombs {
		if b.ID == id {
			return b, true
		}
	}
	return nil, false
}

// DueBombs returns unexploded bombs whose fuse has elapsed as of the
// given instant, in placement order.
func (w *World) DueBombs(asOf time.Time) []*Bomb {
	var due []*Bomb
	for _, b := range w.bombs {
		if !b.exploded && asOf.Sub(b.PlacedAt) >= w.rules.Fuse {
			due = append(due, b)
		}
	}
	return due
}

// Snapshot copies the world for serialization.
func (w *World) Snapshot() Snapshot {
	snap := Snapshot{
		Board:    make(Board, len(w.Board)),
		Players:  make([]CombatState, 0, len(w.players)),
		Bombs:    make([]Bomb, 0, len(w.bombs)),
		PowerUps: make([]PowerUp, 0, len(w.powerUps)),
	}
	for y, row := range w.Board {
		snap.Board[y] = make([]Cell, len(row))
		copy(snap.Board[y], row)
	}
	ids := make([]string, 0, len(w.players))
	for id := range w.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		snap.Players = append(snap.Players, *w.players[id])
	}
	for _, b := range w.bombs {
		snap.Bombs = append(snap.Bombs, *b)
	}
	for _, pu := range w.powerUps {
		snap.PowerUps = append(snap.PowerUps, *pu)
	}
	return snap
}
