package game

import (
	"sort"

	"github.com/google/uuid"
)

var directions = []Position{
	{X: 0, Y: -1},
	{X: 0, Y: 1},
	{X: -1, Y: 0},
	{X: 1, Y: 0},
}

// Explode resolves one bomb: marks it exploded, removes it from the
// live list, walks the four blast arms, destroys blocks, spawns
// power-ups, and applies damage. A bomb resolves at most once; the
// second call reports ok=false.
//
// The damaged set carries the at-most-once-per-cycle guarantee: a
// player already in it takes no further damage from bombs resolved in
// the same cycle. Unexploded bombs caught in the blast are returned in
// Chained for the caller to detonate after the chain delay.
func (w *World) Explode(b *Bomb, damaged map[string]bool) (Explosion, bool) {
	if b.exploded {
		return Explosion{}, false
	}
	b.exploded = true
	w.removeBomb(b.ID)

	ex := Explosion{BombID: b.ID, Owner: b.Owner}
	ex.Cells = append(ex.Cells, Position{X: b.X, Y: b.Y})

	for _, d := range directions {
		for dist := 1; dist <= b.Radius; dist++ {
			x, y := b.X+d.X*dist, b.Y+d.Y*dist
			if !w.Board.InBounds(x, y) || w.Board.At(x, y) == Wall {
				break
			}
			pos := Position{X: x, Y: y}
			ex.Cells = append(ex.Cells, pos)
			if w.Board.At(x, y) == Block {
				// Included in the blast, but the arm stops here.
				w.Board[y][x] = Empty
				ex.DestroyedBlocks = append(ex.DestroyedBlocks, pos)
				if pu := w.maybeSpawnPowerUp(x, y); pu != nil {
					ex.SpawnedPowerUps = append(ex.SpawnedPowerUps, *pu)
				}
				break
			}
		}
	}

	blast := make(map[Position]bool, len(ex.Cells))
	for _, c := range ex.Cells {
		blast[c] = true
	}

	for _, other := range w.bombs {
		if !other.exploded && blast[Position{X: other.X, Y: other.Y}] {
			ex.Chained = append(ex.Chained, other.ID)
		}
	}

	ids := make([]string, 0, len(w.players))
	for id := range w.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := w.players[id]
		if p.Lives <= 0 || damaged[id] || !blast[Position{X: p.X, Y: p.Y}] {
			continue
		}
		p.Lives--
		damaged[id] = true
		ex.Damaged = append(ex.Damaged, id)
		if p.Lives == 0 {
			ex.Eliminated = append(ex.Eliminated, id)
			delete(w.players, id)
		}
	}

	return ex, true
}

// maybeSpawnPowerUp rolls the drop chance for a destroyed block and,
// on success, places a power-up of a uniformly chosen type.
func (w *World) maybeSpawnPowerUp(x, y int) *PowerUp {
	if w.rng.Float64() >= w.rules.PowerUpChance {
		return nil
	}
	pu := &PowerUp{
		ID:   uuid.NewString(),
		Type: powerUpTypes[w.rng.Intn(len(powerUpTypes))],
		X:    x,
		Y:    y,
	}
	w.powerUps = append(w.powerUps, pu)
	return pu
}

func (w *World) removeBomb(id string) {
	for i, b := range w.bombs {
		if b.ID == id {
			w.bombs = append(w.bombs[:i], w.bombs[i+1:]...)
			return
		}
	}
}
