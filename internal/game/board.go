package game

import "math/rand"

// Cell is the content of one board square.
type Cell int

const (
	Empty Cell = iota
	Wall       // fixed parity pillar, never changes
	Block      // destructible, only ever transitions to Empty
)

// Board is a square grid indexed [y][x].
type Board [][]Cell

// Position is a coordinate on the board.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

const blockChance = 0.6

// NewBoard generates the starting grid.
//
// Layout rules:
//   - Wall at every position where both X and Y are odd
//   - Random Block fill everywhere else
//   - Spawn corners and their orthogonal neighbors are kept clear,
//     so every player always has a legal first move
func NewBoard(size int, rng *rand.Rand) Board {
	b := make(Board, size)
	for y := range b {
		b[y] = make([]Cell, size)
		for x := range b[y] {
			if x%2 == 1 && y%2 == 1 {
				b[y][x] = Wall
			}
		}
	}

	safe := spawnSafeSet(size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if b[y][x] != Empty || safe[Position{X: x, Y: y}] {
				continue
			}
			if rng.Float64() < blockChance {
				b[y][x] = Block
			}
		}
	}
	return b
}

// SpawnPositions returns the four corner spawn cells in seat order.
func SpawnPositions(size int) []Position {
	return []Position{
		{X: 0, Y: 0},
		{X: size - 1, Y: 0},
		{X: 0, Y: size - 1},
		{X: size - 1, Y: size - 1},
	}
}

// spawnSafeSet returns the cells that must stay clear of blocks: each
// spawn corner plus its in-bounds orthogonal neighbors.
func spawnSafeSet(size int) map[Position]bool {
	safe := make(map[Position]bool)
	for _, sp := range SpawnPositions(size) {
		for _, p := range []Position{
			sp,
			{X: sp.X + 1, Y: sp.Y},
			{X: sp.X - 1, Y: sp.Y},
			{X: sp.X, Y: sp.Y + 1},
			{X: sp.X, Y: sp.Y - 1},
		} {
			if p.X >= 0 && p.X < size && p.Y >= 0 && p.Y < size {
				safe[p] = true
			}
		}
	}
	return safe
}

// Size returns the board edge length.
func (b Board) Size() int { return len(b) }

// InBounds reports whether (x, y) is on the board.
func (b Board) InBounds(x, y int) bool {
	return x >= 0 && x < len(b) && y >= 0 && y < len(b)
}

// At returns the cell at (x, y). Callers must bounds-check first.
func (b Board) At(x, y int) Cell { return b[y][x] }
