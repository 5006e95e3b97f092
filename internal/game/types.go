package game

import "time"

// CombatState is a player's in-match state. It exists only while a
// match is active and is removed from the world on elimination.
type CombatState struct {
	PlayerID       string  `json:"playerId"`
	X              int     `json:"x"`
	Y              int     `json:"y"`
	Lives          int     `json:"lives"`
	MaxBombs       int     `json:"maxBombs"`
	ExplosionRange int     `json:"explosionRange"`
	Speed          float64 `json:"speed"`

	lastMove time.Time
}

// Bomb is an armed bomb on the board. Radius snapshots the owner's
// explosion range at placement time.
type Bomb struct {
	ID       string    `json:"id"`
	Owner    string    `json:"ownerId"`
	X        int       `json:"x"`
	Y        int       `json:"y"`
	Radius   int       `json:"radius"`
	PlacedAt time.Time `json:"placedAt"`

	exploded bool
}

// Exploded reports whether the bomb has already been resolved.
func (b *Bomb) Exploded() bool { return b.exploded }

// PowerUpType identifies a power-up effect.
type PowerUpType string

const (
	ExtraBomb  PowerUpType = "extra-bomb"
	ExtraRange PowerUpType = "extra-range"
	ExtraSpeed PowerUpType = "extra-speed"
)

var powerUpTypes = []PowerUpType{ExtraBomb, ExtraRange, ExtraSpeed}

// PowerUp is a collectible dropped by a destroyed block.
type PowerUp struct {
	ID   string      `json:"id"`
	Type PowerUpType `json:"type"`
	X    int         `json:"x"`
	Y    int         `json:"y"`
}

// Rules holds the fixed gameplay parameters of one match.
type Rules struct {
	Size          int
	Lives         int
	MaxBombs      int
	Fuse          time.Duration
	MoveDelay     time.Duration
	PowerUpChance float64
}

// DefaultRules returns the standard arena parameters.
func DefaultRules() Rules {
	return Rules{
		Size:          15,
		Lives:         3,
		MaxBombs:      1,
		Fuse:          3 * time.Second,
		MoveDelay:     200 * time.Millisecond,
		PowerUpChance: 0.3,
	}
}

// MoveResult reports the outcome of a move attempt.
type MoveResult struct {
	Moved     bool
	Collected *PowerUp
}

// Explosion is the outcome of resolving one bomb.
type Explosion struct {
	BombID          string     `json:"bombId"`
	Owner           string     `json:"ownerId"`
	Cells           []Position `json:"cells"`
	DestroyedBlocks []Position `json:"destroyedBlocks"`
	SpawnedPowerUps []PowerUp  `json:"spawnedPowerUps"`
	Damaged         []string   `json:"damaged"`
	Eliminated      []string   `json:"eliminated"`

	// Chained lists unexploded bombs caught in the blast. The caller
	// schedules their delayed detonation; they are not resolved here.
	Chained []string `json:"-"`
}

// Snapshot is a read-only copy of world state, safe to serialize after
// the owning loop has finished mutating.
type Snapshot struct {
	Board    Board         `json:"board"`
	Players  []CombatState `json:"players"`
	Bombs    []Bomb        `json:"bombs"`
	PowerUps []PowerUp     `json:"powerUps"`
}
