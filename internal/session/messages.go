package session

import "github.com/mwhitten/bomb-arena-backend/internal/game"

// Msg is the closed set of inputs to the session loop. All world and
// registry mutation happens by sending one of these; nothing mutates
// shared state from outside the loop.
type Msg interface{ isMsg() }

// Connect announces a freshly opened connection and its outbox.
type Connect struct {
	ConnID string
	Outbox chan []byte
}

// Disconnect tears down a connection. Safe to send more than once.
type Disconnect struct{ ConnID string }

// Join is a nickname claim for the lobby.
type Join struct {
	ConnID    string
	Nickname  string
	Character string
}

// Chat relays a lobby/match chat line.
type Chat struct {
	ConnID  string
	Message string
}

// Move is a one-cell movement intent.
type Move struct {
	ConnID string
	X, Y   int
}

// PlaceBomb is a bomb placement intent at the player's cell.
type PlaceBomb struct {
	ConnID string
	X, Y   int
}

// Ready flags the player as ready to start early.
type Ready struct{ ConnID string }

// Shutdown stops the session loop.
type Shutdown struct{}

// GetView asks the loop for a consistent snapshot of its internals.
// Test-only: lets tests observe state without data races.
type GetView struct{ Reply chan View }

type timerKind int

const (
	lobbyTimer timerKind = iota
	countdownTimer
)

// timerFired is posted by a scheduled lobby/countdown timer. Gen is
// the epoch captured at arm time; a stale gen means the session moved
// on and the firing is ignored.
type timerFired struct {
	kind timerKind
	gen  int
}

// chainFired is posted when a chain-reaction delay elapses. The target
// bomb is re-verified at fire time.
type chainFired struct {
	bombID string
	gen    int
}

func (Connect) isMsg()    {}
func (Disconnect) isMsg() {}
func (Join) isMsg()       {}
func (Chat) isMsg()       {}
func (Move) isMsg()       {}
func (PlaceBomb) isMsg()  {}
func (Ready) isMsg()      {}
func (Shutdown) isMsg()   {}
func (GetView) isMsg()    {}
func (timerFired) isMsg() {}
func (chainFired) isMsg() {}

// View is the test-facing reflection of loop state.
type View struct {
	Phase           Phase
	NumConns        int
	NumPlayers      int
	CountdownActive bool
	LobbyTimerArmed bool
	World           *game.Snapshot
}
