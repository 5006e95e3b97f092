package types

// Inbound message type tags. Anything else is an unknown tag and is
// rejected explicitly by the ws layer.
const (
	MsgJoin       = "join"
	MsgChat       = "chat"
	MsgPlayerMove = "player-move"
	MsgPlaceBomb  = "place-bomb"
	MsgGameReady  = "game-ready"
)

// ClientMessage is the single inbound wire shape; which fields are
// meaningful depends on Type.
type ClientMessage struct {
	Type      string `json:"type"`
	Nickname  string `json:"nickname,omitempty"`
	Character string `json:"character,omitempty"`
	Message   string `json:"message,omitempty"`
	X         int    `json:"x,omitempty"`
	Y         int    `json:"y,omitempty"`
}

// Player is the lobby-facing identity of a joined player. Combat state
// lives in the world, not here.
type Player struct {
	ID        string `json:"id"`
	Nickname  string `json:"nickname"`
	Character string `json:"character,omitempty"`
	Ready     bool   `json:"ready"`
}
