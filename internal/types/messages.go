package types

import (
	"time"

	"github.com/mwhitten/bomb-arena-backend/internal/game"
)

// Outbound message type tags.
const (
	OutPlayerID          = "player-id"
	OutGameState         = "game-state"
	OutPlayerJoined      = "player-joined"
	OutPlayerLeft        = "player-left"
	OutChatMessage       = "chat-message"
	OutCountdownStart    = "countdown-start"
	OutGameStart         = "game-start"
	OutGameUpdate        = "game-update"
	OutPlayerMoved       = "player-moved"
	OutBombPlaced        = "bomb-placed"
	OutBombExploded      = "bomb-exploded"
	OutPlayerEliminated  = "player-eliminated"
	OutPowerUpCollected  = "power-up-collected"
	OutGameOver          = "game-over"
	OutSessionTerminated = "session-terminated"
	OutError             = "error"
)

type PlayerID struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func NewPlayerID(id string) PlayerID {
	return PlayerID{Type: OutPlayerID, ID: id}
}

// GameState is the catch-up snapshot sent to a freshly opened
// connection. CountdownTime is the remaining countdown in ms.
type GameState struct {
	Type            string   `json:"type"`
	Players         []Player `json:"players"`
	GameStarted     bool     `json:"gameStarted"`
	CountdownActive bool     `json:"countdownActive"`
	CountdownTime   int64    `json:"countdownTime"`
}

func NewGameState(players []Player, started, countdownActive bool, countdownTime time.Duration) GameState {
	return GameState{
		Type:            OutGameState,
		Players:         players,
		GameStarted:     started,
		CountdownActive: countdownActive,
		CountdownTime:   countdownTime.Milliseconds(),
	}
}

type PlayerJoined struct {
	Type    string   `json:"type"`
	Player  Player   `json:"player"`
	Players []Player `json:"players"`
}

func NewPlayerJoined(p Player, all []Player) PlayerJoined {
	return PlayerJoined{Type: OutPlayerJoined, Player: p, Players: all}
}

type PlayerLeft struct {
	Type     string   `json:"type"`
	PlayerID string   `json:"playerId"`
	Players  []Player `json:"players"`
}

func NewPlayerLeft(id string, all []Player) PlayerLeft {
	return PlayerLeft{Type: OutPlayerLeft, PlayerID: id, Players: all}
}

type ChatMessage struct {
	Type      string `json:"type"`
	PlayerID  string `json:"playerId"`
	Nickname  string `json:"nickname"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

func NewChatMessage(playerID, nickname, message string, at time.Time) ChatMessage {
	return ChatMessage{
		Type:      OutChatMessage,
		PlayerID:  playerID,
		Nickname:  nickname,
		Message:   message,
		Timestamp: at.UnixMilli(),
	}
}

type CountdownStart struct {
	Type string `json:"type"`
	Time int64  `json:"time"`
}

func NewCountdownStart(d time.Duration) CountdownStart {
	return CountdownStart{Type: OutCountdownStart, Time: d.Milliseconds()}
}

type GameStart struct {
	Type      string        `json:"type"`
	GameState game.Snapshot `json:"gameState"`
}

func NewGameStart(snap game.Snapshot) GameStart {
	return GameStart{Type: OutGameStart, GameState: snap}
}

type GameUpdate struct {
	Type      string        `json:"type"`
	GameState game.Snapshot `json:"gameState"`
}

func NewGameUpdate(snap game.Snapshot) GameUpdate {
	return GameUpdate{Type: OutGameUpdate, GameState: snap}
}

type PlayerMoved struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

func NewPlayerMoved(id string, x, y int) PlayerMoved {
	return PlayerMoved{Type: OutPlayerMoved, PlayerID: id, X: x, Y: y}
}

type BombPlaced struct {
	Type string    `json:"type"`
	Bomb game.Bomb `json:"bomb"`
}

func NewBombPlaced(b game.Bomb) BombPlaced {
	return BombPlaced{Type: OutBombPlaced, Bomb: b}
}

type BombExploded struct {
	Type       string         `json:"type"`
	Explosions game.Explosion `json:"explosions"`
	GameState  game.Snapshot  `json:"gameState"`
}

func NewBombExploded(ex game.Explosion, snap game.Snapshot) BombExploded {
	return BombExploded{Type: OutBombExploded, Explosions: ex, GameState: snap}
}

type PlayerEliminated struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
}

func NewPlayerEliminated(id string) PlayerEliminated {
	return PlayerEliminated{Type: OutPlayerEliminated, PlayerID: id}
}

type PowerUpCollected struct {
	Type        string           `json:"type"`
	PlayerID    string           `json:"playerId"`
	PowerUpType game.PowerUpType `json:"powerUpType"`
	GameState   game.Snapshot    `json:"gameState"`
}

func NewPowerUpCollected(playerID string, t game.PowerUpType, snap game.Snapshot) PowerUpCollected {
	return PowerUpCollected{Type: OutPowerUpCollected, PlayerID: playerID, PowerUpType: t, GameState: snap}
}

// GameOver ends a match. Draw is set when the last players were
// eliminated simultaneously and nobody won.
type GameOver struct {
	Type           string `json:"type"`
	WinnerID       string `json:"winnerId,omitempty"`
	WinnerNickname string `json:"winnerNickname,omitempty"`
	Draw           bool   `json:"draw"`
}

func NewGameOver(winnerID, winnerNickname string) GameOver {
	return GameOver{Type: OutGameOver, WinnerID: winnerID, WinnerNickname: winnerNickname, Draw: winnerID == ""}
}

type SessionTerminated struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewSessionTerminated(msg string) SessionTerminated {
	return SessionTerminated{Type: OutSessionTerminated, Message: msg}
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(msg string) Error {
	return Error{Type: OutError, Message: msg}
}
