package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mwhitten/bomb-arena-backend/internal/game"
)

// testConfig shrinks every duration so scenarios run in milliseconds.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.LobbyWait = 100 * time.Millisecond
	cfg.CountdownTime = 80 * time.Millisecond
	cfg.TickInterval = 10 * time.Millisecond
	cfg.ChainDelay = 50 * time.Millisecond
	cfg.Rules.Fuse = 60 * time.Millisecond
	cfg.Rules.MoveDelay = time.Millisecond
	cfg.Rules.PowerUpChance = 0
	return cfg
}

func newTestSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return New(ctx, cfg, zap.NewNop())
}

// client is a fake connection: an outbox the dispatcher writes to.
type client struct {
	id  string
	out chan []byte
}

func connect(s *Session, id string) *client {
	c := &client{id: id, out: make(chan []byte, 256)}
	s.Post(Connect{ConnID: id, Outbox: c.out})
	return c
}

// waitFor skips messages until one with the given type tag arrives.
func (c *client) waitFor(t *testing.T, typ string, within time.Duration) map[string]any {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case b, ok := <-c.out:
			if !ok {
				t.Fatalf("%s: outbox closed while waiting for %q", c.id, typ)
			}
			var m map[string]any
			if err := json.Unmarshal(b, &m); err != nil {
				t.Fatalf("%s: bad json: %v", c.id, err)
			}
			if m["type"] == typ {
				return m
			}
		case <-deadline:
			t.Fatalf("%s: timed out waiting for %q", c.id, typ)
			return nil
		}
	}
}

// expectNone fails if a message with the given type arrives within the
// window.
func (c *client) expectNone(t *testing.T, typ string, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case b, ok := <-c.out:
			if !ok {
				return
			}
			var m map[string]any
			_ = json.Unmarshal(b, &m)
			if m["type"] == typ {
				t.Fatalf("%s: unexpected %q: %v", c.id, typ, m)
			}
		case <-deadline:
			return
		}
	}
}

func getView(t *testing.T, s *Session) View {
	t.Helper()
	reply := make(chan View, 1)
	s.Post(GetView{Reply: reply})
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for view")
		return View{}
	}
}

// joinPlayer connects and joins, returning the client and its assigned
// player id.
func joinPlayer(t *testing.T, s *Session, connID, nickname string) (*client, string) {
	t.Helper()
	c := connect(s, connID)
	c.waitFor(t, "game-state", time.Second)
	s.Post(Join{ConnID: connID, Nickname: nickname})
	idMsg := c.waitFor(t, "player-id", time.Second)
	return c, idMsg["id"].(string)
}

func combatState(t *testing.T, v View, playerID string) game.CombatState {
	t.Helper()
	if v.World == nil {
		t.Fatalf("no world in view")
	}
	for _, p := range v.World.Players {
		if p.PlayerID == playerID {
			return p
		}
	}
	t.Fatalf("player %s not in world", playerID)
	return game.CombatState{}
}

func TestSession_JoinBroadcastsAndTrims(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyWait = time.Hour
	s := newTestSession(t, cfg)

	c1, _ := joinPlayer(t, s, "c1", "  alice  ")
	joined := c1.waitFor(t, "player-joined", time.Second)
	p := joined["player"].(map[string]any)
	if p["nickname"] != "alice" {
		t.Fatalf("want trimmed nickname alice, got %v", p["nickname"])
	}

	v := getView(t, s)
	if v.Phase != PhaseLobby || v.NumPlayers != 1 {
		t.Fatalf("want lobby with 1 player, got %s/%d", v.Phase, v.NumPlayers)
	}
	if v.LobbyTimerArmed {
		t.Fatalf("lobby timer must not arm below the player minimum")
	}
}

func TestSession_JoinRejections(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyWait = time.Hour
	cfg.CountdownTime = time.Hour
	s := newTestSession(t, cfg)

	joinPlayer(t, s, "c1", "alice")

	// Case-insensitive duplicate.
	dup := connect(s, "c2")
	dup.waitFor(t, "game-state", time.Second)
	s.Post(Join{ConnID: "c2", Nickname: "ALICE"})
	dup.waitFor(t, "error", time.Second)

	// The rejected connection can retry with a fresh nickname.
	s.Post(Join{ConnID: "c2", Nickname: "bob"})
	dup.waitFor(t, "player-id", time.Second)

	joinPlayer(t, s, "c3", "carol")
	joinPlayer(t, s, "c4", "dave")

	// Fifth seat does not exist.
	full := connect(s, "c5")
	full.waitFor(t, "game-state", time.Second)
	s.Post(Join{ConnID: "c5", Nickname: "eve"})
	full.waitFor(t, "error", time.Second)

	if v := getView(t, s); v.NumPlayers != 4 {
		t.Fatalf("want 4 players, got %d", v.NumPlayers)
	}
}

// Two players ride the full lobby window into countdown and then into
// an active match seated at opposite corners.
func TestSession_LobbyTimerCountdownGameStart(t *testing.T) {
	cfg := testConfig()
	s := newTestSession(t, cfg)

	c1, id1 := joinPlayer(t, s, "c1", "alice")
	_, id2 := joinPlayer(t, s, "c2", "bob")

	cd := c1.waitFor(t, "countdown-start", time.Second)
	if cd["time"].(float64) != float64(cfg.CountdownTime.Milliseconds()) {
		t.Fatalf("countdown-start time: want %d, got %v", cfg.CountdownTime.Milliseconds(), cd["time"])
	}

	c1.waitFor(t, "game-start", time.Second)
	v := getView(t, s)
	if v.Phase != PhaseActive {
		t.Fatalf("want active phase, got %s", v.Phase)
	}
	if len(v.World.Players) != 2 {
		t.Fatalf("want 2 combat states, got %d", len(v.World.Players))
	}

	p1 := combatState(t, v, id1)
	p2 := combatState(t, v, id2)
	if p1.X != 0 || p1.Y != 0 {
		t.Fatalf("first player should spawn at (0,0), got (%d,%d)", p1.X, p1.Y)
	}
	if p2.X != 14 || p2.Y != 0 {
		t.Fatalf("second player should spawn at (14,0), got (%d,%d)", p2.X, p2.Y)
	}
	for _, p := range []game.CombatState{p1, p2} {
		if p.Lives != 3 || p.MaxBombs != 1 {
			t.Fatalf("fresh combat state should have 3 lives / 1 bomb, got %+v", p)
		}
	}
}

// A full lobby pre-empts the (here: far away) lobby timer.
func TestSession_FourthJoinStartsCountdownImmediately(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyWait = time.Hour
	cfg.CountdownTime = time.Hour
	s := newTestSession(t, cfg)

	c1, _ := joinPlayer(t, s, "c1", "alice")
	joinPlayer(t, s, "c2", "bob")
	joinPlayer(t, s, "c3", "carol")
	joinPlayer(t, s, "c4", "dave")

	c1.waitFor(t, "countdown-start", time.Second)
	if v := getView(t, s); !v.CountdownActive {
		t.Fatalf("countdown should be active, phase=%s", v.Phase)
	}
}

func TestSession_AllReadyBypassesTimers(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyWait = time.Hour
	cfg.CountdownTime = time.Hour
	s := newTestSession(t, cfg)

	c1, _ := joinPlayer(t, s, "c1", "alice")
	joinPlayer(t, s, "c2", "bob")

	s.Post(Ready{ConnID: "c1"})
	s.Post(Ready{ConnID: "c2"})

	c1.waitFor(t, "game-start", time.Second)

	// Joins after the match started are rejected outright.
	late := connect(s, "c3")
	gs := late.waitFor(t, "game-state", time.Second)
	if gs["gameStarted"] != true {
		t.Fatalf("late connection should see gameStarted=true")
	}
	s.Post(Join{ConnID: "c3", Nickname: "carol"})
	late.waitFor(t, "error", time.Second)
}

// A placed bomb appears in exactly one bomb-exploded broadcast, and
// its owner standing on it loses exactly one life.
func TestSession_BombExplodesExactlyOnce(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyWait = time.Hour
	cfg.CountdownTime = time.Hour
	s := newTestSession(t, cfg)

	c1, id1 := joinPlayer(t, s, "c1", "alice")
	joinPlayer(t, s, "c2", "bob")
	s.Post(Ready{ConnID: "c1"})
	s.Post(Ready{ConnID: "c2"})
	c1.waitFor(t, "game-start", time.Second)

	s.Post(PlaceBomb{ConnID: "c1", X: 0, Y: 0})
	placed := c1.waitFor(t, "bomb-placed", time.Second)
	bombID := placed["bomb"].(map[string]any)["id"].(string)

	ex := c1.waitFor(t, "bomb-exploded", time.Second)
	if got := ex["explosions"].(map[string]any)["bombId"]; got != bombID {
		t.Fatalf("exploded bomb id %v, want %v", got, bombID)
	}
	c1.expectNone(t, "bomb-exploded", 200*time.Millisecond)

	v := getView(t, s)
	if got := combatState(t, v, id1).Lives; got != 2 {
		t.Fatalf("owner on the bomb should lose exactly one life, got %d lives", got)
	}
}

// A bomb caught in another blast detonates after the chain delay, well
// before its own fuse would have run out.
func TestSession_ChainReactionDelayed(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyWait = time.Hour
	cfg.CountdownTime = time.Hour
	cfg.Rules.Fuse = 300 * time.Millisecond
	cfg.Rules.MaxBombs = 2
	s := newTestSession(t, cfg)

	c1, _ := joinPlayer(t, s, "c1", "alice")
	joinPlayer(t, s, "c2", "bob")
	s.Post(Ready{ConnID: "c1"})
	s.Post(Ready{ConnID: "c2"})
	c1.waitFor(t, "game-start", time.Second)

	s.Post(PlaceBomb{ConnID: "c1", X: 0, Y: 0})
	c1.waitFor(t, "bomb-placed", time.Second)

	time.Sleep(150 * time.Millisecond)
	s.Post(Move{ConnID: "c1", X: 1, Y: 0})
	c1.waitFor(t, "player-moved", time.Second)
	s.Post(PlaceBomb{ConnID: "c1", X: 1, Y: 0})
	c1.waitFor(t, "bomb-placed", time.Second)

	c1.waitFor(t, "bomb-exploded", time.Second)
	first := time.Now()
	c1.waitFor(t, "bomb-exploded", time.Second)
	gap := time.Since(first)

	// Chain delay is 50ms; the second bomb's own fuse had ~150ms left.
	if gap < 30*time.Millisecond {
		t.Fatalf("second bomb detonated inline with the first (gap %v)", gap)
	}
	if gap > 120*time.Millisecond {
		t.Fatalf("second bomb seems to have waited for its own fuse (gap %v)", gap)
	}
}

// Disconnects: winner by forfeit, then full teardown when the last
// player leaves, then a clean fresh lobby.
func TestSession_DisconnectTeardownAndFreshLobby(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyWait = time.Hour
	cfg.CountdownTime = time.Hour
	s := newTestSession(t, cfg)

	c1, id1 := joinPlayer(t, s, "c1", "alice")
	joinPlayer(t, s, "c2", "bob")
	spectator := connect(s, "c3")
	spectator.waitFor(t, "game-state", time.Second)

	s.Post(Ready{ConnID: "c1"})
	s.Post(Ready{ConnID: "c2"})
	c1.waitFor(t, "game-start", time.Second)

	// Opponent leaves mid-match: alice wins by forfeit and the session
	// returns to the lobby.
	s.Post(Disconnect{ConnID: "c2"})
	c1.waitFor(t, "player-left", time.Second)
	over := c1.waitFor(t, "game-over", time.Second)
	if over["winnerId"] != id1 {
		t.Fatalf("want winner %s, got %v", id1, over["winnerId"])
	}
	v := getView(t, s)
	if v.Phase != PhaseLobby || v.World != nil {
		t.Fatalf("after game over: want lobby without world, got %s", v.Phase)
	}

	// Last player leaves: everything resets.
	s.Post(Disconnect{ConnID: "c1"})
	spectator.waitFor(t, "session-terminated", time.Second)
	v = getView(t, s)
	if v.Phase != PhaseEmpty || v.NumPlayers != 0 {
		t.Fatalf("after last disconnect: want empty session, got %s/%d", v.Phase, v.NumPlayers)
	}

	// A later join starts a fresh lobby with no residual match state.
	s.Post(Join{ConnID: "c3", Nickname: "eve"})
	spectator.waitFor(t, "player-id", time.Second)
	v = getView(t, s)
	if v.Phase != PhaseLobby || v.World != nil {
		t.Fatalf("rejoin should open a fresh lobby, got %s", v.Phase)
	}
}

// Countdown falls back to the lobby when the player count drops below
// the minimum, and the lobby window re-arms on the next qualifying
// join.
func TestSession_CountdownFallbackRearmsLobbyWindow(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyWait = 80 * time.Millisecond
	cfg.CountdownTime = 120 * time.Millisecond
	s := newTestSession(t, cfg)

	c1, _ := joinPlayer(t, s, "c1", "alice")
	joinPlayer(t, s, "c2", "bob")
	c1.waitFor(t, "countdown-start", time.Second)

	s.Post(Disconnect{ConnID: "c2"})
	c1.waitFor(t, "player-left", time.Second)

	// Countdown expires with one player: back to lobby, no game.
	time.Sleep(200 * time.Millisecond)
	v := getView(t, s)
	if v.Phase != PhaseLobby || v.CountdownActive {
		t.Fatalf("want lobby after fallback, got %s", v.Phase)
	}

	// A new second player re-arms the lobby window and the session
	// counts down again.
	joinPlayer(t, s, "c4", "carol")
	c1.waitFor(t, "countdown-start", time.Second)
}

// Timers armed before a reset are stale afterwards and must not
// resurrect the session.
func TestSession_StaleTimersIgnoredAfterReset(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyWait = 80 * time.Millisecond
	s := newTestSession(t, cfg)

	spectator := connect(s, "watcher")
	spectator.waitFor(t, "game-state", time.Second)

	joinPlayer(t, s, "c1", "alice")
	joinPlayer(t, s, "c2", "bob") // lobby timer armed here

	s.Post(Disconnect{ConnID: "c1"})
	s.Post(Disconnect{ConnID: "c2"})
	spectator.waitFor(t, "session-terminated", time.Second)

	// The old lobby timer fires into an empty session: nothing happens.
	spectator.expectNone(t, "countdown-start", 250*time.Millisecond)
	if v := getView(t, s); v.Phase != PhaseEmpty {
		t.Fatalf("want empty session, got %s", v.Phase)
	}
}

func TestSession_ChatRelayedWithIdentity(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyWait = time.Hour
	s := newTestSession(t, cfg)

	c1, id1 := joinPlayer(t, s, "c1", "alice")
	c2, _ := joinPlayer(t, s, "c2", "bob")

	s.Post(Chat{ConnID: "c1", Message: "glhf"})
	msg := c2.waitFor(t, "chat-message", time.Second)
	if msg["playerId"] != id1 || msg["nickname"] != "alice" || msg["message"] != "glhf" {
		t.Fatalf("chat relay mangled the message: %v", msg)
	}
	c1.waitFor(t, "chat-message", time.Second) // drain own copy

	// Chat from a connection without a player is dropped.
	ghost := connect(s, "ghost")
	ghost.waitFor(t, "game-state", time.Second)
	s.Post(Chat{ConnID: "ghost", Message: "boo"})
	c1.expectNone(t, "chat-message", 100*time.Millisecond)
}
