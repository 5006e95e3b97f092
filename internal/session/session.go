package session

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/mwhitten/bomb-arena-backend/internal/game"
	"github.com/mwhitten/bomb-arena-backend/internal/types"
)

// Phase is one state of the session lifecycle.
type Phase string

const (
	PhaseEmpty     Phase = "empty"
	PhaseLobby     Phase = "lobby"
	PhaseCountdown Phase = "countdown"
	PhaseActive    Phase = "active"
)

// Config holds the session timing rules. Tests shrink the durations.
type Config struct {
	MinPlayers    int
	MaxPlayers    int
	LobbyWait     time.Duration
	CountdownTime time.Duration
	TickInterval  time.Duration
	ChainDelay    time.Duration
	Rules         game.Rules
}

func DefaultConfig() Config {
	return Config{
		MinPlayers:    2,
		MaxPlayers:    4,
		LobbyWait:     20 * time.Second,
		CountdownTime: 10 * time.Second,
		TickInterval:  100 * time.Millisecond,
		ChainDelay:    300 * time.Millisecond,
		Rules:         game.DefaultRules(),
	}
}

// Session is the single owner of all shared mutable state: the
// registry, the dispatcher, and the world. Every mutation arrives as a
// Msg on the inbox and is applied by the run loop, so no two mutations
// ever interleave. One session per process; one match at a time.
type Session struct {
	inbox chan Msg
	cfg   Config
	log   *zap.Logger

	reg  *Registry
	disp *Dispatcher

	phase Phase
	world *game.World

	// gen is the timer epoch. Arming a timer captures it; resets and
	// phase changes that invalidate outstanding timers increment it,
	// so a late firing is recognized as stale and ignored.
	gen             int
	lobbyArmed      bool
	countdownEndsAt time.Time

	rng    *rand.Rand
	now    func() time.Time
	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, cfg Config, log *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		inbox:  make(chan Msg, 256),
		cfg:    cfg,
		log:    log,
		reg:    NewRegistry(cfg.MaxPlayers),
		disp:   NewDispatcher(log),
		phase:  PhaseEmpty,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}
	go s.run()
	return s
}

// Post submits a message to the session loop. It never blocks past
// session shutdown.
func (s *Session) Post(m Msg) {
	select {
	case s.inbox <- m:
	case <-s.ctx.Done():
	}
}

func (s *Session) run() {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		// The tick channel is only selected while a match is active.
		var tick <-chan time.Time
		if s.phase == PhaseActive {
			tick = ticker.C
		}

		select {
		case <-s.ctx.Done():
			s.shutdown()
			return
		case now := <-tick:
			s.tick(now)
		case m := <-s.inbox:
			switch msg := m.(type) {
			case Connect:
				s.handleConnect(msg)
			case Disconnect:
				s.handleDisconnect(msg)
			case Join:
				s.handleJoin(msg)
			case Chat:
				s.handleChat(msg)
			case Move:
				s.handleMove(msg)
			case PlaceBomb:
				s.handlePlaceBomb(msg)
			case Ready:
				s.handleReady(msg)
			case timerFired:
				s.handleTimer(msg)
			case chainFired:
				s.handleChain(msg)
			case GetView:
				msg.Reply <- s.view()
			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) shutdown() {
	for _, id := range s.disp.ConnIDs() {
		s.disp.Remove(id)
	}
	s.cancel()
}

// schedule posts m after d. The timer is never stopped; staleness is
// detected by the gen captured inside m.
func (s *Session) schedule(d time.Duration, m Msg) {
	time.AfterFunc(d, func() { s.Post(m) })
}

func (s *Session) handleConnect(m Connect) {
	s.disp.Add(m.ConnID, m.Outbox)

	var remaining time.Duration
	if s.phase == PhaseCountdown {
		remaining = s.countdownEndsAt.Sub(s.now())
		if remaining < 0 {
			remaining = 0
		}
	}
	s.disp.Send(m.ConnID, types.NewGameState(
		s.reg.Players(),
		s.phase == PhaseActive,
		s.phase == PhaseCountdown,
		remaining,
	))
}

func (s *Session) handleJoin(m Join) {
	if s.phase == PhaseActive {
		s.disp.Send(m.ConnID, types.NewError("game already in progress"))
		return
	}
	p, err := s.reg.Join(m.ConnID, m.Nickname, m.Character)
	if err != nil {
		s.log.Info("join rejected",
			zap.String("nickname", m.Nickname),
			zap.Error(err))
		s.disp.Send(m.ConnID, types.NewError(err.Error()))
		return
	}
	if s.phase == PhaseEmpty {
		s.phase = PhaseLobby
	}
	s.log.Info("player joined",
		zap.String("player", p.ID),
		zap.String("nickname", p.Nickname),
		zap.Int("players", s.reg.Count()))

	s.disp.Send(m.ConnID, types.NewPlayerID(p.ID))
	s.disp.Broadcast(types.NewPlayerJoined(*p, s.reg.Players()), "")

	// A full lobby pre-empts the lobby timer and counts down at once.
	if s.reg.Count() == s.cfg.MaxPlayers && s.phase == PhaseLobby {
		s.startCountdown()
		return
	}
	s.maybeArmLobbyTimer()
}

func (s *Session) handleDisconnect(m Disconnect) {
	p := s.reg.Remove(m.ConnID)
	s.disp.Remove(m.ConnID)
	if p == nil {
		return
	}
	s.log.Info("player left",
		zap.String("player", p.ID),
		zap.Int("players", s.reg.Count()))
	s.disp.Broadcast(types.NewPlayerLeft(p.ID, s.reg.Players()), "")

	// Last player gone: tear everything down before any other
	// lobby re-evaluation.
	if s.reg.Count() == 0 {
		s.reset("all players left the session")
		return
	}
	if s.phase == PhaseActive && s.world != nil {
		s.world.RemovePlayer(p.ID)
		s.checkWin()
	}
}

func (s *Session) handleChat(m Chat) {
	p := s.reg.Player(m.ConnID)
	if p == nil {
		s.log.Debug("chat from connection without player")
		return
	}
	s.disp.Broadcast(types.NewChatMessage(p.ID, p.Nickname, m.Message, s.now()), "")
}

func (s *Session) handleMove(m Move) {
	if s.phase != PhaseActive || s.world == nil {
		return
	}
	p := s.reg.Player(m.ConnID)
	if p == nil {
		return
	}
	res := s.world.MovePlayer(p.ID, m.X, m.Y)
	if !res.Moved {
		return
	}
	s.disp.Broadcast(types.NewPlayerMoved(p.ID, m.X, m.Y), "")
	if res.Collected != nil {
		s.disp.Broadcast(types.NewPowerUpCollected(p.ID, res.Collected.Type, s.world.Snapshot()), "")
	}
}

func (s *Session) handlePlaceBomb(m PlaceBomb) {
	if s.phase != PhaseActive || s.world == nil {
		return
	}
	p := s.reg.Player(m.ConnID)
	if p == nil {
		return
	}
	b, ok := s.world.PlaceBomb(p.ID, m.X, m.Y)
	if !ok {
		return
	}
	s.disp.Broadcast(types.NewBombPlaced(*b), "")
}

func (s *Session) handleReady(m Ready) {
	p := s.reg.Player(m.ConnID)
	if p == nil {
		s.log.Debug("ready from connection without player")
		return
	}
	if s.phase != PhaseLobby && s.phase != PhaseCountdown {
		return
	}
	p.Ready = true
	if s.reg.Count() >= s.cfg.MinPlayers && s.reg.AllReady() {
		s.startGame()
	}
}

func (s *Session) handleTimer(m timerFired) {
	if m.gen != s.gen {
		s.log.Debug("stale timer fire ignored", zap.Int("gen", m.gen))
		return
	}
	switch m.kind {
	case lobbyTimer:
		s.lobbyArmed = false
		if s.phase == PhaseLobby && s.reg.Count() >= s.cfg.MinPlayers {
			s.startCountdown()
		}
	case countdownTimer:
		if s.phase != PhaseCountdown {
			return
		}
		if s.reg.Count() >= s.cfg.MinPlayers {
			s.startGame()
			return
		}
		// Too few players remain: fall back to the lobby and re-arm
		// the lobby window if it still qualifies.
		s.phase = PhaseLobby
		s.countdownEndsAt = time.Time{}
		s.reg.ClearReady()
		s.maybeArmLobbyTimer()
	}
}

// maybeArmLobbyTimer arms the lobby window when the session is in
// Lobby with enough players and no window outstanding. Idempotent;
// called on every membership change.
func (s *Session) maybeArmLobbyTimer() {
	if s.phase != PhaseLobby || s.lobbyArmed || s.reg.Count() < s.cfg.MinPlayers {
		return
	}
	s.lobbyArmed = true
	s.schedule(s.cfg.LobbyWait, timerFired{kind: lobbyTimer, gen: s.gen})
	s.log.Debug("lobby timer armed", zap.Duration("wait", s.cfg.LobbyWait))
}

func (s *Session) startCountdown() {
	s.phase = PhaseCountdown
	s.countdownEndsAt = s.now().Add(s.cfg.CountdownTime)
	s.disp.Broadcast(types.NewCountdownStart(s.cfg.CountdownTime), "")
	s.schedule(s.cfg.CountdownTime, timerFired{kind: countdownTimer, gen: s.gen})
	s.log.Info("countdown started", zap.Int("players", s.reg.Count()))
}

func (s *Session) startGame() {
	s.gen++ // outstanding lobby/countdown timers become stale
	s.phase = PhaseActive
	s.lobbyArmed = false
	s.countdownEndsAt = time.Time{}
	s.world = game.NewWorld(s.cfg.Rules, s.reg.PlayerIDs(), s.rng, s.now)
	s.disp.Broadcast(types.NewGameStart(s.world.Snapshot()), "")
	s.log.Info("game started", zap.Int("players", s.reg.Count()))
}

// tick sweeps bomb fuses. One damaged set spans the whole sweep, so a
// player loses at most one life per tick no matter how many bombs
// resolve.
func (s *Session) tick(now time.Time) {
	if s.world == nil {
		return
	}
	damaged := make(map[string]bool)
	for _, b := range s.world.DueBombs(now) {
		s.resolve(b, damaged)
		if s.phase != PhaseActive {
			return
		}
	}
	s.disp.Broadcast(types.NewGameUpdate(s.world.Snapshot()), "")
}

func (s *Session) resolve(b *game.Bomb, damaged map[string]bool) {
	ex, ok := s.world.Explode(b, damaged)
	if !ok {
		return
	}
	for _, id := range ex.Chained {
		s.schedule(s.cfg.ChainDelay, chainFired{bombID: id, gen: s.gen})
	}
	for _, pid := range ex.Eliminated {
		s.disp.Broadcast(types.NewPlayerEliminated(pid), "")
	}
	s.disp.Broadcast(types.NewBombExploded(ex, s.world.Snapshot()), "")
	if len(ex.Eliminated) > 0 {
		s.checkWin()
	}
}

func (s *Session) handleChain(m chainFired) {
	if m.gen != s.gen || s.phase != PhaseActive || s.world == nil {
		s.log.Debug("stale chain fire ignored", zap.String("bomb", m.bombID))
		return
	}
	b, ok := s.world.BombByID(m.bombID)
	if !ok || b.Exploded() {
		// Already consumed by the normal tick or a concurrent chain.
		return
	}
	// A chain firing is its own resolution cycle.
	s.resolve(b, make(map[string]bool))
}

// checkWin ends the match when at most one player has lives left.
// Zero survivors is a draw.
func (s *Session) checkWin() {
	if s.phase != PhaseActive || s.world == nil {
		return
	}
	alive := s.world.AlivePlayers()
	if len(alive) > 1 {
		return
	}
	var winnerID, winnerNick string
	if len(alive) == 1 {
		winnerID = alive[0]
		if p := s.reg.ByPlayerID(winnerID); p != nil {
			winnerNick = p.Nickname
		}
	}
	s.disp.Broadcast(types.NewGameOver(winnerID, winnerNick), "")
	s.log.Info("game over", zap.String("winner", winnerID))
	s.endMatch()
}

// endMatch stops the tick loop, discards the world, and returns the
// remaining players to the lobby.
func (s *Session) endMatch() {
	s.gen++ // pending chain fires become stale
	s.world = nil
	s.phase = PhaseLobby
	s.reg.ClearReady()
	s.maybeArmLobbyTimer()
}

// reset returns the session to Empty: all timers stale, world gone.
func (s *Session) reset(reason string) {
	s.gen++
	s.world = nil
	s.lobbyArmed = false
	s.countdownEndsAt = time.Time{}
	s.phase = PhaseEmpty
	s.disp.Broadcast(types.NewSessionTerminated(reason), "")
	s.log.Info("session reset", zap.String("reason", reason))
}

func (s *Session) view() View {
	v := View{
		Phase:           s.phase,
		NumConns:        s.disp.Count(),
		NumPlayers:      s.reg.Count(),
		CountdownActive: s.phase == PhaseCountdown,
		LobbyTimerArmed: s.lobbyArmed,
	}
	if s.world != nil {
		snap := s.world.Snapshot()
		v.World = &snap
	}
	return v
}
