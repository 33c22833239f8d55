package arena

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Command is one inbound client event.
type Command interface{ isCommand() }

type Join struct {
	HostID  string
	Name    string
	ChainID string
}

type Move struct {
	Position Vec3
	Rotation float64
}

type Hit struct {
	TargetID string
	Damage   float64
}

type Shoot struct{}
type PickupOil struct{}
type DeliverOil struct{}
type DebugGoal struct{}
type ConfirmRound struct{}

func (Join) isCommand()         {}
func (Move) isCommand()         {}
func (Hit) isCommand()          {}
func (Shoot) isCommand()        {}
func (PickupOil) isCommand()    {}
func (DeliverOil) isCommand()   {}
func (DebugGoal) isCommand()    {}
func (ConfirmRound) isCommand() {}

/*
	Join         -> initGame (sender) -> playerJoined (others) -> [gameStart]
	Move         -> playerMoved (others)
	Hit          -> takeDamage (target) -> hitConfirm (sender) -> [kill transaction]
	PickupOil    -> gameTick -> systemLog
	DeliverOil   -> goal: roundReset -> gameTick -> systemLog, barrier opens
	ConfirmRound -> [nextRoundReady | gameOver] once the roster has confirmed
*/

// Apply validates cmd sent by connID and mutates s. Guard failures return a
// sentinel error and leave s untouched.
func (s *State) Apply(connID string, cmd Command, now time.Time) (Result, error) {
	if j, ok := cmd.(Join); ok {
		return s.join(connID, j)
	}

	p, ok := s.Players[connID]
	if !ok {
		return Result{}, ErrNotInRoom
	}

	switch c := cmd.(type) {
	case Move:
		return s.move(p, c)
	case Hit:
		return s.hit(p, c, now)
	case Shoot:
		if p.IsDead {
			return Result{}, ErrPlayerDead
		}
		var r Result
		r.others(p.ID, EvtEnemyShoot, p.ID)
		return r, nil
	case PickupOil:
		return s.pickup(p)
	case DeliverOil:
		if p.IsDead {
			return Result{}, ErrPlayerDead
		}
		if carrier, ok := s.Match.Carrier(); !ok || carrier != p.ID {
			return Result{}, ErrNotCarrier
		}
		if s.GameState != GamePlaying {
			return Result{}, ErrNotPlaying
		}
		return s.resolveGoal(p)
	case DebugGoal:
		// Skips the carrier and match-state checks; an open barrier still
		// refuses a second goal.
		if !s.Rules.DebugGoal {
			return Result{}, ErrDebugDisabled
		}
		return s.resolveGoal(p)
	case ConfirmRound:
		if !s.WaitingForConfirmations {
			return Result{}, ErrBarrierClosed
		}
		s.Confirmations[p.ID] = struct{}{}
		return s.settleBarrier(), nil
	default:
		return Result{}, fmt.Errorf("%w: %T", ErrUnsupportedCommand, cmd)
	}
}

func (s *State) join(connID string, cmd Join) (Result, error) {
	if _, ok := s.Players[connID]; ok {
		return Result{}, ErrAlreadyJoined
	}

	team := TeamBlue
	if s.hasTeam(TeamBlue) {
		team = TeamRed
	}

	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		name = "Pilot " + connID[:min(4, len(connID))]
	}

	p := &Player{
		ID:          connID,
		Name:        name,
		Team:        team,
		IsReady:     true,
		HostChainID: s.HostID,
	}
	if cmd.ChainID != "" {
		p.ChainID = &cmd.ChainID
	}
	s.placeAtSpawn(p)
	s.Players[connID] = p

	var r Result
	r.conn(connID, EvtInitGame, InitGame{
		MyPlayer:   *p,
		AllPlayers: s.Roster(),
		GameState:  s.GameState,
		MatchTime:  s.MatchTime,
		MatchState: s.Match,
	})
	r.others(connID, EvtPlayerJoined, *p)

	if len(s.Players) == minPlayers && !s.GameActive {
		r.merge(s.startMatch())
	}
	return r, nil
}

// startMatch resets the clock and objective and asks for a fresh ticker.
func (s *State) startMatch() Result {
	s.GameActive = true
	s.GameState = GamePlaying
	s.MatchTime = s.Rules.MatchSeconds
	s.Match = NewMatchState()
	s.clearBarrier()

	r := Result{Loop: LoopStart}
	r.room(EvtGameStart, GameStart{MatchTime: s.MatchTime, MatchState: s.Match})
	return r
}

func (s *State) move(p *Player, cmd Move) (Result, error) {
	if p.IsDead {
		return Result{}, ErrPlayerDead
	}
	p.Position = cmd.Position
	p.Rotation = cmd.Rotation

	var r Result
	r.others(p.ID, EvtPlayerMoved, PlayerMoved{ID: p.ID, Position: p.Position, Rotation: p.Rotation})
	return r, nil
}

func (s *State) hit(attacker *Player, cmd Hit, now time.Time) (Result, error) {
	target, ok := s.Players[cmd.TargetID]
	if !ok {
		return Result{}, ErrUnknownTarget
	}
	if target.IsDead {
		return Result{}, ErrTargetDead
	}
	if cmd.Damage < 0 || math.IsNaN(cmd.Damage) || math.IsInf(cmd.Damage, 0) {
		return Result{}, ErrInvalidDamage
	}

	target.Health -= cmd.Damage

	var r Result
	r.conn(target.ID, EvtTakeDamage, cmd.Damage)
	r.conn(attacker.ID, EvtHitConfirm, nil)

	if target.Health > s.Rules.KillThreshold {
		return r, nil
	}

	// Kill transaction.
	r.conn(attacker.ID, EvtKillConfirm, nil)
	if attacker.ID != target.ID {
		attacker.Kills++
	}
	target.Deaths++
	target.IsDead = true
	target.Health = 0
	target.RespawnTime = now.Add(s.Rules.RespawnDelay).UnixMilli()

	if carrier, ok := s.Match.Carrier(); ok && carrier == target.ID {
		s.clearObjective()
		s.systemLog(&r, "❌ OIL LOST! CARRIER DESTROYED!", SeverityWarning)
	}

	r.room(EvtUpdateScoreboard, s.Roster())
	r.room(EvtKillFeed, KillFeed{
		Killer:     attacker.Name,
		Victim:     target.Name,
		KillerTeam: attacker.Team,
		VictimTeam: target.Team,
	})
	r.room(EvtGameTick, s.tick())
	return r, nil
}

func (s *State) pickup(p *Player) (Result, error) {
	if p.IsDead {
		return Result{}, ErrPlayerDead
	}
	if s.Match.IsCarryingOil {
		return Result{}, ErrOilCarried
	}
	if s.GameState != GamePlaying {
		return Result{}, ErrNotPlaying
	}

	id := p.ID
	s.Match.IsCarryingOil = true
	s.Match.OilHolder = Holder(p.Team)
	s.Match.CarrierID = &id

	var r Result
	r.room(EvtGameTick, s.tick())
	s.systemLog(&r, fmt.Sprintf("🛢️ OIL SECURED BY %s TEAM!", p.Team), SeverityWarning)
	return r, nil
}

func (s *State) resolveGoal(scorer *Player) (Result, error) {
	if s.WaitingForConfirmations {
		return Result{}, ErrBarrierOpen
	}

	if scorer.Team == TeamBlue {
		s.Match.BlueScore++
	} else {
		s.Match.RedScore++
	}
	scorer.Goals++
	s.clearObjective()

	for _, p := range s.Players {
		s.placeAtSpawn(p)
	}

	clear(s.Confirmations)
	s.WaitingForConfirmations = true

	var r Result
	r.room(EvtRoundReset, RoundReset{ScorerTeam: scorer.Team, Players: s.Roster()})
	r.room(EvtGameTick, s.tick())
	s.systemLog(&r, "✅ GOAL! SYNCING WITH LEDGER...", SeveritySuccess)
	return r, nil
}

// settleBarrier closes the barrier once every rostered player confirmed.
func (s *State) settleBarrier() Result {
	var r Result
	if !s.WaitingForConfirmations || !s.quorum() {
		return r
	}
	s.clearBarrier()

	if s.Match.BlueScore >= s.Rules.WinScore || s.Match.RedScore >= s.Rules.WinScore {
		r.merge(s.endMatch(FinishScore))
		return r
	}
	r.room(EvtNextRoundReady, nil)
	s.systemLog(&r, "🎮 ALL PLAYERS SYNCED. ROUND STARTING!", SeveritySuccess)
	return r
}

func (s *State) endMatch(reason FinishReason) Result {
	s.GameState = GameOver
	r := Result{Loop: LoopStop, Finished: reason}
	r.room(EvtGameOver, s.Match)
	return r
}

// Tick advances the match clock by one period, revives players whose
// respawn deadline passed, and emits the authoritative snapshot. Ticks
// outside of a running match are ignored.
func (s *State) Tick(now time.Time) Result {
	if s.GameState != GamePlaying {
		return Result{}
	}
	if s.MatchTime <= 0 {
		return s.endMatch(FinishClock)
	}
	s.MatchTime--

	var r Result
	nowMs := now.UnixMilli()
	for _, id := range s.playerIDs() {
		p := s.Players[id]
		if !p.IsDead || nowMs < p.RespawnTime {
			continue
		}
		s.placeAtSpawn(p)
		r.room(EvtPlayerRespawned, *p)
	}

	r.room(EvtGameTick, s.tick())
	return r
}

// Leave removes connID from the roster and reconciles the match.
func (s *State) Leave(connID string) (Result, error) {
	if _, ok := s.Players[connID]; !ok {
		return Result{}, ErrNotInRoom
	}
	delete(s.Players, connID)
	delete(s.Confirmations, connID)

	var r Result
	if carrier, ok := s.Match.Carrier(); ok && carrier == connID {
		s.clearObjective()
		s.systemLog(&r, "❌ CARRIER DISCONNECTED. OIL RESET.", SeverityWarning)
	}
	r.room(EvtPlayerDisconnected, connID)

	switch {
	case len(s.Players) == 0:
		// Nobody is left to notify; the room is about to be deleted.
		s.reset()
		r.Loop = LoopStop
	case s.GameState == GameOver:
		r.room(EvtGameReset, nil)
	case len(s.Players) < minPlayers:
		s.reset()
		r.Loop = LoopStop
		r.room(EvtGameReset, nil)
	default:
		// The departed player may have been the last unconfirmed one; settle
		// now so the remaining players do not wait forever.
		r.merge(s.settleBarrier())
	}
	return r, nil
}

func (s *State) reset() {
	s.GameActive = false
	s.GameState = GameWaiting
	s.clearBarrier()
}
