package arena

import (
	"maps"
	"slices"
)

// State is the authoritative state of one room. It is not safe for
// concurrent use; the owning room actor serializes every call.
type State struct {
	HostID                  string
	Players                 map[string]*Player
	GameActive              bool
	GameState               GameState
	MatchTime               int
	Match                   MatchState
	Confirmations           map[string]struct{}
	WaitingForConfirmations bool
	Rules                   Rules
}

func NewState(hostID string, rules Rules) *State {
	return &State{
		HostID:        hostID,
		Players:       make(map[string]*Player),
		GameState:     GameWaiting,
		MatchTime:     rules.MatchSeconds,
		Match:         NewMatchState(),
		Confirmations: make(map[string]struct{}),
		Rules:         rules,
	}
}

// Roster copies every player by value.
func (s *State) Roster() map[string]Player {
	out := make(map[string]Player, len(s.Players))
	for id, p := range s.Players {
		out[id] = *p
	}
	return out
}

func (s *State) playerIDs() []string {
	return slices.Sorted(maps.Keys(s.Players))
}

func (s *State) hasTeam(t Team) bool {
	for _, p := range s.Players {
		if p.Team == t {
			return true
		}
	}
	return false
}

func (s *State) placeAtSpawn(p *Player) {
	p.Position, p.Rotation = s.Rules.Spawn(p.Team)
	p.Health = 100
	p.IsDead = false
	p.RespawnTime = 0
}

func (s *State) clearObjective() {
	s.Match.IsCarryingOil = false
	s.Match.OilHolder = HolderNone
	s.Match.CarrierID = nil
}

func (s *State) clearBarrier() {
	clear(s.Confirmations)
	s.WaitingForConfirmations = false
}

// quorum reports whether the confirmations equal the live roster.
func (s *State) quorum() bool {
	if len(s.Confirmations) != len(s.Players) {
		return false
	}
	for id := range s.Players {
		if _, ok := s.Confirmations[id]; !ok {
			return false
		}
	}
	return true
}

func (s *State) tick() GameTick {
	return GameTick{Time: s.MatchTime, MatchState: s.Match, Players: s.Roster()}
}

func (s *State) systemLog(r *Result, msg string, sev Severity) {
	r.room(EvtSystemLog, SystemLog{Message: msg, Severity: sev})
}

// Summary is a read-only view used by the HTTP surface and tests.
type Summary struct {
	HostID                  string     `json:"hostId"`
	Players                 int        `json:"players"`
	GameActive              bool       `json:"gameActive"`
	GameState               GameState  `json:"gameState"`
	MatchTime               int        `json:"matchTime"`
	MatchState              MatchState `json:"matchState"`
	WaitingForConfirmations bool       `json:"waitingForConfirmations"`
	Confirmations           int        `json:"confirmations"`
}

func (s *State) Summary() Summary {
	return Summary{
		HostID:                  s.HostID,
		Players:                 len(s.Players),
		GameActive:              s.GameActive,
		GameState:               s.GameState,
		MatchTime:               s.MatchTime,
		MatchState:              s.Match,
		WaitingForConfirmations: s.WaitingForConfirmations,
		Confirmations:           len(s.Confirmations),
	}
}
