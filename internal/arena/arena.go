package arena

import (
	"errors"
	"math"
	"time"
)

var ErrAlreadyJoined = errors.New("connection already joined")
var ErrNotInRoom = errors.New("player not in room")
var ErrUnknownTarget = errors.New("unknown target")
var ErrTargetDead = errors.New("target already dead")
var ErrPlayerDead = errors.New("player is dead")
var ErrInvalidDamage = errors.New("invalid damage")
var ErrNotPlaying = errors.New("match not in progress")
var ErrOilCarried = errors.New("oil already carried")
var ErrNotCarrier = errors.New("player is not the oil carrier")
var ErrBarrierOpen = errors.New("waiting for round confirmations")
var ErrBarrierClosed = errors.New("no round awaiting confirmation")
var ErrDebugDisabled = errors.New("debug goal disabled")
var ErrUnsupportedCommand = errors.New("unsupported command")

type Team string

const (
	TeamBlue Team = "BLUE"
	TeamRed  Team = "RED"
)

func (t Team) Opponent() Team {
	if t == TeamBlue {
		return TeamRed
	}
	return TeamBlue
}

// Holder is the objective owner: "none" or one of the teams.
type Holder string

const HolderNone Holder = "none"

type GameState string

const (
	GameWaiting GameState = "waiting"
	GamePlaying GameState = "playing"
	GameOver    GameState = "game_over"
)

// minPlayers is the roster size that starts a match; below it the match resets.
const minPlayers = 2

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Player struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Position    Vec3    `json:"position"`
	Rotation    float64 `json:"rotation"`
	Team        Team    `json:"team"`
	Health      float64 `json:"health"`
	Kills       int     `json:"kills"`
	Deaths      int     `json:"deaths"`
	Goals       int     `json:"goals"`
	IsDead      bool    `json:"isDead"`
	RespawnTime int64   `json:"respawnTime"` // unix millis, 0 while alive
	IsReady     bool    `json:"isReady"`
	ChainID     *string `json:"chainId"` // null when the client sent none
	HostChainID string  `json:"hostChainId"`
}

type MatchState struct {
	BlueScore     int     `json:"blueScore"`
	RedScore      int     `json:"redScore"`
	IsCarryingOil bool    `json:"isCarryingOil"`
	OilHolder     Holder  `json:"oilHolder"`
	CarrierID     *string `json:"carrierId"`
}

func NewMatchState() MatchState {
	return MatchState{OilHolder: HolderNone}
}

// Carrier returns the carrier's connection id, if the oil is being carried.
func (m MatchState) Carrier() (string, bool) {
	if !m.IsCarryingOil || m.CarrierID == nil {
		return "", false
	}
	return *m.CarrierID, true
}

func (m MatchState) Score(t Team) int {
	if t == TeamBlue {
		return m.BlueScore
	}
	return m.RedScore
}

// Winner is empty on a draw.
func (m MatchState) Winner() Team {
	switch {
	case m.BlueScore > m.RedScore:
		return TeamBlue
	case m.RedScore > m.BlueScore:
		return TeamRed
	default:
		return ""
	}
}

type Rules struct {
	MatchSeconds  int
	TickInterval  time.Duration
	RespawnDelay  time.Duration
	WinScore      int
	SpawnDepth    float64
	KillThreshold float64
	DebugGoal     bool
}

func DefaultRules() Rules {
	return Rules{
		MatchSeconds:  900,
		TickInterval:  time.Second,
		RespawnDelay:  10 * time.Second,
		WinScore:      3,
		SpawnDepth:    1370,
		KillThreshold: 0.1,
	}
}

var ErrInvalidRules = errors.New("invalid rules")

func (r Rules) Validate() error {
	switch {
	case r.MatchSeconds <= 0:
		return errors.Join(ErrInvalidRules, errors.New("match_seconds must be positive"))
	case r.TickInterval <= 0:
		return errors.Join(ErrInvalidRules, errors.New("tick_interval must be positive"))
	case r.RespawnDelay < 0:
		return errors.Join(ErrInvalidRules, errors.New("respawn_delay must not be negative"))
	case r.WinScore <= 0:
		return errors.Join(ErrInvalidRules, errors.New("win_score must be positive"))
	case r.KillThreshold < 0 || r.KillThreshold >= 100:
		return errors.Join(ErrInvalidRules, errors.New("kill_threshold must be in [0,100)"))
	}
	return nil
}

// Spawn returns the fixed spawn pose for a team: BLUE sits at -depth facing
// +z, RED at +depth facing -z.
func (r Rules) Spawn(t Team) (Vec3, float64) {
	if t == TeamBlue {
		return Vec3{X: 0, Y: 0.5, Z: -r.SpawnDepth}, math.Pi
	}
	return Vec3{X: 0, Y: 0.5, Z: r.SpawnDepth}, 0
}
