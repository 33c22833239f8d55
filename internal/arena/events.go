package arena

type EventType string

const (
	EvtInitGame           EventType = "initGame"
	EvtPlayerJoined       EventType = "playerJoined"
	EvtPlayerMoved        EventType = "playerMoved"
	EvtEnemyShoot         EventType = "enemyShoot"
	EvtGameStart          EventType = "gameStart"
	EvtGameTick           EventType = "gameTick"
	EvtPlayerRespawned    EventType = "playerRespawned"
	EvtTakeDamage         EventType = "takeDamage"
	EvtHitConfirm         EventType = "hitConfirm"
	EvtKillConfirm        EventType = "killConfirm"
	EvtUpdateScoreboard   EventType = "updateScoreboard"
	EvtKillFeed           EventType = "killFeed"
	EvtSystemLog          EventType = "systemLog"
	EvtRoundReset         EventType = "roundReset"
	EvtNextRoundReady     EventType = "nextRoundReady"
	EvtGameOver           EventType = "gameOver"
	EvtPlayerDisconnected EventType = "playerDisconnected"
	EvtGameReset          EventType = "gameReset"
)

type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

type Audience int

const (
	ToRoom   Audience = iota // every rostered connection
	ToConn                   // only ConnID
	ToOthers                 // everyone except ConnID
)

type Delivery struct {
	Audience Audience
	ConnID   string
	Event    Event
}

// LoopAction tells the room actor what to do with its ticker after a command.
type LoopAction int

const (
	LoopKeep LoopAction = iota
	LoopStart
	LoopStop
)

type FinishReason string

const (
	FinishClock FinishReason = "clock"
	FinishScore FinishReason = "score"
)

type Result struct {
	Deliveries []Delivery
	Loop       LoopAction
	Finished   FinishReason // set when this command ended the match
}

func (r *Result) room(t EventType, data any) {
	r.Deliveries = append(r.Deliveries, Delivery{Audience: ToRoom, Event: Event{Type: t, Data: data}})
}

func (r *Result) conn(id string, t EventType, data any) {
	r.Deliveries = append(r.Deliveries, Delivery{Audience: ToConn, ConnID: id, Event: Event{Type: t, Data: data}})
}

func (r *Result) others(id string, t EventType, data any) {
	r.Deliveries = append(r.Deliveries, Delivery{Audience: ToOthers, ConnID: id, Event: Event{Type: t, Data: data}})
}

func (r *Result) merge(o Result) {
	r.Deliveries = append(r.Deliveries, o.Deliveries...)
	if o.Loop != LoopKeep {
		r.Loop = o.Loop
	}
	if o.Finished != "" {
		r.Finished = o.Finished
	}
}

// Payloads. Player maps are value copies so an encoded event never aliases
// live room state.

type InitGame struct {
	MyPlayer   Player            `json:"myPlayer"`
	AllPlayers map[string]Player `json:"allPlayers"`
	GameState  GameState         `json:"gameState"`
	MatchTime  int               `json:"matchTime"`
	MatchState MatchState        `json:"matchState"`
}

type GameStart struct {
	MatchTime  int        `json:"matchTime"`
	MatchState MatchState `json:"matchState"`
}

type GameTick struct {
	Time       int               `json:"time"`
	MatchState MatchState        `json:"matchState"`
	Players    map[string]Player `json:"players"`
}

type PlayerMoved struct {
	ID       string  `json:"id"`
	Position Vec3    `json:"position"`
	Rotation float64 `json:"rotation"`
}

type KillFeed struct {
	Killer     string `json:"killer"`
	Victim     string `json:"victim"`
	KillerTeam Team   `json:"killerTeam"`
	VictimTeam Team   `json:"victimTeam"`
}

type RoundReset struct {
	ScorerTeam Team              `json:"scorerTeam"`
	Players    map[string]Player `json:"players"`
}

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeveritySuccess Severity = "success"
)

type SystemLog struct {
	Message  string   `json:"msg"`
	Severity Severity `json:"type"`
}
