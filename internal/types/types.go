// Package types defines the websocket wire format.
//
// Every frame in both directions is a JSON envelope:
//
//	{"type": "<event>", "data": <payload>}
//
// Client -> Server
//
//	joinGame:     {hostChainId: string, name?: string, chainId?: string, isHost?: bool}
//	playerMove:   {position: {x, y, z}, rotation: number}
//	playerHit:    {targetId: string, damage: number}
//	playerShoot, oilPickedUp, oilDelivered, debugGoal, roundConfirm: no payload
//
// Server -> Client payloads are the arena event payloads.
package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DoyleJ11/hoverwars-server/internal/arena"
)

var ErrMalformed = errors.New("malformed message")
var ErrUnknownType = errors.New("unknown message type")
var ErrMissingField = errors.New("missing required field")
var ErrInvalidField = errors.New("invalid field")

const (
	MsgJoinGame     = "joinGame"
	MsgPlayerMove   = "playerMove"
	MsgPlayerHit    = "playerHit"
	MsgPlayerShoot  = "playerShoot"
	MsgOilPickedUp  = "oilPickedUp"
	MsgOilDelivered = "oilDelivered"
	MsgDebugGoal    = "debugGoal"
	MsgRoundConfirm = "roundConfirm"
)

type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type joinPayload struct {
	HostChainID *string `json:"hostChainId"`
	Name        string  `json:"name"`
	ChainID     *string `json:"chainId"`
	IsHost      bool    `json:"isHost"`
}

type vecPayload struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
}

type movePayload struct {
	Position *vecPayload `json:"position"`
	Rotation *float64    `json:"rotation"`
}

type hitPayload struct {
	TargetID string   `json:"targetId"`
	Damage   *float64 `json:"damage"`
}

// Decode parses one client frame into a command. Payload fields are checked
// strictly: unknown fields, missing required fields and out-of-range values
// are rejected with a typed error.
func Decode(raw []byte) (arena.Command, error) {
	var cm ClientMessage
	if err := json.Unmarshal(raw, &cm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch cm.Type {
	case MsgJoinGame:
		var p joinPayload
		if err := decodeStrict(cm, &p); err != nil {
			return nil, err
		}
		if p.HostChainID == nil || *p.HostChainID == "" {
			return nil, missing(cm.Type, "hostChainId")
		}
		join := arena.Join{HostID: *p.HostChainID, Name: p.Name}
		if p.ChainID != nil {
			join.ChainID = *p.ChainID
		}
		return join, nil

	case MsgPlayerMove:
		var p movePayload
		if err := decodeStrict(cm, &p); err != nil {
			return nil, err
		}
		switch {
		case p.Position == nil:
			return nil, missing(cm.Type, "position")
		case p.Position.X == nil || p.Position.Y == nil || p.Position.Z == nil:
			return nil, missing(cm.Type, "position.{x,y,z}")
		case p.Rotation == nil:
			return nil, missing(cm.Type, "rotation")
		}
		return arena.Move{
			Position: arena.Vec3{X: *p.Position.X, Y: *p.Position.Y, Z: *p.Position.Z},
			Rotation: *p.Rotation,
		}, nil

	case MsgPlayerHit:
		var p hitPayload
		if err := decodeStrict(cm, &p); err != nil {
			return nil, err
		}
		if p.TargetID == "" {
			return nil, missing(cm.Type, "targetId")
		}
		if p.Damage == nil {
			return nil, missing(cm.Type, "damage")
		}
		if *p.Damage < 0 {
			return nil, fmt.Errorf("%s: %w: damage must not be negative", cm.Type, ErrInvalidField)
		}
		return arena.Hit{TargetID: p.TargetID, Damage: *p.Damage}, nil

	case MsgPlayerShoot:
		return arena.Shoot{}, nil
	case MsgOilPickedUp:
		return arena.PickupOil{}, nil
	case MsgOilDelivered:
		return arena.DeliverOil{}, nil
	case MsgDebugGoal:
		return arena.DebugGoal{}, nil
	case MsgRoundConfirm:
		return arena.ConfirmRound{}, nil

	case "":
		return nil, missing("message", "type")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cm.Type)
	}
}

func decodeStrict(cm ClientMessage, dst any) error {
	if len(cm.Data) == 0 || bytes.Equal(cm.Data, []byte("null")) {
		return missing(cm.Type, "data")
	}
	dec := json.NewDecoder(bytes.NewReader(cm.Data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%s: %w: %v", cm.Type, ErrMalformed, err)
	}
	return nil
}

func missing(msgType, field string) error {
	return fmt.Errorf("%s: %w: %s", msgType, ErrMissingField, field)
}

// Encode serializes an outbound event envelope.
func Encode(ev arena.Event) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Type, err)
	}
	return b, nil
}
