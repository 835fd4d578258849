package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"

	TypeDraw      = "DRAW"
	TypeWandClick = "WAND_CLICK"
	TypeWandMode  = "WAND_MODE"
	TypeWandClear = "WAND_CLEAR"
	TypeGetChunk  = "GET_CHUNK"

	TypeDrawResult = "DRAW_RESULT"
	TypeWandState  = "WAND_STATE"
	TypeChunk      = "CHUNK"
	TypeError      = "ERROR"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	RequestID       string `json:"request_id,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
