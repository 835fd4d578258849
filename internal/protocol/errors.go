package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Draw/wand layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrInvalidConfig = "E_INVALID_CONFIG"
	ErrUnknownDesign = "E_UNKNOWN_DESIGN"
	ErrOutOfRange    = "E_OUT_OF_RANGE"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrBadRequest:      {},
	ErrInvalidConfig:   {},
	ErrUnknownDesign:   {},
	ErrOutOfRange:      {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
