package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Player          string `json:"player"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	Player          string         `json:"player"`
	GridParams      GridParams     `json:"grid_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
	Kinds           []string       `json:"kinds"`
	Designs         []string       `json:"designs"`
}

type GridParams struct {
	ChunkSize [3]int `json:"chunk_size"`
	Height    int    `json:"height"`
	MinY      int    `json:"min_y"`
	BoundaryR int    `json:"boundary_r"`
	Seed      int64  `json:"seed"`
}

type CatalogDigests struct {
	BlockPalette  DigestRef `json:"block_palette"`
	DesignsDigest string    `json:"designs_digest"`
	TuningDigest  string    `json:"tuning_digest,omitempty"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// DRAW (client -> server)
type DrawMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	RequestID       string   `json:"request_id,omitempty"`
	Kind            string   `json:"kind"`
	Points          [][3]int `json:"points"`
	Design          string   `json:"design,omitempty"`
	// IncludePath asks for the rasterized voxels in the result.
	IncludePath bool `json:"include_path,omitempty"`
}

// WAND_CLICK (client -> server)
type WandClickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id,omitempty"`
	Pos             [3]int `json:"pos"`
}

// WAND_MODE (client -> server). An empty Kind cycles to the next kind.
type WandModeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id,omitempty"`
	Kind            string `json:"kind,omitempty"`
	Design          string `json:"design,omitempty"`
}

// WAND_CLEAR (client -> server)
type WandClearMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id,omitempty"`
}

// GET_CHUNK (client -> server)
type GetChunkMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id,omitempty"`
	CX              int    `json:"cx"`
	CZ              int    `json:"cz"`
}

// DRAW_RESULT (server -> client)
type DrawResultMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	RequestID       string   `json:"request_id,omitempty"`
	DrawID          string   `json:"draw_id"`
	Seq             uint64   `json:"seq"`
	Kind            string   `json:"kind"`
	Design          string   `json:"design"`
	Voxels          int      `json:"voxels"`
	Placed          int      `json:"placed"`
	Failed          int      `json:"failed"`
	Truncated       bool     `json:"truncated,omitempty"`
	Path            [][3]int `json:"path,omitempty"`
}

// WAND_STATE (server -> client)
type WandStateMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	RequestID       string         `json:"request_id,omitempty"`
	Kind            string         `json:"kind"`
	KindName        string         `json:"kind_name"`
	Design          string         `json:"design"`
	Pending         [][3]int       `json:"pending"`
	Required        int            `json:"required"`
	Drawn           *DrawResultMsg `json:"drawn,omitempty"`
}

// CHUNK (server -> client). Data is the RLE encoding of the column, indexed
// x, z, then y from MinY.
type ChunkMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id,omitempty"`
	CX              int    `json:"cx"`
	CZ              int    `json:"cz"`
	Height          int    `json:"height"`
	MinY            int    `json:"min_y"`
	Encoding        string `json:"encoding"`
	Data            string `json:"data"`
	Digest          string `json:"digest"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewError(requestID, code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, RequestID: requestID, Code: code, Message: msg}
}
