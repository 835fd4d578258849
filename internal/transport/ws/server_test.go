package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"

	"voxelpath.ai/internal/curve"
	"voxelpath.ai/internal/protocol"
	"voxelpath.ai/internal/sim/catalogs"
	"voxelpath.ai/internal/sim/draw"
	"voxelpath.ai/internal/sim/encoding"
	"voxelpath.ai/internal/sim/grid"
)

func newTestServer(t *testing.T) (*httptest.Server, *draw.Service) {
	t.Helper()
	cats := &catalogs.Catalogs{
		Blocks: catalogs.BlockCatalog{Palette: []string{"AIR", "STONE"}, Index: map[string]uint16{"AIR": 0, "STONE": 1}},
		Designs: catalogs.DesignCatalog{ByID: map[string]catalogs.DesignDef{
			"single_stone": {ID: "single_stone", Layers: []catalogs.LayerDef{{Mode: catalogs.ModeConstant, Placements: []catalogs.PlacementDef{{Block: "STONE"}}}}},
		}},
	}
	store := grid.NewStore(grid.Config{Height: 16, MinY: -8, BoundaryR: 64})
	svc := &draw.Service{
		World:           draw.NewWorld(store, 0),
		Designs:         draw.CatalogDesigns{Catalogs: cats},
		DefaultDesign:   "single_stone",
		MaxControlCoord: 64,
	}
	wand := &draw.Wand{Service: svc, Sessions: draw.NewMemorySessions(), DefaultKind: curve.KindLinear}
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	info := Info{
		Grid:     protocol.GridParams{ChunkSize: [3]int{16, 16, 16}, Height: 16, MinY: -8, BoundaryR: 64},
		Catalogs: protocol.CatalogDigests{BlockPalette: protocol.DigestRef{Digest: "p", Count: 2}, DesignsDigest: "d"},
		Designs:  []string{"single_stone"},
	}
	srv := httptest.NewServer(NewServer(svc, wand, v, info, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, svc
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, req string, out any) protocol.BaseMessage {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(req)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	base, err := protocol.DecodeBase(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != nil {
		if err := json.Unmarshal(b, out); err != nil {
			t.Fatalf("unmarshal %s: %v", base.Type, err)
		}
	}
	return base
}

func hello(t *testing.T, conn *websocket.Conn, player string) protocol.WelcomeMsg {
	t.Helper()
	var w protocol.WelcomeMsg
	base := roundTrip(t, conn, `{"type":"HELLO","protocol_version":"1.0","player":"`+player+`"}`, &w)
	if base.Type != protocol.TypeWelcome {
		t.Fatalf("expected WELCOME, got %s", base.Type)
	}
	return w
}

func TestHandshakeRequiresHello(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"DRAW","protocol_version":"1.0"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestWelcomeAndDraw(t *testing.T) {
	srv, svc := newTestServer(t)
	conn := dial(t, srv)
	w := hello(t, conn, "alice")
	if w.Player != "alice" || w.SessionID == "" || len(w.Kinds) != 3 || w.GridParams.Height != 16 {
		t.Fatalf("unexpected welcome %+v", w)
	}

	var res protocol.DrawResultMsg
	base := roundTrip(t, conn, `{"type":"DRAW","protocol_version":"1.0","request_id":"r1","kind":"LINEAR","points":[[0,0,0],[2,1,2]],"include_path":true}`, &res)
	if base.Type != protocol.TypeDrawResult {
		t.Fatalf("expected DRAW_RESULT, got %s", base.Type)
	}
	want := [][3]int{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {1, 1, 1}, {2, 1, 1}, {2, 1, 2}}
	if diff := cmp.Diff(want, res.Path); diff != "" {
		t.Fatalf("path (-want +got):\n%s", diff)
	}
	if res.RequestID != "r1" || res.Voxels != 6 || res.Placed != 6 || res.Seq != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := svc.World.GetBlock(curve.Coord{X: 1, Y: 1, Z: 1}); got != 1 {
		t.Fatalf("block not written, got %d", got)
	}
}

func TestErrorsMapToCodes(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)
	hello(t, conn, "bob")

	cases := []struct {
		req, code string
	}{
		{`{"type":"DRAW","protocol_version":"1.0","kind":"CUBIC","points":[[0,0,0],[1,1,1]]}`, protocol.ErrInvalidConfig},
		{`{"type":"DRAW","protocol_version":"1.0","kind":"LINEAR","points":[[0,0,0],[100,0,0]]}`, protocol.ErrOutOfRange},
		{`{"type":"DRAW","protocol_version":"1.0","kind":"LINEAR","points":[[0,0,0],[1,0,0]],"design":"nope"}`, protocol.ErrUnknownDesign},
		{`{"type":"DRAW","protocol_version":"1.0","kind":"LINEAR","points":[[0,0]]}`, protocol.ErrProtoBadRequest},
		{`{"type":"DRAW","protocol_version":"0.1","kind":"LINEAR","points":[[0,0,0],[1,0,0]]}`, protocol.ErrProtoVersion},
		{`{"type":"TELEPORT","protocol_version":"1.0"}`, protocol.ErrProtoBadRequest},
		{`not json`, protocol.ErrProtoBadRequest},
		{`{"type":"GET_CHUNK","protocol_version":"1.0","cx":100,"cz":0}`, protocol.ErrOutOfRange},
	}
	for i, c := range cases {
		var e protocol.ErrorMsg
		base := roundTrip(t, conn, c.req, &e)
		if base.Type != protocol.TypeError || e.Code != c.code {
			t.Fatalf("case %d: type=%s code=%s want %s (%s)", i, base.Type, e.Code, c.code, e.Message)
		}
	}
}

func TestWandFlowAndChunk(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)
	hello(t, conn, "carol")

	var st protocol.WandStateMsg
	roundTrip(t, conn, `{"type":"WAND_MODE","protocol_version":"1.0"}`, &st)
	if st.Kind != "QUADRATIC" || st.Required != 3 {
		t.Fatalf("cycle: %+v", st)
	}
	roundTrip(t, conn, `{"type":"WAND_MODE","protocol_version":"1.0","kind":"LINEAR"}`, &st)
	if st.Kind != "LINEAR" {
		t.Fatalf("set linear: %+v", st)
	}

	st = protocol.WandStateMsg{}
	roundTrip(t, conn, `{"type":"WAND_CLICK","protocol_version":"1.0","pos":[3,2,3]}`, &st)
	if len(st.Pending) != 1 || st.Drawn != nil {
		t.Fatalf("first click: %+v", st)
	}
	st = protocol.WandStateMsg{}
	roundTrip(t, conn, `{"type":"WAND_CLICK","protocol_version":"1.0","pos":[3,2,10]}`, &st)
	if len(st.Pending) != 0 || st.Drawn == nil || st.Drawn.Voxels != 8 {
		t.Fatalf("second click: %+v", st)
	}

	var ch protocol.ChunkMsg
	base := roundTrip(t, conn, `{"type":"GET_CHUNK","protocol_version":"1.0","request_id":"c","cx":0,"cz":0}`, &ch)
	if base.Type != protocol.TypeChunk || ch.Encoding != "RLE" || ch.Digest == "" {
		t.Fatalf("chunk: %+v", ch)
	}
	blocks, err := encoding.DecodeRLE(ch.Data, 16*16*ch.Height)
	if err != nil {
		t.Fatalf("decode chunk: %v", err)
	}
	// x=3 z=5 y=2 relative to min_y.
	idx := 3 + 5*16 + (2-ch.MinY)*16*16
	if blocks[idx] != 1 {
		t.Fatalf("expected stone at (3,2,5), got %d", blocks[idx])
	}

	st = protocol.WandStateMsg{}
	roundTrip(t, conn, `{"type":"WAND_CLICK","protocol_version":"1.0","pos":[0,0,0]}`, &st)
	roundTrip(t, conn, `{"type":"WAND_CLEAR","protocol_version":"1.0"}`, &st)
	if len(st.Pending) != 0 {
		t.Fatalf("clear: %+v", st)
	}
}
