package observerproto_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"sandfall.io/internal/observerproto"
)

func TestSchemas_ValidateMessages(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	// Validate what the Go types actually marshal to.
	validate := func(s *jsonschema.Schema, msg any) {
		t.Helper()
		b, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate %s: %v", b, err)
		}
	}

	validate(compile("observer_subscribe.schema.json"), observerproto.SubscribeMsg{
		Type:            observerproto.TypeSubscribe,
		ProtocolVersion: observerproto.Version,
		RunID:           "r1",
		FromSeq:         3,
	})

	floor := 11
	validate(compile("observer_grid.schema.json"), observerproto.GridMsg{
		Type:            observerproto.TypeGrid,
		ProtocolVersion: observerproto.Version,
		Run: observerproto.RunInfo{
			RunID:         "r1",
			Mode:          "floored",
			Source:        [2]int{500, 0},
			Grains:        103,
			Outcome:       "RESTED",
			TerrainBounds: observerproto.Bounds{Left: 494, Right: 503, Top: 9, Bottom: 9},
			Bounds:        observerproto.Bounds{Left: 490, Right: 510, Top: 0, Bottom: 10},
			FloorY:        &floor,
		},
		Rocks: [][2]int{{494, 9}, {495, 9}},
		Raster: &observerproto.Raster{
			Bounds:   observerproto.Bounds{Left: 494, Right: 495, Top: 9, Bottom: 9},
			Encoding: observerproto.RasterRLE,
			Data:     "AQI=",
		},
	})

	validate(compile("observer_grain.schema.json"), observerproto.GrainMsg{
		Type:            observerproto.TypeGrain,
		ProtocolVersion: observerproto.Version,
		RunID:           "r1",
		Seq:             1,
		Outcome:         "RESTED",
		Pos:             [2]int{500, 8},
	})
}

func TestSchemas_RejectBadSubscribe(t *testing.T) {
	s, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", "observer_subscribe.schema.json"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	var v any
	_ = json.Unmarshal([]byte(`{"type":"SUBSCRIBE","protocol_version":"0.1","run_id":""}`), &v)
	if err := s.Validate(v); err == nil {
		t.Fatalf("empty run_id should be rejected")
	}
}
