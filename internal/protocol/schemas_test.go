package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"fgoplanner.app/internal/itemstats"
	"fgoplanner.app/internal/protocol"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	return v
}

// roundTrip renders a Go message the way the server sends it.
func roundTrip(t *testing.T, msg any) any {
	t.Helper()
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return decode(t, string(b))
}

func TestSchemas_ValidateSamples(t *testing.T) {
	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	validate(compile(t, "subscribe.schema.json"), decode(t, `{
	  "type":"SUBSCRIBE",
	  "protocol_version":"1.0",
	  "account_id":"acc-1",
	  "filter":{"includeUnownedServants":true,"includeCostumes":true}
	}`))

	validate(compile(t, "filter_msg.schema.json"), decode(t, `{
	  "type":"FILTER",
	  "protocol_version":"1.0",
	  "filter":{"includeSoundtracks":true}
	}`))

	validate(compile(t, "stats_request.schema.json"), decode(t, `{
	  "account":{
	    "_id":"acc-1",
	    "qp":1000,
	    "items":[{"itemId":6001,"quantity":40}],
	    "servants":[{"instanceId":1,"gameId":100100,"ascension":4,"skills":{"1":10,"2":9,"3":1}}],
	    "costumes":[11],
	    "soundtracks":[]
	  },
	  "filter":{"includeCostumes":false}
	}`))

	validate(compile(t, "welcome.schema.json"), roundTrip(t, protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       "3f1b6a0e-7f2e-4c8e-9d65-1f0a2b3c4d5e",
		AccountID:       "acc-1",
		Catalogs: protocol.CatalogDigests{
			Items:       protocol.DigestRef{Digest: "deadbeef", Count: 40},
			Servants:    protocol.DigestRef{Digest: "deadbeef", Count: 2},
			Soundtracks: protocol.DigestRef{Digest: "", Count: 0},
		},
	}))

	validate(compile(t, "stats.schema.json"), roundTrip(t, protocol.StatsMsg{
		Type:            protocol.TypeStats,
		ProtocolVersion: protocol.Version,
		Reason:          protocol.ReasonSubscribe,
		RunID:           "run-1",
		AccountID:       "acc-1",
		Filter:          itemstats.Filter{IncludeCostumes: true},
		Rows:            []itemstats.Row{{ItemID: 6001, Inventory: 100, Used: 20, Cost: 90, Debt: 70}},
		Digest:          "abc",
		ElapsedMS:       0.42,
		ComputedAt:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}))

	validate(compile(t, "error.schema.json"), roundTrip(t, protocol.NewError(protocol.ErrNotFound, "account acc-1 not found")))
}

func TestSchemas_RejectBadSamples(t *testing.T) {
	sub := compile(t, "subscribe.schema.json")
	if err := sub.Validate(decode(t, `{"type":"SUBSCRIBE","protocol_version":"1.0"}`)); err == nil {
		t.Fatalf("expected missing account_id to fail")
	}
	if err := sub.Validate(decode(t, `{"type":"SUBSCRIBE","protocol_version":"1.0","account_id":"a","filter":{"includeEverything":true}}`)); err == nil {
		t.Fatalf("expected unknown filter flag to fail")
	}
	errSchema := compile(t, "error.schema.json")
	if err := errSchema.Validate(roundTrip(t, protocol.NewError("E_NOPE", "x"))); err == nil {
		t.Fatalf("expected unknown error code to fail")
	}
}
