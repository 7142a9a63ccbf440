package postgres

import (
	"encoding/json"
	"testing"
)

func TestWhereFilter(t *testing.T) {
	filter, err := whereFilter(nil)
	if err != nil || string(filter) != "{}" {
		t.Fatalf("empty filter should match everything: %s %v", filter, err)
	}

	filter, err = whereFilter(map[string]interface{}{"event": "Deposit", "block": 12})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(filter) != `{"block":12,"event":"Deposit"}` {
		t.Fatalf("filter mismatch: %s", filter)
	}
}

func TestTimestampArg(t *testing.T) {
	if timestampArg(0) != nil {
		t.Fatalf("zero timestamp should be NULL")
	}
	if timestampArg(1700000000) != int64(1700000000) {
		t.Fatalf("timestamp should be passed as int64")
	}
}

func TestDecodePayloadKeepsLargeIntegers(t *testing.T) {
	values, err := decodePayload([]byte(`{"assets":1000000000000000000001,"event":"Deposit"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	n, ok := values["assets"].(json.Number)
	if !ok || n.String() != "1000000000000000000001" {
		t.Fatalf("assets lost precision: %#v", values["assets"])
	}
	if values["event"] != "Deposit" {
		t.Fatalf("event mismatch: %v", values["event"])
	}
}
