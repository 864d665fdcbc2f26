package ciphertext_test

import (
	"encoding/json"
	"testing"

	"github.com/veilart/veilart/internal/ciphertext"
)

func TestParseHandleRoundTrip(t *testing.T) {
	h := ciphertext.NewHandle()
	parsed, err := ciphertext.ParseHandle(h.String())
	if err != nil {
		t.Fatal(err)
	}
	if parsed != h {
		t.Errorf("parsed %s, expected %s", parsed, h)
	}

	if _, err := ciphertext.ParseHandle("not-a-handle"); err == nil {
		t.Error("expected error for malformed handle")
	}
}

func TestZeroHandle(t *testing.T) {
	if !ciphertext.Zero.IsZero() {
		t.Error("Zero must report IsZero")
	}
	if ciphertext.NewHandle().IsZero() {
		t.Error("fresh handle must not report IsZero")
	}
}

func TestHandleJSON(t *testing.T) {
	h := ciphertext.NewHandle()
	data, err := json.Marshal(h)
	if err != nil {
		t.Fatal(err)
	}
	var got ciphertext.Handle
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got != h {
		t.Errorf("json round trip changed handle: %s != %s", got, h)
	}
}
