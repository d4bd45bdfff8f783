package jsoncodec

import (
	"bytes"
	"errors"
	"testing"

	"netkit/framing"
)

type sample struct {
	Topic string `json:"topic"`
	N     int    `json:"n"`
}

func TestWriteReadJSON(t *testing.T) {
	var buf bytes.Buffer
	want := sample{Topic: "news/sports", N: 7}
	if err := WriteJSON(&buf, framing.DefaultMaxFrameSize, want); err != nil {
		t.Fatal(err)
	}
	var got sample
	if err := ReadJSON(&buf, framing.DefaultMaxFrameSize, &got); err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestReadJSONInvalid(t *testing.T) {
	var buf bytes.Buffer
	if err := framing.WriteFrame(&buf, []byte("not json"), framing.DefaultMaxFrameSize); err != nil {
		t.Fatal(err)
	}
	var got sample
	err := ReadJSON(&buf, framing.DefaultMaxFrameSize, &got)
	var invalidErr *InvalidJSONError
	if !errors.As(err, &invalidErr) {
		t.Fatalf("expected InvalidJSONError, got %v", err)
	}
}
