package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestErrorCarriesContextFieldsAndStack(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api-test", Level: zerolog.DebugLevel, Output: buf})

	ctx := log.WithRequestID(context.Background(), "req-42")
	ctx = log.WithOrderID(ctx, "8f2c9c1e")
	log.Error(ctx, "payment lookup failed", errors.New("gateway timeout"))

	entry := buf.String()
	for _, want := range []string{`"request_id":"req-42"`, `"order_id":"8f2c9c1e"`, `"stack"`, `"service":"api-test"`} {
		if !bytes.Contains(buf.Bytes(), []byte(want)) {
			t.Fatalf("log entry missing %s: %s", want, entry)
		}
	}
}

func TestWarnStackOnlyWhenEnabled(t *testing.T) {
	quiet := &bytes.Buffer{}
	New(Options{ServiceName: "t", Output: quiet}).Warn(context.Background(), "slow query")
	if bytes.Contains(quiet.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("warn should not carry a stack by default: %s", quiet.String())
	}

	chatty := &bytes.Buffer{}
	New(Options{ServiceName: "t", Output: chatty, WarnStack: true}).Warn(context.Background(), "slow query")
	if !bytes.Contains(chatty.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("warn stack enabled but no stack emitted: %s", chatty.String())
	}
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	if lvl := ParseLevel("debug"); lvl != zerolog.DebugLevel {
		t.Fatalf("debug parsed as %v", lvl)
	}
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("empty level parsed as %v", lvl)
	}
	if lvl := ParseLevel("loud"); lvl != zerolog.InfoLevel {
		t.Fatalf("unknown level parsed as %v", lvl)
	}
}
