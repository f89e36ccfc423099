package logger

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStringFields(t *testing.T) {
	fields := StringFields(
		StringField{Key: "  provider  ", Value: "  Gemini  "},
		StringField{Key: "ignored", Value: "   "},
		StringField{Key: "   ", Value: "empty key"},
	)

	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(fields))
	}
	if fields[0].Key != "provider" || fields[0].String != "Gemini" {
		t.Fatalf("unexpected provider field: %+v", fields[0])
	}
	if empty := StringFields(); len(empty) != 0 {
		t.Fatalf("expected empty fields, got %d", len(empty))
	}
}

func TestWithFieldsNilLogger(t *testing.T) {
	enriched := WithFields(nil, zap.String("baz", "qux"))
	if enriched == nil {
		t.Fatalf("expected fallback logger when nil provided")
	}
	enriched.Info("another log")
}

func TestCommonFields(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	WithCommonFields(zap.New(core), "  gemini  ", "model-x").Info("call")
	WithCommonFields(zap.New(core), "", "").Info("bare")

	entries := observed.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	ctx := entries[0].ContextMap()
	if ctx[FieldProvider] != "gemini" || ctx[FieldModel] != "model-x" {
		t.Fatalf("unexpected fields %v", ctx)
	}
	if len(entries[1].Context) != 0 {
		t.Fatalf("expected empty values to be dropped, got %v", entries[1].ContextMap())
	}
}

func TestRunFields(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	hash := strings.Repeat("ab", 32)

	WithRunFields(zap.New(core), "run-1", hash).Info("match finished")

	ctx := observed.All()[0].ContextMap()
	if ctx[FieldRunID] != "run-1" {
		t.Fatalf("unexpected run id %v", ctx[FieldRunID])
	}
	if got := ctx[FieldCandidateHash]; got != hash[:16] {
		t.Fatalf("expected shortened hash, got %v", got)
	}
}
