package privacylog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeFieldFingerprintsIdentityIDs(t *testing.T) {
	f := SanitizeField(zap.String("identity_id", "4EfA9Jrvv3nnCFdSf7fad59851iiTRZ6Wcu6YVJ4iSeF"))
	if f.Key != "identity_id_fp" {
		t.Fatalf("unexpected key: %s", f.Key)
	}
	if !strings.HasPrefix(f.String, "fp_") {
		t.Fatalf("unexpected fingerprint value: %q", f.String)
	}
	again := SanitizeField(zap.String("identity_id", "4EfA9Jrvv3nnCFdSf7fad59851iiTRZ6Wcu6YVJ4iSeF"))
	if again.String != f.String {
		t.Fatal("fingerprint should be stable within a process")
	}
	if kept := SanitizeField(zap.String("key_type", "BLS12_381")); kept.String != "BLS12_381" {
		t.Fatalf("expected untouched field, got %q", kept.String)
	}
}

func TestSanitizingCoreRedactsSecrets(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(WrapCore(core)).With(zap.String("wallet_password", "hunter2"))
	logger.Info("test",
		zap.String("mnemonic", "abandon abandon"),
		zap.Binary("private_key", []byte{1, 2, 3}),
		zap.String("seed", "00ff"),
		zap.String("seed_hash", "ab12cd34"),
		zap.Int("identity", 7),
	)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	for _, key := range []string{"wallet_password", "mnemonic", "private_key", "seed"} {
		if got := ctx[key]; got != redactedValue {
			t.Fatalf("expected %s redacted, got %v", key, got)
		}
	}
	if got := ctx["seed_hash"]; got != "ab12cd34" {
		t.Fatalf("seed hash is public, got %v", got)
	}
	if _, ok := ctx["identity"]; ok {
		t.Fatal("identity should be fingerprinted")
	}
	if _, ok := ctx["identity_fp"]; !ok {
		t.Fatal("identity_fp should be present")
	}
}

func TestSanitizingCoreRespectsLevel(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logger := zap.New(WrapCore(core))
	logger.Info("dropped")
	logger.Warn("kept")
	if logs.Len() != 1 {
		t.Fatalf("expected one entry, got %d", logs.Len())
	}
}

func TestNewLoggerWritesSanitizedJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("debug", "json", zapcore.AddSync(&buf))
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Debug("unlock", zap.String("password", "pw"), zap.String("status", "ok"))
	_ = logger.Sync()

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}
	if got, _ := payload["password"].(string); got != redactedValue {
		t.Fatalf("expected redacted password, got %q", got)
	}
	if got, _ := payload["status"].(string); got != "ok" {
		t.Fatalf("expected status ok, got %q", got)
	}

	if _, err := NewLogger("loud", "json", zapcore.AddSync(&buf)); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if _, err := NewLogger("info", "xml", zapcore.AddSync(&buf)); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
