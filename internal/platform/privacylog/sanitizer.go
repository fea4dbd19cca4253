package privacylog

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const redactedValue = "[REDACTED]"

var (
	bootNonce         = randomNonce()
	fingerprintedKeys = map[string]struct{}{
		"identity":    {},
		"identity_id": {},
		"owner_id":    {},
		"voter_id":    {},
		"operator_id": {},
	}
	sensitiveKeyParts = []string{"secret", "password", "passphrase", "mnemonic", "private", "token", "authorization"}
)

// sanitizingCore redacts sensitive fields and fingerprints identity ids
// before they reach the wrapped core.
type sanitizingCore struct {
	next zapcore.Core
}

func WrapCore(next zapcore.Core) zapcore.Core {
	if next == nil {
		return nil
	}
	return &sanitizingCore{next: next}
}

func (c *sanitizingCore) Enabled(level zapcore.Level) bool {
	return c.next.Enabled(level)
}

func (c *sanitizingCore) With(fields []zapcore.Field) zapcore.Core {
	return &sanitizingCore{next: c.next.With(sanitizeFields(fields))}
}

func (c *sanitizingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *sanitizingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	return c.next.Write(ent, sanitizeFields(fields))
}

func (c *sanitizingCore) Sync() error {
	return c.next.Sync()
}

func SanitizeField(f zapcore.Field) zapcore.Field {
	key := strings.TrimSpace(f.Key)
	lowerKey := strings.ToLower(key)
	if isSensitiveKey(lowerKey) {
		return zap.String(key, redactedValue)
	}
	if shouldFingerprintKey(lowerKey) {
		return zap.String(fingerprintKeyName(key), FingerprintID(fieldToString(f)))
	}
	return f
}

func FingerprintID(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(trimmed + "|" + bootNonce))
	return "fp_" + hex.EncodeToString(sum[:8])
}

func sanitizeFields(fields []zapcore.Field) []zapcore.Field {
	if len(fields) == 0 {
		return fields
	}
	out := make([]zapcore.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, SanitizeField(f))
	}
	return out
}

func shouldFingerprintKey(key string) bool {
	_, ok := fingerprintedKeys[key]
	return ok
}

func fingerprintKeyName(key string) string {
	if strings.HasSuffix(strings.ToLower(strings.TrimSpace(key)), "_fp") {
		return key
	}
	return key + "_fp"
}

func isSensitiveKey(key string) bool {
	if key == "seed" || strings.HasSuffix(key, "_seed") {
		return true
	}
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

func fieldToString(f zapcore.Field) string {
	switch f.Type {
	case zapcore.StringType:
		return f.String
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type:
		return strconv.FormatInt(f.Integer, 10)
	case zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		return strconv.FormatUint(uint64(f.Integer), 10)
	case zapcore.StringerType:
		if s, ok := f.Interface.(fmt.Stringer); ok {
			return s.String()
		}
	case zapcore.BinaryType, zapcore.ByteStringType:
		if b, ok := f.Interface.([]byte); ok {
			return hex.EncodeToString(b)
		}
	}
	return fmt.Sprint(f.Interface)
}

func randomNonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "fallback_nonce"
	}
	return hex.EncodeToString(buf)
}
