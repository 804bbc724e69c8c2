package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func redactedOutput(t *testing.T, logFn func(l *slog.Logger)) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	logger := NewRedactingLogger(slog.NewJSONHandler(&buf, nil))
	logFn(logger)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("failed to parse log output %q: %v", buf.String(), err)
	}
	return record
}

func TestRedactsSensitiveKeys(t *testing.T) {
	record := redactedOutput(t, func(l *slog.Logger) {
		l.Info("config loaded",
			"private_key", "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318",
			"jwt_secret", "hunter2",
			"db_password", "pg-pass",
		)
	})

	for _, key := range []string{"private_key", "jwt_secret", "db_password"} {
		if record[key] != "[REDACTED]" {
			t.Errorf("expected %s to be redacted, got %v", key, record[key])
		}
	}
}

func TestMasksKeyLengthHexInValues(t *testing.T) {
	record := redactedOutput(t, func(l *slog.Logger) {
		l.Error("dial failed",
			"error", "bad key 0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318 rejected")
	})

	errVal, _ := record["error"].(string)
	if strings.Contains(errVal, "5dbb6204") {
		t.Errorf("expected private key material masked, got %q", errVal)
	}
	if !strings.Contains(errVal, "...") {
		t.Errorf("expected masked marker in %q", errVal)
	}
}

func TestTxHashNotRedacted(t *testing.T) {
	hash := "0x7f9fade1c0d57a7af66ab4ead79fade1c0d57a7af66ab4ead7c2c2eb7b11a91f"
	record := redactedOutput(t, func(l *slog.Logger) {
		l.Info("transaction confirmed", TxHash(hash))
	})

	if record["tx_hash"] != hash {
		t.Errorf("expected tx_hash untouched, got %v", record["tx_hash"])
	}
}

func TestEnableRedactionIdempotent(t *testing.T) {
	original := Logger()
	defer SetLogger(original)

	var buf bytes.Buffer
	SetOutput(&buf)
	EnableRedaction()
	EnableRedaction()

	Info("wallet linked", "private_key", "raw")
	if !strings.Contains(buf.String(), "[REDACTED]") {
		t.Errorf("expected redaction applied, got %s", buf.String())
	}
}
