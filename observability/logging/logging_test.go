package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupWritesCanonicalKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithOptions(Options{Service: "lendd", Env: "test", Level: "debug", Output: &buf})
	logger.Debug("transition committed", slog.String("operation", "borrow"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "DEBUG", line["severity"])
	require.Equal(t, "transition committed", line["message"])
	require.Equal(t, "lendd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, "borrow", line["operation"])
	require.Contains(t, line, "timestamp")
}

func TestSetupRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithOptions(Options{Service: "lendd", Output: &buf})
	logger.Debug("hidden")
	require.Zero(t, buf.Len())
}

func TestSetupWritesRotatedFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "lendd.log")
	logger := SetupWithOptions(Options{Service: "lendd", Output: &buf, File: path, MaxSizeMB: 1})
	logger.Info("hello")
	require.FileExists(t, path)
}

func TestMaskField(t *testing.T) {
	cases := []struct {
		key, value, want string
	}{
		{"authorization", "Bearer abc.def.ghi", "Bearer " + RedactedValue},
		{"Signature", "0xdeadbeef", RedactedValue},
		{"passphrase", "two words", RedactedValue},
		{"operation", "borrow", "borrow"},
		{"client", "203.0.113.9", "20....9"},
		{"client", "short", RedactedValue},
		{"signature", "", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, MaskField(tc.key, tc.value).Value.String(), "%s=%q", tc.key, tc.value)
	}
}

func TestSetupRedactsCredentialAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithOptions(Options{Service: "lendd", Output: &buf})
	logger.Info("keystore unlocked", slog.String("passphrase", "hunter2"), slog.String("operation", "sign-borrow"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, RedactedValue, line["passphrase"])
	require.Equal(t, "sign-borrow", line["operation"])
}
