package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewEmitsRenamedKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "marketd", "test")
	logger.Info("purchase settled", slog.Uint64("saleId", 7))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "purchase settled", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "marketd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Contains(t, line, "timestamp")
	require.EqualValues(t, 7, line["saleId"])
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel(" error "))
	require.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestMaskField(t *testing.T) {
	require.Equal(t, "Bearer "+RedactedValue, MaskField("authorization", "Bearer abc.def").Value.String())
	require.Equal(t, RedactedValue, MaskField("token", "abc").Value.String())
	require.Equal(t, "market_purchase", MaskField("method", "market_purchase").Value.String())
	require.Equal(t, "", MaskField("token", "").Value.String())
	require.True(t, IsAllowlisted(" Caller "))
}
