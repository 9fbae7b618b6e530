package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestContextFieldsAreCarried(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{ServiceName: "binwise-test", Output: &buf, Level: zerolog.DebugLevel})

	ctx := log.WithRequestID(context.Background(), "req-1")
	ctx = log.WithUserID(ctx, "u-1")
	log.Error(ctx, "pickup.complete.failed", errors.New("boom"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "binwise-test", line["service"])
	require.Equal(t, "req-1", line["request_id"])
	require.Equal(t, "u-1", line["user_id"])
	require.Equal(t, "boom", line["error"])
	require.Equal(t, "error", line["level"])
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: zerolog.WarnLevel})
	log.Info(context.Background(), "ignored")
	require.Zero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
	require.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	require.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense"))
}
