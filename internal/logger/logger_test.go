package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in   string
		want slog.Level
	}{
		{"", LevelInfo},
		{"trace", LevelTrace},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarning},
		{"WARNING", LevelWarning},
		{"error", LevelError},
		{"fatal", LevelFatal},
	}

	for _, tc := range testCases {
		got, err := ParseLevel(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	got, err := ParseLevel("verbose")
	assert.Error(t, err)
	assert.Equal(t, LevelInfo, got)
}

func TestSetupJSONWritesStructuredLines(t *testing.T) {
	require.NoError(t, Setup(context.Background(), Config{Level: "DEBUG", ErrorSampleRate: 1}))
	t.Cleanup(func() { SetLevel(LevelInfo) })

	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(&bytes.Buffer{}) })

	Debug("rule created", "rule_id", "abc")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "rule created", line["msg"])
	assert.Equal(t, "abc", line["rule_id"])
	assert.Equal(t, "DEBUG", line["level"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetLevel(LevelInfo)
		SetOutput(&bytes.Buffer{})
	})

	SetLevel(LevelWarning)
	assert.Equal(t, LevelWarning, GetLevel())

	Info("dropped")
	assert.Zero(t, buf.Len())

	Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestCountersIgnoreSampling(t *testing.T) {
	SetOutput(&bytes.Buffer{})
	errorSampleRate.Store(1000)
	t.Cleanup(func() { errorSampleRate.Store(1) })

	errorsBefore := TotalErrors.Load()
	warningsBefore := TotalWarnings.Load()

	for i := 0; i < 10; i++ {
		Error("boom")
		Warn("careful")
	}

	assert.Equal(t, errorsBefore+10, TotalErrors.Load())
	assert.Equal(t, warningsBefore+10, TotalWarnings.Load())
}

func TestHTTPCounters(t *testing.T) {
	before4xx := Total4xxErrors.Load()
	before401 := Total401Errors.Load()
	before404 := Total404Errors.Load()
	before5xx := Total5xxErrors.Load()

	WarnHttp4xx(401)
	WarnHttp4xx(404)
	WarnHttp4xx(409)
	ErrorHttp5xx()

	assert.Equal(t, before4xx+3, Total4xxErrors.Load())
	assert.Equal(t, before401+1, Total401Errors.Load())
	assert.Equal(t, before404+1, Total404Errors.Load())
	assert.Equal(t, before5xx+1, Total5xxErrors.Load())
}
