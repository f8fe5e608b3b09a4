package xevent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent_CopiesInputs(t *testing.T) {
	msg := []any{"hello", 1}
	kv := map[string]any{"user": "bob"}

	e := NewEvent("app.db", LevelWarn, msg, WithContext(kv))

	msg[0] = "mutated"
	kv["user"] = "alice"

	assert.Equal(t, []any{"hello", 1}, e.Message())
	v, ok := e.Value("user")
	require.True(t, ok)
	assert.Equal(t, "bob", v)
}

func TestEvent_AccessorsReturnCopies(t *testing.T) {
	e := NewEvent("app", LevelInfo, []any{"a"}, WithContext(map[string]any{"k": "v"}))

	m := e.Message()
	m[0] = "b"
	c := e.Context()
	c["k"] = "x"

	assert.Equal(t, []any{"a"}, e.Message())
	assert.Equal(t, map[string]any{"k": "v"}, e.Context())
}

func TestEvent_CallSiteAndTime(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	e := NewEvent("app", LevelError, nil,
		WithTime(ts),
		WithCallSite(CallSite{File: "main.go", Line: 42, Function: "main.run"}),
	)

	assert.Equal(t, ts, e.Time())
	cs, ok := e.CallSite()
	require.True(t, ok)
	assert.Equal(t, 42, cs.Line)

	_, ok = NewEvent("app", LevelInfo, nil).CallSite()
	assert.False(t, ok)
}

func TestEvent_RangeContextSorted(t *testing.T) {
	e := NewEvent("app", LevelInfo, nil, WithContext(map[string]any{"b": 2, "a": 1, "c": 3}))

	var keys []string
	e.RangeContext(func(k string, _ any) bool {
		keys = append(keys, k)
		return true
	})
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"trace", LevelTrace},
		{"DEBUG", LevelDebug},
		{" info ", LevelInfo},
		{"warning", LevelWarn},
		{"Error", LevelError},
		{"fatal", LevelFatal},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLevel_Ordering(t *testing.T) {
	assert.True(t, LevelError.AtLeast(LevelWarn))
	assert.False(t, LevelDebug.AtLeast(LevelInfo))
	assert.Less(t, LevelTrace.Rank(), LevelFatal.Rank())
	assert.Equal(t, "INFO+2", Level(2).String())
}

func TestLevel_TextRoundTrip(t *testing.T) {
	var l Level
	require.NoError(t, l.UnmarshalText([]byte("warn")))
	b, err := l.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "WARN", string(b))
}
