package xlayout

import (
	"errors"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xlogkit/pkg/logging/xevent"
)

var fixedTime = time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)

func event(msg []any, opts ...xevent.Option) xevent.Event {
	opts = append([]xevent.Option{xevent.WithTime(fixedTime)}, opts...)
	return xevent.NewEvent("app.db", xevent.LevelInfo, msg, opts...)
}

func TestBasic(t *testing.T) {
	e := event([]any{"connected", 3}, xevent.WithContext(map[string]any{"host": "db1", "a": 1}))
	assert.Equal(t, "[2024-03-09T10:00:00.000] [INFO] app.db - connected 3 a=1 host=db1", Basic(e))
}

func TestMessagePass(t *testing.T) {
	assert.Equal(t, "hello world", MessagePass(event([]any{"hello", "world"})))
	assert.Empty(t, MessagePass(event(nil)))
}

func TestFormatMessage(t *testing.T) {
	tests := []struct {
		name string
		msg  []any
		want string
	}{
		{"格式化", []any{"user %s id %d", "bob", 7}, "user bob id 7"},
		{"多余参数追加", []any{"n=%d", 1, "extra"}, "n=1 extra"},
		{"参数不足", []any{"%s and %s", "a"}, "a and %!s(MISSING)"},
		{"百分号转义", []any{"100%% %s", "done"}, "100% done"},
		{"无格式", []any{"a", 1, true}, "a 1 true"},
		{"错误值", []any{errors.New("boom")}, "boom"},
		{"nil", []any{nil}, "<nil>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatMessage(event(tt.msg)))
		})
	}
}

func TestJSON(t *testing.T) {
	e := event([]any{"hi"},
		xevent.WithContext(map[string]any{"k": "v", "ch": make(chan int)}),
		xevent.WithCallSite(xevent.CallSite{File: "main.go", Line: 12, Function: "main.run"}))

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(JSON(e)), &got))
	assert.Equal(t, "INFO", got["level"])
	assert.Equal(t, "app.db", got["category"])
	assert.Equal(t, "hi", got["msg"])
	assert.Equal(t, "main.go", got["file"])
	assert.EqualValues(t, 12, got["line"])

	ctx, ok := got["context"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "v", ctx["k"])
	assert.IsType(t, "", ctx["ch"], "unencodable values fall back to strings")
}

func TestRender(t *testing.T) {
	line, err := Render(nil, event([]any{"x"}))
	require.NoError(t, err)
	assert.Contains(t, line, " - x")

	boom := errors.New("boom")
	_, err = Render(func(xevent.Event) string { panic(boom) }, event([]any{"x"}))
	var fe *FormattingError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "app.db", fe.Category)
	assert.ErrorIs(t, err, boom)

	_, err = Render(func(xevent.Event) string { panic("str") }, event(nil))
	require.ErrorAs(t, err, &fe)
	assert.NoError(t, fe.Unwrap())
}

func TestByName(t *testing.T) {
	for _, name := range []string{"", "basic", "json", "JSON", "messagePassThrough"} {
		l, err := ByName(name)
		require.NoError(t, err, name)
		assert.NotNil(t, l)
	}
	_, err := ByName("pattern")
	assert.ErrorIs(t, err, ErrUnknownLayout)
}
