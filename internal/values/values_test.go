package values

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneMap_IsDeep(t *testing.T) {
	src := map[string]any{
		"name":  "Widget",
		"tags":  []any{"a", "b"},
		"attrs": map[string]any{"color": "red"},
		"items": []map[string]any{{"qty": 1}},
	}

	dst := CloneMap(src)
	dst["tags"].([]any)[0] = "z"
	dst["attrs"].(map[string]any)["color"] = "blue"
	dst["items"].([]map[string]any)[0]["qty"] = 9

	assert.Equal(t, "a", src["tags"].([]any)[0])
	assert.Equal(t, "red", src["attrs"].(map[string]any)["color"])
	assert.Equal(t, 1, src["items"].([]map[string]any)[0]["qty"])
}

func TestCloneMap_Nil(t *testing.T) {
	assert.Nil(t, CloneMap(nil))
	assert.Nil(t, CloneMaps(nil))
}

func TestNormalize(t *testing.T) {
	out, err := Normalize(map[string]any{"price": 10, "stock": int64(5), "ok": true})
	require.NoError(t, err)
	assert.Equal(t, float64(10), out["price"])
	assert.Equal(t, float64(5), out["stock"])
	assert.Equal(t, true, out["ok"])

	empty, err := Normalize(nil)
	require.NoError(t, err)
	assert.NotNil(t, empty)

	_, err = Normalize(map[string]any{"bad": make(chan int)})
	assert.Error(t, err)
}

func TestFloat(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{float64(1.5), 1.5, true},
		{3, 3, true},
		{int64(7), 7, true},
		{json.Number("2.25"), 2.25, true},
		{" 4 ", 4, true},
		{"abc", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, tt := range tests {
		got, ok := Float(tt.in)
		assert.Equal(t, tt.ok, ok, "Float(%v)", tt.in)
		assert.Equal(t, tt.want, got, "Float(%v)", tt.in)
	}
}

func TestIntOrAndFloatOr(t *testing.T) {
	assert.Equal(t, 50, IntOr(nil, 50))
	assert.Equal(t, 3, IntOr(3.9, 50))
	assert.Equal(t, 1.5, FloatOr("x", 1.5))
}

func TestString(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "", String(nil))
	assert.Equal(t, "abc", String("abc"))
	assert.Equal(t, "10", String(float64(10)))
	assert.Equal(t, "2026-01-02T03:04:05Z", String(ts))
	assert.Equal(t, "true", String(true))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 10.13, Round2(10.125000001))
	assert.Equal(t, 1.8, Round2(1.8))
}
