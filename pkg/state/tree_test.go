package state

import (
	"math"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/story-state/pkg/statepath"
)

func sampleState() GameState {
	return GameState{
		"角色": map[string]any{
			"姓名": "林",
			"装备": map[string]any{"主手": nil},
		},
		"背包": []any{
			map[string]any{"id": "Itm_1", "名称": "Dagger", "数量": int64(1)},
			map[string]any{"id": "Itm_2", "名称": "Potion", "数量": int64(3)},
		},
	}
}

func TestGameState_UnmarshalJSON_KeepsIntegers(t *testing.T) {
	data := []byte(`{"背包":[{"id":"Itm_1","数量":2,"重量":1.5}],"世界":{"天数":3}}`)

	var gs GameState
	require.NoError(t, gs.UnmarshalJSON(data))

	qty, err := gs.Get("gameState.背包[0].数量")
	require.NoError(t, err)
	assert.Equal(t, int64(2), qty)

	weight, err := gs.Get("背包[0].重量")
	require.NoError(t, err)
	assert.Equal(t, 1.5, weight)

	day, err := gs.Get("世界.天数")
	require.NoError(t, err)
	assert.Equal(t, int64(3), day)
}

func TestGameState_UnmarshalJSON_Invalid(t *testing.T) {
	var gs GameState
	assert.Error(t, gs.UnmarshalJSON([]byte(`[1,2]`)))
}

func TestGameState_Clone(t *testing.T) {
	gs := sampleState()
	clone := gs.Clone()

	if diff := cmp.Diff(gs, clone); diff != "" {
		t.Fatalf("clone differs (-orig +clone):\n%s", diff)
	}

	clone["背包"].([]any)[0].(map[string]any)["数量"] = int64(99)
	clone["角色"].(map[string]any)["姓名"] = "changed"

	qty, _ := gs.Get("背包[0].数量")
	assert.Equal(t, int64(1), qty, "deep clone must not share nested records")
	name, _ := gs.Get("角色.姓名")
	assert.Equal(t, "林", name)
}

func TestGameState_Lookup(t *testing.T) {
	gs := sampleState()

	tests := []struct {
		name    string
		address string
		want    any
		found   bool
	}{
		{"record field", "角色.姓名", "林", true},
		{"list element field", "背包[1].名称", "Potion", true},
		{"nil leaf is found", "角色.装备.主手", nil, true},
		{"missing field", "角色.等级", nil, false},
		{"index past end", "背包[5]", nil, false},
		{"index on record", "角色[0]", nil, false},
		{"field on list", "背包.名称", nil, false},
		{"through scalar", "角色.姓名.x", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := gs.Lookup(statepath.MustParse(tt.address))
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGameState_GetMalformed(t *testing.T) {
	_, err := sampleState().Get("背包[")
	assert.ErrorIs(t, err, statepath.ErrMalformedAddress)
}

func TestAddNumbers(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want any
		ok   bool
	}{
		{"ints stay ints", int64(3), 2, int64(5), true},
		{"negative delta", int64(1), int64(-1), int64(0), true},
		{"float widens", int64(1), 0.5, 1.5, true},
		{"float plus float", 1.25, 1.25, 2.5, true},
		{"string is not numeric", "3", 1, nil, false},
		{"nil is not numeric", nil, 1, nil, false},
		{"bool payload", int64(1), true, nil, false},
		{"max int stays int", int64(math.MaxInt64 - 1), int64(1), int64(math.MaxInt64), true},
		{"overflow widens", int64(math.MaxInt64), int64(1), math.Ldexp(1, 63), true},
		{"underflow widens", int64(math.MinInt64), int64(-1), -math.Ldexp(1, 63), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AddNumbers(tt.a, tt.b)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_HasSubsystems(t *testing.T) {
	gs := New()
	for _, key := range []string{KeyCharacter, KeyInventory, KeySocial, KeyWorld, KeyQuests} {
		assert.Contains(t, gs, key)
	}
	_, isList := AsList(gs[KeyInventory])
	assert.True(t, isList)
}

func TestNormalizeNumbers(t *testing.T) {
	in := map[string]any{
		"a": json.Number("3"),
		"b": json.Number("2.5"),
		"c": []any{7, "x"},
	}
	out := NormalizeNumbers(in).(map[string]any)
	assert.Equal(t, int64(3), out["a"])
	assert.Equal(t, 2.5, out["b"])
	assert.Equal(t, []any{int64(7), "x"}, out["c"])
}
