package command

import (
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/story-state/pkg/state"
	"github.com/jwebster45206/story-state/pkg/statepath"
)

func testState() state.GameState {
	return state.GameState{
		"角色": map[string]any{
			"姓名": "林",
			"生命": int64(10),
			"属性": map[string]any{"力量": int64(5), "敏捷": 1.5},
			"装备": map[string]any{"主手": ""},
		},
		"背包": []any{
			map[string]any{"id": "Itm_1", "名称": "Dagger", "数量": int64(1)},
			map[string]any{"id": "Itm_2", "名称": "Potion", "数量": int64(3)},
		},
		"社交": []any{},
		"世界": map[string]any{"天气": "晴"},
	}
}

func TestApply_Set(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		address string
		want    any
	}{
		{"overwrite scalar", Set("gameState.角色.姓名", "王"), "角色.姓名", "王"},
		{"create new field", Set("gameState.世界.时间", "黄昏"), "世界.时间", "黄昏"},
		{"change type", Set("gameState.角色.生命", "dying"), "角色.生命", "dying"},
		{"list element", Set("gameState.背包[1].名称", "Elixir"), "背包[1].名称", "Elixir"},
		{"whole list element", Set("gameState.背包[0]", map[string]any{"id": "Itm_9"}), "背包[0]", map[string]any{"id": "Itm_9"}},
		{"without root prefix", Set("世界.天气", "雨"), "世界.天气", "雨"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := testState()
			before := orig.Clone()

			got, err := Apply(orig, tt.cmd)
			require.NoError(t, err)

			v, ok := got.Lookup(statepath.MustParse(tt.address))
			require.True(t, ok)
			assert.Equal(t, tt.want, v)

			if diff := cmp.Diff(before, orig); diff != "" {
				t.Errorf("input state was mutated (-before +after):\n%s", diff)
			}
		})
	}
}

func TestApply_SetIndexOutOfRange(t *testing.T) {
	_, err := Apply(testState(), Set("gameState.背包[2]", "x"))
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestApply_Add(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		address string
		want    any
	}{
		{"increment int", Add("gameState.角色.生命", 5), "角色.生命", int64(15)},
		{"decrement below zero is not clamped", Add("gameState.背包[0].数量", -3), "背包[0].数量", int64(-2)},
		{"float field", Add("gameState.角色.属性.敏捷", 0.5), "角色.属性.敏捷", 2.0},
		{"float delta on int", Add("gameState.角色.属性.力量", 0.5), "角色.属性.力量", 5.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(testState(), tt.cmd)
			require.NoError(t, err)
			v, _ := got.Lookup(statepath.MustParse(tt.address))
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestApply_AddFailures(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want error
	}{
		{"non-numeric current", Add("gameState.角色.姓名", 1), ErrTypeMismatch},
		{"missing current", Add("gameState.角色.等级", 1), ErrTypeMismatch},
		{"non-numeric payload", Add("gameState.角色.生命", "5"), ErrTypeMismatch},
		{"missing element", Add("gameState.背包[7].数量", 1), ErrMissingParent},
		{"index past end", Add("gameState.背包[2]", 1), ErrIndexOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := testState()
			got, err := Apply(orig, tt.cmd)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, cmp.Diff(testState(), got), "failed command must have no effect")
		})
	}
}

func TestApply_Delta_EquivalentToReplaceFromZero(t *testing.T) {
	base, err := Apply(testState(), Set("gameState.世界.声望", 0))
	require.NoError(t, err)

	viaAdd, err := Apply(base, Add("gameState.世界.声望", 7))
	require.NoError(t, err)
	viaSet, err := Apply(base, Set("gameState.世界.声望", 7))
	require.NoError(t, err)

	a, _ := viaAdd.Get("世界.声望")
	b, _ := viaSet.Get("世界.声望")
	fa, _ := state.ToFloat(a)
	fb, _ := state.ToFloat(b)
	assert.Equal(t, fb, fa)
}

func TestApply_Push(t *testing.T) {
	orig := testState()
	item := map[string]any{"id": "Itm_3", "名称": "Rope", "数量": int64(1)}

	got, err := Apply(orig, Push("gameState.背包", item))
	require.NoError(t, err)

	inv, _ := state.AsList(got["背包"])
	require.Len(t, inv, 3)
	assert.Equal(t, item, inv[2])

	origInv, _ := state.AsList(orig["背包"])
	assert.Len(t, origInv, 2, "push must not grow the input list")

	item["名称"] = "mutated after push"
	pushed, _ := got.Get("背包[2].名称")
	assert.Equal(t, "Rope", pushed, "payload must be copied into the tree")
}

func TestApply_PushFailures(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want error
	}{
		{"onto record", Push("gameState.世界", 1), ErrTypeMismatch},
		{"onto scalar", Push("gameState.角色.姓名", 1), ErrTypeMismatch},
		{"onto missing field", Push("gameState.角色.技能", 1), ErrTypeMismatch},
		{"under missing parent", Push("gameState.队伍.成员", 1), ErrMissingParent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(testState(), tt.cmd)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestApply_Delete(t *testing.T) {
	t.Run("list element shifts later elements", func(t *testing.T) {
		orig := testState()
		got, err := Apply(orig, Delete("gameState.背包[0]"))
		require.NoError(t, err)

		inv, _ := state.AsList(got["背包"])
		require.Len(t, inv, 1)
		id, _ := got.Get("背包[0].id")
		assert.Equal(t, "Itm_2", id)

		origInv, _ := state.AsList(orig["背包"])
		assert.Len(t, origInv, 2)
		origID, _ := orig.Get("背包[0].id")
		assert.Equal(t, "Itm_1", origID)
	})

	t.Run("record field", func(t *testing.T) {
		got, err := Apply(testState(), Delete("gameState.世界.天气"))
		require.NoError(t, err)
		_, err = got.Get("世界.天气")
		assert.Error(t, err)
	})
}

func TestApply_DeleteOutOfRangeLeavesListUnchanged(t *testing.T) {
	for _, idx := range []string{"2", "3", "100"} {
		t.Run(idx, func(t *testing.T) {
			orig := testState()
			got, err := Apply(orig, Delete("gameState.背包["+idx+"]"))
			assert.ErrorIs(t, err, ErrIndexOutOfRange)

			inv, _ := state.AsList(got["背包"])
			assert.Len(t, inv, 2)
			assert.Empty(t, cmp.Diff(testState(), got))
		})
	}
}

func TestApply_DeleteFieldAbsent(t *testing.T) {
	_, err := Apply(testState(), Delete("gameState.世界.不存在"))
	assert.ErrorIs(t, err, ErrFieldAbsent)
}

func TestApply_IntermediateErrors(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want error
	}{
		{"missing record", Set("gameState.队伍.名称", "x"), ErrMissingParent},
		{"missing element", Set("gameState.社交[0].好感度", 1), ErrMissingParent},
		{"null container", Set("gameState.角色.宠物.名称", "x"), ErrMissingParent},
		{"index into record", Set("gameState.世界[0]", 1), ErrTypeMismatch},
		{"field of list", Set("gameState.背包.名称", 1), ErrTypeMismatch},
		{"through scalar", Set("gameState.角色.姓名.拼音", "lin"), ErrTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := testState()
			orig["角色"].(map[string]any)["宠物"] = nil

			_, err := Apply(orig, tt.cmd)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var cerr *Error
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, -1, cerr.Index)
			assert.Equal(t, tt.cmd, cerr.Command)
		})
	}
}

func TestApply_Malformed(t *testing.T) {
	orig := testState()
	got, err := Apply(orig, Set("gameState.背包[x]", 1))
	assert.True(t, IsMalformed(err))
	assert.Empty(t, cmp.Diff(testState(), got))
}

func TestApply_UnknownAction(t *testing.T) {
	_, err := Apply(testState(), Command{Action: "explode", Key: "gameState.世界"})
	assert.Error(t, err)
}

func TestApply_StructuralSharing(t *testing.T) {
	orig := testState()
	got, err := Apply(orig, Add("gameState.背包[1].数量", 1))
	require.NoError(t, err)

	// Untouched branches are shared, touched ones are copies.
	origWorld := orig["世界"].(map[string]any)
	gotWorld := got["世界"].(map[string]any)
	gotWorld["共享检查"] = true
	assert.Contains(t, origWorld, "共享检查")

	origFirst := orig["背包"].([]any)[1].(map[string]any)
	assert.Equal(t, int64(3), origFirst["数量"])
}

func TestApply_CreateBeforeUpdate(t *testing.T) {
	gs, err := Apply(testState(), Push("gameState.背包", map[string]any{"id": "Itm_3", "数量": int64(1)}))
	require.NoError(t, err)

	inv, _ := state.AsList(gs["背包"])
	last := "gameState.背包[" + strconv.Itoa(len(inv)-1) + "]"

	for _, cmd := range []Command{
		Add(last+".数量", 2),
		Set(last+".名称", "Rope"),
		Delete(last + ".数量"),
	} {
		t.Run(cmd.String(), func(t *testing.T) {
			_, err := Apply(gs, cmd)
			assert.NoError(t, err)
		})
	}
}
