package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/story-state/pkg/command"
	"github.com/jwebster45206/story-state/pkg/state"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

const stateYAML = `
gameState:
  角色:
    装备:
      主手: null
  背包:
    - id: Itm_1
      名称: Dagger
      数量: 2
  社交: []
`

func TestLoadState_YAMLUnwrapsRoot(t *testing.T) {
	gs, err := loadState(writeFile(t, "state.yaml", stateYAML))
	require.NoError(t, err)

	qty, err := gs.Get("背包[0].数量")
	require.NoError(t, err)
	assert.Equal(t, int64(2), qty)
}

func TestLoadState_JSON(t *testing.T) {
	gs, err := loadState(writeFile(t, "state.json", `{"背包":[{"id":"Itm_1","数量":3}]}`))
	require.NoError(t, err)

	qty, err := gs.Get("背包[0].数量")
	require.NoError(t, err)
	assert.Equal(t, int64(3), qty)
}

func TestLoadState_Errors(t *testing.T) {
	_, err := loadState(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = loadState(writeFile(t, "bad.json", `{nope`))
	assert.Error(t, err)
}

func TestLoadCommands(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    []command.Command
	}{
		{
			name: "yaml list with aliases",
			file: "cmds.yaml",
			content: `
- action: append
  key: gameState.社交
  value: {id: Char_1, 好感度: 0}
- action: delta
  key: gameState.社交[0].好感度
  value: 5
`,
			want: []command.Command{
				command.Push("gameState.社交", map[string]any{"id": "Char_1", "好感度": int64(0)}),
				command.Add("gameState.社交[0].好感度", int64(5)),
			},
		},
		{
			name:    "yaml single",
			file:    "cmd.yml",
			content: "action: remove\nkey: gameState.背包[0]\n",
			want:    []command.Command{command.Delete("gameState.背包[0]")},
		},
		{
			name:    "json single",
			file:    "cmd.json",
			content: `{"action":"replace","key":"gameState.角色.装备.主手","value":"Dagger"}`,
			want:    []command.Command{command.Set("gameState.角色.装备.主手", "Dagger")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loadCommands(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadCommands_UnknownAction(t *testing.T) {
	_, err := loadCommands(writeFile(t, "cmds.yaml", "- action: explode\n  key: gameState.背包\n"))
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	stateFile := writeFile(t, "state.yaml", stateYAML)
	cmdFile := writeFile(t, "cmds.json", `[
		{"action":"set","key":"gameState.角色.装备.主手","value":"Dagger"},
		{"action":"add","key":"gameState.背包[0].数量","value":-1},
		{"action":"add","key":"gameState.社交[0].好感度","value":5}
	]`)

	var out bytes.Buffer
	code, err := run(stateFile, cmdFile, false, testLogger(), &out)
	require.NoError(t, err)
	assert.Equal(t, 1, code, "one command fails")

	var o struct {
		GameState state.GameState `json:"gameState"`
		Applied   int             `json:"applied"`
		Failures  []string        `json:"failures"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &o))
	assert.Equal(t, 2, o.Applied)
	require.Len(t, o.Failures, 1)
	assert.Contains(t, o.Failures[0], "missing parent")

	qty, _ := o.GameState.Get("背包[0].数量")
	assert.Equal(t, int64(1), qty)
}

func TestRun_MalformedAddress(t *testing.T) {
	stateFile := writeFile(t, "state.yaml", stateYAML)
	cmdFile := writeFile(t, "cmds.json", `[{"action":"set","key":"gameState.背包[","value":1}]`)

	var out bytes.Buffer
	code, err := run(stateFile, cmdFile, false, testLogger(), &out)
	assert.Error(t, err)
	assert.Equal(t, 2, code)
	assert.Zero(t, out.Len())
}
