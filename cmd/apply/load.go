package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/story-state/pkg/command"
	"github.com/jwebster45206/story-state/pkg/state"
)

func isYAML(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// loadState reads a game state tree from a JSON or YAML file. A top-level
// "gameState" wrapper is unwrapped.
func loadState(filename string) (state.GameState, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file %s: %w", filename, err)
	}

	var gs state.GameState
	if isYAML(filename) {
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse state file %s: %w", filename, err)
		}
		gs = state.GameState(state.NormalizeNumbers(raw).(map[string]any))
	} else if err := json.Unmarshal(data, &gs); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", filename, err)
	}

	if gs == nil {
		return state.New(), nil
	}
	if len(gs) == 1 {
		if inner, ok := state.AsRecord(gs[state.RootName]); ok {
			return state.GameState(inner), nil
		}
	}
	return gs, nil
}

// yamlCommand mirrors command.Command with a free-form action so aliases
// can be resolved after decoding.
type yamlCommand struct {
	Action string `yaml:"action"`
	Key    string `yaml:"key"`
	Value  any    `yaml:"value"`
}

// loadCommands reads a command list from a JSON or YAML file. Both accept a
// single command or a list; action aliases (replace, delta, append, remove)
// are accepted.
func loadCommands(filename string) ([]command.Command, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read command file %s: %w", filename, err)
	}

	if !isYAML(filename) {
		cmds, err := command.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		return cmds, nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to parse command file %s: %w", filename, err)
	}
	if len(node.Content) == 0 {
		return nil, fmt.Errorf("%s: empty command payload", filename)
	}

	var raw []yamlCommand
	root := node.Content[0]
	if root.Kind == yaml.MappingNode {
		var one yamlCommand
		if err := root.Decode(&one); err != nil {
			return nil, fmt.Errorf("failed to decode command in %s: %w", filename, err)
		}
		raw = append(raw, one)
	} else if err := root.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode commands in %s: %w", filename, err)
	}

	cmds := make([]command.Command, 0, len(raw))
	for i, rc := range raw {
		action, err := command.ParseAction(rc.Action)
		if err != nil {
			return nil, fmt.Errorf("%s: command %d: %w", filename, i, err)
		}
		cmds = append(cmds, command.Command{
			Action: action,
			Key:    rc.Key,
			Value:  state.NormalizeNumbers(rc.Value),
		})
	}
	return cmds, nil
}
