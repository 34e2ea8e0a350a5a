package command

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/jwebster45206/story-state/pkg/state"
)

// Action names one of the four mutation kinds.
type Action string

const (
	ActionSet    Action = "set"    // replace the addressed value
	ActionAdd    Action = "add"    // numeric delta
	ActionPush   Action = "push"   // append to a list
	ActionDelete Action = "delete" // remove a list element or record field
)

var actionAliases = map[string]Action{
	"set":     ActionSet,
	"replace": ActionSet,
	"add":     ActionAdd,
	"delta":   ActionAdd,
	"push":    ActionPush,
	"append":  ActionPush,
	"delete":  ActionDelete,
	"remove":  ActionDelete,
}

// ParseAction maps an action name or alias to its Action.
func ParseAction(s string) (Action, error) {
	a, ok := actionAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return a, nil
}

// Command is one state mutation as emitted by the narrator: an action, the
// address it targets, and its payload.
type Command struct {
	Action Action `json:"action" yaml:"action"`
	Key    string `json:"key" yaml:"key"`
	Value  any    `json:"value,omitempty" yaml:"value,omitempty"`
}

// Set builds a replace command.
func Set(key string, value any) Command { return Command{Action: ActionSet, Key: key, Value: value} }

// Add builds a numeric delta command.
func Add(key string, delta any) Command { return Command{Action: ActionAdd, Key: key, Value: delta} }

// Push builds an append command.
func Push(key string, value any) Command { return Command{Action: ActionPush, Key: key, Value: value} }

// Delete builds a removal command.
func Delete(key string) Command { return Command{Action: ActionDelete, Key: key} }

func (c Command) String() string {
	if c.Action == ActionDelete {
		return fmt.Sprintf("%s %s", c.Action, c.Key)
	}
	return fmt.Sprintf("%s %s %v", c.Action, c.Key, c.Value)
}

// UnmarshalJSON accepts action aliases and keeps integral payloads as int64.
func (c *Command) UnmarshalJSON(data []byte) error {
	var aux struct {
		Action string          `json:"action"`
		Key    string          `json:"key"`
		Value  json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	action, err := ParseAction(aux.Action)
	if err != nil {
		return err
	}
	c.Action = action
	c.Key = aux.Key
	c.Value = nil
	if len(aux.Value) > 0 {
		dec := json.NewDecoder(bytes.NewReader(aux.Value))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("failed to decode value for %s: %w", aux.Key, err)
		}
		c.Value = state.NormalizeNumbers(v)
	}
	return nil
}

// Decode parses either a single command object or an array of commands.
func Decode(data []byte) ([]Command, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty command payload")
	}
	if trimmed[0] == '{' {
		var c Command
		if err := json.Unmarshal(trimmed, &c); err != nil {
			return nil, fmt.Errorf("failed to decode command: %w", err)
		}
		return []Command{c}, nil
	}
	var cmds []Command
	if err := json.Unmarshal(trimmed, &cmds); err != nil {
		return nil, fmt.Errorf("failed to decode commands: %w", err)
	}
	return cmds, nil
}
