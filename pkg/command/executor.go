// Package command applies narrator commands (set, add, push, delete) to a
// game state tree.
//
// Application is functional: only the records and lists on the addressed
// path are copied, everything else is shared with the input, and the input
// tree is never written to. A command that fails leaves no trace.
//
// Intermediate containers are never created on demand. A command that
// reaches inside an element that does not exist yet fails with
// ErrMissingParent; the element has to be pushed by an earlier command.
package command

import (
	"fmt"
	"slices"

	"github.com/jwebster45206/story-state/pkg/state"
	"github.com/jwebster45206/story-state/pkg/statepath"
)

// Apply parses cmd's address and applies it to root, returning the new root.
// Errors are *Error values wrapping ErrMalformedAddress or one of the
// execution sentinels.
func Apply(root state.GameState, cmd Command) (state.GameState, error) {
	p, err := statepath.Parse(cmd.Key)
	if err != nil {
		return root, &Error{Index: -1, Command: cmd, Err: err}
	}
	next, err := ApplyPath(root, cmd.Action, p.TrimRoot(state.RootName), cmd.Value)
	if err != nil {
		return root, &Error{Index: -1, Command: cmd, Err: err}
	}
	return next, nil
}

// ApplyPath applies one action at an already resolved path.
func ApplyPath(root state.GameState, action Action, p statepath.Path, value any) (state.GameState, error) {
	if len(p) == 0 {
		return root, fmt.Errorf("%w: empty path", statepath.ErrMalformedAddress)
	}
	if root == nil {
		return root, fmt.Errorf("%w: nil game state", ErrMissingParent)
	}
	leaf, err := leafOp(action, value)
	if err != nil {
		return root, err
	}
	out, err := update(map[string]any(root), p, 0, leaf)
	if err != nil {
		return root, err
	}
	rec, _ := state.AsRecord(out)
	return state.GameState(rec), nil
}

// leafFunc receives the container holding the final step and returns a
// modified copy of it.
type leafFunc func(container any, p statepath.Path, depth int) (any, error)

// update walks p from node, copying each container it passes through, and
// hands the final container to leaf.
func update(node any, p statepath.Path, depth int, leaf leafFunc) (any, error) {
	step := p[depth]
	if err := checkKind(node, step, p, depth); err != nil {
		return nil, err
	}
	if depth == len(p)-1 {
		return leaf(node, p, depth)
	}

	child, exists := childAt(node, step)
	if !exists || child == nil {
		return nil, stepError(ErrMissingParent, p, depth, "")
	}
	newChild, err := update(child, p, depth+1, leaf)
	if err != nil {
		return nil, err
	}
	return withChild(node, step, newChild), nil
}

// checkKind verifies that node is the container kind step addresses into.
func checkKind(node any, step statepath.Step, p statepath.Path, depth int) error {
	if step.IsIndex() {
		if _, ok := state.AsList(node); !ok {
			return stepError(ErrTypeMismatch, p, depth, fmt.Sprintf("index into %s", kindOf(node)))
		}
		return nil
	}
	if _, ok := state.AsRecord(node); !ok {
		return stepError(ErrTypeMismatch, p, depth, fmt.Sprintf("field of %s", kindOf(node)))
	}
	return nil
}

func childAt(node any, step statepath.Step) (any, bool) {
	if step.IsIndex() {
		list, _ := state.AsList(node)
		if step.Index >= len(list) {
			return nil, false
		}
		return list[step.Index], true
	}
	rec, _ := state.AsRecord(node)
	v, ok := rec[step.Field]
	return v, ok
}

// withChild returns a copy of node with step set to child.
func withChild(node any, step statepath.Step, child any) any {
	out := state.CloneNode(node)
	if step.IsIndex() {
		list := out.([]any)
		list[step.Index] = child
		return list
	}
	rec, _ := state.AsRecord(out)
	rec[step.Field] = child
	return rec
}

func leafOp(action Action, value any) (leafFunc, error) {
	switch action {
	case ActionSet:
		return setLeaf(value), nil
	case ActionAdd:
		if !state.IsNumber(value) {
			return nil, fmt.Errorf("%w: add payload %v is not numeric", ErrTypeMismatch, value)
		}
		return addLeaf(value), nil
	case ActionPush:
		return pushLeaf(value), nil
	case ActionDelete:
		return deleteLeaf, nil
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}
}

func setLeaf(value any) leafFunc {
	return func(container any, p statepath.Path, depth int) (any, error) {
		step := p[depth]
		if step.IsIndex() {
			if _, exists := childAt(container, step); !exists {
				return nil, stepError(ErrIndexOutOfRange, p, depth, "")
			}
		}
		return withChild(container, step, state.DeepClone(value)), nil
	}
}

func addLeaf(delta any) leafFunc {
	return func(container any, p statepath.Path, depth int) (any, error) {
		step := p[depth]
		current, exists := childAt(container, step)
		if !exists {
			if step.IsIndex() {
				return nil, stepError(ErrIndexOutOfRange, p, depth, "")
			}
			return nil, stepError(ErrTypeMismatch, p, depth, "no current value to add to")
		}
		sum, ok := state.AddNumbers(current, delta)
		if !ok {
			return nil, stepError(ErrTypeMismatch, p, depth, fmt.Sprintf("current value %v is not numeric", current))
		}
		return withChild(container, step, sum), nil
	}
}

func pushLeaf(value any) leafFunc {
	return func(container any, p statepath.Path, depth int) (any, error) {
		step := p[depth]
		current, _ := childAt(container, step)
		list, ok := state.AsList(current)
		if !ok {
			return nil, stepError(ErrTypeMismatch, p, depth, fmt.Sprintf("push onto %s", kindOf(current)))
		}
		grown := append(slices.Clip(list), state.DeepClone(value))
		return withChild(container, step, grown), nil
	}
}

func deleteLeaf(container any, p statepath.Path, depth int) (any, error) {
	step := p[depth]
	if step.IsIndex() {
		list, _ := state.AsList(container)
		if step.Index >= len(list) {
			return nil, stepError(ErrIndexOutOfRange, p, depth, fmt.Sprintf("length %d", len(list)))
		}
		return slices.Delete(slices.Clone(list), step.Index, step.Index+1), nil
	}
	rec, _ := state.AsRecord(container)
	if _, ok := rec[step.Field]; !ok {
		return nil, stepError(ErrFieldAbsent, p, depth, "")
	}
	out, _ := state.AsRecord(state.CloneNode(rec))
	delete(out, step.Field)
	return out, nil
}

func kindOf(v any) string {
	if v == nil {
		return "missing value"
	}
	if _, ok := state.AsRecord(v); ok {
		return "record"
	}
	if _, ok := state.AsList(v); ok {
		return "list"
	}
	return fmt.Sprintf("%T", v)
}
