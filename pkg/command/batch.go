package command

import (
	"errors"
	"log/slog"

	"github.com/jwebster45206/story-state/pkg/state"
	"github.com/jwebster45206/story-state/pkg/statepath"
)

// BatchResult is the outcome of applying one turn's commands.
type BatchResult struct {
	State    state.GameState `json:"-"`
	Applied  int             `json:"applied"`
	Failures []*Error        `json:"failures,omitempty"`
	Stopped  bool            `json:"stopped,omitempty"` // true if StopOnError cut the batch short
}

// OK reports whether every command was applied.
func (r BatchResult) OK() bool {
	return len(r.Failures) == 0 && !r.Stopped
}

// Applier applies command batches in issue order.
type Applier struct {
	logger      *slog.Logger
	stopOnError bool
}

// NewApplier creates an applier that continues past failed commands.
func NewApplier(logger *slog.Logger) *Applier {
	return &Applier{logger: logger}
}

// WithStopOnError makes the applier abandon the rest of a batch at the
// first execution failure. Returns the Applier for method chaining.
func (a *Applier) WithStopOnError(stop bool) *Applier {
	a.stopOnError = stop
	return a
}

// Apply resolves every address in cmds first; if any is malformed nothing is
// applied and the syntax error is returned. Otherwise the commands are applied
// to root in order. Execution failures are collected in the result; the
// input root is never modified.
func (a *Applier) Apply(root state.GameState, cmds []Command) (BatchResult, error) {
	paths := make([]statepath.Path, len(cmds))
	for i, cmd := range cmds {
		p, err := statepath.Parse(cmd.Key)
		if err != nil {
			if a.logger != nil {
				a.logger.Warn("Rejecting command batch with malformed address",
					"index", i,
					"key", cmd.Key,
					"error", err)
			}
			return BatchResult{State: root}, &Error{Index: i, Command: cmd, Err: err}
		}
		paths[i] = p.TrimRoot(state.RootName)
	}

	result := BatchResult{State: root}
	for i, cmd := range cmds {
		next, err := ApplyPath(result.State, cmd.Action, paths[i], cmd.Value)
		if err != nil {
			cerr := &Error{Index: i, Command: cmd, Err: err}
			result.Failures = append(result.Failures, cerr)
			if a.logger != nil {
				a.logger.Warn("Command failed",
					"index", i,
					"action", cmd.Action,
					"key", cmd.Key,
					"error", err)
			}
			if a.stopOnError {
				result.Stopped = i < len(cmds)-1
				break
			}
			continue
		}
		result.State = next
		result.Applied++
		if a.logger != nil {
			a.logger.Debug("Command applied",
				"index", i,
				"action", cmd.Action,
				"key", cmd.Key)
		}
	}
	return result, nil
}

// ApplyBatch applies cmds with a default continue-on-error applier.
func ApplyBatch(root state.GameState, cmds []Command) (BatchResult, error) {
	return NewApplier(nil).Apply(root, cmds)
}

// FailureKinds returns the sentinel behind each failure, for callers that
// only care about the category.
func (r BatchResult) FailureKinds() []error {
	sentinels := []error{ErrMissingParent, ErrTypeMismatch, ErrIndexOutOfRange, ErrFieldAbsent}
	kinds := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		var kind error
		for _, s := range sentinels {
			if errors.Is(f, s) {
				kind = s
				break
			}
		}
		kinds = append(kinds, kind)
	}
	return kinds
}
