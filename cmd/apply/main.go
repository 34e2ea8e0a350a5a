package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/goccy/go-json"

	"github.com/jwebster45206/story-state/pkg/command"
	"github.com/jwebster45206/story-state/pkg/state"
)

func main() {
	stopOnError := flag.Bool("stop-on-error", false, "abandon the batch at the first failing command")
	verbose := flag.Bool("v", false, "log each applied command")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <state.json|yaml> <commands.json|yaml>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	code, err := run(flag.Arg(0), flag.Arg(1), *stopOnError, logger, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "apply: %v\n", err)
	}
	os.Exit(code)
}

// Output is what the tool prints: the resulting state and every command
// that could not be applied.
type Output struct {
	State    state.GameState `json:"gameState"`
	Applied  int             `json:"applied"`
	Failures []string        `json:"failures,omitempty"`
	Stopped  bool            `json:"stopped,omitempty"`
}

// run returns exit code 0 when every command applied, 1 when some failed and
// 2 when the input could not be used at all.
func run(stateFile, commandFile string, stopOnError bool, logger *slog.Logger, out io.Writer) (int, error) {
	gs, err := loadState(stateFile)
	if err != nil {
		return 2, err
	}
	cmds, err := loadCommands(commandFile)
	if err != nil {
		return 2, err
	}

	result, err := command.NewApplier(logger).WithStopOnError(stopOnError).Apply(gs, cmds)
	if err != nil {
		return 2, err
	}

	o := Output{State: result.State, Applied: result.Applied, Stopped: result.Stopped}
	for _, f := range result.Failures {
		o.Failures = append(o.Failures, f.Error())
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(o); err != nil {
		return 2, fmt.Errorf("failed to write result: %w", err)
	}

	if !result.OK() {
		return 1, nil
	}
	return 0, nil
}
