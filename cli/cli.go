package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/kbukum/pixelflow/errors"
)

// Exit codes.
const (
	ExitSuccess   = 0
	ExitInvalid   = 1
	ExitUsage     = 2
	ExitFailed    = 3
	ExitCancelled = 130
)

// Main runs the pixelflow command line. args exclude the program name.
func Main(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printHelp(stderr)
		return ExitUsage
	}

	env := &env{stdout: stdout, stderr: stderr}
	switch args[0] {
	case "help", "-h", "--help":
		printHelp(stdout)
		return ExitSuccess
	case "run":
		return env.run(ctx, args[1:])
	case "validate":
		return env.validate(ctx, args[1:])
	case "nodes":
		return env.nodes(args[1:])
	case "serve":
		return env.serve(ctx, args[1:])
	case "token":
		return env.token(args[1:])
	case "version":
		return env.version(args[1:])
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		printHelp(stderr)
		return ExitUsage
	}
}

func printHelp(w io.Writer) {
	fmt.Fprint(w, `Usage: pixelflow <command> [flags]

Commands:
  run <project>       execute a project file
  validate <project>  check a project file without running it
  nodes               list the available node kinds
  serve               start the HTTP API
  token               issue an API bearer token
  version             print build information

Run "pixelflow <command> --help" for the flags of a command.
`)
}

// env carries the output streams of one invocation.
type env struct {
	stdout io.Writer
	stderr io.Writer
}

func (e *env) flagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	fs.SortFlags = false
	fs.Usage = func() {
		fmt.Fprintf(e.stderr, "Usage of %s:\n", name)
		fs.PrintDefaults()
	}
	return fs
}

// parse parses args and checks the number of positional arguments. It
// returns the exit code to use when parsing did not succeed.
func (e *env) parse(fs *pflag.FlagSet, args []string, positional int) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if stderrors.Is(err, pflag.ErrHelp) {
			return ExitSuccess, false
		}
		return ExitUsage, false
	}
	if fs.NArg() != positional {
		fmt.Fprintf(e.stderr, "%s: expected %d argument(s), got %d\n", fs.Name(), positional, fs.NArg())
		fs.Usage()
		return ExitUsage, false
	}
	return ExitSuccess, true
}

// fail prints err and maps it to an exit code.
func (e *env) fail(err error) int {
	fmt.Fprintf(e.stderr, "error: %v\n", err)
	switch errors.CodeOf(err) {
	case errors.ErrCodeValidationFailed, errors.ErrCodeProjectLoad, errors.ErrCodeInvalidInput,
		errors.ErrCodeNotFound, errors.ErrCodeCycleDetected, errors.ErrCodeUnknownNodeClass, errors.ErrCodeMissingField:
		return ExitInvalid
	}
	return ExitFailed
}
