// Package cli parses command-line arguments and configures logging for the
// opflow demo host.
package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Config is the parsed host configuration.
type Config struct {
	PatchPath string
	Frames    int
	// TimeStep is the logical time advance per frame, in seconds.
	TimeStep  float64
	LogLevel  string
	LogFormat string
	// Guardrails; zero disables.
	MaxNodes  int
	MaxBudget time.Duration
	// CacheCapacity bounds the result cache; zero means unbounded.
	CacheCapacity int
}

// Parse processes command-line arguments. It returns a populated Config, a
// boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*Config, bool, error) {
	flagSet := flag.NewFlagSet("opflow", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
opflow - an incremental dataflow evaluation engine for operator graphs.

Usage:
  opflow [options] PATCH_PATH

Arguments:
  PATCH_PATH
    Path to a .hcl patch file describing operators and connections,
    or a directory of .hcl files merged in lexical order.

Options:
`)
		flagSet.PrintDefaults()
	}

	framesFlag := flagSet.Int("frames", 1, "Number of evaluation passes (frames) to run.")
	timeStepFlag := flagSet.Float64("timestep", 1.0/60.0, "Logical time advance per frame, in seconds.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	maxNodesFlag := flagSet.Int("max-nodes", 0, "Guardrail: maximum callback invocations per pass. 0 is unbounded.")
	maxMillisFlag := flagSet.Int("max-millis", 0, "Guardrail: wall-clock budget per pass in milliseconds. 0 is unbounded.")
	cacheCapFlag := flagSet.Int("cache-capacity", 0, "Result cache capacity. 0 is unbounded.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	if flagSet.NArg() == 0 {
		flagSet.Usage()
		return nil, false, &ExitError{Code: 2, Message: "missing PATCH_PATH argument"}
	}

	cfg := &Config{
		PatchPath:     flagSet.Arg(0),
		Frames:        *framesFlag,
		TimeStep:      *timeStepFlag,
		LogLevel:      *logLevelFlag,
		LogFormat:     *logFormatFlag,
		MaxNodes:      *maxNodesFlag,
		MaxBudget:     time.Duration(*maxMillisFlag) * time.Millisecond,
		CacheCapacity: *cacheCapFlag,
	}
	if cfg.Frames < 1 {
		return nil, false, &ExitError{Code: 2, Message: "-frames must be at least 1"}
	}
	return cfg, false, nil
}

// NewLogger builds the slog.Logger the host threads through context.
func NewLogger(w io.Writer, cfg *Config) (*slog.Logger, error) {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch cfg.LogFormat {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.LogFormat)
	}
}
