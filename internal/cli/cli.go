package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/voicekb/voicekb/internal/app"
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

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("voicekb", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
voicekb - declarative voice-enabled knowledge-base stack.

Usage:
  voicekb [options] [COMMAND]

Commands:
  synth      Render the deployment template (default).
  validate   Check the definition and dependency graph without rendering output.
  serve      Serve the gateway routes locally against resolved identifiers.

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", ".", "Path to a definition .hcl file or a directory containing them.")
	cFlag := flagSet.String("c", "", "Path to the definition (shorthand).")
	outFlag := flagSet.String("out", "", "Synth output file. Writes to stdout when empty.")
	formatFlag := flagSet.String("format", "json", "Template output format. Options: 'json' or 'yaml'.")
	portFlag := flagSet.Int("port", 8080, "Listen port for serve mode.")
	stubFlag := flagSet.Bool("stub", false, "Serve with offline stub backends instead of AWS services.")
	watchFlag := flagSet.Bool("watch", false, "With synth: re-render whenever the definition changes.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	command := app.CommandSynth
	if flagSet.NArg() > 0 {
		command = flagSet.Arg(0)
	}
	if flagSet.NArg() > 1 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unexpected arguments after command: %v", flagSet.Args()[1:])}
	}

	path := *configFlag
	if *cFlag != "" {
		path = *cFlag
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		Command:        command,
		DefinitionPath: path,
		OutPath:        *outFlag,
		Format:         strings.ToLower(*formatFlag),
		Port:           *portFlag,
		Stub:           *stubFlag,
		Watch:          *watchFlag,
		LogFormat:      logFormat,
		LogLevel:       logLevel,
	})

	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "command", config.Command)
	return config, false, nil
}
