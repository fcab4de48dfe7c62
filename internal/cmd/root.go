// Package cmd holds the creative command tree.
package cmd

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ahmed-musallam/creative-automation-pipeline/internal/infra"
)

// ExitError carries the process exit status for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// ErrUnitsFailed is returned by generate with --fail-on-unit-error when at
// least one unit produced no file.
var ErrUnitsFailed = errors.New("one or more generation units failed")

// ExitCode maps an Execute error to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	return 1
}

type rootOptions struct {
	logLevel string
	logger   infra.Logger
}

// NewRootCommand builds a fresh command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{logger: zerolog.Nop()}
	root := &cobra.Command{
		Use:   "creative",
		Short: "Generate campaign creatives from a brief",
		Long: `creative turns a campaign brief into generated product images for every
requested aspect ratio, using the Firefly image service and, optionally, an
Azure OpenAI scene planner.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := infra.LoadConfig()
			if err != nil {
				return err
			}
			level, ok := infra.ParseLevel(opts.logLevel)
			opts.logger = infra.NewLogger(cfg.AppEnv, level)
			if !ok {
				opts.logger.Warn().Msgf(`invalid log level %q, allowed values are: error, warning, info, debug. Defaulting to "info"`, opts.logLevel)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&opts.logLevel, "log-level", "l", "info", "log level: error, warning, info, debug")

	root.AddCommand(
		newGenerateCommand(opts),
		newRatiosCommand(),
		newModelsCommand(opts),
	)
	return root
}

func loadConfig(scenePlanning bool) (*infra.Config, error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(scenePlanning); err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	return cfg, nil
}
