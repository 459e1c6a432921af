// Package cli implements the eventbus command-line tool.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// envPrefix namespaces environment overrides, e.g. EVENTBUS_LOG_LEVEL.
const envPrefix = "EVENTBUS"

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCmd(viper.New()).ExecuteContext(ctx)
}

// NewRootCmd builds the command tree. Flags bind into v, so every flag can
// also be set through an EVENTBUS_ environment variable.
func NewRootCmd(v *viper.Viper) *cobra.Command {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "eventbus",
		Short: "In-process event bus tooling",
		Long: `eventbus exercises an in-process typed event bus and inspects the
events it parked after failing to deliver them.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	_ = v.BindPFlag("log-level", cmd.PersistentFlags().Lookup("log-level"))

	cmd.AddCommand(newDemoCmd(v))
	cmd.AddCommand(newParkedCmd(v))
	return cmd
}

// newLogger builds a text slog logger writing to w.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}
