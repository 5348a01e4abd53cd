// Package main is the entry point for the gatekeep CLI.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/flemzord/gatekeep/internal/core"
	"github.com/flemzord/gatekeep/pkg/app"

	// Compiled-in modules.
	_ "github.com/flemzord/gatekeep/internal/gateway"
	_ "github.com/flemzord/gatekeep/modules/channel/telegram"
	_ "github.com/flemzord/gatekeep/modules/store/sqlite"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gatekeep",
		Short:         "A Telegram group gatekeeper: welcomes, verifies and mutes new members",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), startCmd(), configCmd(), initCmd(), serviceCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "gatekeep %s (commit: %s, built: %s)\n", version, commit, date)
	mods := core.GetModules()
	if len(mods) == 0 {
		fmt.Fprintln(w, "\nNo compiled modules.")
		return
	}
	fmt.Fprintln(w, "\nCompiled modules:")
	for _, mod := range mods {
		fmt.Fprintf(w, "  %s\n", mod.ID)
	}
}

// runFlags are shared by "start" and "service run".
type runFlags struct {
	config    string
	dataDir   string
	logLevel  string
	logFormat string
	watch     bool
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.config, "config", "c", "", "Path to configuration file")
	fs.StringVar(&f.dataDir, "data-dir", "", "Persistent data directory (default $XDG_DATA_HOME/gatekeep)")
	fs.StringVar(&f.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	fs.StringVar(&f.logFormat, "log-format", "text", "Log format: text or json")
	fs.BoolVar(&f.watch, "watch", false, "Reload modules when the configuration file changes")
}

func (f *runFlags) params() (app.RunParams, error) {
	level, err := parseLevel(f.logLevel)
	if err != nil {
		return app.RunParams{}, err
	}
	return app.RunParams{
		ConfigPath:  f.config,
		DataDir:     f.dataDir,
		LogLevel:    level,
		LogFormat:   f.logFormat,
		WatchConfig: f.watch,
		Version:     version,
		Commit:      commit,
		Date:        date,
	}, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func startCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start gatekeep with all configured modules",
		RunE: func(_ *cobra.Command, _ []string) error {
			params, err := flags.params()
			if err != nil {
				return err
			}
			return app.Run(params)
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				resolved, err := app.ResolveConfigPath()
				if err != nil {
					return err
				}
				path = resolved
			}

			ids, err := app.CheckConfig(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration OK (%d modules)\n", len(ids))
			for _, id := range ids {
				fmt.Fprintf(out, "  %s\n", id)
			}
			return nil
		},
	})
	return cmd
}
