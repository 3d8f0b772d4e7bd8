// Package main provides the entry point for the mongoload benchmark tool.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/TFMV/mongoload/config"
	"github.com/TFMV/mongoload/logger"
	"github.com/TFMV/mongoload/version"
)

// errRunFailed is returned after a failed run's summary has been printed.
var errRunFailed = errors.New("benchmark failed")

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintln(stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

// cli carries state shared by every subcommand.
type cli struct {
	v          *viper.Viper
	configPath string
	envFiles   []string
	quiet      bool
	stdout     io.Writer
	stderr     io.Writer
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{v: config.New(), stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:   "mongoload",
		Short: "mongoload measures document insertion latency",
		Long: `mongoload is a synthetic load generator for MongoDB.
It reads a sample CSV file, expands it to a target record count, inserts the
working set in bulk or one record at a time, and reports the elapsed time of
the insertion alone.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "Path to a YAML configuration file")
	flags.StringSliceVar(&c.envFiles, "env-file", nil, "Environment files to load (default .env when present)")
	flags.BoolVarP(&c.quiet, "quiet", "q", false, "Disable the progress spinner")
	flags.String("log-file", "", "Log file path (empty for console only)")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("history", "", "Run history database path")
	c.bind(rootCmd, "log.file", "log-file")
	c.bind(rootCmd, "log.level", "log-level")
	c.bind(rootCmd, "output.history_path", "history")

	rootCmd.AddCommand(
		newRunCommand(c),
		newHistoryCommand(c),
		newServeCommand(c),
		newValidateCommand(c),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number of mongoload",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(c.stdout, version.Get())
			},
		},
	)

	return rootCmd
}

// bind routes a flag into the configuration key. Flags only override the
// file and environment when set explicitly.
func (c *cli) bind(cmd *cobra.Command, key, flag string) {
	f := cmd.Flags().Lookup(flag)
	if f == nil {
		f = cmd.PersistentFlags().Lookup(flag)
	}
	_ = c.v.BindPFlag(key, f)
}

// loadConfig merges the environment files, the config file, the environment
// and flags. validateAll checks the full run configuration.
func (c *cli) loadConfig(validateAll bool) (*config.Config, error) {
	if err := config.LoadDotEnv(c.envFiles...); err != nil {
		return nil, err
	}
	cfg, err := config.Load(c.v, c.configPath)
	if err != nil {
		return nil, err
	}
	if validateAll {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return cfg, nil
}

// setupLogger configures the global logger from cfg and returns it.
func (c *cli) setupLogger(cfg *config.Config) (*zap.Logger, error) {
	logger.ResetLogger()
	logger.SetLogPath(cfg.Log.File)
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	logger.InitLogger()
	return logger.GetLogger(), nil
}
