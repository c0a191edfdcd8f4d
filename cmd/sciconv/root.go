package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/banshee-data/sciconv/internal/cli"
	"github.com/banshee-data/sciconv/internal/config"
	"github.com/banshee-data/sciconv/internal/convert"
	"github.com/banshee-data/sciconv/internal/fsutil"
	"github.com/banshee-data/sciconv/internal/monitoring"
	"github.com/banshee-data/sciconv/internal/version"
)

// app is the state shared by every subcommand.
type app struct {
	stdout, stderr io.Writer
	v              *viper.Viper

	configPath string
	logLevel   zapcore.Level
	logFormat  string

	cfg    *config.Config
	logger *zap.Logger

	// bindErr holds environment values that failed to parse while the
	// commands were built. It is reported before any command runs.
	bindErr error
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, v: cli.NewViper()}
	root := &cobra.Command{
		Use:   "sciconv",
		Short: "Convert between scientific and visual-effects data files",
		Long: `sciconv converts point matrices to and from reduced C3D motion files,
raw depth files to float TIFFs, and TIFFs to ASCII arrays.

Options may also be set through SCICONV_* environment variables, for example
SCICONV_LOG_LEVEL=debug.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	a.bind(root, []cli.Opt{
		{DestP: &a.configPath, Flag: "config", Desc: "JSON configuration file", Persistent: true},
		{DestP: &a.logLevel, Flag: "log-level", Default: zapcore.InfoLevel, Desc: "log level: debug, info, warn, error", Persistent: true},
		{DestP: &a.logFormat, Flag: "log-format", Default: monitoring.FormatConsole, Desc: "log format: console, json, logfmt", Persistent: true},
	})

	root.AddCommand(
		a.newA2C3DCommand(),
		a.newC3D2ACommand(),
		a.newZ2TIFFCommand(),
		a.newTIFF2ACommand(),
		a.newPreviewCommand(),
		a.newVersionCommand(),
	)
	return root
}

// bind registers opts on cmd, keeping any environment parse error for setup.
func (a *app) bind(cmd *cobra.Command, opts []cli.Opt) {
	a.bindErr = multierr.Append(a.bindErr, cli.BindOptions(a.v, cmd, opts))
}

// explicit reports whether the named option was given on the command line or
// through the environment, so it takes precedence over the config file.
func (a *app) explicit(cmd *cobra.Command, name string) bool {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		return true
	}
	_, ok := os.LookupEnv(cli.EnvName(name))
	return ok
}

// setup loads the configuration and installs the process logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.bindErr != nil {
		return a.bindErr
	}
	a.cfg = config.Empty()
	if a.configPath != "" {
		cfg, err := config.Load(fsutil.OSFileSystem{}, a.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}

	lc := monitoring.LogConfig{Level: a.cfg.GetLogLevel(), Format: a.cfg.GetLogFormat()}
	if a.explicit(cmd, "log-level") {
		lc.Level = a.logLevel
	}
	if a.explicit(cmd, "log-format") {
		lc.Format = a.logFormat
	}
	logger, err := monitoring.NewLogger(a.stderr, lc)
	if err != nil {
		return err
	}
	a.logger = logger
	monitoring.SetLogger(logger)
	if a.configPath != "" {
		logger.Debug("configuration loaded", zap.String("path", a.configPath))
	}
	return nil
}

func (a *app) converter() (*convert.Converter, error) {
	return convert.New(fsutil.OSFileSystem{}, a.logger, a.cfg)
}

// conversionCommand builds a subcommand taking an input and an output path.
func (a *app) conversionCommand(use, short string, run func(in, out string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <input> <output>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return run(args[0], args[1])
		},
	}
}

func (a *app) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			_, err := fmt.Fprintln(a.stdout, version.String())
			return err
		},
	}
}
