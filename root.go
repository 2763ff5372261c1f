package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/sheetsync/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// skipConfigAnnotation marks commands that run without a loaded config.
const skipConfigAnnotation = "skipConfig"

// logFilePermissions is the mode of the verbose log file.
const logFilePermissions = 0o644

// dotEnvFile is read from the working directory and from beside the config.
const dotEnvFile = ".env"

// CLIFlags holds the parsed persistent flags.
type CLIFlags struct {
	ConfigPath string
	JSON       bool
	Verbose    bool
	Quiet      bool
}

// CLIContext carries what every command needs after the pre-run phase.
type CLIContext struct {
	Flags  CLIFlags
	Cfg    *config.Snapshot
	Logger *slog.Logger

	// closeLog releases the log file, if one was opened.
	closeLog func() error
}

// Statusf prints a progress message to stderr unless --quiet is set.
func (cc *CLIContext) Statusf(format string, args ...any) {
	statusf(cc.Flags.Quiet, format, args...)
}

// close releases the log file. It is safe to call more than once.
func (cc *CLIContext) close() error {
	if cc.closeLog == nil {
		return nil
	}

	err := cc.closeLog()
	cc.closeLog = nil

	return err
}

type cliContextKey struct{}

func withCLIContext(ctx context.Context, cc *CLIContext) context.Context {
	return context.WithValue(ctx, cliContextKey{}, cc)
}

// mustCLIContext returns the CLIContext stored by the root pre-run. A
// missing value is a programming error.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		panic("sheetsync: command context has no CLIContext")
	}

	return cc
}

// newRootCmd builds the root command with every subcommand registered.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheetsync",
		Short: "Sync local spreadsheet files with Smartsheet sheets",
		Long: `sheetsync replaces the rows of Smartsheet sheets with the contents of local
workbooks, exports sheets back to workbooks, and attaches files to sheets.
Tables are listed in a TOML config file.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupCLIContext(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "only log errors")

	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newTestCmd())
	cmd.AddCommand(newCleanupCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// execute runs root with ctx and then closes the log file of the command
// that ran. cobra skips post-run hooks when a command fails, so the close
// happens here for failed runs too.
func execute(ctx context.Context, root *cobra.Command) error {
	cmd, err := root.ExecuteContextC(ctx)
	if cmd == nil || cmd.Context() == nil {
		return err
	}

	if cc, ok := cmd.Context().Value(cliContextKey{}).(*CLIContext); ok {
		if closeErr := cc.close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("closing log file: %w", closeErr))
		}
	}

	return err
}

// setupCLIContext loads .env files and the config, exports [env], builds
// the logger and stores the CLIContext on the command's context.
func setupCLIContext(cmd *cobra.Command) error {
	cc := &CLIContext{Flags: CLIFlags{
		ConfigPath: flagConfigPath,
		JSON:       flagJSON,
		Verbose:    flagVerbose,
		Quiet:      flagQuiet,
	}}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if cmd.Annotations[skipConfigAnnotation] != "" {
		cc.Logger = buildLogger(config.LoggingConfig{LogLevel: "warn", LogFormat: "auto"}, cc.Flags, os.Stderr, stderrIsTerminal())
		cmd.SetContext(withCLIContext(ctx, cc))

		return nil
	}

	path := config.ResolvePath(config.ReadEnvOverrides(), config.CLIOverrides{ConfigPath: cc.Flags.ConfigPath})

	if err := loadDotEnv(".", filepath.Dir(path)); err != nil {
		return err
	}

	snap, err := config.LoadSnapshot(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := config.ExportEnv(snap, os.Setenv); err != nil {
		return err
	}

	cc.Cfg = snap

	out := io.Writer(os.Stderr)

	if snap.Logging.LogFile != "" {
		f, err := openLogFile(snap.Logging.LogFile)
		if err != nil {
			return err
		}

		out = io.MultiWriter(os.Stderr, f)
		cc.closeLog = f.Close
	}

	cc.Logger = buildLogger(snap.Logging, cc.Flags, out, stderrIsTerminal())
	slog.SetDefault(cc.Logger)

	cc.Logger.Debug("config loaded",
		slog.String("path", snap.Path),
		slog.Int("tables", len(snap.Tables)),
	)

	cmd.SetContext(withCLIContext(ctx, cc))

	return nil
}

// loadDotEnv reads .env from each dir that has one. Variables already set
// in the process environment win.
func loadDotEnv(dirs ...string) error {
	for _, dir := range dirs {
		path := filepath.Join(dir, dotEnvFile)

		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}

			return fmt.Errorf("loading %s: %w", path, err)
		}
	}

	return nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, logFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	return f, nil
}

// buildLogger creates the process logger. The config sets the baseline
// level; --verbose and --quiet override it. Format "auto" writes text when
// stderr is a terminal and JSON otherwise.
func buildLogger(cfg config.LoggingConfig, flags CLIFlags, w io.Writer, terminal bool) *slog.Logger {
	level := slog.LevelInfo

	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	if flags.Verbose {
		level = slog.LevelDebug
	}

	if flags.Quiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if useJSONLogs(cfg.LogFormat, terminal) {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

func useJSONLogs(format string, terminal bool) bool {
	switch format {
	case "json":
		return true
	case "text":
		return false
	default:
		return !terminal
	}
}

func stderrIsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
