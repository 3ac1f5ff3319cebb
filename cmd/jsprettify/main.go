package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomyedwab/jsprettify/config"
	"github.com/tomyedwab/jsprettify/database"
	"github.com/tomyedwab/jsprettify/environment"
	"github.com/tomyedwab/jsprettify/errors"
	"github.com/tomyedwab/jsprettify/logging"
	"github.com/tomyedwab/jsprettify/prettify"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "jsprettify <input-file> [output-file]",
	Short: "jsprettify - Reformat minified JavaScript",
	Long: `jsprettify reformats minified or badly formatted JavaScript into readable,
indented source. It tries a chain of formatters (Prettier in a headless
browser, a local Prettier, Prettier in a container, esbuild) and falls back
to a heuristic re-indenter that always produces output.

The output defaults to the input name with .min.js or .js replaced by
_prettified.js.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	Args:          cobra.RangeArgs(1, 2),
	RunE:          runPrettify,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Add persistent flags that will be available to all commands
	rootCmd.PersistentFlags().String("config", "", "config file (default is ./.jsprettify.yaml, then $HOME/.jsprettify.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable verbose output")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-error output")
	rootCmd.PersistentFlags().String("log-file", "", "also append log output to this file")
	rootCmd.PersistentFlags().String("strategies", "", "comma separated strategy order (e.g. esbuild,reindent)")
	rootCmd.PersistentFlags().Duration("timeout", 0, "timeout for each strategy attempt (0 keeps the configured value)")
	rootCmd.PersistentFlags().Bool("no-cache", false, "neither read nor write the result cache")
	rootCmd.PersistentFlags().Bool("no-validate", false, "skip the syntax check of the output")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", errors.UserFriendlyMessage(err))

		// Add suggestion if available
		if suggestion := errors.Suggestion(err); suggestion != "" {
			fmt.Fprintf(os.Stderr, "Suggestion: %s\n", suggestion)
		}

		os.Exit(errors.ExitCode(err))
	}
}

// app holds what every command shares
type app struct {
	cfg        *config.Config
	configPath string
	logger     *logging.Logger
	db         *database.DB
	report     *environment.Report
	quiet      bool
	noCache    bool
	noValidate bool
}

// setup loads the configuration and applies the command-line overrides
func setup(cmd *cobra.Command) (*app, error) {
	configFlag, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	quiet, _ := cmd.Flags().GetBool("quiet")
	logFile, _ := cmd.Flags().GetString("log-file")
	strategies, _ := cmd.Flags().GetString("strategies")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	noCache, _ := cmd.Flags().GetBool("no-cache")
	noValidate, _ := cmd.Flags().GetBool("no-validate")

	cfg, configPath, err := config.Load(configFlag)
	if err != nil {
		return nil, errors.NewInvalidConfigError(err, configPath)
	}

	if strategies != "" {
		cfg.Strategies = config.ParseStrategyList(strategies)
	}
	if timeout > 0 {
		cfg.Timeout = timeout.String()
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewInvalidConfigError(err, configPath)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logging.WARN
	}
	if verbose {
		level = logging.DEBUG
	} else if quiet {
		level = logging.ERROR
	}
	logger := logging.NewLoggerWithOutput(level, cmd.ErrOrStderr(), cfg.LogFile)
	if configPath != "" {
		logger.Debug("config", "Loaded configuration", map[string]interface{}{"path": configPath})
	}

	return &app{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		quiet:      quiet,
		noCache:    noCache,
		noValidate: noValidate,
	}, nil
}

// openHistory opens the cache database when caching is on. Failures only
// disable the cache.
func (a *app) openHistory() {
	if !a.cfg.Cache.Enabled || a.noCache {
		return
	}
	db, err := database.Open(a.cfg.CachePath(), a.cfg.Cache.Size)
	if err != nil {
		a.logger.Warn("cache", "Cache disabled", map[string]interface{}{"error": err})
		return
	}
	a.db = db
}

// newService probes the environment and builds the formatting service
func (a *app) newService(ctx context.Context, progress io.Writer) (*prettify.Service, error) {
	timer := a.logger.StartTimer("environment", "environment probe")
	a.report = environment.Probe(ctx, a.cfg)
	timer.Stop()

	chain, err := prettify.BuildChain(a.cfg, a.report, a.logger)
	if err != nil {
		return nil, err
	}
	a.openHistory()

	if a.quiet {
		progress = io.Discard
	}
	return prettify.NewService(a.cfg, chain, a.db, a.logger, progress), nil
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	a.report.Close()
}

// runPrettify is the handler for the root command
func runPrettify(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	svc, err := a.newService(cmd.Context(), cmd.OutOrStdout())
	if err != nil {
		return err
	}

	req := prettify.Request{
		Input:      args[0],
		NoCache:    a.noCache,
		NoValidate: a.noValidate,
	}
	if len(args) > 1 {
		req.Output = args[1]
	}

	result, err := svc.Run(cmd.Context(), req)
	if err != nil {
		return err
	}

	a.logger.Info("run", "Done", map[string]interface{}{
		"strategy": result.Strategy,
		"duration": result.Duration.Round(time.Millisecond),
	})
	return nil
}
