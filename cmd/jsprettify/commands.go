package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/tomyedwab/jsprettify/config"
	"github.com/tomyedwab/jsprettify/database"
	"github.com/tomyedwab/jsprettify/environment"
	"github.com/tomyedwab/jsprettify/errors"
	"github.com/tomyedwab/jsprettify/prettify"
)

func init() {
	// Add subcommands
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(strategiesCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(configCmd)

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheExportCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	batchCmd.Flags().Int("jobs", runtime.NumCPU(), "number of files formatted concurrently")
	batchCmd.Flags().String("out-dir", "", "write outputs to this directory instead of next to the inputs")
	historyCmd.Flags().Int("limit", 20, "number of runs to show")
	cacheStatsCmd.Flags().Bool("verify", false, "also run an integrity check")
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
}

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <files...>",
	Short: "Prettify many files concurrently",
	Long: `Prettify every given file with the same formatting chain. Each output is
written next to its input unless --out-dir is set. All files are attempted
even when some fail.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

// strategiesCmd represents the strategies command
var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List the configured strategies and whether they can run",
	Args:  cobra.NoArgs,
	RunE:  runStrategies,
}

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the result cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache and history statistics",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached result (history is kept)",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

var cacheExportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Write a copy of the cache and history database",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheExport,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration to " + config.FileName,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

// batchItem is the outcome of one file in a batch
type batchItem struct {
	input  string
	result *prettify.Result
	err    error
}

// runBatch is the handler for the batch command
func runBatch(cmd *cobra.Command, args []string) error {
	jobs, _ := cmd.Flags().GetInt("jobs")
	outDir, _ := cmd.Flags().GetString("out-dir")
	if jobs <= 0 {
		return errors.NewInvalidInputError("--jobs must be positive")
	}

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	// Per-file progress would interleave; a summary is printed instead.
	svc, err := a.newService(cmd.Context(), io.Discard)
	if err != nil {
		return err
	}

	items := make([]batchItem, len(args))
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(jobs)

	outputs := batchOutputs(args, outDir)
	for i, input := range args {
		i, input := i, input
		if err := outputs.conflict(i); err != nil {
			items[i] = batchItem{input: input, err: err}
			continue
		}
		req := prettify.Request{Input: input, Output: outputs.paths[i], NoCache: a.noCache, NoValidate: a.noValidate}
		g.Go(func() error {
			result, err := svc.Run(cmd.Context(), req)
			mu.Lock()
			items[i] = batchItem{input: input, result: result, err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return reportBatch(cmd.OutOrStdout(), items, a.quiet)
}

// batchPlan maps each batch input to its output path
type batchPlan struct {
	paths  []string
	owners map[string][]int
}

// batchOutputs resolves output paths up front so that inputs sharing an
// output (a/x.js and b/x.js under --out-dir) are never written concurrently
func batchOutputs(inputs []string, outDir string) *batchPlan {
	plan := &batchPlan{paths: make([]string, len(inputs)), owners: make(map[string][]int)}
	for i, input := range inputs {
		out := prettify.DefaultOutputPath(input)
		if outDir != "" {
			out = filepath.Join(outDir, filepath.Base(out))
		}
		plan.paths[i] = out

		key := filepath.Clean(out)
		if abs, err := filepath.Abs(out); err == nil {
			key = abs
		}
		plan.owners[key] = append(plan.owners[key], i)
	}
	return plan
}

// conflict fails input i when another input resolves to the same output
func (p *batchPlan) conflict(i int) error {
	key := filepath.Clean(p.paths[i])
	if abs, err := filepath.Abs(p.paths[i]); err == nil {
		key = abs
	}
	owners := p.owners[key]
	if len(owners) < 2 {
		return nil
	}
	return errors.Newf(errors.ErrInvalidInput, "%d inputs would be written to %s", len(owners), p.paths[i]).
		WithContext("output", p.paths[i])
}

// reportBatch prints one line per file and returns the first failure
func reportBatch(w io.Writer, items []batchItem, quiet bool) error {
	var firstErr error
	failed := 0
	for _, item := range items {
		if item.err != nil {
			failed++
			if firstErr == nil {
				firstErr = item.err
			}
			msg := errors.UserFriendlyMessage(item.err)
			if errors.IsErrorType(item.err, errors.ErrInvalidInput) {
				msg = item.err.Error()
			}
			fmt.Fprintf(w, "✗ %s: %s\n", item.input, msg)
			continue
		}
		if quiet {
			continue
		}
		source := prettify.DisplayName(item.result.Strategy)
		if item.result.CacheHit {
			source += ", cached"
		}
		fmt.Fprintf(w, "✓ %s → %s (%s, %dms)\n", item.input, item.result.Output, source, item.result.Duration.Milliseconds())
		if item.result.ValidationErr != nil {
			fmt.Fprintf(w, "  ⚠ Syntax check failed (but file written): %v\n", item.result.ValidationErr)
		}
	}

	if firstErr != nil {
		return errors.Wrapf(errors.GetErrorType(firstErr), firstErr, "%d of %d files failed", failed, len(items))
	}
	return nil
}

// runStrategies is the handler for the strategies command
func runStrategies(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	a.report = environment.Probe(cmd.Context(), a.cfg)
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Strategy order: %s\n", strings.Join(a.cfg.Strategies, ", "))
	for i, name := range a.cfg.Strategies {
		if reason := a.report.Available(name); reason != nil {
			fmt.Fprintf(w, "%d. %-10s unavailable: %v\n", i+1, name, reason)
			continue
		}
		fmt.Fprintf(w, "%d. %-10s available (%s)\n", i+1, name, strategyDetail(a.cfg, a.report, name))
	}
	return nil
}

func strategyDetail(cfg *config.Config, report *environment.Report, name string) string {
	switch name {
	case config.StrategyChrome:
		return report.ChromePath
	case config.StrategyPrettier:
		if report.NodeVersion != nil {
			return fmt.Sprintf("node v%s", report.NodeVersion)
		}
		return "node"
	case config.StrategyDocker:
		return fmt.Sprintf("%s, %s", cfg.Docker.Image, cfg.Docker.Package)
	case config.StrategyESBuild:
		return "parse and regenerate"
	case config.StrategyReindent:
		return fmt.Sprintf("indent %q", cfg.Reindent.Indent)
	default:
		return ""
	}
}

// openDatabase opens the history database for the maintenance commands,
// where a failure is an error
func openDatabase(a *app) (*database.DB, error) {
	db, err := database.Open(a.cfg.CachePath(), a.cfg.Cache.Size)
	if err != nil {
		return nil, err
	}
	a.db = db
	return db, nil
}

// runHistory is the handler for the history command
func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	db, err := openDatabase(a)
	if err != nil {
		return err
	}

	runs, err := db.RecentRuns(limit)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return nil
	}
	for _, run := range runs {
		fmt.Fprintf(w, "[%s] %s %s %s", run.CreatedAt.Local().Format("2006-01-02 15:04:05"), run.RunID, run.Status, run.Input)
		if run.Status == database.StatusSuccess {
			fmt.Fprintf(w, " → %s (%s", run.Output, run.Strategy)
			if run.CacheHit {
				fmt.Fprint(w, ", cached")
			}
			fmt.Fprintf(w, ", %dms)", run.DurationMs)
		}
		fmt.Fprintln(w)
		if run.Error != "" {
			fmt.Fprintf(w, "    Error: %s\n", run.Error)
		}
		if run.ValidationError != "" {
			fmt.Fprintf(w, "    ⚠ syntax check failed: %s\n", run.ValidationError)
		}
	}
	return nil
}

// runCacheStats is the handler for the cache stats command
func runCacheStats(cmd *cobra.Command, args []string) error {
	verify, _ := cmd.Flags().GetBool("verify")

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	db, err := openDatabase(a)
	if err != nil {
		return err
	}

	stats, err := db.Stats()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Database: %s (%d bytes)\n", stats.Path, stats.FileBytes)
	fmt.Fprintf(w, "Cached results: %d (%d bytes of output)\n", stats.Results, stats.ResultBytes)
	fmt.Fprintf(w, "Runs: %d (%d served from cache)\n", stats.Runs, stats.CacheHits)
	fmt.Fprintf(w, "Cache enabled: %t\n", a.cfg.Cache.Enabled)

	if verify {
		if err := database.VerifyIntegrity(stats.Path); err != nil {
			return errors.Wrap(errors.ErrDatabaseOperationFailed, err, "integrity check failed")
		}
		fmt.Fprintln(w, "Integrity check: ok")
	}
	return nil
}

// runCacheClear is the handler for the cache clear command
func runCacheClear(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	db, err := openDatabase(a)
	if err != nil {
		return err
	}

	removed, err := db.ClearCache()
	if err != nil {
		return err
	}
	if err := db.Compact(); err != nil {
		a.logger.Warn("cache", "Failed to compact database", map[string]interface{}{"error": err})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached results\n", removed)
	return nil
}

// runCacheExport is the handler for the cache export command
func runCacheExport(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	db, err := openDatabase(a)
	if err != nil {
		return err
	}

	if err := db.Export(args[0]); err != nil {
		return errors.Wrap(errors.ErrDatabaseOperationFailed, err, "failed to export database")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", db.Path(), args[0])
	return nil
}

// runConfigInit is the handler for the config init command
func runConfigInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

	path := config.FileName
	if len(args) > 0 {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil && !force {
		return errors.Newf(errors.ErrInvalidInput, "%s already exists (use --force to overwrite)", path)
	}

	if err := config.Save(path, config.Default()); err != nil {
		return errors.NewInvalidConfigError(err, path)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
	return nil
}

// runConfigShow is the handler for the config show command
func runConfigShow(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := yaml.Marshal(a.cfg)
	if err != nil {
		return errors.Wrap(errors.ErrUnknown, err, "failed to marshal configuration")
	}

	w := cmd.OutOrStdout()
	source := a.configPath
	if source == "" {
		source = "defaults"
	}
	fmt.Fprintf(w, "# source: %s\n", source)
	_, err = w.Write(data)
	return err
}
