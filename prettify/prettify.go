// Package prettify runs one input file through the cache, the formatting
// chain and the output write.
package prettify

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tomyedwab/jsprettify/config"
	"github.com/tomyedwab/jsprettify/database"
	"github.com/tomyedwab/jsprettify/environment"
	"github.com/tomyedwab/jsprettify/errors"
	"github.com/tomyedwab/jsprettify/formatter"
	"github.com/tomyedwab/jsprettify/logging"
	"github.com/tomyedwab/jsprettify/validate"
)

// Request is one file to prettify
type Request struct {
	Input string

	// Output defaults to DefaultOutputPath(Input)
	Output string

	NoCache    bool
	NoValidate bool
}

// Result describes a finished run
type Result struct {
	RunID       string
	Input       string
	Output      string
	Strategy    string
	CacheHit    bool
	Attempts    []formatter.Attempt
	Duration    time.Duration
	InputBytes  int
	OutputBytes int

	// Validated is set when the syntax check ran; ValidationErr holds its
	// failure, which never fails the run
	Validated     bool
	ValidationErr error
}

// Service prettifies files with a shared chain, database and logger
type Service struct {
	cfg      *config.Config
	chain    *formatter.Chain
	db       *database.DB
	logger   *logging.Logger
	progress io.Writer
}

// NewService creates a service. db may be nil to run without cache and
// history; progress receives the user-facing messages and may be nil.
func NewService(cfg *config.Config, chain *formatter.Chain, db *database.DB, logger *logging.Logger, progress io.Writer) *Service {
	if progress == nil {
		progress = io.Discard
	}
	return &Service{cfg: cfg, chain: chain, db: db, logger: logger, progress: progress}
}

// DefaultOutputPath derives the output path: a trailing .min.js or .js is
// replaced by _prettified.js, any other name gets it appended
func DefaultOutputPath(input string) string {
	switch {
	case strings.HasSuffix(input, ".min.js"):
		return strings.TrimSuffix(input, ".min.js") + "_prettified.js"
	case strings.HasSuffix(input, ".js"):
		return strings.TrimSuffix(input, ".js") + "_prettified.js"
	default:
		return input + "_prettified.js"
	}
}

// DisplayName is the user-facing name of a strategy
func DisplayName(strategy string) string {
	switch strategy {
	case config.StrategyChrome:
		return "Prettier (Chrome)"
	case config.StrategyPrettier:
		return "Prettier"
	case config.StrategyDocker:
		return "Prettier (Docker)"
	case config.StrategyESBuild:
		return "esbuild"
	case config.StrategyReindent:
		return "simple re-indenter"
	default:
		return strategy
	}
}

// BuildChain creates the configured strategies in order, leaving out the
// ones report marks unavailable. report may be nil.
func BuildChain(cfg *config.Config, report *environment.Report, logger *logging.Logger) (*formatter.Chain, error) {
	var formatters []formatter.Formatter
	for _, name := range cfg.Strategies {
		if err := report.Available(name); err != nil {
			logger.Warn("environment", fmt.Sprintf("Skipping %s", name), map[string]interface{}{
				"error": err,
			})
			continue
		}

		switch name {
		case config.StrategyChrome:
			var execPath string
			if report != nil {
				execPath = report.ChromePath
			}
			formatters = append(formatters, formatter.NewChrome(execPath, cfg.Chrome, cfg.Prettier))
		case config.StrategyPrettier:
			formatters = append(formatters, formatter.NewPrettierCLI(cfg.Prettier))
		case config.StrategyDocker:
			if report == nil || report.Docker == nil {
				logger.Warn("environment", "Skipping docker: no daemon connection")
				continue
			}
			formatters = append(formatters, formatter.NewDocker(report.Docker, cfg.Docker, cfg.Prettier))
		case config.StrategyESBuild:
			formatters = append(formatters, formatter.ESBuild{})
		case config.StrategyReindent:
			formatters = append(formatters, formatter.Reindent{Indent: cfg.Reindent.Indent})
		default:
			return nil, errors.Newf(errors.ErrInvalidConfig, "unknown strategy %q", name)
		}
	}

	if len(formatters) == 0 {
		return nil, errors.NewAllStrategiesFailedError(fmt.Errorf("none of the configured strategies is available"))
	}

	logger.Debug("environment", "Formatting chain ready", map[string]interface{}{
		"strategies": strings.Join(chainNames(formatters), ","),
	})
	return formatter.NewChain(cfg.StrategyTimeout(), formatters...), nil
}

func chainNames(formatters []formatter.Formatter) []string {
	names := make([]string, len(formatters))
	for i, f := range formatters {
		names[i] = f.Name()
	}
	return names
}

// Run prettifies one file
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Input == "" {
		return nil, errors.NewInvalidInputError("input file is required")
	}

	info, err := os.Stat(req.Input)
	if os.IsNotExist(err) {
		return nil, errors.NewInputNotFoundError(req.Input)
	}
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, err, "cannot access %s", req.Input)
	}
	if info.IsDir() {
		return nil, errors.Newf(errors.ErrInvalidInput, "%s is a directory", req.Input)
	}

	output := req.Output
	if output == "" {
		output = DefaultOutputPath(req.Input)
	}

	rl := logging.NewRunLogger(s.logger, req.Input)
	rl.LogRunStart(output)
	result := &Result{RunID: rl.RunID(), Input: req.Input, Output: output}

	s.printf("Reading: %s\n", req.Input)
	data, err := os.ReadFile(req.Input)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, err, "failed to read %s", req.Input)
	}
	source := string(data)
	result.InputBytes = len(data)

	s.printf("Prettifying...\n")
	start := time.Now()
	formatted, err := s.format(ctx, rl, source, req, result)
	result.Duration = time.Since(start)
	if err != nil {
		s.finish(rl, result, err)
		return result, err
	}

	s.printf("✓ Using %s\n", DisplayName(result.Strategy))
	s.printf("Time: %dms\n", result.Duration.Milliseconds())

	if err := writeOutput(output, formatted); err != nil {
		s.finish(rl, result, err)
		return result, err
	}
	result.OutputBytes = len(formatted)
	rl.LogOutputWritten(output, len(formatted))
	s.printf("✓ Written to: %s\n", output)

	if s.cfg.ValidateOutput && !req.NoValidate {
		result.Validated = true
		result.ValidationErr = validate.File(output)
		rl.LogValidation(result.ValidationErr)
		if result.ValidationErr == nil {
			s.printf("✓ Syntax check passed\n")
		} else {
			s.printf("⚠ Syntax check failed (but file written)\n")
		}
	}

	s.finish(rl, result, nil)
	return result, nil
}

// format serves source from the cache or the chain
func (s *Service) format(ctx context.Context, rl *logging.RunLogger, source string, req Request, result *Result) (string, error) {
	useCache := s.db != nil && s.cfg.Cache.Enabled && !req.NoCache
	key := database.CacheKey(source, s.cfg.Fingerprint())

	if useCache {
		cached, err := s.db.Lookup(key)
		if err != nil {
			rl.LogWarning("cache", "Cache lookup failed", map[string]interface{}{"error": err})
		} else if cached != nil {
			rl.LogCacheHit(cached.Strategy)
			result.CacheHit = true
			result.Strategy = cached.Strategy
			return cached.Output, nil
		} else {
			rl.LogCacheMiss()
		}
	}

	outcome, err := s.chain.FormatObserved(ctx, source, rl)
	if err != nil {
		return "", err
	}
	result.Strategy = outcome.Strategy
	result.Attempts = outcome.Attempts

	if useCache {
		if err := s.db.Store(key, outcome.Strategy, outcome.Output); err != nil {
			rl.LogWarning("cache", "Failed to cache result", map[string]interface{}{"error": err})
		}
	}
	return outcome.Output, nil
}

// finish records the run in the history and logs its end
func (s *Service) finish(rl *logging.RunLogger, result *Result, runErr error) {
	rl.LogRunEnd(runErr == nil, result.Strategy)
	if s.db == nil {
		return
	}

	run := &database.Run{
		RunID:       result.RunID,
		Input:       result.Input,
		Output:      result.Output,
		Strategy:    result.Strategy,
		Status:      database.StatusSuccess,
		Attempts:    len(result.Attempts),
		CacheHit:    result.CacheHit,
		InputBytes:  result.InputBytes,
		OutputBytes: result.OutputBytes,
		DurationMs:  result.Duration.Milliseconds(),
	}
	if result.Validated {
		run.Validated = result.ValidationErr == nil
		if result.ValidationErr != nil {
			run.ValidationError = result.ValidationErr.Error()
		}
	}
	if runErr != nil {
		run.Status = database.StatusFailed
		run.Error = runErr.Error()
	}
	if err := s.db.RecordRun(run); err != nil {
		rl.LogWarning("history", "Failed to record run", map[string]interface{}{"error": err})
	}
}

func writeOutput(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(errors.ErrOutputWriteFailed, err, "failed to create output directory for %s", path)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return errors.Wrapf(errors.ErrOutputWriteFailed, err, "failed to write %s", path)
	}
	return nil
}

func (s *Service) printf(format string, args ...interface{}) {
	fmt.Fprintf(s.progress, format, args...)
}
