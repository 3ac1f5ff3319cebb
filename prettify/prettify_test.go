package prettify

import (
	"bytes"
	"context"
	goerrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomyedwab/jsprettify/config"
	"github.com/tomyedwab/jsprettify/database"
	"github.com/tomyedwab/jsprettify/environment"
	"github.com/tomyedwab/jsprettify/errors"
	"github.com/tomyedwab/jsprettify/formatter"
	"github.com/tomyedwab/jsprettify/logging"
)

type stubFormatter struct {
	name   string
	output string
	err    error
}

func (f stubFormatter) Name() string { return f.name }

func (f stubFormatter) Format(context.Context, string) (string, error) {
	return f.output, f.err
}

func testLogger() *logging.Logger {
	return logging.NewLoggerWithOutput(logging.DEBUG, &bytes.Buffer{}, "")
}

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func openDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "history.db"), 16)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDefaultOutputPath(t *testing.T) {
	tests := map[string]string{
		"bg.min.js":        "bg_prettified.js",
		"a.js":             "a_prettified.js",
		"a.txt":            "a.txt_prettified.js",
		"dir/app.min.js":   "dir/app_prettified.js",
		"noext":            "noext_prettified.js",
		"weird.min.js.txt": "weird.min.js.txt_prettified.js",
	}
	for input, want := range tests {
		assert.Equal(t, want, DefaultOutputPath(input), input)
	}
}

func TestRunMissingInput(t *testing.T) {
	svc := NewService(config.Default(), formatter.NewChain(0, formatter.Reindent{}), nil, testLogger(), nil)

	_, err := svc.Run(context.Background(), Request{Input: filepath.Join(t.TempDir(), "nope.js")})
	require.Error(t, err)
	assert.True(t, errors.IsErrorType(err, errors.ErrNotFound))
	assert.Equal(t, 1, errors.ExitCode(err))
	assert.Contains(t, errors.UserFriendlyMessage(err), "File not found:")

	_, err = svc.Run(context.Background(), Request{})
	assert.True(t, errors.IsErrorType(err, errors.ErrInvalidInput))

	_, err = svc.Run(context.Background(), Request{Input: t.TempDir()})
	assert.True(t, errors.IsErrorType(err, errors.ErrInvalidInput))
}

func TestRunWritesOutput(t *testing.T) {
	input := writeInput(t, "bg.min.js", "function f(a,b){return a+b;}")
	var progress bytes.Buffer
	svc := NewService(config.Default(), formatter.NewChain(0, formatter.Reindent{}), nil, testLogger(), &progress)

	result, err := svc.Run(context.Background(), Request{Input: input})
	require.NoError(t, err)

	want := "function f(a,\nb){\n    return a+b;\n}\n"
	assert.Equal(t, filepath.Join(filepath.Dir(input), "bg_prettified.js"), result.Output)
	data, err := os.ReadFile(result.Output)
	require.NoError(t, err)
	assert.Equal(t, want, string(data))

	assert.Equal(t, config.StrategyReindent, result.Strategy)
	assert.Equal(t, len(want), result.OutputBytes)
	assert.True(t, result.Validated)
	assert.NoError(t, result.ValidationErr)
	assert.NotEmpty(t, result.RunID)

	for _, line := range []string{
		"Reading: " + input,
		"Prettifying...",
		"✓ Using simple re-indenter",
		"Time: ",
		"✓ Written to: " + result.Output,
		"✓ Syntax check passed",
	} {
		assert.Contains(t, progress.String(), line)
	}
}

func TestRunExplicitOutputCreatesDirectories(t *testing.T) {
	input := writeInput(t, "a.js", "a;b;")
	output := filepath.Join(t.TempDir(), "deep", "er", "out.js")
	svc := NewService(config.Default(), formatter.NewChain(0, formatter.Reindent{}), nil, testLogger(), nil)

	result, err := svc.Run(context.Background(), Request{Input: input, Output: output, NoValidate: true})
	require.NoError(t, err)
	assert.Equal(t, output, result.Output)
	assert.False(t, result.Validated)
	assert.FileExists(t, output)
}

func TestRunValidationIsAdvisory(t *testing.T) {
	input := writeInput(t, "a.js", "let x = {")
	var progress bytes.Buffer
	chain := formatter.NewChain(0, stubFormatter{name: "broken", output: "let x = {\n"})
	svc := NewService(config.Default(), chain, nil, testLogger(), &progress)

	result, err := svc.Run(context.Background(), Request{Input: input})
	require.NoError(t, err)
	assert.Error(t, result.ValidationErr)
	assert.FileExists(t, result.Output)
	assert.Contains(t, progress.String(), "⚠ Syntax check failed (but file written)")
}

func TestRunRecordsSyntaxCheck(t *testing.T) {
	db := openDB(t)
	broken := writeInput(t, "broken.js", "let x = {")
	chain := formatter.NewChain(0, stubFormatter{name: "broken", output: "let x = {\n"})
	svc := NewService(config.Default(), chain, db, testLogger(), nil)

	result, err := svc.Run(context.Background(), Request{Input: broken, NoCache: true})
	require.NoError(t, err)

	runs, err := db.RecentRuns(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, database.StatusSuccess, runs[0].Status)
	assert.False(t, runs[0].Validated)
	assert.Equal(t, result.ValidationErr.Error(), runs[0].ValidationError)
	assert.Contains(t, runs[0].ValidationError, result.Output)

	good := writeInput(t, "good.js", "a;b;")
	svc = NewService(config.Default(), formatter.NewChain(0, formatter.Reindent{}), db, testLogger(), nil)
	_, err = svc.Run(context.Background(), Request{Input: good})
	require.NoError(t, err)

	runs, err = db.RecentRuns(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Validated)
	assert.Empty(t, runs[0].ValidationError)

	_, err = svc.Run(context.Background(), Request{Input: good, NoValidate: true})
	require.NoError(t, err)
	runs, err = db.RecentRuns(1)
	require.NoError(t, err)
	assert.False(t, runs[0].Validated)
	assert.Empty(t, runs[0].ValidationError)
}

func TestRunAllStrategiesFailed(t *testing.T) {
	input := writeInput(t, "a.js", "x")
	db := openDB(t)
	chain := formatter.NewChain(0,
		stubFormatter{name: "chrome", err: goerrors.New("no browser")},
		stubFormatter{name: "prettier", err: goerrors.New("no node")},
	)
	svc := NewService(config.Default(), chain, db, testLogger(), nil)

	result, err := svc.Run(context.Background(), Request{Input: input})
	require.Error(t, err)
	assert.True(t, errors.IsErrorType(err, errors.ErrAllStrategiesFailed))
	assert.Equal(t, 1, errors.ExitCode(err))
	assert.NoFileExists(t, result.Output)

	runs, err := db.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, database.StatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "no browser")
}

func TestRunOutputWriteFailure(t *testing.T) {
	input := writeInput(t, "a.js", "a;")
	blocker := writeInput(t, "file", "")
	svc := NewService(config.Default(), formatter.NewChain(0, formatter.Reindent{}), nil, testLogger(), nil)

	_, err := svc.Run(context.Background(), Request{Input: input, Output: filepath.Join(blocker, "out.js")})
	require.Error(t, err)
	assert.True(t, errors.IsErrorType(err, errors.ErrOutputWriteFailed))
	assert.Equal(t, 3, errors.ExitCode(err))
}

func TestRunUsesCache(t *testing.T) {
	input := writeInput(t, "a.js", "let a=1")
	db := openDB(t)
	chain := formatter.NewChain(0, formatter.ESBuild{})
	svc := NewService(config.Default(), chain, db, testLogger(), nil)

	first, err := svc.Run(context.Background(), Request{Input: input})
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Equal(t, config.StrategyESBuild, first.Strategy)

	second, err := svc.Run(context.Background(), Request{Input: input})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, config.StrategyESBuild, second.Strategy)
	assert.Empty(t, second.Attempts)

	third, err := svc.Run(context.Background(), Request{Input: input, NoCache: true})
	require.NoError(t, err)
	assert.False(t, third.CacheHit)

	runs, err := db.RecentRuns(10)
	require.NoError(t, err)
	assert.Len(t, runs, 3)

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CacheHits)
}

func TestRunDoesNotCacheReindent(t *testing.T) {
	input := writeInput(t, "a.js", "a;b;")
	db := openDB(t)
	svc := NewService(config.Default(), formatter.NewChain(0, formatter.Reindent{}), db, testLogger(), nil)

	for i := 0; i < 2; i++ {
		result, err := svc.Run(context.Background(), Request{Input: input})
		require.NoError(t, err)
		assert.False(t, result.CacheHit)
	}
}

func TestBuildChainSkipsUnavailable(t *testing.T) {
	cfg := config.Default()
	report := &environment.Report{Skipped: map[string]error{
		config.StrategyChrome:   goerrors.New("no browser"),
		config.StrategyPrettier: goerrors.New("node too old"),
	}}

	chain, err := BuildChain(cfg, report, testLogger())
	require.NoError(t, err)
	// docker has no client in the report, so it is skipped too
	assert.Equal(t, []string{"esbuild", "reindent"}, chain.Names())
}

func TestBuildChainWithoutReport(t *testing.T) {
	cfg := config.Default()
	cfg.Strategies = []string{config.StrategyPrettier, config.StrategyReindent}

	chain, err := BuildChain(cfg, nil, testLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"prettier", "reindent"}, chain.Names())
}

func TestBuildChainNothingAvailable(t *testing.T) {
	cfg := config.Default()
	cfg.Strategies = []string{config.StrategyChrome}
	report := &environment.Report{Skipped: map[string]error{config.StrategyChrome: goerrors.New("no browser")}}

	_, err := BuildChain(cfg, report, testLogger())
	assert.True(t, errors.IsErrorType(err, errors.ErrAllStrategiesFailed))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Prettier", DisplayName(config.StrategyPrettier))
	assert.Equal(t, "custom", DisplayName("custom"))
}
