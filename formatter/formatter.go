// Package formatter defines the formatting strategies and the fallback
// chain that tries them in order.
package formatter

import (
	"context"
	goerrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomyedwab/jsprettify/errors"
)

// Formatter is one formatting strategy
type Formatter interface {
	Name() string
	Format(ctx context.Context, source string) (string, error)
}

// ErrEmptyOutput is returned when a strategy produces nothing for
// non-empty input
var ErrEmptyOutput = goerrors.New("formatter returned empty output")

// FormatError records the failure of one strategy
type FormatError struct {
	Strategy string
	Err      error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %v", e.Strategy, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Attempt is one strategy tried by the chain
type Attempt struct {
	Strategy string
	Duration time.Duration
	Err      error
}

// Outcome is the result of a successful chain run
type Outcome struct {
	Output   string
	Strategy string
	Duration time.Duration

	// Attempts lists every strategy tried, the winning one last
	Attempts []Attempt
}

// Observer is notified as the chain tries strategies
type Observer interface {
	StrategyStarted(name string)
	StrategyFailed(name string, err error, duration time.Duration)
	StrategySucceeded(name string, duration time.Duration, outputBytes int)
}

type nopObserver struct{}

func (nopObserver) StrategyStarted(string)                       {}
func (nopObserver) StrategyFailed(string, error, time.Duration)  {}
func (nopObserver) StrategySucceeded(string, time.Duration, int) {}

// Chain tries formatters in order until one succeeds
type Chain struct {
	formatters []Formatter
	timeout    time.Duration
}

// NewChain creates a chain. A zero timeout leaves attempts bounded only by
// the caller's context.
func NewChain(timeout time.Duration, formatters ...Formatter) *Chain {
	return &Chain{formatters: formatters, timeout: timeout}
}

// Names returns the strategy names in order
func (c *Chain) Names() []string {
	names := make([]string, len(c.formatters))
	for i, f := range c.formatters {
		names[i] = f.Name()
	}
	return names
}

// Format runs the chain on source
func (c *Chain) Format(ctx context.Context, source string) (*Outcome, error) {
	return c.FormatObserved(ctx, source, nil)
}

// FormatObserved runs the chain on source, reporting each attempt to obs
func (c *Chain) FormatObserved(ctx context.Context, source string, obs Observer) (*Outcome, error) {
	if obs == nil {
		obs = nopObserver{}
	}
	if len(c.formatters) == 0 {
		return nil, errors.NewAllStrategiesFailedError(fmt.Errorf("no strategies configured"))
	}

	start := time.Now()
	outcome := &Outcome{}
	var failures []error

	for _, f := range c.formatters {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.ErrTimeout, err, "formatting cancelled")
		}

		name := f.Name()
		obs.StrategyStarted(name)
		attemptStart := time.Now()

		output, err := c.attempt(ctx, f, source)
		if err == nil && strings.TrimSpace(output) == "" && strings.TrimSpace(source) != "" {
			err = ErrEmptyOutput
		}
		duration := time.Since(attemptStart)
		outcome.Attempts = append(outcome.Attempts, Attempt{Strategy: name, Duration: duration, Err: err})

		if err != nil {
			obs.StrategyFailed(name, err, duration)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, errors.Wrap(errors.ErrTimeout, ctxErr, "formatting cancelled")
			}
			failures = append(failures, &FormatError{Strategy: name, Err: err})
			continue
		}

		obs.StrategySucceeded(name, duration, len(output))
		outcome.Output = output
		outcome.Strategy = name
		outcome.Duration = time.Since(start)
		return outcome, nil
	}

	return nil, errors.NewAllStrategiesFailedError(goerrors.Join(failures...))
}

type attemptResult struct {
	output string
	err    error
}

// attempt runs one formatter under the per-strategy timeout. Formatters
// that ignore their context are abandoned when it expires.
func (c *Chain) attempt(ctx context.Context, f Formatter, source string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	done := make(chan attemptResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- attemptResult{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		output, err := f.Format(ctx, source)
		done <- attemptResult{output: output, err: err}
	}()

	select {
	case r := <-done:
		return r.output, r.err
	case <-ctx.Done():
		return "", errors.Wrapf(errors.ErrTimeout, ctx.Err(), "%s did not finish", f.Name())
	}
}
