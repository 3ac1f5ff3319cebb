package formatter

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/tomyedwab/jsprettify/config"
)

// PrettierArgs converts prettier options into CLI flags
func PrettierArgs(opts config.PrettierConfig) []string {
	args := []string{
		"--parser", opts.Parser,
		"--tab-width", strconv.Itoa(opts.TabWidth),
		"--print-width", strconv.Itoa(opts.PrintWidth),
	}
	if !opts.Semi {
		args = append(args, "--no-semi")
	}
	if opts.SingleQuote {
		args = append(args, "--single-quote")
	}
	return args
}

// PrettierCLI runs a local prettier, falling back to npx, with the source
// on stdin
type PrettierCLI struct {
	Options config.PrettierConfig

	lookPath func(string) (string, error)
}

// NewPrettierCLI creates the local prettier strategy
func NewPrettierCLI(opts config.PrettierConfig) *PrettierCLI {
	return &PrettierCLI{Options: opts, lookPath: exec.LookPath}
}

func (*PrettierCLI) Name() string { return config.StrategyPrettier }

func (p *PrettierCLI) Format(ctx context.Context, source string) (string, error) {
	command, args, err := p.command()
	if err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stdin = strings.NewReader(source)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("run %s failed: %w: %s", command, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// command resolves prettier on PATH, else npx
func (p *PrettierCLI) command() (string, []string, error) {
	lookPath := p.lookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	flags := PrettierArgs(p.Options)
	if path, err := lookPath("prettier"); err == nil {
		return path, flags, nil
	}
	npx, err := lookPath("npx")
	if err != nil {
		return "", nil, fmt.Errorf("neither prettier nor npx is available")
	}
	return npx, append([]string{"--yes", "prettier"}, flags...), nil
}
