// Package environment probes the host once at startup for the external
// tools the formatting strategies need.
package environment

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/tomyedwab/jsprettify/config"
	"github.com/tomyedwab/jsprettify/docker"
	"github.com/tomyedwab/jsprettify/errors"
)

// DockerPingTimeout bounds the daemon check
const DockerPingTimeout = 5 * time.Second

// Report is the result of a probe. A strategy is usable when Skipped has
// no entry for it.
type Report struct {
	NodePath    string
	NodeVersion *semver.Version
	ChromePath  string
	Docker      *docker.Client

	// Skipped maps a strategy name to the reason it cannot run
	Skipped map[string]error
}

// Available returns nil when strategy can run, else the reason it can't
func (r *Report) Available(strategy string) error {
	if r == nil {
		return nil
	}
	return r.Skipped[strategy]
}

// Close releases the Docker client, if any
func (r *Report) Close() error {
	if r == nil || r.Docker == nil {
		return nil
	}
	return r.Docker.Close()
}

// Probe runs the checks needed by the configured strategies
func Probe(ctx context.Context, cfg *config.Config) *Report {
	r := &Report{Skipped: make(map[string]error)}

	if cfg.HasStrategy(config.StrategyPrettier) {
		path, version, err := CheckNode(ctx, cfg.Prettier.NodeVersion)
		r.NodePath, r.NodeVersion = path, version
		if err != nil {
			r.Skipped[config.StrategyPrettier] = err
		}
	}

	if cfg.HasStrategy(config.StrategyChrome) {
		path, err := FindChrome(cfg.Chrome.ExecPath, runtime.GOOS)
		r.ChromePath = path
		if err != nil {
			r.Skipped[config.StrategyChrome] = err
		}
	}

	if cfg.HasStrategy(config.StrategyDocker) {
		client, err := connectDocker(ctx)
		if err != nil {
			r.Skipped[config.StrategyDocker] = err
		} else {
			r.Docker = client
		}
	}

	return r
}

func connectDocker(ctx context.Context) (*docker.Client, error) {
	client, err := docker.NewClient()
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, DockerPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// CheckNode finds node on PATH and checks its version against constraint.
// The version is returned whenever it could be read.
func CheckNode(ctx context.Context, constraint string) (string, *semver.Version, error) {
	path, err := exec.LookPath("node")
	if err != nil {
		return "", nil, errors.NewToolNotAvailableError("node", fmt.Errorf("node not found on PATH\n%s", NodeInstallHints()))
	}

	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return path, nil, errors.NewToolNotAvailableError("node", fmt.Errorf("failed to run node --version: %w", err))
	}

	version, err := CheckNodeVersion(strings.TrimSpace(string(out)), constraint)
	return path, version, err
}

// CheckNodeVersion parses the output of node --version ("v18.17.0") and
// checks it against constraint. An empty constraint accepts any version.
func CheckNodeVersion(raw, constraint string) (*semver.Version, error) {
	version, err := semver.NewVersion(strings.TrimPrefix(strings.TrimSpace(raw), "v"))
	if err != nil {
		return nil, errors.NewToolNotAvailableError("node", fmt.Errorf("unrecognized node version %q: %w", raw, err))
	}

	if constraint == "" {
		return version, nil
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return version, errors.NewInvalidConfigError(err, "prettier.node_version")
	}
	if !c.Check(version) {
		return version, errors.NewToolNotAvailableError("node",
			fmt.Errorf("requires Node.js %s (current: v%s)\n%s", constraint, version, NodeInstallHints()))
	}
	return version, nil
}

// NodeInstallHints lists the usual ways to get a recent Node.js
func NodeInstallHints() string {
	return strings.Join([]string{
		"Install or update Node.js:",
		"  - Download from https://nodejs.org/",
		"  - macOS: brew install node",
		"  - Ubuntu/Debian: sudo apt install nodejs npm",
		"  - CentOS/RHEL: sudo yum install nodejs npm",
		"  - nvm: nvm install --lts",
	}, "\n")
}

// ChromeCandidates returns the well-known browser locations for goos
func ChromeCandidates(goos string) []string {
	switch goos {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
		}
	case "windows":
		candidates := []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files\Microsoft\Edge\Application\msedge.exe`,
			`C:\Program Files (x86)\Microsoft\Edge\Application\msedge.exe`,
		}
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			candidates = append(candidates, filepath.Join(local, "Google", "Chrome", "Application", "chrome.exe"))
		}
		return candidates
	default:
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/chromium-browser",
			"/usr/bin/chromium",
			"/snap/bin/chromium",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/microsoft-edge",
		}
	}
}

// chromeBinaries are looked up on PATH when no candidate exists
var chromeBinaries = []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome", "msedge"}

// FindChrome returns explicit when set and present, else the first
// existing candidate for goos, else the first browser found on PATH
func FindChrome(explicit, goos string) (string, error) {
	if explicit != "" {
		if isFile(explicit) {
			return explicit, nil
		}
		return "", errors.NewToolNotAvailableError("chrome", fmt.Errorf("configured browser %s does not exist", explicit))
	}

	for _, candidate := range ChromeCandidates(goos) {
		if isFile(candidate) {
			return candidate, nil
		}
	}

	for _, name := range chromeBinaries {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}

	return "", errors.NewToolNotAvailableError("chrome", fmt.Errorf("no Chrome, Chromium or Edge installation found"))
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
