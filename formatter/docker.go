package formatter

import (
	"context"

	"github.com/tomyedwab/jsprettify/config"
	"github.com/tomyedwab/jsprettify/docker"
)

// ContainerRunner runs a formatter command in a container
type ContainerRunner interface {
	RunFormatter(ctx context.Context, rc *docker.RunConfig, source string) (string, error)
}

// Docker runs prettier with npx inside a Node container
type Docker struct {
	runner  ContainerRunner
	config  config.DockerConfig
	options config.PrettierConfig
}

// NewDocker creates the container strategy
func NewDocker(runner ContainerRunner, cfg config.DockerConfig, opts config.PrettierConfig) *Docker {
	return &Docker{runner: runner, config: cfg, options: opts}
}

func (*Docker) Name() string { return config.StrategyDocker }

func (d *Docker) Format(ctx context.Context, source string) (string, error) {
	return d.runner.RunFormatter(ctx, d.runConfig(), source)
}

func (d *Docker) runConfig() *docker.RunConfig {
	command := append([]string{"npx", "--yes", d.config.Package}, PrettierArgs(d.options)...)
	return &docker.RunConfig{
		Image:       d.config.Image,
		Command:     command,
		Memory:      d.config.Memory,
		CPULimit:    d.config.CPULimit,
		NetworkMode: d.config.NetworkMode,
	}
}
