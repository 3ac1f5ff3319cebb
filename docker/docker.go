package docker

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-units"

	"github.com/tomyedwab/jsprettify/errors"
)

const (
	// InputDir is where the source file is copied inside the container
	InputDir = "/tmp/jsprettify"

	// InputName is the file name of the copied source
	InputName = "input.js"
)

// InputPath is the absolute path of the source file inside the container
var InputPath = path.Join(InputDir, InputName)

// Client provides the Docker operations needed to run a formatter container
type Client struct {
	api *client.Client
}

// NewClient creates a Docker client from the environment (DOCKER_HOST etc.)
func NewClient() (*Client, error) {
	api, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.NewDockerNotAvailableError(err)
	}
	return &Client{api: api}, nil
}

// Close closes the Docker client
func (c *Client) Close() error {
	return c.api.Close()
}

// Ping checks that the Docker daemon answers
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.Ping(ctx); err != nil {
		return errors.NewDockerNotAvailableError(err)
	}
	return nil
}

// RunConfig describes one formatter container
type RunConfig struct {
	// Image is the Docker image to run, e.g. node:20-alpine
	Image string

	// Command is run in the container with InputPath appended
	Command []string

	// Memory limit (e.g., "512m", "1g")
	Memory string

	// CPU limit (e.g., "1.0" for one full CPU, "0.5" for half)
	CPULimit string

	// Network mode (e.g., "bridge", "host", "none")
	NetworkMode string
}

// Validate checks if the run configuration is valid
func (rc *RunConfig) Validate() error {
	if rc.Image == "" {
		return fmt.Errorf("image is required")
	}
	if len(rc.Command) == 0 {
		return fmt.Errorf("command is required")
	}
	if _, err := rc.hostConfig(); err != nil {
		return err
	}
	return nil
}

// hostConfig translates the resource limits into a HostConfig
func (rc *RunConfig) hostConfig() (*container.HostConfig, error) {
	hc := &container.HostConfig{
		NetworkMode: container.NetworkMode(rc.NetworkMode),
	}

	if rc.Memory != "" {
		memory, err := units.RAMInBytes(rc.Memory)
		if err != nil {
			return nil, fmt.Errorf("invalid memory limit %q: %w", rc.Memory, err)
		}
		hc.Resources.Memory = memory
	}

	if rc.CPULimit != "" {
		cpus, err := strconv.ParseFloat(rc.CPULimit, 64)
		if err != nil || cpus <= 0 {
			return nil, fmt.Errorf("invalid CPU limit %q", rc.CPULimit)
		}
		hc.Resources.NanoCPUs = int64(cpus * 1e9)
	}

	return hc, nil
}

// RunFormatter runs the configured command on source inside a fresh
// container and returns its stdout. The container is always removed.
func (c *Client) RunFormatter(ctx context.Context, rc *RunConfig, source string) (string, error) {
	if err := rc.Validate(); err != nil {
		return "", errors.NewInvalidInputError(fmt.Sprintf("invalid container configuration: %v", err))
	}

	if err := c.ensureImage(ctx, rc.Image); err != nil {
		return "", err
	}

	hostConfig, _ := rc.hostConfig()
	cmd := append(append([]string(nil), rc.Command...), InputPath)

	created, err := c.api.ContainerCreate(ctx, &container.Config{
		Image:      rc.Image,
		Cmd:        cmd,
		WorkingDir: "/tmp",
		Env:        []string{"NPM_CONFIG_UPDATE_NOTIFIER=false", "NPM_CONFIG_FUND=false"},
	}, hostConfig, nil, nil, containerName())
	if err != nil {
		return "", errors.Wrapf(errors.ErrContainerExecutionFailed, err, "failed to create container from %s", rc.Image)
	}
	containerID := created.ID

	defer func() {
		// The run context may already be cancelled.
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = c.api.ContainerRemove(cleanupCtx, containerID, container.RemoveOptions{Force: true})
	}()

	archive, err := buildInputArchive(source)
	if err != nil {
		return "", errors.NewContainerExecutionError(err, containerID)
	}
	if err := c.api.CopyToContainer(ctx, containerID, path.Dir(InputDir), archive, container.CopyToContainerOptions{}); err != nil {
		return "", errors.NewContainerExecutionError(fmt.Errorf("failed to copy source: %w", err), containerID)
	}

	if err := c.api.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return "", errors.NewContainerExecutionError(fmt.Errorf("failed to start container: %w", err), containerID)
	}

	exitCode, err := c.waitForContainer(ctx, containerID)
	if err != nil {
		return "", err
	}

	stdout, stderr, err := c.containerOutput(ctx, containerID)
	if err != nil {
		return "", err
	}

	if exitCode != 0 {
		return "", errors.NewContainerExecutionError(
			fmt.Errorf("exit code %d: %s", exitCode, strings.TrimSpace(stderr)), containerID).
			WithContext("exit_code", exitCode)
	}

	return stdout, nil
}

// waitForContainer waits for a container to stop and returns its exit code
func (c *Client) waitForContainer(ctx context.Context, containerID string) (int64, error) {
	statusCh, errCh := c.api.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if ctx.Err() != nil {
			return -1, errors.Wrap(errors.ErrTimeout, ctx.Err(), "formatter container did not finish")
		}
		return -1, errors.NewContainerExecutionError(fmt.Errorf("failed to wait for container: %w", err), containerID)
	case status := <-statusCh:
		if status.Error != nil && status.Error.Message != "" {
			return -1, errors.NewContainerExecutionError(fmt.Errorf("%s", status.Error.Message), containerID)
		}
		return status.StatusCode, nil
	}
}

// containerOutput demultiplexes the container's stdout and stderr
func (c *Client) containerOutput(ctx context.Context, containerID string) (string, string, error) {
	logs, err := c.api.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", "", errors.NewContainerExecutionError(fmt.Errorf("failed to get container logs: %w", err), containerID)
	}
	defer logs.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		return "", "", errors.NewContainerExecutionError(fmt.Errorf("failed to read container logs: %w", err), containerID)
	}
	return stdout.String(), stderr.String(), nil
}

// ensureImage pulls the image unless it is already present locally
func (c *Client) ensureImage(ctx context.Context, ref string) error {
	if _, err := c.api.ImageInspect(ctx, ref); err == nil {
		return nil
	}

	progress, err := c.api.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return errors.Wrapf(errors.ErrContainerExecutionFailed, err, "failed to pull image %s", ref)
	}
	defer progress.Close()

	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, progress); err != nil {
		return errors.Wrapf(errors.ErrContainerExecutionFailed, err, "failed to pull image %s", ref)
	}
	return nil
}

// buildInputArchive packs source as <InputDir>/<InputName> relative to the
// parent of InputDir, the layout CopyToContainer expects
func buildInputArchive(source string) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	now := time.Now()

	dir := path.Base(InputDir)
	if err := tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeDir,
		Name:     dir + "/",
		Mode:     0755,
		ModTime:  now,
	}); err != nil {
		return nil, fmt.Errorf("failed to write archive directory: %w", err)
	}

	if err := tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeReg,
		Name:     path.Join(dir, InputName),
		Mode:     0644,
		Size:     int64(len(source)),
		ModTime:  now,
	}); err != nil {
		return nil, fmt.Errorf("failed to write archive header: %w", err)
	}
	if _, err := io.WriteString(tw, source); err != nil {
		return nil, fmt.Errorf("failed to write archive content: %w", err)
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close archive: %w", err)
	}
	return &buf, nil
}

func containerName() string {
	return fmt.Sprintf("jsprettify-%d", time.Now().UnixNano())
}
