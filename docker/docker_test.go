package docker

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	client, err := NewClient()
	if err != nil {
		t.Fatalf("Failed to create Docker client: %v", err)
	}
	defer client.Close()

	if client == nil {
		t.Error("Expected non-nil client")
	}
}

func TestRunConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  *RunConfig
		wantErr bool
	}{
		{
			name:    "empty config",
			config:  &RunConfig{},
			wantErr: true,
		},
		{
			name: "missing image",
			config: &RunConfig{
				Command: []string{"npx", "prettier"},
			},
			wantErr: true,
		},
		{
			name: "missing command",
			config: &RunConfig{
				Image: "node:20-alpine",
			},
			wantErr: true,
		},
		{
			name: "invalid memory",
			config: &RunConfig{
				Image:   "node:20-alpine",
				Command: []string{"npx", "prettier"},
				Memory:  "plenty",
			},
			wantErr: true,
		},
		{
			name: "invalid cpu limit",
			config: &RunConfig{
				Image:    "node:20-alpine",
				Command:  []string{"npx", "prettier"},
				CPULimit: "0",
			},
			wantErr: true,
		},
		{
			name: "valid config",
			config: &RunConfig{
				Image:       "node:20-alpine",
				Command:     []string{"npx", "--yes", "prettier@3"},
				Memory:      "512m",
				CPULimit:    "1.5",
				NetworkMode: "bridge",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHostConfig(t *testing.T) {
	rc := &RunConfig{
		Image:       "node:20-alpine",
		Command:     []string{"npx"},
		Memory:      "512m",
		CPULimit:    "0.5",
		NetworkMode: "none",
	}

	hc, err := rc.hostConfig()
	if err != nil {
		t.Fatalf("hostConfig() failed: %v", err)
	}
	if hc.Resources.Memory != 512*1024*1024 {
		t.Errorf("Expected memory 512MiB, got %d", hc.Resources.Memory)
	}
	if hc.Resources.NanoCPUs != 500000000 {
		t.Errorf("Expected 0.5 CPU, got %d nano CPUs", hc.Resources.NanoCPUs)
	}
	if string(hc.NetworkMode) != "none" {
		t.Errorf("Expected network mode none, got %s", hc.NetworkMode)
	}
}

func TestBuildInputArchive(t *testing.T) {
	source := "let a = `x`;\n"
	archive, err := buildInputArchive(source)
	if err != nil {
		t.Fatalf("buildInputArchive() failed: %v", err)
	}

	tr := tar.NewReader(archive)
	var names []string
	var content string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Failed to read archive: %v", err)
		}
		names = append(names, hdr.Name)
		if hdr.Typeflag == tar.TypeReg {
			data, err := io.ReadAll(tr)
			if err != nil {
				t.Fatalf("Failed to read archive entry: %v", err)
			}
			content = string(data)
		}
	}

	if strings.Join(names, ",") != "jsprettify/,jsprettify/input.js" {
		t.Errorf("Unexpected archive entries: %v", names)
	}
	if content != source {
		t.Errorf("Expected archived content %q, got %q", source, content)
	}
	if InputPath != "/tmp/jsprettify/input.js" {
		t.Errorf("Unexpected input path %s", InputPath)
	}
}

// TestRunFormatter needs a Docker daemon and network access to npm, so it
// only runs when JSPRETTIFY_DOCKER_TESTS is set.
func TestRunFormatter(t *testing.T) {
	if os.Getenv("JSPRETTIFY_DOCKER_TESTS") == "" {
		t.Skip("Set JSPRETTIFY_DOCKER_TESTS to run container tests")
	}

	client, err := NewClient()
	if err != nil {
		t.Fatalf("Failed to create Docker client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		t.Skipf("Docker daemon not reachable: %v", err)
	}

	out, err := client.RunFormatter(ctx, &RunConfig{
		Image:   "node:20-alpine",
		Command: []string{"cat"},
	}, "let a=1;")
	if err != nil {
		t.Fatalf("RunFormatter() failed: %v", err)
	}
	if out != "let a=1;" {
		t.Errorf("Expected container to echo the input, got %q", out)
	}
}
