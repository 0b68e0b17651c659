package runner

import (
	"fmt"
	"time"

	"github.com/google/go-containerregistry/pkg/name"
)

// Backend selects how a runner spawns the child process.
type Backend int

const (
	// BackendAuto probes for a container engine and falls back to the host.
	BackendAuto Backend = iota
	// BackendHost always runs the interpreter as a direct host subprocess.
	BackendHost
	// BackendContainer always runs the interpreter inside a container.
	BackendContainer
)

// NodeLocation is advertised to the child via SHINKAI_NODE_LOCATION.
type NodeLocation struct {
	Protocol string
	Host     string
	Port     int
}

func (l NodeLocation) String() string {
	return fmt.Sprintf("%s://%s:%d", l.Protocol, l.Host, l.Port)
}

// ContainerString renders the endpoint as the child sees it when
// running inside a container: the host-mode address is meaningless
// across the container boundary, so the host is always substituted
// with host.docker.internal regardless of what Host names.
func (l NodeLocation) ContainerString() string {
	return fmt.Sprintf("%s://host.docker.internal:%d", l.Protocol, l.Port)
}

// Options configures a Runner. The zero value is not usable; start from
// DefaultOptions and override fields as needed.
type Options struct {
	Backend         Backend
	ContainerImage  string
	ContainerEngine string // "docker" or "podman"
	NodeLocation    NodeLocation
	DenoBinaryPath  string
	UvBinaryPath    string
	Timeout         time.Duration
	PristineCache   bool
	// ForceDenoInHost pins TS runs to the host backend. The process-wide
	// CI_FORCE_DENO_IN_HOST env var is consulted only when this is
	// false, so tests can override per-runner without touching global
	// state.
	ForceDenoInHost bool
}

// DefaultOptions returns a usable baseline: a fixed image tag, a
// loopback node location, and a generous default timeout.
func DefaultOptions() Options {
	return Options{
		Backend:         BackendAuto,
		ContainerImage:  "dcspark/shinkai-code-runner:0.9.3",
		ContainerEngine: "docker",
		NodeLocation:    NodeLocation{Protocol: "http", Host: "127.0.0.1", Port: 9550},
		DenoBinaryPath:  "deno",
		UvBinaryPath:    "uv",
		Timeout:         5 * time.Minute,
	}
}

// Validate checks option invariants that would otherwise surface as a
// confusing spawn failure deep inside a runner.
func (o Options) Validate() error {
	if o.ContainerImage != "" {
		if _, err := name.ParseReference(o.ContainerImage); err != nil {
			return fmt.Errorf("coderunner: invalid container image %q: %w", o.ContainerImage, err)
		}
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("coderunner: timeout must be positive, got %s", o.Timeout)
	}
	return nil
}
