// Package container builds hardened container-engine command lines
// (docker or podman) for running the TS or Python interpreter inside
// an isolated container. It never touches namespaces or cgroups
// itself; isolation is always delegated to the external engine binary.
package container

import (
	"fmt"
	"strconv"
	"strings"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"mvdan.cc/sh/v3/syntax"
)

// Mount is a bind mount from the host into the container. ReadOnly
// mirrors the common case of mounting assets/manifests without letting
// the child mutate them.
type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// toSpec renders a Mount as a typed OCI mount descriptor, the
// intermediate representation this package uses before flattening to
// CLI flags. Keeps mount construction testable independent of the
// exact engine's flag syntax.
func (m Mount) toSpec() specs.Mount {
	options := []string{"rbind"}
	if m.ReadOnly {
		options = append(options, "ro")
	} else {
		options = append(options, "rw")
	}
	return specs.Mount{
		Source:      m.Source,
		Destination: m.Target,
		Type:        "bind",
		Options:     options,
	}
}

// Limits bounds the resources a container may consume.
type Limits struct {
	MemoryMB int
	CPUs     float64
	PIDs     int
}

// Spec is everything needed to build a `docker run`/`podman run`
// invocation for one execution.
type Spec struct {
	Engine  string // "docker" or "podman"
	Image   string
	Mounts  []Mount
	Env     map[string]string
	Limits  Limits
	WorkDir string
	Command []string // interpreter + args, run as the container entrypoint
}

// BuildArgs renders Spec into the argument list following Path for
// exec.Command. The hardened flag set (dropped capabilities, no new
// privileges, resource limits, bridge networking only, a fixed
// host.docker.internal alias) matches the posture a sandboxed code
// execution container needs regardless of language backend.
func (s Spec) BuildArgs() []string {
	args := []string{
		"run", "--rm",
		"--security-opt", "no-new-privileges:true",
		"--cap-drop", "ALL",
		"--network", "bridge",
		"--add-host", "host.docker.internal:host-gateway",
	}

	if s.Limits.MemoryMB > 0 {
		args = append(args, "--memory", fmt.Sprintf("%dm", s.Limits.MemoryMB))
	}
	if s.Limits.CPUs > 0 {
		args = append(args, "--cpus", strconv.FormatFloat(s.Limits.CPUs, 'f', -1, 64))
	}
	if s.Limits.PIDs > 0 {
		args = append(args, "--pids-limit", strconv.Itoa(s.Limits.PIDs))
	}

	for _, m := range s.Mounts {
		spec := m.toSpec()
		args = append(args, "--mount", fmt.Sprintf(
			"type=%s,source=%s,destination=%s,%s",
			spec.Type, spec.Source, spec.Destination, strings.Join(spec.Options, ","),
		))
	}

	for k, v := range s.Env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}

	if s.WorkDir != "" {
		args = append(args, "-w", s.WorkDir)
	}

	args = append(args, s.Image)
	args = append(args, s.Command...)
	return args
}

// QuoteShellCommand joins parts into a single POSIX-shell-safe string
// suitable for interpolation into a `bash -c '...'` invocation, used
// when the container entrypoint runs its command through bash rather
// than execing the binary directly. Every part is quoted as one word,
// so shell operators such as "&&" passed as parts are not interpreted.
func QuoteShellCommand(parts ...string) (string, error) {
	quoted := make([]string, len(parts))
	for i, p := range parts {
		q, err := syntax.Quote(p, syntax.LangBash)
		if err != nil {
			return "", fmt.Errorf("container: quote %q: %w", p, err)
		}
		quoted[i] = q
	}
	return strings.Join(quoted, " "), nil
}
