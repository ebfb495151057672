// Package compose wraps the docker-compose CLI for the fixed ad-automation
// service fleet.
package compose

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mikeeai/adsdash/pkg/execrunner"
)

// ServiceNames is the fixed deployable set, in display order.
var ServiceNames = []string{
	"master",
	"image-generator",
	"performance-analyzer",
	"campaign-manager",
}

// ErrUnknownService rejects names outside the fixed set before any command runs.
type ErrUnknownService struct {
	Name string
}

func (e *ErrUnknownService) Error() string {
	return fmt.Sprintf("service %q not found", e.Name)
}

// ServiceDescriptor is the point-in-time status of one compose service.
type ServiceDescriptor struct {
	Name        string `json:"name"`
	Status      string `json:"status"` // "running" or "stopped"
	ContainerID string `json:"container_id,omitempty"`
}

// Running reports whether the descriptor maps to a live container.
func (d ServiceDescriptor) Running() bool { return d.Status == StatusRunning }

const (
	StatusRunning = "running"
	StatusStopped = "stopped"
)

// ServiceCLI drives docker-compose and docker through a bounded runner.
type ServiceCLI struct {
	runner execrunner.Runner
}

// NewServiceCLI wraps the given runner. The runner's working directory must be
// the compose project root.
func NewServiceCLI(runner execrunner.Runner) *ServiceCLI {
	return &ServiceCLI{runner: runner}
}

// KnownService reports whether name is in the fixed service set.
func KnownService(name string) bool {
	for _, s := range ServiceNames {
		if s == name {
			return true
		}
	}
	return false
}

func (c *ServiceCLI) checkName(name string) error {
	if !KnownService(name) {
		return &ErrUnknownService{Name: name}
	}
	return nil
}

// StatusOf resolves a service to its container id via compose, then asks the
// container runtime for the lifecycle state. The two-step indirection is
// deliberate: compose's own status text varies across versions, the inspect
// state field does not.
func (c *ServiceCLI) StatusOf(ctx context.Context, name string) (ServiceDescriptor, error) {
	if err := c.checkName(name); err != nil {
		return ServiceDescriptor{}, err
	}

	res, err := c.runner.Run(ctx, "docker-compose", "ps", "-q", name)
	if err != nil {
		return ServiceDescriptor{}, fmt.Errorf("compose ps: %w", err)
	}

	containerID := strings.TrimSpace(res.Stdout)
	if containerID == "" {
		return ServiceDescriptor{Name: name, Status: StatusStopped}, nil
	}

	res, err = c.runner.Run(ctx, "docker", "inspect", "-f", "{{.State.Status}}", containerID)
	if err != nil {
		return ServiceDescriptor{}, fmt.Errorf("docker inspect: %w", err)
	}

	status := StatusStopped
	if strings.TrimSpace(res.Stdout) == "running" {
		status = StatusRunning
	}
	return ServiceDescriptor{Name: name, Status: status, ContainerID: containerID}, nil
}

// StatusOfAll returns one descriptor per known service, in fixed order.
func (c *ServiceCLI) StatusOfAll(ctx context.Context) ([]ServiceDescriptor, error) {
	out := make([]ServiceDescriptor, 0, len(ServiceNames))
	for _, name := range ServiceNames {
		desc, err := c.StatusOf(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, desc)
	}
	return out, nil
}

// Up starts one service detached.
func (c *ServiceCLI) Up(ctx context.Context, name string) (string, error) {
	if err := c.checkName(name); err != nil {
		return "", err
	}
	return c.control(ctx, "up", "-d", name)
}

// UpAll starts the whole fleet detached.
func (c *ServiceCLI) UpAll(ctx context.Context) (string, error) {
	return c.control(ctx, "up", "-d")
}

// Stop stops one service.
func (c *ServiceCLI) Stop(ctx context.Context, name string) (string, error) {
	if err := c.checkName(name); err != nil {
		return "", err
	}
	return c.control(ctx, "stop", name)
}

// StopAll takes the whole fleet down.
func (c *ServiceCLI) StopAll(ctx context.Context) (string, error) {
	return c.control(ctx, "down")
}

// Restart restarts one service.
func (c *ServiceCLI) Restart(ctx context.Context, name string) (string, error) {
	if err := c.checkName(name); err != nil {
		return "", err
	}
	return c.control(ctx, "restart", name)
}

func (c *ServiceCLI) control(ctx context.Context, args ...string) (string, error) {
	res, err := c.runner.Run(ctx, "docker-compose", args...)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("docker-compose %s failed: %s", strings.Join(args, " "), strings.TrimSpace(res.Stderr))
	}
	return res.Stdout, nil
}

// Logs returns the last lines of one service's log. Compose writes some log
// text to stderr, so stderr is the fallback when stdout is empty.
func (c *ServiceCLI) Logs(ctx context.Context, name string, lines int) (string, error) {
	if err := c.checkName(name); err != nil {
		return "", err
	}
	if lines <= 0 {
		lines = 100
	}
	res, err := c.runner.Run(ctx, "docker-compose", "logs", "--tail", strconv.Itoa(lines), name)
	if err != nil {
		return "", err
	}
	if res.Stdout != "" {
		return res.Stdout, nil
	}
	return res.Stderr, nil
}

// LogsSince returns log text for one service scoped to the last N hours.
func (c *ServiceCLI) LogsSince(ctx context.Context, name string, hours int) (string, error) {
	if err := c.checkName(name); err != nil {
		return "", err
	}
	if hours <= 0 {
		hours = 1
	}
	res, err := c.runner.Run(ctx, "docker-compose", "logs", "--since", fmt.Sprintf("%dh", hours), name)
	if err != nil {
		return "", err
	}
	if res.Stdout != "" {
		return res.Stdout, nil
	}
	return res.Stderr, nil
}
