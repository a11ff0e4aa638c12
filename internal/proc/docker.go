package proc

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// DockerController drives a containerized game server. The service name in
// config is the container name (the Docker API accepts names and IDs
// interchangeably).
type DockerController struct {
	cli *client.Client
}

func NewDockerController() (*DockerController, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return &DockerController{cli: cli}, nil
}

func (c *DockerController) Restart(ctx context.Context, name string) error {
	timeout := 30
	if err := c.cli.ContainerRestart(ctx, name, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("restart container %s: %w", name, err)
	}
	return nil
}

func (c *DockerController) Status(ctx context.Context, name string) (string, error) {
	resp, err := c.cli.ContainerInspect(ctx, name)
	if err != nil {
		return "unknown", fmt.Errorf("inspect container %s: %w", name, err)
	}
	return resp.State.Status, nil
}

func (c *DockerController) Close() error {
	return c.cli.Close()
}
