package proc

import (
	"context"
	"fmt"
)

// Controller restarts and inspects the game-server service. The restart
// command resolves the target name from config at invocation time.
type Controller interface {
	Restart(ctx context.Context, name string) error
	Status(ctx context.Context, name string) (string, error)
	Close() error
}

// New selects a controller implementation by kind.
func New(kind string) (Controller, error) {
	switch kind {
	case "systemd":
		return &SystemdController{}, nil
	case "docker":
		return NewDockerController()
	default:
		return nil, fmt.Errorf("unknown controller kind %q", kind)
	}
}
