package proc

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// SystemdController drives the game server through systemctl. The bot's
// user needs passwordless sudo for the restart unit.
type SystemdController struct{}

func (c *SystemdController) Restart(ctx context.Context, name string) error {
	out, err := exec.CommandContext(ctx, "sudo", "systemctl", "restart", name).CombinedOutput()
	if err != nil {
		return fmt.Errorf("systemctl restart %s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (c *SystemdController) Status(ctx context.Context, name string) (string, error) {
	out, err := exec.CommandContext(ctx, "systemctl", "is-active", name).Output()
	state := strings.TrimSpace(string(out))
	if state == "" {
		state = "unknown"
	}
	// is-active exits non-zero for any state but "active"; the state
	// string is still the answer.
	if err != nil && state == "unknown" {
		return state, fmt.Errorf("systemctl is-active %s: %w", name, err)
	}
	return state, nil
}

func (c *SystemdController) Close() error { return nil }
