package command

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/reedfamily/gamewatch/internal/proc"
	"github.com/reedfamily/gamewatch/internal/state"
)

var (
	// ErrNotAuthorized rejects a command without any state change. Always
	// surfaced to the caller.
	ErrNotAuthorized = errors.New("command: not authorized")
	// ErrAdminRoleUnset means an admin-gated command ran before any admin
	// role was bound.
	ErrAdminRoleUnset = errors.New("command: admin role not configured")
	// ErrRestartInFlight rejects a restart while another one is running.
	ErrRestartInFlight = errors.New("command: restart already in progress")
)

// Caller identifies who invoked a command.
type Caller struct {
	UserID  string
	RoleIDs []string
}

// BanSyncResetter re-arms the ban poller after credentials change.
// monitor.Monitor implements it.
type BanSyncResetter interface {
	ResetBanSource()
}

// Gate authorizes privileged commands against the owner/role bindings and
// funnels every mutation through the state store.
type Gate struct {
	store *state.Store
	ctl   proc.Controller
	bans  BanSyncResetter

	restartBusy atomic.Bool
}

func NewGate(store *state.Store, ctl proc.Controller, bans BanSyncResetter) *Gate {
	return &Gate{store: store, ctl: ctl, bans: bans}
}

func (g *Gate) isOwner(cfg state.Config, caller Caller) bool {
	return cfg.OwnerID != "" && cfg.OwnerID == caller.UserID
}

// isAdmin reports whether the caller holds the admin role. The owner
// implicitly passes admin checks.
func (g *Gate) isAdmin(cfg state.Config, caller Caller) error {
	if g.isOwner(cfg, caller) {
		return nil
	}
	if cfg.AdminRole == "" {
		return ErrAdminRoleUnset
	}
	for _, r := range caller.RoleIDs {
		if r == cfg.AdminRole {
			return nil
		}
	}
	return ErrNotAuthorized
}

func (g *Gate) requireOwner(caller Caller) (state.Config, error) {
	cfg := g.store.Get()
	if !g.isOwner(cfg, caller) {
		return cfg, ErrNotAuthorized
	}
	return cfg, nil
}

// SetOwner claims ownership. The very first invocation succeeds and binds
// the owner; afterwards only the existing owner may repeat it (a no-op).
func (g *Gate) SetOwner(caller Caller, userID string) (string, error) {
	cfg := g.store.Get()
	if cfg.OwnerID != "" {
		if g.isOwner(cfg, caller) {
			return fmt.Sprintf("Owner is already set to <@%s>.", cfg.OwnerID), nil
		}
		return "", fmt.Errorf("%w: owner has already been set", ErrNotAuthorized)
	}

	var raced bool
	if _, err := g.store.Mutate(func(c *state.Config) {
		if c.OwnerID != "" {
			raced = true
			return
		}
		c.OwnerID = userID
	}); err != nil {
		return "", err
	}
	if raced {
		return "", fmt.Errorf("%w: owner has already been set", ErrNotAuthorized)
	}
	return fmt.Sprintf("Owner has been set to <@%s>.", userID), nil
}

// GetOwner reports the current owner binding.
func (g *Gate) GetOwner(caller Caller) (string, error) {
	cfg := g.store.Get()
	if cfg.OwnerID == "" {
		return "No owner has been set yet.", nil
	}
	return fmt.Sprintf("The current owner is <@%s>.", cfg.OwnerID), nil
}

// SetAdminRole binds the admin role. Owner only.
func (g *Gate) SetAdminRole(caller Caller, roleID string) (string, error) {
	if _, err := g.requireOwner(caller); err != nil {
		return "", err
	}
	if _, err := g.store.Mutate(func(c *state.Config) { c.AdminRole = roleID }); err != nil {
		return "", err
	}
	return fmt.Sprintf("Admin role has been set to <@&%s>.", roleID), nil
}

// SetBattleMetrics stores the ban-source credentials and re-arms the ban
// poller. Owner only.
func (g *Gate) SetBattleMetrics(caller Caller, token, serverID string) (string, error) {
	if _, err := g.requireOwner(caller); err != nil {
		return "", err
	}
	if _, err := g.store.Mutate(func(c *state.Config) {
		c.BattlemetricsToken = token
		c.BattlemetricsServerID = serverID
	}); err != nil {
		return "", err
	}
	g.bans.ResetBanSource()
	return "BattleMetrics configuration has been updated.", nil
}

// ClearBans empties the posted-ban set; the next sync re-announces every
// listed ban. Owner only.
func (g *Gate) ClearBans(caller Caller) (string, error) {
	if _, err := g.requireOwner(caller); err != nil {
		return "", err
	}
	if _, err := g.store.Mutate(func(c *state.Config) { c.PostedBans = []string{} }); err != nil {
		return "", err
	}
	return "Posted bans list has been cleared.", nil
}

// SetService changes the restart target. Admin only.
func (g *Gate) SetService(caller Caller, name string) (string, error) {
	cfg := g.store.Get()
	if err := g.isAdmin(cfg, caller); err != nil {
		return "", err
	}
	if _, err := g.store.Mutate(func(c *state.Config) { c.ServiceName = name }); err != nil {
		return "", err
	}
	return fmt.Sprintf("Service name has been set to %s.", name), nil
}

// SetBansChannel binds the ban notification channel. Admin only.
func (g *Gate) SetBansChannel(caller Caller, channelID string) (string, error) {
	cfg := g.store.Get()
	if err := g.isAdmin(cfg, caller); err != nil {
		return "", err
	}
	if _, err := g.store.Mutate(func(c *state.Config) { c.BansChannel = channelID }); err != nil {
		return "", err
	}
	return "Ban notifications will now be sent to this channel.", nil
}

// SetFPSChannel binds the performance channel. No restriction beyond
// channel access.
func (g *Gate) SetFPSChannel(caller Caller, channelID string) (string, error) {
	if _, err := g.store.Mutate(func(c *state.Config) { c.FPSChannel = channelID }); err != nil {
		return "", err
	}
	return "Performance updates will now be sent to this channel.", nil
}

// Restart restarts the configured service. Admin only, and never runs
// concurrently with itself: a second request while one is in flight is
// rejected.
func (g *Gate) Restart(ctx context.Context, caller Caller) (string, error) {
	cfg := g.store.Get()
	if err := g.isAdmin(cfg, caller); err != nil {
		return "", err
	}

	if !g.restartBusy.CompareAndSwap(false, true) {
		return "", ErrRestartInFlight
	}
	defer g.restartBusy.Store(false)

	job := uuid.New().String()[:8]
	log.Printf("command: restart %s requested by %s (job %s)", cfg.ServiceName, caller.UserID, job)
	if err := g.ctl.Restart(ctx, cfg.ServiceName); err != nil {
		return "", fmt.Errorf("restart %s (job %s): %w", cfg.ServiceName, job, err)
	}
	return fmt.Sprintf("Service %s has been restarted (job %s).", cfg.ServiceName, job), nil
}

// Status reports the service state.
func (g *Gate) Status(ctx context.Context, caller Caller) (string, error) {
	cfg := g.store.Get()
	st, err := g.ctl.Status(ctx, cfg.ServiceName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Service %s is %s.", cfg.ServiceName, st), nil
}
