package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	DiscordToken  string
	GuildID       string
	DataDir       string
	StatePath     string
	TmuxSession   string
	PollInterval  time.Duration
	SourceTimeout time.Duration
	MaxPlayers    int
	ListenAddr    string
	APIToken      string
	Controller    string // "systemd" or "docker"
}

func Load() (*Config, error) {
	token := os.Getenv("GAMEWATCH_DISCORD_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("GAMEWATCH_DISCORD_TOKEN is not set")
	}

	dataDir := envOr("GAMEWATCH_DATA_DIR", "./data")
	dataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	interval, err := durationOr("GAMEWATCH_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}
	timeout, err := durationOr("GAMEWATCH_SOURCE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	maxPlayers, err := intOr("GAMEWATCH_MAX_PLAYERS", 128)
	if err != nil {
		return nil, err
	}

	controller := envOr("GAMEWATCH_CONTROLLER", "systemd")
	if controller != "systemd" && controller != "docker" {
		return nil, fmt.Errorf("GAMEWATCH_CONTROLLER must be systemd or docker, got %q", controller)
	}

	return &Config{
		DiscordToken:  token,
		GuildID:       os.Getenv("GAMEWATCH_GUILD"),
		DataDir:       dataDir,
		StatePath:     envOr("GAMEWATCH_STATE", filepath.Join(dataDir, "state.json")),
		TmuxSession:   envOr("GAMEWATCH_TMUX_SESSION", "arma_reforger"),
		PollInterval:  interval,
		SourceTimeout: timeout,
		MaxPlayers:    maxPlayers,
		ListenAddr:    envOr("GAMEWATCH_LISTEN", ":8080"),
		APIToken:      os.Getenv("GAMEWATCH_API_TOKEN"),
		Controller:    controller,
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func intOr(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
