package source

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// PerformanceSample is one reading of the game server's console output.
// It has no identity beyond "most recent"; a newer sample supersedes it.
type PerformanceSample struct {
	FPS               float64 `json:"fps"`
	FrameTimeAvg      float64 `json:"frame_time_avg"`
	FrameTimeMin      float64 `json:"frame_time_min"`
	FrameTimeMax      float64 `json:"frame_time_max"`
	MemoryKB          int64   `json:"memory_kb"`
	Players           int     `json:"players"`
	AI                int     `json:"ai"`
	Vehicles          int     `json:"vehicles"`
	Clients           int     `json:"clients"`
	PacketLossClients int     `json:"packet_loss_clients"`
}

// PerformanceReader pulls one sample from the live server session.
type PerformanceReader interface {
	ReadPerformance(ctx context.Context) (*PerformanceSample, error)
}

// TmuxReader scrapes performance lines from a tmux pane running the game
// server. Each scheduler tick is its own retry; the reader never retries
// internally.
type TmuxReader struct {
	Session string
	Timeout time.Duration

	// capture is swappable for tests; defaults to running tmux.
	capture func(ctx context.Context, session string) ([]byte, error)
}

func NewTmuxReader(session string, timeout time.Duration) *TmuxReader {
	return &TmuxReader{Session: session, Timeout: timeout, capture: capturePane}
}

func capturePane(ctx context.Context, session string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "tmux", "capture-pane", "-S", "-1000", "-E", "-1", "-t", session, "-p")
	return cmd.Output()
}

func (r *TmuxReader) ReadPerformance(ctx context.Context) (*PerformanceSample, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	capture := r.capture
	if capture == nil {
		capture = capturePane
	}
	out, err := capture(ctx, r.Session)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: session %s", ErrSourceTimeout, r.Session)
		}
		return nil, fmt.Errorf("%w: session %s: %v", ErrSourceUnavailable, r.Session, err)
	}

	return ParseCapture(string(out))
}

var (
	playersRe   = regexp.MustCompile(`Players connected: (\d+)`)
	fpsRe       = regexp.MustCompile(`FPS: ([\d.]+)`)
	frameTimeRe = regexp.MustCompile(`frame time \(avg: ([\d.]+) ms, min: ([\d.]+) ms, max: ([\d.]+) ms\)`)
	memRe       = regexp.MustCompile(`Mem: (\d+)`)
	aiRe        = regexp.MustCompile(`AI: (\d+)`)
	vehRe       = regexp.MustCompile(`Veh: (\d+)\s*\(`)
	clientRe    = regexp.MustCompile(`\[C\d+\]`)
	pktLossRe   = regexp.MustCompile(`PktLoss: [1-9]\d*/100`)
)

// ParseCapture extracts the latest performance sample from raw pane output.
// The pane may hold partial or garbled lines; only the newest matching FPS
// line counts, and the newest NETWORK line supplies the player count.
func ParseCapture(out string) (*PerformanceSample, error) {
	var fpsLine, playerLine string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "DEFAULT") && strings.Contains(line, "FPS:") {
			fpsLine = line
		}
		if strings.Contains(line, "NETWORK") && strings.Contains(line, "Players connected:") {
			playerLine = line
		}
	}
	if fpsLine == "" {
		return nil, fmt.Errorf("%w: no FPS line in capture", ErrParse)
	}

	m := fpsRe.FindStringSubmatch(fpsLine)
	if m == nil {
		return nil, fmt.Errorf("%w: malformed FPS line", ErrParse)
	}
	fps, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: FPS value %q", ErrParse, m[1])
	}

	s := &PerformanceSample{FPS: fps}
	if m := frameTimeRe.FindStringSubmatch(fpsLine); m != nil {
		s.FrameTimeAvg, _ = strconv.ParseFloat(m[1], 64)
		s.FrameTimeMin, _ = strconv.ParseFloat(m[2], 64)
		s.FrameTimeMax, _ = strconv.ParseFloat(m[3], 64)
	}
	if m := memRe.FindStringSubmatch(fpsLine); m != nil {
		s.MemoryKB, _ = strconv.ParseInt(m[1], 10, 64)
	}
	if m := aiRe.FindStringSubmatch(fpsLine); m != nil {
		s.AI, _ = strconv.Atoi(m[1])
	}
	if m := vehRe.FindStringSubmatch(fpsLine); m != nil {
		s.Vehicles, _ = strconv.Atoi(m[1])
	}
	s.Clients = len(clientRe.FindAllString(fpsLine, -1))
	s.PacketLossClients = len(pktLossRe.FindAllString(fpsLine, -1))

	if playerLine != "" {
		if m := playersRe.FindStringSubmatch(playerLine); m != nil {
			s.Players, _ = strconv.Atoi(m[1])
		}
	}
	return s, nil
}
