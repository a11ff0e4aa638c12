package notify

import (
	"fmt"
	"strings"

	"github.com/reedfamily/gamewatch/internal/source"
)

func formatStatus(s *source.PerformanceSample) string {
	lines := []string{
		"🖥️ **Server Performance Report**",
		fmt.Sprintf("FPS: **%.1f** (Frame Time: avg %.1fms, max %.1fms)", s.FPS, s.FrameTimeAvg, s.FrameTimeMax),
		fmt.Sprintf("Memory: **%d MB**", s.MemoryKB/1024),
		"",
		"👥 **Server Population**",
		fmt.Sprintf("Players: **%d**", s.Players),
		fmt.Sprintf("AI Units: **%d**", s.AI),
		fmt.Sprintf("Vehicles: **%d**", s.Vehicles),
		"",
		"🌐 **Network Status**",
		fmt.Sprintf("Connected Clients: **%d**", s.Clients),
		fmt.Sprintf("Clients with Packet Loss: **%d**", s.PacketLossClients),
	}
	return strings.Join(lines, "\n")
}

func formatBan(rec source.BanRecord) string {
	expires := "Permanent"
	if !rec.Expires.IsZero() {
		expires = rec.Expires.UTC().Format("2006-01-02 15:04 UTC")
	}
	return fmt.Sprintf("🚫 **New Ban**\n**Player**: %s\n**Reason**: %s\n**Expires**: %s",
		rec.Player, rec.Reason, expires)
}
