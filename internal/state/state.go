package state

// Config is the single durable record the bot operates on. Field names in
// the JSON file are fixed; external tooling reads the same file.
type Config struct {
	FPSChannel            string   `json:"fps_channel"`
	BansChannel           string   `json:"bans_channel"`
	OwnerID               string   `json:"owner_id"`
	AdminRole             string   `json:"admin_role"`
	ServiceName           string   `json:"service_name"`
	LastMessageID         string   `json:"last_message_id"`
	PostedBans            []string `json:"posted_bans"`
	BattlemetricsToken    string   `json:"battlemetrics_token"`
	BattlemetricsServerID string   `json:"battlemetrics_server_id"`
}

const DefaultServiceName = "arma3server"

func defaultConfig() Config {
	return Config{
		ServiceName: DefaultServiceName,
		PostedBans:  []string{},
	}
}

// HasPostedBan reports whether the ban ID has already been announced.
func (c *Config) HasPostedBan(id string) bool {
	for _, b := range c.PostedBans {
		if b == id {
			return true
		}
	}
	return false
}

func (c Config) clone() Config {
	out := c
	out.PostedBans = make([]string, len(c.PostedBans))
	copy(out.PostedBans, c.PostedBans)
	return out
}
