package state

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadCreatesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	cfg := s.Get()
	if cfg.ServiceName != DefaultServiceName {
		t.Errorf("ServiceName = %q, want %q", cfg.ServiceName, DefaultServiceName)
	}
	if cfg.PostedBans == nil || len(cfg.PostedBans) != 0 {
		t.Errorf("PostedBans = %v, want empty slice", cfg.PostedBans)
	}

	// Defaults must be persisted immediately.
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("state file not created: %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want, err := s.Mutate(func(c *Config) {
		c.FPSChannel = "111"
		c.BansChannel = "222"
		c.OwnerID = "333"
		c.AdminRole = "444"
		c.ServiceName = "reforger"
		c.LastMessageID = "555"
		c.PostedBans = []string{"a", "b"}
		c.BattlemetricsToken = "tok"
		c.BattlemetricsServerID = "666"
	})
	if err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}

	// Fresh store from the same file must reproduce an identical value.
	s2, err := Load(path)
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if got := s2.Get(); !reflect.DeepEqual(got, want) {
		t.Errorf("reloaded config = %+v, want %+v", got, want)
	}
}

func TestRoundTripEmptyBanSet(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	if _, err := Load(path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	s2, err := Load(path)
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if got := s2.Get().PostedBans; got == nil || len(got) != 0 {
		t.Errorf("PostedBans after reload = %v, want empty slice", got)
	}
}

func TestFileKeys(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	if _, err := Load(path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read state file: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("state file is not a JSON object: %v", err)
	}

	keys := []string{
		"fps_channel", "bans_channel", "owner_id", "admin_role",
		"service_name", "last_message_id", "posted_bans",
		"battlemetrics_token", "battlemetrics_server_id",
	}
	for _, k := range keys {
		if _, ok := raw[k]; !ok {
			t.Errorf("state file missing key %q", k)
		}
	}
	if len(raw) != len(keys) {
		t.Errorf("state file has %d keys, want %d", len(raw), len(keys))
	}
}

func TestMutateRollbackOnPersistFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := s.Mutate(func(c *Config) { c.OwnerID = "1" }); err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}

	// Point the store at a path whose parent is a regular file so the
	// temp-file creation fails.
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	s.path = filepath.Join(blocker, "state.json")

	_, err = s.Mutate(func(c *Config) { c.OwnerID = "2" })
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("Mutate() error = %v, want ErrPersist", err)
	}
	if got := s.Get().OwnerID; got != "1" {
		t.Errorf("OwnerID after failed mutate = %q, want rollback to %q", got, "1")
	}
}

func TestMutateIsAllOrNothing(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			s.Mutate(func(c *Config) {
				c.FPSChannel = "9"
				c.BansChannel = "9"
			})
		}
	}()
	for i := 0; i < 50; i++ {
		s.Mutate(func(c *Config) {
			c.FPSChannel = "7"
			c.BansChannel = "7"
		})
		cfg := s.Get()
		if cfg.FPSChannel != cfg.BansChannel {
			t.Fatalf("observed torn mutation: fps=%q bans=%q", cfg.FPSChannel, cfg.BansChannel)
		}
	}
	<-done
}

func TestHasPostedBan(t *testing.T) {
	t.Parallel()

	c := Config{PostedBans: []string{"a", "b"}}
	if !c.HasPostedBan("a") {
		t.Error("HasPostedBan(a) = false, want true")
	}
	if c.HasPostedBan("c") {
		t.Error("HasPostedBan(c) = true, want false")
	}
}
