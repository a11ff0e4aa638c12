package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// BanRecord is one ban as reported by the moderation API. Identity is the
// external ID, which doubles as the dedup key.
type BanRecord struct {
	ID      string    `json:"id"`
	Player  string    `json:"player"`
	Reason  string    `json:"reason"`
	Expires time.Time `json:"expires"` // zero means permanent
}

// BanReader pulls the current ban list for a server.
type BanReader interface {
	ReadBans(ctx context.Context, token, serverID string) ([]BanRecord, error)
}

const battleMetricsBaseURL = "https://api.battlemetrics.com"

// BattleMetricsClient reads active bans from the BattleMetrics HTTP API.
type BattleMetricsClient struct {
	BaseURL string
	http    *http.Client
}

func NewBattleMetricsClient(timeout time.Duration) *BattleMetricsClient {
	return &BattleMetricsClient{
		BaseURL: battleMetricsBaseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// ReadBans returns unexpired bans in the order the API reports them, which
// keeps dedup against the posted-ban set deterministic.
func (c *BattleMetricsClient) ReadBans(ctx context.Context, token, serverID string) ([]BanRecord, error) {
	if token == "" || serverID == "" {
		return nil, fmt.Errorf("%w: battlemetrics credentials not configured", ErrAuth)
	}

	q := url.Values{}
	q.Set("filter[server]", serverID)
	q.Set("filter[expired]", "false")
	q.Set("include", "user,server")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/bans?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: battlemetrics returned %d", ErrAuth, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: battlemetrics returned 429", ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: battlemetrics returned %d", ErrNetwork, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	var payload bansResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode bans: %v", ErrParse, err)
	}

	records := make([]BanRecord, 0, len(payload.Data))
	for _, entry := range payload.Data {
		rec := BanRecord{
			ID:     entry.ID,
			Player: "Unknown",
			Reason: entry.Attributes.Reason,
		}
		if rec.Reason == "" {
			rec.Reason = "No reason provided"
		}
		for _, ident := range entry.Attributes.Identifiers {
			if ident.Type == "name" && ident.Identifier != "" {
				rec.Player = ident.Identifier
				break
			}
		}
		if entry.Attributes.Expires != "" {
			if t, err := time.Parse(time.RFC3339, entry.Attributes.Expires); err == nil {
				rec.Expires = t
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

type bansResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Reason      string `json:"reason"`
			Expires     string `json:"expires"`
			Identifiers []struct {
				Type       string `json:"type"`
				Identifier string `json:"identifier"`
			} `json:"identifiers"`
		} `json:"attributes"`
	} `json:"data"`
}
