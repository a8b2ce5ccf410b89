package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sealevel-monitor/dashboard/services/ingest/internal/models"
)

// FetchReadings retrieves the current station readings.
func FetchReadings(ctx context.Context, client *http.Client, url string) (models.FeedResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.FeedResponse{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return models.FeedResponse{}, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.FeedResponse{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var payload models.FeedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return models.FeedResponse{}, fmt.Errorf("decode payload: %w", err)
	}

	return payload, nil
}
