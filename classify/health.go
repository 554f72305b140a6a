package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pithecene-io/triage/iox"
)

// HealthStatus is the service's health response.
type HealthStatus struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	URL         string `json:"url"`
}

// Healthy reports whether the service is up with its model loaded.
func (h *HealthStatus) Healthy() bool {
	return h.Status == "ok" && h.ModelLoaded
}

// Health calls the service's health endpoint.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.HealthURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer iox.DrainClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Err: &StatusError{Code: resp.StatusCode}}
	}

	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("decode health: %w", err)}
	}
	status.URL = c.config.HealthURL
	return &status, nil
}
