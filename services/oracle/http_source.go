package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openclaims/coverd/config"
	"github.com/openclaims/coverd/models"
)

// HTTPSource queries a target's attestation endpoint over HTTP.
// The endpoint is expected to answer GET /claims/{user} with
// {"claimed": bool}.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPSource creates an HTTP attestation source for a single endpoint
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSource{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type claimStatusResponse struct {
	Claimed bool `json:"claimed"`
}

// IsClaimed queries the endpoint for the user's claim status
func (s *HTTPSource) IsClaimed(ctx context.Context, target, user models.Address) (bool, error) {
	url := fmt.Sprintf("%s/claims/%s", s.baseURL, user)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("attestation request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("failed to read attestation response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("attestation endpoint returned status %d", resp.StatusCode)
	}

	var status claimStatusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return false, fmt.Errorf("failed to decode attestation response: %w", err)
	}

	return status.Claimed, nil
}

// NewRegistryFromConfig builds a registry with an HTTP source per
// configured target endpoint
func NewRegistryFromConfig(cfg config.OracleConfig) *Registry {
	registry := NewRegistry()
	for target, endpoint := range cfg.Endpoints {
		registry.Register(models.Address(target), NewHTTPSource(endpoint, cfg.Timeout))
	}
	return registry
}
