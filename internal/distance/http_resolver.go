// Package distance talks to the external service that maps a delivery
// address to its serving branch and road distance.
package distance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rental-quote-backend/internal/domain"
	"rental-quote-backend/internal/logger"
)

// HTTPResolver calls GET {base}/distance?address=... and decodes a
// DistanceResult from the JSON body.
type HTTPResolver struct {
	baseURL string
	client  *http.Client
}

func NewHTTPResolver(baseURL string, timeout time.Duration) *HTTPResolver {
	return &HTTPResolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (r *HTTPResolver) ResolveDistance(ctx context.Context, address string) (*domain.DistanceResult, error) {
	endpoint := r.baseURL + "/distance?" + url.Values{"address": {address}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build distance request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	logger.ExternalServiceCall("DistanceResolver", "ResolveDistance", "address", address)
	resp, err := r.client.Do(req)
	if err != nil {
		logger.ExternalServiceResult("DistanceResolver", "ResolveDistance", err)
		return nil, fmt.Errorf("distance request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("distance resolver returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		logger.ExternalServiceResult("DistanceResolver", "ResolveDistance", err)
		return nil, err
	}

	var result domain.DistanceResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		logger.ExternalServiceResult("DistanceResolver", "ResolveDistance", err)
		return nil, fmt.Errorf("decode distance response: %w", err)
	}
	if result.DistanceMiles < 0 {
		return nil, fmt.Errorf("distance resolver returned negative distance %v", result.DistanceMiles)
	}
	logger.ExternalServiceResult("DistanceResolver", "ResolveDistance", nil,
		"branch", result.BranchName, "miles", result.DistanceMiles, "estimated", result.DistanceEstimated)
	return &result, nil
}
