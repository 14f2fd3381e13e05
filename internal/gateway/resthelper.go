package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openpayflow/orchestrator/internal/faults"
)

// restClient is the shared shape every REST-backed adapter (Stripe,
// Razorpay) builds its calls on — the same build-request/set-headers/
// check-status/wrap-error flow as the teacher's WahaService.makeRequest,
// generalized from a single hardcoded API key header to a pluggable
// auth-header setter.
type restClient struct {
	baseURL    string
	httpClient *http.Client
	setAuth    func(r *http.Request)
}

func newRESTClient(baseURL string, timeout time.Duration, setAuth func(r *http.Request)) *restClient {
	return &restClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		setAuth:    setAuth,
	}
}

func (c *restClient) do(ctx context.Context, method, path string, payload interface{}) (json.RawMessage, int, error) {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal payload: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.setAuth != nil {
		c.setAuth(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &faults.GatewayFault{Message: "provider request failed", Cause: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		return nil, resp.StatusCode, &faults.GatewayFault{
			Message:        fmt.Sprintf("provider returned %d", resp.StatusCode),
			HTTPStatusCode: resp.StatusCode,
			ProviderCode:   fmt.Sprintf("http_%d", resp.StatusCode),
		}
	}

	return json.RawMessage(body), resp.StatusCode, nil
}
