// API client for a running glance server
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/desertthunder/glance/internal/formatter"
	"github.com/desertthunder/glance/internal/gateway"
	"github.com/desertthunder/glance/internal/shared"
)

// HTTPHeaderPrefix prefixes the ingestion metadata headers on HTTP requests.
const HTTPHeaderPrefix = "X-Glance-"

// APIService provides methods for making requests to the glance HTTP API.
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIService creates a new API client for the server at baseURL.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:7340"
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// OK reports whether the status code is 2xx.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.do(ctx, http.MethodGet, path, nil, nil)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.do(ctx, http.MethodPost, path, data, map[string]string{"Content-Type": "application/json"})
}

func (a *APIService) do(ctx context.Context, method, path string, data []byte, headers map[string]string) (*APIResponse, error) {
	fullURL := a.baseURL + path

	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       raw,
	}

	var jsonData any
	if err := json.Unmarshal(raw, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// expect turns a non-2xx response into [shared.ErrAPIRequest].
func expect(resp *APIResponse, err error) (*APIResponse, error) {
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return resp, fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, strings.TrimSpace(string(resp.Body)))
	}
	return resp, nil
}

// PushResult is the body of a successful ingestion request.
type PushResult struct {
	Accepted int `json:"accepted"`
}

// Push sends a raw Update payload with its delivery metadata.
func (a *APIService) Push(ctx context.Context, payload []byte, meta gateway.Meta) (*PushResult, error) {
	headers := meta.Headers(HTTPHeaderPrefix)
	headers["Content-Type"] = "application/x-protobuf"

	resp, err := expect(a.do(ctx, http.MethodPost, "/v1/cards", payload, headers))
	if err != nil {
		return nil, err
	}

	var result PushResult
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode push response: %w", err)
	}
	return &result, nil
}

// State fetches the current card state.
func (a *APIService) State(ctx context.Context) (*formatter.StateView, error) {
	resp, err := expect(a.Get(ctx, "/v1/state"))
	if err != nil {
		return nil, err
	}

	var view formatter.StateView
	if err := json.Unmarshal(resp.Body, &view); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	return &view, nil
}

// Dump fetches the controller's text dump.
func (a *APIService) Dump(ctx context.Context) (string, error) {
	resp, err := expect(a.Get(ctx, "/debug/dump"))
	if err != nil {
		return "", err
	}
	return string(resp.Body), nil
}

// SwitchUser makes id the server's current user.
func (a *APIService) SwitchUser(ctx context.Context, id int) error {
	return a.postJSON(ctx, "/v1/user", map[string]int{"user_id": id})
}

// SetPrivacy toggles privacy mode.
func (a *APIService) SetPrivacy(ctx context.Context, enabled bool) error {
	return a.postJSON(ctx, "/v1/privacy", map[string]bool{"enabled": enabled})
}

// ProducerChanged reports a producer availability change.
func (a *APIService) ProducerChanged(ctx context.Context) error {
	return a.postJSON(ctx, "/v1/producer/changed", nil)
}

// TimeChanged reports a wall-clock change.
func (a *APIService) TimeChanged(ctx context.Context) error {
	return a.postJSON(ctx, "/v1/time/changed", nil)
}

// Reload asks the server to reload state from its store.
func (a *APIService) Reload(ctx context.Context) error {
	return a.postJSON(ctx, "/v1/reload", nil)
}

func (a *APIService) postJSON(ctx context.Context, path string, v any) error {
	data := []byte("{}")
	if v != nil {
		var err error
		if data, err = json.Marshal(v); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}
	_, err := expect(a.Post(ctx, path, data))
	return err
}
