package hubclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	_ "embed"

	"github.com/KevinKickass/PowerWatchdog/internal/power"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	connectTimeout = 5 * time.Second
	requestTimeout = 10 * time.Second
)

//go:embed schema/config-response-v1.json
var configResponseSchemaJSON string

// Client talks to the hub's three endpoints. Every call carries the bearer
// token and is bounded by its own timeout; a hang in one call cannot block
// the others.
type Client struct {
	baseURL      string
	token        string
	httpClient   *http.Client
	configSchema *jsonschema.Schema
}

// RemoteConfig is the hub's answer on GET /config. Optional fields are
// pointers so "absent" and "zero value" stay distinguishable.
type RemoteConfig struct {
	ShutdownDelay   int     `json:"shutdown_delay"`
	UPSName         *string `json:"ups_name,omitempty"`
	IgnoreSimulated *bool   `json:"ignore_simulated,omitempty"`
}

// StatusReport is the fire-and-forget message on POST /status.
type StatusReport struct {
	IP               string `json:"ip"`
	Status           string `json:"status"`
	RemainingSeconds int64  `json:"remaining_seconds"`
	ShutdownDelay    int    `json:"shutdown_delay"`
}

func New(baseURL, token string) (*Client, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config-response-v1.json",
		strings.NewReader(configResponseSchemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	schema, err := compiler.Compile("config-response-v1.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
		configSchema: schema,
	}, nil
}

// FetchConfig asks the hub for this client's effective settings. The response
// is schema-validated before it may overwrite anything cached locally.
func (c *Client) FetchConfig(ctx context.Context, clientIP string) (*RemoteConfig, error) {
	endpoint := c.baseURL + "/config"
	if clientIP != "" {
		endpoint += "?ip=" + url.QueryEscape(clientIP)
	}

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var generic any
	if err := json.Unmarshal(body, &generic); err != nil {
		return nil, fmt.Errorf("invalid config response JSON: %w", err)
	}
	if err := c.configSchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("config response rejected: %w", err)
	}

	var remote RemoteConfig
	if err := json.Unmarshal(body, &remote); err != nil {
		return nil, fmt.Errorf("failed to decode config response: %w", err)
	}
	return &remote, nil
}

// FetchStatus asks the hub for the current UPS status. Any failure here is
// fatal for the run: without a status no countdown decision can be made.
func (c *Client) FetchStatus(ctx context.Context) (power.Reading, error) {
	body, err := c.get(ctx, c.baseURL+"/upsc")
	if err != nil {
		return power.Reading{}, err
	}

	var resp struct {
		UPS struct {
			Status    *string `json:"status"`
			Simulated bool    `json:"simulated"`
		} `json:"ups"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return power.Reading{}, fmt.Errorf("invalid status response JSON: %w", err)
	}
	if resp.UPS.Status == nil {
		return power.Reading{}, fmt.Errorf("status response missing ups.status field")
	}

	return power.Reading{
		Status:    *resp.UPS.Status,
		Simulated: resp.UPS.Simulated,
	}, nil
}

// Read makes the hub a power.Source.
func (c *Client) Read(ctx context.Context) (power.Reading, error) {
	return c.FetchStatus(ctx)
}

// Report pushes the client's current phase to the hub. Callers treat this as
// best effort and discard the error.
func (c *Client) Report(ctx context.Context, report StatusReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/status", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build report request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("report failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("report rejected: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, endpoint)
	}
	return body, nil
}
