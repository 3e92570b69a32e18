package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/streamops/sentinel/internal/api"
	"github.com/streamops/sentinel/internal/audit"
	"github.com/streamops/sentinel/internal/domain"
)

// Client is an HTTP client for the sentinel diagnostics API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetStatus gets monitor status
func (c *Client) GetStatus() (*api.StatusResponse, error) {
	var resp api.StatusResponse
	if err := c.get("/api/v1/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetHealth gets the full diagnostics snapshot
func (c *Client) GetHealth() (*domain.DiagnosticsSnapshot, error) {
	var resp domain.DiagnosticsSnapshot
	if err := c.get("/api/v1/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetServices gets all monitored services
func (c *Client) GetServices() (*api.ServiceListResponse, error) {
	var resp api.ServiceListResponse
	if err := c.get("/api/v1/services", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetService gets a single service
func (c *Client) GetService(name string) (*api.ServiceDetailResponse, error) {
	var resp api.ServiceDetailResponse
	if err := c.get("/api/v1/services/"+url.PathEscape(name), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetResources gets the latest system resource snapshot
func (c *Client) GetResources() (*domain.SystemHealthSnapshot, error) {
	var resp domain.SystemHealthSnapshot
	if err := c.get("/api/v1/resources", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// InterventionParams contains parameters for intervention queries
type InterventionParams struct {
	Services []string
	Limit    int
}

// GetInterventions gets recent recovery interventions
func (c *Client) GetInterventions(params InterventionParams) (*api.InterventionListResponse, error) {
	query := url.Values{}
	if len(params.Services) > 0 {
		query.Set("service", strings.Join(params.Services, ","))
	}
	if params.Limit > 0 {
		query.Set("limit", fmt.Sprintf("%d", params.Limit))
	}

	path := "/api/v1/interventions"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var resp api.InterventionListResponse
	if err := c.get(path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StreamEvents streams audit events and calls the callback for each one.
// Blocks until the server closes the stream or ctx is cancelled.
func (c *Client) StreamEvents(ctx context.Context, services []string, eventType string, callback func(audit.Event)) error {
	query := url.Values{}
	if len(services) > 0 {
		query.Set("service", strings.Join(services, ","))
	}
	if eventType != "" {
		query.Set("type", eventType)
	}

	path := "/api/v1/events/stream"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream is long-lived; the default client timeout would kill it
	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF || ctx.Err() != nil {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		if strings.HasPrefix(line, "data: ") {
			data := strings.TrimPrefix(line, "data: ")
			var event audit.Event
			if err := json.Unmarshal([]byte(data), &event); err == nil {
				callback(event)
			}
		}
	}
}

func (c *Client) get(path string, v interface{}) error {
	req, err := http.NewRequest("GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
			return fmt.Errorf("%s: %s", errResp.Code, errResp.Error)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(v)
}
