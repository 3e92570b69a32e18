package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/streamops/sentinel/internal/domain"
)

// maxHealthBody bounds how much of a healthcheck response body is read
const maxHealthBody = 64 * 1024

// HTTPProbe performs an HTTP GET against a healthcheck endpoint. Success
// requires status 200 and, when the body is JSON with a "status" field, an
// "ok" value. A 200 with an unparseable body is still healthy: many
// services return plain text from their health endpoints.
type HTTPProbe struct {
	client *http.Client
}

// NewHTTPProbe creates an HTTP probe with the given overall timeout
func NewHTTPProbe(timeout time.Duration) *HTTPProbe {
	return &HTTPProbe{
		client: &http.Client{Timeout: timeout},
	}
}

// healthBody is the optional structured healthcheck response
type healthBody struct {
	Status string `json:"status"`
}

// Check issues the GET and classifies transport errors so the correlation
// analyzer can tell a refused connection from a timeout.
func (p *HTTPProbe) Check(ctx context.Context, def domain.ServiceDefinition) domain.ProbeResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, def.Target, nil)
	if err != nil {
		return result(false, fmt.Sprintf("invalid healthcheck url: %v", err))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return result(false, classifyTransportError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return result(false, fmt.Sprintf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHealthBody))
	if err != nil {
		return result(false, fmt.Sprintf("reading body: %v", err))
	}

	var parsed healthBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		// Lenient: 200 with a non-JSON body is healthy
		return result(true, "")
	}
	if parsed.Status != "" && !strings.EqualFold(parsed.Status, "ok") {
		return result(false, fmt.Sprintf("status field %q", parsed.Status))
	}

	return result(true, "")
}

// classifyTransportError maps network errors onto the reasons the
// correlation analyzer keys on.
func classifyTransportError(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return "connection refused"
	}
	// url.Error wrapping varies by platform; fall back to text matching
	msg := err.Error()
	if strings.Contains(msg, "connection refused") {
		return "connection refused"
	}
	if strings.Contains(msg, "no such host") {
		return "unknown host"
	}
	return msg
}
