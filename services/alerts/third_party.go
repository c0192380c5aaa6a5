package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dbifleet/go-tire-fleet-system/shared/models"
)

// WebhookClient delivers tire events to the tenant's external alerting
// endpoint (Slack bridge, telematics platform, etc).
type WebhookClient struct {
	endpoint    string
	httpClient  *http.Client
	connected   bool
	lastSuccess time.Time
	lastError   error
	mutex       sync.RWMutex
}

// NewWebhookClient creates a webhook client for the given endpoint
func NewWebhookClient(endpoint string) *WebhookClient {
	return &WebhookClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		connected: false,
	}
}

// SendTireEvent posts one tire event to the webhook endpoint
func (c *WebhookClient) SendTireEvent(event models.TireEvent) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	payload := map[string]interface{}{
		"event_type": event.EventType,
		"data":       event,
		"timestamp":  time.Now(),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		c.lastError = fmt.Errorf("failed to marshal tire event: %w", err)
		return c.lastError
	}

	req, err := http.NewRequest("POST", c.endpoint+"/tire-events", bytes.NewBuffer(jsonData))
	if err != nil {
		c.lastError = fmt.Errorf("failed to create request: %w", err)
		return c.lastError
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", event.TenantID.String())
	req.Header.Set("X-Tire-ID", event.TireID.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.lastError = fmt.Errorf("failed to deliver tire event: %w", err)
		return c.lastError
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.lastError = fmt.Errorf("webhook returned status %d", resp.StatusCode)
		return c.lastError
	}

	c.connected = true
	c.lastSuccess = time.Now()
	c.lastError = nil
	return nil
}

// GetStatus returns the current delivery status
func (c *WebhookClient) GetStatus() map[string]interface{} {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	status := map[string]interface{}{
		"connected":    c.connected,
		"endpoint":     c.endpoint,
		"last_success": c.lastSuccess,
	}
	if c.lastError != nil {
		status["last_error"] = c.lastError.Error()
	}
	return status
}

// Reconnect probes the webhook endpoint's health check
func (c *WebhookClient) Reconnect() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	req, err := http.NewRequest("GET", c.endpoint+"/health", nil)
	if err != nil {
		c.lastError = fmt.Errorf("failed to create health check request: %w", err)
		return c.lastError
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.lastError = fmt.Errorf("health check failed: %w", err)
		return c.lastError
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.lastError = fmt.Errorf("health check returned status %d", resp.StatusCode)
		return c.lastError
	}

	c.connected = true
	c.lastSuccess = time.Now()
	c.lastError = nil
	return nil
}
