// Package leads talks to the company's lead backend.
package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sonnkraft/funnel-backend/internal/types"
)

// Client is a client for the lead backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new lead backend client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// submitRequest is the request body for POST /leads.
type submitRequest struct {
	Name        string            `json:"name"`
	Email       string            `json:"email,omitempty"`
	Phone       string            `json:"phone"`
	UserType    string            `json:"user_type,omitempty"`
	ServiceType string            `json:"service_type,omitempty"`
	Message     string            `json:"message,omitempty"`
	Answers     map[string]string `json:"answers,omitempty"`
}

// submitResponse is the response from POST /leads.
type submitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// serviceEntry is one catalog item from GET /services.
type serviceEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// servicesResponse is the response from GET /services.
type servicesResponse struct {
	Services []serviceEntry `json:"services"`
}

// Submit posts a completed lead form. A non-2xx status or a success=false
// body both count as failure so the funnel can offer a manual retry.
func (c *Client) Submit(ctx context.Context, form types.LeadForm) error {
	body, err := json.Marshal(submitRequest{
		Name:        form.Name,
		Email:       form.Email,
		Phone:       form.Phone,
		UserType:    form.UserType,
		ServiceType: form.ServiceType,
		Message:     form.Message,
		Answers:     form.Answers,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/leads", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !apiResp.Success {
		return fmt.Errorf("lead backend rejected submission: %s", apiResp.Message)
	}
	return nil
}

// FetchServices lists the services the company currently offers.
func (c *Client) FetchServices(ctx context.Context) ([]types.Service, error) {
	url := fmt.Sprintf("%s/services", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp servicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	services := make([]types.Service, 0, len(apiResp.Services))
	for _, e := range apiResp.Services {
		if e.Name == "" {
			continue
		}
		services = append(services, types.Service{ID: e.ID, Name: e.Name})
	}
	return services, nil
}
