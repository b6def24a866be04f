package leadlinesdk

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Leadline HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Lead represents the API lead model.
type Lead struct {
	ID              string  `json:"id"`
	OwnerID         string  `json:"owner_id"`
	OrgID           string  `json:"org_id,omitempty"`
	ArtifactContent string  `json:"artifact_content"`
	ContactEmail    string  `json:"contact_email,omitempty"`
	Description     string  `json:"description,omitempty"`
	Source          string  `json:"source,omitempty"`
	Status          string  `json:"status"`
	AIIdeation      *string `json:"ai_ideation,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

// Event represents a log entry. Payload is the raw JSON document the
// writer recorded.
type Event struct {
	ID      int64  `json:"id"`
	TS      string `json:"ts"`
	Type    string `json:"type"`
	LeadID  string `json:"lead_id,omitempty"`
	ActorID string `json:"actor_id"`
	Payload string `json:"payload_json"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IngestLead submits a lead. All fields are optional and no credentials
// are required: the intake endpoint is public.
func (c *Client) IngestLead(ctx context.Context, name, email, notes, source string) (Lead, error) {
	body := map[string]any{
		"name":   name,
		"email":  email,
		"notes":  notes,
		"source": source,
	}
	var resp struct {
		Success bool `json:"success"`
		Lead    Lead `json:"lead"`
	}
	err := c.do(ctx, http.MethodPost, "v0/leads", body, &resp)
	return resp.Lead, err
}

// ListLeads returns the caller's leads, newest first. An empty status
// returns all.
func (c *Client) ListLeads(ctx context.Context, status string) ([]Lead, error) {
	endpoint := "v0/leads"
	if status != "" {
		endpoint = fmt.Sprintf("%s?status=%s", endpoint, url.QueryEscape(status))
	}
	var resp struct {
		Leads []Lead `json:"leads"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Leads, err
}

// GetLead fetches a lead by id.
func (c *Client) GetLead(ctx context.Context, id string) (Lead, error) {
	var resp Lead
	err := c.do(ctx, http.MethodGet, c.leadPath(id, ""), nil, &resp)
	return resp, err
}

// UpdateLeadStatus moves a lead to the given status. Set force to skip
// the workflow order check.
func (c *Client) UpdateLeadStatus(ctx context.Context, id, status string, force bool) (Lead, error) {
	body := map[string]any{"status": status, "force": force}
	var resp Lead
	err := c.do(ctx, http.MethodPatch, c.leadPath(id, "status"), body, &resp)
	return resp, err
}

// Ideate invokes the ideation agent for a lead. The generated text is
// stored on the lead; fetch it with GetLead.
func (c *Client) Ideate(ctx context.Context, id string) error {
	var resp struct {
		Success bool `json:"success"`
	}
	return c.do(ctx, http.MethodPost, c.leadPath(id, "ideate"), nil, &resp)
}

// Events returns recent events, newest first.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?n=%d", endpoint, limit)
	}
	var resp struct {
		Events []Event `json:"events"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Events, err
}

// WatchLeads opens the server-sent-events feed and returns a channel of
// full lead-list snapshots. Each delivery replaces the previous list.
// The channel closes when ctx is done or the server ends the stream.
func (c *Client) WatchLeads(ctx context.Context) (<-chan []Lead, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base()+"/v0/leads/feed", nil)
	if err != nil {
		return nil, err
	}
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	// The feed is long-lived; the client timeout must not apply.
	httpClient := &http.Client{Transport: c.httpClient().Transport}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	out := make(chan []Lead)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var snapshot []Lead
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &snapshot); err != nil {
				continue
			}
			select {
			case out <- snapshot:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	return c.HTTPClient
}

func (c *Client) leadPath(id, sub string) string {
	p := fmt.Sprintf("v0/leads/%s", url.PathEscape(id))
	if sub != "" {
		p += "/" + sub
	}
	return p
}
