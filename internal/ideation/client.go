// Package ideation calls the external text-generation backend that
// drafts discovery-meeting themes for a lead.
package ideation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Generator produces ideation text from a lead description.
type Generator interface {
	Generate(ctx context.Context, description string) (string, error)
}

const defaultTimeout = 30 * time.Second

// promptTemplate is the fixed "product ops" brief; the lead description
// is the only variable.
const promptTemplate = `You are a Senior Product Operations Agent.
Analyze this user bottleneck: %q
Your goal is to prepare for a discovery meeting.
Propose 3 distinct themes focused on automation and ROI:
1. THEME: Coordination (Solving manual route/driver assignments)
2. THEME: Optimization (Fixing timing and field-readiness)
3. THEME: Orchestration (End-to-end seasonal automation)
Keep the output professional, bulleted, and ready for an executive summary.`

// Client talks to a generateContent-style REST backend.
type Client struct {
	BaseURL string
	Model   string
	APIKey  string
	HTTP    *http.Client
}

func NewClient(baseURL, model, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Generate submits the fixed prompt with the description embedded and
// returns the backend's text, or an error leaving nothing written.
func (c *Client) Generate(ctx context.Context, description string) (string, error) {
	prompt := fmt.Sprintf(promptTemplate, description)
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", c.BaseURL, c.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("X-Goog-Api-Key", c.APIKey)
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("ideation backend: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", fmt.Errorf("ideation backend status %d: %s", res.StatusCode, strings.TrimSpace(string(data)))
	}
	var parsed generateResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("ideation backend: decode response: %w", err)
	}
	text := parsed.Text()
	if text == "" {
		return "", fmt.Errorf("ideation backend returned no text")
	}
	return text, nil
}

// Text joins the first candidate's parts.
func (r generateResponse) Text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String())
}
