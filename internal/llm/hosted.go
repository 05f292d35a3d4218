// Hosted extraction provider speaking an OpenAI-compatible chat API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shiftdesk/go-schedule-backend/internal/apperr"
	"github.com/shiftdesk/go-schedule-backend/internal/domain"
)

// HostedProvider extracts drafts via an externally hosted, OpenAI-compatible
// chat completions endpoint. Because the transport leaves the organization,
// callers must pass only redacted requester context (no internal IDs).
type HostedProvider struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewHostedProvider builds the hosted provider.
func NewHostedProvider(baseURL, apiKey, model string, timeout time.Duration) (*HostedProvider, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("hosted base URL must not be empty")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("hosted API key must not be empty")
	}
	return &HostedProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Name implements Provider.
func (p *HostedProvider) Name() string { return "hosted" }

// ModelName implements Provider.
func (p *HostedProvider) ModelName() string { return p.model }

// ExtractionVersion implements Provider.
func (p *HostedProvider) ExtractionVersion() string {
	return fmt.Sprintf("hosted-%s-v1", p.model)
}

// Hosted implements Provider.
func (p *HostedProvider) Hosted() bool { return true }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Parse implements Provider.
func (p *HostedProvider) Parse(ctx context.Context, text, requesterContext string, referenceDate domain.Date) (*domain.ParsedExtraction, error) {
	body, _ := json.Marshal(chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You convert shift-change requests into structured JSON."},
			{Role: "user", Content: buildPrompt(text, requesterContext, referenceDate)},
		},
		Temperature: 0,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, apperr.New(apperr.CodeLLMProviderError,
			"Provider request failed.", fmt.Sprintf("build hosted request: %v", err), 502)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, apperr.New(apperr.CodeLLMTimeout,
				"The language model timed out. Please retry.",
				fmt.Sprintf("hosted timeout: %v", err), 504)
		}
		return nil, apperr.New(apperr.CodeLLMProviderError,
			"Provider request failed.", fmt.Sprintf("hosted transport error: %v", err), 502)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.New(apperr.CodeLLMProviderError,
			"Provider request failed.", fmt.Sprintf("read hosted response: %v", err), 502)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.New(apperr.CodeLLMProviderError,
			"Provider request failed.",
			fmt.Sprintf("hosted status %d: %s", resp.StatusCode, data), 502)
	}

	var out chatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, apperr.New(apperr.CodeExtractionInvalidSchema,
			"Could not understand the request format.",
			fmt.Sprintf("decode hosted response: %v", err), 400)
	}
	if out.Error != nil {
		return nil, apperr.New(apperr.CodeLLMProviderError,
			"Provider request failed.", "hosted API error: "+out.Error.Message, 502)
	}
	if len(out.Choices) == 0 {
		return nil, apperr.New(apperr.CodeExtractionInvalidSchema,
			"Could not understand the request format.",
			"hosted response contained no choices", 400)
	}
	return decodeDraft(stripFence(out.Choices[0].Message.Content))
}

// HealthCheck implements Provider by listing models with the bearer token.
func (p *HostedProvider) HealthCheck(ctx context.Context) HealthStatus {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/models", nil)
	if err != nil {
		return HealthStatus{Status: "fail", LastError: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	resp, err := p.client.Do(req)
	if err != nil {
		return HealthStatus{Status: "fail", LastError: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return HealthStatus{Status: "fail", LastError: fmt.Sprintf("status %d", resp.StatusCode)}
	}
	return HealthStatus{Status: "ok"}
}

// stripFence removes a markdown code fence some chat models wrap around JSON
// output despite instructions.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
