// Local (self-hosted) extraction provider speaking the Ollama generate API.
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

// OllamaProvider extracts drafts via a local Ollama server. It retries
// transient transport failures up to MaxRetries; schema errors are never
// retried (the model output is deterministic enough that a retry would not
// help and would double latency).
type OllamaProvider struct {
	baseURL    string
	model      string
	timeout    time.Duration
	maxRetries int
	client     *http.Client
}

// NewOllamaProvider builds the local provider.
func NewOllamaProvider(baseURL, model string, timeout time.Duration, maxRetries int) (*OllamaProvider, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("ollama base URL must not be empty")
	}
	return &OllamaProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		timeout:    timeout,
		maxRetries: maxRetries,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// Name implements Provider.
func (p *OllamaProvider) Name() string { return "ollama" }

// ModelName implements Provider.
func (p *OllamaProvider) ModelName() string { return p.model }

// ExtractionVersion implements Provider.
func (p *OllamaProvider) ExtractionVersion() string {
	return fmt.Sprintf("ollama-%s-v1", p.model)
}

// Hosted implements Provider; the local variant may receive internal IDs in
// its context hint.
func (p *OllamaProvider) Hosted() bool { return false }

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Message  *struct {
		Content string `json:"content"`
	} `json:"message"`
}

// Parse implements Provider.
func (p *OllamaProvider) Parse(ctx context.Context, text, requesterContext string, referenceDate domain.Date) (*domain.ParsedExtraction, error) {
	body, _ := json.Marshal(ollamaRequest{
		Model:  p.model,
		Prompt: buildPrompt(text, requesterContext, referenceDate),
		Stream: false,
	})

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(body))
		if err != nil {
			return nil, apperr.New(apperr.CodeLLMProviderError,
				"Provider request failed.", fmt.Sprintf("build ollama request: %v", err), 502)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			if isTimeout(err) {
				lastErr = err
				continue
			}
			lastErr = err
			continue
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}
		if resp.StatusCode == http.StatusNotFound && strings.Contains(strings.ToLower(string(data)), "not found") {
			return nil, apperr.New(apperr.CodeLLMProviderError,
				"Language model is not installed yet. Please install it and retry.",
				fmt.Sprintf("ollama model %q not found: %s", p.model, data), 503)
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("ollama status %d: %s", resp.StatusCode, data)
			continue
		}

		var out ollamaResponse
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, apperr.New(apperr.CodeExtractionInvalidSchema,
				"Could not understand the request format.",
				fmt.Sprintf("decode ollama response: %v", err), 400)
		}
		content := out.Response
		if content == "" && out.Message != nil {
			content = out.Message.Content
		}
		return decodeDraft(content)
	}

	if lastErr != nil && isTimeout(lastErr) {
		return nil, apperr.New(apperr.CodeLLMTimeout,
			"The language model timed out. Please retry.",
			fmt.Sprintf("ollama timeout after retries: %v", lastErr), 504)
	}
	return nil, apperr.New(apperr.CodeLLMProviderError,
		"Provider request failed.", fmt.Sprintf("ollama provider error: %v", lastErr), 502)
}

// HealthCheck implements Provider by listing installed models.
func (p *OllamaProvider) HealthCheck(ctx context.Context) HealthStatus {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return HealthStatus{Status: "fail", LastError: err.Error()}
	}
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

// isTimeout classifies transport errors that should map to LLM_TIMEOUT.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
