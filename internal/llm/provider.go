// Package llm implements the extraction provider: the external capability
// that turns free text plus a reference date into a best-effort structured
// draft. Two variants exist (local Ollama, hosted OpenAI-compatible),
// differing only in transport and prompt text; one is selected at process
// start from configuration. The core treats every provider failure as
// "extraction failed" and never retries beyond the provider's own policy.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shiftdesk/go-schedule-backend/internal/apperr"
	"github.com/shiftdesk/go-schedule-backend/internal/domain"
)

// HealthStatus reports provider reachability for the health endpoint.
type HealthStatus struct {
	Status    string `json:"status"`
	LastError string `json:"last_error,omitempty"`
}

// Provider is the extraction capability consumed by the core. Parse either
// returns a well-formed draft or fails with a classified *apperr.Error
// (LLM_TIMEOUT, EXTRACTION_INVALID_SCHEMA, or LLM_PROVIDER_ERROR).
type Provider interface {
	// Parse extracts a structured draft from free text. requesterContext is a
	// natural-language disambiguation cue; referenceDate anchors relative
	// dates like "tomorrow".
	Parse(ctx context.Context, text, requesterContext string, referenceDate domain.Date) (*domain.ParsedExtraction, error)

	// HealthCheck probes the provider without performing an extraction.
	HealthCheck(ctx context.Context) HealthStatus

	// Name identifies the provider ("ollama", "hosted").
	Name() string

	// ModelName is the underlying model identifier.
	ModelName() string

	// ExtractionVersion is the stable (provider, model, prompt) version tag
	// recorded on every request this provider produced.
	ExtractionVersion() string

	// Hosted reports whether the provider is externally hosted. Hosted
	// providers must never receive stable internal identifiers in the
	// requester context hint.
	Hosted() bool
}

// PromptTemplateName keys the prompt used by both variants; recorded on the
// extraction_versions row.
const PromptTemplateName = "schedule_extraction_v1"

// promptSchema instructs the model to emit exactly one JSON object in the
// ParsedExtraction shape, null for unknowns.
const promptSchema = `You must respond with only a single JSON object and nothing else. No explanation, no markdown, no code fence.
Use this exact schema (use null when unknown):
{"employee_first_name":"string","employee_last_name":"string or null","current_shift_date":"YYYY-MM-DD or null","current_shift_type":"morning or night or null","target_date":"YYYY-MM-DD or null","target_shift_type":"morning or night or null","requested_action":"swap or move or cover or null","reason":"string or null","partner_employee_first_name":"string or null","partner_employee_last_name":"string or null","partner_shift_date":"YYYY-MM-DD or null","partner_shift_type":"morning or night or null"}
For swap requests: set employee_* to the requester, partner_* to the swap partner, current_shift_* to the requester's shift, target_* and partner_shift_* to the partner's shift.
For cover requests: current_shift_date is the date of the shift to be covered (the requester's shift). If the user says "tomorrow" or "my shift tomorrow", set both current_shift_date and target_date to tomorrow (today + 1 day).`

// buildPrompt assembles the shared extraction prompt.
func buildPrompt(text, requesterContext string, referenceDate domain.Date) string {
	var b strings.Builder
	b.WriteString(promptSchema)
	b.WriteString("\n")
	if !referenceDate.IsZero() {
		fmt.Fprintf(&b, "Today's date is %s. Valid scheduling window is today through %d days from today. For relative dates like 'tomorrow' use today + 1 day. Prefer null if uncertain.\n",
			referenceDate.String(), 30)
	}
	if requesterContext != "" {
		fmt.Fprintf(&b, "Requester context: %s\n", requesterContext)
	}
	b.WriteString("\nUser request: ")
	b.WriteString(text)
	b.WriteString("\n\nJSON:")
	return b.String()
}

// decodeDraft parses the model's raw completion into a draft. Any JSON or
// schema problem is classified as EXTRACTION_INVALID_SCHEMA.
func decodeDraft(content string) (*domain.ParsedExtraction, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.New(apperr.CodeExtractionInvalidSchema,
			"Could not understand the request format.",
			"provider returned an empty completion", 400)
	}
	var draft domain.ParsedExtraction
	dec := json.NewDecoder(strings.NewReader(content))
	if err := dec.Decode(&draft); err != nil {
		return nil, apperr.New(apperr.CodeExtractionInvalidSchema,
			"Could not understand the request format.",
			fmt.Sprintf("provider schema parse error: %v", err), 400)
	}
	return &draft, nil
}
