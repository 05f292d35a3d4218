// Extraction records: the untrusted draft produced by a language-model
// provider and its fully-defaulted validated form. Both are optional-field
// heavy on purpose; the default-resolution order lives in
// services.ExtractionService so strict and lenient paths share one code path.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// ShiftType enumerates the schedulable slots within a day.
type ShiftType string

// Shift slot types.
const (
	ShiftMorning ShiftType = "morning"
	ShiftNight   ShiftType = "night"
)

// ParseShiftType validates a raw string into a ShiftType.
func ParseShiftType(s string) (ShiftType, error) {
	switch ShiftType(strings.ToLower(strings.TrimSpace(s))) {
	case ShiftMorning:
		return ShiftMorning, nil
	case ShiftNight:
		return ShiftNight, nil
	}
	return "", fmt.Errorf("invalid shift type %q", s)
}

// RequestedAction enumerates what the requester wants done with a shift.
type RequestedAction string

// Requested actions. Move is the default when the draft omits one.
const (
	ActionSwap  RequestedAction = "swap"
	ActionMove  RequestedAction = "move"
	ActionCover RequestedAction = "cover"
)

// ParsedExtraction is the raw draft of a shift-change request, as returned by
// the extraction provider or assembled from structured form fields. Every
// field except the requester first name may be absent.
type ParsedExtraction struct {
	EmployeeFirstName string           `json:"employee_first_name"`
	EmployeeLastName  *string          `json:"employee_last_name"`
	CurrentShiftDate  *Date            `json:"current_shift_date"`
	CurrentShiftType  *ShiftType       `json:"current_shift_type"`
	TargetDate        *Date            `json:"target_date"`
	TargetShiftType   *ShiftType       `json:"target_shift_type"`
	RequestedAction   *RequestedAction `json:"requested_action"`
	Reason            *string          `json:"reason"`
	PartnerFirstName  *string          `json:"partner_employee_first_name"`
	PartnerLastName   *string          `json:"partner_employee_last_name"`
	PartnerShiftDate  *Date            `json:"partner_shift_date"`
	PartnerShiftType  *ShiftType       `json:"partner_shift_type"`
}

// ValidatedExtraction is the defaulted, fully-resolved form of a draft:
// target date/type and action are always present; cover requests carry
// current_shift_date == target_date; swap requests carry partner slot fields.
type ValidatedExtraction struct {
	EmployeeFirstName string          `json:"employee_first_name"`
	EmployeeLastName  *string         `json:"employee_last_name"`
	CurrentShiftDate  *Date           `json:"current_shift_date"`
	CurrentShiftType  *ShiftType      `json:"current_shift_type"`
	TargetDate        Date            `json:"target_date"`
	TargetShiftType   ShiftType       `json:"target_shift_type"`
	RequestedAction   RequestedAction `json:"requested_action"`
	Reason            *string         `json:"reason"`
	PartnerFirstName  *string         `json:"partner_employee_first_name"`
	PartnerLastName   *string         `json:"partner_employee_last_name"`
	PartnerShiftDate  *Date           `json:"partner_shift_date"`
	PartnerShiftType  *ShiftType      `json:"partner_shift_type"`
}

// Value serializes the validated extraction to JSON for storage.
func (v ValidatedExtraction) Value() (driver.Value, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

// Scan deserializes a stored validated extraction.
func (v *ValidatedExtraction) Scan(src any) error {
	return scanJSON(src, v)
}

// Value serializes the draft extraction to JSON for storage.
func (p ParsedExtraction) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	return string(b), err
}

// Scan deserializes a stored draft extraction.
func (p *ParsedExtraction) Scan(src any) error {
	return scanJSON(src, p)
}

// NeedsInput names a missing or ambiguous field plus a user-facing prompt.
// The lenient extraction path collects these instead of raising.
type NeedsInput struct {
	Field   string   `json:"field"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
}

// PartnerName joins the partner first/last names, trimmed, or "".
func (v ValidatedExtraction) PartnerName() string {
	return joinName(deref(v.PartnerFirstName), deref(v.PartnerLastName))
}

// RequesterName joins the requester first/last names, trimmed.
func (v ValidatedExtraction) RequesterName() string {
	return joinName(v.EmployeeFirstName, deref(v.EmployeeLastName))
}

// PartnerSlot returns the partner-side slot, falling back to the target slot
// when the partner fields were never set.
func (v ValidatedExtraction) PartnerSlot() (Date, ShiftType) {
	d, t := v.TargetDate, v.TargetShiftType
	if v.PartnerShiftDate != nil {
		d = *v.PartnerShiftDate
	}
	if v.PartnerShiftType != nil {
		t = *v.PartnerShiftType
	}
	return d, t
}

func joinName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func scanJSON(src, dst any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	case nil:
		return nil
	default:
		return fmt.Errorf("scan json: unsupported type %T", src)
	}
}
