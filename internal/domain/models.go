// Persistence models for employees, shifts, schedule requests, and their
// supporting audit/metrics records. These types are mapped with GORM and form
// the core data layer of the scheduling application.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"

	"gorm.io/gorm"
)

// EmployeeRole distinguishes regular employees from scheduling admins.
type EmployeeRole string

// Employee roles.
const (
	RoleEmployee EmployeeRole = "employee"
	RoleAdmin    EmployeeRole = "admin"
)

// SkillSet is the set of skill tags an employee holds (or a shift requires).
// Stored as a JSON object so the column stays compatible with richer skill
// metadata later.
type SkillSet struct {
	Skills []string `json:"skills"`
}

// Contains reports whether every tag in required is present in s.
func (s SkillSet) Contains(required SkillSet) bool {
	have := make(map[string]struct{}, len(s.Skills))
	for _, tag := range s.Skills {
		have[tag] = struct{}{}
	}
	for _, tag := range required.Skills {
		if _, ok := have[tag]; !ok {
			return false
		}
	}
	return true
}

// Value serializes the skill set to JSON.
func (s SkillSet) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	return string(b), err
}

// Scan deserializes a stored skill set.
func (s *SkillSet) Scan(src any) error { return scanJSON(src, s) }

// Certifications records an employee's certification state. Only the expired
// flag participates in rule checks today.
type Certifications struct {
	Expired bool `json:"expired"`
}

// Value serializes certifications to JSON.
func (c Certifications) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	return string(b), err
}

// Scan deserializes stored certifications.
func (c *Certifications) Scan(src any) error { return scanJSON(src, c) }

// JSONMap is a free-form JSON object column (availability, audit metadata).
type JSONMap map[string]any

// Value serializes the map to JSON.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		m = JSONMap{}
	}
	b, err := json.Marshal(m)
	return string(b), err
}

// Scan deserializes a stored JSON object.
func (m *JSONMap) Scan(src any) error { return scanJSON(src, m) }

// Employee is a schedulable worker. Identity (ID) is immutable; names, role,
// certifications, and skills are mutable through admin CRUD.
type Employee struct {
	ID             string         `json:"id"             gorm:"type:char(36);primaryKey"`
	FirstName      string         `json:"first_name"     gorm:"type:varchar(255);not null;index:idx_employee_name,priority:1"`
	LastName       string         `json:"last_name"      gorm:"type:varchar(255);not null;index:idx_employee_name,priority:2"`
	FullName       string         `json:"full_name"      gorm:"type:text;not null"`
	Role           EmployeeRole   `json:"role"           gorm:"type:varchar(16);not null;default:'employee';check:role IN ('employee','admin')"`
	Certifications Certifications `json:"certifications" gorm:"type:text"`
	Skills         SkillSet       `json:"skills"         gorm:"type:text"`
	Availability   JSONMap        `json:"availability"   gorm:"type:text"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// TableName returns the database table name for Employee.
func (Employee) TableName() string { return "employees" }

// BeforeSave keeps the derived full name in sync with first/last.
func (e *Employee) BeforeSave(_ *gorm.DB) error {
	e.FullName = strings.TrimSpace(strings.TrimSpace(e.FirstName) + " " + strings.TrimSpace(e.LastName))
	return nil
}

// Shift is one schedulable unit of work: a calendar date plus a type. The
// (date, type) pair is the natural slot key and is unique at the storage
// layer. At most one employee is assigned per shift.
type Shift struct {
	ID                 string    `json:"id"                   gorm:"type:char(36);primaryKey"`
	Date               Date      `json:"date"                 gorm:"type:date;not null;uniqueIndex:ux_shift_slot,priority:1"`
	Type               ShiftType `json:"type"                 gorm:"type:varchar(16);not null;uniqueIndex:ux_shift_slot,priority:2;check:type IN ('morning','night')"`
	RequiredSkills     SkillSet  `json:"required_skills"      gorm:"type:text"`
	AssignedEmployeeID *string   `json:"assigned_employee_id" gorm:"type:char(36);index"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`

	// AssignedEmployee is the current holder of the slot, if any.
	AssignedEmployee *Employee `json:"-" gorm:"foreignKey:AssignedEmployeeID;references:ID"`
}

// TableName returns the database table name for Shift.
func (Shift) TableName() string { return "shifts" }

// ExtractionVersion keys the (provider, model, prompt) combination that
// produced a draft. Rows are created lazily, idempotently, by version string.
type ExtractionVersion struct {
	Version        string    `json:"version"         gorm:"type:varchar(64);primaryKey"`
	ModelUsed      string    `json:"model_used"      gorm:"type:varchar(128);not null"`
	PromptTemplate string    `json:"prompt_template" gorm:"type:text;not null"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName returns the database table name for ExtractionVersion.
func (ExtractionVersion) TableName() string { return "extraction_versions" }

// ScheduleRequest is the durable record of one shift-change request.
//
// The fingerprint is unique: two submissions normalizing to the same
// semantics collapse to one row (see services.Fingerprint). The normalized
// foreign references are resolved best-effort at creation time and are never
// re-derived for authorization decisions.
type ScheduleRequest struct {
	ID                string              `json:"id"                    gorm:"type:char(36);primaryKey"`
	RawText           string              `json:"raw_text"              gorm:"type:text;not null"`
	ExtractedData     ParsedExtraction    `json:"extracted_data"        gorm:"type:text"`
	RawExtraction     string              `json:"raw_extraction"        gorm:"type:text"`
	Validated         ValidatedExtraction `json:"validated_extraction"  gorm:"column:validated_extraction;type:text"`
	ExtractionVersion string              `json:"extraction_version"    gorm:"type:varchar(64);not null"`
	Fingerprint       string              `json:"fingerprint"           gorm:"type:varchar(128);not null;uniqueIndex:ux_request_fingerprint"`
	Status            RequestStatus       `json:"status"                gorm:"type:varchar(32);not null;default:'pending';index"`
	RequesterID       string              `json:"requester_employee_id" gorm:"column:requester_employee_id;type:char(36);not null;index"`
	PartnerID         *string             `json:"partner_employee_id"   gorm:"column:partner_employee_id;type:char(36);index"`
	RequesterShiftID  *string             `json:"requester_shift_id"    gorm:"type:char(36)"`
	PartnerShiftID    *string             `json:"partner_shift_id"      gorm:"type:char(36)"`
	CoverageShiftID   *string             `json:"coverage_shift_id"     gorm:"type:char(36)"`
	CreatedAt         time.Time           `json:"created_at"`
}

// TableName returns the database table name for ScheduleRequest.
func (ScheduleRequest) TableName() string { return "schedule_requests" }

// RequestMetrics carries write-once latency timestamps for one request.
// It never participates in decision logic.
type RequestMetrics struct {
	RequestID   string     `json:"request_id"   gorm:"type:char(36);primaryKey"`
	SubmittedAt time.Time  `json:"submitted_at" gorm:"not null"`
	ParsedAt    *time.Time `json:"parsed_at"`
	ValidatedAt *time.Time `json:"validated_at"`
	ApprovedAt  *time.Time `json:"approved_at"`
	RejectedAt  *time.Time `json:"rejected_at"`
}

// TableName returns the database table name for RequestMetrics.
func (RequestMetrics) TableName() string { return "request_metrics" }

// AuditLog is an append-only action trail. Core components write entries but
// never read them back.
type AuditLog struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	Action    string    `json:"action"    gorm:"type:varchar(255);not null;index"`
	Meta      JSONMap   `json:"metadata"  gorm:"column:metadata;type:text"`
	Timestamp time.Time `json:"timestamp" gorm:"autoCreateTime"`
}

// TableName returns the database table name for AuditLog.
func (AuditLog) TableName() string { return "audit_logs" }
