package persistence

import (
	"time"

	"github.com/google/uuid"

	"seatdesk/pkg/intake"
	"seatdesk/pkg/status"
)

// Project represents a seat-change case: one intake, a lifecycle status, and
// report metadata. report_location and report_generated_at are set together
// and only when status is complete; report_error only when status is
// intervention after a generation attempt.
//
//nolint:govet // struct alignment optimization not critical for this type
type Project struct {
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
	ReportGeneratedAt *time.Time    `json:"report_generated_at,omitempty"`
	ID                string        `json:"id"`
	Title             string        `json:"title"`
	Description       string        `json:"description,omitempty"`
	Status            status.Status `json:"status"`
	Intake            intake.Intake `json:"intake"`
	ReportLocation    string        `json:"report_location,omitempty"`
	ReportError       string        `json:"report_error,omitempty"`
	GenerationAttempt int64         `json:"generation_attempt"`
}

// Message is one immutable chat turn. Seq is assigned by the database and
// gives a strict per-project creation order even when timestamps tie.
type Message struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Seq       int64     `json:"seq"`
}

// Message role constants.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// IsValidRole checks if a role string is valid.
func IsValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant || role == RoleSystem
}

// Document is metadata for an uploaded file bound to a project.
// Content lifecycle is external; only the metadata matters here.
type Document struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Filename  string    `json:"filename"`
	MimeType  string    `json:"mime_type,omitempty"`
	ByteSize  int64     `json:"byte_size,omitempty"`
}

// GenerateProjectID generates a new UUID for a project.
func GenerateProjectID() string {
	return uuid.New().String()
}

// GenerateMessageID generates a new UUID for a message.
func GenerateMessageID() string {
	return uuid.New().String()
}

// GenerateDocumentID generates a new UUID for a document.
func GenerateDocumentID() string {
	return uuid.New().String()
}

// NewProject constructs a project in the initial state with a non-nil intake.
func NewProject(title, description string, in intake.Intake) *Project {
	if in == nil {
		in = intake.New()
	}
	now := time.Now().UTC()
	return &Project{
		ID:          GenerateProjectID(),
		Title:       title,
		Description: description,
		Status:      status.Initial,
		Intake:      in,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
