package models

import (
	"time"
)

// RFIStatus is the coarse, user-facing status of an RFI.
type RFIStatus string

// RFIStage is the fine-grained workflow pointer inside a status.
// It is null while the RFI is still a draft.
type RFIStage string

const (
	StatusDraft   RFIStatus = "draft"
	StatusActive  RFIStatus = "active"
	StatusOverdue RFIStatus = "overdue"
	StatusClosed  RFIStatus = "closed"

	StageSentToClient        RFIStage = "sent_to_client"
	StageAwaitingResponse    RFIStage = "awaiting_response"
	StageResponseReceived    RFIStage = "response_received"
	StageFieldWorkInProgress RFIStage = "field_work_in_progress"
	StageWorkCompleted       RFIStage = "work_completed"
	StageLateOverdue         RFIStage = "late_overdue"
)

// Client response verdicts.
const (
	ResponseApproved           = "approved"
	ResponseRejected           = "rejected"
	ResponseNeedsClarification = "needs_clarification"
)

// RFI is a Request for Information raised by the contractor against a project
// and answered by the client through a secure link.
type RFI struct {
	ID        uint    `json:"id" gorm:"primaryKey"`
	ProjectID string  `json:"-" gorm:"not null;uniqueIndex:idx_rfis_project_number,priority:1"`
	Project   Project `json:"project" gorm:"foreignKey:ProjectID;references:Id"`

	RFINumber  string `json:"rfi_number" gorm:"not null;uniqueIndex:idx_rfis_project_number,priority:2"`
	Subject    string `json:"subject" gorm:"not null"`
	Question   string `json:"question" gorm:"not null"`
	Discipline string `json:"discipline"`
	Priority   string `json:"priority" gorm:"default:medium"` // "low" | "medium" | "high" | "urgent"

	// Impact assessment
	CostImpact         bool     `json:"cost_impact"`
	ScheduleImpact     bool     `json:"schedule_impact"`
	CostImpactAmount   *float64 `json:"cost_impact_amount,omitempty" gorm:"type:numeric(12,2)"`
	ScheduleImpactDays *int     `json:"schedule_impact_days,omitempty"`

	// Workflow position. Status/stage/response fields are written only through
	// the workflow machine's conditional update.
	Status RFIStatus `json:"status" gorm:"type:varchar(20);not null;default:draft;index"`
	Stage  *RFIStage `json:"stage" gorm:"type:varchar(30)"`

	// Secure external access. Owned exclusively by the securelink service.
	SecureLinkToken        *string    `json:"-" gorm:"uniqueIndex"`
	LinkExpiresAt          *time.Time `json:"link_expires_at,omitempty"`
	AllowMultipleResponses bool       `json:"allow_multiple_responses" gorm:"default:false"`

	// Client response
	ClientResponse            string     `json:"client_response,omitempty"`
	ClientResponseSubmittedBy string     `json:"client_response_submitted_by,omitempty"`
	ResponseStatus            string     `json:"response_status,omitempty"` // "approved" | "rejected" | "needs_clarification"
	AdditionalComments        string     `json:"additional_comments,omitempty"`
	DateResponded             *time.Time `json:"date_responded,omitempty"`

	CreatedBy  string     `json:"created_by"`
	DateSent   *time.Time `json:"date_sent,omitempty"`
	ClosedDate *time.Time `json:"closed_date,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// HasResponse reports whether a client response has been recorded.
func (r *RFI) HasResponse() bool {
	return r.Stage != nil && *r.Stage == StageResponseReceived || r.DateResponded != nil
}

// LinkExpired reports whether the secure link has lapsed (lazy expiry:
// the row is not cleaned up, the timestamp alone decides).
func (r *RFI) LinkExpired(now time.Time) bool {
	return r.LinkExpiresAt != nil && now.After(*r.LinkExpiresAt)
}
