package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification types emitted by the workflow core.
const (
	NotificationLinkGenerated    = "link_generated"
	NotificationLinkRevoked      = "link_revoked"
	NotificationResponseReceived = "response_received"
	NotificationOverdue          = "overdue"
	NotificationStatusChange     = "status_change"
)

// Notification is an internal-team inbox row. The workflow core only ever
// appends these; reading and marking them is plain UI plumbing.
type Notification struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	RFIID     uint           `json:"rfi_id" gorm:"not null;index"`
	Type      string         `json:"type" gorm:"not null"`
	Message   string         `json:"message" gorm:"not null"`
	Metadata  datatypes.JSON `json:"metadata" gorm:"type:jsonb"` // actor, old/new status+stage, extras
	IsRead    bool           `json:"is_read" gorm:"default:false;index"`
	CreatedAt time.Time      `json:"created_at"`
}
