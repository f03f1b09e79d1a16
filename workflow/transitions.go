package workflow

import "time"

// TransitionData is the typed payload attached to a transition. Each event
// kind has its own struct so required fields are enforced at compile time
// rather than smuggled through an untyped map.
type TransitionData interface {
	// Updates returns the extra column writes applied atomically with the
	// status/stage change.
	Updates(now time.Time) map[string]any
	// Metadata returns extra fields for the transition's notification row.
	Metadata() map[string]any
}

// SendToClientData accompanies EventSendToClient.
type SendToClientData struct {
	SentAt    time.Time
	ExpiresAt time.Time
}

func (d SendToClientData) Updates(now time.Time) map[string]any {
	sent := d.SentAt
	if sent.IsZero() {
		sent = now
	}
	return map[string]any{"date_sent": sent}
}

func (d SendToClientData) Metadata() map[string]any {
	if d.ExpiresAt.IsZero() {
		return nil
	}
	return map[string]any{"link_expires_at": d.ExpiresAt.UTC().Format(time.RFC3339)}
}

// ResponseReceivedData accompanies EventClientResponse.
type ResponseReceivedData struct {
	Response           string
	SubmittedBy        string
	ResponseStatus     string // "approved" | "rejected" | "needs_clarification"
	AdditionalComments string
}

func (d ResponseReceivedData) Updates(now time.Time) map[string]any {
	return map[string]any{
		"client_response":              d.Response,
		"client_response_submitted_by": d.SubmittedBy,
		"response_status":              d.ResponseStatus,
		"additional_comments":          d.AdditionalComments,
		"date_responded":               now,
	}
}

func (d ResponseReceivedData) Metadata() map[string]any {
	return map[string]any{
		"submitted_by":    d.SubmittedBy,
		"response_status": d.ResponseStatus,
	}
}

// FieldWorkData accompanies EventStartFieldWork.
type FieldWorkData struct {
	Note string
}

func (d FieldWorkData) Updates(time.Time) map[string]any { return nil }

func (d FieldWorkData) Metadata() map[string]any {
	if d.Note == "" {
		return nil
	}
	return map[string]any{"note": d.Note}
}

// CloseData accompanies EventCompleteWork and EventForceClose.
type CloseData struct {
	Reason string
}

func (d CloseData) Updates(now time.Time) map[string]any {
	return map[string]any{"closed_date": now}
}

func (d CloseData) Metadata() map[string]any {
	if d.Reason == "" {
		return nil
	}
	return map[string]any{"reason": d.Reason}
}

// OverdueData accompanies EventMarkOverdue.
type OverdueData struct {
	SentAt time.Time
}

func (d OverdueData) Updates(time.Time) map[string]any { return nil }

func (d OverdueData) Metadata() map[string]any {
	if d.SentAt.IsZero() {
		return nil
	}
	return map[string]any{"date_sent": d.SentAt.UTC().Format(time.RFC3339)}
}
