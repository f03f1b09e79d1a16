package workflow

import (
	"errors"
	"fmt"
	"log"
	"time"

	"rfitrack-backend/models"
	"rfitrack-backend/notify"

	"gorm.io/gorm"
)

// Machine applies lifecycle transitions. It is the only writer of the RFI
// status/stage/response columns; every write goes through a conditional
// UPDATE so concurrent callers lose cleanly instead of overwriting.
type Machine struct {
	db       *gorm.DB
	notifier notify.Notifier
	now      func() time.Time
}

func NewMachine(db *gorm.DB, notifier notify.Notifier) *Machine {
	return &Machine{db: db, notifier: notifier, now: time.Now}
}

// Execute moves the RFI through the transition triggered by ev.
//
// `expected` is the caller's snapshot of the current state. The row is
// re-read before writing; if it no longer matches, the caller gets
// ErrConflict rather than a silent overwrite. A write that loses the
// conditional UPDATE race is retried exactly once from fresh state before
// ErrConflict is surfaced. The transition's notification is appended
// best-effort: a notifier failure is logged, never returned.
func (m *Machine) Execute(rfiID uint, ev Event, expected State, actor string, data TransitionData) (*models.RFI, error) {
	for attempt := 0; attempt < 2; attempt++ {
		var rfi models.RFI
		if err := m.db.First(&rfi, rfiID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("load rfi %d: %w", rfiID, err)
		}

		current := StateOf(&rfi)
		if attempt == 0 && current != expected {
			return nil, m.staleError(ev, &rfi)
		}

		r, ok := ruleFor(ev, current, rfi.AllowMultipleResponses)
		if !ok {
			if ev == EventClientResponse && rfi.HasResponse() {
				return nil, ErrAlreadyResponded
			}
			return nil, ErrInvalidTransition
		}
		target := r.target(current)

		now := m.now()
		updates := map[string]any{
			"status":     target.Status,
			"updated_at": now,
		}
		if target.Stage == "" {
			updates["stage"] = nil
		} else {
			updates["stage"] = target.Stage
		}
		if data != nil {
			for col, v := range data.Updates(now) {
				updates[col] = v
			}
		}

		// Optimistic concurrency: the WHERE clause pins the state we read.
		q := m.db.Model(&models.RFI{}).Where("id = ? AND status = ?", rfi.ID, current.Status)
		if current.Stage == "" {
			q = q.Where("stage IS NULL")
		} else {
			q = q.Where("stage = ?", current.Stage)
		}
		res := q.Updates(updates)
		if res.Error != nil {
			return nil, fmt.Errorf("transition %s on rfi %d: %w", ev, rfi.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			// Lost the race; one retry from fresh state.
			continue
		}

		if err := m.db.First(&rfi, rfiID).Error; err != nil {
			return nil, fmt.Errorf("reload rfi %d: %w", rfiID, err)
		}
		m.emit(&rfi, ev, current, target, actor, data)
		return &rfi, nil
	}
	return nil, ErrConflict
}

// staleError classifies a stale caller snapshot: a racing response that
// already landed is reported as ErrAlreadyResponded, everything else as
// ErrConflict.
func (m *Machine) staleError(ev Event, rfi *models.RFI) error {
	if ev == EventClientResponse && rfi.HasResponse() && !rfi.AllowMultipleResponses {
		return ErrAlreadyResponded
	}
	return ErrConflict
}

func (m *Machine) emit(rfi *models.RFI, ev Event, from, to State, actor string, data TransitionData) {
	kind, message := describeEvent(rfi, ev, to)
	metadata := map[string]any{
		"event":      string(ev),
		"old_status": string(from.Status),
		"new_status": string(to.Status),
	}
	if from.Stage != "" {
		metadata["old_stage"] = string(from.Stage)
	}
	if to.Stage != "" {
		metadata["new_stage"] = string(to.Stage)
	}
	if actor != "" {
		metadata["actor"] = actor
	}
	if data != nil {
		for k, v := range data.Metadata() {
			metadata[k] = v
		}
	}
	if err := m.notifier.Notify(rfi.ID, kind, message, metadata); err != nil {
		log.Printf("notification for rfi %d (%s) failed: %v", rfi.ID, ev, err)
	}
}

func describeEvent(rfi *models.RFI, ev Event, to State) (kind, message string) {
	switch ev {
	case EventSendToClient:
		return models.NotificationLinkGenerated,
			fmt.Sprintf("%s was sent to the client via secure link", rfi.RFINumber)
	case EventClientResponse:
		return models.NotificationResponseReceived,
			fmt.Sprintf("Client responded to %s (%s)", rfi.RFINumber, rfi.ResponseStatus)
	case EventMarkOverdue:
		return models.NotificationOverdue,
			fmt.Sprintf("%s is overdue: no client response within the grace window", rfi.RFINumber)
	case EventCompleteWork:
		return models.NotificationStatusChange,
			fmt.Sprintf("Work on %s completed", rfi.RFINumber)
	case EventForceClose:
		return models.NotificationStatusChange,
			fmt.Sprintf("%s was closed", rfi.RFINumber)
	default:
		return models.NotificationStatusChange,
			fmt.Sprintf("%s moved to %s", rfi.RFINumber, to.Status)
	}
}
