// Package notify is the internal-team notification sink. Transitions append
// rows best-effort; a failed append never fails the transition that caused it.
package notify

import (
	"encoding/json"
	"sync"

	"rfitrack-backend/models"

	"gorm.io/gorm"
)

// Notifier is the capability injected into the workflow machine and the
// securelink service. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(rfiID uint, kind, message string, metadata map[string]any) error
}

// DBNotifier appends notification rows through GORM.
type DBNotifier struct {
	DB *gorm.DB
}

func NewDBNotifier(db *gorm.DB) *DBNotifier {
	return &DBNotifier{DB: db}
}

func (n *DBNotifier) Notify(rfiID uint, kind, message string, metadata map[string]any) error {
	var blob []byte
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		blob = b
	}
	row := models.Notification{
		RFIID:    rfiID,
		Type:     kind,
		Message:  message,
		Metadata: blob,
	}
	return n.DB.Create(&row).Error
}

// Nop discards every notification.
type Nop struct{}

func (Nop) Notify(uint, string, string, map[string]any) error { return nil }

// Recorder keeps notifications in memory; used by tests.
type Recorder struct {
	mu      sync.Mutex
	Entries []Recorded
	Err     error // returned from Notify when set, to exercise failure paths
}

type Recorded struct {
	RFIID    uint
	Kind     string
	Message  string
	Metadata map[string]any
}

func (r *Recorder) Notify(rfiID uint, kind, message string, metadata map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Entries = append(r.Entries, Recorded{RFIID: rfiID, Kind: kind, Message: message, Metadata: metadata})
	return nil
}

// Count returns the number of recorded notifications.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Entries)
}
