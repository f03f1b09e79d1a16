package securelink

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"rfitrack-backend/models"
	"rfitrack-backend/notify"
	"rfitrack-backend/workflow"

	"gorm.io/gorm"
)

const DefaultExpirationDays = 30

// Validation reason strings shown verbatim to the client. Deliberately
// vague on the not-found case: a probing caller learns nothing about
// whether the token ever existed.
const (
	ReasonInvalidLink      = "Invalid or expired link"
	ReasonExpired          = "Link has expired"
	ReasonAlreadyResponded = "This RFI has already been responded to"
)

// Service is the sole owner of the secure-link token and expiry columns.
// Status/stage changes triggered by link issuance go through the workflow
// machine like every other transition.
type Service struct {
	db       *gorm.DB
	machine  *workflow.Machine
	notifier notify.Notifier
	baseURL  string
	now      func() time.Time
}

func NewService(db *gorm.DB, machine *workflow.Machine, notifier notify.Notifier, baseURL string) *Service {
	return &Service{
		db:       db,
		machine:  machine,
		notifier: notifier,
		baseURL:  strings.TrimRight(baseURL, "/"),
		now:      time.Now,
	}
}

type LinkOptions struct {
	ExpirationDays         int
	AllowMultipleResponses bool
}

type Link struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	URL       string    `json:"secure_link"`
}

// GenerateLink mints a token for the RFI, persists the token fields and,
// for a draft, performs the send_to_client transition in the same logical
// operation. Generating a link always implies sending.
func (s *Service) GenerateLink(rfiID uint, actor string, opts LinkOptions) (*Link, error) {
	days := opts.ExpirationDays
	if days <= 0 {
		days = DefaultExpirationDays
	}

	var rfi models.RFI
	if err := s.db.Preload("Project").First(&rfi, rfiID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, workflow.ErrNotFound
		}
		return nil, fmt.Errorf("load rfi %d: %w", rfiID, err)
	}
	if workflow.Terminal(workflow.StateOf(&rfi)) {
		return nil, workflow.ErrInvalidState
	}

	token, err := GenerateToken(&TokenContext{
		ProjectName: rfi.Project.Name,
		RFINumber:   rfi.RFINumber,
	})
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	now := s.now()
	expiresAt := now.Add(time.Duration(days) * 24 * time.Hour)
	err = s.db.Model(&models.RFI{}).Where("id = ?", rfi.ID).Updates(map[string]any{
		"secure_link_token":        token,
		"link_expires_at":          expiresAt,
		"allow_multiple_responses": opts.AllowMultipleResponses,
		"updated_at":               now,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("persist link for rfi %d: %w", rfi.ID, err)
	}

	if rfi.Status == models.StatusDraft {
		_, err = s.machine.Execute(rfi.ID, workflow.EventSendToClient,
			workflow.State{Status: models.StatusDraft},
			actor,
			workflow.SendToClientData{SentAt: now, ExpiresAt: expiresAt})
		if err != nil {
			// Send failed, so the row stays draft. A draft must not keep a
			// live token; clear it before reporting the failure.
			if cerr := s.db.Model(&models.RFI{}).Where("id = ?", rfi.ID).Updates(map[string]any{
				"secure_link_token": nil,
				"link_expires_at":   nil,
			}).Error; cerr != nil {
				log.Printf("clearing orphaned link for rfi %d failed: %v", rfi.ID, cerr)
			}
			return nil, err
		}
	} else {
		// Already in flight: no transition, but a fresh link is still a
		// client-visible event the team should hear about.
		meta := map[string]any{
			"actor":           actor,
			"link_expires_at": expiresAt.UTC().Format(time.RFC3339),
		}
		if nerr := s.notifier.Notify(rfi.ID, models.NotificationLinkGenerated,
			fmt.Sprintf("Secure link for %s was regenerated", rfi.RFINumber), meta); nerr != nil {
			log.Printf("notification for rfi %d (link regenerated) failed: %v", rfi.ID, nerr)
		}
	}

	return &Link{
		Token:     token,
		ExpiresAt: expiresAt,
		URL:       s.baseURL + "/client/rfi/" + token,
	}, nil
}

// ValidateToken resolves a bearer token to its RFI. Read-only: validating
// twice in a row returns the same answer and touches nothing. Failures come
// back as workflow sentinel errors; ReasonFor maps them to the
// client-facing strings.
func (s *Service) ValidateToken(token string) (*models.RFI, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, workflow.ErrNotFound
	}

	var rfi models.RFI
	err := s.db.Preload("Project").Where("secure_link_token = ?", token).First(&rfi).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, workflow.ErrNotFound
		}
		return nil, fmt.Errorf("look up token: %w", err)
	}
	// A token on a draft row is a leftover from a failed send; drafts are
	// never externally visible.
	if rfi.Status == models.StatusDraft {
		return nil, workflow.ErrNotFound
	}
	if rfi.LinkExpired(s.now()) {
		return nil, workflow.ErrExpired
	}
	if rfi.HasResponse() && !rfi.AllowMultipleResponses {
		return nil, workflow.ErrAlreadyResponded
	}
	return &rfi, nil
}

// ReasonFor translates a validation failure into the string shown to the
// unauthenticated client. Anything outside the taxonomy stays generic.
func ReasonFor(err error) string {
	switch {
	case errors.Is(err, workflow.ErrExpired):
		return ReasonExpired
	case errors.Is(err, workflow.ErrAlreadyResponded):
		return ReasonAlreadyResponded
	default:
		return ReasonInvalidLink
	}
}

// RevokeLink clears the token and expiry. Irreversible: any URL handed out
// before this point is dead for good.
func (s *Service) RevokeLink(rfiID uint, actor string) error {
	var rfi models.RFI
	if err := s.db.First(&rfi, rfiID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return workflow.ErrNotFound
		}
		return fmt.Errorf("load rfi %d: %w", rfiID, err)
	}

	err := s.db.Model(&models.RFI{}).Where("id = ?", rfi.ID).Updates(map[string]any{
		"secure_link_token": nil,
		"link_expires_at":   nil,
		"updated_at":        s.now(),
	}).Error
	if err != nil {
		return fmt.Errorf("revoke link for rfi %d: %w", rfi.ID, err)
	}

	meta := map[string]any{"actor": actor}
	if nerr := s.notifier.Notify(rfi.ID, models.NotificationLinkRevoked,
		fmt.Sprintf("Secure link for %s was revoked", rfi.RFINumber), meta); nerr != nil {
		log.Printf("notification for rfi %d (link revoked) failed: %v", rfi.ID, nerr)
	}
	return nil
}

// RegenerateLink replaces the current token. Blocked once a response has
// been recorded and further responses are disallowed, so a settled
// conversation cannot be reopened. With allow_multiple_responses the RFI
// still accepts submissions, and an expired link must stay replaceable.
func (s *Service) RegenerateLink(rfiID uint, actor string, opts LinkOptions) (*Link, error) {
	var rfi models.RFI
	if err := s.db.First(&rfi, rfiID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, workflow.ErrNotFound
		}
		return nil, fmt.Errorf("load rfi %d: %w", rfiID, err)
	}
	if rfi.HasResponse() && !rfi.AllowMultipleResponses {
		return nil, workflow.ErrInvalidState
	}
	return s.GenerateLink(rfiID, actor, opts)
}
