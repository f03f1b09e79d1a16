package securelink

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"rfitrack-backend/models"
	"rfitrack-backend/notify"
	"rfitrack-backend/workflow"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testBaseURL = "https://rfi.example.com"

func setupService(t *testing.T) (*gorm.DB, *Service, *notify.Recorder) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Project{}, &models.RFI{}, &models.Notification{},
	))

	rec := &notify.Recorder{}
	machine := workflow.NewMachine(db, rec)
	return db, NewService(db, machine, rec, testBaseURL), rec
}

func seedDraft(t *testing.T, db *gorm.DB) *models.RFI {
	t.Helper()
	project := models.Project{
		Name:          "Quayside Substation",
		ClientCompany: "Grid Co",
		ClientEmail:   "design@gridco.example",
	}
	require.NoError(t, db.Create(&project).Error)

	rfi := models.RFI{
		ProjectID: project.Id,
		RFINumber: "RFI-003",
		Subject:   "Cable tray routing",
		Question:  "Confirm routing through grid B-4.",
		Status:    models.StatusDraft,
		CreatedBy: "u-1",
	}
	require.NoError(t, db.Create(&rfi).Error)
	return &rfi
}

func TestGenerateLinkSendsDraft(t *testing.T) {
	db, svc, rec := setupService(t)
	rfi := seedDraft(t, db)

	link, err := svc.GenerateLink(rfi.ID, "u-1", LinkOptions{})
	require.NoError(t, err)

	assert.NotEmpty(t, link.Token)
	assert.True(t, strings.HasPrefix(link.URL, testBaseURL+"/client/rfi/"))
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), link.ExpiresAt, time.Minute)

	var fresh models.RFI
	require.NoError(t, db.First(&fresh, rfi.ID).Error)
	assert.Equal(t, models.StatusActive, fresh.Status)
	require.NotNil(t, fresh.Stage)
	assert.Equal(t, models.StageSentToClient, *fresh.Stage)
	require.NotNil(t, fresh.SecureLinkToken)
	assert.Equal(t, link.Token, *fresh.SecureLinkToken)
	require.NotNil(t, fresh.DateSent)

	// Exactly one notification for the send.
	require.Equal(t, 1, rec.Count())
	assert.Equal(t, models.NotificationLinkGenerated, rec.Entries[0].Kind)
}

func TestGenerateLinkCustomOptions(t *testing.T) {
	db, svc, _ := setupService(t)
	rfi := seedDraft(t, db)

	link, err := svc.GenerateLink(rfi.ID, "u-1", LinkOptions{
		ExpirationDays:         7,
		AllowMultipleResponses: true,
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), link.ExpiresAt, time.Minute)

	var fresh models.RFI
	require.NoError(t, db.First(&fresh, rfi.ID).Error)
	assert.True(t, fresh.AllowMultipleResponses)
}

func TestGenerateLinkNotFound(t *testing.T) {
	_, svc, _ := setupService(t)
	_, err := svc.GenerateLink(404, "u-1", LinkOptions{})
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestValidateTokenIsIdempotent(t *testing.T) {
	db, svc, _ := setupService(t)
	rfi := seedDraft(t, db)
	link, err := svc.GenerateLink(rfi.ID, "u-1", LinkOptions{})
	require.NoError(t, err)

	first, err := svc.ValidateToken(link.Token)
	require.NoError(t, err)
	second, err := svc.ValidateToken(link.Token)
	require.NoError(t, err)

	// Read path must not mutate: same row, same answer.
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
}

func TestValidateTokenUnknown(t *testing.T) {
	_, svc, _ := setupService(t)
	_, err := svc.ValidateToken("QUA-R003-25-zzzz")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
	assert.Equal(t, ReasonInvalidLink, ReasonFor(err))

	_, err = svc.ValidateToken("")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestValidateTokenLazyExpiry(t *testing.T) {
	db, svc, _ := setupService(t)
	rfi := seedDraft(t, db)
	link, err := svc.GenerateLink(rfi.ID, "u-1", LinkOptions{})
	require.NoError(t, err)

	// Time alone invalidates; nothing deletes the row.
	require.NoError(t, db.Model(&models.RFI{}).Where("id = ?", rfi.ID).
		Update("link_expires_at", time.Now().Add(-time.Second)).Error)

	_, err = svc.ValidateToken(link.Token)
	assert.ErrorIs(t, err, workflow.ErrExpired)
	assert.Equal(t, ReasonExpired, ReasonFor(err))

	var fresh models.RFI
	require.NoError(t, db.First(&fresh, rfi.ID).Error)
	require.NotNil(t, fresh.SecureLinkToken, "lazy expiry must not delete the token")
}

func TestValidateTokenAfterResponse(t *testing.T) {
	db, svc, rec := setupService(t)
	rfi := seedDraft(t, db)
	link, err := svc.GenerateLink(rfi.ID, "u-1", LinkOptions{})
	require.NoError(t, err)

	machine := workflow.NewMachine(db, rec)
	_, err = machine.Execute(rfi.ID, workflow.EventClientResponse,
		workflow.State{Status: models.StatusActive, Stage: models.StageSentToClient},
		"client", workflow.ResponseReceivedData{
			Response: "done", SubmittedBy: "client", ResponseStatus: models.ResponseApproved,
		})
	require.NoError(t, err)

	_, err = svc.ValidateToken(link.Token)
	assert.ErrorIs(t, err, workflow.ErrAlreadyResponded)
	assert.Equal(t, ReasonAlreadyResponded, ReasonFor(err))
}

func TestValidateTokenAfterResponseWithMultipleAllowed(t *testing.T) {
	db, svc, rec := setupService(t)
	rfi := seedDraft(t, db)
	link, err := svc.GenerateLink(rfi.ID, "u-1", LinkOptions{AllowMultipleResponses: true})
	require.NoError(t, err)

	machine := workflow.NewMachine(db, rec)
	_, err = machine.Execute(rfi.ID, workflow.EventClientResponse,
		workflow.State{Status: models.StatusActive, Stage: models.StageSentToClient},
		"client", workflow.ResponseReceivedData{
			Response: "first", SubmittedBy: "client", ResponseStatus: models.ResponseNeedsClarification,
		})
	require.NoError(t, err)

	validated, err := svc.ValidateToken(link.Token)
	require.NoError(t, err)
	assert.Equal(t, rfi.ID, validated.ID)
}

func TestRevokeLink(t *testing.T) {
	db, svc, _ := setupService(t)
	rfi := seedDraft(t, db)
	link, err := svc.GenerateLink(rfi.ID, "u-1", LinkOptions{})
	require.NoError(t, err)

	require.NoError(t, svc.RevokeLink(rfi.ID, "u-1"))

	// The old token is dead for good.
	_, err = svc.ValidateToken(link.Token)
	assert.ErrorIs(t, err, workflow.ErrNotFound)

	var fresh models.RFI
	require.NoError(t, db.First(&fresh, rfi.ID).Error)
	assert.Nil(t, fresh.SecureLinkToken)
	assert.Nil(t, fresh.LinkExpiresAt)
}

func TestRegenerateLinkReplacesToken(t *testing.T) {
	db, svc, _ := setupService(t)
	rfi := seedDraft(t, db)
	first, err := svc.GenerateLink(rfi.ID, "u-1", LinkOptions{})
	require.NoError(t, err)

	second, err := svc.RegenerateLink(rfi.ID, "u-1", LinkOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)

	// Old token invalid, new one valid.
	_, err = svc.ValidateToken(first.Token)
	assert.ErrorIs(t, err, workflow.ErrNotFound)
	validated, err := svc.ValidateToken(second.Token)
	require.NoError(t, err)
	assert.Equal(t, rfi.ID, validated.ID)

	// Regeneration on an in-flight RFI does not re-run the send transition.
	var fresh models.RFI
	require.NoError(t, db.First(&fresh, rfi.ID).Error)
	assert.Equal(t, models.StatusActive, fresh.Status)
	assert.Equal(t, models.StageSentToClient, *fresh.Stage)
}

func TestRegenerateLinkBlockedAfterResponse(t *testing.T) {
	db, svc, rec := setupService(t)
	rfi := seedDraft(t, db)
	_, err := svc.GenerateLink(rfi.ID, "u-1", LinkOptions{})
	require.NoError(t, err)

	machine := workflow.NewMachine(db, rec)
	_, err = machine.Execute(rfi.ID, workflow.EventClientResponse,
		workflow.State{Status: models.StatusActive, Stage: models.StageSentToClient},
		"client", workflow.ResponseReceivedData{
			Response: "answered", SubmittedBy: "client", ResponseStatus: models.ResponseApproved,
		})
	require.NoError(t, err)

	_, err = svc.RegenerateLink(rfi.ID, "u-1", LinkOptions{})
	assert.ErrorIs(t, err, workflow.ErrInvalidState)
}

func TestRegenerateLinkAllowedWithMultipleResponses(t *testing.T) {
	db, svc, rec := setupService(t)
	rfi := seedDraft(t, db)
	first, err := svc.GenerateLink(rfi.ID, "u-1", LinkOptions{AllowMultipleResponses: true})
	require.NoError(t, err)

	machine := workflow.NewMachine(db, rec)
	_, err = machine.Execute(rfi.ID, workflow.EventClientResponse,
		workflow.State{Status: models.StatusActive, Stage: models.StageSentToClient},
		"client", workflow.ResponseReceivedData{
			Response: "first pass", SubmittedBy: "client", ResponseStatus: models.ResponseNeedsClarification,
		})
	require.NoError(t, err)

	// The RFI still accepts responses, so an expired or lost link must stay
	// replaceable.
	second, err := svc.RegenerateLink(rfi.ID, "u-1", LinkOptions{AllowMultipleResponses: true})
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)

	validated, err := svc.ValidateToken(second.Token)
	require.NoError(t, err)
	assert.Equal(t, rfi.ID, validated.ID)
}

func TestValidateTokenRejectsDraft(t *testing.T) {
	db, svc, _ := setupService(t)
	rfi := seedDraft(t, db)

	// A token column on a draft row only exists if a send failed halfway;
	// the draft must stay invisible to the client path.
	expires := time.Now().Add(24 * time.Hour)
	require.NoError(t, db.Model(&models.RFI{}).Where("id = ?", rfi.ID).Updates(map[string]any{
		"secure_link_token": "QUA-R003-25-a1b2",
		"link_expires_at":   expires,
	}).Error)

	_, err := svc.ValidateToken("QUA-R003-25-a1b2")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
	assert.Equal(t, ReasonInvalidLink, ReasonFor(err))
}

func TestSubmitResponseWithExpiredTokenLeavesRFIUntouched(t *testing.T) {
	db, svc, rec := setupService(t)
	rfi := seedDraft(t, db)
	link, err := svc.GenerateLink(rfi.ID, "u-1", LinkOptions{})
	require.NoError(t, err)
	sendNotifications := rec.Count()

	require.NoError(t, db.Model(&models.RFI{}).Where("id = ?", rfi.ID).
		Update("link_expires_at", time.Now().Add(-time.Second)).Error)

	// The handler validates before writing; an expired token never reaches
	// the machine.
	_, err = svc.ValidateToken(link.Token)
	assert.ErrorIs(t, err, workflow.ErrExpired)

	var fresh models.RFI
	require.NoError(t, db.First(&fresh, rfi.ID).Error)
	assert.Equal(t, models.StatusActive, fresh.Status)
	assert.Empty(t, fresh.ClientResponse)
	assert.Nil(t, fresh.DateResponded)
	assert.Equal(t, sendNotifications, rec.Count(), "no notification for a rejected submission")
}
