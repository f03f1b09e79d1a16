package sweeper

import (
	"context"
	"fmt"
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

func setup(t *testing.T) (*gorm.DB, *Sweeper, *notify.Recorder) {
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
	return db, New(db, machine, 30), rec
}

func seedSent(t *testing.T, db *gorm.DB, number string, sentDaysAgo int) *models.RFI {
	t.Helper()
	var project models.Project
	if err := db.First(&project).Error; err != nil {
		project = models.Project{
			Name:          "Terminal Expansion",
			ClientCompany: "Airport Holdings",
			ClientEmail:   "rfi@airport.example",
		}
		require.NoError(t, db.Create(&project).Error)
	}

	stage := models.StageSentToClient
	sent := time.Now().Add(-time.Duration(sentDaysAgo) * 24 * time.Hour)
	rfi := models.RFI{
		ProjectID: project.Id,
		RFINumber: number,
		Subject:   "Test subject",
		Question:  "Test question",
		Status:    models.StatusActive,
		Stage:     &stage,
		DateSent:  &sent,
		CreatedBy: "u-1",
	}
	require.NoError(t, db.Create(&rfi).Error)
	return &rfi
}

func TestSweepMarksStaleRFIsOverdue(t *testing.T) {
	db, sw, rec := setup(t)
	stale := seedSent(t, db, "RFI-001", 31)
	recent := seedSent(t, db, "RFI-002", 10)

	n, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var fresh models.RFI
	require.NoError(t, db.First(&fresh, stale.ID).Error)
	assert.Equal(t, models.StatusOverdue, fresh.Status)
	require.NotNil(t, fresh.Stage)
	assert.Equal(t, models.StageLateOverdue, *fresh.Stage)

	fresh = models.RFI{}
	require.NoError(t, db.First(&fresh, recent.ID).Error)
	assert.Equal(t, models.StatusActive, fresh.Status)
	assert.Equal(t, models.StageSentToClient, *fresh.Stage)

	// One notification per affected RFI.
	overdue := 0
	for _, e := range rec.Entries {
		if e.Kind == models.NotificationOverdue {
			overdue++
			assert.Equal(t, stale.ID, e.RFIID)
		}
	}
	assert.Equal(t, 1, overdue)
}

func TestSweepTwiceIsANoOpSecondTime(t *testing.T) {
	db, sw, rec := setup(t)
	seedSent(t, db, "RFI-001", 45)

	n, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	overdue := 0
	for _, e := range rec.Entries {
		if e.Kind == models.NotificationOverdue {
			overdue++
		}
	}
	assert.Equal(t, 1, overdue, "a double run must not double the transition")
}

func TestSweepSkipsRespondedRFIs(t *testing.T) {
	db, sw, _ := setup(t)
	rfi := seedSent(t, db, "RFI-001", 40)

	// A response landed before the sweep got there.
	machine := workflow.NewMachine(db, notify.Nop{})
	_, err := machine.Execute(rfi.ID, workflow.EventClientResponse,
		workflow.State{Status: models.StatusActive, Stage: models.StageSentToClient},
		"client", workflow.ResponseReceivedData{
			Response: "handled", SubmittedBy: "client", ResponseStatus: models.ResponseApproved,
		})
	require.NoError(t, err)

	n, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	var fresh models.RFI
	require.NoError(t, db.First(&fresh, rfi.ID).Error)
	assert.Equal(t, models.StatusActive, fresh.Status)
	assert.Equal(t, models.StageResponseReceived, *fresh.Stage)
}

func TestSweepEmptySet(t *testing.T) {
	_, sw, _ := setup(t)
	n, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
