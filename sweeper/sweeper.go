// Package sweeper turns silent deadline passage into explicit overdue
// transitions; nothing else in the system watches the clock.
package sweeper

import (
	"context"
	"fmt"
	"log"
	"time"

	"rfitrack-backend/models"
	"rfitrack-backend/workflow"

	"gorm.io/gorm"
)

const DefaultGraceDays = 30

type Sweeper struct {
	db      *gorm.DB
	machine *workflow.Machine
	grace   time.Duration
	now     func() time.Time
}

func New(db *gorm.DB, machine *workflow.Machine, graceDays int) *Sweeper {
	if graceDays <= 0 {
		graceDays = DefaultGraceDays
	}
	return &Sweeper{
		db:      db,
		machine: machine,
		grace:   time.Duration(graceDays) * 24 * time.Hour,
		now:     time.Now,
	}
}

// Sweep marks every in-flight RFI past the grace window as overdue and
// returns how many it transitioned. Safe to run concurrently with itself:
// each transition is the machine's conditional update, so a double run
// degrades to no-ops, not double transitions.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.grace)

	var stale []models.RFI
	err := s.db.WithContext(ctx).
		Where("status = ? AND stage IN ? AND date_sent < ?",
			models.StatusActive,
			[]models.RFIStage{models.StageSentToClient, models.StageAwaitingResponse},
			cutoff).
		Find(&stale).Error
	if err != nil {
		return 0, fmt.Errorf("select overdue candidates: %w", err)
	}

	transitioned := 0
	for _, rfi := range stale {
		if ctx.Err() != nil {
			return transitioned, ctx.Err()
		}
		var sentAt time.Time
		if rfi.DateSent != nil {
			sentAt = *rfi.DateSent
		}
		_, err := s.machine.Execute(rfi.ID, workflow.EventMarkOverdue,
			workflow.StateOf(&rfi), "sweeper", workflow.OverdueData{SentAt: sentAt})
		switch err {
		case nil:
			transitioned++
		case workflow.ErrConflict, workflow.ErrInvalidTransition, workflow.ErrAlreadyResponded, workflow.ErrNotFound:
			// Someone beat us to this row (a response landed, a close, or a
			// concurrent sweep). Skip it.
		default:
			log.Printf("sweep: transition of rfi %d failed: %v", rfi.ID, err)
		}
	}
	return transitioned, nil
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				log.Printf("sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("sweep: %d rfi(s) marked overdue", n)
			}
		}
	}
}
