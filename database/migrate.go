package database

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate applies the hand-written part of the schema on top of AutoMigrate:
// - unique token index (partial: null tokens don't collide)
// - lookup indexes for the sweeper and the notification inbox
// - CHECK constraints on the workflow enums
// All statements are idempotent.
func Migrate() error {
	return DB.Transaction(func(tx *gorm.DB) error {
		indexes := []string{
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_rfis_secure_link_token ON rfis (secure_link_token) WHERE secure_link_token IS NOT NULL`,
			`CREATE INDEX IF NOT EXISTS idx_rfis_status_stage_date_sent ON rfis (status, stage, date_sent)`,
			`CREATE INDEX IF NOT EXISTS idx_notifications_rfi_created_at ON notifications (rfi_id, created_at)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_idempotency_keys_key ON idempotency_keys (key)`,
		}
		for _, stmt := range indexes {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("index migration failed on: %s - %w", stmt, err)
			}
		}

		checks := []string{
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'rfis'::regclass
					  AND conname  = 'chk_rfis_status'
				) THEN
					ALTER TABLE rfis
					ADD CONSTRAINT chk_rfis_status
					CHECK (status IN ('draft','active','overdue','closed'));
				END IF;
			END $$;`,
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'rfis'::regclass
					  AND conname  = 'chk_rfis_stage'
				) THEN
					ALTER TABLE rfis
					ADD CONSTRAINT chk_rfis_stage
					CHECK (stage IS NULL OR stage IN (
						'sent_to_client','awaiting_response','response_received',
						'field_work_in_progress','work_completed','late_overdue'));
				END IF;
			END $$;`,
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'rfis'::regclass
					  AND conname  = 'chk_rfis_response_status'
				) THEN
					ALTER TABLE rfis
					ADD CONSTRAINT chk_rfis_response_status
					CHECK (response_status IS NULL OR response_status IN (
						'', 'approved','rejected','needs_clarification'));
				END IF;
			END $$;`,
		}
		for _, stmt := range checks {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("check constraint migration failed: %w", err)
			}
		}

		return nil
	})
}
