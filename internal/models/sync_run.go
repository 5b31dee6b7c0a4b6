package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/customeros/mailbackup/internal/enum"
	"github.com/customeros/mailbackup/internal/utils"
)

// SyncRun is the recorded outcome of one account synchronization
type SyncRun struct {
	ID                string           `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	AccountID         string           `gorm:"column:account_id;type:varchar(50);not null;index" json:"accountId"`
	Outcome           enum.SyncOutcome `gorm:"column:outcome;type:varchar(20);not null;index" json:"outcome"`
	NewMessages       int              `gorm:"column:new_messages;not null;default:0" json:"newMessages"`
	Duplicates        int              `gorm:"column:duplicates;not null;default:0" json:"duplicates"`
	DecodeFailures    int              `gorm:"column:decode_failures;not null;default:0" json:"decodeFailures"`
	FoldersSwept      int              `gorm:"column:folders_swept;not null;default:0" json:"foldersSwept"`
	FoldersRegistered int              `gorm:"column:folders_registered;not null;default:0" json:"foldersRegistered"`
	Errors            pq.StringArray   `gorm:"column:errors;type:text[]" json:"errors"`
	StartedAt         time.Time        `gorm:"column:started_at;type:timestamp;not null" json:"startedAt"`
	FinishedAt        time.Time        `gorm:"column:finished_at;type:timestamp" json:"finishedAt"`
}

func (SyncRun) TableName() string {
	return "sync_runs"
}

func (r *SyncRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = utils.GenerateUUID()
	}
	return nil
}
