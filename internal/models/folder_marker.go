package models

import (
	"gorm.io/gorm"

	"github.com/customeros/mailbackup/internal/utils"
)

// FolderMarker records a remote folder seen for an account. Ignore excludes it from sweeps.
type FolderMarker struct {
	ID        string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	AccountID string `gorm:"column:account_id;type:varchar(50);not null;uniqueIndex:uq_email_paths_account_path" json:"accountId"`
	Path      string `gorm:"column:path;type:varchar(512);not null;uniqueIndex:uq_email_paths_account_path" json:"path"`
	Ignore    bool   `gorm:"column:ignore;not null;default:false" json:"ignore"`
}

func (FolderMarker) TableName() string {
	return "email_paths"
}

func (f *FolderMarker) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = utils.GenerateNanoIdWithPrefix("epth", 16)
	}
	return nil
}

func (f *FolderMarker) String() string {
	return f.Path
}
