package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailbackup/internal/utils"
)

// ArchivedEmail is a message ingested from a remote mailbox
type ArchivedEmail struct {
	ID        string `gorm:"column:id;type:varchar(50);primaryKey"`
	AccountID string `gorm:"column:account_id;type:varchar(50);not null;uniqueIndex:uq_emails_account_message_id"`
	MessageID string `gorm:"column:message_id;type:varchar(255);not null;default:'message_id@localhost';uniqueIndex:uq_emails_account_message_id"`
	RawPath   string `gorm:"column:raw_path;type:varchar(1024)"`

	SendBy     string    `gorm:"column:send_by;type:varchar(254);index"`
	Subject    string    `gorm:"column:subject;type:varchar(512)"`
	Content    string    `gorm:"column:content;type:text"`
	SearchText string    `gorm:"column:search_text;type:text"`
	Attaches   int       `gorm:"column:attaches;not null;default:0"`
	Date       time.Time `gorm:"column:date;type:timestamp;index"`

	Folders []FolderMarker `gorm:"many2many:email_path_links;joinForeignKey:EmailID;joinReferences:EmailPathID"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (ArchivedEmail) TableName() string {
	return "emails"
}

func (e *ArchivedEmail) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIdWithPrefix("email", 24)
	}
	e.CreatedAt = utils.Now()
	return nil
}
