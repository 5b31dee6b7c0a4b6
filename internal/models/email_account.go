package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/customeros/mailbackup/internal/enum"
	mberrors "github.com/customeros/mailbackup/internal/errors"
	"github.com/customeros/mailbackup/internal/utils"
)

// EmailAccount is a remote mailbox to back up.
type EmailAccount struct {
	ID          string        `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	User        string        `gorm:"column:username;type:varchar(128);not null;uniqueIndex:uq_email_accounts_user_host" json:"user"`
	Password    string        `gorm:"column:password;type:varchar(128);not null" json:"-"`
	Host        string        `gorm:"column:host;type:varchar(64);not null;uniqueIndex:uq_email_accounts_user_host" json:"host"`
	Port        int           `gorm:"column:port;not null;default:995" json:"port"`
	Protocol    enum.Protocol `gorm:"column:protocol;type:varchar(10);not null;default:'pop3'" json:"protocol"`
	SSL         bool          `gorm:"column:ssl;not null" json:"ssl"`
	Path        string        `gorm:"column:path;type:varchar(512);not null;default:'/'" json:"path"`
	Sync        bool          `gorm:"column:sync;not null;default:false;index" json:"sync"`
	WeeksBefore int           `gorm:"column:weeks_before;not null;default:0" json:"weeksBefore"`
	Remove      bool          `gorm:"column:remove;not null;default:false" json:"remove"`
	JustRead    bool          `gorm:"column:just_read;not null" json:"justRead"`
	CreatedAt   time.Time     `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt   time.Time     `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (EmailAccount) TableName() string {
	return "email_accounts"
}

func (a *EmailAccount) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateNanoIdWithPrefix("eacc", 16)
	}
	if a.Port == 0 {
		a.Port = a.DefaultPort()
	}
	return a.Validate()
}

func (a *EmailAccount) String() string {
	return fmt.Sprintf("%s at [%s]", a.User, a.Host)
}

// Address returns host:port, falling back to the protocol default port.
func (a *EmailAccount) Address() string {
	port := a.Port
	if port == 0 {
		port = a.DefaultPort()
	}
	return fmt.Sprintf("%s:%d", a.Host, port)
}

func (a *EmailAccount) DefaultPort() int {
	switch {
	case a.Protocol == enum.ProtocolIMAP4 && a.SSL:
		return 993
	case a.Protocol == enum.ProtocolIMAP4:
		return 143
	case a.SSL:
		return 995
	default:
		return 110
	}
}

// Validate checks the fields the connector depends on.
func (a *EmailAccount) Validate() error {
	if strings.TrimSpace(a.Host) == "" {
		return errors.Wrap(mberrors.ErrInvalidAccount, "host is empty")
	}
	if strings.TrimSpace(a.User) == "" {
		return errors.Wrap(mberrors.ErrInvalidAccount, "user is empty")
	}
	if a.Port != 0 && (a.Port <= 0 || a.Port >= 49152) {
		return errors.Wrapf(mberrors.ErrInvalidAccount, "%d is not valid bind port", a.Port)
	}
	if !a.Protocol.IsValid() {
		return errors.Wrapf(mberrors.ErrInvalidAccount, "unknown protocol %q", a.Protocol)
	}
	if a.WeeksBefore < 0 {
		return errors.Wrap(mberrors.ErrInvalidAccount, "weeks before is negative")
	}
	return nil
}
