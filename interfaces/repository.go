package interfaces

import (
	"context"

	"github.com/customeros/mailbackup/internal/models"
)

type EmailAccountRepository interface {
	GetByID(ctx context.Context, id string) (*models.EmailAccount, error)
	ListSyncEnabled(ctx context.Context) ([]*models.EmailAccount, error)
	Create(ctx context.Context, account *models.EmailAccount) error
}

type FolderMarkerRepository interface {
	GetOrCreate(ctx context.Context, accountID, path string) (*models.FolderMarker, bool, error)
	SetIgnore(ctx context.Context, accountID, path string, ignore bool) error
	ListByAccount(ctx context.Context, accountID string) ([]*models.FolderMarker, error)
}

type ArchivedEmailRepository interface {
	FilterByIdentity(ctx context.Context, accountID, messageID string) (*models.ArchivedEmail, error)
	GetOrCreateByIdentity(ctx context.Context, email *models.ArchivedEmail) (*models.ArchivedEmail, bool, error)
	AssociateFolder(ctx context.Context, email *models.ArchivedEmail, folder *models.FolderMarker) error
	CountByAccount(ctx context.Context, accountID string) (int64, error)
}

type SyncRunRepository interface {
	Create(ctx context.Context, run *models.SyncRun) error
	ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.SyncRun, error)
}
