package interfaces

import (
	"context"

	"github.com/customeros/mailbackup/dto"
	"github.com/customeros/mailbackup/internal/models"
)

type SyncService interface {
	SyncAccount(ctx context.Context, account *models.EmailAccount) (*dto.RunSummary, error)
	SyncAccountByID(ctx context.Context, accountID string) (*dto.RunSummary, error)
	SyncAll(ctx context.Context) ([]*dto.RunSummary, error)
}
